package auth

import "crypto/ecdsa"

// SigningKey identifies a P-256 private key provisioned by Apple for
// token-based provider authentication, keyed by (team-id, key-id).
type SigningKey struct {
	TeamID     string
	KeyID      string
	PrivateKey *ecdsa.PrivateKey
}

// VerificationKey is the public half of a SigningKey, used by the mock
// server to verify provider tokens it receives.
type VerificationKey struct {
	TeamID    string
	KeyID     string
	PublicKey *ecdsa.PublicKey

	// Topics is the set of apns-topic values this key is authorised to
	// push to. A request whose topic is not in this set is rejected with
	// INVALID_PROVIDER_TOKEN (spec check 9).
	Topics map[string]struct{}
}

// Authorizes reports whether topic is in this key's authorised set. An
// empty set authorises every topic, matching a key with no restriction
// configured.
func (v *VerificationKey) Authorizes(topic string) bool {
	if len(v.Topics) == 0 {
		return true
	}
	_, ok := v.Topics[topic]
	return ok
}
