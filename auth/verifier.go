package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyFailure classifies why a provider token failed verification, using
// names independent of any particular transport's rejection vocabulary so
// this package stays decoupled from the mock server's reason enum.
type VerifyFailure int

const (
	// FailureInvalid covers: key-id unknown, malformed token, signature
	// mismatch, or issuer mismatch.
	FailureInvalid VerifyFailure = iota
	// FailureExpired: iat is older than one hour.
	FailureExpired
)

// VerifyError is returned by Verifier.Verify.
type VerifyError struct {
	Failure VerifyFailure
	Cause   error
}

func (e *VerifyError) Error() string {
	switch e.Failure {
	case FailureExpired:
		return "auth: provider token expired"
	default:
		return fmt.Sprintf("auth: invalid provider token: %v", e.Cause)
	}
}

func (e *VerifyError) Unwrap() error { return e.Cause }

func invalid(cause error) *VerifyError {
	return &VerifyError{Failure: FailureInvalid, Cause: cause}
}

// Verifier checks ES256 provider-token bearer strings against a table of
// registered VerificationKeys, as the mock server does for check 9.
type Verifier struct {
	clock Clock
	keys  map[string]*VerificationKey // by key-id
}

// NewVerifier returns a Verifier with no keys registered.
func NewVerifier() *Verifier {
	return &Verifier{clock: SystemClock{}, keys: make(map[string]*VerificationKey)}
}

// WithClock overrides the clock used for expiry checks; for tests.
func (v *Verifier) WithClock(c Clock) *Verifier {
	v.clock = c
	return v
}

// Register adds or replaces a VerificationKey, indexed by its key-id.
func (v *Verifier) Register(key *VerificationKey) {
	v.keys[key.KeyID] = key
}

// Verify checks a JWT, with the "bearer " prefix already stripped by the
// caller, against the registered keys. On success it
// returns the VerificationKey that signed the token, so the caller can
// additionally check topic authorisation (VerificationKey.Authorizes).
func (v *Verifier) Verify(bearerToken string) (*VerificationKey, error) {
	var key *VerificationKey
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"ES256"}))

	tok, err := parser.ParseWithClaims(bearerToken, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("missing kid")
		}
		k, ok := v.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key-id %q", kid)
		}
		key = k
		return key.PublicKey, nil
	})
	if err != nil {
		return nil, invalid(err)
	}
	claims, _ := tok.Claims.(jwt.MapClaims)

	iss, _ := claims["iss"].(string)
	if iss != key.TeamID {
		return nil, invalid(fmt.Errorf("iss %q does not match key's team %q", iss, key.TeamID))
	}

	iatFloat, ok := claims["iat"].(float64)
	if !ok {
		return nil, invalid(fmt.Errorf("missing or malformed iat"))
	}
	iat := time.Unix(int64(iatFloat), 0)
	if v.clock.Now().Sub(iat) > time.Hour {
		return nil, &VerifyError{Failure: FailureExpired, Cause: fmt.Errorf("iat %s older than 1h", iat)}
	}

	return key, nil
}
