package certificate

import (
	"crypto/tls"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/mhaga/apns-core/auth"
)

// LoadP12File loads a tls.Certificate for APNs connection
// from a specified p12 file and password.
//
// path: Path to the PKCS#12 file.
// password: Password for the p12 file.
//
// Returns:
//
//	*tls.Certificate: A pointer to tls.Certificate on success.
//	error: Error information if loading fails.
func LoadP12File(path, password string) (*tls.Certificate, error) {
	// Read the p12 file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read p12 file %q: %w", path, err)
	}

	// Decode the p12 data using the go-pkcs12 library.
	// This extracts the private key and certificate (and intermediate CA certificates).
	prikey, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode p12 file: %w", err)
	}

	// Create a tls.Certificate using the extracted private key and certificate.
	// The 'Certificate' field of tls.Certificate expects a slice of DER-encoded byte slices.
	// Add the Leaf Certificate (the main certificate used for APNs connection) first.
	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  prikey,
	}

	// Optionally, add the CA certificate chain.
	// For APNs, the Leaf Certificate is usually enough.
	// Add CAs if strict client authentication requires the full chain in the TLS handshake.
	for _, caCert := range caCerts {
		tlsCert.Certificate = append(tlsCert.Certificate, caCert.Raw)
	}

	return &tlsCert, nil
}

// LoadSigningKey parses an Apple-issued .p8 provider authentication key
// (PEM-encoded EC private key, PKCS#8 or SEC1) into an auth.SigningKey
// bound to the given key-id and team-id.
func LoadSigningKey(p8PEM []byte, keyID, teamID string) (*auth.SigningKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(p8PEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse p8 signing key: %w", err)
	}
	return &auth.SigningKey{TeamID: teamID, KeyID: keyID, PrivateKey: key}, nil
}

// LoadSigningKeyFile reads path and parses it via LoadSigningKey.
func LoadSigningKeyFile(path, keyID, teamID string) (*auth.SigningKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read p8 file %q: %w", path, err)
	}
	return LoadSigningKey(data, keyID, teamID)
}
