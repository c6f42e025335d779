package mock

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"

	"github.com/mhaga/apns-core"
	"github.com/mhaga/apns-core/notification"
	"github.com/mhaga/apns-core/notification/priority"
	"github.com/mhaga/apns-core/payload"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:         big.NewInt(1),
		Subject:              pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:            time.Now().Add(-time.Hour),
		NotAfter:             time.Now().Add(time.Hour),
		KeyUsage:             x509.KeyUsageDigitalSignature,
		ExtKeyUsage:          []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IPAddresses:          []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
}

func startServer(t *testing.T, handler Handler) (addr string, cert tls.Certificate) {
	t.Helper()
	cert = selfSignedCert(t)

	srv, err := NewServer(Config{
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		Handler:   handler,
	})
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2"},
	})
	require.NoError(t, err)

	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	return ln.Addr().String(), cert
}

// S1: a well-formed send through a real apns.Client over a real HTTP/2
// connection is accepted.
func TestServer_AcceptsOverRealHTTP2(t *testing.T) {
	addr, cert := startServer(t, AcceptAllHandler{})

	clientCert := selfSignedCert(t)
	cli, err := apns.NewClientWithCert(&clientCert,
		apns.WithAddr(addr),
		apns.WithCapacity(1),
		apns.WithInsecureSkipVerify(),
	)
	require.NoError(t, err)
	defer cli.Close()

	n := &apns.Notification{
		BundleID:    "com.example.app",
		DeviceToken: validToken,
		Type:        notification.Alert,
		Priority:    priority.Immediate,
		Payload:     &apns.Payload{APS: payload.APS{Alert: "hi"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := cli.Send(ctx, n)
	require.NoError(t, err)
	require.True(t, resp.Accepted)
	require.NotEmpty(t, resp.APNsID)
	_ = cert
}

// S4: a request to an unrelated path is rejected with BadPath.
func TestServer_BadPath(t *testing.T) {
	addr, _ := startServer(t, AcceptAllHandler{})

	transport := &http2.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	httpClient := &http.Client{Transport: transport}

	resp, err := httpClient.Get("https://" + addr + "/not/a/real/path")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, apns.ReasonBadPath.HTTPStatus(), resp.StatusCode)

	var body struct {
		Reason string `json:"reason"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, string(apns.ReasonBadPath), body.Reason)
}
