// Command apnsbench sends a batch of notifications through an apns.Client
// and reports how many were accepted, rejected, or failed outright. With
// -mock it spins up an in-process mock.Server instead of dialing a real
// APNs host, for smoke-testing the client end to end.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apns "github.com/mhaga/apns-core"
	"github.com/mhaga/apns-core/certificate"
	"github.com/mhaga/apns-core/mock"
	"github.com/mhaga/apns-core/notification"
	"github.com/mhaga/apns-core/notification/priority"
	"github.com/mhaga/apns-core/payload"
)

func main() {
	var (
		addr        = flag.String("addr", apns.ProductionHost, "APNs host:port to dial")
		certPath    = flag.String("cert", "", "path to a PKCS#12 certificate (.p12) for certificate auth")
		certPass    = flag.String("cert-password", "", "password for -cert")
		bundleID    = flag.String("bundle-id", "", "app bundle identifier")
		deviceToken = flag.String("token", "", "hex device token to push to")
		count       = flag.Int("count", 1, "number of notifications to send")
		capacity    = flag.Int("capacity", 4, "connection pool capacity")
		useMock     = flag.Bool("mock", false, "run against an in-process mock server instead of -addr")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("apnsbench: build logger: %v", err)
	}
	defer logger.Sync()

	opts := []apns.Option{apns.WithAddr(*addr), apns.WithCapacity(*capacity), apns.WithLogger(logger)}

	var clientCert tls.Certificate
	if *useMock {
		clientCert = selfSignedCert()
		mockAddr, stop := runMockServer(logger, clientCert)
		defer stop()
		opts = []apns.Option{apns.WithAddr(mockAddr), apns.WithCapacity(*capacity), apns.WithLogger(logger), apns.WithInsecureSkipVerify()}
		if *deviceToken == "" {
			*deviceToken = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
		}
		if *bundleID == "" {
			*bundleID = "com.example.apnsbench"
		}
	} else {
		if *certPath == "" || *bundleID == "" || *deviceToken == "" {
			fmt.Fprintln(os.Stderr, "apnsbench: -cert, -bundle-id and -token are required unless -mock is set")
			os.Exit(2)
		}
		cert, err := certificate.LoadP12File(*certPath, *certPass)
		if err != nil {
			log.Fatalf("apnsbench: load certificate: %v", err)
		}
		clientCert = *cert
	}

	cli, err := apns.NewClientWithCert(&clientCert, opts...)
	if err != nil {
		log.Fatalf("apnsbench: build client: %v", err)
	}
	defer cli.Close()

	var accepted, rejected, failed int64
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < *count; i++ {
		n := &apns.Notification{
			BundleID:    *bundleID,
			DeviceToken: *deviceToken,
			Type:        notification.Alert,
			Priority:    priority.Immediate,
			Payload:     &apns.Payload{APS: payload.APS{Alert: fmt.Sprintf("apnsbench #%d", i)}},
		}

		resp, err := cli.Send(ctx, n)
		switch {
		case err == nil:
			atomic.AddInt64(&accepted, 1)
		case resp != nil && !resp.Accepted:
			atomic.AddInt64(&rejected, 1)
			logger.Warn("notification rejected", zap.String("reason", string(resp.RejectionReason)))
		default:
			atomic.AddInt64(&failed, 1)
			logger.Error("send failed", zap.Error(err))
		}
	}

	fmt.Printf("accepted=%d rejected=%d failed=%d\n", accepted, rejected, failed)
}

func runMockServer(logger *zap.Logger, cert tls.Certificate) (addr string, stop func()) {
	srv, err := mock.NewServer(mock.Config{
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		Handler:   mock.AcceptAllHandler{},
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("apnsbench: build mock server: %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2"},
	})
	if err != nil {
		log.Fatalf("apnsbench: listen: %v", err)
	}

	go srv.Serve(ln)
	return ln.Addr().String(), func() { srv.Close() }
}

func selfSignedCert() tls.Certificate {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Fatalf("apnsbench: generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		log.Fatalf("apnsbench: create certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
}
