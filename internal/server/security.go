package server

import (
	"crypto/tls"
	"fmt"
	"net"
)

// TLSListener opens listeners backed by a certificate and key pair on disk.
// Clinical traffic must not cross the wire below TLS 1.2.
type TLSListener struct {
	certFile string
	keyFile  string
}

// NewTLSListener returns a TLSListener reading the given certificate
// and private key files.
func NewTLSListener(certFile, keyFile string) *TLSListener {
	return &TLSListener{
		certFile: certFile,
		keyFile:  keyFile,
	}
}

// Listen loads the key pair and opens an encrypted listener on addr.
func (l *TLSListener) Listen(protocol, addr string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return tls.Listen(protocol, addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
}

// PlainListener opens unencrypted listeners. Meant for local development
// and deployments that terminate TLS in front of the service.
type PlainListener struct{}

// NewPlainListener returns a PlainListener.
func NewPlainListener() *PlainListener {
	return &PlainListener{}
}

// Listen opens an unencrypted listener on addr.
func (l *PlainListener) Listen(protocol, addr string) (net.Listener, error) {
	return net.Listen(protocol, addr)
}
