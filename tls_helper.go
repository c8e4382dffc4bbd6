// ABOUTME: TLS configuration for the update listener.
// ABOUTME: Server-only TLS, or optional client certificates when a CA is given.

package dyndns53

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

type tlsConfig struct {
	cert string
	key  string
	ca   string
}

// buildTLSConfig creates a *tls.Config for the listener. DynDNS2 clients
// authenticate with Basic-Auth, so a CA only enables optional client
// certificates, which the admin endpoints can match by CN.
func buildTLSConfig(cfg *tlsConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.cert, cfg.key)
	if err != nil {
		return nil, fmt.Errorf("loading TLS keypair: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.ca != "" {
		caPEM, err := os.ReadFile(cfg.ca)
		if err != nil {
			return nil, fmt.Errorf("reading CA file %s: %w", cfg.ca, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("CA file %s contains no valid certificates", cfg.ca)
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
	}

	return tlsCfg, nil
}
