package microservice

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSFiles names the PEM files used to build TLS configurations.
type TLSFiles struct {
	CertFile string
	KeyFile  string
	// CAFile, when set, replaces the system roots for verifying peers.
	CAFile string
}

// ServerTLS builds a server TLS configuration. It returns nil when no
// certificate is configured.
func ServerTLS(files TLSFiles) (*tls.Config, error) {
	if files.CertFile == "" && files.KeyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if files.CAFile != "" {
		pool, err := loadCertPool(files.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return cfg, nil
}

// ClientTLS builds a client TLS configuration. A certificate pair, when given,
// is presented to servers that ask for one.
func ClientTLS(files TLSFiles) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if files.CAFile != "" {
		pool, err := loadCertPool(files.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if files.CertFile != "" && files.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file %s: %w", caFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA file %s", caFile)
	}
	return pool, nil
}
