package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrNoCertificate is returned when a server TLS config lacks a key pair.
var ErrNoCertificate = errors.New("certificate and key are required")

// TLSOptions describes an optional TLS layer on the core session.
// Paths point to PEM files.
type TLSOptions struct {
	// CAFile is a bundle of CAs trusted to sign the peer's certificate.
	// Empty means the system pool.
	CAFile string `yaml:"ca_file"`

	// CertFile and KeyFile hold this endpoint's key pair. Required for
	// servers, optional for clients (client certificate).
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// ServerName overrides the name checked against the core's certificate.
	ServerName string `yaml:"server_name"`

	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// NewClientTLSConfig builds a client TLS configuration from opts.
func NewClientTLSConfig(opts TLSOptions) (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         opts.ServerName,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}

	if opts.CAFile != "" {
		pool, err := loadCertPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		conf.RootCAs = pool
	}

	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	return conf, nil
}

// NewServerTLSConfig builds a server TLS configuration from opts.
// When CAFile is set, clients must present a certificate signed by it.
func NewServerTLSConfig(opts TLSOptions) (*tls.Config, error) {
	if opts.CertFile == "" || opts.KeyFile == "" {
		return nil, ErrNoCertificate
	}

	cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	conf := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	if opts.CAFile != "" {
		pool, err := loadCertPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		conf.ClientCAs = pool
		conf.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return conf, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

// clientTLSConfig fills in ServerName from the dialed address when the
// configuration leaves it empty, as tls.Dial does.
func clientTLSConfig(conf *tls.Config, address string) *tls.Config {
	if conf.ServerName != "" || conf.InsecureSkipVerify {
		return conf
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	conf = conf.Clone()
	conf.ServerName = host
	return conf
}
