package tls

import (
	tls "crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	log = zerolog.Nop()
)

func SetLogger(logger zerolog.Logger) {
	log = logger
}

var secureCipherSuites = []uint16{
	// TLS 1.3 cipher suites (automatically used when TLS 1.3 is negotiated)
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,

	// TLS 1.2 ECDHE cipher suites (Forward Security)
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,

	// Additional secure TLS 1.2 cipher suites (CBC with HMAC-SHA256)
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256,
}

// MakeTLS generates the tls.Config used to reach a directory server.
// caPEM holds extra trusted certificates and may be nil.
func MakeTLS(caPEM []byte, serverName string, insecure, legacy bool) (*tls.Config, error) {
	// Get SystemCertPool, continue with an empty pool on error
	rootCAs, err := x509.SystemCertPool()

	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
		log.Warn().Err(err).Msg("Using empty cert-pool")
	} else {
		log.Debug().Msg("Using system cert-pool")
	}

	for _, cert := range DecodePEM(caPEM).Certificate {
		x509Cert, err := x509.ParseCertificate(cert)
		if err != nil {
			return nil, fmt.Errorf("parsing CA certificate: %w", err)
		}
		rootCAs.AddCert(x509Cert)
	}

	if insecure {
		log.Warn().Str("server", serverName).Msg("certificate verification disabled")
	}

	if legacy {
		return &tls.Config{
			RootCAs:            rootCAs,
			ServerName:         serverName,
			InsecureSkipVerify: insecure,
			MinVersion:         tls.VersionTLS10,
			MaxVersion:         tls.VersionTLS13,
		}, nil
	}

	return &tls.Config{
		RootCAs:            rootCAs,
		ServerName:         serverName,
		InsecureSkipVerify: insecure,
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS13,
		CipherSuites:       secureCipherSuites,
	}, nil
}

// DecodePEM builds a PEM certificate object
func DecodePEM(certPEM []byte) tls.Certificate {
	var cert tls.Certificate
	var certDER *pem.Block
	for {
		certDER, certPEM = pem.Decode(certPEM)
		if certDER == nil {
			break
		}
		if certDER.Type == "CERTIFICATE" {
			cert.Certificate = append(cert.Certificate, certDER.Bytes)
		}
	}

	return cert
}

func CipherSuiteNames(suites []uint16) []string {
	var names []string
	for _, suite := range suites {
		names = append(names, tls.CipherSuiteName(suite))
	}
	return names
}
