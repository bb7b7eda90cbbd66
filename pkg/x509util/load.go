package x509util

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/cockroachdb/errors"
)

// ParseCertificates parses every CERTIFICATE block of PEM data, or a single
// DER certificate.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	if !bytes.Contains(data, []byte("-----BEGIN")) {
		cert, err := x509.ParseCertificate(data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse DER certificate")
		}
		return []*x509.Certificate{cert}, nil
	}

	var certs []*x509.Certificate
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse PEM certificate")
			}
			certs = append(certs, cert)
		}
		data = rest
	}
	if len(certs) == 0 {
		return nil, errors.New("no CERTIFICATE block found")
	}
	return certs, nil
}

// LoadCertificate reads the first certificate of a PEM or DER file.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read certificate %s", path)
	}
	certs, err := ParseCertificates(data)
	if err != nil {
		return nil, errors.Wrapf(err, "certificate %s", path)
	}
	return certs[0], nil
}

// LoadIdentity reads a certificate file and wraps it as an Identity.
func LoadIdentity(path string) (*Identity, error) {
	cert, err := LoadCertificate(path)
	if err != nil {
		return nil, err
	}
	return NewIdentity(cert)
}
