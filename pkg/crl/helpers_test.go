package crl

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"os"
	"path/filepath"
	"testing"
)

// certIdentity adapts an x509.Certificate for tests.
type certIdentity struct {
	subject pkix.RDNSequence
	cert    *x509.Certificate
}

func (c *certIdentity) Subject() pkix.RDNSequence   { return c.subject }
func (c *certIdentity) PublicKey() crypto.PublicKey { return c.cert.PublicKey }
func (c *certIdentity) CRLSign() bool               { return c.cert.KeyUsage&x509.KeyUsageCRLSign != 0 }

// staticIdentity lets a test pick each field independently.
type staticIdentity struct {
	subject pkix.RDNSequence
	pub     crypto.PublicKey
	crlSign bool
}

func (s *staticIdentity) Subject() pkix.RDNSequence   { return s.subject }
func (s *staticIdentity) PublicKey() crypto.PublicKey { return s.pub }
func (s *staticIdentity) CRLSign() bool               { return s.crlSign }

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", name, err)
	}
	return data
}

func loadTestCert(t *testing.T, name string) *certIdentity {
	t.Helper()
	cert, err := x509.ParseCertificate(readTestdata(t, name))
	if err != nil {
		t.Fatalf("ParseCertificate(%s) error = %v", name, err)
	}
	subject, err := ParseName(cert.RawSubject)
	if err != nil {
		t.Fatalf("ParseName(%s) error = %v", name, err)
	}
	return &certIdentity{subject: subject, cert: cert}
}

func mustDecode(t *testing.T, der []byte) *RevocationList {
	t.Helper()
	rl, err := Decode(der)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return rl
}
