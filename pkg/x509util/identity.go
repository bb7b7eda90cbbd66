// Package x509util adapts X.509 certificates, including post-quantum and
// Ed448 certificates that crypto/x509 only partially parses, to the issuer
// view the CRL engine consumes.
package x509util

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	"github.com/remiblancher/qcrl/pkg/crl"
	pkicrypto "github.com/remiblancher/qcrl/pkg/crypto"
)

var logger = xlog.NewPackageLogger("github.com/remiblancher/qcrl", "x509util")

// Identity is a certificate seen as a CRL issuer candidate.
// It implements crl.CertificateIdentity.
type Identity struct {
	cert      *x509.Certificate
	subject   pkix.RDNSequence
	publicKey crypto.PublicKey
	algorithm pkicrypto.AlgorithmID
}

var _ crl.CertificateIdentity = (*Identity)(nil)

// NewIdentity builds an Identity from cert. The subject is decoded from the
// raw DER so attribute string types survive. A public key that cannot be
// extracted is not an error: PublicKey returns nil and validation reports
// the key as invalid.
func NewIdentity(cert *x509.Certificate) (*Identity, error) {
	if cert == nil {
		return nil, errors.New("certificate is nil")
	}

	subject, err := crl.ParseName(cert.RawSubject)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse certificate subject")
	}

	id := &Identity{
		cert:      cert,
		subject:   subject,
		publicKey: cert.PublicKey,
		algorithm: KeyAlgorithm(cert),
	}
	if id.publicKey == nil {
		pub, alg, err := extractPublicKey(cert)
		if err != nil {
			logger.KV(xlog.DEBUG, "reason", "public_key", "subject", cert.Subject.String(), "err", err.Error())
		} else {
			id.publicKey, id.algorithm = pub, alg
		}
	}
	return id, nil
}

// Subject returns the certificate subject.
func (i *Identity) Subject() pkix.RDNSequence { return i.subject }

// PublicKey returns the subject public key, or nil.
func (i *Identity) PublicKey() crypto.PublicKey { return i.publicKey }

// CRLSign reports whether the keyUsage extension asserts cRLSign. A
// certificate without keyUsage does not.
func (i *Identity) CRLSign() bool {
	return i.cert.KeyUsage&x509.KeyUsageCRLSign != 0
}

// Certificate returns the underlying certificate.
func (i *Identity) Certificate() *x509.Certificate { return i.cert }

// Algorithm returns the key algorithm.
func (i *Identity) Algorithm() pkicrypto.AlgorithmID { return i.algorithm }

// SubjectKeyID returns the subjectKeyIdentifier, for matching a CRL's
// authorityKeyIdentifier.
func (i *Identity) SubjectKeyID() []byte { return i.cert.SubjectKeyId }
