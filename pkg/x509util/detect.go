package x509util

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"

	"github.com/cockroachdb/errors"

	pkicrypto "github.com/remiblancher/qcrl/pkg/crypto"
)

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// ExtractSPKIAlgorithmOID extracts the algorithm OID from RawSubjectPublicKeyInfo.
func ExtractSPKIAlgorithmOID(rawSPKI []byte) (asn1.ObjectIdentifier, error) {
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(rawSPKI, &spki); err != nil {
		return nil, errors.Wrap(err, "failed to parse SPKI")
	}
	return spki.Algorithm.Algorithm, nil
}

// IsPQCOID checks if an OID is a pure PQC signature algorithm (ML-DSA or SLH-DSA).
func IsPQCOID(oid asn1.ObjectIdentifier) bool {
	return pkicrypto.AlgorithmFromOID(oid).IsPQC()
}

// KeyAlgorithm returns the key algorithm of cert, or AlgUnknown.
func KeyAlgorithm(cert *x509.Certificate) pkicrypto.AlgorithmID {
	if cert == nil {
		return pkicrypto.AlgUnknown
	}
	switch cert.PublicKeyAlgorithm {
	case x509.RSA:
		return pkicrypto.AlgRSA
	case x509.ECDSA:
		return pkicrypto.AlgECDSA
	case x509.Ed25519:
		return pkicrypto.AlgEd25519
	}
	oid, err := ExtractSPKIAlgorithmOID(cert.RawSubjectPublicKeyInfo)
	if err != nil {
		return pkicrypto.AlgUnknown
	}
	return pkicrypto.AlgorithmFromOID(oid)
}

// CertificateType represents the cryptographic type of a certificate.
type CertificateType int

const (
	// CertTypeUnknown indicates the certificate type could not be determined.
	CertTypeUnknown CertificateType = iota
	// CertTypeClassical indicates a classical certificate (ECDSA, RSA, EdDSA).
	CertTypeClassical
	// CertTypePQC indicates a pure PQC certificate (ML-DSA, SLH-DSA).
	CertTypePQC
)

// String returns the string representation of the certificate type.
func (t CertificateType) String() string {
	switch t {
	case CertTypeClassical:
		return "Classical"
	case CertTypePQC:
		return "PQC"
	default:
		return "Unknown"
	}
}

// GetCertificateType determines the cryptographic type of a certificate.
func GetCertificateType(cert *x509.Certificate) CertificateType {
	alg := KeyAlgorithm(cert)
	switch {
	case alg == pkicrypto.AlgUnknown:
		return CertTypeUnknown
	case alg.IsPQC():
		return CertTypePQC
	default:
		return CertTypeClassical
	}
}

// extractPublicKey decodes the SPKI of keys crypto/x509 leaves unparsed.
func extractPublicKey(cert *x509.Certificate) (interface{}, pkicrypto.AlgorithmID, error) {
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		return nil, pkicrypto.AlgUnknown, errors.Wrap(err, "failed to parse SPKI")
	}

	alg := pkicrypto.AlgorithmFromOID(spki.Algorithm.Algorithm)
	if alg == pkicrypto.AlgUnknown {
		return nil, alg, errors.Newf("unknown algorithm OID: %v", spki.Algorithm.Algorithm)
	}

	pub, err := pkicrypto.ParsePublicKey(alg, spki.PublicKey.RightAlign())
	if err != nil {
		return nil, alg, errors.Wrap(err, "failed to parse public key")
	}
	return pub, alg, nil
}
