package crltest

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"

	pkicrypto "github.com/remiblancher/qcrl/pkg/crypto"
)

// ASN.1 structures for X.509 certificate (RFC 5280).
type tbsCertificate struct {
	Raw                asn1.RawContent
	Version            int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber       *big.Int
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Issuer             asn1.RawValue
	Validity           validity
	Subject            asn1.RawValue
	PublicKey          asn1.RawValue
	Extensions         []pkix.Extension `asn1:"optional,explicit,tag:3"`
}

type validity struct {
	NotBefore, NotAfter time.Time
}

type publicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

type certificate struct {
	TBSCertificate     asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

var (
	oidKeyUsage         = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidSubjectKeyID     = asn1.ObjectIdentifier{2, 5, 29, 14}
	oidBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}
)

// SubjectPublicKeyInfo returns the DER SubjectPublicKeyInfo of the issuer
// key.
func (i *Issuer) SubjectPublicKeyInfo(t testing.TB) []byte {
	t.Helper()

	var alg pkicrypto.AlgorithmID
	var raw []byte
	switch pub := i.pub.(type) {
	case ed448.PublicKey:
		alg, raw = pkicrypto.AlgEd448, pub
	case *mldsa44.PublicKey:
		alg, raw = pkicrypto.AlgMLDSA44, pub.Bytes()
	case *mldsa65.PublicKey:
		alg, raw = pkicrypto.AlgMLDSA65, pub.Bytes()
	case *mldsa87.PublicKey:
		alg, raw = pkicrypto.AlgMLDSA87, pub.Bytes()
	case *slhdsa.PublicKey:
		var err error
		if raw, err = pub.MarshalBinary(); err != nil {
			t.Fatalf("crltest: marshal SLH-DSA public key: %v", err)
		}
		alg = pkicrypto.AlgSLHDSASHA2128f
		if i.Kind == SLHDSAShake {
			alg = pkicrypto.AlgSLHDSASHAKE128f
		}
	default:
		der, err := x509.MarshalPKIXPublicKey(i.pub)
		if err != nil {
			t.Fatalf("crltest: marshal public key: %v", err)
		}
		return der
	}

	der, err := asn1.Marshal(publicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: alg.OID()},
		PublicKey: asn1.BitString{Bytes: raw, BitLength: len(raw) * 8},
	})
	if err != nil {
		t.Fatalf("crltest: marshal SubjectPublicKeyInfo: %v", err)
	}
	return der
}

// CertificateDER returns a self-signed CA certificate for the issuer. The
// keyUsage carries cRLSign only when KeyUsageCRLSign is set.
func (i *Issuer) CertificateDER(t testing.TB) []byte {
	t.Helper()

	nameDER, err := asn1.Marshal(i.Name.ToRDNSequence())
	if err != nil {
		t.Fatalf("crltest: marshal name: %v", err)
	}

	// keyCertSign (5) and cRLSign (6), or digitalSignature (0) alone.
	ku := asn1.BitString{Bytes: []byte{0x06}, BitLength: 7}
	if !i.KeyUsageCRLSign {
		ku = asn1.BitString{Bytes: []byte{0x80}, BitLength: 1}
	}
	kuDER, err := asn1.Marshal(ku)
	if err != nil {
		t.Fatalf("crltest: marshal key usage: %v", err)
	}
	skiDER, err := asn1.Marshal(i.SubjectKeyID)
	if err != nil {
		t.Fatalf("crltest: marshal subject key id: %v", err)
	}
	bcDER, err := asn1.Marshal(struct {
		IsCA bool `asn1:"optional"`
	}{IsCA: true})
	if err != nil {
		t.Fatalf("crltest: marshal basic constraints: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	tbs := tbsCertificate{
		Version:            2, // v3
		SerialNumber:       big.NewInt(now.UnixNano()),
		SignatureAlgorithm: i.SignatureAlg,
		Issuer:             asn1.RawValue{FullBytes: nameDER},
		Validity:           validity{NotBefore: now.Add(-time.Hour), NotAfter: now.Add(365 * 24 * time.Hour)},
		Subject:            asn1.RawValue{FullBytes: nameDER},
		PublicKey:          asn1.RawValue{FullBytes: i.SubjectPublicKeyInfo(t)},
		Extensions: []pkix.Extension{
			{Id: oidBasicConstraints, Critical: true, Value: bcDER},
			{Id: oidKeyUsage, Critical: true, Value: kuDER},
			{Id: oidSubjectKeyID, Value: skiDER},
		},
	}
	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		t.Fatalf("crltest: marshal TBSCertificate: %v", err)
	}
	sig, err := i.Sign(tbsDER)
	if err != nil {
		t.Fatalf("crltest: sign certificate: %v", err)
	}
	der, err := asn1.Marshal(certificate{
		TBSCertificate:     asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: i.SignatureAlg,
		SignatureValue:     asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	})
	if err != nil {
		t.Fatalf("crltest: marshal certificate: %v", err)
	}
	return der
}

// CertificatePEM returns CertificateDER wrapped in a CERTIFICATE block.
func (i *Issuer) CertificatePEM(t testing.TB) []byte {
	t.Helper()
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: i.CertificateDER(t)})
}
