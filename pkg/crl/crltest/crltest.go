// Package crltest builds signed CRLs and issuer certificates for tests.
//
// crypto/x509 cannot sign with Ed448, ML-DSA or SLH-DSA, so CRLs and
// certificates are assembled with encoding/asn1 and signed directly.
package crltest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
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

// KeyKind selects the key and signature scheme of a test issuer.
type KeyKind string

const (
	RSA         KeyKind = "rsa"
	RSAPSS      KeyKind = "rsa-pss"
	ECDSA       KeyKind = "ecdsa"
	ECDSASHA3   KeyKind = "ecdsa-sha3"
	Ed25519     KeyKind = "ed25519"
	Ed448       KeyKind = "ed448"
	MLDSA44     KeyKind = "ml-dsa-44"
	MLDSA65     KeyKind = "ml-dsa-65"
	MLDSA87     KeyKind = "ml-dsa-87"
	SLHDSA128f  KeyKind = "slh-dsa-sha2-128f"
	SLHDSAShake KeyKind = "slh-dsa-shake-128f"
)

var (
	oidSigSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSigRSAPSS          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	oidMGF1               = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
	oidSHA256             = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSigECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidSigECDSAWithSHA3   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 10}
)

// Issuer is a test CA. It implements the CertificateIdentity view the CRL
// engine consumes.
type Issuer struct {
	Name            pkix.Name
	Kind            KeyKind
	SignatureAlg    pkix.AlgorithmIdentifier
	Hash            crypto.Hash
	PSS             *rsa.PSSOptions
	KeyUsageCRLSign bool
	SubjectKeyID    []byte

	pub  crypto.PublicKey
	priv interface{}
}

// NewIssuer generates a key of the given kind and returns an issuer with
// the cRLSign key usage set.
func NewIssuer(t testing.TB, kind KeyKind, commonName string) *Issuer {
	t.Helper()

	iss := &Issuer{
		Name:            pkix.Name{CommonName: commonName, Organization: []string{"QCRL Test"}, Country: []string{"BE"}},
		Kind:            kind,
		KeyUsageCRLSign: true,
	}
	var err error

	switch kind {
	case RSA, RSAPSS:
		var key *rsa.PrivateKey
		if key, err = rsa.GenerateKey(rand.Reader, 2048); err == nil {
			iss.priv, iss.pub = key, &key.PublicKey
		}
		iss.Hash = crypto.SHA256
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: oidSigSHA256WithRSA, Parameters: asn1.NullRawValue}
		if kind == RSAPSS {
			iss.PSS = &rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256}
			iss.SignatureAlg = PSSAlgorithmIdentifier(t, 32)
		}
	case ECDSA:
		var key *ecdsa.PrivateKey
		if key, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader); err == nil {
			iss.priv, iss.pub = key, &key.PublicKey
		}
		iss.Hash = crypto.SHA384
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: oidSigECDSAWithSHA384}
	case ECDSASHA3:
		var key *ecdsa.PrivateKey
		if key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader); err == nil {
			iss.priv, iss.pub = key, &key.PublicKey
		}
		iss.Hash = crypto.SHA3_256
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: oidSigECDSAWithSHA3}
	case Ed25519:
		var pub ed25519.PublicKey
		var priv ed25519.PrivateKey
		pub, priv, err = ed25519.GenerateKey(rand.Reader)
		iss.priv, iss.pub = priv, pub
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: pkicrypto.AlgEd25519.OID()}
	case Ed448:
		var pub ed448.PublicKey
		var priv ed448.PrivateKey
		pub, priv, err = ed448.GenerateKey(rand.Reader)
		iss.priv, iss.pub = priv, pub
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: pkicrypto.AlgEd448.OID()}
	case MLDSA44:
		var pub *mldsa44.PublicKey
		var priv *mldsa44.PrivateKey
		pub, priv, err = mldsa44.GenerateKey(rand.Reader)
		iss.priv, iss.pub = priv, pub
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: pkicrypto.AlgMLDSA44.OID()}
	case MLDSA65:
		var pub *mldsa65.PublicKey
		var priv *mldsa65.PrivateKey
		pub, priv, err = mldsa65.GenerateKey(rand.Reader)
		iss.priv, iss.pub = priv, pub
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: pkicrypto.AlgMLDSA65.OID()}
	case MLDSA87:
		var pub *mldsa87.PublicKey
		var priv *mldsa87.PrivateKey
		pub, priv, err = mldsa87.GenerateKey(rand.Reader)
		iss.priv, iss.pub = priv, pub
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: pkicrypto.AlgMLDSA87.OID()}
	case SLHDSA128f, SLHDSAShake:
		alg := pkicrypto.AlgSLHDSASHA2128f
		if kind == SLHDSAShake {
			alg = pkicrypto.AlgSLHDSASHAKE128f
		}
		id, _ := pkicrypto.SLHDSAParameterSet(alg)
		var pub slhdsa.PublicKey
		var priv slhdsa.PrivateKey
		pub, priv, err = slhdsa.GenerateKey(rand.Reader, id)
		iss.priv, iss.pub = &priv, &pub
		iss.SignatureAlg = pkix.AlgorithmIdentifier{Algorithm: alg.OID()}
	default:
		t.Fatalf("crltest: unsupported key kind %q", kind)
	}
	if err != nil {
		t.Fatalf("crltest: generate %s key: %v", kind, err)
	}

	iss.SubjectKeyID = make([]byte, 20)
	if _, err := rand.Read(iss.SubjectKeyID); err != nil {
		t.Fatalf("crltest: subject key id: %v", err)
	}
	return iss
}

// Subject returns the issuer name as an RDN sequence.
func (i *Issuer) Subject() pkix.RDNSequence { return i.Name.ToRDNSequence() }

// PublicKey returns the issuer public key.
func (i *Issuer) PublicKey() crypto.PublicKey { return i.pub }

// CRLSign reports whether the issuer carries the cRLSign key usage.
func (i *Issuer) CRLSign() bool { return i.KeyUsageCRLSign }

// PrivateKey returns the raw private key.
func (i *Issuer) PrivateKey() interface{} { return i.priv }

// Sign signs message with the issuer key and signature scheme.
func (i *Issuer) Sign(message []byte) ([]byte, error) {
	switch key := i.priv.(type) {
	case *rsa.PrivateKey:
		digest, err := pkicrypto.Digest(i.Hash, message)
		if err != nil {
			return nil, err
		}
		if i.PSS != nil {
			return rsa.SignPSS(rand.Reader, key, i.Hash, digest, i.PSS)
		}
		return rsa.SignPKCS1v15(rand.Reader, key, i.Hash, digest)
	case *ecdsa.PrivateKey:
		digest, err := pkicrypto.Digest(i.Hash, message)
		if err != nil {
			return nil, err
		}
		return ecdsa.SignASN1(rand.Reader, key, digest)
	case ed25519.PrivateKey:
		return ed25519.Sign(key, message), nil
	case ed448.PrivateKey:
		return ed448.Sign(key, message, ""), nil
	case *mldsa44.PrivateKey:
		return key.Sign(rand.Reader, message, crypto.Hash(0))
	case *mldsa65.PrivateKey:
		return key.Sign(rand.Reader, message, crypto.Hash(0))
	case *mldsa87.PrivateKey:
		return key.Sign(rand.Reader, message, crypto.Hash(0))
	case *slhdsa.PrivateKey:
		return key.Sign(rand.Reader, message, nil)
	default:
		return nil, fmt.Errorf("crltest: unsupported private key type: %T", i.priv)
	}
}

// PSSAlgorithmIdentifier returns an RSASSA-PSS AlgorithmIdentifier with
// SHA-256, MGF1-SHA-256 and the given salt length.
func PSSAlgorithmIdentifier(t testing.TB, saltLength int) pkix.AlgorithmIdentifier {
	t.Helper()
	return PSSAlgorithmIdentifierWithMGF(t, saltLength, oidSHA256)
}

// PSSAlgorithmIdentifierWithMGF is PSSAlgorithmIdentifier with an explicit
// MGF1 hash.
func PSSAlgorithmIdentifierWithMGF(t testing.TB, saltLength int, mgfHash asn1.ObjectIdentifier) pkix.AlgorithmIdentifier {
	t.Helper()

	mgfParams, err := asn1.Marshal(pkix.AlgorithmIdentifier{Algorithm: mgfHash, Parameters: asn1.NullRawValue})
	if err != nil {
		t.Fatalf("crltest: marshal MGF1 hash: %v", err)
	}
	params := struct {
		Hash       pkix.AlgorithmIdentifier `asn1:"explicit,tag:0"`
		MGF        pkix.AlgorithmIdentifier `asn1:"explicit,tag:1"`
		SaltLength int                      `asn1:"explicit,tag:2"`
	}{
		Hash:       pkix.AlgorithmIdentifier{Algorithm: oidSHA256, Parameters: asn1.NullRawValue},
		MGF:        pkix.AlgorithmIdentifier{Algorithm: oidMGF1, Parameters: asn1.RawValue{FullBytes: mgfParams}},
		SaltLength: saltLength,
	}
	der, err := asn1.Marshal(params)
	if err != nil {
		t.Fatalf("crltest: marshal PSS parameters: %v", err)
	}
	return pkix.AlgorithmIdentifier{Algorithm: oidSigRSAPSS, Parameters: asn1.RawValue{FullBytes: der}}
}

// OIDSHA1 is the SHA-1 hash OID, for building mismatching PSS parameters.
var OIDSHA1 = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}

// =============================================================================
// ASN.1 Structures for CRL (RFC 5280)
// =============================================================================

type tbsCertList struct {
	Raw                 asn1.RawContent
	Version             int `asn1:"optional,default:0"`
	Signature           pkix.AlgorithmIdentifier
	Issuer              asn1.RawValue
	ThisUpdate          time.Time
	NextUpdate          time.Time                 `asn1:"optional"`
	RevokedCertificates []revokedCertificateEntry `asn1:"optional"`
	Extensions          []pkix.Extension          `asn1:"optional,explicit,tag:0"`
}

type revokedCertificateEntry struct {
	SerialNumber   *big.Int
	RevocationTime time.Time
	Extensions     []pkix.Extension `asn1:"optional"`
}

type certificateListRaw struct {
	TBSCertList        asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// Entry is one revoked certificate of a Template.
type Entry struct {
	Serial     *big.Int
	RevokedAt  time.Time
	Extensions []pkix.Extension
}

// Template describes a CRL to build.
type Template struct {
	// V1 omits the version field and all CRL extensions.
	V1         bool
	ThisUpdate time.Time
	// NextUpdate is omitted when zero.
	NextUpdate time.Time
	Entries    []Entry
	// Number is encoded as a CRLNumber extension when set.
	Number     *big.Int
	Extensions []pkix.Extension
	// IssuerName overrides the issuer name written into the CRL.
	IssuerName *pkix.Name
	// OuterAlgorithm overrides the outer signatureAlgorithm.
	OuterAlgorithm *pkix.AlgorithmIdentifier
}

// CreateCRL builds and signs a DER CRL.
func (i *Issuer) CreateCRL(t testing.TB, tmpl Template) []byte {
	t.Helper()

	name := i.Name
	if tmpl.IssuerName != nil {
		name = *tmpl.IssuerName
	}
	issuerDER, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		t.Fatalf("crltest: marshal issuer name: %v", err)
	}

	thisUpdate := tmpl.ThisUpdate
	if thisUpdate.IsZero() {
		thisUpdate = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	}

	var revoked []revokedCertificateEntry
	for _, e := range tmpl.Entries {
		revokedAt := e.RevokedAt
		if revokedAt.IsZero() {
			revokedAt = thisUpdate
		}
		revoked = append(revoked, revokedCertificateEntry{
			SerialNumber:   e.Serial,
			RevocationTime: revokedAt.UTC(),
			Extensions:     e.Extensions,
		})
	}

	tbs := tbsCertList{
		Version:             1, // v2 CRL
		Signature:           i.SignatureAlg,
		Issuer:              asn1.RawValue{FullBytes: issuerDER},
		ThisUpdate:          thisUpdate.UTC(),
		NextUpdate:          tmpl.NextUpdate.UTC(),
		RevokedCertificates: revoked,
	}
	if tmpl.NextUpdate.IsZero() {
		tbs.NextUpdate = time.Time{}
	}
	if tmpl.V1 {
		tbs.Version = 0
	} else {
		if tmpl.Number != nil {
			tbs.Extensions = append(tbs.Extensions, CRLNumberExtension(t, tmpl.Number))
		}
		tbs.Extensions = append(tbs.Extensions, AuthorityKeyIDExtension(t, i.SubjectKeyID))
		tbs.Extensions = append(tbs.Extensions, tmpl.Extensions...)
	}

	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		t.Fatalf("crltest: marshal TBSCertList: %v", err)
	}

	signature, err := i.Sign(tbsDER)
	if err != nil {
		t.Fatalf("crltest: sign CRL: %v", err)
	}

	outer := i.SignatureAlg
	if tmpl.OuterAlgorithm != nil {
		outer = *tmpl.OuterAlgorithm
	}

	// Keep the exact TBS bytes that were signed.
	crlDER, err := asn1.Marshal(certificateListRaw{
		TBSCertList:        asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: outer,
		SignatureValue:     asn1.BitString{Bytes: signature, BitLength: len(signature) * 8},
	})
	if err != nil {
		t.Fatalf("crltest: marshal CRL: %v", err)
	}
	return crlDER
}

// TamperSignature returns a copy of der with the last signature byte
// flipped.
func TamperSignature(der []byte) []byte {
	out := append([]byte(nil), der...)
	out[len(out)-1] ^= 0xFF
	return out
}
