// Package crypto provides the signature verification primitives used by the
// CRL engine. It supports classical schemes (RSA, ECDSA, EdDSA) and
// post-quantum schemes (ML-DSA, SLH-DSA) via the cloudflare/circl library.
package crypto

import (
	"encoding/asn1"

	"github.com/cockroachdb/errors"
)

// AlgorithmID identifies a signature scheme family, independent of the digest.
type AlgorithmID string

// Classical signature schemes.
const (
	AlgRSA     AlgorithmID = "rsa"
	AlgRSAPSS  AlgorithmID = "rsa-pss"
	AlgECDSA   AlgorithmID = "ecdsa"
	AlgEd25519 AlgorithmID = "ed25519"
	AlgEd448   AlgorithmID = "ed448"
)

// Post-quantum signature schemes (FIPS 204 ML-DSA).
const (
	AlgMLDSA44 AlgorithmID = "ml-dsa-44"
	AlgMLDSA65 AlgorithmID = "ml-dsa-65"
	AlgMLDSA87 AlgorithmID = "ml-dsa-87"
)

// Post-quantum signature schemes (FIPS 205 SLH-DSA, RFC 9814).
// s = small signatures, f = fast signing.
const (
	AlgSLHDSASHA2128s AlgorithmID = "slh-dsa-sha2-128s"
	AlgSLHDSASHA2128f AlgorithmID = "slh-dsa-sha2-128f"
	AlgSLHDSASHA2192s AlgorithmID = "slh-dsa-sha2-192s"
	AlgSLHDSASHA2192f AlgorithmID = "slh-dsa-sha2-192f"
	AlgSLHDSASHA2256s AlgorithmID = "slh-dsa-sha2-256s"
	AlgSLHDSASHA2256f AlgorithmID = "slh-dsa-sha2-256f"

	AlgSLHDSASHAKE128s AlgorithmID = "slh-dsa-shake-128s"
	AlgSLHDSASHAKE128f AlgorithmID = "slh-dsa-shake-128f"
	AlgSLHDSASHAKE192s AlgorithmID = "slh-dsa-shake-192s"
	AlgSLHDSASHAKE192f AlgorithmID = "slh-dsa-shake-192f"
	AlgSLHDSASHAKE256s AlgorithmID = "slh-dsa-shake-256s"
	AlgSLHDSASHAKE256f AlgorithmID = "slh-dsa-shake-256f"
)

// AlgUnknown represents an unknown or unsupported algorithm.
const AlgUnknown AlgorithmID = ""

// AlgorithmType categorizes algorithms.
type AlgorithmType int

const (
	TypeUnknown AlgorithmType = iota
	TypeClassical
	TypePQC
)

// algorithmInfo holds metadata about an algorithm.
type algorithmInfo struct {
	Type AlgorithmType
	// OID is the SubjectPublicKeyInfo algorithm. For EdDSA and the PQC
	// schemes it is also the signature algorithm.
	OID         asn1.ObjectIdentifier
	Name        string
	Description string
}

var (
	oidPublicKeyRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSigPQCBase     = []int{2, 16, 840, 1, 101, 3, 4, 3}
)

func pqcOID(last int) asn1.ObjectIdentifier {
	oid := make(asn1.ObjectIdentifier, 0, len(oidSigPQCBase)+1)
	oid = append(oid, oidSigPQCBase...)
	return append(oid, last)
}

var algorithms = map[AlgorithmID]algorithmInfo{
	AlgRSA: {
		Type:        TypeClassical,
		OID:         oidPublicKeyRSA,
		Name:        "RSA",
		Description: "RSA PKCS#1 v1.5",
	},
	AlgRSAPSS: {
		Type:        TypeClassical,
		OID:         asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10},
		Name:        "RSASSA-PSS",
		Description: "RSA probabilistic signature scheme",
	},
	AlgECDSA: {
		Type:        TypeClassical,
		OID:         oidPublicKeyECDSA,
		Name:        "ECDSA",
		Description: "Elliptic curve DSA",
	},
	AlgEd25519: {
		Type:        TypeClassical,
		OID:         asn1.ObjectIdentifier{1, 3, 101, 112},
		Name:        "Ed25519",
		Description: "EdDSA over Curve25519",
	},
	AlgEd448: {
		Type:        TypeClassical,
		OID:         asn1.ObjectIdentifier{1, 3, 101, 113},
		Name:        "Ed448",
		Description: "EdDSA over Curve448",
	},

	AlgMLDSA44: {Type: TypePQC, OID: pqcOID(17), Name: "ML-DSA-44", Description: "ML-DSA-44 (FIPS 204, NIST level 2)"},
	AlgMLDSA65: {Type: TypePQC, OID: pqcOID(18), Name: "ML-DSA-65", Description: "ML-DSA-65 (FIPS 204, NIST level 3)"},
	AlgMLDSA87: {Type: TypePQC, OID: pqcOID(19), Name: "ML-DSA-87", Description: "ML-DSA-87 (FIPS 204, NIST level 5)"},

	AlgSLHDSASHA2128s: {Type: TypePQC, OID: pqcOID(20), Name: "SLH-DSA-SHA2-128s", Description: "SLH-DSA SHA2 128 small"},
	AlgSLHDSASHA2128f: {Type: TypePQC, OID: pqcOID(21), Name: "SLH-DSA-SHA2-128f", Description: "SLH-DSA SHA2 128 fast"},
	AlgSLHDSASHA2192s: {Type: TypePQC, OID: pqcOID(22), Name: "SLH-DSA-SHA2-192s", Description: "SLH-DSA SHA2 192 small"},
	AlgSLHDSASHA2192f: {Type: TypePQC, OID: pqcOID(23), Name: "SLH-DSA-SHA2-192f", Description: "SLH-DSA SHA2 192 fast"},
	AlgSLHDSASHA2256s: {Type: TypePQC, OID: pqcOID(24), Name: "SLH-DSA-SHA2-256s", Description: "SLH-DSA SHA2 256 small"},
	AlgSLHDSASHA2256f: {Type: TypePQC, OID: pqcOID(25), Name: "SLH-DSA-SHA2-256f", Description: "SLH-DSA SHA2 256 fast"},

	AlgSLHDSASHAKE128s: {Type: TypePQC, OID: pqcOID(26), Name: "SLH-DSA-SHAKE-128s", Description: "SLH-DSA SHAKE 128 small"},
	AlgSLHDSASHAKE128f: {Type: TypePQC, OID: pqcOID(27), Name: "SLH-DSA-SHAKE-128f", Description: "SLH-DSA SHAKE 128 fast"},
	AlgSLHDSASHAKE192s: {Type: TypePQC, OID: pqcOID(28), Name: "SLH-DSA-SHAKE-192s", Description: "SLH-DSA SHAKE 192 small"},
	AlgSLHDSASHAKE192f: {Type: TypePQC, OID: pqcOID(29), Name: "SLH-DSA-SHAKE-192f", Description: "SLH-DSA SHAKE 192 fast"},
	AlgSLHDSASHAKE256s: {Type: TypePQC, OID: pqcOID(30), Name: "SLH-DSA-SHAKE-256s", Description: "SLH-DSA SHAKE 256 small"},
	AlgSLHDSASHAKE256f: {Type: TypePQC, OID: pqcOID(31), Name: "SLH-DSA-SHAKE-256f", Description: "SLH-DSA SHAKE 256 fast"},
}

// IsValid returns true if the algorithm is known.
func (a AlgorithmID) IsValid() bool {
	_, ok := algorithms[a]
	return ok
}

// Type returns the algorithm type.
func (a AlgorithmID) Type() AlgorithmType {
	if info, ok := algorithms[a]; ok {
		return info.Type
	}
	return TypeUnknown
}

// IsPQC returns true for post-quantum algorithms.
func (a AlgorithmID) IsPQC() bool {
	return a.Type() == TypePQC
}

// IsSLHDSA returns true for any SLH-DSA parameter set.
func (a AlgorithmID) IsSLHDSA() bool {
	_, ok := slhdsaIDs[a]
	return ok
}

// OID returns the public key OID for the algorithm.
func (a AlgorithmID) OID() asn1.ObjectIdentifier {
	if info, ok := algorithms[a]; ok {
		return info.OID
	}
	return nil
}

// Name returns the display name, e.g. "ML-DSA-65".
func (a AlgorithmID) Name() string {
	if info, ok := algorithms[a]; ok {
		return info.Name
	}
	return string(a)
}

// Description returns a human-readable description.
func (a AlgorithmID) Description() string {
	if info, ok := algorithms[a]; ok {
		return info.Description
	}
	return "unknown algorithm"
}

// String implements fmt.Stringer.
func (a AlgorithmID) String() string {
	return string(a)
}

// ParseAlgorithm parses an algorithm string.
func ParseAlgorithm(s string) (AlgorithmID, error) {
	alg := AlgorithmID(s)
	if !alg.IsValid() {
		return AlgUnknown, errors.Newf("unknown algorithm: %s", s)
	}
	return alg, nil
}

// AlgorithmFromOID returns the AlgorithmID for a given OID.
// Returns AlgUnknown if the OID is not recognized.
func AlgorithmFromOID(oid asn1.ObjectIdentifier) AlgorithmID {
	for alg, info := range algorithms {
		if oid.Equal(info.OID) {
			return alg
		}
	}
	return AlgUnknown
}
