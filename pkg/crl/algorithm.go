package crl

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	pkicrypto "github.com/remiblancher/qcrl/pkg/crypto"
)

const opResolve = "resolve"

// Capability is a set of optional signature scheme families a Resolver
// accepts. The zero value accepts only the baseline RSA, ECDSA and Ed25519
// schemes.
type Capability uint8

const (
	// CapabilityRSAPSS enables RSASSA-PSS with explicit parameters.
	CapabilityRSAPSS Capability = 1 << iota
	// CapabilityEd448 enables Ed448.
	CapabilityEd448
	// CapabilityPQC enables ML-DSA and SLH-DSA.
	CapabilityPQC

	CapabilityNone Capability = 0
	CapabilityAll             = CapabilityRSAPSS | CapabilityEd448 | CapabilityPQC
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapabilityRSAPSS, "rsa-pss"},
	{CapabilityEd448, "ed448"},
	{CapabilityPQC, "pqc"},
}

// Has reports whether all of o is enabled in c.
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

// String returns the comma-separated capability names.
func (c Capability) String() string {
	var names []string
	for _, n := range capabilityNames {
		if c.Has(n.c) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseCapabilities parses capability names such as "rsa-pss", "ed448",
// "pqc" or "all".
func ParseCapabilities(names ...string) (Capability, error) {
	var c Capability
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			switch name {
			case "", "none":
				continue
			case "all":
				c |= CapabilityAll
				continue
			}
			found := false
			for _, n := range capabilityNames {
				if n.name == name {
					c |= n.c
					found = true
					break
				}
			}
			if !found {
				return 0, errors.Newf("unknown capability: %q", name)
			}
		}
	}
	return c, nil
}

// DigestAlgorithm names the digest of a signature scheme. It is empty for
// schemes that sign the message directly.
type DigestAlgorithm string

const (
	DigestNone    DigestAlgorithm = ""
	DigestMD5     DigestAlgorithm = "MD5"
	DigestSHA1    DigestAlgorithm = "SHA1"
	DigestSHA224  DigestAlgorithm = "SHA224"
	DigestSHA256  DigestAlgorithm = "SHA256"
	DigestSHA384  DigestAlgorithm = "SHA384"
	DigestSHA512  DigestAlgorithm = "SHA512"
	DigestSHA3224 DigestAlgorithm = "SHA3-224"
	DigestSHA3256 DigestAlgorithm = "SHA3-256"
	DigestSHA3384 DigestAlgorithm = "SHA3-384"
	DigestSHA3512 DigestAlgorithm = "SHA3-512"
)

var digestHashes = map[DigestAlgorithm]crypto.Hash{
	DigestMD5:     crypto.MD5,
	DigestSHA1:    crypto.SHA1,
	DigestSHA224:  crypto.SHA224,
	DigestSHA256:  crypto.SHA256,
	DigestSHA384:  crypto.SHA384,
	DigestSHA512:  crypto.SHA512,
	DigestSHA3224: crypto.SHA3_224,
	DigestSHA3256: crypto.SHA3_256,
	DigestSHA3384: crypto.SHA3_384,
	DigestSHA3512: crypto.SHA3_512,
}

// Hash returns the crypto.Hash of d, or 0 for DigestNone.
func (d DigestAlgorithm) Hash() crypto.Hash {
	return digestHashes[d]
}

// SignatureAlgorithm is a key algorithm paired with a digest.
type SignatureAlgorithm struct {
	Key    pkicrypto.AlgorithmID
	Digest DigestAlgorithm
}

// String returns names such as "RSA-SHA256", "ECDSA-SHA3-256", "Ed25519"
// or "ML-DSA-65".
func (a SignatureAlgorithm) String() string {
	if a.Key == pkicrypto.AlgUnknown {
		return "unknown"
	}
	if a.Digest == DigestNone {
		return a.Key.Name()
	}
	return a.Key.Name() + "-" + string(a.Digest)
}

// Scheme is a fully resolved signature scheme, ready for verification.
type Scheme struct {
	Algorithm SignatureAlgorithm
	Hash      crypto.Hash
	// PSS is set for RSASSA-PSS only.
	PSS *rsa.PSSOptions
}

type schemeEntry struct {
	oid    asn1.ObjectIdentifier
	key    pkicrypto.AlgorithmID
	digest DigestAlgorithm
	needs  Capability
}

var (
	oidSignatureRSAPSS = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	oidMGF1            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}

	oidSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	oidSHA224 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}
)

var pssDigests = []struct {
	oid    asn1.ObjectIdentifier
	digest DigestAlgorithm
}{
	{oidSHA1, DigestSHA1},
	{oidSHA224, DigestSHA224},
	{oidSHA256, DigestSHA256},
	{oidSHA384, DigestSHA384},
	{oidSHA512, DigestSHA512},
}

var signatureSchemes = []schemeEntry{
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 4}, pkicrypto.AlgRSA, DigestMD5, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}, pkicrypto.AlgRSA, DigestSHA1, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 14}, pkicrypto.AlgRSA, DigestSHA224, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}, pkicrypto.AlgRSA, DigestSHA256, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}, pkicrypto.AlgRSA, DigestSHA384, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}, pkicrypto.AlgRSA, DigestSHA512, CapabilityNone},

	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}, pkicrypto.AlgECDSA, DigestSHA1, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 1}, pkicrypto.AlgECDSA, DigestSHA224, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}, pkicrypto.AlgECDSA, DigestSHA256, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}, pkicrypto.AlgECDSA, DigestSHA384, CapabilityNone},
	{asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}, pkicrypto.AlgECDSA, DigestSHA512, CapabilityNone},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 9}, pkicrypto.AlgECDSA, DigestSHA3224, CapabilityNone},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 10}, pkicrypto.AlgECDSA, DigestSHA3256, CapabilityNone},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 11}, pkicrypto.AlgECDSA, DigestSHA3384, CapabilityNone},
	{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 12}, pkicrypto.AlgECDSA, DigestSHA3512, CapabilityNone},

	{pkicrypto.AlgEd25519.OID(), pkicrypto.AlgEd25519, DigestNone, CapabilityNone},
	{pkicrypto.AlgEd448.OID(), pkicrypto.AlgEd448, DigestNone, CapabilityEd448},
	{oidSignatureRSAPSS, pkicrypto.AlgRSAPSS, DigestNone, CapabilityRSAPSS},
}

func init() {
	// The ML-DSA and SLH-DSA signature OIDs are also their key OIDs.
	for _, alg := range []pkicrypto.AlgorithmID{
		pkicrypto.AlgMLDSA44, pkicrypto.AlgMLDSA65, pkicrypto.AlgMLDSA87,
		pkicrypto.AlgSLHDSASHA2128s, pkicrypto.AlgSLHDSASHA2128f,
		pkicrypto.AlgSLHDSASHA2192s, pkicrypto.AlgSLHDSASHA2192f,
		pkicrypto.AlgSLHDSASHA2256s, pkicrypto.AlgSLHDSASHA2256f,
		pkicrypto.AlgSLHDSASHAKE128s, pkicrypto.AlgSLHDSASHAKE128f,
		pkicrypto.AlgSLHDSASHAKE192s, pkicrypto.AlgSLHDSASHAKE192f,
		pkicrypto.AlgSLHDSASHAKE256s, pkicrypto.AlgSLHDSASHAKE256f,
	} {
		signatureSchemes = append(signatureSchemes, schemeEntry{alg.OID(), alg, DigestNone, CapabilityPQC})
	}
}

// Resolver maps signature AlgorithmIdentifiers to schemes. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	caps Capability
}

// NewResolver returns a resolver accepting the baseline schemes plus caps.
func NewResolver(caps Capability) *Resolver {
	return &Resolver{caps: caps}
}

// Capabilities returns the enabled capability set.
func (r *Resolver) Capabilities() Capability {
	return r.caps
}

// Resolve returns the scheme for ai. Unknown OIDs, schemes whose capability
// is not enabled and unsupported PSS parameters fail with
// ErrUnsupportedAlgorithm.
func (r *Resolver) Resolve(ai pkix.AlgorithmIdentifier) (*Scheme, error) {
	var entry *schemeEntry
	for i := range signatureSchemes {
		if signatureSchemes[i].oid.Equal(ai.Algorithm) {
			entry = &signatureSchemes[i]
			break
		}
	}
	if entry == nil {
		return nil, newError(opResolve, KindUnsupportedAlgorithm, "unknown signature algorithm OID %s", ai.Algorithm)
	}
	if !r.caps.Has(entry.needs) {
		logger.KV(xlog.DEBUG, "reason", "capability_disabled", "algorithm", entry.key.Name(), "needs", entry.needs.String())
		return nil, newError(opResolve, KindUnsupportedAlgorithm,
			"%s requires capability %q", entry.key.Name(), entry.needs.String())
	}

	if entry.key == pkicrypto.AlgRSAPSS {
		return resolvePSS(ai.Parameters)
	}

	return &Scheme{
		Algorithm: SignatureAlgorithm{Key: entry.key, Digest: entry.digest},
		Hash:      entry.digest.Hash(),
	}, nil
}

// pssParameters reflects the parameters in an AlgorithmIdentifier that
// specifies RSA PSS. See RFC 3447, Appendix A.2.3. Absent hash and MGF
// fields default to SHA-1.
type pssParameters struct {
	Hash         pkix.AlgorithmIdentifier `asn1:"explicit,tag:0,optional"`
	MGF          pkix.AlgorithmIdentifier `asn1:"explicit,tag:1,optional"`
	SaltLength   int                      `asn1:"explicit,tag:2,optional,default:20"`
	TrailerField int                      `asn1:"optional,explicit,tag:3,default:1"`
}

func resolvePSS(params asn1.RawValue) (*Scheme, error) {
	p := pssParameters{SaltLength: 20, TrailerField: 1}
	if len(params.FullBytes) > 0 && params.Tag != asn1.TagNull {
		rest, err := asn1.Unmarshal(params.FullBytes, &p)
		if err != nil || len(rest) > 0 {
			return nil, newError(opResolve, KindUnsupportedAlgorithm, "invalid RSASSA-PSS parameters")
		}
	}

	digest := DigestSHA1
	if len(p.Hash.Algorithm) > 0 {
		var ok bool
		if digest, ok = pssDigest(p.Hash.Algorithm); !ok {
			return nil, newError(opResolve, KindUnsupportedAlgorithm, "unsupported RSASSA-PSS hash %s", p.Hash.Algorithm)
		}
	}

	mgfDigest := DigestSHA1
	if len(p.MGF.Algorithm) > 0 {
		if !p.MGF.Algorithm.Equal(oidMGF1) {
			return nil, newError(opResolve, KindUnsupportedAlgorithm, "unsupported RSASSA-PSS mask generation %s", p.MGF.Algorithm)
		}
		var mgfHash pkix.AlgorithmIdentifier
		if _, err := asn1.Unmarshal(p.MGF.Parameters.FullBytes, &mgfHash); err != nil {
			return nil, newError(opResolve, KindUnsupportedAlgorithm, "invalid MGF1 parameters")
		}
		var ok bool
		if mgfDigest, ok = pssDigest(mgfHash.Algorithm); !ok {
			return nil, newError(opResolve, KindUnsupportedAlgorithm, "unsupported MGF1 hash %s", mgfHash.Algorithm)
		}
	}
	if mgfDigest != digest {
		return nil, newError(opResolve, KindUnsupportedAlgorithm, "RSASSA-PSS MGF1 hash %s differs from message hash %s", mgfDigest, digest)
	}
	if p.TrailerField != 1 {
		return nil, newError(opResolve, KindUnsupportedAlgorithm, "unsupported RSASSA-PSS trailer field %d", p.TrailerField)
	}
	if p.SaltLength < 0 {
		return nil, newError(opResolve, KindUnsupportedAlgorithm, "negative RSASSA-PSS salt length")
	}

	h := digest.Hash()
	return &Scheme{
		Algorithm: SignatureAlgorithm{Key: pkicrypto.AlgRSAPSS, Digest: digest},
		Hash:      h,
		PSS:       &rsa.PSSOptions{SaltLength: p.SaltLength, Hash: h},
	}, nil
}

func pssDigest(oid asn1.ObjectIdentifier) (DigestAlgorithm, bool) {
	for _, d := range pssDigests {
		if d.oid.Equal(oid) {
			return d.digest, true
		}
	}
	return DigestNone, false
}
