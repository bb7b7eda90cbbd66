package crl

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/effective-security/xlog"
)

// InvalidityReason names the first condition that made a CRL invalid.
type InvalidityReason string

// Invalidity reasons, in evaluation order.
const (
	InvalidityNone            InvalidityReason = ""
	InvalidityIssuerMismatch  InvalidityReason = "issuer name does not match the CRL issuer"
	InvaliditySignature       InvalidityReason = "signature does not verify with the issuer key"
	InvalidityCRLSign         InvalidityReason = "issuer key usage does not permit cRLSign"
	InvalidityUnknownCritical InvalidityReason = "CRL carries an unrecognized critical extension"
)

// Validity is the immutable outcome of validating a CRL against a
// candidate issuer. It is safe for concurrent readers.
type Validity struct {
	// IssuerToken is the candidate, set only when its name matched and the
	// signature verified with its key.
	IssuerToken CertificateIdentity
	// Issuer is the issuer name carried by the CRL.
	Issuer             pkix.RDNSequence
	SignatureAlgorithm SignatureAlgorithm
	ThisUpdate         time.Time
	NextUpdate         time.Time
	ExpiredCertsOnCRL  *time.Time

	// DistributionPointURL comes from the IssuingDistributionPoint extension.
	DistributionPointURL string
	// SourceURL is where the caller obtained the CRL.
	SourceURL string

	IssuerPrincipalMatches   bool
	SignatureIntact          bool
	CRLSignKeyUsage          bool
	UnknownCriticalExtension bool
	Valid                    bool
	InvalidityReason         InvalidityReason

	CRLNumber  *big.Int
	EntryCount int
	IsDelta    bool
	// Digest is the SHA-256 of the DER encoding.
	Digest [32]byte

	index *Index
}

// URL returns the IssuingDistributionPoint URL when present, else SourceURL.
func (v *Validity) URL() string {
	if v.DistributionPointURL != "" {
		return v.DistributionPointURL
	}
	return v.SourceURL
}

// Lookup returns the revoked entry for serial.
func (v *Validity) Lookup(serial *big.Int) (*RevokedEntry, bool) {
	if v == nil {
		return nil, false
	}
	return v.index.Lookup(serial)
}

// LookupRevocation returns the revoked entry for serial in v. A serial that
// is not listed yields (nil, false).
func LookupRevocation(v *Validity, serial *big.Int) (*RevokedEntry, bool) {
	return v.Lookup(serial)
}

// Config holds validator settings.
type Config struct {
	// Capabilities enables optional signature scheme families.
	Capabilities Capability
}

// Validator decodes and validates CRLs. It has no mutable state and is
// safe for concurrent use.
type Validator struct {
	resolver *Resolver
}

// NewValidator returns a validator. A nil cfg enables no optional
// capability.
func NewValidator(cfg *Config) *Validator {
	var caps Capability
	if cfg != nil {
		caps = cfg.Capabilities
	}
	return &Validator{resolver: NewResolver(caps)}
}

// Resolver returns the validator's algorithm resolver.
func (v *Validator) Resolver() *Resolver {
	return v.resolver
}

var defaultValidator = NewValidator(nil)

// DecodeAndValidate decodes raw and validates it against candidate with a
// validator that has no optional capability.
func DecodeAndValidate(raw []byte, sourceURL string, candidate CertificateIdentity) (*Validity, error) {
	return defaultValidator.DecodeAndValidate(raw, sourceURL, candidate)
}

// ValidateRaw is DecodeAndValidate for a RawCRL.
func (v *Validator) ValidateRaw(raw RawCRL, candidate CertificateIdentity) (*Validity, error) {
	return v.DecodeAndValidate(raw.Data, raw.SourceURL, candidate)
}

// DecodeAndValidate decodes raw (DER or PEM) and validates it against
// candidate.
//
// Decode failures, unresolvable signature algorithms and unusable keys are
// errors. Every other outcome, including a failed signature, is a Validity
// with Valid set to false and an InvalidityReason.
func (v *Validator) DecodeAndValidate(raw []byte, sourceURL string, candidate CertificateIdentity) (*Validity, error) {
	rl, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return v.Validate(rl, sourceURL, candidate)
}

// Validate validates an already decoded CRL against candidate.
func (v *Validator) Validate(rl *RevocationList, sourceURL string, candidate CertificateIdentity) (*Validity, error) {
	scheme, err := v.resolver.Resolve(rl.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}

	// Validity owns copies of everything it takes from rl.
	val := &Validity{
		Issuer:                   cloneName(rl.Issuer),
		SignatureAlgorithm:       scheme.Algorithm,
		ThisUpdate:               rl.ThisUpdate,
		NextUpdate:               rl.NextUpdate,
		DistributionPointURL:     rl.DistributionPointURL(),
		SourceURL:                sourceURL,
		UnknownCriticalExtension: rl.UnknownCriticalExtension,
		EntryCount:               len(rl.Entries),
		IsDelta:                  rl.IsDelta(),
		Digest:                   sha256.Sum256(rl.Raw),
		index:                    NewIndex(rl.Entries),
	}
	if rl.ExpiredCertsOnCRL != nil {
		t := *rl.ExpiredCertsOnCRL
		val.ExpiredCertsOnCRL = &t
	}
	if rl.Number != nil {
		val.CRLNumber = new(big.Int).Set(rl.Number)
	}

	if candidate != nil {
		val.CRLSignKeyUsage = candidate.CRLSign()
		if NamesEqual(rl.Issuer, candidate.Subject()) {
			val.IssuerPrincipalMatches = true
			// Verification only runs against a key whose name matched.
			ok, err := VerifySignature(scheme, candidate.PublicKey(), rl.RawTBSRevocationList, rl.Signature)
			if err != nil {
				return nil, err
			}
			val.SignatureIntact = ok
			if ok {
				val.IssuerToken = candidate
			}
		}
	}

	switch {
	case !val.IssuerPrincipalMatches:
		val.InvalidityReason = InvalidityIssuerMismatch
	case !val.SignatureIntact:
		val.InvalidityReason = InvaliditySignature
	case !val.CRLSignKeyUsage:
		val.InvalidityReason = InvalidityCRLSign
	case val.UnknownCriticalExtension:
		val.InvalidityReason = InvalidityUnknownCritical
	default:
		val.Valid = true
	}

	logger.KV(xlog.DEBUG,
		"status", "validated",
		"valid", val.Valid,
		"reason", string(val.InvalidityReason),
		"algorithm", val.SignatureAlgorithm.String(),
		"entries", val.EntryCount)

	return val, nil
}
