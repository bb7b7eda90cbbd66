// Package crl decodes X.509 Certificate Revocation Lists, verifies them against
// a candidate issuer and answers per-serial revocation queries.
//
// The package performs no I/O. It is handed bytes and a certificate identity
// and returns an immutable, queryable Validity.
package crl

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/remiblancher/qcrl", "crl")

// RawCRL is an undecoded CRL together with where it came from.
type RawCRL struct {
	Data      []byte
	SourceURL string
}

// RevocationList is a decoded CRL.
//
// Raw, RawTBSRevocationList and RawIssuer alias the decoded input; the
// signature is always verified over RawTBSRevocationList as received.
type RevocationList struct {
	Raw                  []byte
	RawTBSRevocationList []byte
	RawIssuer            []byte

	// Version is 1 for CRLs without a version field and 2 otherwise.
	Version int
	Issuer  pkix.RDNSequence

	ThisUpdate time.Time
	// NextUpdate is zero when absent.
	NextUpdate time.Time

	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte

	Extensions               []pkix.Extension
	CriticalExtensions       []asn1.ObjectIdentifier
	UnknownCriticalExtension bool

	ExpiredCertsOnCRL   *time.Time
	DistributionPoint   *IssuingDistributionPoint
	Number              *big.Int
	AuthorityKeyID      []byte
	BaseCRLNumber       *big.Int
	FreshestCRL         []string
	AuthorityInfoAccess []string

	Entries []RevokedEntry
}

// IsDelta reports whether the CRL carries a DeltaCRLIndicator.
func (rl *RevocationList) IsDelta() bool {
	return rl.BaseCRLNumber != nil
}

// DistributionPointURL returns the first URI of the IssuingDistributionPoint
// full name, or "".
func (rl *RevocationList) DistributionPointURL() string {
	if rl.DistributionPoint == nil {
		return ""
	}
	return rl.DistributionPoint.URL()
}

// RevokedEntry is one revokedCertificates element.
type RevokedEntry struct {
	SerialNumber   *big.Int
	RevocationTime time.Time
	// Reason is nil when the entry has no reasonCode extension.
	Reason         *ReasonCode
	InvalidityDate *time.Time
	// CertificateIssuer is set on indirect CRLs, either by the entry itself
	// or inherited from the preceding entry that named it.
	CertificateIssuer pkix.RDNSequence
	HoldInstruction   asn1.ObjectIdentifier
	Extensions        []pkix.Extension
}

func (e *RevokedEntry) clone() *RevokedEntry {
	c := *e
	if e.SerialNumber != nil {
		c.SerialNumber = new(big.Int).Set(e.SerialNumber)
	}
	if e.Reason != nil {
		r := *e.Reason
		c.Reason = &r
	}
	if e.InvalidityDate != nil {
		d := *e.InvalidityDate
		c.InvalidityDate = &d
	}
	c.CertificateIssuer = cloneName(e.CertificateIssuer)
	if e.HoldInstruction != nil {
		c.HoldInstruction = append(asn1.ObjectIdentifier(nil), e.HoldInstruction...)
	}
	if e.Extensions != nil {
		c.Extensions = make([]pkix.Extension, len(e.Extensions))
		for i, ext := range e.Extensions {
			c.Extensions[i] = pkix.Extension{
				Id:       append(asn1.ObjectIdentifier(nil), ext.Id...),
				Critical: ext.Critical,
				Value:    append([]byte(nil), ext.Value...),
			}
		}
	}
	return &c
}

// cloneName copies name down to its attribute slices. Attribute values are
// strings or other immutable values once decoded.
func cloneName(name pkix.RDNSequence) pkix.RDNSequence {
	if name == nil {
		return nil
	}
	out := make(pkix.RDNSequence, len(name))
	for i, rdn := range name {
		out[i] = append(pkix.RelativeDistinguishedNameSET(nil), rdn...)
		for j := range out[i] {
			out[i][j].Type = append(asn1.ObjectIdentifier(nil), rdn[j].Type...)
		}
	}
	return out
}

// IssuingDistributionPoint is the parsed IssuingDistributionPoint extension.
type IssuingDistributionPoint struct {
	// FullName holds the URIs of distributionPoint.fullName, in order.
	FullName                   []string
	OnlyContainsUserCerts      bool
	OnlyContainsCACerts        bool
	OnlySomeReasons            []ReasonCode
	IndirectCRL                bool
	OnlyContainsAttributeCerts bool
}

// URL returns the first fullName URI, or "".
func (p *IssuingDistributionPoint) URL() string {
	if p == nil || len(p.FullName) == 0 {
		return ""
	}
	return p.FullName[0]
}
