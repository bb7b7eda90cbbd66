package crl

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/effective-security/xlog"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// CRL extension OIDs (RFC 5280 §5.2, RFC 5280 §4.2.2.1, X.509 §9.6.2.9).
var (
	OIDIssuerAltName            = asn1.ObjectIdentifier{2, 5, 29, 18}
	OIDCRLNumber                = asn1.ObjectIdentifier{2, 5, 29, 20}
	OIDDeltaCRLIndicator        = asn1.ObjectIdentifier{2, 5, 29, 27}
	OIDIssuingDistributionPoint = asn1.ObjectIdentifier{2, 5, 29, 28}
	OIDAuthorityKeyIdentifier   = asn1.ObjectIdentifier{2, 5, 29, 35}
	OIDFreshestCRL              = asn1.ObjectIdentifier{2, 5, 29, 46}
	OIDExpiredCertsOnCRL        = asn1.ObjectIdentifier{2, 5, 29, 60}
	OIDAuthorityInfoAccess      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}
)

// CRL entry extension OIDs (RFC 5280 §5.3).
var (
	OIDReasonCode          = asn1.ObjectIdentifier{2, 5, 29, 21}
	OIDHoldInstructionCode = asn1.ObjectIdentifier{2, 5, 29, 23}
	OIDInvalidityDate      = asn1.ObjectIdentifier{2, 5, 29, 24}
	OIDCertificateIssuer   = asn1.ObjectIdentifier{2, 5, 29, 29}
)

// GeneralName tags used here.
var (
	tagGeneralNameURI  = cbasn1.Tag(6).ContextSpecific()
	tagGeneralNameDir  = cbasn1.Tag(4).ContextSpecific().Constructed()
	tagContext0Cons    = cbasn1.Tag(0).ContextSpecific().Constructed()
	tagContext0Prim    = cbasn1.Tag(0).ContextSpecific()
	tagIDPOnlyUser     = cbasn1.Tag(1).ContextSpecific()
	tagIDPOnlyCA       = cbasn1.Tag(2).ContextSpecific()
	tagIDPOnlySome     = cbasn1.Tag(3).ContextSpecific()
	tagIDPIndirect     = cbasn1.Tag(4).ContextSpecific()
	tagIDPOnlyAttrCert = cbasn1.Tag(5).ContextSpecific()
)

// applyCRLExtension decodes a recognized CRL extension into rl and reports
// whether the OID is recognized. A malformed value of a recognized
// extension leaves the derived field empty and is not an error.
func applyCRLExtension(rl *RevocationList, ext pkix.Extension) bool {
	val := cryptobyte.String(ext.Value)

	switch {
	case ext.Id.Equal(OIDCRLNumber):
		n := new(big.Int)
		if val.ReadASN1Integer(n) && val.Empty() {
			rl.Number = n
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDDeltaCRLIndicator):
		n := new(big.Int)
		if val.ReadASN1Integer(n) && val.Empty() {
			rl.BaseCRLNumber = n
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDAuthorityKeyIdentifier):
		if id, ok := parseAuthorityKeyID(val); ok {
			rl.AuthorityKeyID = id
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDIssuingDistributionPoint):
		if idp, ok := parseIssuingDistributionPoint(val); ok {
			rl.DistributionPoint = idp
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDExpiredCertsOnCRL):
		// Only GeneralizedTime is honored.
		var t time.Time
		if val.PeekASN1Tag(cbasn1.GeneralizedTime) && val.ReadASN1GeneralizedTime(&t) && val.Empty() {
			rl.ExpiredCertsOnCRL = &t
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDFreshestCRL):
		if urls, ok := parseDistributionPoints(val); ok {
			rl.FreshestCRL = urls
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDAuthorityInfoAccess):
		if urls, ok := parseAuthorityInfoAccess(val); ok {
			rl.AuthorityInfoAccess = urls
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDIssuerAltName):
		// Recognized; the raw value stays in Extensions.

	default:
		return false
	}
	return true
}

// applyEntryExtension decodes a recognized entry extension into rc and
// reports whether the OID is recognized.
func applyEntryExtension(rc *RevokedEntry, ext pkix.Extension) bool {
	val := cryptobyte.String(ext.Value)

	switch {
	case ext.Id.Equal(OIDReasonCode):
		var code int
		if val.ReadASN1Enum(&code) && val.Empty() {
			r := ReasonCode(code)
			rc.Reason = &r
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDInvalidityDate):
		var t time.Time
		if val.ReadASN1GeneralizedTime(&t) && val.Empty() {
			rc.InvalidityDate = &t
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDCertificateIssuer):
		if name, ok := parseDirectoryName(val); ok {
			rc.CertificateIssuer = name
		} else {
			logBadExtension(ext)
		}

	case ext.Id.Equal(OIDHoldInstructionCode):
		var oid asn1.ObjectIdentifier
		if val.ReadASN1ObjectIdentifier(&oid) && val.Empty() {
			rc.HoldInstruction = oid
		} else {
			logBadExtension(ext)
		}

	default:
		return false
	}
	return true
}

func logBadExtension(ext pkix.Extension) {
	logger.KV(xlog.DEBUG, "reason", "malformed_extension", "oid", ext.Id.String(), "critical", ext.Critical)
}

// parseAuthorityKeyID returns the keyIdentifier of an AuthorityKeyIdentifier.
func parseAuthorityKeyID(val cryptobyte.String) ([]byte, bool) {
	var seq cryptobyte.String
	if !val.ReadASN1(&seq, cbasn1.SEQUENCE) || !val.Empty() {
		return nil, false
	}
	var id cryptobyte.String
	var present bool
	if !seq.ReadOptionalASN1(&id, &present, tagContext0Prim) {
		return nil, false
	}
	if !present {
		return nil, true
	}
	return []byte(id), true
}

// parseIssuingDistributionPoint parses
//
//	IssuingDistributionPoint ::= SEQUENCE {
//	     distributionPoint          [0] DistributionPointName OPTIONAL,
//	     onlyContainsUserCerts      [1] BOOLEAN DEFAULT FALSE,
//	     onlyContainsCACerts        [2] BOOLEAN DEFAULT FALSE,
//	     onlySomeReasons            [3] ReasonFlags OPTIONAL,
//	     indirectCRL                [4] BOOLEAN DEFAULT FALSE,
//	     onlyContainsAttributeCerts [5] BOOLEAN DEFAULT FALSE }
func parseIssuingDistributionPoint(val cryptobyte.String) (*IssuingDistributionPoint, bool) {
	var seq cryptobyte.String
	if !val.ReadASN1(&seq, cbasn1.SEQUENCE) || !val.Empty() {
		return nil, false
	}
	idp := &IssuingDistributionPoint{}

	var dpName cryptobyte.String
	var present bool
	if !seq.ReadOptionalASN1(&dpName, &present, tagContext0Cons) {
		return nil, false
	}
	if present {
		urls, ok := parseDistributionPointName(dpName)
		if !ok {
			return nil, false
		}
		idp.FullName = urls
	}

	flags := []struct {
		tag cbasn1.Tag
		out *bool
	}{
		{tagIDPOnlyUser, &idp.OnlyContainsUserCerts},
		{tagIDPOnlyCA, &idp.OnlyContainsCACerts},
	}
	for _, f := range flags {
		if !readImplicitBool(&seq, f.tag, f.out) {
			return nil, false
		}
	}

	var reasons cryptobyte.String
	if !seq.ReadOptionalASN1(&reasons, &present, tagIDPOnlySome) {
		return nil, false
	}
	if present {
		codes, ok := parseReasonFlags(reasons)
		if !ok {
			return nil, false
		}
		idp.OnlySomeReasons = codes
	}

	if !readImplicitBool(&seq, tagIDPIndirect, &idp.IndirectCRL) ||
		!readImplicitBool(&seq, tagIDPOnlyAttrCert, &idp.OnlyContainsAttributeCerts) {
		return nil, false
	}
	if !seq.Empty() {
		return nil, false
	}
	return idp, true
}

// parseDistributionPointName returns the URIs of a fullName choice. A
// nameRelativeToCRLIssuer yields no URI.
func parseDistributionPointName(dpName cryptobyte.String) ([]string, bool) {
	var fullName cryptobyte.String
	var present bool
	if !dpName.ReadOptionalASN1(&fullName, &present, tagContext0Cons) {
		return nil, false
	}
	if !present {
		return nil, true
	}
	var urls []string
	for !fullName.Empty() {
		var gn cryptobyte.String
		var tag cbasn1.Tag
		if !fullName.ReadAnyASN1(&gn, &tag) {
			return nil, false
		}
		if tag == tagGeneralNameURI {
			urls = append(urls, string(gn))
		}
	}
	return urls, true
}

// parseDistributionPoints parses CRLDistributionPoints syntax, as used by
// FreshestCRL, and returns all fullName URIs.
func parseDistributionPoints(val cryptobyte.String) ([]string, bool) {
	var seq cryptobyte.String
	if !val.ReadASN1(&seq, cbasn1.SEQUENCE) || !val.Empty() {
		return nil, false
	}
	var urls []string
	for !seq.Empty() {
		var dp cryptobyte.String
		if !seq.ReadASN1(&dp, cbasn1.SEQUENCE) {
			return nil, false
		}
		var dpName cryptobyte.String
		var present bool
		if !dp.ReadOptionalASN1(&dpName, &present, tagContext0Cons) {
			return nil, false
		}
		if present {
			u, ok := parseDistributionPointName(dpName)
			if !ok {
				return nil, false
			}
			urls = append(urls, u...)
		}
	}
	return urls, true
}

// parseAuthorityInfoAccess returns the URI access locations.
func parseAuthorityInfoAccess(val cryptobyte.String) ([]string, bool) {
	var seq cryptobyte.String
	if !val.ReadASN1(&seq, cbasn1.SEQUENCE) || !val.Empty() {
		return nil, false
	}
	var urls []string
	for !seq.Empty() {
		var ad cryptobyte.String
		var method asn1.ObjectIdentifier
		if !seq.ReadASN1(&ad, cbasn1.SEQUENCE) || !ad.ReadASN1ObjectIdentifier(&method) {
			return nil, false
		}
		var gn cryptobyte.String
		var tag cbasn1.Tag
		if !ad.ReadAnyASN1(&gn, &tag) {
			return nil, false
		}
		if tag == tagGeneralNameURI {
			urls = append(urls, string(gn))
		}
	}
	return urls, true
}

// parseDirectoryName returns the first directoryName of a GeneralNames.
func parseDirectoryName(val cryptobyte.String) (pkix.RDNSequence, bool) {
	var names cryptobyte.String
	if !val.ReadASN1(&names, cbasn1.SEQUENCE) || !val.Empty() {
		return nil, false
	}
	for !names.Empty() {
		var gn cryptobyte.String
		var tag cbasn1.Tag
		if !names.ReadAnyASN1(&gn, &tag) {
			return nil, false
		}
		if tag != tagGeneralNameDir {
			continue
		}
		// Name is a CHOICE, so the [4] tag is explicit.
		name, err := ParseName(gn)
		if err != nil {
			return nil, false
		}
		return name, true
	}
	return nil, false
}

func readImplicitBool(s *cryptobyte.String, tag cbasn1.Tag, out *bool) bool {
	var v cryptobyte.String
	var present bool
	if !s.ReadOptionalASN1(&v, &present, tag) {
		return false
	}
	if !present {
		return true
	}
	if len(v) != 1 {
		return false
	}
	*out = v[0] != 0
	return true
}

// parseReasonFlags decodes the content octets of a ReasonFlags BIT STRING.
func parseReasonFlags(content cryptobyte.String) ([]ReasonCode, bool) {
	if len(content) == 0 || content[0] > 7 {
		return nil, false
	}
	bits := content[1:]
	var codes []ReasonCode
	for i := 1; i < len(reasonFlagBits); i++ {
		byteIdx := i / 8
		if byteIdx >= len(bits) {
			break
		}
		if bits[byteIdx]&(0x80>>(uint(i)%8)) != 0 {
			codes = append(codes, reasonFlagBits[i])
		}
	}
	return codes, true
}
