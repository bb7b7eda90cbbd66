package crl

import (
	"bytes"
	"crypto"
	"crypto/x509/pkix"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CertificateIdentity is the view of an issuer candidate the engine needs.
// Implementations decide how the subject and key are extracted.
type CertificateIdentity interface {
	// Subject returns the certificate subject name.
	Subject() pkix.RDNSequence
	// PublicKey returns the subject public key, or nil when it cannot be
	// extracted.
	PublicKey() crypto.PublicKey
	// CRLSign reports whether the keyUsage extension permits cRLSign.
	CRLSign() bool
}

// NamesEqual compares two distinguished names RDN by RDN. Attributes inside
// one RDN are compared as a set. String values are compared after NFKC
// normalization, case folding and whitespace collapsing.
func NamesEqual(a, b pkix.RDNSequence) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !rdnEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func rdnEqual(a, b pkix.RelativeDistinguishedNameSET) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, atv := range a {
		matched := false
		for j, other := range b {
			if used[j] || !atv.Type.Equal(other.Type) {
				continue
			}
			if attributeValuesEqual(atv.Value, other.Value) {
				used[j] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func attributeValuesEqual(a, b interface{}) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return normalizeNameValue(as) == normalizeNameValue(bs)
	}
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok && bok {
		return bytes.Equal(ab, bb)
	}
	return false
}

func normalizeNameValue(s string) string {
	s = norm.NFKC.String(s)
	// A Caser is stateful, so one is built per call.
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseName decodes a DER Name. Directory string values become Go
// strings; values of other types are kept as their raw content bytes.
func ParseName(der []byte) (pkix.RDNSequence, error) {
	input := cryptobyte.String(der)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("invalid RDNSequence")
	}

	rdnSeq := pkix.RDNSequence{}
	for !inner.Empty() {
		var set cryptobyte.String
		if !inner.ReadASN1(&set, cbasn1.SET) {
			return nil, errors.New("invalid RDNSequence: expected SET")
		}
		var rdnSet pkix.RelativeDistinguishedNameSET
		for !set.Empty() {
			var atav cryptobyte.String
			if !set.ReadASN1(&atav, cbasn1.SEQUENCE) {
				return nil, errors.New("invalid RDNSequence: expected AttributeTypeAndValue")
			}
			var attr pkix.AttributeTypeAndValue
			if !atav.ReadASN1ObjectIdentifier(&attr.Type) {
				return nil, errors.New("invalid RDNSequence: attribute type")
			}
			var raw cryptobyte.String
			var tag cbasn1.Tag
			if !atav.ReadAnyASN1(&raw, &tag) {
				return nil, errors.New("invalid RDNSequence: attribute value")
			}
			value, err := parseDirectoryString(tag, raw)
			if err != nil {
				return nil, errors.Wrapf(err, "attribute %s", attr.Type)
			}
			attr.Value = value
			rdnSet = append(rdnSet, attr)
		}
		rdnSeq = append(rdnSeq, rdnSet)
	}
	return rdnSeq, nil
}

const (
	tagT61String       = cbasn1.Tag(20)
	tagUniversalString = cbasn1.Tag(28)
	tagBMPString       = cbasn1.Tag(30)
	tagNumericString   = cbasn1.Tag(18)
)

func parseDirectoryString(tag cbasn1.Tag, raw []byte) (interface{}, error) {
	switch tag {
	case cbasn1.PrintableString, cbasn1.IA5String, tagNumericString:
		return string(raw), nil
	case tagT61String:
		// Treated as Latin-1, as most issuers do.
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return string(runes), nil
	case cbasn1.UTF8String:
		if !utf8.Valid(raw) {
			return nil, errors.New("invalid UTF8String")
		}
		return string(raw), nil
	case tagBMPString:
		if len(raw)%2 != 0 {
			return nil, errors.New("invalid BMPString")
		}
		s := make([]uint16, 0, len(raw)/2)
		for i := 0; i < len(raw); i += 2 {
			s = append(s, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(s)), nil
	case tagUniversalString:
		if len(raw)%4 != 0 {
			return nil, errors.New("invalid UniversalString")
		}
		runes := make([]rune, 0, len(raw)/4)
		for i := 0; i < len(raw); i += 4 {
			runes = append(runes, rune(raw[i])<<24|rune(raw[i+1])<<16|rune(raw[i+2])<<8|rune(raw[i+3]))
		}
		return string(runes), nil
	default:
		return append([]byte(nil), raw...), nil
	}
}
