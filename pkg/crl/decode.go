package crl

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/effective-security/xlog"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const opDecode = "decode"

var tagExplicitExtensions = cbasn1.Tag(0).Constructed().ContextSpecific()

// Decode parses a DER or PEM encoded CRL.
//
// Input that is not a CRL at all fails with ErrMalformedInput. Input whose
// outer SEQUENCE is recognized but is cut short, or that lacks a required
// field, fails with ErrIncompleteStructure. Bytes after the outer SEQUENCE
// are ignored.
func Decode(data []byte) (*RevocationList, error) {
	der := data
	if IsPEM(data) {
		var err error
		if der, err = fromPEM(data); err != nil {
			return nil, err
		}
	}

	input := cryptobyte.String(der)
	if input.Empty() {
		return nil, malformed("empty input")
	}
	if !input.PeekASN1Tag(cbasn1.SEQUENCE) {
		return nil, malformed("not a CRL: expected SEQUENCE, got tag 0x%02x", der[0])
	}

	rl := &RevocationList{}

	// Read the SEQUENCE including tag and length so Raw can be populated,
	// then unwrap it.
	var certList cryptobyte.String
	if !input.ReadASN1Element(&certList, cbasn1.SEQUENCE) {
		return nil, readFailure(input, "CertificateList")
	}
	rl.Raw = certList
	if !certList.ReadASN1(&certList, cbasn1.SEQUENCE) {
		return nil, malformed("malformed CertificateList")
	}

	var tbs cryptobyte.String
	if err := readRequiredElement(&certList, &tbs, cbasn1.SEQUENCE, "tbsCertList"); err != nil {
		return nil, err
	}
	rl.RawTBSRevocationList = tbs
	if !tbs.ReadASN1(&tbs, cbasn1.SEQUENCE) {
		return nil, malformed("malformed tbsCertList")
	}

	var outerAlg cryptobyte.String
	if err := readRequiredElement(&certList, &outerAlg, cbasn1.SEQUENCE, "signatureAlgorithm"); err != nil {
		return nil, err
	}
	if certList.Empty() {
		return nil, incomplete("missing signatureValue")
	}
	if !certList.PeekASN1Tag(cbasn1.BIT_STRING) {
		return nil, malformed("unexpected tag for signatureValue")
	}
	var signature asn1.BitString
	if !certList.ReadASN1BitString(&signature) {
		return nil, readFailure(certList, "signatureValue")
	}
	rl.Signature = signature.RightAlign()

	if err := decodeTBS(rl, tbs, outerAlg); err != nil {
		return nil, err
	}

	logger.KV(xlog.DEBUG,
		"status", "decoded",
		"version", rl.Version,
		"algorithm", rl.SignatureAlgorithm.Algorithm.String(),
		"entries", len(rl.Entries),
		"unknown_critical", rl.UnknownCriticalExtension)

	return rl, nil
}

func decodeTBS(rl *RevocationList, tbs, outerAlg cryptobyte.String) error {
	// version is optional and absent in v1 CRLs.
	rl.Version = 1
	if tbs.PeekASN1Tag(cbasn1.INTEGER) {
		var version int
		if !tbs.ReadASN1Integer(&version) {
			return malformed("malformed version")
		}
		if version != 0 && version != 1 {
			return malformed("unsupported CRL version: %d", version)
		}
		rl.Version = version + 1
	}

	var innerAlg cryptobyte.String
	if err := readRequiredElement(&tbs, &innerAlg, cbasn1.SEQUENCE, "signature"); err != nil {
		return err
	}
	if !bytes.Equal(innerAlg, outerAlg) {
		return malformed("inner and outer signature algorithm identifiers don't match")
	}
	ai, err := parseAlgorithmIdentifier(innerAlg)
	if err != nil {
		return err
	}
	rl.SignatureAlgorithm = ai

	var issuer cryptobyte.String
	if err := readRequiredElement(&tbs, &issuer, cbasn1.SEQUENCE, "issuer"); err != nil {
		return err
	}
	rl.RawIssuer = issuer
	if rl.Issuer, err = ParseName(issuer); err != nil {
		return malformed("malformed issuer: %v", err)
	}

	if rl.ThisUpdate, err = readTime(&tbs, "thisUpdate"); err != nil {
		return err
	}
	if tbs.PeekASN1Tag(cbasn1.UTCTime) || tbs.PeekASN1Tag(cbasn1.GeneralizedTime) {
		if rl.NextUpdate, err = readTime(&tbs, "nextUpdate"); err != nil {
			return err
		}
		if rl.NextUpdate.Before(rl.ThisUpdate) {
			return malformed("nextUpdate %s is before thisUpdate %s",
				rl.NextUpdate.Format(time.RFC3339), rl.ThisUpdate.Format(time.RFC3339))
		}
	}

	if tbs.PeekASN1Tag(cbasn1.SEQUENCE) {
		var revoked cryptobyte.String
		if err := readRequired(&tbs, &revoked, cbasn1.SEQUENCE, "revokedCertificates"); err != nil {
			return err
		}
		if rl.Entries, err = decodeEntries(rl, revoked); err != nil {
			return err
		}
	}

	if tbs.PeekASN1Tag(tagExplicitExtensions) {
		var exts cryptobyte.String
		if err := readRequired(&tbs, &exts, tagExplicitExtensions, "crlExtensions"); err != nil {
			return err
		}
		if err := readRequired(&exts, &exts, cbasn1.SEQUENCE, "crlExtensions"); err != nil {
			return err
		}
		for !exts.Empty() {
			ext, err := readExtension(&exts)
			if err != nil {
				return err
			}
			rl.Extensions = append(rl.Extensions, ext)
			if ext.Critical {
				rl.CriticalExtensions = append(rl.CriticalExtensions, ext.Id)
			}
			if !applyCRLExtension(rl, ext) && ext.Critical {
				logger.KV(xlog.DEBUG, "reason", "unknown_critical", "oid", ext.Id.String())
				rl.UnknownCriticalExtension = true
			}
		}
	}

	if !tbs.Empty() {
		return malformed("trailing data in tbsCertList")
	}
	return nil
}

func decodeEntries(rl *RevocationList, revoked cryptobyte.String) ([]RevokedEntry, error) {
	entries := make([]RevokedEntry, 0)
	var certIssuer pkix.RDNSequence

	for !revoked.Empty() {
		var entry cryptobyte.String
		if err := readRequired(&revoked, &entry, cbasn1.SEQUENCE, "revokedCertificate"); err != nil {
			return nil, err
		}

		var rc RevokedEntry
		if entry.Empty() {
			return nil, incomplete("missing userCertificate")
		}
		if !entry.PeekASN1Tag(cbasn1.INTEGER) {
			return nil, malformed("unexpected tag for userCertificate")
		}
		rc.SerialNumber = new(big.Int)
		if !entry.ReadASN1Integer(rc.SerialNumber) {
			return nil, malformed("malformed serial number")
		}

		var err error
		if rc.RevocationTime, err = readTime(&entry, "revocationDate"); err != nil {
			return nil, err
		}

		if entry.PeekASN1Tag(cbasn1.SEQUENCE) {
			var exts cryptobyte.String
			if err := readRequired(&entry, &exts, cbasn1.SEQUENCE, "crlEntryExtensions"); err != nil {
				return nil, err
			}
			for !exts.Empty() {
				ext, err := readExtension(&exts)
				if err != nil {
					return nil, err
				}
				rc.Extensions = append(rc.Extensions, ext)
				if !applyEntryExtension(&rc, ext) && ext.Critical {
					logger.KV(xlog.DEBUG, "reason", "unknown_critical_entry", "oid", ext.Id.String())
					rl.UnknownCriticalExtension = true
				}
			}
		}
		if !entry.Empty() {
			return nil, malformed("trailing data in revokedCertificate")
		}

		// certificateIssuer applies to this entry and all that follow,
		// until another entry names a different issuer.
		if rc.CertificateIssuer != nil {
			certIssuer = rc.CertificateIssuer
		} else {
			rc.CertificateIssuer = certIssuer
		}

		entries = append(entries, rc)
	}
	return entries, nil
}

func readExtension(exts *cryptobyte.String) (pkix.Extension, error) {
	var ext pkix.Extension
	var der cryptobyte.String
	if err := readRequired(exts, &der, cbasn1.SEQUENCE, "extension"); err != nil {
		return ext, err
	}
	if !der.ReadASN1ObjectIdentifier(&ext.Id) {
		return ext, malformed("malformed extension OID")
	}
	if der.PeekASN1Tag(cbasn1.BOOLEAN) {
		if !der.ReadASN1Boolean(&ext.Critical) {
			return ext, malformed("malformed extension critical field")
		}
	}
	var val cryptobyte.String
	if !der.ReadASN1(&val, cbasn1.OCTET_STRING) {
		return ext, malformed("malformed extension value")
	}
	ext.Value = val
	return ext, nil
}

func parseAlgorithmIdentifier(der []byte) (pkix.AlgorithmIdentifier, error) {
	var ai pkix.AlgorithmIdentifier
	rest, err := asn1.Unmarshal(der, &ai)
	if err != nil {
		return ai, malformed("malformed signature algorithm identifier: %v", err)
	}
	if len(rest) > 0 {
		return ai, malformed("trailing data after signature algorithm identifier")
	}
	return ai, nil
}

func readTime(s *cryptobyte.String, field string) (time.Time, error) {
	var t time.Time
	if s.Empty() {
		return t, incomplete("missing %s", field)
	}
	switch {
	case s.PeekASN1Tag(cbasn1.UTCTime):
		if !s.ReadASN1UTCTime(&t) {
			return t, readFailure(*s, field)
		}
	case s.PeekASN1Tag(cbasn1.GeneralizedTime):
		if !s.ReadASN1GeneralizedTime(&t) {
			return t, readFailure(*s, field)
		}
	default:
		return t, malformed("unexpected tag for %s", field)
	}
	return t, nil
}

func readRequired(s, out *cryptobyte.String, tag cbasn1.Tag, field string) error {
	if s.Empty() {
		return incomplete("missing %s", field)
	}
	if !s.PeekASN1Tag(tag) {
		return malformed("unexpected tag for %s", field)
	}
	if !s.ReadASN1(out, tag) {
		return readFailure(*s, field)
	}
	return nil
}

func readRequiredElement(s, out *cryptobyte.String, tag cbasn1.Tag, field string) error {
	if s.Empty() {
		return incomplete("missing %s", field)
	}
	if !s.PeekASN1Tag(tag) {
		return malformed("unexpected tag for %s", field)
	}
	if !s.ReadASN1Element(out, tag) {
		return readFailure(*s, field)
	}
	return nil
}

// readFailure classifies a failed read of the element at the front of s.
func readFailure(s cryptobyte.String, field string) error {
	if truncated(s) {
		return incomplete("%s is truncated", field)
	}
	return malformed("malformed %s", field)
}

// truncated reports whether the DER header at the front of s declares more
// content than s holds. Invalid headers are not truncation.
func truncated(s cryptobyte.String) bool {
	if len(s) < 2 {
		return true
	}
	if s[0]&0x1f == 0x1f {
		// high tag numbers do not occur in CRLs
		return false
	}
	header := 2
	length := uint64(s[1])
	if s[1]&0x80 != 0 {
		n := int(s[1] & 0x7f)
		if n == 0 || n > 4 {
			return false
		}
		if len(s) < 2+n {
			return true
		}
		length = 0
		for _, b := range s[2 : 2+n] {
			length = length<<8 | uint64(b)
		}
		header += n
	}
	return uint64(len(s)-header) < length
}
