package crl

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
)

// PEM block types accepted for a CRL.
const (
	PEMTypeX509CRL = "X509 CRL"
	PEMTypeCRL     = "CRL"
)

var pemPrefix = []byte("-----BEGIN")

// IsPEM reports whether data starts with a PEM header, ignoring leading
// whitespace.
func IsPEM(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pemPrefix)
}

// fromPEM extracts the DER payload of the first PEM block.
func fromPEM(data []byte) ([]byte, error) {
	block, _ := pem.Decode(bytes.TrimLeft(data, " \t\r\n"))
	if block == nil {
		return nil, malformed("invalid PEM framing")
	}
	switch block.Type {
	case PEMTypeX509CRL, PEMTypeCRL:
		return block.Bytes, nil
	default:
		return nil, malformed("unexpected PEM block type %q", block.Type)
	}
}

// EncodePEM wraps a DER CRL into an "X509 CRL" PEM block.
func EncodePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeX509CRL, Bytes: der})
}

// Fingerprint returns the SHA-256 of the DER encoding of data, unwrapping
// PEM first. It equals Validity.Digest whenever data decodes. Input with
// broken PEM framing is hashed as given.
func Fingerprint(data []byte) [32]byte {
	if IsPEM(data) {
		if der, err := fromPEM(data); err == nil {
			return sha256.Sum256(der)
		}
	}
	return sha256.Sum256(data)
}

// ID returns the hex Fingerprint of data, the identifier a CRL is known by
// in the cache, the API and the audit log.
func ID(data []byte) string {
	sum := Fingerprint(data)
	return hex.EncodeToString(sum[:])
}
