package x509util

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
)

// Serial number formats accepted by ParseSerial.
const (
	SerialHex = "hex"
	SerialDec = "dec"
)

// ParseSerial parses a certificate serial number. Hex is the default
// format; it accepts an optional 0x prefix and colon separators as printed
// by openssl. A leading '-' denotes a negative serial.
func ParseSerial(s, format string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	base, name := 16, SerialHex
	switch strings.ToLower(format) {
	case "", SerialHex:
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		s = strings.ReplaceAll(s, ":", "")
	case SerialDec:
		base, name = 10, SerialDec
	default:
		return nil, errors.Newf("unsupported serial format: %q", format)
	}
	if s == "" {
		return nil, errors.New("serial number is empty")
	}

	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, errors.Newf("invalid %s serial number: %q", name, s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

// FormatSerial renders a serial as uppercase hex with an even number of
// digits.
func FormatSerial(n *big.Int) string {
	if n == nil {
		return ""
	}
	sign := ""
	if n.Sign() < 0 {
		sign = "-"
	}
	h := strings.ToUpper(new(big.Int).Abs(n).Text(16))
	if len(h)%2 == 1 {
		h = "0" + h
	}
	return sign + h
}
