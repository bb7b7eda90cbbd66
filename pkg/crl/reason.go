package crl

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ReasonCode is the CRLReason of a revoked entry (RFC 5280 §5.3.1).
type ReasonCode int

const (
	ReasonUnspecified          ReasonCode = 0
	ReasonKeyCompromise        ReasonCode = 1
	ReasonCACompromise         ReasonCode = 2
	ReasonAffiliationChanged   ReasonCode = 3
	ReasonSuperseded           ReasonCode = 4
	ReasonCessationOfOperation ReasonCode = 5
	ReasonCertificateHold      ReasonCode = 6
	ReasonRemoveFromCRL        ReasonCode = 8
	ReasonPrivilegeWithdrawn   ReasonCode = 9
	ReasonAACompromise         ReasonCode = 10
)

// String returns the RFC 5280 name of the reason.
func (r ReasonCode) String() string {
	switch r {
	case ReasonUnspecified:
		return "unspecified"
	case ReasonKeyCompromise:
		return "keyCompromise"
	case ReasonCACompromise:
		return "cACompromise"
	case ReasonAffiliationChanged:
		return "affiliationChanged"
	case ReasonSuperseded:
		return "superseded"
	case ReasonCessationOfOperation:
		return "cessationOfOperation"
	case ReasonCertificateHold:
		return "certificateHold"
	case ReasonRemoveFromCRL:
		return "removeFromCRL"
	case ReasonPrivilegeWithdrawn:
		return "privilegeWithdrawn"
	case ReasonAACompromise:
		return "aACompromise"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// IsValid reports whether r is a value RFC 5280 defines. 7 is unused.
func (r ReasonCode) IsValid() bool {
	return r >= ReasonUnspecified && r <= ReasonAACompromise && r != 7
}

// ParseReasonCode parses a reason name, case-insensitively.
func ParseReasonCode(s string) (ReasonCode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unspecified", "":
		return ReasonUnspecified, nil
	case "keycompromise", "key-compromise":
		return ReasonKeyCompromise, nil
	case "cacompromise", "ca-compromise":
		return ReasonCACompromise, nil
	case "affiliationchanged", "affiliation-changed":
		return ReasonAffiliationChanged, nil
	case "superseded":
		return ReasonSuperseded, nil
	case "cessationofoperation", "cessation":
		return ReasonCessationOfOperation, nil
	case "certificatehold", "hold":
		return ReasonCertificateHold, nil
	case "removefromcrl", "remove":
		return ReasonRemoveFromCRL, nil
	case "privilegewithdrawn":
		return ReasonPrivilegeWithdrawn, nil
	case "aacompromise", "aa-compromise":
		return ReasonAACompromise, nil
	default:
		return 0, errors.Newf("unknown revocation reason: %s", s)
	}
}

// reasonFlagBits maps ReasonFlags bit positions to reason codes.
// Bit 0 is "unused".
var reasonFlagBits = []ReasonCode{
	1: ReasonKeyCompromise,
	2: ReasonCACompromise,
	3: ReasonAffiliationChanged,
	4: ReasonSuperseded,
	5: ReasonCessationOfOperation,
	6: ReasonCertificateHold,
	7: ReasonPrivilegeWithdrawn,
	8: ReasonAACompromise,
}
