package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/remiblancher/qcrl/internal/audit"
	"github.com/remiblancher/qcrl/pkg/crl"
	"github.com/remiblancher/qcrl/pkg/x509util"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// readFile reads a CRL or certificate file, PEM or DER.
func readFile(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s file", what)
	}
	return data, nil
}

// newValidator builds a validator from the configured capabilities plus
// any given on the command line.
func newValidator(extra []string) (*crl.Validator, error) {
	caps, err := cfg.Capabilities()
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		more, err := crl.ParseCapabilities(extra...)
		if err != nil {
			return nil, err
		}
		caps |= more
	}
	return crl.NewValidator(&crl.Config{Capabilities: caps}), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "(none)"
	}
	return t.UTC().Format(timeLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dh", hours)
}

// validateFile decodes the CRL at crlPath and validates it against the
// certificate at issuerPath. Failures and outcomes are audited.
func validateFile(crlPath, issuerPath, sourceURL string, caps []string) (*crl.RevocationList, *crl.Validity, *crl.Validator, error) {
	data, err := readFile(crlPath, "CRL")
	if err != nil {
		return nil, nil, nil, err
	}
	issuer, err := x509util.LoadIdentity(issuerPath)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to load issuer certificate")
	}
	validator, err := newValidator(caps)
	if err != nil {
		return nil, nil, nil, err
	}

	rl, err := crl.Decode(data)
	if err == nil {
		var v *crl.Validity
		if v, err = validator.Validate(rl, sourceURL, issuer); err == nil {
			if auditErr := audit.LogValidation(nil, v, false); auditErr != nil {
				return nil, nil, nil, auditErr
			}
			return rl, v, validator, nil
		}
	}

	if auditErr := audit.LogDecodeFailure(nil, crl.ID(data), sourceURL, err); auditErr != nil {
		return nil, nil, nil, auditErr
	}
	return nil, nil, nil, errors.Wrap(err, "failed to validate CRL")
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
