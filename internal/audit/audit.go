package audit

import (
	"crypto/x509/pkix"
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/remiblancher/qcrl/pkg/crl"
)

var (
	globalWriter Writer = NopWriter{}
	globalMu     sync.RWMutex
	enabled      bool
)

// Init installs w as the global audit writer. A nil w disables auditing.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if w == nil {
		globalWriter = NopWriter{}
		enabled = false
		return nil
	}
	globalWriter = w
	enabled = true
	return nil
}

// InitFile installs a FileWriter on path. An empty path disables auditing.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	return Init(w)
}

// Close closes the global audit writer and disables auditing.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	err := globalWriter.Close()
	globalWriter = NopWriter{}
	enabled = false
	return err
}

// Enabled returns whether audit logging is active.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes an event to the global writer.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()

	return w.Write(event)
}

// MustLog writes an event and wraps a failure so the caller can fail the
// parent operation with it.
func MustLog(event *Event) error {
	if err := Log(event); err != nil {
		return errors.Wrap(err, "audit log failed")
	}
	return nil
}

func resultOf(ok bool) Result {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

func issuerString(name pkix.RDNSequence) string {
	if len(name) == 0 {
		return ""
	}
	return name.String()
}

// LogValidation logs the outcome of a validation as CRL_VALIDATED or
// CRL_REJECTED.
func LogValidation(actor *Actor, v *crl.Validity, cached bool) error {
	if v == nil {
		return errors.New("validity is nil")
	}
	eventType := EventCRLValidated
	if !v.Valid {
		eventType = EventCRLRejected
	}

	var number string
	if v.CRLNumber != nil {
		number = v.CRLNumber.String()
	}

	event := NewEvent(eventType, resultOf(v.Valid)).
		WithObject(Object{
			Type:   "crl",
			ID:     hex.EncodeToString(v.Digest[:]),
			Issuer: issuerString(v.Issuer),
			URL:    v.URL(),
		}).
		WithContext(Context{
			Algorithm: v.SignatureAlgorithm.String(),
			Reason:    string(v.InvalidityReason),
			CRLNumber: number,
			Entries:   v.EntryCount,
			Delta:     v.IsDelta,
			Cached:    cached,
		})
	if actor != nil {
		event.WithActor(*actor)
	}
	return MustLog(event)
}

// LogDecodeFailure logs a CRL that could not be decoded or validated at all.
func LogDecodeFailure(actor *Actor, id, url string, cause error) error {
	event := NewEvent(EventCRLRejected, ResultFailure).
		WithObject(Object{
			Type: "crl",
			ID:   id,
			URL:  url,
		}).
		WithContext(Context{
			Reason: crl.KindOf(cause).String(),
		})
	if actor != nil {
		event.WithActor(*actor)
	}
	return MustLog(event)
}

// LogLookup logs a serial number query against the CRL identified by id.
// entry is nil when the serial is not listed.
func LogLookup(actor *Actor, id string, serial *big.Int, entry *crl.RevokedEntry) error {
	ctx := Context{Revoked: entry != nil}
	if entry != nil && entry.Reason != nil {
		ctx.Revocation = entry.Reason.String()
	}

	var s string
	if serial != nil {
		s = serial.Text(16)
	}
	event := NewEvent(EventCRLLookup, ResultSuccess).
		WithObject(Object{
			Type:   "crl",
			ID:     id,
			Serial: s,
		}).
		WithContext(ctx)
	if actor != nil {
		event.WithActor(*actor)
	}
	return MustLog(event)
}
