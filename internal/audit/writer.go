package audit

import "github.com/cockroachdb/errors"

// Writer defines the interface for audit log writers.
//
// Implementations must set the hash chain (HashPrev, Hash), persist the
// event before returning, and return an error when any step fails.
type Writer interface {
	Write(event *Event) error
	Close() error
	// LastHash returns GenesisHash until an event has been written.
	LastHash() string
}

// NopWriter discards all events. Used when audit logging is disabled.
type NopWriter struct{}

var _ Writer = (*NopWriter)(nil)

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }
func (NopWriter) LastHash() string   { return GenesisHash }

// MultiWriter writes to multiple audit writers.
// If any writer fails, the write fails.
type MultiWriter struct {
	writers []Writer
}

var _ Writer = (*MultiWriter)(nil)

// NewMultiWriter creates a writer that writes to all provided writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(event *Event) error {
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) Close() error {
	var errs error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (m *MultiWriter) LastHash() string {
	if len(m.writers) > 0 {
		return m.writers[0].LastHash()
	}
	return GenesisHash
}
