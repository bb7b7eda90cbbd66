package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

const (
	// GenesisHash is the HashPrev of the first event in a chain.
	GenesisHash = "sha256:genesis"

	// HashPrefix is prepended to all hash values.
	HashPrefix = "sha256:"
)

// FileWriter appends events to a JSONL file with hash chaining.
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	lastHash string
	path     string
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter opens path for appending. An existing log is continued from
// its last hash.
func NewFileWriter(path string) (*FileWriter, error) {
	lastHash := GenesisHash
	if existing, err := os.ReadFile(path); err == nil && len(existing) > 0 {
		hash, err := readLastHash(existing)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read last hash from existing log")
		}
		lastHash = hash
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audit log")
	}

	return &FileWriter{
		file:     file,
		lastHash: lastHash,
		path:     path,
	}, nil
}

func readLastHash(data []byte) (string, error) {
	var lastLine []byte
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 {
			lastLine = append(lastLine[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(lastLine) == 0 {
		return GenesisHash, nil
	}

	var event struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(lastLine, &event); err != nil {
		return "", errors.Wrap(err, "failed to parse last event")
	}
	if event.Hash == "" {
		return "", errors.New("last event has no hash")
	}
	return event.Hash, nil
}

// Write logs an audit event with hash chaining.
func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New("audit log is closed")
	}
	if err := event.Validate(); err != nil {
		return errors.Wrap(err, "invalid event")
	}

	event.HashPrev = w.lastHash
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return errors.Wrap(err, "failed to serialize event")
	}
	hash := calculateHash(canonical, w.lastHash)
	event.Hash = hash

	line, err := event.JSON()
	if err != nil {
		return errors.Wrap(err, "failed to serialize event")
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "failed to write event")
	}
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync audit log")
	}

	w.lastHash = hash
	return nil
}

// Close syncs and closes the file. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LastHash returns the hash of the last written event.
func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Path returns the file path of the audit log.
func (w *FileWriter) Path() string {
	return w.path
}

// calculateHash computes SHA256(data || prevHash).
func calculateHash(data []byte, prevHash string) string {
	h := sha256.New()
	_, _ = h.Write(data)
	_, _ = h.Write([]byte(prevHash))
	return HashPrefix + hex.EncodeToString(h.Sum(nil))
}

// ReadEvents parses every event of the log at path.
func ReadEvents(path string) ([]*Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit log")
	}

	var events []*Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		event := &Event{}
		if err := json.Unmarshal(line, event); err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid JSON", lineNum)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan error")
	}
	return events, nil
}

// Tail returns the last n events of the log at path. n <= 0 returns all.
func Tail(path string, n int) ([]*Event, error) {
	events, err := ReadEvents(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// VerifyChain verifies the hash chain of the log at path and returns the
// number of valid events before the first break.
func VerifyChain(path string) (int, error) {
	events, err := ReadEvents(path)
	if err != nil {
		return 0, err
	}

	expectedPrev := GenesisHash
	for i, event := range events {
		if event.HashPrev != expectedPrev {
			return i, errors.Newf("event %d: hash chain broken: expected prev=%s, got prev=%s",
				i+1, expectedPrev, event.HashPrev)
		}
		canonical, err := event.CanonicalJSON()
		if err != nil {
			return i, errors.Wrapf(err, "event %d: failed to serialize", i+1)
		}
		if calculated := calculateHash(canonical, event.HashPrev); event.Hash != calculated {
			return i, errors.Newf("event %d: hash mismatch: expected=%s, got=%s",
				i+1, calculated, event.Hash)
		}
		expectedPrev = event.Hash
	}
	return len(events), nil
}
