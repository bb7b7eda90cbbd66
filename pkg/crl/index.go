package crl

import "math/big"

// Index maps serial numbers to revoked entries. It is built once and never
// mutated, so concurrent lookups are safe.
type Index struct {
	entries  []RevokedEntry
	bySerial map[string]int
}

// NewIndex indexes a private copy of entries, so later changes to the
// caller's slice do not reach the index. When a serial appears more than
// once the first occurrence wins.
func NewIndex(entries []RevokedEntry) *Index {
	idx := &Index{
		entries:  make([]RevokedEntry, len(entries)),
		bySerial: make(map[string]int, len(entries)),
	}
	for i := range entries {
		idx.entries[i] = *entries[i].clone()
		if idx.entries[i].SerialNumber == nil {
			continue
		}
		key := serialKey(idx.entries[i].SerialNumber)
		if _, dup := idx.bySerial[key]; dup {
			continue
		}
		idx.bySerial[key] = i
	}
	return idx
}

// Lookup returns a copy of the entry for serial. Absence is reported with
// false, never as an error.
func (idx *Index) Lookup(serial *big.Int) (*RevokedEntry, bool) {
	if idx == nil || serial == nil {
		return nil, false
	}
	i, ok := idx.bySerial[serialKey(serial)]
	if !ok {
		return nil, false
	}
	return idx.entries[i].clone(), true
}

// Len returns the number of distinct serials.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.bySerial)
}

func serialKey(serial *big.Int) string {
	if serial.Sign() < 0 {
		return "-" + string(serial.Bytes())
	}
	return string(serial.Bytes())
}
