package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadAll reads every Record from an audit log at path, in file order. Reading stops at the
// first malformed line: the records before it are returned without error, and an error is
// returned only when the first record itself cannot be decoded (see ReadFrom).
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	return ReadFrom(f)
}

// ReadFrom reads every Record from r, in stream order.
func ReadFrom(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	var out []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			// Malformed line: the stream decoder can't always resync past one, so stop here
			// rather than risk silently misattributing a later well-formed record.
			if len(out) == 0 {
				return nil, fmt.Errorf("decode audit record: %w", err)
			}
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

// ForTarget filters records to those matching identity, preserving file order (and therefore
// attempt order, per spec §5).
func ForTarget(records []Record, identity func(Record) bool) []Record {
	var out []Record
	for _, r := range records {
		if identity(r) {
			out = append(out, r)
		}
	}
	return out
}
