// Package checksum accumulates content digests of fetched source artifacts
// and serializes them as the manifest shipped alongside the database. The
// manifest is the evidence the external release workflow compares to decide
// whether upstream content changed.
package checksum

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Entry is one (digest, path) pair in fetch order.
type Entry struct {
	// Digest is the hex-encoded SHA-256 of the artifact content.
	Digest string

	// Path is the artifact path relative to the staging root.
	Path string
}

// Ledger records one entry per fetched artifact in call order.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records one fetched artifact. Call order is preserved: the manifest
// line order is the fetch order.
func (l *Ledger) Append(digest, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Digest: digest, Path: path})
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the recorded entries in fetch order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Finalize serializes the ledger as manifest bytes, one
// "digest<space>path" line per artifact, in fetch order.
func (l *Ledger) Finalize() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	for _, e := range l.entries {
		fmt.Fprintf(&b, "%s %s\n", e.Digest, e.Path)
	}
	return []byte(b.String())
}

// WriteManifest writes the finalized manifest to path atomically
// (temp file in the same directory, then rename).
func (l *Ledger) WriteManifest(path string) error {
	data := l.Finalize()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("checksum: create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("checksum: write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checksum: close manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checksum: rename manifest: %w", err)
	}
	return nil
}
