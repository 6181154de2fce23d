// Package staging persists intermediate merged datasets between the
// aggregation and load stages. Files are snappy-compressed and carry a
// murmur3 content sum so a truncated or corrupted staging file is detected
// on read instead of silently loading partial data.
package staging

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"
)

// header layout: 8-byte murmur3 sum of the uncompressed payload, followed by
// one snappy block.
const sumSize = 8

// Write stores data at path, compressed, with its content sum.
// The file is written to a temp path and renamed on success.
func Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("staging: create directory: %w", err)
	}

	var header [sumSize]byte
	binary.LittleEndian.PutUint64(header[:], murmur3.Sum64(data))
	compressed := snappy.Encode(nil, data)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".staging-*")
	if err != nil {
		return fmt.Errorf("staging: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(header[:]); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("staging: write header: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("staging: write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("staging: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("staging: rename: %w", err)
	}
	return nil
}

// Read loads a staged file and verifies its content sum.
func Read(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("staging: read %s: %w", path, err)
	}
	if len(raw) < sumSize {
		return nil, fmt.Errorf("staging: %s truncated: %d bytes", path, len(raw))
	}

	data, err := snappy.Decode(nil, raw[sumSize:])
	if err != nil {
		return nil, fmt.Errorf("staging: decompress %s: %w", path, err)
	}

	want := binary.LittleEndian.Uint64(raw[:sumSize])
	if got := murmur3.Sum64(data); got != want {
		return nil, fmt.Errorf("staging: %s content sum mismatch: want %x, got %x", path, want, got)
	}
	return data, nil
}
