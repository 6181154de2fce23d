package source

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/boundaries-lt/boundaries/pkg/types"
)

// ParseDelimited parses a staged pipe-delimited registry export into a
// dataset. The first line is the header. Values stay strings; an empty field
// is null-coerced to an absent value, which is how the registry encodes
// "unknown". Rows with a field count different from the header are rejected.
func ParseDelimited(name string, data []byte, delimiter rune) (*types.Dataset, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("source: read %s: %w", name, err)
		}
		return nil, fmt.Errorf("source: %s is empty", name)
	}

	sep := string(delimiter)
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r"), sep)
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	ds := &types.Dataset{Name: name, Columns: header}

	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, sep)
		if len(fields) != len(header) {
			return nil, fmt.Errorf("source: %s line %d: %d fields, header has %d",
				name, lineNo, len(fields), len(header))
		}

		rec := types.Record{Fields: make(map[string]any, len(header))}
		for i, f := range fields {
			if f == "" {
				rec.Fields[header[i]] = nil
				continue
			}
			rec.Fields[header[i]] = f
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("source: read %s: %w", name, err)
	}

	return ds, nil
}
