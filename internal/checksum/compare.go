package checksum

import (
	"fmt"
	"strings"
)

// DiffLine is one line-level difference between two manifests.
type DiffLine struct {
	// Sign is "-" for a line only in the first manifest, "+" for a line
	// only in the second.
	Sign string

	// Line is the manifest line without trailing newline.
	Line string
}

func (d DiffLine) String() string {
	return d.Sign + " " + d.Line
}

// Diff is the result of comparing two manifests.
type Diff []DiffLine

// Empty reports whether the two manifests were byte-identical line for line.
func (d Diff) Empty() bool {
	return len(d) == 0
}

func (d Diff) String() string {
	lines := make([]string, len(d))
	for i, l := range d {
		lines[i] = l.String()
	}
	return strings.Join(lines, "\n")
}

// Compare performs a line-level diff of two manifests. A non-empty diff
// signals that at least one upstream source changed between the runs that
// produced them. Compare does not decide anything about releases; it only
// produces comparable evidence.
func Compare(a, b []byte) Diff {
	linesA := splitLines(a)
	linesB := splitLines(b)

	var diff Diff
	n := len(linesA)
	if len(linesB) > n {
		n = len(linesB)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(linesA):
			diff = append(diff, DiffLine{Sign: "+", Line: linesB[i]})
		case i >= len(linesB):
			diff = append(diff, DiffLine{Sign: "-", Line: linesA[i]})
		case linesA[i] != linesB[i]:
			diff = append(diff,
				DiffLine{Sign: "-", Line: linesA[i]},
				DiffLine{Sign: "+", Line: linesB[i]})
		}
	}
	return diff
}

// ParseManifest parses manifest bytes back into entries. Lines that do not
// contain a digest and a path are rejected.
func ParseManifest(data []byte) ([]Entry, error) {
	var entries []Entry
	for i, line := range splitLines(data) {
		digest, path, ok := strings.Cut(line, " ")
		if !ok || digest == "" || path == "" {
			return nil, fmt.Errorf("checksum: malformed manifest line %d: %q", i+1, line)
		}
		entries = append(entries, Entry{Digest: digest, Path: path})
	}
	return entries, nil
}

func splitLines(data []byte) []string {
	s := strings.TrimRight(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
