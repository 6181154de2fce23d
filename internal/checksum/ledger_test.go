package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLedger_FinalizePreservesFetchOrder(t *testing.T) {
	l := NewLedger()
	l.Append("abc123", "counties.json")
	l.Append("def456", "municipalities.json")
	l.Append("789fff", "elderships.json")

	want := "abc123 counties.json\ndef456 municipalities.json\n789fff elderships.json\n"
	if got := string(l.Finalize()); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLedger_FinalizeEmpty(t *testing.T) {
	l := NewLedger()
	if got := l.Finalize(); len(got) != 0 {
		t.Errorf("expected empty manifest, got %q", string(got))
	}
}

func TestLedger_Idempotence(t *testing.T) {
	// Two ledgers fed identical entries in identical order serialize
	// byte-identically.
	build := func() []byte {
		l := NewLedger()
		l.Append("abc123", "counties.json")
		l.Append("def456", "adr/regions/21.json")
		return l.Finalize()
	}

	a, b := build(), build()
	if string(a) != string(b) {
		t.Errorf("expected identical manifests, got %q and %q", a, b)
	}
}

func TestLedger_WriteManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checksums.txt")

	l := NewLedger()
	l.Append("abc123", "counties.json")
	if err := l.WriteManifest(path); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	if string(data) != "abc123 counties.json\n" {
		t.Errorf("unexpected manifest content: %q", string(data))
	}

	// No temp file left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the manifest in %s, found %d entries", dir, len(entries))
	}
}

func TestCompare_EqualManifests(t *testing.T) {
	a := []byte("abc123 counties.json\ndef456 municipalities.json\n")
	b := []byte("abc123 counties.json\ndef456 municipalities.json\n")

	if diff := Compare(a, b); !diff.Empty() {
		t.Errorf("expected empty diff, got %s", diff)
	}
}

func TestCompare_ChangedDigest(t *testing.T) {
	a := []byte("abc123 counties.json\n")
	b := []byte("def456 counties.json\n")

	diff := Compare(a, b)
	if diff.Empty() {
		t.Fatal("expected non-empty diff")
	}
	if len(diff) != 2 {
		t.Fatalf("expected 2 diff lines, got %d", len(diff))
	}
	if diff[0].String() != "- abc123 counties.json" {
		t.Errorf("unexpected first diff line: %s", diff[0])
	}
	if diff[1].String() != "+ def456 counties.json" {
		t.Errorf("unexpected second diff line: %s", diff[1])
	}
}

func TestCompare_ExtraLine(t *testing.T) {
	a := []byte("abc123 counties.json\n")
	b := []byte("abc123 counties.json\n999aaa rooms.csv\n")

	diff := Compare(a, b)
	if len(diff) != 1 || diff[0].Sign != "+" {
		t.Fatalf("expected one added line, got %s", diff)
	}
}

func TestParseManifest(t *testing.T) {
	entries, err := ParseManifest([]byte("abc123 counties.json\ndef456 adr/regions/21.json\n"))
	if err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Digest != "def456" || entries[1].Path != "adr/regions/21.json" {
		t.Errorf("unexpected entry: %+v", entries[1])
	}
}

func TestParseManifest_Malformed(t *testing.T) {
	if _, err := ParseManifest([]byte("nodigestpath\n")); err == nil {
		t.Error("expected error for malformed line")
	}
}
