package barrelkv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSegmentFileName(t *testing.T) {
	if got, want := segmentFileName(7), "0007.data"; got != want {
		t.Errorf("segmentFileName(7) = %q, want %q", got, want)
	}
	if got, want := hintFileName(42), "0042.hint"; got != want {
		t.Errorf("hintFileName(42) = %q, want %q", got, want)
	}
}

func TestParseSuffixedID(t *testing.T) {
	tt := []struct {
		name   string
		suffix string
		wantID uint32
		wantOK bool
	}{
		{"0001.data", ".data", 1, true},
		{"0042.hint", ".hint", 42, true},
		{"0001.data", ".hint", 0, false},
		{".barrelkv.lock", ".data", 0, false},
		{"notanumber.data", ".data", 0, false},
	}

	for _, tc := range tt {
		id, ok := parseSuffixedID(tc.name, tc.suffix)
		if ok != tc.wantOK || (ok && id != tc.wantID) {
			t.Errorf("parseSuffixedID(%q, %q) = (%d, %v), want (%d, %v)", tc.name, tc.suffix, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestListSegmentIDs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0003.data", "0001.data", "0002.data", "0001.hint", ".barrelkv.lock", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatalf("WriteFile(%s) error: %v", name, err)
		}
	}

	ids, err := listSegmentIDs(dir)
	if err != nil {
		t.Fatalf("listSegmentIDs() error: %v", err)
	}

	want := []uint32{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("listSegmentIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("listSegmentIDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestListHintIDs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0001.data", "0001.hint", "0002.data"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatalf("WriteFile(%s) error: %v", name, err)
		}
	}

	hints, err := listHintIDs(dir)
	if err != nil {
		t.Fatalf("listHintIDs() error: %v", err)
	}
	if !hints[1] || hints[2] || len(hints) != 1 {
		t.Errorf("listHintIDs() = %v, want {1: true}", hints)
	}
}

func TestSegmentAndHintPath(t *testing.T) {
	dir := "/tmp/store"
	if got, want := segmentPath(dir, 1), filepath.Join(dir, "0001.data"); got != want {
		t.Errorf("segmentPath() = %q, want %q", got, want)
	}
	if got, want := hintPath(dir, 1), filepath.Join(dir, "0001.hint"); got != want {
		t.Errorf("hintPath() = %q, want %q", got, want)
	}
}
