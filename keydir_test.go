package barrelkv

import (
	"bytes"
	"path/filepath"
	"testing"
)

// entriesEqual compares two keydirEntry values field by field: the key
// field is a []byte, so keydirEntry is not comparable with == directly.
func entriesEqual(a, b keydirEntry) bool {
	return a.fileID == b.fileID &&
		a.recordSize == b.recordSize &&
		a.recordOffset == b.recordOffset &&
		a.timestamp == b.timestamp &&
		bytes.Equal(a.key, b.key)
}

func TestKeydir_putGetDelete(t *testing.T) {
	kd := newKeydir()

	if _, ok := kd.get([]byte("k")); ok {
		t.Fatal("get on empty keydir reports present")
	}

	entry := keydirEntry{fileID: 1, recordSize: 18, recordOffset: 0, timestamp: 100, key: []byte("k")}
	kd.put([]byte("k"), entry)

	if !kd.contains([]byte("k")) {
		t.Error("contains() = false after put")
	}
	got, ok := kd.get([]byte("k"))
	if !ok {
		t.Fatal("get() = false after put")
	}
	if !entriesEqual(got, entry) {
		t.Errorf("get() = %+v, want %+v", got, entry)
	}

	deleted, ok := kd.delete([]byte("k"))
	if !ok || !entriesEqual(deleted, entry) {
		t.Errorf("delete() = (%+v, %v), want (%+v, true)", deleted, ok, entry)
	}
	if kd.contains([]byte("k")) {
		t.Error("contains() = true after delete")
	}
}

func TestKeydir_merge(t *testing.T) {
	base := newKeydir()
	base.put([]byte("a"), keydirEntry{fileID: 1, timestamp: 1})
	base.put([]byte("b"), keydirEntry{fileID: 1, timestamp: 1})

	newer := newKeydir()
	newer.put([]byte("b"), keydirEntry{fileID: 2, timestamp: 2})
	newer.put([]byte("c"), keydirEntry{fileID: 2, timestamp: 2})

	base.merge(newer)

	if base.len() != 3 {
		t.Fatalf("len() = %d, want 3", base.len())
	}
	if e, _ := base.get([]byte("a")); e.fileID != 1 {
		t.Errorf("a.fileID = %d, want 1 (untouched by merge)", e.fileID)
	}
	if e, _ := base.get([]byte("b")); e.fileID != 2 {
		t.Errorf("b.fileID = %d, want 2 (overwritten by merge)", e.fileID)
	}
	if e, _ := base.get([]byte("c")); e.fileID != 2 {
		t.Errorf("c.fileID = %d, want 2 (added by merge)", e.fileID)
	}
}

func TestKeydir_saveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0001.hint")

	kd := newKeydir()
	kd.put([]byte("name"), keydirEntry{fileID: 1, recordSize: 23, recordOffset: 0, timestamp: 111, key: []byte("name")})
	kd.put([]byte(""), keydirEntry{fileID: 1, recordSize: 16, recordOffset: 23, timestamp: 222, key: []byte("")})

	if err := kd.save(path); err != nil {
		t.Fatalf("save() error: %v", err)
	}

	loaded, err := loadKeydir(path)
	if err != nil {
		t.Fatalf("loadKeydir() error: %v", err)
	}

	if loaded.len() != kd.len() {
		t.Fatalf("loaded len() = %d, want %d", loaded.len(), kd.len())
	}
	for keyStr, want := range kd.m {
		got, ok := loaded.get([]byte(keyStr))
		if !ok {
			t.Errorf("loaded keydir missing key %q", keyStr)
			continue
		}
		if got.fileID != want.fileID || got.recordSize != want.recordSize ||
			got.recordOffset != want.recordOffset || got.timestamp != want.timestamp {
			t.Errorf("loaded entry for %q = %+v, want %+v", keyStr, got, want)
		}
		if !bytes.Equal(got.key, want.key) {
			t.Errorf("loaded key bytes for %q = %q, want %q", keyStr, got.key, want.key)
		}
	}
}
