package barrelkv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Adapted from the teacher's trunk.go. rascaldb tracks segment order in an
// explicit trunk.txt sidecar it writes itself; this store has no such file
// to maintain because the spec's segment ids are dense, zero-padded, and
// directly derivable from the directory listing (spec.md §3 invariant 6),
// so segment order comes from sorting filenames numerically instead.

const (
	dataSuffix = ".data"
	hintSuffix = ".hint"
)

// segmentFileName returns the zero-padded data filename for id, e.g. 7 ->
// "0007.data".
func segmentFileName(id uint32) string {
	return fmt.Sprintf("%04d%s", id, dataSuffix)
}

// hintFileName returns the zero-padded hint filename for id, e.g. 7 ->
// "0007.hint".
func hintFileName(id uint32) string {
	return fmt.Sprintf("%04d%s", id, hintSuffix)
}

func segmentPath(dir string, id uint32) string {
	return filepath.Join(dir, segmentFileName(id))
}

func hintPath(dir string, id uint32) string {
	return filepath.Join(dir, hintFileName(id))
}

// listSegmentIDs returns the ids of every *.data file directly inside dir,
// sorted ascending. Filenames that aren't a bare decimal id (zero-padded
// or not) followed by ".data" are ignored rather than treated as an error, since a
// store directory may accumulate unrelated files (the lock file, editor
// swap files) that are none of the store's business.
func listSegmentIDs(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ids []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseSuffixedID(e.Name(), dataSuffix)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// listHintIDs returns the set of segment ids that have a corresponding
// *.hint sidecar directly inside dir.
func listHintIDs(dir string) (map[uint32]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	ids := make(map[uint32]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseSuffixedID(e.Name(), hintSuffix)
		if !ok {
			continue
		}
		ids[id] = true
	}
	return ids, nil
}

func parseSuffixedID(name, suffix string) (uint32, bool) {
	if !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	idStr := strings.TrimSuffix(name, suffix)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
