package barrelkv

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// keydir is the in-memory index from key bytes to the locator of that
// key's newest record (component C). The teacher has no equivalent of
// this: rascaldb's segment.go keeps a bare map[string]int64 per segment
// with no locator richness and no persistence. keydirEntry and the
// hint-file format below are grounded in original_source/pybitcask's
// KeyDirEntry/KeyDir and the hint suggestion in spec.md §9.
type keydirEntry struct {
	fileID       uint32
	recordSize   uint32
	recordOffset int64
	timestamp    uint32
	key          []byte
}

type keydir struct {
	m map[string]keydirEntry
}

func newKeydir() *keydir {
	return &keydir{m: make(map[string]keydirEntry)}
}

func (k *keydir) put(key []byte, e keydirEntry) {
	k.m[string(key)] = e
}

func (k *keydir) get(key []byte) (keydirEntry, bool) {
	e, ok := k.m[string(key)]
	return e, ok
}

// delete removes key and returns the entry it had, if any.
func (k *keydir) delete(key []byte) (keydirEntry, bool) {
	s := string(key)
	e, ok := k.m[s]
	if ok {
		delete(k.m, s)
	}
	return e, ok
}

func (k *keydir) contains(key []byte) bool {
	_, ok := k.m[string(key)]
	return ok
}

func (k *keydir) len() int {
	return len(k.m)
}

// merge overwrites k's entries with every entry in other, key by key. The
// caller must ensure other's entries supersede k's — the contract used
// when loading hint files in ascending segment id order (spec.md §4.C).
func (k *keydir) merge(other *keydir) {
	for key, e := range other.m {
		k.m[key] = e
	}
}

// hintEntryHeaderSize is the fixed portion of one hint-file record:
// key_size(4) + file_id(4) + record_size(4) + record_offset(8) +
// timestamp(4), all little-endian, followed by key_size bytes of key.
// This is the length-prefixed tuple stream spec.md §9 calls "sufficient".
const hintEntryHeaderSize = 24

// save serializes the keydir to path as a flat stream of hint-entry
// tuples. It is the Go analogue of pybitcask's KeyDir.save_to_file, which
// pickles the whole dict; barrelkv can't use Python's pickle, so it
// defines its own fixed binary layout instead (documented above).
func (k *keydir) save(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := make([]byte, hintEntryHeaderSize)
	for keyStr, e := range k.m {
		key := []byte(keyStr)
		binary.LittleEndian.PutUint32(header[0:4], uint32(len(key)))
		binary.LittleEndian.PutUint32(header[4:8], e.fileID)
		binary.LittleEndian.PutUint32(header[8:12], e.recordSize)
		binary.LittleEndian.PutUint64(header[12:20], uint64(e.recordOffset))
		binary.LittleEndian.PutUint32(header[20:24], e.timestamp)

		if _, err := w.Write(header); err != nil {
			return err
		}
		if _, err := w.Write(key); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// loadKeydir reads a hint file written by keydir.save and reconstructs the
// keydir it describes.
func loadKeydir(path string) (*keydir, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	kd := newKeydir()
	header := make([]byte, hintEntryHeaderSize)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		keySize := binary.LittleEndian.Uint32(header[0:4])
		fileID := binary.LittleEndian.Uint32(header[4:8])
		recordSize := binary.LittleEndian.Uint32(header[8:12])
		recordOffset := int64(binary.LittleEndian.Uint64(header[12:20]))
		timestamp := binary.LittleEndian.Uint32(header[20:24])

		key := make([]byte, keySize)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}

		kd.put(key, keydirEntry{
			fileID:       fileID,
			recordSize:   recordSize,
			recordOffset: recordOffset,
			timestamp:    timestamp,
			key:          key,
		})
	}

	return kd, nil
}
