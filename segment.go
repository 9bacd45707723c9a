package barrelkv

import (
	"bufio"
	"hash/crc32"
	"io"
	"os"
)

// segment represents one append-only data file (component B). It is
// adapted from the teacher's segment.go: the teacher's single read+write
// file pair and hand-rolled string index are replaced by the spec's
// record-codec header, positional reads, and a lazy iterator, since the
// keydir (not the segment) now owns indexing.
type segment struct {
	id   uint32
	path string

	// writeFile is the open handle for the active segment. It is nil for a
	// segment object used only to describe a frozen segment's location —
	// reads against a frozen segment open a short-lived handle of their own
	// (spec.md §5: "frozen segment descriptors opened to serve a read are
	// short-lived and must be closed before get returns").
	writeFile   *os.File
	writeOffset int64
}

// openActiveSegment creates (if absent) and opens dir/id's data file for
// append, positioning writeOffset at the current end of file. A segment
// opened this way owns its write handle for the remainder of its lifetime
// as the active segment.
func openActiveSegment(dir string, id uint32) (*segment, error) {
	path := segmentPath(dir, id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &segment{id: id, path: path, writeFile: f, writeOffset: offset}, nil
}

// append encodes key and value, appends the record to the segment, and
// fsyncs before returning — the durability contract in spec.md §4.B: a
// record is recoverable across a crash once append has returned. It
// returns the offset at which the record's header starts and the
// timestamp the codec assigned, for the caller's keydir entry.
func (s *segment) append(key, value []byte) (offset int64, timestamp uint32, err error) {
	buf, ts, err := encodeRecord(key, value)
	if err != nil {
		return 0, 0, err
	}
	off, err := s.appendRaw(buf)
	return off, ts, err
}

// appendAt behaves like append but preserves an explicit timestamp instead
// of stamping the current time; the compactor uses this to rewrite a
// record without aging it (see record.go's encodeRecordAt doc comment).
func (s *segment) appendAt(key, value []byte, timestamp uint32) (int64, error) {
	buf, err := encodeRecordAt(key, value, timestamp)
	if err != nil {
		return 0, err
	}
	return s.appendRaw(buf)
}

func (s *segment) appendRaw(buf []byte) (int64, error) {
	offset := s.writeOffset
	n, err := s.writeFile.Write(buf)
	if err != nil {
		return 0, err
	}
	if err := s.writeFile.Sync(); err != nil {
		return 0, err
	}
	s.writeOffset += int64(n)
	return offset, nil
}

// isFull reports whether the segment has reached or crossed cap. The
// check uses >=, so the record that crosses the cap is never split: the
// cap is soft, exceeded by at most one record (spec.md §4.D).
func (s *segment) isFull(cap int64) bool {
	return s.writeOffset >= cap
}

// close flushes and releases the active write handle. It is a no-op for a
// segment object that was never opened for writing (e.g. one used only to
// describe a frozen segment for on-demand reads).
func (s *segment) close() error {
	if s.writeFile == nil {
		return nil
	}
	if err := s.writeFile.Sync(); err != nil {
		s.writeFile.Close()
		return err
	}
	return s.writeFile.Close()
}

// readValueAt opens a short-lived read handle, seeks to offset, and
// returns exactly the value bytes of the record whose header starts
// there. It works equally for the active segment and a frozen one: the
// active segment's write handle is never used for reads so a concurrent
// append can't race a Get within this process.
func (s *segment) readValueAt(offset int64) ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := f.ReadAt(header, offset); err != nil {
		return nil, err
	}
	_, _, keySize, valueSize := decodeHeader(header)

	if valueSize == 0 {
		return []byte{}, nil
	}
	value := make([]byte, valueSize)
	if _, err := f.ReadAt(value, offset+int64(headerSize)+int64(keySize)); err != nil {
		return nil, err
	}
	return value, nil
}

// iterate opens a fresh sequential reader over the segment's data file,
// starting at offset 0. The returned iterator is finite and not
// restartable; callers must close it.
func (s *segment) iterate() (*segmentIterator, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return &segmentIterator{f: f, r: bufio.NewReader(f)}, nil
}

// segmentIterator yields (record, startOffset, nextOffset) tuples from a
// segment's data file, in the spirit of spec.md §4.B's "lazy sequence of
// (record, next_offset)" and grounded in other_examples' nikosl-gkvd
// dataFileIter, generalized to also validate each record's CRC.
type segmentIterator struct {
	f      *os.File
	r      *bufio.Reader
	offset int64
}

// next decodes the record starting at the iterator's current offset. It
// returns io.EOF (with no other fields populated) once the file is
// exhausted at a record boundary. A short read that consumes at least one
// header byte before hitting EOF is reported as ErrCorruptRecord rather
// than io.EOF, per spec.md §7's ShortRead/TruncatedSegment rule.
func (it *segmentIterator) next() (rec *record, start int64, next int64, err error) {
	start = it.offset

	header := make([]byte, headerSize)
	n, err := io.ReadFull(it.r, header)
	if err != nil {
		if err == io.EOF && n == 0 {
			return nil, 0, 0, io.EOF
		}
		return nil, start, start, ErrCorruptRecord
	}

	crc, timestamp, keySize, valueSize := decodeHeader(header)
	body := make([]byte, uint64(keySize)+uint64(valueSize))
	if _, err := io.ReadFull(it.r, body); err != nil {
		return nil, start, start, ErrCorruptRecord
	}

	key := body[:keySize]
	value := body[keySize:]
	if crc32.ChecksumIEEE(value) != crc {
		return nil, start, start, ErrCorruptRecord
	}

	rec = &record{crc: crc, timestamp: timestamp, keySize: keySize, valueSize: valueSize, key: key, value: value}
	it.offset = start + int64(headerSize) + int64(keySize) + int64(valueSize)
	return rec, start, it.offset, nil
}

func (it *segmentIterator) close() error {
	return it.f.Close()
}
