package barrelkv

import "fmt"

// Error is a sentinel error type, following the teacher's own error.go:
// constant, comparable, and safe to use as a package-level var.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrOversizeRecord is returned by Put when a key or value's length
	// would not fit in the on-disk record's 32-bit size fields.
	ErrOversizeRecord = Error("barrelkv: key or value exceeds the 32-bit size limit")

	// ErrCorruptRecord is returned when a record's header decodes but its
	// stored CRC does not match the CRC of the value bytes that follow it,
	// or when a record is truncated mid-body. It is fatal for replay: the
	// offending segment is not silently skipped or truncated.
	ErrCorruptRecord = Error("barrelkv: corrupt record: checksum mismatch or truncated data")

	// ErrInvariantViolation indicates a keydir entry pointed at a record
	// whose key does not match the lookup key. It should never happen
	// absent a bug in the store or external corruption of a segment file.
	ErrInvariantViolation = Error("barrelkv: keydir entry does not match the record it points to")

	// ErrLocked is returned by Open when another process already holds the
	// directory's advisory lock.
	ErrLocked = Error("barrelkv: directory is locked by another store instance")
)

// CorruptRecordError augments ErrCorruptRecord with the segment and byte
// offset that failed to decode. It mirrors the structured-error pattern
// richer stores in the corpus use (segment id / offset / path fields with
// From/With-style context), scaled down to barrelkv's single error domain.
type CorruptRecordError struct {
	SegmentID uint32
	Offset    int64
	Err       error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("barrelkv: corrupt record in segment %04d.data at offset %d: %v", e.SegmentID, e.Offset, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }
