package barrelkv

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"time"
)

// headerSize is the fixed size of a record's on-disk header: crc (4) +
// timestamp (4) + key_size (4) + value_size (4), all little-endian uint32.
const headerSize = 16

// tombstone is the literal value payload that marks a key as deleted.
var tombstone = []byte("$$T$$")

// isTombstone reports whether value is the tombstone sentinel.
func isTombstone(value []byte) bool {
	if len(value) != len(tombstone) {
		return false
	}
	for i := range value {
		if value[i] != tombstone[i] {
			return false
		}
	}
	return true
}

// record is the decoded form of a single log entry: a 16-byte header
// followed by key bytes then value bytes, with no inter-record padding.
type record struct {
	crc       uint32
	timestamp uint32
	keySize   uint32
	valueSize uint32
	key       []byte
	value     []byte
}

// recordSize returns the full on-disk size of a record for the given key
// and value, header included.
func recordSize(key, value []byte) int {
	return headerSize + len(key) + len(value)
}

// encodeRecord encodes key and value into their on-disk record form,
// stamping the current wall-clock time in whole seconds. It returns the
// timestamp it chose so callers (Store.put) can reuse it for the keydir
// entry without re-deriving it from the encoded bytes.
func encodeRecord(key, value []byte) (buf []byte, timestamp uint32, err error) {
	timestamp = uint32(time.Now().Unix())
	buf, err = encodeRecordAt(key, value, timestamp)
	return buf, timestamp, err
}

// encodeRecordAt encodes key and value with an explicit timestamp. It
// exists so compaction can rewrite a record without losing its original
// timestamp (re-stamping at compaction time would leave the keydir and a
// full-replay rebuild disagreeing about a record's age, breaking hint/
// replay equivalence).
func encodeRecordAt(key, value []byte, timestamp uint32) ([]byte, error) {
	if len(key) > math.MaxUint32 || len(value) > math.MaxUint32 {
		return nil, ErrOversizeRecord
	}

	buf := make([]byte, recordSize(key, value))
	crc := crc32.ChecksumIEEE(value)

	binary.LittleEndian.PutUint32(buf[0:4], crc)
	binary.LittleEndian.PutUint32(buf[4:8], timestamp)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(key)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(value)))
	copy(buf[headerSize:], key)
	copy(buf[headerSize+len(key):], value)

	return buf, nil
}

// decodeHeader parses the first headerSize bytes of an encoded record.
// It does not validate b's length; callers must ensure len(b) >= headerSize.
func decodeHeader(b []byte) (crc, timestamp, keySize, valueSize uint32) {
	crc = binary.LittleEndian.Uint32(b[0:4])
	timestamp = binary.LittleEndian.Uint32(b[4:8])
	keySize = binary.LittleEndian.Uint32(b[8:12])
	valueSize = binary.LittleEndian.Uint32(b[12:16])
	return
}

// decodeRecord decodes a full record from b, which must contain at least
// one complete record starting at offset 0. It verifies the stored CRC
// against the recomputed CRC of the extracted value; a mismatch is
// reported as ErrCorruptRecord.
func decodeRecord(b []byte) (*record, error) {
	if len(b) < headerSize {
		return nil, ErrCorruptRecord
	}

	crc, timestamp, keySize, valueSize := decodeHeader(b[:headerSize])
	body := b[headerSize:]
	if uint64(len(body)) < uint64(keySize)+uint64(valueSize) {
		return nil, ErrCorruptRecord
	}

	key := body[:keySize]
	value := body[keySize : uint64(keySize)+uint64(valueSize)]
	if crc32.ChecksumIEEE(value) != crc {
		return nil, ErrCorruptRecord
	}

	return &record{
		crc:       crc,
		timestamp: timestamp,
		keySize:   keySize,
		valueSize: valueSize,
		key:       key,
		value:     value,
	}, nil
}
