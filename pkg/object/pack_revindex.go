package object

import (
	"encoding/binary"
	"fmt"
)

const (
	ridxSignature = "RIDX"
	ridxVersion   = 1
	ridxHashID    = 1
)

// GenerateReverseIndex builds a reverse index (RIDX v1) from a pack index:
// for each object in pack order (ascending offset), the position that
// object occupies in the pack index's identifier-sorted entry table. This
// is the companion structure that lets a reader go from "the Nth object in
// the pack" to "its index entry" without a linear scan.
func GenerateReverseIndex(idx *PackIndex) []byte {
	posByID := make(map[ID]uint32, len(idx.entries))
	for i, e := range idx.entries {
		posByID[e.ID] = uint32(i)
	}
	byOffset := idx.EntriesByOffset()

	buf := make([]byte, 0, 4+4+4+len(byOffset)*4+2*idSize)
	buf = append(buf, ridxSignature...)
	buf = appendUint32(buf, ridxVersion)
	buf = appendUint32(buf, ridxHashID)
	for _, e := range byOffset {
		buf = appendUint32(buf, posByID[e.ID])
	}
	buf = append(buf, idx.packChecksum[:]...)
	checksum := HashBytes(buf)
	buf = append(buf, checksum[:]...)
	return buf
}

// ParseReverseIndex parses a RIDX v1 byte slice, returning the
// pack-position-to-index-position mapping and the pack checksum it was
// generated against.
func ParseReverseIndex(data []byte) (positions []uint32, packChecksum ID, err error) {
	const headerSize = 4 + 4 + 4
	const trailerSize = 2 * idSize
	if len(data) < headerSize+trailerSize {
		return nil, ID{}, fmt.Errorf("%w: reverse index too short: %d bytes", ErrBadFormat, len(data))
	}
	if string(data[:4]) != ridxSignature {
		return nil, ID{}, fmt.Errorf("%w: invalid reverse index signature %q", ErrBadFormat, data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != ridxVersion {
		return nil, ID{}, fmt.Errorf("%w: reverse index version %d", ErrUnsupportedVersion, version)
	}
	hashID := binary.BigEndian.Uint32(data[8:12])
	if hashID != ridxHashID {
		return nil, ID{}, fmt.Errorf("%w: reverse index hash id %d", ErrUnsupportedVersion, hashID)
	}

	indexChecksum, err := IDFromBytes(data[len(data)-idSize:])
	if err != nil {
		return nil, ID{}, err
	}
	if HashBytes(data[:len(data)-idSize]) != indexChecksum {
		return nil, ID{}, fmt.Errorf("%w: reverse index checksum", ErrChecksumMismatch)
	}
	packChecksum, err = IDFromBytes(data[len(data)-2*idSize : len(data)-idSize])
	if err != nil {
		return nil, ID{}, err
	}

	body := data[headerSize : len(data)-trailerSize]
	if len(body)%4 != 0 {
		return nil, ID{}, fmt.Errorf("%w: reverse index mapping table misaligned", ErrBadFormat)
	}
	n := len(body) / 4
	positions = make([]uint32, n)
	for i := 0; i < n; i++ {
		positions[i] = binary.BigEndian.Uint32(body[i*4 : i*4+4])
	}
	return positions, packChecksum, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
