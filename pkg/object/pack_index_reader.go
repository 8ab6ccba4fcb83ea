package object

import (
	"encoding/binary"
	"fmt"
)

// ParseIndex parses a pack index (v2) byte slice, verifying its trailing
// checksum and decoding the large-offset layer-2 table when present — even
// though GenerateIndex refuses to produce one, an index read from real Git
// tooling may still carry one.
func ParseIndex(data []byte) (*PackIndex, error) {
	const trailerSize = 2 * idSize
	if len(data) < 4+4+fanoutSize*4+trailerSize {
		return nil, fmt.Errorf("%w: pack index too short: %d bytes", ErrBadFormat, len(data))
	}
	if string(data[:4]) != idxSignature {
		return nil, fmt.Errorf("%w: invalid pack index signature %q", ErrBadFormat, data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != idxVersion {
		return nil, fmt.Errorf("%w: pack index version %d", ErrUnsupportedVersion, version)
	}

	indexChecksum, err := IDFromBytes(data[len(data)-idSize:])
	if err != nil {
		return nil, err
	}
	gotIndexChecksum := HashBytes(data[:len(data)-idSize])
	if gotIndexChecksum != indexChecksum {
		return nil, fmt.Errorf("%w: pack index checksum", ErrChecksumMismatch)
	}
	packChecksum, err := IDFromBytes(data[len(data)-2*idSize : len(data)-idSize])
	if err != nil {
		return nil, err
	}

	pos := 8
	var fanout [fanoutSize]uint32
	for i := 0; i < fanoutSize; i++ {
		fanout[i] = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}
	count := fanout[fanoutSize-1]

	idsStart := pos
	pos += int(count) * idSize
	crcStart := pos
	pos += int(count) * 4
	offsetStart := pos
	pos += int(count) * 4

	bodyEnd := len(data) - 2*idSize
	if pos > bodyEnd {
		return nil, fmt.Errorf("%w: pack index truncated before large-offset table", ErrBadFormat)
	}
	largeOffsetStart := pos
	largeOffsetBytes := bodyEnd - pos
	if largeOffsetBytes%8 != 0 {
		return nil, fmt.Errorf("%w: large-offset table size %d not a multiple of 8", ErrBadFormat, largeOffsetBytes)
	}

	entries := make([]PackIndexEntry, count)
	for i := uint32(0); i < count; i++ {
		id, err := IDFromBytes(data[idsStart+int(i)*idSize : idsStart+int(i+1)*idSize])
		if err != nil {
			return nil, err
		}
		crc := binary.BigEndian.Uint32(data[crcStart+int(i)*4 : crcStart+int(i)*4+4])
		rawOffset := binary.BigEndian.Uint32(data[offsetStart+int(i)*4 : offsetStart+int(i)*4+4])

		var offset uint64
		if rawOffset&largeOffsetBit != 0 {
			slot := int(rawOffset &^ largeOffsetBit)
			at := largeOffsetStart + slot*8
			if at+8 > bodyEnd {
				return nil, fmt.Errorf("%w: large-offset table index %d out of range", ErrBadFormat, slot)
			}
			offset = binary.BigEndian.Uint64(data[at : at+8])
		} else {
			offset = uint64(rawOffset)
		}

		entries[i] = PackIndexEntry{ID: id, Offset: offset, CRC32: crc}
	}

	return &PackIndex{
		fanout:        fanout,
		entries:       entries,
		packChecksum:  packChecksum,
		indexChecksum: indexChecksum,
	}, nil
}

// Marshal serialises a pack index back to its canonical v2 byte form.
// Entries must already be sorted by identifier, as GenerateIndex leaves
// them.
func (p *PackIndex) Marshal() []byte {
	buf := make([]byte, 0, 4+4+fanoutSize*4+len(p.entries)*(idSize+4+4)+2*idSize)
	buf = append(buf, idxSignature...)
	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], idxVersion)
	buf = append(buf, versionBytes[:]...)

	for _, count := range p.fanout {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], count)
		buf = append(buf, b[:]...)
	}
	for _, e := range p.entries {
		buf = append(buf, e.ID[:]...)
	}
	for _, e := range p.entries {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e.CRC32)
		buf = append(buf, b[:]...)
	}
	for _, e := range p.entries {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(e.Offset))
		buf = append(buf, b[:]...)
	}

	buf = append(buf, p.packChecksum[:]...)
	checksum := HashBytes(buf)
	buf = append(buf, checksum[:]...)
	return buf
}
