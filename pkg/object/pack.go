package object

import (
	"encoding/binary"
	"fmt"
)

const (
	packHeaderSize  = 12
	packVersion     = 2
	packTrailerSize = idSize
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

// Header is the fixed-size 12-byte packfile header.
type Header struct {
	Version    uint32
	NumObjects uint32
}

// Marshal serialises the header to its canonical 12-byte form.
func (h Header) Marshal() []byte {
	buf := make([]byte, packHeaderSize)
	copy(buf[:4], packMagic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.NumObjects)
	return buf
}

// parseHeader parses the 12-byte packfile header.
func parseHeader(data []byte) (Header, error) {
	if len(data) < packHeaderSize {
		return Header{}, fmt.Errorf("%w: pack header too short: %d bytes", ErrBadFormat, len(data))
	}
	if string(data[:4]) != string(packMagic[:]) {
		return Header{}, fmt.Errorf("%w: invalid pack signature %q", ErrBadFormat, data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != packVersion {
		return Header{}, fmt.Errorf("%w: pack version %d", ErrUnsupportedVersion, version)
	}
	return Header{
		Version:    version,
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// encodeEntryHeader encodes the variable-length object entry header: the
// first byte carries the 3-bit type code in bits 6..4 and the low 4 bits of
// size; continuation bytes (while the MSB is set) each carry 7 more bits of
// size, little-endian in shift order.
func encodeEntryHeader(typeCode uint8, size uint64) []byte {
	b := byte(typeCode&0x7) << 4
	b |= byte(size & 0x0f)
	size >>= 4

	out := make([]byte, 0, 10)
	if size > 0 {
		b |= 0x80
	}
	out = append(out, b)

	for size > 0 {
		next := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			next |= 0x80
		}
		out = append(out, next)
	}
	return out
}

// decodeEntryHeader decodes one object entry header from the front of data,
// returning the 3-bit type code, the declared decompressed size, and the
// number of header bytes consumed.
func decodeEntryHeader(data []byte) (typeCode uint8, size uint64, consumed int, err error) {
	if len(data) == 0 {
		return 0, 0, 0, fmt.Errorf("%w: object entry header truncated", ErrBadFormat)
	}

	b := data[0]
	typeCode = (b >> 4) & 0x7
	size = uint64(b & 0x0f)
	shift := uint(4)
	consumed = 1

	for b&0x80 != 0 {
		if consumed >= len(data) {
			return 0, 0, 0, fmt.Errorf("%w: object entry header truncated", ErrBadFormat)
		}
		b = data[consumed]
		size |= uint64(b&0x7f) << shift
		shift += 7
		consumed++
	}
	return typeCode, size, consumed, nil
}
