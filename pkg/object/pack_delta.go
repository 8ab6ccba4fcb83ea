package object

import (
	"bytes"
	"fmt"
	"io"
)

// decodeDeltaVarint reads a 7-bit little-endian, MSB-continuation varint
// with no offset bias, used for the two size fields at the start of a delta
// payload.
func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var value uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("%w: delta size varint too large", ErrBadFormat)
		}
	}
}

// decodeOfsDeltaDistance decodes an OFS_DELTA backward offset: each byte
// contributes its low 7 bits, MSB-continuation, with the biased encoding
// n0*2^0 + (n1+1)*2^7 + (n2+1)*2^14 + ...
func decodeOfsDeltaDistance(data []byte) (distance uint64, consumed int, err error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("%w: ofs-delta distance truncated", ErrBadFormat)
	}
	i := 0
	c := data[i]
	i++
	distance = uint64(c & 0x7f)
	for c&0x80 != 0 {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("%w: ofs-delta distance truncated", ErrBadFormat)
		}
		c = data[i]
		i++
		distance = ((distance + 1) << 7) | uint64(c&0x7f)
	}
	return distance, i, nil
}

// applyDelta replays a Git delta instruction stream against base, producing
// the reconstructed object payload.
func applyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("%w: read delta base size: %v", ErrBadFormat, err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("%w: delta base size mismatch: got %d want %d", ErrBadFormat, baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("%w: read delta result size: %v", ErrBadFormat, err)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}

		if cmd&0x80 != 0 {
			var offset, size int64
			for i, mask := range []byte{0x01, 0x02, 0x04, 0x08} {
				if cmd&mask == 0 {
					continue
				}
				b, err := dr.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("%w: delta copy offset byte %d: %v", ErrBadFormat, i, err)
				}
				offset |= int64(b) << (8 * i)
			}
			for i, mask := range []byte{0x10, 0x20, 0x40} {
				if cmd&mask == 0 {
					continue
				}
				b, err := dr.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("%w: delta copy size byte %d: %v", ErrBadFormat, i, err)
				}
				size |= int64(b) << (8 * i)
			}
			if size == 0 {
				size = 0x10000
			}
			if offset < 0 || size < 0 || offset+size > int64(len(base)) {
				return nil, fmt.Errorf("%w: delta copy out of bounds", ErrBadFormat)
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("%w: invalid delta instruction 0", ErrBadFormat)
		}
		insert := make([]byte, int(cmd))
		if _, err := io.ReadFull(dr, insert); err != nil {
			return nil, fmt.Errorf("%w: delta insert: %v", ErrBadFormat, err)
		}
		out = append(out, insert...)
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("%w: delta result size mismatch: got %d want %d", ErrBadFormat, len(out), resultSize)
	}
	return out, nil
}
