package object

import (
	"bytes"
	"compress/zlib"
)

// zlibCompress deflates data the way a real packfile entry stores its
// payload, for building test fixtures.
func zlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// encodeOfsDeltaDistanceForTest is the inverse of decodeOfsDeltaDistance,
// used only to build OFS_DELTA fixtures; the production code never needs to
// emit one since GenerateIndex only ever consumes packs, it doesn't write
// them.
func encodeOfsDeltaDistanceForTest(offset uint64) []byte {
	buf := []byte{byte(offset & 0x7f)}
	offset >>= 7
	for offset > 0 {
		offset--
		buf = append(buf, byte(offset&0x7f)|0x80)
		offset >>= 7
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

func buildPlainEntry(typeCode uint8, payload []byte) []byte {
	out := encodeEntryHeader(typeCode, uint64(len(payload)))
	return append(out, zlibCompress(payload)...)
}

func buildOfsDeltaEntry(distance uint64, deltaPayload []byte) []byte {
	out := encodeEntryHeader(packTypeOfsDelta, uint64(len(deltaPayload)))
	out = append(out, encodeOfsDeltaDistanceForTest(distance)...)
	return append(out, zlibCompress(deltaPayload)...)
}

func buildRefDeltaEntry(base ID, deltaPayload []byte) []byte {
	out := encodeEntryHeader(packTypeRefDelta, uint64(len(deltaPayload)))
	out = append(out, base[:]...)
	return append(out, zlibCompress(deltaPayload)...)
}

// assemblePack concatenates already-built entries behind a pack header and
// appends the trailing SHA-1 checksum.
func assemblePack(entries ...[]byte) []byte {
	header := Header{Version: packVersion, NumObjects: uint32(len(entries))}
	body := header.Marshal()
	for _, e := range entries {
		body = append(body, e...)
	}
	trailer := HashBytes(body)
	return append(body, trailer[:]...)
}

// encodeInsertOnlyDelta builds a delta instruction stream that ignores base
// entirely and simply inserts target verbatim — sufficient to exercise
// applyDelta without needing a copy-instruction fixture.
func encodeInsertOnlyDelta(base, target []byte) []byte {
	var buf bytes.Buffer
	buf.Write(encodeDeltaVarintForTest(uint64(len(base))))
	buf.Write(encodeDeltaVarintForTest(uint64(len(target))))

	remaining := target
	for len(remaining) > 0 {
		n := len(remaining)
		if n > 127 {
			n = 127
		}
		buf.WriteByte(byte(n))
		buf.Write(remaining[:n])
		remaining = remaining[n:]
	}
	return buf.Bytes()
}

func encodeDeltaVarintForTest(v uint64) []byte {
	var buf []byte
	for v >= 0x80 {
		buf = append(buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
	buf = append(buf, byte(v))
	return buf
}
