package walk

import (
	"bytes"
	"compress/zlib"

	"github.com/gitremote/fetchcore/pkg/object"
)

// The pack object type codes and variable-length entry header encoding
// duplicated here are the same wire format object.DecodePackSequential
// parses; this package has no reason to export a pack encoder of its own,
// so fixtures for these tests build the bytes directly.
const (
	testPackTypeCommit = 1
	testPackTypeTree   = 2
	testPackTypeBlob   = 3
)

func encodeTestEntryHeader(typeCode uint8, size uint64) []byte {
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

func zlibCompressTest(data []byte) []byte {
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

func buildPackEntry(typeCode uint8, payload []byte) []byte {
	out := encodeTestEntryHeader(typeCode, uint64(len(payload)))
	return append(out, zlibCompressTest(payload)...)
}

func assembleTestPack(entries ...[]byte) []byte {
	header := object.Header{Version: 2, NumObjects: uint32(len(entries))}
	body := header.Marshal()
	for _, e := range entries {
		body = append(body, e...)
	}
	trailer := object.HashBytes(body)
	return append(body, trailer[:]...)
}

func packTypeForKind(kind object.Kind) uint8 {
	switch kind {
	case object.KindCommit:
		return testPackTypeCommit
	case object.KindTree:
		return testPackTypeTree
	case object.KindBlob:
		return testPackTypeBlob
	default:
		panic("unsupported kind in test fixture")
	}
}

func buildRecordPack(records ...object.Record) []byte {
	entries := make([][]byte, len(records))
	for i, r := range records {
		entries[i] = buildPackEntry(packTypeForKind(r.Kind), r.Data)
	}
	return assembleTestPack(entries...)
}
