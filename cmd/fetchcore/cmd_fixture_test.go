package main

import (
	"bytes"
	"compress/zlib"
	"net/http"

	"github.com/gitremote/fetchcore/pkg/object"
	"github.com/gitremote/fetchcore/pkg/remote"
)

func writeTestAdvertisement(w http.ResponseWriter, caps string, refs map[string]object.ID) {
	w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
	remote.WritePktLine(w, []byte("# service=git-upload-pack\n"))
	remote.WriteFlush(w)
	first := true
	for name, id := range refs {
		line := id.String() + " " + name
		if first {
			line += "\x00" + caps
			first = false
		}
		remote.WritePktLine(w, []byte(line+"\n"))
	}
	remote.WriteFlush(w)
}

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

func packTypeCodeForKind(kind object.Kind) uint8 {
	switch kind {
	case object.KindCommit:
		return 1
	case object.KindTree:
		return 2
	case object.KindBlob:
		return 3
	default:
		panic("unsupported kind in test fixture")
	}
}

func buildTestPack(records ...object.Record) []byte {
	header := object.Header{Version: 2, NumObjects: uint32(len(records))}
	body := header.Marshal()
	for _, r := range records {
		entry := encodeTestEntryHeader(packTypeCodeForKind(r.Kind), uint64(len(r.Data)))
		entry = append(entry, zlibCompressTest(r.Data)...)
		body = append(body, entry...)
	}
	trailer := object.HashBytes(body)
	return append(body, trailer[:]...)
}

func writeTestFetchResult(w http.ResponseWriter, pack []byte) {
	w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
	remote.WritePktLine(w, []byte("NAK\n"))
	remote.WritePktLine(w, append([]byte{remote.SidebandData}, pack...))
	remote.WriteFlush(w)
}
