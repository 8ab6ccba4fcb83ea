package object

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"sort"
)

// rawEntry is one still-compressed-or-undeltified object entry located
// during a pack scan: everything needed to resolve it later, without yet
// knowing its final Kind or identifier (those require delta resolution).
type rawEntry struct {
	Offset   int
	TypeCode uint8
	// Payload is the decompressed bytes following the entry header: the
	// literal object content for Commit/Tree/Blob/Tag, or the delta
	// instruction stream for OfsDelta/RefDelta.
	Payload []byte
	// BaseDistance is the OFS_DELTA backward byte distance (only set when
	// TypeCode is an ofs-delta).
	BaseDistance int64
	// BaseID is the REF_DELTA base identifier (only set when TypeCode is a
	// ref-delta).
	BaseID ID
	// Length is the total number of on-disk bytes this entry occupies
	// (header plus compressed payload), used for CRC-32 computation.
	Length int
}

// verifyPackTrailer checks that the last 20 bytes of data equal the SHA-1 of
// everything preceding them, returning the trailer identifier.
func verifyPackTrailer(data []byte) (ID, error) {
	if len(data) < packHeaderSize+packTrailerSize {
		return ID{}, fmt.Errorf("%w: pack too short: %d bytes", ErrBadFormat, len(data))
	}
	payload := data[:len(data)-packTrailerSize]
	trailer := data[len(data)-packTrailerSize:]
	want, err := IDFromBytes(trailer)
	if err != nil {
		return ID{}, err
	}
	got := HashBytes(payload)
	if got != want {
		return ID{}, fmt.Errorf("%w: pack trailer checksum", ErrChecksumMismatch)
	}
	return want, nil
}

// decodeEntryAt decodes one object entry starting at offset: its header
// (including any OFS_DELTA/REF_DELTA extra bytes) and its zlib-compressed
// payload. It returns the raw entry and the total number of bytes consumed
// from data (header bytes + exact compressed byte count, as reported by the
// inflater's consumed-input count — the compressed length is never stored
// on disk and must be discovered this way).
func decodeEntryAt(data []byte, offset int) (rawEntry, int, error) {
	if offset < 0 || offset >= len(data) {
		return rawEntry{}, 0, fmt.Errorf("%w: object offset %d out of range", ErrBadFormat, offset)
	}

	typeCode, _, headerLen, err := decodeEntryHeader(data[offset:])
	if err != nil {
		return rawEntry{}, 0, err
	}
	pos := offset + headerLen

	var baseDistance int64
	var baseID ID
	switch typeCode {
	case packTypeOfsDelta:
		dist, n, err := decodeOfsDeltaDistance(data[pos:])
		if err != nil {
			return rawEntry{}, 0, err
		}
		baseDistance = int64(dist)
		pos += n
	case packTypeRefDelta:
		if pos+idSize > len(data) {
			return rawEntry{}, 0, fmt.Errorf("%w: ref-delta base identifier truncated", ErrBadFormat)
		}
		id, err := IDFromBytes(data[pos : pos+idSize])
		if err != nil {
			return rawEntry{}, 0, err
		}
		baseID = id
		pos += idSize
	}

	counting := &countingByteReader{r: bytes.NewReader(data[pos:])}
	zr, err := zlib.NewReader(counting)
	if err != nil {
		return rawEntry{}, 0, fmt.Errorf("%w: object at offset %d: zlib init: %v", ErrBadFormat, offset, err)
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return rawEntry{}, 0, fmt.Errorf("%w: object at offset %d: inflate: %v", ErrBadFormat, offset, err)
	}
	if err := zr.Close(); err != nil {
		return rawEntry{}, 0, fmt.Errorf("%w: object at offset %d: zlib close: %v", ErrBadFormat, offset, err)
	}

	entry := rawEntry{
		Offset:       offset,
		TypeCode:     typeCode,
		Payload:      payload,
		BaseDistance: baseDistance,
		BaseID:       baseID,
	}
	totalConsumed := (pos - offset) + counting.consumed
	return entry, totalConsumed, nil
}

// countingByteReader wraps a byte source and tracks how many bytes have
// actually been pulled out of it, which is how the exact compressed length
// of a packed object entry is recovered — zlib never records it on disk.
// It implements io.ByteReader so compress/flate reads from it directly
// instead of through its own read-ahead buffer, which would otherwise pull
// bytes past the end of the compressed stream.
type countingByteReader struct {
	r        *bytes.Reader
	consumed int
}

func (c *countingByteReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.consumed += n
	return n, err
}

func (c *countingByteReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.consumed++
	}
	return b, err
}

// scanSequential walks every object in a pack one by one, discovering each
// entry's byte range purely from the inflater's consumed-input count, with
// no pack index involved.
func scanSequential(data []byte) (Header, []rawEntry, error) {
	header, err := parseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if _, err := verifyPackTrailer(data); err != nil {
		return Header{}, nil, err
	}

	trailerStart := len(data) - packTrailerSize
	offset := packHeaderSize
	entries := make([]rawEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entry, consumed, err := decodeEntryAt(data, offset)
		if err != nil {
			return Header{}, nil, fmt.Errorf("object %d: %w", i, err)
		}
		entry.Length = consumed
		entries = append(entries, entry)
		offset += consumed
	}
	if offset != trailerStart {
		return Header{}, nil, fmt.Errorf("%w: %d trailing undecoded bytes before trailer", ErrBadFormat, trailerStart-offset)
	}
	return header, entries, nil
}

// scanIndexed walks every object using a companion index's offsets to fix
// each entry's exact byte range (the offset of the next entry, or the
// trailer for the last one), per the spec's "indexed decode" entry point.
func scanIndexed(data []byte, idx *PackIndex) (Header, []rawEntry, error) {
	header, err := parseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if _, err := verifyPackTrailer(data); err != nil {
		return Header{}, nil, err
	}

	byOffset := idx.EntriesByOffset()
	if len(byOffset) != int(header.NumObjects) {
		return Header{}, nil, fmt.Errorf("%w: index has %d entries, pack header declares %d", ErrBadFormat, len(byOffset), header.NumObjects)
	}

	trailerStart := len(data) - packTrailerSize
	entries := make([]rawEntry, 0, len(byOffset))
	for i, ie := range byOffset {
		start := int(ie.Offset)
		end := trailerStart
		if i+1 < len(byOffset) {
			end = int(byOffset[i+1].Offset)
		}
		entry, consumed, err := decodeEntryAt(data, start)
		if err != nil {
			return Header{}, nil, fmt.Errorf("object %s: %w", ie.ID, err)
		}
		if start+consumed != end {
			return Header{}, nil, fmt.Errorf("%w: object %s: inflater consumed %d bytes, index expects %d",
				ErrBadFormat, ie.ID, consumed, end-start)
		}
		gotCRC := crc32Of(data[start : start+consumed])
		if gotCRC != ie.CRC32 {
			return Header{}, nil, fmt.Errorf("%w: object %s: crc32 %08x, index expects %08x",
				ErrChecksumMismatch, ie.ID, gotCRC, ie.CRC32)
		}
		entry.Length = consumed
		entries = append(entries, entry)
	}
	return header, entries, nil
}

// resolvePackObjects resolves every raw entry to a materialised Record,
// applying delta chains on demand and memoising by offset so a base shared
// by many deltas is reconstructed only once. base, if non-nil, supplies
// objects for REF_DELTA entries whose base is not itself present in the
// pack (a thin pack).
func resolvePackObjects(raws []rawEntry, base *Store) ([]Record, error) {
	byOffset := make(map[int]rawEntry, len(raws))
	for _, r := range raws {
		byOffset[r.Offset] = r
	}

	resolved := make(map[int]Record, len(raws))
	idToOffset := make(map[ID]int, len(raws))
	visiting := make(map[int]bool, 8)

	var resolveOffset func(off int) (Record, error)

	findBase := func(id ID) (Record, bool, error) {
		if off, ok := idToOffset[id]; ok {
			return resolved[off], true, nil
		}
		if base != nil {
			if rec, ok := base.Get(id); ok {
				return rec, true, nil
			}
		}
		// The base may be a not-yet-resolved object later in pack order;
		// force resolution of whatever remains until it turns up.
		remaining := make([]int, 0, len(byOffset))
		for off := range byOffset {
			if _, done := resolved[off]; !done {
				remaining = append(remaining, off)
			}
		}
		sort.Ints(remaining)
		for _, off := range remaining {
			rec, err := resolveOffset(off)
			if err != nil {
				continue
			}
			if rec.ID == id {
				return rec, true, nil
			}
		}
		return Record{}, false, nil
	}

	resolveOffset = func(off int) (Record, error) {
		if rec, ok := resolved[off]; ok {
			return rec, nil
		}
		if visiting[off] {
			return Record{}, fmt.Errorf("%w: delta chain cycles back to offset %d", ErrBadFormat, off)
		}
		visiting[off] = true
		defer delete(visiting, off)

		raw, ok := byOffset[off]
		if !ok {
			return Record{}, fmt.Errorf("%w: no object at offset %d", ErrBadFormat, off)
		}

		var kind Kind
		var data []byte
		switch raw.TypeCode {
		case packTypeOfsDelta:
			baseOff := off - int(raw.BaseDistance)
			if baseOff < 0 {
				return Record{}, fmt.Errorf("%w: ofs-delta base offset %d is negative", ErrBadFormat, baseOff)
			}
			baseRec, err := resolveOffset(baseOff)
			if err != nil {
				return Record{}, err
			}
			d, err := applyDelta(baseRec.Data, raw.Payload)
			if err != nil {
				return Record{}, fmt.Errorf("object at offset %d: %w", off, err)
			}
			kind, data = baseRec.Kind, d
		case packTypeRefDelta:
			baseRec, found, err := findBase(raw.BaseID)
			if err != nil {
				return Record{}, err
			}
			if !found {
				return Record{}, fmt.Errorf("%w: base %s for object at offset %d", ErrUnresolvedDelta, raw.BaseID, off)
			}
			d, err := applyDelta(baseRec.Data, raw.Payload)
			if err != nil {
				return Record{}, fmt.Errorf("object at offset %d: %w", off, err)
			}
			kind, data = baseRec.Kind, d
		default:
			k, err := kindFromPackType(raw.TypeCode)
			if err != nil {
				return Record{}, err
			}
			kind, data = k, raw.Payload
		}

		id := HashObject(kind, data)
		rec := Record{Kind: kind, ID: id, Data: data}
		resolved[off] = rec
		idToOffset[id] = off
		return rec, nil
	}

	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := resolveOffset(raw.Offset)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodePackSequential parses a full pack byte slice with no companion
// index, discovering object boundaries purely from the inflater's
// consumed-input counts, and resolves every delta to a materialised
// Record. base, if non-nil, supplies REF_DELTA bases absent from the pack
// itself (thin-pack resolution).
func DecodePackSequential(data []byte, base *Store) ([]Record, error) {
	_, raws, err := scanSequential(data)
	if err != nil {
		return nil, err
	}
	return resolvePackObjects(raws, base)
}

// DecodePackIndexed parses a full pack byte slice using a companion index
// to fix each object's exact on-disk byte range. Preferred over
// DecodePackSequential when an index is available.
func DecodePackIndexed(data []byte, idx *PackIndex, base *Store) ([]Record, error) {
	_, raws, err := scanIndexed(data, idx)
	if err != nil {
		return nil, err
	}
	recs, err := resolvePackObjects(raws, base)
	if err != nil {
		return nil, err
	}
	for i, ie := range idx.EntriesByOffset() {
		if recs[i].ID != ie.ID {
			return nil, fmt.Errorf("%w: object at offset %d resolved to %s, index declares %s",
				ErrChecksumMismatch, ie.Offset, recs[i].ID, ie.ID)
		}
	}
	return recs, nil
}
