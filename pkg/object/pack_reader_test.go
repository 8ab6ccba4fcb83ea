package object

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodePackSequentialPlainObjects(t *testing.T) {
	blobData := []byte("package main\n")
	treeData := Tree{Entries: []TreeEntry{{Mode: ModeFile, Name: "main.go", ID: HashObject(KindBlob, blobData)}}}.Marshal()
	commitData := Commit{
		Tree:      HashObject(KindTree, treeData),
		Author:    Participant{Name: "A", Email: "a@example.com", Time: 1000, TZOffset: 0},
		Committer: Participant{Name: "A", Email: "a@example.com", Time: 1000, TZOffset: 0},
		Message:   "initial\n",
	}.Marshal()

	pack := assemblePack(
		buildPlainEntry(packTypeBlob, blobData),
		buildPlainEntry(packTypeTree, treeData),
		buildPlainEntry(packTypeCommit, commitData),
	)

	records, err := DecodePackSequential(pack, nil)
	if err != nil {
		t.Fatalf("DecodePackSequential: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	for i, want := range []Kind{KindBlob, KindTree, KindCommit} {
		if records[i].Kind != want {
			t.Fatalf("records[%d].Kind = %v, want %v", i, records[i].Kind, want)
		}
		if records[i].ID != HashObject(records[i].Kind, records[i].Data) {
			t.Fatalf("records[%d] identifier does not match its content", i)
		}
	}
}

func TestDecodePackSequentialOfsDelta(t *testing.T) {
	base := []byte("hello world\n")
	target := []byte("hello there world\n")

	baseEntry := buildPlainEntry(packTypeBlob, base)
	deltaPayload := encodeInsertOnlyDelta(base, target)
	deltaEntry := buildOfsDeltaEntry(uint64(len(baseEntry)), deltaPayload)

	pack := assemblePack(baseEntry, deltaEntry)

	records, err := DecodePackSequential(pack, nil)
	if err != nil {
		t.Fatalf("DecodePackSequential: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[1].Kind != KindBlob {
		t.Fatalf("delta record kind = %v, want blob", records[1].Kind)
	}
	if !bytes.Equal(records[1].Data, target) {
		t.Fatalf("delta record data = %q, want %q", records[1].Data, target)
	}
	if records[1].ID != HashObject(KindBlob, target) {
		t.Fatal("delta record identifier does not match reconstructed content")
	}
}

func TestDecodePackSequentialRefDeltaRequiresExternalBase(t *testing.T) {
	base := []byte("hello world\n")
	target := []byte("hello there world\n")
	baseID := HashObject(KindBlob, base)

	deltaPayload := encodeInsertOnlyDelta(base, target)
	pack := assemblePack(buildRefDeltaEntry(baseID, deltaPayload))

	if _, err := DecodePackSequential(pack, nil); !errors.Is(err, ErrUnresolvedDelta) {
		t.Fatalf("expected ErrUnresolvedDelta, got %v", err)
	}

	store := NewStore(0)
	if err := store.Put(Record{Kind: KindBlob, ID: baseID, Data: base}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	records, err := DecodePackSequential(pack, store)
	if err != nil {
		t.Fatalf("DecodePackSequential with base store: %v", err)
	}
	if len(records) != 1 || !bytes.Equal(records[0].Data, target) {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecodePackSequentialRejectsTrailerTamper(t *testing.T) {
	pack := assemblePack(buildPlainEntry(packTypeBlob, []byte("hello\n")))
	tampered := append([]byte(nil), pack...)
	tampered[packHeaderSize] ^= 0xff

	if _, err := DecodePackSequential(tampered, nil); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDecodePackIndexedVerifiesCRCAndID(t *testing.T) {
	blobData := []byte("package main\n")
	pack := assemblePack(buildPlainEntry(packTypeBlob, blobData))

	idx, err := GenerateIndex(pack, nil)
	if err != nil {
		t.Fatalf("GenerateIndex: %v", err)
	}

	records, err := DecodePackIndexed(pack, idx, nil)
	if err != nil {
		t.Fatalf("DecodePackIndexed: %v", err)
	}
	if len(records) != 1 || records[0].ID != HashObject(KindBlob, blobData) {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecodePackIndexedDetectsEntryCorruption(t *testing.T) {
	blobData := []byte("package main\n")
	pack := assemblePack(buildPlainEntry(packTypeBlob, blobData))

	idx, err := GenerateIndex(pack, nil)
	if err != nil {
		t.Fatalf("GenerateIndex: %v", err)
	}
	// Simulate an index that has drifted from its companion pack: the
	// recorded CRC-32 no longer matches the on-disk bytes at that offset.
	idx.entries[0].CRC32 ^= 0xffffffff

	if _, err := DecodePackIndexed(pack, idx, nil); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}
