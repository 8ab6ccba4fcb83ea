package object

import "testing"

func TestReverseIndexRoundTrip(t *testing.T) {
	pack := threeObjectPack()
	idx, err := GenerateIndex(pack, nil)
	if err != nil {
		t.Fatalf("GenerateIndex: %v", err)
	}
	records, err := DecodePackSequential(pack, nil)
	if err != nil {
		t.Fatalf("DecodePackSequential: %v", err)
	}

	ridx := GenerateReverseIndex(idx)
	positions, packChecksum, err := ParseReverseIndex(ridx)
	if err != nil {
		t.Fatalf("ParseReverseIndex: %v", err)
	}
	if packChecksum != idx.PackChecksum() {
		t.Fatal("reverse index pack checksum mismatch")
	}
	if len(positions) != len(records) {
		t.Fatalf("len(positions) = %d, want %d", len(positions), len(records))
	}

	sorted := idx.Entries()
	for packPos, rec := range records {
		idxPos := positions[packPos]
		if sorted[idxPos].ID != rec.ID {
			t.Fatalf("pack position %d maps to index position %d (%s), want %s",
				packPos, idxPos, sorted[idxPos].ID, rec.ID)
		}
	}
}

func TestParseReverseIndexRejectsBadSignature(t *testing.T) {
	if _, _, err := ParseReverseIndex([]byte("not a reverse index, but padded to clear the length check.")); err == nil {
		t.Fatal("expected error for bad signature")
	}
}

func TestParseReverseIndexRejectsChecksumTamper(t *testing.T) {
	idx, err := GenerateIndex(threeObjectPack(), nil)
	if err != nil {
		t.Fatalf("GenerateIndex: %v", err)
	}
	data := GenerateReverseIndex(idx)
	data[len(data)-1] ^= 0xff

	if _, _, err := ParseReverseIndex(data); err == nil {
		t.Fatal("expected error for tampered reverse index checksum")
	}
}
