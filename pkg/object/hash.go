package object

import (
	"crypto/sha1"
	"fmt"
)

// HashObject computes the Git object identifier for the envelope
// "kind size\x00payload", mirroring the hashing scheme every materialised
// Git object uses.
func HashObject(kind Kind, data []byte) ID {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", kind, len(data))
	h.Write(data)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// HashBytes computes the raw SHA-1 digest of data with no envelope, used for
// packfile and pack-index trailer verification.
func HashBytes(data []byte) ID {
	sum := sha1.Sum(data)
	return ID(sum)
}
