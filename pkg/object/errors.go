package object

import "errors"

// Sentinel errors matching the error kinds this module's callers must be
// able to match on. Wrap with fmt.Errorf("...: %w", ErrX) to add context
// while keeping errors.Is(err, ErrX) working.
var (
	// ErrBadFormat means a signature, version, or framing check failed.
	ErrBadFormat = errors.New("object: bad format")
	// ErrChecksumMismatch means a trailer or per-object identifier check failed.
	ErrChecksumMismatch = errors.New("object: checksum mismatch")
	// ErrUnresolvedDelta means a delta's base object could not be found in
	// either the pack being decoded or a supplied companion store.
	ErrUnresolvedDelta = errors.New("object: unresolved delta base")
	// ErrUnsupportedVersion means a pack or index version other than the
	// one this module implements was encountered.
	ErrUnsupportedVersion = errors.New("object: unsupported version")
	// ErrLargeOffsetUnsupported means an offset requiring the idx v2
	// layer-2 large-offset table was encountered during generation.
	ErrLargeOffsetUnsupported = errors.New("object: large pack offset unsupported")
	// ErrNotFound means a requested commit, tree, or path did not resolve.
	ErrNotFound = errors.New("object: not found")
	// ErrNotADirectory means a path component traversed through a
	// non-tree entry.
	ErrNotADirectory = errors.New("object: not a directory")
)
