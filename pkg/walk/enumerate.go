package walk

import (
	"io/fs"

	"github.com/gitremote/fetchcore/pkg/object"
)

// SpecialEntry is reported to an EnumerateHook for a tree entry that
// EnumerateBlobs does not itself know how to materialise: a symlink (whose
// target is blob content, not necessarily a path worth resolving in a
// managed client) or a gitlink (a submodule commit reference, pointing
// outside this repository's object graph entirely).
type SpecialEntry struct {
	Path  string
	Entry object.TreeEntry
}

// EnumerateHook is called for every symlink or gitlink entry found while
// enumerating blobs, letting the caller decide how to represent it. A nil
// hook means such entries are silently skipped.
type EnumerateHook func(SpecialEntry)

// EnumerateBlobs walks every entry reachable from treeID and returns the
// identifiers of every plain-file or executable blob found, in the order
// WalkEntries visits them. Symlink and gitlink entries are reported to
// hook, if non-nil, rather than treated as blobs to fetch.
func EnumerateBlobs(store *object.Store, treeID object.ID, hook EnumerateHook) ([]object.ID, error) {
	var ids []object.ID
	err := WalkEntries(store, treeID, func(path string, entry object.TreeEntry) error {
		switch {
		case entry.IsDir():
			return nil
		case entry.IsSymlink(), entry.IsGitlink():
			if hook != nil {
				hook(SpecialEntry{Path: path, Entry: entry})
			}
			return nil
		default:
			ids = append(ids, entry.ID)
			return nil
		}
	})
	if err != nil && err != fs.SkipDir {
		return nil, err
	}
	return ids, nil
}
