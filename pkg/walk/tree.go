// Package walk navigates the commit/tree graph that object.Store holds,
// enumerates the blobs beneath a subdirectory, and drives the two-phase
// partial-clone workflow that turns a remote repository path into a
// materialised set of file contents.
package walk

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/gitremote/fetchcore/pkg/object"
)

// NavigateTree resolves path (slash-separated, relative to root, "" or "."
// meaning root itself) to the tree identifier of the subdirectory it
// names, walking one path component at a time.
func NavigateTree(store *object.Store, root object.ID, path string) (object.ID, error) {
	path = strings.Trim(path, "/")
	current := root
	if path == "" || path == "." {
		return current, nil
	}

	for _, component := range strings.Split(path, "/") {
		if component == "" {
			continue
		}
		rec, ok := store.Get(current)
		if !ok {
			return object.ID{}, fmt.Errorf("%w: tree %s", object.ErrNotFound, current)
		}
		if rec.Kind != object.KindTree {
			return object.ID{}, fmt.Errorf("%w: %s is a %s, not a tree", object.ErrNotADirectory, current, rec.Kind)
		}
		tree, err := object.ParseTree(rec.Data)
		if err != nil {
			return object.ID{}, err
		}

		var next *object.TreeEntry
		for i := range tree.Entries {
			if tree.Entries[i].Name == component {
				next = &tree.Entries[i]
				break
			}
		}
		if next == nil {
			return object.ID{}, fmt.Errorf("%w: no entry %q under tree %s", object.ErrNotFound, component, current)
		}
		if !next.IsDir() {
			return object.ID{}, fmt.Errorf("%w: %q is not a directory", object.ErrNotADirectory, component)
		}
		current = next.ID
	}
	return current, nil
}

// Visitor is called once for every entry WalkEntries encounters, with path
// set to the entry's slash-separated path relative to the tree WalkEntries
// was called with. Returning fs.SkipDir on a directory entry skips
// descending into it; any other non-nil error aborts the walk.
type Visitor func(path string, entry object.TreeEntry) error

// WalkEntries depth-first visits every entry reachable from treeID:
// files, subtrees, symlinks, and gitlinks alike. Subtrees are visited
// before their children.
func WalkEntries(store *object.Store, treeID object.ID, visitor Visitor) error {
	return walkTree(store, treeID, "", visitor)
}

func walkTree(store *object.Store, treeID object.ID, prefix string, visitor Visitor) error {
	rec, ok := store.Get(treeID)
	if !ok {
		return fmt.Errorf("%w: tree %s", object.ErrNotFound, treeID)
	}
	if rec.Kind != object.KindTree {
		return fmt.Errorf("%w: %s is a %s, not a tree", object.ErrNotADirectory, treeID, rec.Kind)
	}
	tree, err := object.ParseTree(rec.Data)
	if err != nil {
		return err
	}

	for _, entry := range tree.Entries {
		entryPath := entry.Name
		if prefix != "" {
			entryPath = prefix + "/" + entry.Name
		}

		err := visitor(entryPath, entry)
		if err != nil {
			if entry.IsDir() && err == fs.SkipDir {
				continue
			}
			return err
		}

		if entry.IsDir() {
			if err := walkTree(store, entry.ID, entryPath, visitor); err != nil {
				return err
			}
		}
	}
	return nil
}
