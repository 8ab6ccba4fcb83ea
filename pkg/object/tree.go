package object

import (
	"bytes"
	"fmt"
	"sort"
)

// Mode bits for a tree entry, exactly the text git writes into a tree
// object (there is no binary mode encoding on the wire).
const (
	ModeDir        = "40000"
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
	ModeGitlink    = "160000"
)

// TreeEntry is one "mode name id" record inside a tree object.
type TreeEntry struct {
	Mode string
	Name string
	ID   ID
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == ModeDir }

// IsSymlink reports whether the entry is a symbolic link blob.
func (e TreeEntry) IsSymlink() bool { return e.Mode == ModeSymlink }

// IsGitlink reports whether the entry is a submodule commit reference.
func (e TreeEntry) IsGitlink() bool { return e.Mode == ModeGitlink }

// Tree is a parsed Git tree object: an ordered list of entries, each
// pointing at a blob, subtree, or submodule commit.
type Tree struct {
	Entries []TreeEntry
}

// ParseTree parses a tree object's raw payload: repeated
// "mode SP name NUL" headers each followed by a raw 20-byte identifier,
// with no separator between entries.
func ParseTree(data []byte) (Tree, error) {
	var t Tree
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return Tree{}, fmt.Errorf("%w: tree entry missing mode separator", ErrBadFormat)
		}
		mode := string(data[:sp])
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return Tree{}, fmt.Errorf("%w: tree entry missing name terminator", ErrBadFormat)
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < idSize {
			return Tree{}, fmt.Errorf("%w: tree entry identifier truncated", ErrBadFormat)
		}
		id, err := IDFromBytes(data[:idSize])
		if err != nil {
			return Tree{}, err
		}
		data = data[idSize:]

		t.Entries = append(t.Entries, TreeEntry{Mode: mode, Name: name, ID: id})
	}
	return t, nil
}

// Marshal serialises a tree back to its canonical wire form. Entries are
// written in the order git itself requires: byte-wise by name, treating a
// directory name as if it carried a trailing slash.
func (t Tree) Marshal() []byte {
	entries := make([]TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})

	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s %s\x00", e.Mode, e.Name)
		buf.Write(e.ID[:])
	}
	return buf.Bytes()
}

func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}
