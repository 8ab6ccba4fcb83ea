package walk

import (
	"context"
	"fmt"

	"github.com/gitremote/fetchcore/pkg/object"
	"github.com/gitremote/fetchcore/pkg/remote"
)

// BlobCache lets a caller keep previously fetched blob content around
// across calls to LoadSubdirectory, so a repeated fetch of an overlapping
// subdirectory need not re-download objects the caller already has.
type BlobCache interface {
	// Lookup returns the content of a previously seen blob, if any.
	Lookup(id object.ID) ([]byte, bool)
	// NotifyLoaded is called once for every blob LoadSubdirectory fetches
	// that was not already known to the cache.
	NotifyLoaded(id object.ID, data []byte)
}

// LoadSubdirectory materialises every regular file beneath subdir (a
// slash-separated path relative to the repository root, "" for the whole
// tree) at commitID, returning a map from path to file content.
//
// It runs as a two-phase partial clone: first a blobless fetch brings in
// just enough commits and trees to navigate to subdir and enumerate the
// blobs underneath it, then a second, thin fetch retrieves only the blobs
// not already available from store or cache.
func LoadSubdirectory(ctx context.Context, client *remote.Client, serverCaps remote.Capabilities, store *object.Store, commitID object.ID, subdir string, cache BlobCache) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrCancelled, err)
	}

	_, subtreeID, err := resolveSubtree(ctx, client, serverCaps, store, commitID, subdir)
	if err != nil {
		return nil, err
	}

	// Symlinks and gitlinks are never materialised as file content; a
	// caller that needs them can call EnumerateBlobs directly with its own
	// hook.
	blobIDs, err := EnumerateBlobs(store, subtreeID, nil)
	if err != nil {
		return nil, err
	}

	hits := make(map[object.ID][]byte, len(blobIDs))
	var missing []object.ID
	for _, id := range blobIDs {
		if _, ok := hits[id]; ok {
			continue // duplicate blob referenced by more than one tree entry
		}
		if cache != nil {
			if data, ok := cache.Lookup(id); ok {
				hits[id] = data
				continue
			}
		}
		if rec, ok := store.Get(id); ok {
			hits[id] = rec.Data
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrCancelled, err)
		}
		result, err := client.FetchThin(ctx, missing, []object.ID{commitID}, serverCaps)
		if err != nil {
			return nil, err
		}
		records, err := object.DecodePackSequential(result.Pack, store)
		if err != nil {
			return nil, err
		}
		if err := store.Merge(records); err != nil {
			return nil, err
		}
		for _, id := range missing {
			rec, ok := store.Get(id)
			if !ok {
				return nil, fmt.Errorf("%w: blob %s absent after thin fetch", object.ErrNotFound, id)
			}
			hits[id] = rec.Data
			if cache != nil {
				cache.NotifyLoaded(id, rec.Data)
			}
		}
	}

	out := make(map[string][]byte, len(hits))
	err = WalkEntries(store, subtreeID, func(path string, entry object.TreeEntry) error {
		if entry.IsDir() || entry.IsSymlink() || entry.IsGitlink() {
			return nil
		}
		data, ok := hits[entry.ID]
		if !ok {
			return fmt.Errorf("%w: blob %s for %q", object.ErrNotFound, entry.ID, path)
		}
		out[path] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolveSubtree runs the blobless half of the workflow: fetch commit and
// tree objects only, merge them into store, then navigate from the commit
// to subdir's tree identifier.
func resolveSubtree(ctx context.Context, client *remote.Client, serverCaps remote.Capabilities, store *object.Store, commitID object.ID, subdir string) (object.Commit, object.ID, error) {
	if _, ok := store.Get(commitID); !ok {
		result, err := client.FetchBlobless(ctx, []object.ID{commitID}, serverCaps)
		if err != nil {
			return object.Commit{}, object.ID{}, err
		}
		records, err := object.DecodePackSequential(result.Pack, nil)
		if err != nil {
			return object.Commit{}, object.ID{}, err
		}
		if err := store.Merge(records); err != nil {
			return object.Commit{}, object.ID{}, err
		}
	}

	commitRec, ok := store.Get(commitID)
	if !ok {
		return object.Commit{}, object.ID{}, fmt.Errorf("%w: commit %s", object.ErrNotFound, commitID)
	}
	if commitRec.Kind != object.KindCommit {
		return object.Commit{}, object.ID{}, fmt.Errorf("%w: %s is a %s, not a commit", object.ErrBadFormat, commitID, commitRec.Kind)
	}
	commit, err := object.ParseCommit(commitRec.Data)
	if err != nil {
		return object.Commit{}, object.ID{}, err
	}

	subtreeID, err := NavigateTree(store, commit.Tree, subdir)
	if err != nil {
		return object.Commit{}, object.ID{}, err
	}
	return commit, subtreeID, nil
}
