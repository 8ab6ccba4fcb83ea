package walk

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gitremote/fetchcore/pkg/object"
	"github.com/gitremote/fetchcore/pkg/remote"
)

type fixtureRepo struct {
	commitID  object.ID
	commit    object.Commit
	rootTree  object.Tree
	subTree   object.Tree
	fileID    object.ID
	fileData  []byte
	bloblessPack []byte
	thinPack     []byte
}

func buildFixtureRepo(t *testing.T) fixtureRepo {
	t.Helper()

	fileData := []byte("package sub\n")
	fileID := object.HashObject(object.KindBlob, fileData)

	subTree := object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeFile, Name: "file.go", ID: fileID},
	}}
	subTreeData := subTree.Marshal()
	subTreeID := object.HashObject(object.KindTree, subTreeData)

	rootTree := object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeDir, Name: "sub", ID: subTreeID},
	}}
	rootTreeData := rootTree.Marshal()
	rootTreeID := object.HashObject(object.KindTree, rootTreeData)

	commit := object.Commit{
		Tree:      rootTreeID,
		Author:    object.Participant{Name: "A", Email: "a@example.com", Time: 1, TZOffset: 0},
		Committer: object.Participant{Name: "A", Email: "a@example.com", Time: 1, TZOffset: 0},
		Message:   "initial\n",
	}
	commitData := commit.Marshal()
	commitID := object.HashObject(object.KindCommit, commitData)

	bloblessPack := buildRecordPack(
		object.Record{Kind: object.KindCommit, ID: commitID, Data: commitData},
		object.Record{Kind: object.KindTree, ID: rootTreeID, Data: rootTreeData},
		object.Record{Kind: object.KindTree, ID: subTreeID, Data: subTreeData},
	)
	thinPack := buildRecordPack(object.Record{Kind: object.KindBlob, ID: fileID, Data: fileData})

	return fixtureRepo{
		commitID:     commitID,
		commit:       commit,
		rootTree:     rootTree,
		subTree:      subTree,
		fileID:       fileID,
		fileData:     fileData,
		bloblessPack: bloblessPack,
		thinPack:     thinPack,
	}
}

func writeFixtureAdvertisement(w http.ResponseWriter, commitID object.ID) {
	w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
	remote.WritePktLine(w, []byte("# service=git-upload-pack\n"))
	remote.WriteFlush(w)
	caps := "multi_ack_detailed side-band-64k ofs-delta filter"
	remote.WritePktLine(w, []byte(commitID.String()+" refs/heads/main\x00"+caps+"\n"))
	remote.WriteFlush(w)
}

func writeFixtureFetchResult(w http.ResponseWriter, pack []byte) {
	w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
	remote.WritePktLine(w, []byte("NAK\n"))
	remote.WritePktLine(w, append([]byte{remote.SidebandData}, pack...))
	remote.WriteFlush(w)
}

func newFixtureServer(t *testing.T, repo fixtureRepo) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeFixtureAdvertisement(w, repo.commitID)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			if bytes.Contains(body, []byte("filter blob:none")) {
				writeFixtureFetchResult(w, repo.bloblessPack)
			} else {
				writeFixtureFetchResult(w, repo.thinPack)
			}
		}
	}))
}

func TestLoadSubdirectoryFetchesMissingBlobs(t *testing.T) {
	repo := buildFixtureRepo(t)
	srv := newFixtureServer(t, repo)
	defer srv.Close()

	client, err := remote.NewClient(srv.URL, remote.ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	discovered, err := client.DiscoverRefs(context.Background())
	if err != nil {
		t.Fatalf("DiscoverRefs: %v", err)
	}

	store := object.NewStore(0)
	files, err := LoadSubdirectory(context.Background(), client, discovered.Capabilities, store, repo.commitID, "sub", nil)
	if err != nil {
		t.Fatalf("LoadSubdirectory: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("len(files) = %d, want 1", len(files))
	}
	data, ok := files["file.go"]
	if !ok {
		t.Fatalf("files = %v, missing file.go", files)
	}
	if !bytes.Equal(data, repo.fileData) {
		t.Fatalf("file.go content = %q, want %q", data, repo.fileData)
	}
}

func TestLoadSubdirectorySkipsThinFetchWhenCacheHasBlob(t *testing.T) {
	repo := buildFixtureRepo(t)

	postCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeFixtureAdvertisement(w, repo.commitID)
		case http.MethodPost:
			postCount++
			body, _ := io.ReadAll(r.Body)
			if bytes.Contains(body, []byte("filter blob:none")) {
				writeFixtureFetchResult(w, repo.bloblessPack)
				return
			}
			t.Fatal("a thin fetch should not have been issued when the cache already has the blob")
		}
	}))
	defer srv.Close()

	client, err := remote.NewClient(srv.URL, remote.ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	discovered, err := client.DiscoverRefs(context.Background())
	if err != nil {
		t.Fatalf("DiscoverRefs: %v", err)
	}

	cache := &fakeBlobCache{blobs: map[object.ID][]byte{repo.fileID: repo.fileData}}
	store := object.NewStore(0)
	files, err := LoadSubdirectory(context.Background(), client, discovered.Capabilities, store, repo.commitID, "sub", cache)
	if err != nil {
		t.Fatalf("LoadSubdirectory: %v", err)
	}
	if !bytes.Equal(files["file.go"], repo.fileData) {
		t.Fatalf("file.go content = %q, want %q", files["file.go"], repo.fileData)
	}
	if postCount != 1 {
		t.Fatalf("postCount = %d, want 1 (blobless only)", postCount)
	}
}

type fakeBlobCache struct {
	blobs  map[object.ID][]byte
	loaded []object.ID
}

func (f *fakeBlobCache) Lookup(id object.ID) ([]byte, bool) {
	data, ok := f.blobs[id]
	return data, ok
}

func (f *fakeBlobCache) NotifyLoaded(id object.ID, data []byte) {
	f.loaded = append(f.loaded, id)
	if f.blobs == nil {
		f.blobs = make(map[object.ID][]byte)
	}
	f.blobs[id] = data
}

func TestLoadSubdirectoryNotifiesCacheOfNewBlobs(t *testing.T) {
	repo := buildFixtureRepo(t)
	srv := newFixtureServer(t, repo)
	defer srv.Close()

	client, err := remote.NewClient(srv.URL, remote.ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	discovered, err := client.DiscoverRefs(context.Background())
	if err != nil {
		t.Fatalf("DiscoverRefs: %v", err)
	}

	cache := &fakeBlobCache{}
	store := object.NewStore(0)
	if _, err := LoadSubdirectory(context.Background(), client, discovered.Capabilities, store, repo.commitID, "sub", cache); err != nil {
		t.Fatalf("LoadSubdirectory: %v", err)
	}
	if len(cache.loaded) != 1 || cache.loaded[0] != repo.fileID {
		t.Fatalf("cache.loaded = %v, want [%s]", cache.loaded, repo.fileID)
	}
}
