package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gitremote/fetchcore/pkg/object"
	"github.com/gitremote/fetchcore/pkg/remote"
)

// runFetch dispatches to the fetch variant implied by depth/since/blobless,
// falling back to a full fetch when none apply.
func runFetch(cmd *cobra.Command, client *remote.Client, discovered *remote.DiscoverResult, wants []object.ID, depth int, since time.Time, blobless bool) (*remote.FetchResult, error) {
	switch {
	case blobless:
		return client.FetchBlobless(cmd.Context(), wants, discovered.Capabilities)
	case depth > 0 || !since.IsZero():
		return client.FetchShallow(cmd.Context(), wants, depth, since, discovered.Capabilities)
	default:
		return client.FetchFull(cmd.Context(), wants, nil, discovered.Capabilities)
	}
}
