package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitremote/fetchcore/pkg/object"
)

func newFetchCmd() *cobra.Command {
	var refs []string
	var depth int
	var since string
	var blobless bool
	var outFile string

	cmd := &cobra.Command{
		Use:   "fetch <url> [want-id ...]",
		Short: "Fetch a packfile for one or more wants and report its contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientForURL(args[0])
			if err != nil {
				return err
			}
			discovered, err := client.DiscoverRefs(cmd.Context())
			if err != nil {
				return err
			}

			wants := make([]object.ID, 0, len(args)-1+len(refs))
			for _, name := range refs {
				id, ok := discovered.Lookup(name)
				if !ok {
					return fmt.Errorf("ref %q not advertised by remote", name)
				}
				wants = append(wants, id)
			}
			for _, raw := range args[1:] {
				id, err := object.ParseID(raw)
				if err != nil {
					return fmt.Errorf("want %q: %w", raw, err)
				}
				wants = append(wants, id)
			}
			if len(wants) == 0 {
				return fmt.Errorf("at least one want (positional id or --ref) is required")
			}

			var sinceTime time.Time
			if since != "" {
				sinceTime, err = time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
			}

			fetchResult, err := runFetch(cmd, client, discovered, wants, depth, sinceTime, blobless)
			if err != nil {
				return err
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, fetchResult.Pack, 0o644); err != nil {
					return fmt.Errorf("write pack to %q: %w", outFile, err)
				}
			}

			records, err := object.DecodePackSequential(fetchResult.Pack, nil)
			if err != nil {
				return err
			}
			counts := map[object.Kind]int{}
			for _, r := range records {
				counts[r.Kind]++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects (commit=%d tree=%d blob=%d tag=%d)\n",
				len(records), counts[object.KindCommit], counts[object.KindTree], counts[object.KindBlob], counts[object.KindTag])
			for _, s := range fetchResult.Shallow {
				fmt.Fprintf(cmd.OutOrStdout(), "shallow %s\n", s)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&refs, "ref", nil, "ref name to resolve and fetch, may be repeated")
	cmd.Flags().IntVar(&depth, "depth", 0, "shallow fetch depth (0 means full history)")
	cmd.Flags().StringVar(&since, "since", "", "shallow fetch cutoff, RFC3339 timestamp")
	cmd.Flags().BoolVar(&blobless, "blobless", false, "omit blob content (filter blob:none)")
	cmd.Flags().StringVar(&outFile, "out", "", "write the raw packfile to this path")
	return cmd
}
