package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gitremote/fetchcore/pkg/object"
	"github.com/gitremote/fetchcore/pkg/walk"
)

func newGetCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "get <url> <ref-or-commit> [subdir]",
		Short: "Materialise one subdirectory of a commit without a local git checkout",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return fmt.Errorf("--out is required")
			}
			subdir := ""
			if len(args) == 3 {
				subdir = args[2]
			}

			client, err := newClientForURL(args[0])
			if err != nil {
				return err
			}
			discovered, err := client.DiscoverRefs(cmd.Context())
			if err != nil {
				return err
			}

			commitID, ok := discovered.Lookup(args[1])
			if !ok {
				commitID, err = object.ParseID(args[1])
				if err != nil {
					return fmt.Errorf("%q is neither an advertised ref nor a commit id: %w", args[1], err)
				}
			}

			store := object.NewStore(0)
			files, err := walk.LoadSubdirectory(cmd.Context(), client, discovered.Capabilities, store, commitID, subdir, nil)
			if err != nil {
				return err
			}

			for path, data := range files {
				dest := filepath.Join(outDir, filepath.FromSlash(path))
				if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
					return fmt.Errorf("create directory for %q: %w", path, err)
				}
				if err := os.WriteFile(dest, data, 0o644); err != nil {
					return fmt.Errorf("write %q: %w", path, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", len(files), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "local directory to write materialised files into")
	return cmd
}
