package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLsRemoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls-remote <url>",
		Short: "Discover refs advertised by a remote repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientForURL(args[0])
			if err != nil {
				return err
			}
			refs, err := client.DiscoverRefs(cmd.Context())
			if err != nil {
				return err
			}
			if target, ok := refs.HeadTarget(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD -> %s\n", target)
			}
			for _, r := range refs.Refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.ID, r.Name)
			}
			return nil
		},
	}
}
