// Command fetchcore is a thin CLI around the pkg/object, pkg/remote, and
// pkg/walk packages: list a remote's refs, pull a packfile, or materialise
// one subdirectory of a commit without ever invoking git.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "fetchcore",
		Short: "Read files out of a remote Git repository over HTTP, with no local git",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a TOML config file (default: none)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newLsRemoteCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newGetCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fetchcore:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("fetchcore 0.1.0")
		},
	}
}
