package main

import (
	"os"
	"strings"

	"github.com/gitremote/fetchcore/pkg/remote"
)

// newClientForURL builds a remote.Client for remoteURL, resolving auth in
// the order: FETCHCORE_TOKEN env var, FETCHCORE_USERNAME/FETCHCORE_PASSWORD
// env vars, then the --config file.
func newClientForURL(remoteURL string) (*remote.Client, error) {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	opts := remote.ClientOptions{
		Timeout:  cfg.timeout(),
		Token:    cfg.Token,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if token := strings.TrimSpace(os.Getenv("FETCHCORE_TOKEN")); token != "" {
		opts.Token = token
	} else if user := strings.TrimSpace(os.Getenv("FETCHCORE_USERNAME")); user != "" {
		opts.Token = ""
		opts.Username = user
		opts.Password = os.Getenv("FETCHCORE_PASSWORD")
	}

	return remote.NewClient(remoteURL, opts)
}
