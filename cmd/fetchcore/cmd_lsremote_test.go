package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gitremote/fetchcore/pkg/object"
)

func TestLsRemotePrintsRefsAndHead(t *testing.T) {
	var main object.ID
	main[0] = 0xaa

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTestAdvertisement(w, "multi_ack_detailed ofs-delta symref=HEAD:refs/heads/main", map[string]object.ID{
			"refs/heads/main": main,
		})
	}))
	defer srv.Close()

	cfgFile = ""
	cmd := newLsRemoteCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{srv.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "HEAD -> refs/heads/main") {
		t.Fatalf("output missing HEAD line: %q", got)
	}
	if !strings.Contains(got, main.String()+"\trefs/heads/main") {
		t.Fatalf("output missing ref line: %q", got)
	}
}

func TestLsRemoteRequiresExactlyOneArg(t *testing.T) {
	cmd := newLsRemoteCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when no url is given")
	}
}
