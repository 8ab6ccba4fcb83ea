package remote

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// decodeResponseBody returns resp.Body, transparently unwrapping a gzip
// Content-Encoding. git-http-backend compresses the info/refs
// advertisement opportunistically when the client advertises support for
// it; the upload-pack POST body itself is never gzip-wrapped, so this is
// only ever applied to discovery responses.
func decodeResponseBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip response body: %w", err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
