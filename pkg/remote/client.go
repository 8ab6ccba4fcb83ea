package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gitremote/fetchcore/pkg/object"
)

const (
	uploadPackService     = "git-upload-pack"
	advertisementMIME     = "application/x-git-upload-pack-advertisement"
	uploadPackRequestMIME = "application/x-git-upload-pack-request"
	uploadPackResultMIME  = "application/x-git-upload-pack-result"
)

// Ref is one advertised reference: a name (e.g. "refs/heads/main") and the
// object identifier it currently points at.
type Ref struct {
	Name string
	ID   object.ID
}

// DiscoverResult is the parsed response of an info/refs ref advertisement.
type DiscoverResult struct {
	Refs         []Ref
	Capabilities Capabilities
}

// Lookup finds a ref by exact name.
func (d *DiscoverResult) Lookup(name string) (object.ID, bool) {
	for _, r := range d.Refs {
		if r.Name == name {
			return r.ID, true
		}
	}
	return object.ID{}, false
}

// HeadTarget returns the ref HEAD symbolically points at, per the server's
// advertised "symref=HEAD:<target>" capability.
func (d *DiscoverResult) HeadTarget() (string, bool) {
	target, ok := d.Capabilities.Symrefs()["HEAD"]
	return target, ok
}

// FetchOptions configures a fetch beyond the want list.
type FetchOptions struct {
	// Haves lists objects the caller already possesses. A non-empty Haves
	// list produces a thin pack: the server omits any object the client
	// already has, trusting the caller to splice it back in locally.
	Haves []object.ID
	// Deepen, if positive, requests history truncated to that many commits
	// back from each want (a shallow fetch).
	Deepen int
	// DeepenSince, if non-zero, requests history truncated to commits no
	// older than this time.
	DeepenSince time.Time
	// Filter, if non-empty, requests object filtering, e.g. "blob:none"
	// for a blobless fetch.
	Filter string
}

// FetchResult is the raw outcome of a git-upload-pack round trip: the
// packfile bytes (still undecoded — hand them to object.DecodePackSequential
// or object.DecodePackIndexed) plus any shallow boundary commits the server
// reported.
type FetchResult struct {
	Pack    []byte
	Shallow []object.ID
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Timeout bounds a single HTTP round trip. Zero selects a default of
	// 60 seconds; negotiation and packfile transfer should instead be
	// bounded by the context passed to each call.
	Timeout time.Duration
	// Token, if set, is sent as a Bearer token.
	Token string
	// Username and Password, if Token is unset, are sent as HTTP basic
	// auth.
	Username string
	Password string
}

// Client drives the Smart HTTP (v1) protocol against a single repository
// endpoint. A Client holds no mutable state across requests and is safe
// for concurrent use.
type Client struct {
	base       string
	httpClient *http.Client
	token      string
	username   string
	password   string
}

// NewClient creates a Client for the repository at remoteURL, e.g.
// "https://example.com/owner/repo.git".
func NewClient(remoteURL string, opts ClientOptions) (*Client, error) {
	base, err := normalizeRepoURL(remoteURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		base:       base,
		httpClient: &http.Client{Timeout: timeout},
		token:      opts.Token,
		username:   opts.Username,
		password:   opts.Password,
	}, nil
}

func normalizeRepoURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: remote URL is required", ErrProtocol)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: parse remote URL: %v", ErrProtocol, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: remote URL must use http or https, got %q", ErrProtocol, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: remote URL must include a host", ErrProtocol)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		return
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// classifyTransportError maps a round-trip failure to the error kind the
// caller should see: a cancelled context takes precedence over the raw
// transport error, since net/http wraps ctx.Err() inside a *url.Error.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %s", ErrProtocol, resp.Status)
	default:
		return nil
	}
}

// DiscoverRefs performs the GET .../info/refs?service=git-upload-pack
// request and parses the advertised refs and capabilities.
func (c *Client) DiscoverRefs(ctx context.Context) (*DiscoverResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/info/refs?service="+uploadPackService, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, advertisementMIME) {
		return nil, fmt.Errorf("%w: server does not speak smart HTTP (content-type %q); dumb HTTP is not supported", ErrProtocol, ct)
	}

	body, err := decodeResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	pr := NewPktLineReader(body)
	first, flush, err := pr.ReadPacket()
	if err != nil {
		return nil, err
	}
	if flush {
		return nil, fmt.Errorf("%w: empty ref advertisement", ErrProtocol)
	}
	want := "# service=" + uploadPackService + "\n"
	if string(first) != want {
		return nil, fmt.Errorf("%w: expected service announcement %q, got %q", ErrProtocol, want, first)
	}
	if _, flush, err := pr.ReadPacket(); err != nil || !flush {
		return nil, fmt.Errorf("%w: expected flush after service announcement", ErrProtocol)
	}

	lines, err := pr.ReadLines()
	if err != nil {
		return nil, err
	}

	result := &DiscoverResult{}
	for i, line := range lines {
		line = bytes.TrimSuffix(line, []byte("\n"))
		var idPart, rest []byte
		if i == 0 {
			parts := bytes.SplitN(line, []byte{0}, 2)
			idPart = parts[0]
			if len(parts) == 2 {
				result.Capabilities = ParseCapabilities(string(parts[1]))
			}
			rest = idPart
		} else {
			rest = line
		}

		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: malformed ref line %q", ErrProtocol, line)
		}
		idStr, name := string(rest[:sp]), string(rest[sp+1:])
		id, err := object.ParseID(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed ref identifier %q: %v", ErrProtocol, idStr, err)
		}
		if id.IsZero() && name == "capabilities^{}" {
			continue // empty-repository marker: no real refs
		}
		result.Refs = append(result.Refs, Ref{Name: name, ID: id})
	}

	return result, nil
}

// ResolveSymref runs ref discovery against the client's repository and
// returns the target of the requested symbolic ref (e.g. "HEAD"), per the
// server's advertised "symref=<name>:<target>" capability. It returns
// ErrNotFound if the server does not advertise name as a symref.
func (c *Client) ResolveSymref(ctx context.Context, name string) (string, error) {
	discovered, err := c.DiscoverRefs(ctx)
	if err != nil {
		return "", err
	}
	target, ok := discovered.Capabilities.Symrefs()[name]
	if !ok {
		return "", fmt.Errorf("%w: %q is not advertised as a symref", ErrNotFound, name)
	}
	return target, nil
}

func buildWantLines(wants []object.ID, negotiated Capabilities, opts FetchOptions) ([]byte, error) {
	var buf bytes.Buffer
	for i, w := range wants {
		line := "want " + w.String()
		if i == 0 {
			if caps := negotiated.String(); caps != "" {
				line += " " + caps
			}
		}
		line += "\n"
		if err := WritePktLine(&buf, []byte(line)); err != nil {
			return nil, err
		}
	}
	if opts.Deepen > 0 {
		if err := WritePktLine(&buf, []byte(fmt.Sprintf("deepen %d\n", opts.Deepen))); err != nil {
			return nil, err
		}
	}
	if !opts.DeepenSince.IsZero() {
		line := fmt.Sprintf("deepen-since %d\n", opts.DeepenSince.Unix())
		if err := WritePktLine(&buf, []byte(line)); err != nil {
			return nil, err
		}
	}
	if opts.Filter != "" {
		if err := WritePktLine(&buf, []byte("filter "+opts.Filter+"\n")); err != nil {
			return nil, err
		}
	}
	if err := WriteFlush(&buf); err != nil {
		return nil, err
	}
	for _, h := range opts.Haves {
		if err := WritePktLine(&buf, []byte("have "+h.String()+"\n")); err != nil {
			return nil, err
		}
	}
	if err := WritePktLine(&buf, []byte("done\n")); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// doFetch runs one full negotiation round trip over git-upload-pack: wants
// (plus any shallow/filter lines), a single "done" with no incremental
// have negotiation, and the resulting packfile.
func (c *Client) doFetch(ctx context.Context, wants []object.ID, serverCaps Capabilities, opts FetchOptions) (*FetchResult, error) {
	if len(wants) == 0 {
		return nil, fmt.Errorf("%w: at least one want is required", ErrProtocol)
	}
	negotiated := ClientCapabilities.Intersect(serverCaps)
	if opts.Filter != "" && !negotiated.Has(CapFilter) {
		return nil, fmt.Errorf("%w: server does not support the filter capability", ErrProtocol)
	}
	if (opts.Deepen > 0 || !opts.DeepenSince.IsZero()) && !negotiated.Has(CapShallow) {
		return nil, fmt.Errorf("%w: server does not support shallow fetches", ErrProtocol)
	}

	body, err := buildWantLines(wants, negotiated, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+uploadPackService, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", uploadPackRequestMIME)
	req.Header.Set("Accept", uploadPackResultMIME)
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, uploadPackResultMIME) {
		return nil, fmt.Errorf("%w: unexpected upload-pack response content-type %q", ErrProtocol, ct)
	}

	sidebandEnabled := negotiated.Has(CapSideBand64k)
	pr := NewPktLineReader(resp.Body)

	var shallows []object.ID
	for {
		payload, flush, err := pr.ReadPacket()
		if err != nil {
			return nil, err
		}
		if flush {
			continue
		}
		trimmed := bytes.TrimRight(payload, "\n")

		if bytes.HasPrefix(trimmed, []byte("shallow ")) {
			id, err := object.ParseID(string(trimmed[len("shallow "):]))
			if err != nil {
				return nil, fmt.Errorf("%w: malformed shallow line %q", ErrProtocol, trimmed)
			}
			shallows = append(shallows, id)
			continue
		}
		if bytes.HasPrefix(trimmed, []byte("unshallow ")) {
			continue
		}
		if bytes.Equal(trimmed, []byte("NAK")) {
			// Negotiation finished with nothing in common; the pack
			// section starts with the very next read.
			return c.finishFetch(pr, sidebandEnabled, nil, shallows)
		}
		if bytes.HasPrefix(trimmed, []byte("ACK ")) {
			if len(bytes.Fields(trimmed)) == 2 {
				// Final ack, no "continue"/"common"/"ready" suffix.
				return c.finishFetch(pr, sidebandEnabled, nil, shallows)
			}
			continue
		}

		// Not a negotiation line: this packet is already the first
		// post-negotiation payload.
		return c.finishFetch(pr, sidebandEnabled, payload, shallows)
	}
}

// finishFetch reads the packfile section of an upload-pack response. If
// leading is non-nil, it is the first post-negotiation pkt-line payload,
// already consumed while classifying negotiation lines.
func (c *Client) finishFetch(pr *PktLineReader, sidebandEnabled bool, leading []byte, shallows []object.ID) (*FetchResult, error) {
	var reader io.Reader
	if sidebandEnabled {
		demux := NewSidebandDemuxerFromReader(pr, nil)
		if leading != nil {
			if err := demux.Seed(leading); err != nil {
				return nil, err
			}
		}
		reader = demux
	} else {
		if leading != nil {
			reader = io.MultiReader(bytes.NewReader(leading), pr.Rest())
		} else {
			reader = pr.Rest()
		}
	}

	pack, err := io.ReadAll(reader)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading packfile: %v", ErrProtocol, err)
	}
	return &FetchResult{Pack: pack, Shallow: shallows}, nil
}

// FetchFull fetches full history for every want, with no depth or object
// filtering. haves, if supplied, is sent so the server may produce a
// smaller (thin) pack.
func (c *Client) FetchFull(ctx context.Context, wants []object.ID, haves []object.ID, serverCaps Capabilities) (*FetchResult, error) {
	return c.doFetch(ctx, wants, serverCaps, FetchOptions{Haves: haves})
}

// FetchShallow fetches history truncated to depth commits back from each
// want (or, if since is non-zero, truncated to commits no older than
// since).
func (c *Client) FetchShallow(ctx context.Context, wants []object.ID, depth int, since time.Time, serverCaps Capabilities) (*FetchResult, error) {
	return c.doFetch(ctx, wants, serverCaps, FetchOptions{Deepen: depth, DeepenSince: since})
}

// FetchBlobless fetches commits and trees for every want but omits blob
// content, per the "filter blob:none" capability. When the server supports
// shallow fetches, it also requests depth 1: the caller only needs enough
// history to navigate from each want to the subtree it is after, not every
// ancestor commit.
func (c *Client) FetchBlobless(ctx context.Context, wants []object.ID, serverCaps Capabilities) (*FetchResult, error) {
	opts := FetchOptions{Filter: "blob:none"}
	if serverCaps.Has(CapShallow) {
		opts.Deepen = 1
	}
	return c.doFetch(ctx, wants, serverCaps, opts)
}

// FetchThin fetches only the objects reachable from wants that are not
// already reachable from haves, producing a pack that references bases the
// caller must already possess. haves must be non-empty.
func (c *Client) FetchThin(ctx context.Context, wants, haves []object.ID, serverCaps Capabilities) (*FetchResult, error) {
	if len(haves) == 0 {
		return nil, fmt.Errorf("%w: a thin fetch requires at least one have", ErrProtocol)
	}
	return c.doFetch(ctx, wants, serverCaps, FetchOptions{Haves: haves})
}
