package remote

import (
	"sort"
	"strings"
)

// Capability names this client advertises and understands. Protocol v2's
// capabilities (command=, agent=, object-format=) are deliberately absent:
// this driver only ever speaks v1.
const (
	CapMultiAckDetailed = "multi_ack_detailed"
	CapSideBand64k       = "side-band-64k"
	CapOfsDelta          = "ofs-delta"
	CapNoProgress        = "no-progress"
	CapShallow           = "shallow"
	CapDeepenSince       = "deepen-since"
	CapFilter            = "filter"
	CapSymref            = "symref"
	CapAgent             = "agent"
)

// ClientCapabilities is the capability line this client sends on the first
// want of a fetch request.
var ClientCapabilities = Capabilities{
	tokens: []string{
		CapMultiAckDetailed,
		CapSideBand64k,
		CapOfsDelta,
		CapNoProgress,
		CapShallow,
		CapDeepenSince,
		CapFilter,
		"agent=gitremote-fetchcore/1.0",
	},
}

// Capabilities is a set of protocol capability tokens as advertised on the
// first ref line of an info/refs response, or sent by the client after the
// first want. Tokens may be bare flags ("ofs-delta") or carry a value
// ("agent=git/2.40.0"); a repeatable token such as "symref" keeps every
// occurrence.
type Capabilities struct {
	tokens []string
}

// ParseCapabilities splits a space-separated capability string.
func ParseCapabilities(raw string) Capabilities {
	var c Capabilities
	for _, tok := range strings.Fields(raw) {
		if tok != "" {
			c.tokens = append(c.tokens, tok)
		}
	}
	return c
}

// Has reports whether name is present, ignoring any "=value" suffix.
func (c Capabilities) Has(name string) bool {
	for _, tok := range c.tokens {
		key, _, _ := strings.Cut(tok, "=")
		if key == name {
			return true
		}
	}
	return false
}

// Value returns the value of the first occurrence of a "name=value" token.
func (c Capabilities) Value(name string) (string, bool) {
	for _, tok := range c.tokens {
		key, val, ok := strings.Cut(tok, "=")
		if key == name && ok {
			return val, true
		}
	}
	return "", false
}

// Symrefs returns every "symref=<name>:<target>" token as a map, used to
// resolve HEAD to a concrete branch ref during discovery.
func (c Capabilities) Symrefs() map[string]string {
	out := make(map[string]string)
	for _, tok := range c.tokens {
		val, ok := strings.CutPrefix(tok, "symref=")
		if !ok {
			continue
		}
		name, target, ok := strings.Cut(val, ":")
		if ok {
			out[name] = target
		}
	}
	return out
}

// Intersect returns the tokens of c whose bare name also appears in other,
// used to compute which of this client's capabilities the server actually
// supports before the want/have exchange begins.
func (c Capabilities) Intersect(other Capabilities) Capabilities {
	var out Capabilities
	for _, tok := range c.tokens {
		key, _, _ := strings.Cut(tok, "=")
		if other.Has(key) {
			out.tokens = append(out.tokens, tok)
		}
	}
	return out
}

// String renders the capability set as the space-separated token string
// git appends after the first want/ref line, in sorted order.
func (c Capabilities) String() string {
	sorted := make([]string, len(c.tokens))
	copy(sorted, c.tokens)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
