package remote

import "errors"

// Sentinel errors matching the error kinds a Smart HTTP fetch can surface.
// Wrap with fmt.Errorf("...: %w", ErrX) to add context while keeping
// errors.Is(err, ErrX) working.
var (
	// ErrNetwork means the underlying transport failed before a response
	// was received at all (DNS, connection refused, TLS, timeout).
	ErrNetwork = errors.New("remote: network error")
	// ErrProtocol means a response was received but violated pkt-line
	// framing, capability grammar, or side-band framing.
	ErrProtocol = errors.New("remote: protocol error")
	// ErrUnauthorized means the server responded 401 or 403.
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrNotFound means the server responded 404, or did not advertise a
	// requested symbolic ref.
	ErrNotFound = errors.New("remote: repository not found")
	// ErrCancelled means the caller's context was cancelled or timed out
	// mid-request.
	ErrCancelled = errors.New("remote: cancelled")
)
