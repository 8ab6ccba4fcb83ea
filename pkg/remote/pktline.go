// Package remote drives the Git Smart HTTP (v1) protocol: reference
// discovery over info/refs and packfile negotiation over git-upload-pack,
// framed in pkt-line and demultiplexed over side-band-64k.
package remote

import (
	"bufio"
	"fmt"
	"io"
)

const (
	pktLineLenSize = 4
	pktLineMaxData = 65516 // 0xfff0 (the largest pkt-line length) minus the 4 length bytes
)

// FlushPkt is the wire encoding of a flush-pkt: a bare length of zero with
// no payload, used to mark the end of a section.
var FlushPkt = []byte("0000")

// EncodePktLine wraps data in a pkt-line: a 4-hex-digit length (counting
// the 4 length bytes themselves) followed by the payload verbatim.
func EncodePktLine(data []byte) ([]byte, error) {
	if len(data) > pktLineMaxData {
		return nil, fmt.Errorf("%w: pkt-line payload of %d bytes exceeds maximum", ErrProtocol, len(data))
	}
	out := make([]byte, 0, pktLineLenSize+len(data))
	out = append(out, []byte(fmt.Sprintf("%04x", len(data)+pktLineLenSize))...)
	out = append(out, data...)
	return out, nil
}

// WritePktLine writes one pkt-line to w.
func WritePktLine(w io.Writer, data []byte) error {
	line, err := EncodePktLine(data)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}

// WriteFlush writes a flush-pkt to w.
func WriteFlush(w io.Writer) error {
	_, err := w.Write(FlushPkt)
	return err
}

// PktLineReader reads a stream of pkt-lines, one at a time.
type PktLineReader struct {
	r *bufio.Reader
}

// NewPktLineReader wraps r for pkt-line reading.
func NewPktLineReader(r io.Reader) *PktLineReader {
	return &PktLineReader{r: bufio.NewReaderSize(r, 8192)}
}

// ReadPacket reads one pkt-line, returning its payload. flush is true, with
// a nil payload, when a flush-pkt was read. It returns io.EOF only when the
// underlying reader is exhausted with no bytes at all pending.
func (p *PktLineReader) ReadPacket() (payload []byte, flush bool, err error) {
	var lenBuf [pktLineLenSize]byte
	if _, err := io.ReadFull(p.r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, false, fmt.Errorf("%w: truncated pkt-line length", ErrProtocol)
		}
		return nil, false, err
	}

	length, err := parseHexLen(lenBuf[:])
	if err != nil {
		return nil, false, err
	}
	if length == 0 {
		return nil, true, nil
	}
	if length < pktLineLenSize {
		return nil, false, fmt.Errorf("%w: pkt-line length %d shorter than header", ErrProtocol, length)
	}

	data := make([]byte, length-pktLineLenSize)
	if _, err := io.ReadFull(p.r, data); err != nil {
		return nil, false, fmt.Errorf("%w: truncated pkt-line payload: %v", ErrProtocol, err)
	}
	return data, false, nil
}

func parseHexLen(b []byte) (int, error) {
	var n int
	for _, c := range b {
		n <<= 4
		switch {
		case c >= '0' && c <= '9':
			n |= int(c - '0')
		case c >= 'a' && c <= 'f':
			n |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			n |= int(c-'A') + 10
		default:
			return 0, fmt.Errorf("%w: invalid pkt-line length digit %q", ErrProtocol, c)
		}
	}
	return n, nil
}

// Rest returns the reader's underlying byte source, positioned exactly
// where pkt-line parsing left off. Used once a response switches from
// pkt-line framing to a raw byte stream, as a non-side-band packfile does.
func (p *PktLineReader) Rest() io.Reader {
	return p.r
}

// ReadLines reads packets until a flush-pkt, returning every non-flush
// payload seen. Useful for sections with a known, bounded line count such
// as ref advertisements.
func (p *PktLineReader) ReadLines() ([][]byte, error) {
	var lines [][]byte
	for {
		payload, flush, err := p.ReadPacket()
		if err != nil {
			return nil, err
		}
		if flush {
			return lines, nil
		}
		lines = append(lines, payload)
	}
}
