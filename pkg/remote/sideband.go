package remote

import (
	"fmt"
	"io"
)

// Side-band-64k channel identifiers: each non-flush pkt-line in the
// packfile section carries one of these as its first byte.
const (
	SidebandData     byte = 1
	SidebandProgress byte = 2
	SidebandError    byte = 3
)

// SidebandDemuxer presents the side-band-64k packfile stream as a plain
// io.Reader of pack bytes, routing progress lines to a callback and
// turning an error-channel frame into a returned error.
type SidebandDemuxer struct {
	pr         *PktLineReader
	onProgress func(string)
	buf        []byte
	done       bool
}

// NewSidebandDemuxer wraps r, which must yield pkt-line-framed side-band
// data (the body of a git-upload-pack response once the ack/nak section
// has been consumed). onProgress may be nil.
func NewSidebandDemuxer(r io.Reader, onProgress func(string)) *SidebandDemuxer {
	return &SidebandDemuxer{pr: NewPktLineReader(r), onProgress: onProgress}
}

// NewSidebandDemuxerFromReader wraps an already-positioned PktLineReader,
// used when the caller consumed leading ack/nak pkt-lines itself before
// handing the rest of the stream off for demultiplexing.
func NewSidebandDemuxerFromReader(pr *PktLineReader, onProgress func(string)) *SidebandDemuxer {
	return &SidebandDemuxer{pr: pr, onProgress: onProgress}
}

// Seed feeds one already-read pkt-line payload into the demuxer as if it
// had just been read from the wire. Used for the first side-band packet, a
// caller typically has to read in order to tell negotiation lines
// (NAK/ACK) from the start of the packfile section.
func (d *SidebandDemuxer) Seed(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty side-band packet", ErrProtocol)
	}
	channel, data := payload[0], payload[1:]
	switch channel {
	case SidebandData:
		d.buf = append(d.buf, data...)
	case SidebandProgress:
		if d.onProgress != nil {
			d.onProgress(string(data))
		}
	case SidebandError:
		return fmt.Errorf("%w: remote: %s", ErrProtocol, data)
	default:
		return fmt.Errorf("%w: unknown side-band channel %d", ErrProtocol, channel)
	}
	return nil
}

func (d *SidebandDemuxer) Read(p []byte) (int, error) {
	for len(d.buf) == 0 {
		if d.done {
			return 0, io.EOF
		}
		payload, flush, err := d.pr.ReadPacket()
		if err != nil {
			return 0, err
		}
		if flush {
			d.done = true
			return 0, io.EOF
		}
		if len(payload) == 0 {
			return 0, fmt.Errorf("%w: empty side-band packet", ErrProtocol)
		}
		channel, data := payload[0], payload[1:]
		switch channel {
		case SidebandData:
			d.buf = data
		case SidebandProgress:
			if d.onProgress != nil {
				d.onProgress(string(data))
			}
		case SidebandError:
			return 0, fmt.Errorf("%w: remote: %s", ErrProtocol, data)
		default:
			return 0, fmt.Errorf("%w: unknown side-band channel %d", ErrProtocol, channel)
		}
	}

	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}
