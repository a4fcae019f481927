package link

import "github.com/dnp3go/dnp3/internal/crc"

// ErrNeedMore is returned by Codec.Decode when buf does not yet hold a
// complete frame; the caller should append more bytes from the byte stream
// and retry. It is not a protocol error.
var ErrNeedMore = &needMoreErr{}

type needMoreErr struct{}

func (*needMoreErr) Error() string { return "link: need more bytes" }

// Codec decodes the streaming link-frame wire format out of an
// accumulation buffer. It never blocks; callers pump bytes in as they
// arrive (e.g. from a TCP/serial read) and call Decode repeatedly.
type Codec struct{}

// Decode attempts to parse one frame from the front of buf.
//
// On success it returns the frame, the number of bytes consumed from buf
// (always advance the caller's buffer by this much, even on an error that
// is not ErrNeedMore — a corrupt frame still has a known length once the
// header is read), and a nil error.
//
// On ErrNeedMore, consumed is 0 and the caller must wait for more bytes.
// Any other error indicates a malformed frame; resynchronization is the
// caller's responsibility (conventionally: drop one byte and retry, or
// rescan for the next 05 64 start sequence).
func (Codec) Decode(buf []byte) (frame Frame, consumed int, err error) {
	if len(buf) < headerSize {
		return Frame{}, 0, ErrNeedMore
	}
	if buf[0] != startByte1 || buf[1] != startByte2 {
		return Frame{}, 1, ErrBadStartBytes
	}
	length := int(buf[2])
	if length < minLength || length > maxLength {
		return Frame{}, headerSize, ErrBadLength
	}
	hc := crc.Block(buf[0:8])
	wantHC := uint16(buf[8]) | uint16(buf[9])<<8
	if hc != wantHC {
		return Frame{}, headerSize, ErrBadHeaderCrc
	}

	payloadLen := length - 5
	nBlocks := blockCount(payloadLen)
	total := headerSize + nBlocks*2 + payloadLen
	if len(buf) < total {
		return Frame{}, 0, ErrNeedMore
	}

	payload := make([]byte, 0, payloadLen)
	off := headerSize
	remaining := payloadLen
	for b := 0; b < nBlocks; b++ {
		n := maxBlockSize
		if remaining < n {
			n = remaining
		}
		block := buf[off : off+n]
		bc := crc.Block(block)
		wantBC := uint16(buf[off+n]) | uint16(buf[off+n+1])<<8
		if bc != wantBC {
			return Frame{}, total, ErrBadBodyCrc
		}
		payload = append(payload, block...)
		off += n + 2
		remaining -= n
	}

	f := Frame{
		Control:     decodeControl(buf[3]),
		Destination: uint16(buf[4]) | uint16(buf[5])<<8,
		Source:      uint16(buf[6]) | uint16(buf[7])<<8,
		Payload:     payload,
	}
	return f, total, nil
}
