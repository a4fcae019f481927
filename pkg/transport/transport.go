// Package transport implements the DNP3 transport function: segmentation
// of application fragments into link-sized segments on send, and
// FIR/FIN/sequence reassembly on receive.
package transport

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

const (
	// MaxSegmentPayload is the largest user-data slice one transport
	// segment can carry: 250 link-payload bytes minus the 1-byte
	// transport header.
	MaxSegmentPayload = 249

	// DefaultMaxFragmentSize is the default reassembly bound for one
	// application fragment (configurable).
	DefaultMaxFragmentSize = 2048
)

var (
	ErrTransportDiscontinuity = errors.New("transport: discontinuous segment sequence, reassembly reset")
	ErrFragmentTooLarge       = errors.New("transport: reassembled fragment exceeds configured maximum")
)

// Header is the one-byte transport segment header: [FIN|FIR|seq6].
type Header struct {
	FIN bool
	FIR bool
	Seq uint8 // 0..63
}

func (h Header) encode() byte {
	b := h.Seq & 0x3F
	if h.FIR {
		b |= 0x40
	}
	if h.FIN {
		b |= 0x80
	}
	return b
}

func decodeHeader(b byte) Header {
	return Header{
		FIN: b&0x80 != 0,
		FIR: b&0x40 != 0,
		Seq: b & 0x3F,
	}
}

// Segment splits one application fragment into transport segments of at
// most MaxSegmentPayload bytes, each prefixed with its transport header.
// The starting sequence number is the caller's responsibility; the caller
// keeps the counter for its own send direction.
func Segment(fragment []byte, startSeq uint8) [][]byte {
	if len(fragment) == 0 {
		h := Header{FIR: true, FIN: true, Seq: startSeq & 0x3F}
		return [][]byte{{h.encode()}}
	}
	var out [][]byte
	seq := startSeq & 0x3F
	for off := 0; off < len(fragment); off += MaxSegmentPayload {
		end := off + MaxSegmentPayload
		if end > len(fragment) {
			end = len(fragment)
		}
		h := Header{FIR: off == 0, FIN: end == len(fragment), Seq: seq}
		seg := make([]byte, 0, 1+(end-off))
		seg = append(seg, h.encode())
		seg = append(seg, fragment[off:end]...)
		out = append(out, seg)
		seq = (seq + 1) & 0x3F
	}
	return out
}

// Reassembler accumulates transport segments into application fragments.
// One Reassembler instance is owned by one direction of one channel's
// transport function (one reassembler per transfer direction).
type Reassembler struct {
	MaxFragmentSize int

	buf          []byte
	reassembling bool
	lastSeq      uint8
	log          *log.Entry
}

// NewReassembler creates a reassembler bounded at maxFragmentSize bytes (0
// selects DefaultMaxFragmentSize).
func NewReassembler(maxFragmentSize int) *Reassembler {
	if maxFragmentSize <= 0 {
		maxFragmentSize = DefaultMaxFragmentSize
	}
	return &Reassembler{
		MaxFragmentSize: maxFragmentSize,
		log:             log.WithField("component", "transport"),
	}
}

// Accept feeds one received link-layer payload (one transport segment) into
// the reassembler. It returns (fragment, true, nil) when seg completes a
// fragment (FIN=1); (nil, false, nil) while still accumulating; and a
// non-nil error (with reassembly reset) on a sequencing violation or
// overflow.
func (r *Reassembler) Accept(seg []byte) (fragment []byte, complete bool, err error) {
	if len(seg) == 0 {
		r.reset()
		return nil, false, ErrTransportDiscontinuity
	}
	h := decodeHeader(seg[0])
	payload := seg[1:]

	switch {
	case !r.reassembling:
		if !h.FIR {
			r.log.Warn("first segment missing FIR, discarding")
			return nil, false, ErrTransportDiscontinuity
		}
		r.buf = append(r.buf[:0], payload...)
		r.reassembling = true
		r.lastSeq = h.Seq

	case h.FIR:
		r.log.Warn("unexpected FIR while reassembling, discarding accumulation")
		r.reset()
		return nil, false, ErrTransportDiscontinuity

	case h.Seq != (r.lastSeq+1)&0x3F:
		r.log.WithFields(log.Fields{"want": (r.lastSeq + 1) & 0x3F, "got": h.Seq}).Warn("transport sequence discontinuity")
		r.reset()
		return nil, false, ErrTransportDiscontinuity

	default:
		r.buf = append(r.buf, payload...)
		r.lastSeq = h.Seq
	}

	if len(r.buf) > r.MaxFragmentSize {
		r.log.Warn("fragment exceeds configured maximum size")
		r.reset()
		return nil, false, ErrFragmentTooLarge
	}

	if h.FIN {
		out := make([]byte, len(r.buf))
		copy(out, r.buf)
		r.reset()
		return out, true, nil
	}
	return nil, false, nil
}

func (r *Reassembler) reset() {
	r.buf = r.buf[:0]
	r.reassembling = false
}
