// Package link implements the DNP3 data-link layer: CRC-protected frame
// codec and the primary/secondary link-service state machine (IEC
// 60870-5-2 derived): fixed headers, block CRCs, FCB toggling.
package link

import (
	"github.com/dnp3go/dnp3/internal/crc"
)

const (
	startByte1 = 0x05
	startByte2 = 0x64

	headerSize    = 10 // start(2) + length(1) + control(1) + dest(2) + source(2) + crc(2)
	maxBlockSize  = 16
	maxPayload    = 250
	minLength     = 5
	maxLength     = 255
)

// Function identifies the link-layer service requested by the control byte.
type Function uint8

const (
	FuncResetLinkStates      Function = 0x00
	FuncTestLinkStates       Function = 0x02
	FuncConfirmedUserData    Function = 0x03
	FuncUnconfirmedUserData  Function = 0x04
	FuncRequestLinkStatus    Function = 0x09

	FuncAck          Function = 0x00 // secondary, PRM=0
	FuncNack         Function = 0x01
	FuncLinkStatus   Function = 0x0B
	FuncNotSupported Function = 0x0F
)

// Control is the single control byte of a link frame.
type Control struct {
	Dir  bool // DIR: 1 = frame sent from master-role station to outstation-role station
	Prm  bool // PRM: 1 = frame sent by a primary (initiating) station
	FCB  bool // frame count bit, meaningful only when FCV is set
	FCV  bool // frame count valid: FCB toggling applies to this frame
	Func Function
}

func (c Control) encode() byte {
	var b byte
	if c.Dir {
		b |= 0x80
	}
	if c.Prm {
		b |= 0x40
	}
	if c.FCB {
		b |= 0x20
	}
	if c.FCV {
		b |= 0x10
	}
	return b | byte(c.Func)&0x0F
}

func decodeControl(b byte) Control {
	return Control{
		Dir:  b&0x80 != 0,
		Prm:  b&0x40 != 0,
		FCB:  b&0x20 != 0,
		FCV:  b&0x10 != 0,
		Func: Function(b & 0x0F),
	}
}

// Frame is a fully decoded link-layer frame: the fixed header plus a
// reassembled payload (with the per-block CRCs already stripped).
type Frame struct {
	Control     Control
	Destination uint16
	Source      uint16
	Payload     []byte // ≤ 250 bytes, CRCs already verified and stripped
}

// blockCount returns how many 16-byte (or shorter, final) CRC-protected
// blocks cover n payload bytes.
func blockCount(n int) int {
	if n == 0 {
		return 0
	}
	return (n + maxBlockSize - 1) / maxBlockSize
}

// Encode serializes f to the wire format: 10-byte header (with its own CRC)
// followed by the payload split into 16-byte blocks each with a trailing
// CRC-16.
func Encode(f Frame) ([]byte, error) {
	return EncodeInto(nil, f)
}

// EncodedLen returns the number of wire bytes Encode(f) would produce.
func EncodedLen(payloadLen int) int {
	return headerSize + blockCount(payloadLen)*2 + payloadLen
}

// EncodeInto serializes f into dst if dst has enough capacity, appending
// to it (dst may be nil, in which case a fresh buffer is allocated).
// Returns ErrBufferTooSmall if dst's capacity cannot hold the frame.
func EncodeInto(dst []byte, f Frame) ([]byte, error) {
	if len(f.Payload) > maxPayload {
		return nil, ErrBadLength
	}
	length := 5 + len(f.Payload) // control+dest+source(5) + payload, CRCs excluded
	if length < minLength || length > maxLength {
		return nil, ErrBadLength
	}
	need := EncodedLen(len(f.Payload))
	if dst != nil && cap(dst)-len(dst) < need {
		return nil, ErrBufferTooSmall
	}

	out := dst
	if out == nil {
		out = make([]byte, 0, need)
	}
	hdr := []byte{
		startByte1, startByte2,
		byte(length),
		f.Control.encode(),
		byte(f.Destination), byte(f.Destination >> 8),
		byte(f.Source), byte(f.Source >> 8),
	}
	hc := crc.Block(hdr)
	out = append(out, hdr...)
	out = append(out, byte(hc), byte(hc>>8))

	for off := 0; off < len(f.Payload); off += maxBlockSize {
		end := off + maxBlockSize
		if end > len(f.Payload) {
			end = len(f.Payload)
		}
		block := f.Payload[off:end]
		bc := crc.Block(block)
		out = append(out, block...)
		out = append(out, byte(bc), byte(bc>>8))
	}
	return out, nil
}
