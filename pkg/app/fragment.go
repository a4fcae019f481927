// Package app implements the DNP3 application layer: fragment headers,
// function codes, Internal Indications, and the decode pass that turns a
// reassembled transport fragment into a typed sequence of object headers
// from pkg/objects.
package app

import (
	"errors"

	"github.com/dnp3go/dnp3/pkg/objects"
)

var (
	ErrFragmentTooShort = errors.New("app: fragment shorter than header")
	ErrBadControl       = errors.New("app: malformed application control byte")
)

// Control is the APP_CTRL byte: FIR|FIN|CON|UNS|seq4.
type Control struct {
	FIR bool
	FIN bool
	CON bool
	UNS bool
	Seq uint8 // 4 bits, 0..15
}

func (c Control) encode() byte {
	var b byte
	if c.FIR {
		b |= 1 << 7
	}
	if c.FIN {
		b |= 1 << 6
	}
	if c.CON {
		b |= 1 << 5
	}
	if c.UNS {
		b |= 1 << 4
	}
	b |= c.Seq & 0x0F
	return b
}

func decodeControl(b byte) Control {
	return Control{
		FIR: b&(1<<7) != 0,
		FIN: b&(1<<6) != 0,
		CON: b&(1<<5) != 0,
		UNS: b&(1<<4) != 0,
		Seq: b & 0x0F,
	}
}

// RequestHeader is the 2-byte request fragment header.
type RequestHeader struct {
	Control  Control
	Function FunctionCode
}

// ResponseHeader is the 4-byte response/unsolicited-response fragment
// header: the same control+function plus the two IIN bytes.
type ResponseHeader struct {
	Control  Control
	Function FunctionCode
	IIN      IIN
}

// EncodeRequest serializes a request header followed by body (already
// encoded object headers, e.g. via objects.EncodeGroup concatenated).
func EncodeRequest(h RequestHeader, body []byte) []byte {
	out := make([]byte, 0, 2+len(body))
	out = append(out, h.Control.encode(), byte(h.Function))
	out = append(out, body...)
	return out
}

// EncodeResponse serializes a response/unsolicited-response header plus body.
func EncodeResponse(h ResponseHeader, body []byte) []byte {
	out := make([]byte, 0, 4+len(body))
	out = append(out, h.Control.encode(), byte(h.Function), h.IIN.IIN1, h.IIN.IIN2)
	out = append(out, body...)
	return out
}

// DecodeRequest splits a request fragment into its header and remaining
// body bytes (still-encoded object headers, pass to DecodeObjectHeaders).
func DecodeRequest(fragment []byte) (RequestHeader, []byte, error) {
	if len(fragment) < 2 {
		return RequestHeader{}, nil, ErrFragmentTooShort
	}
	h := RequestHeader{
		Control:  decodeControl(fragment[0]),
		Function: FunctionCode(fragment[1]),
	}
	return h, fragment[2:], nil
}

// DecodeResponse splits a response/unsolicited-response fragment into its
// 4-byte header and remaining body.
func DecodeResponse(fragment []byte) (ResponseHeader, []byte, error) {
	if len(fragment) < 4 {
		return ResponseHeader{}, nil, ErrFragmentTooShort
	}
	h := ResponseHeader{
		Control:  decodeControl(fragment[0]),
		Function: FunctionCode(fragment[1]),
		IIN:      IIN{IIN1: fragment[2], IIN2: fragment[3]},
	}
	return h, fragment[4:], nil
}

// DecodeObjectHeaders decodes the object-header sequence of a fragment
// body. withData mirrors objects.DecodeObjects: false for index-only
// requests (READ, ASSIGN_CLASS, DELAY_MEASURE, CONFIRM, ENABLE/
// DISABLE_UNSOLICITED), true otherwise (responses, WRITE, SELECT,
// OPERATE, DIRECT_OPERATE, FREEZE_AT_TIME).
func DecodeObjectHeaders(body []byte, withData bool) ([]objects.ObjectHeader, error) {
	return objects.DecodeObjects(body, withData)
}

// RequestCarriesData reports whether fc's request body carries value
// bytes alongside indices, rather than just object headers with no data.
func RequestCarriesData(fc FunctionCode) bool {
	switch fc {
	case FCWrite, FCSelect, FCOperate, FCDirectOperate, FCDirectOperateNoAck, FCFreezeAtTime, FCFreezeAtTimeNoAck:
		return true
	default:
		return false
	}
}
