package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeKnownHeaderBytes(t *testing.T) {
	// 05 64 05 C9 01 00 00 04 <hdrcrc> : length=5 (no payload), dest=1, source=4
	wire := []byte{0x05, 0x64, 0x05, 0xC9, 0x01, 0x00, 0x00, 0x04, 0x59, 0xA8}
	f, n, err := Codec{}.Decode(wire)
	assert.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.EqualValues(t, 1, f.Destination)
	assert.EqualValues(t, 4, f.Source)
	assert.Empty(t, f.Payload)
}

func TestDecodeBadHeaderCrc(t *testing.T) {
	wire := []byte{0x05, 0x64, 0x05, 0xC9, 0x01, 0x00, 0x00, 0x04, 0x00, 0x00}
	_, _, err := Codec{}.Decode(wire)
	assert.ErrorIs(t, err, ErrBadHeaderCrc)
}

func TestDecodeBadStartBytes(t *testing.T) {
	wire := []byte{0x00, 0x64, 0x05, 0xC9, 0x01, 0x00, 0x00, 0x04, 0x59, 0xA8}
	_, _, err := Codec{}.Decode(wire)
	assert.ErrorIs(t, err, ErrBadStartBytes)
}

func TestDecodeNeedMore(t *testing.T) {
	wire := []byte{0x05, 0x64, 0x05, 0xC9}
	_, n, err := Codec{}.Decode(wire)
	assert.ErrorIs(t, err, ErrNeedMore)
	assert.Zero(t, n)
}

func TestDecodeBadLength(t *testing.T) {
	wire := make([]byte, headerSize)
	wire[0], wire[1] = startByte1, startByte2
	wire[2] = 2 // < minLength(5)
	_, _, err := Codec{}.Decode(wire)
	assert.ErrorIs(t, err, ErrBadLength)
}

func TestDecodeBadBodyCrc(t *testing.T) {
	f := Frame{Control: Control{Func: FuncConfirmedUserData, Prm: true, FCV: true}, Destination: 4, Source: 1, Payload: []byte{1, 2, 3}}
	wire, err := Encode(f)
	assert.NoError(t, err)
	wire[len(wire)-1] ^= 0xFF
	_, _, err = Codec{}.Decode(wire)
	assert.ErrorIs(t, err, ErrBadBodyCrc)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Frame{
		{Control: Control{Func: FuncUnconfirmedUserData, Prm: true, Dir: true}, Destination: 1024, Source: 1, Payload: nil},
		{Control: Control{Func: FuncConfirmedUserData, Prm: true, FCB: true, FCV: true}, Destination: 4, Source: 3, Payload: make([]byte, 1)},
		{Control: Control{Func: FuncConfirmedUserData, Prm: true, FCV: true}, Destination: 4, Source: 3, Payload: make([]byte, 16)},
		{Control: Control{Func: FuncConfirmedUserData, Prm: true, FCV: true}, Destination: 4, Source: 3, Payload: make([]byte, 17)},
		{Control: Control{Func: FuncConfirmedUserData, Prm: true, FCV: true}, Destination: 4, Source: 3, Payload: make([]byte, 250)},
	}
	for i := range cases {
		for j := range cases[i].Payload {
			cases[i].Payload[j] = byte(i*7 + j)
		}
	}
	for _, want := range cases {
		wire, err := Encode(want)
		assert.NoError(t, err)
		got, n, err := Codec{}.Decode(wire)
		assert.NoError(t, err)
		assert.Equal(t, len(wire), n)
		assert.Equal(t, want.Control, got.Control)
		assert.Equal(t, want.Destination, got.Destination)
		assert.Equal(t, want.Source, got.Source)
		if len(want.Payload) == 0 {
			assert.Empty(t, got.Payload)
		} else {
			assert.Equal(t, want.Payload, got.Payload)
		}
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(Frame{Payload: make([]byte, 251)})
	assert.ErrorIs(t, err, ErrBadLength)
}

func TestEncodeIntoBufferTooSmall(t *testing.T) {
	dst := make([]byte, 0, 3)
	_, err := EncodeInto(dst, Frame{Payload: make([]byte, 10)})
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}
