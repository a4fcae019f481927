package app

import (
	"testing"

	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/stretchr/testify/assert"
)

func TestRequestHeaderRoundTrip(t *testing.T) {
	body, err := objects.EncodeGroup(60, 1, []objects.Value{{Index: 0}}, false)
	assert.NoError(t, err)
	wire := EncodeRequest(RequestHeader{Control: Control{FIR: true, FIN: true, Seq: 5}, Function: FCRead}, body)

	h, rest, err := DecodeRequest(wire)
	assert.NoError(t, err)
	assert.True(t, h.Control.FIR)
	assert.True(t, h.Control.FIN)
	assert.EqualValues(t, 5, h.Control.Seq)
	assert.Equal(t, FCRead, h.Function)

	headers, err := DecodeObjectHeaders(rest, RequestCarriesData(FCRead))
	assert.NoError(t, err)
	assert.Len(t, headers, 1)
	assert.EqualValues(t, 60, headers[0].Group)
}

func TestResponseHeaderRoundTripWithIIN(t *testing.T) {
	wire := EncodeResponse(ResponseHeader{
		Control:  Control{FIR: true, FIN: true, Seq: 2},
		Function: FCResponse,
		IIN:      IIN{IIN1: IIN1DeviceRestart, IIN2: IIN2EventBufferOverflow},
	}, nil)

	h, rest, err := DecodeResponse(wire)
	assert.NoError(t, err)
	assert.True(t, h.IIN.DeviceRestart())
	assert.True(t, h.IIN.EventBufferOverflow())
	assert.Empty(t, rest)
}

func TestSequencerWrapsModulo16(t *testing.T) {
	var s Sequencer
	var got []uint8
	for i := 0; i < 18; i++ {
		got = append(got, s.Next())
	}
	assert.Equal(t, uint8(0), got[0])
	assert.Equal(t, uint8(15), got[15])
	assert.Equal(t, uint8(0), got[16])
	assert.Equal(t, uint8(1), got[17])
}

func TestUnsolicitedControlByteFlagsEncodeRoundTrip(t *testing.T) {
	c := Control{FIR: true, FIN: true, CON: true, UNS: true, Seq: 9}
	assert.Equal(t, c, decodeControl(c.encode()))
}
