package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalogInputRoundTrip(t *testing.T) {
	values := []Value{
		{Index: 3, Flags: DefaultOnlineFlags, Float: -12.5},
		{Index: 4, Flags: DefaultOnlineFlags, Float: 1000},
		{Index: 5, Flags: DefaultOnlineFlags, Float: 0},
	}
	wire, err := EncodeGroup(30, 5, values, true)
	assert.NoError(t, err)

	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.Len(t, headers, 1)
	assert.Equal(t, QualRangeU8, headers[0].Qualifier)
	assert.Len(t, headers[0].Values, 3)
	for i, v := range headers[0].Values {
		assert.Equal(t, values[i].Index, v.Index)
		assert.Equal(t, values[i].Flags, v.Flags)
		assert.InDelta(t, values[i].Float, v.Float, 1e-9)
	}
}

func TestCounterRoundTripWithTime(t *testing.T) {
	values := []Value{
		{Index: 1, Flags: DefaultOnlineFlags, Uint: 42, HasTime: true, Time: Timestamp{Millis: 1234567890, Quality: TimeSynchronized}},
	}
	wire, err := EncodeGroup(22, 5, values, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.Len(t, headers, 1)
	got := headers[0].Values[0]
	assert.EqualValues(t, 42, got.Uint)
	assert.True(t, got.HasTime)
	assert.EqualValues(t, 1234567890, got.Time.Millis)
}

func TestBinaryInputPackedBitfieldRoundTrip(t *testing.T) {
	values := []Value{
		{Index: 0, Bool: true},
		{Index: 1, Bool: false},
		{Index: 2, Bool: true},
		{Index: 3, Bool: true},
		{Index: 4, Bool: false},
	}
	wire, err := EncodeGroup(1, 1, values, true)
	assert.NoError(t, err)
	assert.Equal(t, byte(QualPackedRange), wire[2])

	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.Len(t, headers[0].Values, 5)
	for i, v := range headers[0].Values {
		assert.Equal(t, values[i].Bool, v.Bool, "index %d", i)
	}
}

func TestDoubleBitPackedRoundTrip(t *testing.T) {
	values := []Value{
		{Index: 10, DoubleBit: DoubleBitOn},
		{Index: 11, DoubleBit: DoubleBitOff},
		{Index: 12, DoubleBit: DoubleBitIndeterminate},
	}
	wire, err := EncodeGroup(3, 1, values, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	for i, v := range headers[0].Values {
		assert.Equal(t, values[i].DoubleBit, v.DoubleBit)
	}
}

func TestIndexPrefixedCountQualifierForNonContiguous(t *testing.T) {
	values := []Value{
		{Index: 1, Flags: DefaultOnlineFlags, Uint: 1},
		{Index: 300, Flags: DefaultOnlineFlags, Uint: 2},
	}
	wire, err := EncodeGroup(20, 2, values, true)
	assert.NoError(t, err)
	assert.Equal(t, byte(QualCountPrefixU16), wire[2])

	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.Len(t, headers[0].Values, 2)
	assert.EqualValues(t, 1, headers[0].Values[0].Index)
	assert.EqualValues(t, 300, headers[0].Values[1].Index)
}

func TestReadRequestHeaderHasNoValueBytes(t *testing.T) {
	wire := []byte{60, 1, byte(QualAllObjects)}
	headers, err := DecodeObjects(wire, false)
	assert.NoError(t, err)
	assert.Len(t, headers, 1)
	assert.Empty(t, headers[0].Values)
}

func TestUnknownObjectIsCarriedNotRejected(t *testing.T) {
	wire := []byte{250, 9, byte(QualRangeU8), 0, 2}
	headers, err := DecodeObjects(wire, false)
	assert.NoError(t, err)
	assert.Len(t, headers, 1)
	assert.True(t, headers[0].Unknown)
	assert.Len(t, headers[0].Values, 3)
}

func TestCROBRoundTrip(t *testing.T) {
	c := &CROB{Code: OpLatchOn, Count: 1, OnTimeMs: 1000, OffTimeMs: 1000, Status: StatusSuccess}
	values := []Value{{Index: 3, CROB: c}}
	wire, err := EncodeGroup(12, 1, values, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	got := headers[0].Values[0].CROB
	assert.Equal(t, c.Code, got.Code)
	assert.Equal(t, c.OnTimeMs, got.OnTimeMs)
	assert.Equal(t, c.Status, got.Status)
}

func TestAnalogOutputCommandInt32VsFloat32Disambiguation(t *testing.T) {
	cmdInt := []Value{{Index: 0, AnalogCmd: &AnalogOutputCommand{Value: -7, Status: StatusSuccess}}}
	wireInt, err := EncodeGroup(41, 1, cmdInt, true)
	assert.NoError(t, err)
	h, err := DecodeObjects(wireInt, true)
	assert.NoError(t, err)
	assert.InDelta(t, -7, h[0].Values[0].AnalogCmd.Value, 1e-9)

	cmdFloat := []Value{{Index: 0, AnalogCmd: &AnalogOutputCommand{Value: 3.25, Status: StatusSuccess}}}
	wireFloat, err := EncodeGroup(41, 3, cmdFloat, true)
	assert.NoError(t, err)
	h2, err := DecodeObjects(wireFloat, true)
	assert.NoError(t, err)
	assert.InDelta(t, 3.25, h2[0].Values[0].AnalogCmd.Value, 1e-9)
}

func TestOctetStringRoundTrip(t *testing.T) {
	values := []Value{{Index: 0, Octets: []byte("hello")}}
	wire, err := EncodeGroup(110, 5, values, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), headers[0].Values[0].Octets)
}

func TestOctetStringVariationWidthMismatchTruncates(t *testing.T) {
	shape, ok := Lookup(GroupVariation{110, 3})
	assert.True(t, ok)
	assert.Equal(t, 3, shape.Width)

	wire, err := EncodeGroup(110, 3, []Value{{Index: 0, Octets: []byte("hello")}}, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hel"), headers[0].Values[0].Octets)
}

func TestTimeAndDateRoundTrip(t *testing.T) {
	values := []Value{{Index: 0, Time: Timestamp{Millis: 1700000000123, Quality: TimeSynchronized}}}
	wire, err := EncodeGroup(50, 1, values, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.EqualValues(t, 1700000000123, headers[0].Values[0].Time.Millis)
}

func TestTimeAndDateWithIntervalRoundTrip(t *testing.T) {
	values := []Value{{Index: 0, Time: Timestamp{Millis: 1700000000000}, Interval: 60000}}
	wire, err := EncodeGroup(50, 3, values, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.EqualValues(t, 1700000000000, headers[0].Values[0].Time.Millis)
	assert.EqualValues(t, 60000, headers[0].Values[0].Interval)
}

func TestTimeDelayRoundTrip(t *testing.T) {
	values := []Value{{Index: 0, Uint: 250}}
	wire, err := EncodeGroup(52, 2, values, true)
	assert.NoError(t, err)
	headers, err := DecodeObjects(wire, true)
	assert.NoError(t, err)
	assert.EqualValues(t, 250, headers[0].Values[0].Uint)
}

func TestVariationZeroRejectedInResponse(t *testing.T) {
	_, err := EncodeGroup(30, 0, []Value{{Index: 0}}, true)
	assert.ErrorIs(t, err, ErrVariationZeroInResponse)
}
