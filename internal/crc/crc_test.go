package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleAccumulates(t *testing.T) {
	var c CRC16
	for _, b := range []byte{0x05, 0x64, 0x05, 0xC9, 0x01, 0x00, 0x00, 0x04} {
		c.Single(b)
	}
	assert.EqualValues(t, Block([]byte{0x05, 0x64, 0x05, 0xC9, 0x01, 0x00, 0x00, 0x04}), uint16(c))
}

func TestHeaderBlockKnownValue(t *testing.T) {
	hdr := []byte{0x05, 0x64, 0x05, 0xC9, 0x01, 0x00, 0x00, 0x04}
	got := Block(hdr)
	assert.EqualValues(t, 0xA859, got, "CRC-16/ARC(0xA6BC) over the fixed link header")
	b := CRC16(got).Bytes()
	assert.Equal(t, [2]byte{0x59, 0xA8}, b)
}

func TestEmptyBlockIsZero(t *testing.T) {
	assert.EqualValues(t, 0, Block(nil))
}

func TestDifferentBytesDifferentCrc(t *testing.T) {
	a := Block([]byte{1, 2, 3, 4})
	b := Block([]byte{1, 2, 3, 5})
	assert.NotEqual(t, a, b)
}
