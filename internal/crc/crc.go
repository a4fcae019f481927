// Package crc implements the CRC-16/ARC checksum used by the DNP3 link layer.
package crc

// CRC16 is a running CRC-16/ARC accumulator: polynomial 0xA6BC (the
// bit-reversed form of the DNP3 polynomial 0x3D65), LSB-first, initial
// value 0. DNP3 computes one CRC over the 8-byte link-frame header and one
// over each 16-byte (or shorter, final) payload block.
type CRC16 uint16

var table [256]uint16

func init() {
	const poly = 0xA6BC
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
}

// Single folds one byte into the running CRC.
func (c *CRC16) Single(b byte) {
	*c = CRC16(table[byte(*c)^b]) ^ (*c >> 8)
}

// Block computes the CRC-16/ARC of buf starting from 0, as used for each
// independent header/payload block on the wire.
func Block(buf []byte) uint16 {
	var c CRC16
	for _, b := range buf {
		c.Single(b)
	}
	return uint16(c)
}

// Bytes returns the little-endian wire encoding of the CRC, as DNP3 appends
// it after every block.
func (c CRC16) Bytes() [2]byte {
	return [2]byte{byte(c), byte(c >> 8)}
}
