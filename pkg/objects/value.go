package objects

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrShortBuffer      = errors.New("objects: buffer too short for variation")
	ErrUnknownObject    = errors.New("objects: unregistered group/variation")
	ErrVariationZeroInResponse = errors.New("objects: variation 0 is not legal in a response")
)

// Value is the decoded representation of one point reading: a tagged
// union over the data kinds in shapes, interpreted per DNP3 Shape.
type Value struct {
	Index     uint32
	Flags     byte
	HasTime   bool
	Time      Timestamp
	Bool      bool
	DoubleBit DoubleBit
	Uint      uint64
	Int       int64
	Float     float64
	Octets    []byte
	CROB      *CROB
	AnalogCmd *AnalogOutputCommand
	Interval  uint32 // group 50v3 measurement interval, milliseconds
}

// ControlCode is the group 12 control-code field (operation type + clear/
// queue bits) for a CROB.
type ControlCode uint8

const (
	OpNul            ControlCode = 0x00
	OpPulseOn        ControlCode = 0x01
	OpPulseOff       ControlCode = 0x02
	OpLatchOn        ControlCode = 0x03
	OpLatchOff       ControlCode = 0x04
	TripClose        ControlCode = 0x00 << 6
	TripTrip         ControlCode = 0x01 << 6
	TripClose2       ControlCode = 0x02 << 6
)

// CROB is the group 12 variation 1 Control Relay Output Block object
// carried in SELECT/OPERATE/DIRECT_OPERATE requests.
type CROB struct {
	Code       ControlCode
	Count      uint8
	OnTimeMs   uint32
	OffTimeMs  uint32
	Status     CommandStatus
}

// CommandStatus is the group 12/41 echoed status byte (IEEE 1815 Table
// 12-1), returned per-object in a command response.
type CommandStatus uint8

const (
	StatusSuccess CommandStatus = iota
	StatusTimeout
	StatusNoSelect
	StatusFormatError
	StatusNotSupported
	StatusAlreadyActive
	StatusHardwareError
	StatusLocal
	StatusTooManyOps
	StatusNotAuthorized
	StatusAutomationInhibit
	StatusProcessingLimited
	StatusOutOfRange
	StatusDownstreamLocal      CommandStatus = 0x10
	StatusAlreadyComplete      CommandStatus = 0x11
	StatusBlocked              CommandStatus = 0x12
	StatusCancelled            CommandStatus = 0x13
	StatusBlockedOtherMaster   CommandStatus = 0x14
	StatusDownstreamFail       CommandStatus = 0x15
	StatusNonParticipating     CommandStatus = 0x7F
)

// AnalogOutputCommand is the group 41 analog output command object; Value
// is stored as float64 regardless of wire width (exact for int16/int32,
// since float64 has 53 bits of integer precision).
type AnalogOutputCommand struct {
	Value  float64
	Status CommandStatus
}

func encodeValueBytes(gv GroupVariation, shape Shape, v Value) ([]byte, error) {
	switch shape.Kind {
	case kindNone, kindBitfield:
		return nil, nil
	case kindBool:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case kindDoubleBit:
		// caller packs this into the flags byte alongside other flag bits
		return nil, nil
	case kindUint:
		return encodeUint(shape.Width, v.Uint), nil
	case kindInt:
		return encodeInt(shape.Width, v.Int), nil
	case kindFloat:
		return encodeFloat(shape.Width, v.Float), nil
	case kindOctets:
		if shape.Width > 0 {
			// the variation fixes the length: pad or truncate to it
			b := make([]byte, shape.Width)
			copy(b, v.Octets)
			return b, nil
		}
		return append([]byte(nil), v.Octets...), nil
	case kindCROB:
		return encodeCROB(v.CROB), nil
	case kindAnalogOutputCmd:
		return encodeAnalogCmd(shape.Width, shape.Float, v.AnalogCmd), nil
	case kindTime48:
		t := encodeTime48(v.Time.Millis)
		return t[:], nil
	case kindTimeInterval:
		t := encodeTime48(v.Time.Millis)
		b := make([]byte, 10)
		copy(b[0:6], t[:])
		binary.LittleEndian.PutUint32(b[6:10], v.Interval)
		return b, nil
	default:
		return nil, ErrUnknownObject
	}
}

func decodeValueBytes(gv GroupVariation, shape Shape, b []byte) (Value, int, error) {
	var v Value
	switch shape.Kind {
	case kindNone, kindBitfield:
		return v, 0, nil
	case kindBool:
		if len(b) < 1 {
			return v, 0, ErrShortBuffer
		}
		v.Bool = b[0] != 0
		return v, 1, nil
	case kindUint:
		if len(b) < shape.Width {
			return v, 0, ErrShortBuffer
		}
		v.Uint = decodeUint(b[:shape.Width])
		return v, shape.Width, nil
	case kindInt:
		if len(b) < shape.Width {
			return v, 0, ErrShortBuffer
		}
		v.Int = decodeInt(b[:shape.Width])
		return v, shape.Width, nil
	case kindFloat:
		if len(b) < shape.Width {
			return v, 0, ErrShortBuffer
		}
		v.Float = decodeFloat(b[:shape.Width])
		return v, shape.Width, nil
	case kindOctets:
		n := shape.Width
		if n == 0 || n > len(b) {
			n = len(b)
		}
		v.Octets = append([]byte(nil), b[:n]...)
		return v, n, nil
	case kindCROB:
		c, n, err := decodeCROB(b)
		v.CROB = c
		return v, n, err
	case kindAnalogOutputCmd:
		c, n, err := decodeAnalogCmd(shape.Width, shape.Float, b)
		v.AnalogCmd = c
		return v, n, err
	case kindTime48:
		if len(b) < 6 {
			return v, 0, ErrShortBuffer
		}
		v.Time = Timestamp{Millis: decodeTime48(b[:6]), Quality: TimeSynchronized}
		return v, 6, nil
	case kindTimeInterval:
		if len(b) < 10 {
			return v, 0, ErrShortBuffer
		}
		v.Time = Timestamp{Millis: decodeTime48(b[:6]), Quality: TimeSynchronized}
		v.Interval = binary.LittleEndian.Uint32(b[6:10])
		return v, 10, nil
	default:
		return v, 0, ErrUnknownObject
	}
}

func encodeUint(width int, val uint64) []byte {
	b := make([]byte, width)
	switch width {
	case 1:
		b[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(val))
	}
	return b
}

func decodeUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func encodeInt(width int, val int64) []byte {
	switch width {
	case 2:
		return encodeUint(2, uint64(uint16(int16(val))))
	case 4:
		return encodeUint(4, uint64(uint32(int32(val))))
	}
	return nil
}

func decodeInt(b []byte) int64 {
	switch len(b) {
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

func encodeFloat(width int, val float64) []byte {
	b := make([]byte, width)
	if width == 4 {
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(val)))
	} else {
		binary.LittleEndian.PutUint64(b, math.Float64bits(val))
	}
	return b
}

func decodeFloat(b []byte) float64 {
	if len(b) == 4 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func encodeCROB(c *CROB) []byte {
	if c == nil {
		c = &CROB{}
	}
	b := make([]byte, 11)
	b[0] = byte(c.Code)
	b[1] = c.Count
	binary.LittleEndian.PutUint32(b[2:6], c.OnTimeMs)
	binary.LittleEndian.PutUint32(b[6:10], c.OffTimeMs)
	b[10] = byte(c.Status)
	return b
}

func decodeCROB(b []byte) (*CROB, int, error) {
	if len(b) < 11 {
		return nil, 0, ErrShortBuffer
	}
	return &CROB{
		Code:      ControlCode(b[0]),
		Count:     b[1],
		OnTimeMs:  binary.LittleEndian.Uint32(b[2:6]),
		OffTimeMs: binary.LittleEndian.Uint32(b[6:10]),
		Status:    CommandStatus(b[10]),
	}, 11, nil
}

func encodeAnalogCmd(width int, isFloat bool, c *AnalogOutputCommand) []byte {
	if c == nil {
		c = &AnalogOutputCommand{}
	}
	b := make([]byte, width+1)
	switch {
	case width == 2:
		binary.LittleEndian.PutUint16(b[0:2], uint16(int16(c.Value)))
	case width == 4 && isFloat:
		binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(float32(c.Value)))
	case width == 4:
		binary.LittleEndian.PutUint32(b[0:4], uint32(int32(c.Value)))
	case width == 8:
		binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(c.Value))
	}
	b[width] = byte(c.Status)
	return b
}

func decodeAnalogCmd(width int, isFloat bool, b []byte) (*AnalogOutputCommand, int, error) {
	if len(b) < width+1 {
		return nil, 0, ErrShortBuffer
	}
	c := &AnalogOutputCommand{Status: CommandStatus(b[width])}
	switch {
	case width == 2:
		c.Value = float64(int16(binary.LittleEndian.Uint16(b[0:2])))
	case width == 4 && isFloat:
		c.Value = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])))
	case width == 4:
		c.Value = float64(int32(binary.LittleEndian.Uint32(b[0:4])))
	case width == 8:
		c.Value = math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
	}
	return c, width + 1, nil
}
