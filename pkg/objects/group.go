// Package objects implements the DNP3 application-layer object model:
// group/variation encode and decode over the qualifier-driven range/prefix
// scheme, using encoding/binary and math.Float32bits switched on a
// datatype tag generalized from point-type-specific shapes
// to DNP3's group/variation datatypes.
package objects

import "fmt"

// PointType enumerates the DNP3 static database point types.
type PointType uint8

const (
	BinaryInput PointType = iota
	DoubleBitBinaryInput
	BinaryOutputStatus
	Counter
	FrozenCounter
	AnalogInput
	AnalogOutputStatus
	OctetString
	DeviceAttribute
)

func (t PointType) String() string {
	switch t {
	case BinaryInput:
		return "BinaryInput"
	case DoubleBitBinaryInput:
		return "DoubleBitBinaryInput"
	case BinaryOutputStatus:
		return "BinaryOutputStatus"
	case Counter:
		return "Counter"
	case FrozenCounter:
		return "FrozenCounter"
	case AnalogInput:
		return "AnalogInput"
	case AnalogOutputStatus:
		return "AnalogOutputStatus"
	case OctetString:
		return "OctetString"
	case DeviceAttribute:
		return "DeviceAttribute"
	default:
		return "Unknown"
	}
}

// GroupVariation identifies one (group, variation) pair.
type GroupVariation struct {
	Group     uint8
	Variation uint8
}

func (gv GroupVariation) String() string {
	return fmt.Sprintf("g%dv%d", gv.Group, gv.Variation)
}

// dataKind says how the fixed-width value portion of a variation is laid
// out, independent of whether flags/time accompany it.
type dataKind uint8

const (
	kindNone      dataKind = iota // event-class/class-0 "objects", no value bytes (group 60)
	kindBool                      // 1 byte, nonzero = true (group 10/11/12 status/value)
	kindDoubleBit                 // packed 2-bit state (group 3/4 unflagged variation only)
	kindUint      // little-endian unsigned integer, width = Shape.Width
	kindInt                       // little-endian two's-complement signed integer
	kindFloat                     // IEEE 754 little-endian, width 4 or 8
	kindOctets                    // raw bytes, variable length (group 110/111, group 0)
	kindCROB                      // group 12v1 control relay output block
	kindAnalogOutputCmd           // group 41 analog output command
	kindBitfield                  // 1-bit packed array (qualifier 0x0B), group 1v1/80v1
	kindTime48                    // bare 6-byte absolute time value, no flags (group 50v1)
	kindTimeInterval               // 6-byte absolute time + 4-byte interval (group 50v3)
)

// Shape is the fixed serialized layout of one (group, variation).
type Shape struct {
	Type      PointType
	Kind      dataKind
	Width     int  // value payload width in bytes (0 for kindNone/kindBitfield/variable)
	HasFlags  bool
	HasTime   bool // 48-bit absolute time follows flags+value
	IsEvent   bool
	IsCommand bool // group 12 (CROB) / group 41 (analog output), carried in requests
	Float     bool // for kindAnalogOutputCmd: width 4 is ambiguous between int32 (g41v1) and float32 (g41v3)
}

// shapes is the registry of (group,variation) -> Shape for every
// variation this stack implements. Variation 0 ("any variation") is
// intentionally absent: it must be resolved to the point's configured
// variation before reaching this table, and a response must never carry
// variation 0.
var shapes = map[GroupVariation]Shape{
	// Binary Input
	{1, 1}: {Type: BinaryInput, Kind: kindBitfield},
	{1, 2}: {Type: BinaryInput, Kind: kindBool, Width: 0, HasFlags: true},
	// Binary Input Event
	{2, 1}: {Type: BinaryInput, Kind: kindBool, HasFlags: true, IsEvent: true},
	{2, 2}: {Type: BinaryInput, Kind: kindBool, HasFlags: true, HasTime: true, IsEvent: true},
	// Double-bit Binary Input
	{3, 1}: {Type: DoubleBitBinaryInput, Kind: kindDoubleBit},
	{3, 2}: {Type: DoubleBitBinaryInput, Kind: kindDoubleBit, HasFlags: true},
	// Double-bit Binary Input Event
	{4, 1}: {Type: DoubleBitBinaryInput, Kind: kindDoubleBit, HasFlags: true, IsEvent: true},
	{4, 2}: {Type: DoubleBitBinaryInput, Kind: kindDoubleBit, HasFlags: true, HasTime: true, IsEvent: true},
	// Binary Output Status
	{10, 2}: {Type: BinaryOutputStatus, Kind: kindBool, HasFlags: true},
	// Binary Output Event
	{11, 1}: {Type: BinaryOutputStatus, Kind: kindBool, HasFlags: true, IsEvent: true},
	{11, 2}: {Type: BinaryOutputStatus, Kind: kindBool, HasFlags: true, HasTime: true, IsEvent: true},
	// Control Relay Output Block (request-only command object)
	{12, 1}: {Type: BinaryOutputStatus, Kind: kindCROB, IsCommand: true},
	// Counter
	{20, 1}: {Type: Counter, Kind: kindUint, Width: 4, HasFlags: true},
	{20, 2}: {Type: Counter, Kind: kindUint, Width: 2, HasFlags: true},
	{20, 5}: {Type: Counter, Kind: kindUint, Width: 4, HasFlags: false},
	{20, 6}: {Type: Counter, Kind: kindUint, Width: 2, HasFlags: false},
	// Frozen Counter
	{21, 1}: {Type: FrozenCounter, Kind: kindUint, Width: 4, HasFlags: true},
	{21, 2}: {Type: FrozenCounter, Kind: kindUint, Width: 2, HasFlags: true},
	{21, 5}: {Type: FrozenCounter, Kind: kindUint, Width: 4, HasFlags: false},
	{21, 6}: {Type: FrozenCounter, Kind: kindUint, Width: 2, HasFlags: false},
	// Counter Event
	{22, 1}: {Type: Counter, Kind: kindUint, Width: 4, HasFlags: true, IsEvent: true},
	{22, 2}: {Type: Counter, Kind: kindUint, Width: 2, HasFlags: true, IsEvent: true},
	{22, 5}: {Type: Counter, Kind: kindUint, Width: 4, HasFlags: true, HasTime: true, IsEvent: true},
	{22, 6}: {Type: Counter, Kind: kindUint, Width: 2, HasFlags: true, HasTime: true, IsEvent: true},
	// Frozen Counter Event
	{23, 1}: {Type: FrozenCounter, Kind: kindUint, Width: 4, HasFlags: true, IsEvent: true},
	{23, 2}: {Type: FrozenCounter, Kind: kindUint, Width: 2, HasFlags: true, IsEvent: true},
	// Analog Input
	{30, 1}: {Type: AnalogInput, Kind: kindInt, Width: 4, HasFlags: true},
	{30, 2}: {Type: AnalogInput, Kind: kindInt, Width: 2, HasFlags: true},
	{30, 3}: {Type: AnalogInput, Kind: kindInt, Width: 4, HasFlags: false},
	{30, 4}: {Type: AnalogInput, Kind: kindInt, Width: 2, HasFlags: false},
	{30, 5}: {Type: AnalogInput, Kind: kindFloat, Width: 4, HasFlags: true},
	{30, 6}: {Type: AnalogInput, Kind: kindFloat, Width: 8, HasFlags: true},
	// Analog Input Event
	{32, 1}: {Type: AnalogInput, Kind: kindInt, Width: 4, HasFlags: true, IsEvent: true},
	{32, 2}: {Type: AnalogInput, Kind: kindInt, Width: 2, HasFlags: true, IsEvent: true},
	{32, 3}: {Type: AnalogInput, Kind: kindInt, Width: 4, HasFlags: true, HasTime: true, IsEvent: true},
	{32, 4}: {Type: AnalogInput, Kind: kindInt, Width: 2, HasFlags: true, HasTime: true, IsEvent: true},
	{32, 5}: {Type: AnalogInput, Kind: kindFloat, Width: 4, HasFlags: true, IsEvent: true},
	{32, 6}: {Type: AnalogInput, Kind: kindFloat, Width: 8, HasFlags: true, IsEvent: true},
	{32, 7}: {Type: AnalogInput, Kind: kindFloat, Width: 4, HasFlags: true, HasTime: true, IsEvent: true},
	{32, 8}: {Type: AnalogInput, Kind: kindFloat, Width: 8, HasFlags: true, HasTime: true, IsEvent: true},
	// Analog Output Status
	{40, 1}: {Type: AnalogOutputStatus, Kind: kindInt, Width: 4, HasFlags: true},
	{40, 2}: {Type: AnalogOutputStatus, Kind: kindInt, Width: 2, HasFlags: true},
	{40, 3}: {Type: AnalogOutputStatus, Kind: kindFloat, Width: 4, HasFlags: true},
	{40, 4}: {Type: AnalogOutputStatus, Kind: kindFloat, Width: 8, HasFlags: true},
	// Analog Output Command (request-only)
	{41, 1}: {Type: AnalogOutputStatus, Kind: kindAnalogOutputCmd, Width: 4, IsCommand: true},
	{41, 2}: {Type: AnalogOutputStatus, Kind: kindAnalogOutputCmd, Width: 2, IsCommand: true},
	{41, 3}: {Type: AnalogOutputStatus, Kind: kindAnalogOutputCmd, Width: 4, IsCommand: true, Float: true},
	{41, 4}: {Type: AnalogOutputStatus, Kind: kindAnalogOutputCmd, Width: 8, IsCommand: true, Float: true},
	// Analog Output Event
	{42, 1}: {Type: AnalogOutputStatus, Kind: kindInt, Width: 4, HasFlags: true, IsEvent: true},
	{42, 2}: {Type: AnalogOutputStatus, Kind: kindInt, Width: 2, HasFlags: true, IsEvent: true},
	{42, 5}: {Type: AnalogOutputStatus, Kind: kindFloat, Width: 4, HasFlags: true, IsEvent: true},
	{42, 6}: {Type: AnalogOutputStatus, Kind: kindFloat, Width: 8, HasFlags: true, IsEvent: true},
	// Analog Input Deadband (write-only, per point)
	{34, 1}: {Type: AnalogInput, Kind: kindUint, Width: 2, IsCommand: true},
	{34, 2}: {Type: AnalogInput, Kind: kindUint, Width: 4, IsCommand: true},
	{34, 3}: {Type: AnalogInput, Kind: kindFloat, Width: 4, IsCommand: true},
	// Time and Date
	{50, 1}: {Kind: kindTime48, Width: 6},
	{50, 3}: {Kind: kindTimeInterval, Width: 10}, // 6-byte time + 4-byte interval in ms
	// Time Delay (Coarse/Fine), 16-bit unsigned count of milliseconds
	{52, 1}: {Kind: kindUint, Width: 2},
	{52, 2}: {Kind: kindUint, Width: 2},
	// Class objects (integrity/event-class polls): no value payload ever transmitted
	{60, 1}: {Kind: kindNone},
	{60, 2}: {Kind: kindNone},
	{60, 3}: {Kind: kindNone},
	{60, 4}: {Kind: kindNone},
	// Octet String: variation 0 is request-only (qualifier carries no
	// length); variations 1..255 are resolved dynamically in Lookup below,
	// since the variation number IS the fixed string length on the wire.
	{110, 0}: {Type: OctetString, Kind: kindOctets},
	{111, 0}: {Type: OctetString, Kind: kindOctets, IsEvent: true},
	// Device Attributes: only variation 0 is registered, as raw octets;
	// Lookup reports every other group-0 variation (attribute ID) unknown
	{0, 0}: {Type: DeviceAttribute, Kind: kindOctets},

	// Internal Indications object (outstation clears restart via WRITE)
	{80, 1}: {Kind: kindBitfield},
}

// Lookup returns the registered Shape for gv, or ok=false if this stack
// does not implement that (group,variation).
//
// Octet string groups (110 static, 111 event) are the one family whose
// variation number is not an index into a fixed table: per IEEE 1815 the
// variation number IS the string's fixed length in bytes, so any
// variation 1..255 is accepted and synthesizes a Shape with that width.
func Lookup(gv GroupVariation) (Shape, bool) {
	if s, ok := shapes[gv]; ok {
		return s, ok
	}
	switch gv.Group {
	case 110:
		if gv.Variation >= 1 {
			return Shape{Type: OctetString, Kind: kindOctets, Width: int(gv.Variation)}, true
		}
	case 111:
		if gv.Variation >= 1 {
			return Shape{Type: OctetString, Kind: kindOctets, Width: int(gv.Variation), IsEvent: true}, true
		}
	}
	return Shape{}, false
}

// StaticVariations lists the non-event variations available for a point
// type, narrowest/default first — used to resolve "variation 0" requests
// to the point's configured static variation.
var StaticVariations = map[PointType][]GroupVariation{
	BinaryInput:          {{1, 2}, {1, 1}},
	DoubleBitBinaryInput: {{3, 2}, {3, 1}},
	BinaryOutputStatus:   {{10, 2}},
	Counter:              {{20, 1}, {20, 2}, {20, 5}, {20, 6}},
	FrozenCounter:        {{21, 1}, {21, 2}, {21, 5}, {21, 6}},
	AnalogInput:          {{30, 1}, {30, 2}, {30, 3}, {30, 4}, {30, 5}, {30, 6}},
	AnalogOutputStatus:   {{40, 1}, {40, 2}, {40, 3}, {40, 4}},
	OctetString:          {{110, 0}},
}

// EventVariations lists the event variations available for a point type.
var EventVariations = map[PointType][]GroupVariation{
	BinaryInput:          {{2, 1}, {2, 2}},
	DoubleBitBinaryInput: {{4, 1}, {4, 2}},
	BinaryOutputStatus:   {{11, 1}, {11, 2}},
	Counter:              {{22, 1}, {22, 2}, {22, 5}, {22, 6}},
	FrozenCounter:        {{23, 1}, {23, 2}},
	AnalogInput:          {{32, 1}, {32, 2}, {32, 3}, {32, 4}, {32, 5}, {32, 6}, {32, 7}, {32, 8}},
	AnalogOutputStatus:   {{42, 1}, {42, 2}, {42, 5}, {42, 6}},
	OctetString:          {{111, 0}},
}

// DefaultStaticVariation is the variation used when a point has not been
// configured with one explicitly.
func DefaultStaticVariation(t PointType) GroupVariation {
	vs := StaticVariations[t]
	if len(vs) == 0 {
		return GroupVariation{}
	}
	return vs[0]
}

// DefaultEventVariation is the event variation used when a point has not
// been configured with one explicitly.
func DefaultEventVariation(t PointType) GroupVariation {
	vs := EventVariations[t]
	if len(vs) == 0 {
		return GroupVariation{}
	}
	return vs[0]
}
