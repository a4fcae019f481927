package objects

// Standard DNP3 point-quality flag bits. Not every bit applies to every
// point type; the ones used by this module's supported groups are named
// here, matching IEEE 1815 Table 4-1 through 4-9 bit assignments.
const (
	FlagOnline         byte = 1 << 0
	FlagRestart        byte = 1 << 1
	FlagCommLost       byte = 1 << 2
	FlagRemoteForced   byte = 1 << 3
	FlagLocalForced    byte = 1 << 4
	FlagChatterFilter  byte = 1 << 5 // binary inputs
	FlagRollover       byte = 1 << 5 // counters
	FlagOverRange      byte = 1 << 5 // analog inputs
	FlagReferenceCheck byte = 1 << 6 // analog inputs
	FlagState          byte = 1 << 7 // binary inputs/outputs: the point value itself

	// DefaultOnlineFlags is the flags byte a healthy, in-service point
	// reports absent any degradation.
	DefaultOnlineFlags byte = FlagOnline
)

// DoubleBit is the 2-bit state carried by double-bit binary input points.
type DoubleBit uint8

const (
	DoubleBitIntermediate DoubleBit = 0
	DoubleBitOff          DoubleBit = 1
	DoubleBitOn           DoubleBit = 2
	DoubleBitIndeterminate DoubleBit = 3
)
