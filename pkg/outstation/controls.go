package outstation

import "github.com/dnp3go/dnp3/pkg/objects"

// OpType distinguishes a SELECT/OPERATE dry-run from the operation that
// actually changes the point.
type OpType int

const (
	OpSelect OpType = iota
	OpOperate
	OpDirectOperate
)

// CROBHandler is the user-supplied control surface for Control Relay
// Output Block points (group 12), the binary/latching output family.
type CROBHandler interface {
	SelectCROB(index uint32, c objects.CROB, db *Database) objects.CommandStatus
	OperateCROB(index uint32, c objects.CROB, op OpType, db *Database) objects.CommandStatus
}

// AnalogOutputHandler is the user-supplied control surface for analog
// output command points (group 41).
type AnalogOutputHandler interface {
	SelectAnalogOutput(index uint32, c objects.AnalogOutputCommand, db *Database) objects.CommandStatus
	OperateAnalogOutput(index uint32, c objects.AnalogOutputCommand, op OpType, db *Database) objects.CommandStatus
}

// ControlHandler composes every control surface the responder dispatches
// to; a deployment that exposes only one control family implements the
// corresponding interface and leaves the other a no-op.
type ControlHandler interface {
	CROBHandler
	AnalogOutputHandler
}

// NullControlHandler rejects every control with NOT_SUPPORTED; useful as
// an embedding default for outstations that expose no controls.
type NullControlHandler struct{}

func (NullControlHandler) SelectCROB(uint32, objects.CROB, *Database) objects.CommandStatus {
	return objects.StatusNotSupported
}
func (NullControlHandler) OperateCROB(uint32, objects.CROB, OpType, *Database) objects.CommandStatus {
	return objects.StatusNotSupported
}
func (NullControlHandler) SelectAnalogOutput(uint32, objects.AnalogOutputCommand, *Database) objects.CommandStatus {
	return objects.StatusNotSupported
}
func (NullControlHandler) OperateAnalogOutput(uint32, objects.AnalogOutputCommand, OpType, *Database) objects.CommandStatus {
	return objects.StatusNotSupported
}

// BroadcastAction reports how a broadcast request (destination 0xFFFF)
// was handled.
type BroadcastAction int

const (
	BroadcastProcessedByUser BroadcastAction = iota
	BroadcastIgnoredByConfiguration
	BroadcastUnexpectedFunctionCode
)

// Application is the read-side capability set: how the responder obtains
// current time and is notified of restart-flag clears, analogous to the
// master's read handler but for outstation-local concerns: the
// outstation receives absolute time from a user callback.
type Application interface {
	Now() objects.Timestamp
	ColdRestartDelayMillis() uint16
	WarmRestartDelayMillis() uint16
}
