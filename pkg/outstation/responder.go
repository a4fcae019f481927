package outstation

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
)

// State is the responder's confirm-wait state machine.
type State int

const (
	Idle State = iota
	SolicitedConfirmWait
	UnsolicitedConfirmWait
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case SolicitedConfirmWait:
		return "SolicitedConfirmWait"
	case UnsolicitedConfirmWait:
		return "UnsolicitedConfirmWait"
	default:
		return "Unknown"
	}
}

// Config holds the responder's tunables.
type Config struct {
	SelectTimeout         time.Duration
	ConfirmTimeout        time.Duration
	MaxUnsolicitedRetries int
	BroadcastSupport      bool
}

func DefaultConfig() Config {
	return Config{
		SelectTimeout:         5 * time.Second,
		ConfirmTimeout:        5 * time.Second,
		MaxUnsolicitedRetries: 3,
		BroadcastSupport:      true,
	}
}

// Responder is the per-association outstation state machine: request
// dispatch, SBO tracking, and the solicited/unsolicited confirm-wait
// machinery, tracked as an explicit phase enum the way a block-transfer
// server tracks its download/upload phases.
type Responder struct {
	cfg      Config
	db       *Database
	controls ControlHandler
	appl     Application
	sbo      *SBOTable

	state           State
	ecsn            uint8 // expected confirm sequence number for the in-flight wait
	pendingEvents   []*Event
	unsolicitedSeq  app.UnsolicitedSequencer
	enabledClasses  map[EventClass]bool
	unsolAttempts   int
	log             *log.Entry
}

func NewResponder(cfg Config, db *Database, controls ControlHandler, appl Application) *Responder {
	return &Responder{
		cfg:            cfg,
		db:             db,
		controls:       controls,
		appl:           appl,
		sbo:            NewSBOTable(cfg.SelectTimeout, nil),
		state:          Idle,
		enabledClasses: map[EventClass]bool{},
		log:            log.WithField("component", "outstation-responder"),
	}
}

func (r *Responder) State() State { return r.state }

// RequestResult is what HandleRequest produces: the response to send (nil
// for *_NO_ACK function codes or a suppressed broadcast) and, for
// broadcasts, how it was handled.
type RequestResult struct {
	Response  []byte // nil if no response should be sent
	Broadcast BroadcastAction
	IsBroadcast bool
}

// HandleRequest dispatches one request fragment and returns the wire
// bytes of the response (application-layer only; the caller's
// association/channel handles transport+link framing).
func (r *Responder) HandleRequest(reqHeader app.RequestHeader, body []byte, sourceAddr uint16, destAddr uint16) RequestResult {
	broadcast := destAddr == 0xFFFF
	if broadcast && !r.cfg.BroadcastSupport {
		return RequestResult{Broadcast: BroadcastIgnoredByConfiguration, IsBroadcast: true}
	}

	if reqHeader.Function == app.FCConfirm {
		r.onConfirm(reqHeader)
		return RequestResult{IsBroadcast: broadcast}
	}

	// A new non-CONFIRM request aborts any solicited confirm-wait without
	// dropping its events.
	if r.state == SolicitedConfirmWait {
		r.db.Events.ReleaseInFlight(r.pendingEvents)
		r.pendingEvents = nil
		r.state = Idle
	}

	iin, respBody := r.dispatch(reqHeader, body, sourceAddr)
	iin.Set1(persistentIIN1(r.db.IIN()))
	iin.Set2(persistentIIN2(r.db.IIN()))

	if broadcast {
		action := BroadcastProcessedByUser
		if !isBroadcastEligible(reqHeader.Function) {
			action = BroadcastUnexpectedFunctionCode
		}
		return RequestResult{Broadcast: action, IsBroadcast: true}
	}

	if noAckFunction(reqHeader.Function) {
		return RequestResult{}
	}

	respHeader := app.ResponseHeader{
		Control:  app.Control{FIR: true, FIN: true, Seq: reqHeader.Control.Seq},
		Function: app.FCResponse,
		IIN:      iin,
	}
	wire := app.EncodeResponse(respHeader, respBody)

	if len(r.pendingEvents) > 0 {
		r.state = SolicitedConfirmWait
		r.ecsn = reqHeader.Control.Seq
	}
	return RequestResult{Response: wire}
}

func persistentIIN1(s IINState) byte {
	var b byte
	if s.DeviceRestart {
		b |= app.IIN1DeviceRestart
	}
	if s.NeedTime {
		b |= app.IIN1NeedTime
	}
	return b
}

func persistentIIN2(s IINState) byte {
	var b byte
	if s.EventOverflow {
		b |= app.IIN2EventBufferOverflow
	}
	return b
}

func noAckFunction(fc app.FunctionCode) bool {
	switch fc {
	case app.FCDirectOperateNoAck, app.FCImmediateFreezeNoAck, app.FCFreezeClearNoAck, app.FCFreezeAtTimeNoAck:
		return true
	default:
		return false
	}
}

func isBroadcastEligible(fc app.FunctionCode) bool {
	switch fc {
	case app.FCWrite, app.FCDirectOperateNoAck, app.FCFreezeClearNoAck, app.FCImmediateFreezeNoAck, app.FCEnableUnsolicited, app.FCDisableUnsolicited:
		return true
	default:
		return false
	}
}

func (r *Responder) onConfirm(reqHeader app.RequestHeader) {
	switch r.state {
	case SolicitedConfirmWait:
		if reqHeader.Control.Seq == r.ecsn {
			r.db.Events.CommitInFlight(r.pendingEvents)
			r.pendingEvents = nil
			r.state = Idle
		}
	case UnsolicitedConfirmWait:
		if reqHeader.Control.UNS {
			r.db.Events.CommitInFlight(r.pendingEvents)
			r.pendingEvents = nil
			r.state = Idle
			r.unsolAttempts = 0
		}
	}
}

// OnConfirmTimeout is driven by the channel's timer when a confirm-wait
// expires without a matching CONFIRM.
func (r *Responder) OnConfirmTimeout() {
	switch r.state {
	case SolicitedConfirmWait:
		r.db.Events.ReleaseInFlight(r.pendingEvents)
		r.pendingEvents = nil
		r.state = Idle
	case UnsolicitedConfirmWait:
		r.db.Events.ReleaseInFlight(r.pendingEvents)
		r.pendingEvents = nil
		r.unsolAttempts++
		r.state = Idle
	}
}

// PollUnsolicited checks whether an unsolicited response should be
// emitted now: enabled classes have pending events and the responder is
// not mid-confirm-wait or mid-request. Returns nil if nothing to send.
func (r *Responder) PollUnsolicited() []byte {
	if r.state != Idle {
		return nil
	}
	if r.unsolAttempts >= r.cfg.MaxUnsolicitedRetries && r.cfg.MaxUnsolicitedRetries > 0 {
		return nil
	}
	var classes []EventClass
	for c, enabled := range r.enabledClasses {
		if enabled {
			classes = append(classes, c)
		}
	}
	if len(classes) == 0 || !r.db.Events.Pending(classes...) {
		return nil
	}
	events := r.db.Events.SelectForClasses(classes...)
	if len(events) == 0 {
		return nil
	}
	body := encodeEvents(events)
	seq := r.unsolicitedSeq.Next()
	respHeader := app.ResponseHeader{
		Control:  app.Control{FIR: true, FIN: true, CON: true, UNS: true, Seq: seq},
		Function: app.FCUnsolicitedResponse,
		IIN:      IIN{IIN1: persistentIIN1(r.db.IIN()), IIN2: persistentIIN2(r.db.IIN())},
	}
	r.pendingEvents = events
	r.state = UnsolicitedConfirmWait
	r.ecsn = seq
	return app.EncodeResponse(respHeader, body)
}

// IIN is a local alias for app.IIN, used for the literal type name at call
// sites above.
type IIN = app.IIN

func encodeEvents(events []*Event) []byte {
	var out []byte
	for _, ev := range events {
		gv := ev.Variation
		b, err := objects.EncodeGroup(gv.Group, gv.Variation, []objects.Value{ev.Value}, true)
		if err != nil {
			continue
		}
		out = append(out, b...)
	}
	return out
}
