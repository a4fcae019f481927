package link

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// PrimaryState is the state of the primary (initiating) side of one link
// address pair.
type PrimaryState int

const (
	Idle PrimaryState = iota
	Reset
	SecondaryReset
	WaitAck
)

func (s PrimaryState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Reset:
		return "Reset"
	case SecondaryReset:
		return "SecondaryReset"
	case WaitAck:
		return "WaitAck"
	default:
		return "Unknown"
	}
}

// FrameSink receives frames the state machine wants transmitted.
type FrameSink interface {
	SendFrame(f Frame) error
}

// Config configures one side of a link address pair.
type Config struct {
	LocalAddr  uint16
	RemoteAddr uint16
	IsMaster   bool // sets the DIR bit on primary-originated frames
	NumRetries int  // retransmissions of a confirmed service before LinkTimeout, default 3
	Timeout    time.Duration
}

func (c Config) numRetries() int {
	if c.NumRetries <= 0 {
		return 3
	}
	return c.NumRetries
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 3 * time.Second
	}
	return c.Timeout
}

// pendingService describes one primary-side outstanding confirmed-data
// request: a RESET_LINK_STATES handshake followed by the CONFIRMED_USER_DATA
// frame itself, retried on timeout without toggling FCB.
type pendingService struct {
	payload    []byte
	attempts   int
	resetDone  bool // RESET_LINK_STATES has been ACKed; subsequent ACKs complete the data send
	done       chan error
}

// StateMachine drives one primary/secondary link pair (one association's
// link layer). It owns the FCB for outgoing confirmed data and the
// expected-FCB for incoming confirmed data from the remote: one state enum
// per remote node, doubled here for the primary/secondary duality DNP3
// requires on a single link.
type StateMachine struct {
	cfg  Config
	sink FrameSink
	log  *log.Entry

	primaryState PrimaryState
	txFCB        bool // FCB used on the next confirmed CONFIRMED_USER_DATA
	pending      *pendingService

	expectFCB          bool // FCB a new (non-duplicate) frame from the remote primary must carry
	haveExpectFCB      bool
	lastSecondaryReply *Frame // last ACK/NACK/LINK_STATUS sent, for duplicate retransmission

	linkStatusWait chan bool // set while a REQUEST_LINK_STATUS reply is outstanding

	// DataSink receives reassembled link-layer user data (both confirmed
	// and unconfirmed), destined for the transport layer above.
	DataSink func(payload []byte)

	// OnRetransmit, if set, is called each time OnTimeout resends a
	// confirmed service. Used by the owning channel for statistics only;
	// the state machine itself does not depend on it being set.
	OnRetransmit func()
}

// New creates a link state machine for one configured address pair.
func New(cfg Config, sink FrameSink) *StateMachine {
	return &StateMachine{
		cfg:  cfg,
		sink: sink,
		log: log.WithFields(log.Fields{
			"component": "link",
			"local":     cfg.LocalAddr,
			"remote":    cfg.RemoteAddr,
		}),
	}
}

func (sm *StateMachine) direction() bool { return sm.cfg.IsMaster }

// State returns the current primary-side state, mainly for tests/logging.
func (sm *StateMachine) State() PrimaryState { return sm.primaryState }

// SendUnconfirmed transmits payload as UNCONFIRMED_USER_DATA without
// affecting FCB state or primary state.
func (sm *StateMachine) SendUnconfirmed(payload []byte) error {
	sm.log.Debug("sending unconfirmed user data")
	return sm.sink.SendFrame(Frame{
		Control:     Control{Dir: sm.direction(), Prm: true, Func: FuncUnconfirmedUserData},
		Destination: sm.cfg.RemoteAddr,
		Source:      sm.cfg.LocalAddr,
		Payload:     payload,
	})
}

// BeginConfirmed starts a confirmed-data service: payload will be sent as
// CONFIRMED_USER_DATA once the RESET_LINK_STATES/ACK handshake (if needed)
// completes. The returned channel receives nil on success or one of
// ErrLinkTimeout/ErrLinkNack on failure. The caller (the channel task) is
// responsible for invoking OnFrame/OnTimeout until the channel fires.
func (sm *StateMachine) BeginConfirmed(payload []byte) (done <-chan error, err error) {
	if sm.pending != nil {
		return nil, ErrLinkTimeout // a confirmed service is already outstanding
	}
	ch := make(chan error, 1)
	sm.pending = &pendingService{payload: payload, done: ch}
	if sm.primaryState != Reset {
		sm.log.Debug("link not reset, issuing RESET_LINK_STATES before confirmed data")
		sm.primaryState = WaitAck
		err = sm.sink.SendFrame(Frame{
			Control:     Control{Dir: sm.direction(), Prm: true, Func: FuncResetLinkStates},
			Destination: sm.cfg.RemoteAddr,
			Source:      sm.cfg.LocalAddr,
		})
	} else {
		sm.pending.resetDone = true
		err = sm.sendPendingData()
	}
	return ch, err
}

func (sm *StateMachine) sendPendingData() error {
	sm.primaryState = WaitAck
	return sm.sink.SendFrame(Frame{
		Control:     Control{Dir: sm.direction(), Prm: true, FCB: sm.txFCB, FCV: true, Func: FuncConfirmedUserData},
		Destination: sm.cfg.RemoteAddr,
		Source:      sm.cfg.LocalAddr,
		Payload:     sm.pending.payload,
	})
}

// RequestLinkStatus issues REQUEST_LINK_STATUS and returns a channel that
// receives true when the matching LINK_STATUS reply arrives. The caller
// owns timeout handling (same convention as BeginConfirmed): give up on
// the channel after its own timer expires and call CancelLinkStatus.
func (sm *StateMachine) RequestLinkStatus() (<-chan bool, error) {
	ch := make(chan bool, 1)
	sm.linkStatusWait = ch
	err := sm.sink.SendFrame(Frame{
		Control:     Control{Dir: sm.direction(), Prm: true, Func: FuncRequestLinkStatus},
		Destination: sm.cfg.RemoteAddr,
		Source:      sm.cfg.LocalAddr,
	})
	return ch, err
}

// CancelLinkStatus abandons an outstanding RequestLinkStatus wait, e.g.
// after the caller's own timeout fires.
func (sm *StateMachine) CancelLinkStatus() {
	sm.linkStatusWait = nil
}

// OnTimeout is called by the channel task when the response timer for the
// current confirmed service expires while primaryState == WaitAck.
// Retransmission does not toggle FCB.
func (sm *StateMachine) OnTimeout() {
	if sm.pending == nil || sm.primaryState != WaitAck {
		return
	}
	sm.pending.attempts++
	if sm.pending.attempts > sm.cfg.numRetries() {
		sm.log.Warn("link timeout, retry budget exhausted")
		sm.finishPending(ErrLinkTimeout)
		return
	}
	sm.log.WithField("attempt", sm.pending.attempts).Debug("link retransmit")
	if sm.OnRetransmit != nil {
		sm.OnRetransmit()
	}
	if sm.pending.resetDone {
		_ = sm.sendPendingData()
	} else {
		_ = sm.sink.SendFrame(Frame{
			Control:     Control{Dir: sm.direction(), Prm: true, Func: FuncResetLinkStates},
			Destination: sm.cfg.RemoteAddr,
			Source:      sm.cfg.LocalAddr,
		})
	}
}

func (sm *StateMachine) finishPending(err error) {
	p := sm.pending
	sm.pending = nil
	sm.primaryState = Idle
	if p != nil {
		p.done <- err
	}
}

// OnFrame processes one received, CRC-valid link frame addressed to us.
func (sm *StateMachine) OnFrame(f Frame) error {
	if f.Source != sm.cfg.RemoteAddr {
		sm.log.WithField("source", f.Source).Warn("bad address on received frame")
		return ErrBadAddress
	}
	if f.Control.Prm {
		return sm.onPrimaryFrame(f)
	}
	return sm.onSecondaryFrame(f)
}

// onSecondaryFrame handles frames where the remote acted as secondary:
// ACK, NACK, LINK_STATUS, NOT_SUPPORTED, replying to our primary role.
func (sm *StateMachine) onSecondaryFrame(f Frame) error {
	switch f.Control.Func {
	case FuncAck:
		return sm.onAck()
	case FuncNack:
		sm.log.Warn("received NACK")
		sm.finishPending(ErrLinkNack)
		return nil
	case FuncLinkStatus:
		sm.log.Debug("received LINK_STATUS")
		if sm.linkStatusWait != nil {
			select {
			case sm.linkStatusWait <- true:
			default:
			}
			sm.linkStatusWait = nil
		}
		return nil
	case FuncNotSupported:
		sm.finishPending(ErrUnknownFunction)
		return nil
	default:
		return ErrUnknownFunction
	}
}

func (sm *StateMachine) onAck() error {
	if sm.primaryState != WaitAck || sm.pending == nil {
		return nil // stray ACK, nothing outstanding
	}
	if !sm.pending.resetDone {
		sm.log.Debug("reset acked, sending pending confirmed data with FCB=1")
		sm.txFCB = true
		sm.pending.resetDone = true
		sm.pending.attempts = 0
		return sm.sendPendingData()
	}
	sm.log.Debug("confirmed data acked")
	sm.txFCB = !sm.txFCB
	sm.finishPending(nil)
	sm.primaryState = Reset
	return nil
}

// onPrimaryFrame handles frames where the remote acted as primary: reset,
// test, confirmed/unconfirmed data, link-status request — we act as
// secondary.
func (sm *StateMachine) onPrimaryFrame(f Frame) error {
	switch f.Control.Func {
	case FuncResetLinkStates:
		sm.log.Debug("received RESET_LINK_STATES, clearing expected FCB")
		sm.haveExpectFCB = false
		return sm.replySecondary(f, FuncAck)

	case FuncTestLinkStates:
		if !sm.checkIncomingFCB(f.Control) {
			return sm.retransmitLastReply(f)
		}
		return sm.replySecondary(f, FuncAck)

	case FuncConfirmedUserData:
		if f.Control.FCV && !sm.checkIncomingFCB(f.Control) {
			sm.log.Debug("duplicate confirmed data (FCB mismatch), replaying last reply")
			return sm.retransmitLastReply(f)
		}
		if err := sm.replySecondary(f, FuncAck); err != nil {
			return err
		}
		if sm.DataSink != nil {
			sm.DataSink(f.Payload)
		}
		return nil

	case FuncUnconfirmedUserData:
		if sm.DataSink != nil {
			sm.DataSink(f.Payload)
		}
		return nil

	case FuncRequestLinkStatus:
		return sm.replySecondary(f, FuncLinkStatus)

	default:
		return sm.replySecondary(f, FuncNotSupported)
	}
}

// checkIncomingFCB reports whether the incoming frame is a new request
// (true) or a duplicate retransmission of the last one (false). FCV unset,
// or no frame seen yet since the last reset, always counts as new. expectFCB
// holds the FCB value a new frame must carry; it only advances (toggles)
// when a new frame is accepted, so a retransmitted duplicate — which
// repeats the previous, already-toggled-past FCB — compares unequal and is
// correctly bounced without being stored.
func (sm *StateMachine) checkIncomingFCB(c Control) bool {
	if !c.FCV {
		return true
	}
	if !sm.haveExpectFCB {
		sm.haveExpectFCB = true
		sm.expectFCB = !c.FCB
		return true
	}
	if c.FCB != sm.expectFCB {
		return false
	}
	sm.expectFCB = !c.FCB
	return true
}

func (sm *StateMachine) replySecondary(req Frame, fn Function) error {
	reply := Frame{
		Control:     Control{Dir: sm.direction(), Prm: false, Func: fn},
		Destination: req.Source,
		Source:      sm.cfg.LocalAddr,
	}
	sm.lastSecondaryReply = &reply
	return sm.sink.SendFrame(reply)
}

// retransmitLastReply resends the secondary's last response verbatim, as
// required when a duplicate (FCB-mismatched) request is detected: the
// secondary returns its last response (a duplicate) without acting on
// the payload.
func (sm *StateMachine) retransmitLastReply(req Frame) error {
	if sm.lastSecondaryReply == nil {
		return sm.replySecondary(req, FuncAck)
	}
	return sm.sink.SendFrame(*sm.lastSecondaryReply)
}
