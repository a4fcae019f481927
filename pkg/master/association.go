package master

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
)

// AssociationState is where one association sits in the startup-integrity
// lifecycle.
type AssociationState int

const (
	StateInit AssociationState = iota
	StateClearingRestart
	StateDisablingUnsolicited
	StateStartupIntegrity
	StateEnablingUnsolicited
	StateRunning
)

func (s AssociationState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateClearingRestart:
		return "ClearingRestart"
	case StateDisablingUnsolicited:
		return "DisablingUnsolicited"
	case StateStartupIntegrity:
		return "StartupIntegrity"
	case StateEnablingUnsolicited:
		return "EnablingUnsolicited"
	case StateRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// AssociationHandler observes association lifecycle and task outcomes,
// the association-handler and association-information callback pair.
type AssociationHandler interface {
	OnStateChange(s AssociationState)
	OnTaskStart(label string)
	OnTaskSuccess(label string)
	OnTaskFail(label string, err error)
	OnKeepAliveFailure()
}

// NullAssociationHandler discards every callback.
type NullAssociationHandler struct{}

func (NullAssociationHandler) OnStateChange(AssociationState)     {}
func (NullAssociationHandler) OnTaskStart(string)                 {}
func (NullAssociationHandler) OnTaskSuccess(string)                {}
func (NullAssociationHandler) OnTaskFail(string, error)            {}
func (NullAssociationHandler) OnKeepAliveFailure()                {}

// AssociationConfig configures one outstation association: startup
// integrity classes, enable/disable-unsolicited classes, auto-time-sync
// mode, keep-alive timeout,
// auto-integrity-on-overflow, event-scan-on-events-available}".
type AssociationConfig struct {
	StartupIntegrityClasses []uint8 // group-60 variations to read, default {1,2,3,4}
	UnsolicitedClasses      []uint8 // group-60 variations to enable/disable, default {2,3,4}
	AutoTimeSync            TimeSyncMode
	KeepAliveTimeout        time.Duration
	AutoIntegrityOnOverflow bool
	EventScanOnEvents       bool
	TaskTimeout             time.Duration
	UnsolicitedRetry        RetryStrategy
}

func DefaultAssociationConfig() AssociationConfig {
	return AssociationConfig{
		StartupIntegrityClasses: []uint8{1, 2, 3, 4},
		UnsolicitedClasses:      []uint8{2, 3, 4},
		AutoTimeSync:            TimeSyncNonLAN,
		KeepAliveTimeout:        30 * time.Second,
		AutoIntegrityOnOverflow: true,
		EventScanOnEvents:       true,
		TaskTimeout:             5 * time.Second,
		UnsolicitedRetry:        DefaultRetryStrategy(),
	}
}

// Poll is one user-registered periodic read.
type Poll struct {
	ID       int
	Request  []byte
	Period   time.Duration
	lastRun  time.Time
	demanded bool
}

// Association drives one outstation's lifecycle over a shared task Engine:
// restart detection, disable/enable-unsolicited, startup integrity, the
// registered poll schedule, keep-alive, and auto-integrity-on-overflow.
// Tracked with the same explicit enum-state style as the link layer's
// own handshake state machine, generalized to a multi-step association
// startup sequence.
type Association struct {
	Engine  *Engine
	Config  AssociationConfig
	Handler AssociationHandler
	Reader  ReadHandler
	Clock   func() time.Time

	state      AssociationState
	polls      map[int]*Poll
	nextPollID int
	retryAttempt int
	lastKeepAlive time.Time
	log *log.Entry
}

func NewAssociation(engine *Engine, cfg AssociationConfig, reader ReadHandler, handler AssociationHandler) *Association {
	if handler == nil {
		handler = NullAssociationHandler{}
	}
	return &Association{
		Engine:  engine,
		Config:  cfg,
		Handler: handler,
		Reader:  reader,
		Clock:   time.Now,
		state:   StateInit,
		polls:   make(map[int]*Poll),
		log:     log.WithField("component", "association"),
	}
}

func (a *Association) State() AssociationState { return a.state }

func (a *Association) setState(s AssociationState) {
	a.state = s
	a.log.WithField("state", s.String()).Debug("association state transition")
	a.Handler.OnStateChange(s)
}

// Start runs the full startup-integrity lifecycle: clear-restart,
// disable-unsolicited, startup integrity, enable-unsolicited, then
// resumes the poll schedule.
func (a *Association) Start() {
	a.runClearRestart()
}

// OnResponseIIN inspects every received response's IIN bits and triggers
// the reactive behaviors: any response with DEVICE_RESTART set restarts the
// whole lifecycle; EVENT_BUFFER_OVERFLOW schedules another startup integrity
// scan when configured to do so.
func (a *Association) OnResponseIIN(iin app.IIN) {
	if iin.DeviceRestart() {
		a.log.Info("device restart indication observed, restarting lifecycle")
		a.Start()
		return
	}
	if iin.EventBufferOverflow() && a.Config.AutoIntegrityOnOverflow {
		a.log.Warn("event buffer overflow indication observed, scheduling integrity scan")
		a.enqueueStartupIntegrity(a.resumePolls)
	}
	if iin.NeedsTime() && a.Config.AutoTimeSync != TimeSyncOff {
		a.runTimeSync(func(error) {})
	}
}

func (a *Association) runClearRestart() {
	a.setState(StateClearingRestart)
	label := "clear-restart"
	a.Handler.OnTaskStart(label)
	body, _ := objects.EncodeGroup(80, 1, []objects.Value{{Index: 7, Bool: false}}, true)
	wt := &writeOnlyTask{body: body, timeout: a.timeout(), done: func(err error) {
		if err != nil {
			a.Handler.OnTaskFail(label, err)
		} else {
			a.Handler.OnTaskSuccess(label)
		}
		a.runDisableUnsolicited()
	}}
	a.Engine.Enqueue(wt)
}

func (a *Association) runDisableUnsolicited() {
	a.setState(StateDisablingUnsolicited)
	label := "disable-unsolicited"
	a.Handler.OnTaskStart(label)
	var body []byte
	for _, v := range a.Config.UnsolicitedClasses {
		b, _ := objects.EncodeGroup(60, v, nil, false)
		body = append(body, b...)
	}
	wt := &writeOnlyTask{function: app.FCDisableUnsolicited, body: body, timeout: a.timeout(), done: func(err error) {
		if err != nil {
			a.Handler.OnTaskFail(label, err)
		} else {
			a.Handler.OnTaskSuccess(label)
		}
		a.runStartupIntegrity()
	}}
	a.Engine.Enqueue(wt)
}

func (a *Association) runStartupIntegrity() {
	a.setState(StateStartupIntegrity)
	a.enqueueStartupIntegrity(a.runEnableUnsolicited)
}

func (a *Association) enqueueStartupIntegrity(next func()) {
	label := "startup-integrity"
	a.Handler.OnTaskStart(label)
	var body []byte
	for _, v := range a.Config.StartupIntegrityClasses {
		b, _ := objects.EncodeGroup(60, v, nil, false)
		body = append(body, b...)
	}
	t := NewReadTask(body, ReadStartupIntegrity, a.Reader, a.timeout())
	a.Engine.Enqueue(&finishHook{Task: t, done: func(err error) {
		if err != nil {
			a.Handler.OnTaskFail(label, err)
		} else {
			a.Handler.OnTaskSuccess(label)
		}
		next()
	}})
}

func (a *Association) runEnableUnsolicited() {
	a.setState(StateEnablingUnsolicited)
	label := "enable-unsolicited"
	a.Handler.OnTaskStart(label)
	var body []byte
	for _, v := range a.Config.UnsolicitedClasses {
		b, _ := objects.EncodeGroup(60, v, nil, false)
		body = append(body, b...)
	}
	wt := &writeOnlyTask{function: app.FCEnableUnsolicited, body: body, timeout: a.timeout(), done: func(err error) {
		if err != nil {
			a.Handler.OnTaskFail(label, err)
		} else {
			a.Handler.OnTaskSuccess(label)
		}
		a.resumePolls()
	}}
	a.Engine.Enqueue(wt)
}

func (a *Association) resumePolls() {
	a.setState(StateRunning)
	if a.Config.AutoTimeSync != TimeSyncOff {
		a.runTimeSync(func(error) {})
	}
}

func (a *Association) runTimeSync(done func(error)) {
	clock := a.Clock
	if clock == nil {
		clock = time.Now
	}
	label := "time-sync"
	a.Handler.OnTaskStart(label)
	wrap := func(err error) {
		if err != nil {
			a.Handler.OnTaskFail(label, err)
		} else {
			a.Handler.OnTaskSuccess(label)
		}
		done(err)
	}
	if a.Config.AutoTimeSync == TimeSyncLAN {
		a.Engine.Enqueue(NewLANTimeSyncTask(clock, a.timeout(), wrap))
	} else {
		a.Engine.Enqueue(NewNonLANTimeSyncTask(clock, a.timeout(), wrap))
	}
}

// AddPoll registers a periodic read.
func (a *Association) AddPoll(request []byte, period time.Duration) int {
	a.nextPollID++
	id := a.nextPollID
	a.polls[id] = &Poll{ID: id, Request: request, Period: period}
	return id
}

// DemandPoll forces the next Tick to run id's read immediately, preempting
// only the idle queue (it is still enqueued at PriorityPoll).
func (a *Association) DemandPoll(id int) {
	if p, ok := a.polls[id]; ok {
		p.demanded = true
	}
}

// Tick drives time-based behavior: due polls and keep-alive (the first
// keep-alive goes out one KeepAliveTimeout after the first Tick).
// Auto-integrity-on-overflow is driven by OnResponseIIN, not here. The
// owning channel loop calls this on a regular cadence.
func (a *Association) Tick(now time.Time) {
	if a.state != StateRunning {
		return
	}
	for _, p := range a.polls {
		if p.demanded || (p.Period > 0 && now.Sub(p.lastRun) >= p.Period) {
			p.demanded = false
			p.lastRun = now
			a.Engine.Enqueue(NewReadTask(p.Request, ReadPeriodicPoll, a.Reader, a.timeout()))
		}
	}
	if a.lastKeepAlive.IsZero() {
		a.lastKeepAlive = now
	}
	if a.Config.KeepAliveTimeout > 0 && now.Sub(a.lastKeepAlive) >= a.Config.KeepAliveTimeout {
		a.lastKeepAlive = now
		a.Engine.Enqueue(NewLinkStatusTask(a.timeout(), func(ok bool) {
			if !ok {
				a.Handler.OnKeepAliveFailure()
			}
		}))
	}
}

func (a *Association) timeout() time.Duration {
	if a.Config.TaskTimeout > 0 {
		return a.Config.TaskTimeout
	}
	return 5 * time.Second
}

// writeOnlyTask issues a single WRITE (or other data-carrying,
// response-only) fragment and reports completion without decoding the
// response body, used by the association lifecycle's housekeeping steps.
type writeOnlyTask struct {
	function app.FunctionCode
	body     []byte
	timeout  time.Duration
	done     func(error)
}

func (t *writeOnlyTask) Priority() Priority     { return PrioritySystem }
func (t *writeOnlyTask) Timeout() time.Duration { return t.timeout }

func (t *writeOnlyTask) BuildRequest(seq uint8) []byte {
	fc := t.function
	if fc == 0 {
		fc = app.FCWrite
	}
	return app.EncodeRequest(app.RequestHeader{Control: app.Control{FIR: true, FIN: true, Seq: seq}, Function: fc}, t.body)
}

func (t *writeOnlyTask) OnResponse(header app.ResponseHeader, _ []byte) (bool, error) {
	if header.IIN.IsError() {
		err := &TaskError{Kind: "IINError", IIN: header.IIN}
		if t.done != nil {
			t.done(err)
		}
		return true, err
	}
	if t.done != nil {
		t.done(nil)
	}
	return true, nil
}

func (t *writeOnlyTask) OnError(err error) {
	if t.done != nil {
		t.done(err)
	}
}

// finishHook wraps a Task, invoking done after the wrapped task finishes
// (successfully or not) without altering its observable behavior.
type finishHook struct {
	Task
	done func(error)
}

func (f *finishHook) OnResponse(header app.ResponseHeader, body []byte) (bool, error) {
	done, err := f.Task.OnResponse(header, body)
	if done && f.done != nil {
		f.done(err)
	}
	return done, err
}

func (f *finishHook) OnError(err error) {
	f.Task.OnError(err)
	if f.done != nil {
		f.done(err)
	}
}
