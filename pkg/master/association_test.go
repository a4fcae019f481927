package master

import (
	"testing"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	states []AssociationState
}

func (h *recordingHandler) OnStateChange(s AssociationState) { h.states = append(h.states, s) }
func (h *recordingHandler) OnTaskStart(string)                {}
func (h *recordingHandler) OnTaskSuccess(string)              {}
func (h *recordingHandler) OnTaskFail(string, error)          {}
func (h *recordingHandler) OnKeepAliveFailure()               {}

type discardHandler struct{}

func (discardHandler) BeginFragment(ReadType, app.ResponseHeader) {}
func (discardHandler) HandleObjectHeader(objects.ObjectHeader)    {}
func (discardHandler) EndFragment(ReadType, app.ResponseHeader)   {}

// driveOneRound pops the next queued task, feeds it an OK response, and
// returns whether a task ran.
func driveOneRound(t *testing.T, e *Engine) bool {
	t.Helper()
	inflight, ok := e.RunNext()
	if !ok {
		return false
	}
	if inflight == nil {
		return true
	}
	inflight.Feed(respHeaderOK(), nil)
	return true
}

func TestAssociationStartRunsFullLifecycleInOrder(t *testing.T) {
	engine := NewEngine(func([]byte) error { return nil })
	handler := &recordingHandler{}
	cfg := DefaultAssociationConfig()
	assoc := NewAssociation(engine, cfg, discardHandler{}, handler)

	assoc.Start()
	// drain: clear-restart, disable-unsolicited, startup-integrity,
	// enable-unsolicited, time-sync (auto, triggered at Running).
	for i := 0; i < 6 && engine.Len() > 0; i++ {
		driveOneRound(t, engine)
	}

	assert.Contains(t, handler.states, StateClearingRestart)
	assert.Contains(t, handler.states, StateDisablingUnsolicited)
	assert.Contains(t, handler.states, StateStartupIntegrity)
	assert.Contains(t, handler.states, StateEnablingUnsolicited)
	assert.Contains(t, handler.states, StateRunning)
	assert.Equal(t, []AssociationState{StateClearingRestart, StateDisablingUnsolicited, StateStartupIntegrity, StateEnablingUnsolicited, StateRunning}, handler.states)
	assert.Equal(t, StateRunning, assoc.State())
}

func TestAssociationDeviceRestartIINRestartsLifecycle(t *testing.T) {
	engine := NewEngine(func([]byte) error { return nil })
	handler := &recordingHandler{}
	assoc := NewAssociation(engine, DefaultAssociationConfig(), discardHandler{}, handler)
	assoc.state = StateRunning

	assoc.OnResponseIIN(app.IIN{IIN1: app.IIN1DeviceRestart})

	assert.Equal(t, StateClearingRestart, assoc.State())
}

func TestAssociationTickEnqueuesDuePoll(t *testing.T) {
	engine := NewEngine(func([]byte) error { return nil })
	assoc := NewAssociation(engine, DefaultAssociationConfig(), discardHandler{}, nil)
	assoc.state = StateRunning

	id := assoc.AddPoll([]byte{60, 1, 6}, time.Millisecond)
	assoc.DemandPoll(id)

	assert.Equal(t, 0, engine.Len())
	assoc.Tick(time.Now())
	assert.Equal(t, 1, engine.Len())
}

func TestRetryStrategyDoublesUntilCap(t *testing.T) {
	r := RetryStrategy{MinDelay: time.Second, MaxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, r.Next(0))
	assert.Equal(t, 2*time.Second, r.Next(1))
	assert.Equal(t, 4*time.Second, r.Next(2))
	assert.Equal(t, 10*time.Second, r.Next(10))
}
