package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	sent []Frame
}

func (f *fakeSink) SendFrame(fr Frame) error {
	f.sent = append(f.sent, fr)
	return nil
}

func (f *fakeSink) last() Frame { return f.sent[len(f.sent)-1] }

func TestConfirmedServiceHandshake(t *testing.T) {
	sink := &fakeSink{}
	sm := New(Config{LocalAddr: 1, RemoteAddr: 4, IsMaster: true}, sink)

	done, err := sm.BeginConfirmed([]byte{0xAA})
	assert.NoError(t, err)
	assert.Equal(t, FuncResetLinkStates, sink.last().Control.Func)
	assert.Equal(t, WaitAck, sm.State())

	// secondary ACKs the reset
	err = sm.OnFrame(Frame{Control: Control{Prm: false, Func: FuncAck}, Source: 4, Destination: 1})
	assert.NoError(t, err)
	assert.Equal(t, FuncConfirmedUserData, sink.last().Control.Func)
	assert.True(t, sink.last().Control.FCB)
	assert.Equal(t, []byte{0xAA}, sink.last().Payload)

	// secondary ACKs the data
	err = sm.OnFrame(Frame{Control: Control{Prm: false, Func: FuncAck}, Source: 4, Destination: 1})
	assert.NoError(t, err)

	select {
	case e := <-done:
		assert.NoError(t, e)
	default:
		t.Fatal("expected completion signal")
	}
	assert.Equal(t, Reset, sm.State())
	assert.False(t, sm.txFCB) // toggled after success
}

func TestConfirmedServiceNack(t *testing.T) {
	sink := &fakeSink{}
	sm := New(Config{LocalAddr: 1, RemoteAddr: 4}, sink)
	done, _ := sm.BeginConfirmed([]byte{1})
	_ = sm.OnFrame(Frame{Control: Control{Prm: false, Func: FuncAck}, Source: 4})
	err := sm.OnFrame(Frame{Control: Control{Prm: false, Func: FuncNack}, Source: 4})
	assert.NoError(t, err)
	select {
	case e := <-done:
		assert.ErrorIs(t, e, ErrLinkNack)
	default:
		t.Fatal("expected completion signal")
	}
}

func TestConfirmedServiceTimeoutExhaustsRetries(t *testing.T) {
	sink := &fakeSink{}
	sm := New(Config{LocalAddr: 1, RemoteAddr: 4, NumRetries: 2}, sink)
	done, _ := sm.BeginConfirmed([]byte{1})
	sm.OnTimeout()
	sm.OnTimeout()
	sm.OnTimeout() // exceeds budget of 2
	select {
	case e := <-done:
		assert.ErrorIs(t, e, ErrLinkTimeout)
	default:
		t.Fatal("expected completion signal")
	}
}

func TestSecondaryAcksResetAndClearsExpectedFCB(t *testing.T) {
	sink := &fakeSink{}
	sm := New(Config{LocalAddr: 4, RemoteAddr: 1}, sink)
	err := sm.OnFrame(Frame{Control: Control{Prm: true, Func: FuncResetLinkStates}, Source: 1, Destination: 4})
	assert.NoError(t, err)
	assert.Equal(t, FuncAck, sink.last().Control.Func)
	assert.False(t, sink.last().Control.Prm)
}

func TestSecondaryDuplicateConfirmedDataReplaysLastReply(t *testing.T) {
	sink := &fakeSink{}
	sm := New(Config{LocalAddr: 4, RemoteAddr: 1}, sink)
	var received [][]byte
	sm.DataSink = func(p []byte) { received = append(received, p) }

	f1 := Frame{Control: Control{Prm: true, FCB: true, FCV: true, Func: FuncConfirmedUserData}, Source: 1, Destination: 4, Payload: []byte{1}}
	assert.NoError(t, sm.OnFrame(f1))
	assert.Len(t, received, 1)

	// duplicate retransmission with same FCB
	assert.NoError(t, sm.OnFrame(f1))
	assert.Len(t, received, 1, "duplicate must not be delivered to the data sink again")
	assert.Len(t, sink.sent, 2, "but the ACK is replayed")
}

func TestSecondaryRequestLinkStatus(t *testing.T) {
	sink := &fakeSink{}
	sm := New(Config{LocalAddr: 4, RemoteAddr: 1}, sink)
	err := sm.OnFrame(Frame{Control: Control{Prm: true, Func: FuncRequestLinkStatus}, Source: 1, Destination: 4})
	assert.NoError(t, err)
	assert.Equal(t, FuncLinkStatus, sink.last().Control.Func)
}

func TestBadAddressRejected(t *testing.T) {
	sink := &fakeSink{}
	sm := New(Config{LocalAddr: 4, RemoteAddr: 1}, sink)
	err := sm.OnFrame(Frame{Control: Control{Prm: true, Func: FuncRequestLinkStatus}, Source: 99, Destination: 4})
	assert.ErrorIs(t, err, ErrBadAddress)
}
