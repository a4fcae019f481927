package master

import (
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
)

// TimeSyncMode selects the time-synchronization strategy.
type TimeSyncMode int

const (
	TimeSyncOff TimeSyncMode = iota
	TimeSyncLAN
	TimeSyncNonLAN
)

// ComputeNonLANSyncTime applies the non-LAN formula: the outstation's
// synchronized time is t1 plus half of (round-trip minus measured
// outstation processing delay).
func ComputeNonLANSyncTime(t1, t2 time.Time, outstationDelay time.Duration) time.Time {
	rtt := t2.Sub(t1)
	offset := (rtt - outstationDelay) / 2
	return t1.Add(offset)
}

// NonLANTimeSyncTask drives DELAY_MEASURE then WRITE(g50v1), the
// non-LAN time-sync mode.
type NonLANTimeSyncTask struct {
	Clock   func() time.Time
	Done    func(err error)
	timeout time.Duration

	phase       int
	t1          time.Time
	pendingTime time.Time
}

func NewNonLANTimeSyncTask(clock func() time.Time, timeout time.Duration, done func(error)) *NonLANTimeSyncTask {
	if clock == nil {
		clock = time.Now
	}
	return &NonLANTimeSyncTask{Clock: clock, timeout: timeout, Done: done}
}

func (t *NonLANTimeSyncTask) Priority() Priority     { return PrioritySystem }
func (t *NonLANTimeSyncTask) Timeout() time.Duration { return t.timeout }

func (t *NonLANTimeSyncTask) BuildRequest(seq uint8) []byte {
	ctrl := app.Control{FIR: true, FIN: true, Seq: seq}
	if t.phase == 0 {
		t.t1 = t.Clock()
		return app.EncodeRequest(app.RequestHeader{Control: ctrl, Function: app.FCDelayMeasure}, nil)
	}
	// t.pendingTime is set by OnResponse before requesting this round.
	body, _ := objects.EncodeGroup(50, 1, []objects.Value{{Index: 0, Time: objects.NewTimestamp(t.pendingTime)}}, true)
	return app.EncodeRequest(app.RequestHeader{Control: ctrl, Function: app.FCWrite}, body)
}

func (t *NonLANTimeSyncTask) OnResponse(header app.ResponseHeader, objectBody []byte) (bool, error) {
	if t.phase == 0 {
		t2 := t.Clock()
		headers, err := objects.DecodeObjects(objectBody, true)
		if err != nil || len(headers) == 0 || len(headers[0].Values) == 0 {
			t.finish(&TaskError{Kind: "BadResponse"})
			return true, nil
		}
		delayMs := headers[0].Values[0].Uint
		t.pendingTime = ComputeNonLANSyncTime(t.t1, t2, time.Duration(delayMs)*time.Millisecond)
		t.phase = 1
		return false, nil
	}
	if header.IIN.NeedsTime() {
		t.finish(&TaskError{Kind: "Rejected"})
		return true, nil
	}
	t.finish(nil)
	return true, nil
}

func (t *NonLANTimeSyncTask) OnError(err error) { t.finish(err) }

func (t *NonLANTimeSyncTask) finish(err error) {
	if t.Done != nil {
		t.Done(err)
	}
}

// LANTimeSyncTask drives RECORD_CURRENT_TIME then WRITE(g50v3), the
// LAN time-sync mode.
type LANTimeSyncTask struct {
	Clock   func() time.Time
	Done    func(err error)
	timeout time.Duration
	phase   int
}

func NewLANTimeSyncTask(clock func() time.Time, timeout time.Duration, done func(error)) *LANTimeSyncTask {
	if clock == nil {
		clock = time.Now
	}
	return &LANTimeSyncTask{Clock: clock, timeout: timeout, Done: done}
}

func (t *LANTimeSyncTask) Priority() Priority     { return PrioritySystem }
func (t *LANTimeSyncTask) Timeout() time.Duration { return t.timeout }

func (t *LANTimeSyncTask) BuildRequest(seq uint8) []byte {
	ctrl := app.Control{FIR: true, FIN: true, Seq: seq}
	if t.phase == 0 {
		return app.EncodeRequest(app.RequestHeader{Control: ctrl, Function: app.FCRecordCurrentTime}, nil)
	}
	now := objects.NewTimestamp(t.Clock())
	body, _ := objects.EncodeGroup(50, 3, []objects.Value{{Index: 0, Time: now, Interval: 0}}, true)
	return app.EncodeRequest(app.RequestHeader{Control: ctrl, Function: app.FCWrite}, body)
}

func (t *LANTimeSyncTask) OnResponse(header app.ResponseHeader, objectBody []byte) (bool, error) {
	if t.phase == 0 {
		t.phase = 1
		return false, nil
	}
	if header.IIN.NeedsTime() {
		t.finish(&TaskError{Kind: "Rejected"})
		return true, nil
	}
	t.finish(nil)
	return true, nil
}

func (t *LANTimeSyncTask) OnError(err error) { t.finish(err) }

func (t *LANTimeSyncTask) finish(err error) {
	if t.Done != nil {
		t.Done(err)
	}
}
