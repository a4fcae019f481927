package master

import (
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
)

// RestartTask issues COLD_RESTART or WARM_RESTART and parses the g52
// delay from the response.
type RestartTask struct {
	Warm    bool
	Done    func(delay time.Duration, err error)
	timeout time.Duration
}

func NewRestartTask(warm bool, timeout time.Duration, done func(time.Duration, error)) *RestartTask {
	return &RestartTask{Warm: warm, timeout: timeout, Done: done}
}

func (t *RestartTask) Priority() Priority     { return PrioritySystem }
func (t *RestartTask) Timeout() time.Duration { return t.timeout }

func (t *RestartTask) BuildRequest(seq uint8) []byte {
	fc := app.FCColdRestart
	if t.Warm {
		fc = app.FCWarmRestart
	}
	return app.EncodeRequest(app.RequestHeader{Control: app.Control{FIR: true, FIN: true, Seq: seq}, Function: fc}, nil)
}

func (t *RestartTask) OnResponse(header app.ResponseHeader, objectBody []byte) (bool, error) {
	headers, err := objects.DecodeObjects(objectBody, true)
	if err != nil || len(headers) == 0 || len(headers[0].Values) == 0 {
		t.finish(0, &TaskError{Kind: "BadResponse"})
		return true, nil
	}
	delayMs := headers[0].Values[0].Uint
	t.finish(time.Duration(delayMs)*time.Millisecond, nil)
	return true, nil
}

func (t *RestartTask) OnError(err error) { t.finish(0, err) }

func (t *RestartTask) finish(d time.Duration, err error) {
	if t.Done != nil {
		t.Done(d, err)
	}
}

// LinkStatusTask issues REQUEST_LINK_STATUS at the link layer only; the
// association glue intercepts this task kind before it reaches the
// application layer's sequencer and issues REQUEST_LINK_STATUS at the
// link layer only. It is represented here so the task queue can schedule
// it with KeepAlive priority alongside application tasks.
type LinkStatusTask struct {
	Done    func(ok bool)
	timeout time.Duration
}

func NewLinkStatusTask(timeout time.Duration, done func(bool)) *LinkStatusTask {
	return &LinkStatusTask{timeout: timeout, Done: done}
}

func (t *LinkStatusTask) Priority() Priority     { return PriorityKeepAlive }
func (t *LinkStatusTask) Timeout() time.Duration { return t.timeout }

// BuildRequest returns nil: the driver recognizes *LinkStatusTask via a
// type switch and issues a link-layer REQUEST_LINK_STATUS directly
// instead of treating this as an application fragment.
func (t *LinkStatusTask) BuildRequest(uint8) []byte { return nil }

func (t *LinkStatusTask) OnResponse(app.ResponseHeader, []byte) (bool, error) { return true, nil }

func (t *LinkStatusTask) OnError(err error) {
	if t.Done != nil {
		t.Done(false)
	}
}
