package master

import (
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
)

// OperateMode selects how a CommandTask issues its control set.
type OperateMode int

const (
	DirectOperate OperateMode = iota
	DirectOperateNoAck
	SelectBeforeOperate
)

// ControlPoint is one command object to send: either a CROB (group 12)
// or an analog output command (group 41), keyed by its point index.
type ControlPoint struct {
	Index     uint32
	Group     uint8 // 12 or 41
	Variation uint8
	CROB      *objects.CROB
	AnalogCmd *objects.AnalogOutputCommand
}

func (c ControlPoint) toValue() objects.Value {
	return objects.Value{Index: c.Index, CROB: c.CROB, AnalogCmd: c.AnalogCmd}
}

// CommandStatusResult is one control point's echoed status.
type CommandStatusResult struct {
	Index  uint32
	Group  uint8
	Status objects.CommandStatus
}

// CommandResult is the outcome of a CommandTask.
type CommandResult struct {
	Ok             bool
	HeaderMismatch bool
	PerObject      []CommandStatusResult
	Err            error
}

// CommandTask drives Select-before-Operate (two request/response rounds)
// or Direct-Operate (one round) for an ordered set of controls.
type CommandTask struct {
	Points   []ControlPoint
	Mode     OperateMode
	Done     func(CommandResult)
	timeout  time.Duration

	phase     int // 0 = select or direct-operate, 1 = operate (SBO only)
	selectEcho []CommandStatusResult
}

func NewCommandTask(points []ControlPoint, mode OperateMode, timeout time.Duration, done func(CommandResult)) *CommandTask {
	return &CommandTask{Points: points, Mode: mode, timeout: timeout, Done: done}
}

func (t *CommandTask) Priority() Priority     { return PriorityUser }
func (t *CommandTask) Timeout() time.Duration { return t.timeout }

func (t *CommandTask) fragmentFunction() app.FunctionCode {
	switch {
	case t.Mode == SelectBeforeOperate && t.phase == 0:
		return app.FCSelect
	case t.Mode == SelectBeforeOperate && t.phase == 1:
		return app.FCOperate
	case t.Mode == DirectOperateNoAck:
		return app.FCDirectOperateNoAck
	default:
		return app.FCDirectOperate
	}
}

func (t *CommandTask) BuildRequest(seq uint8) []byte {
	var body []byte
	for _, p := range t.Points {
		b, err := objects.EncodeGroup(p.Group, p.Variation, []objects.Value{p.toValue()}, true)
		if err != nil {
			continue
		}
		body = append(body, b...)
	}
	return app.EncodeRequest(app.RequestHeader{
		Control:  app.Control{FIR: true, FIN: true, Seq: seq},
		Function: t.fragmentFunction(),
	}, body)
}

func (t *CommandTask) OnResponse(header app.ResponseHeader, objectBody []byte) (bool, error) {
	if header.IIN.IsError() {
		t.finish(CommandResult{Err: &TaskError{Kind: "IINError", IIN: header.IIN}})
		return true, nil
	}
	headers, err := objects.DecodeObjects(objectBody, true)
	if err != nil {
		t.finish(CommandResult{Err: &TaskError{Kind: "BadResponse"}})
		return true, nil
	}
	echoes := statusesFrom(headers)

	if t.Mode != SelectBeforeOperate || t.phase == 1 {
		t.finish(CommandResult{Ok: allSuccess(echoes), PerObject: echoes})
		return true, nil
	}

	// phase 0 of SBO: every object must echo SUCCESS before OPERATE fires.
	t.selectEcho = echoes
	if !allSuccess(echoes) {
		t.finish(CommandResult{Ok: false, PerObject: echoes})
		return true, nil
	}
	t.phase = 1
	return false, nil // caller re-drives BuildRequest for the OPERATE round
}

func (t *CommandTask) OnError(err error) {
	t.finish(CommandResult{Err: err})
}

func (t *CommandTask) finish(r CommandResult) {
	if t.Done != nil {
		t.Done(r)
	}
}

func statusesFrom(headers []objects.ObjectHeader) []CommandStatusResult {
	var out []CommandStatusResult
	for _, h := range headers {
		for _, v := range h.Values {
			var status objects.CommandStatus
			switch h.Group {
			case 12:
				if v.CROB != nil {
					status = v.CROB.Status
				}
			case 41:
				if v.AnalogCmd != nil {
					status = v.AnalogCmd.Status
				}
			}
			out = append(out, CommandStatusResult{Index: v.Index, Group: h.Group, Status: status})
		}
	}
	return out
}

func allSuccess(results []CommandStatusResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Status != objects.StatusSuccess {
			return false
		}
	}
	return true
}
