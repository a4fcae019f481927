package master

import (
	"errors"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
)

// ReadType classifies why a read fragment was sent, delivered to the
// user's ReadHandler alongside each decoded object header.
type ReadType int

const (
	ReadStartupIntegrity ReadType = iota
	ReadPeriodicPoll
	ReadUnsolicited
	ReadSinglePoll
)

// ReadHandler receives decoded object headers as fragments arrive.
type ReadHandler interface {
	BeginFragment(rt ReadType, header app.ResponseHeader)
	HandleObjectHeader(h objects.ObjectHeader)
	EndFragment(rt ReadType, header app.ResponseHeader)
}

// ReadTask issues a READ request (request body pre-built by the caller,
// e.g. class 0/1/2/3 integrity, or a single point range) and feeds every
// decoded object header from every response fragment to handler.
type ReadTask struct {
	RequestBody []byte
	Kind        ReadType
	Handler     ReadHandler
	timeout     time.Duration
	priority    Priority

	err error
}

func NewReadTask(requestBody []byte, kind ReadType, handler ReadHandler, timeout time.Duration) *ReadTask {
	priority := PriorityUser
	switch kind {
	case ReadStartupIntegrity:
		priority = PrioritySystem
	case ReadPeriodicPoll:
		priority = PriorityPoll
	}
	return &ReadTask{RequestBody: requestBody, Kind: kind, Handler: handler, timeout: timeout, priority: priority}
}

func (t *ReadTask) Priority() Priority   { return t.priority }
func (t *ReadTask) Timeout() time.Duration { return t.timeout }

func (t *ReadTask) BuildRequest(seq uint8) []byte {
	return app.EncodeRequest(app.RequestHeader{
		Control:  app.Control{FIR: true, FIN: true, Seq: seq},
		Function: app.FCRead,
	}, t.RequestBody)
}

func (t *ReadTask) OnResponse(header app.ResponseHeader, objectBody []byte) (bool, error) {
	if header.IIN.IsError() {
		t.err = &TaskError{Kind: "IINError", IIN: header.IIN}
		return true, t.err
	}
	headers, err := objects.DecodeObjects(objectBody, true)
	if err != nil {
		t.err = &TaskError{Kind: "BadResponse"}
		return true, t.err
	}
	t.Handler.BeginFragment(t.Kind, header)
	for _, h := range headers {
		t.Handler.HandleObjectHeader(h)
	}
	t.Handler.EndFragment(t.Kind, header)
	return header.Control.FIN, nil
}

func (t *ReadTask) OnError(err error) { t.err = err }

func (t *ReadTask) Err() error { return t.err }

var errNoConnection = errors.New("master: no connection")
