package master

import (
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
)

// GenericTask issues one application fragment carrying an arbitrary
// function code and request body, and delivers the raw response header
// and object bytes to Done without attempting to decode them into typed
// values. It backs the library-surface operations that don't need a
// fully-modeled object response: send_and_expect_empty_response,
// write_dead_bands, and the file-transfer operations (read_file,
// read_directory, get_file_info) whose function codes the application
// parser recognizes but whose object payloads this stack does not model.
type GenericTask struct {
	Function    app.FunctionCode
	RequestBody []byte
	Done        func(header app.ResponseHeader, objectBody []byte, err error)
	timeout     time.Duration
	priority    Priority
}

func NewGenericTask(fc app.FunctionCode, body []byte, priority Priority, timeout time.Duration, done func(app.ResponseHeader, []byte, error)) *GenericTask {
	return &GenericTask{Function: fc, RequestBody: body, Done: done, timeout: timeout, priority: priority}
}

func (t *GenericTask) Priority() Priority     { return t.priority }
func (t *GenericTask) Timeout() time.Duration { return t.timeout }

func (t *GenericTask) BuildRequest(seq uint8) []byte {
	return app.EncodeRequest(app.RequestHeader{
		Control:  app.Control{FIR: true, FIN: true, Seq: seq},
		Function: t.Function,
	}, t.RequestBody)
}

func (t *GenericTask) OnResponse(header app.ResponseHeader, objectBody []byte) (bool, error) {
	var err error
	if header.IIN.IsError() {
		err = &TaskError{Kind: "IINError", IIN: header.IIN}
	}
	if t.Done != nil {
		t.Done(header, objectBody, err)
	}
	return true, nil
}

func (t *GenericTask) OnError(err error) {
	if t.Done != nil {
		t.Done(app.ResponseHeader{}, nil, err)
	}
}
