package outstation

import (
	"testing"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/stretchr/testify/assert"
)

type fakeControls struct {
	NullControlHandler
	operatedIndex uint32
	operatedOn    bool
}

func (f *fakeControls) SelectCROB(index uint32, c objects.CROB, db *Database) objects.CommandStatus {
	if c.Code != objects.OpLatchOn && c.Code != objects.OpLatchOff {
		return objects.StatusNotSupported
	}
	return objects.StatusSuccess
}

func (f *fakeControls) OperateCROB(index uint32, c objects.CROB, op OpType, db *Database) objects.CommandStatus {
	f.operatedIndex = index
	f.operatedOn = c.Code == objects.OpLatchOn
	db.UpdatePoint(objects.BinaryOutputStatus, index, func(p *Point) {
		p.Bool = f.operatedOn
		p.Flags = objects.DefaultOnlineFlags
	})
	return objects.StatusSuccess
}

type fakeApplication struct{}

func (fakeApplication) Now() objects.Timestamp               { return objects.NewTimestamp(time.Unix(0, 0)) }
func (fakeApplication) ColdRestartDelayMillis() uint16        { return 2000 }
func (fakeApplication) WarmRestartDelayMillis() uint16        { return 500 }

func newTestResponder() (*Responder, *Database, *fakeControls) {
	db := NewDatabase(EventCapacities{Binary: 3, BinaryOutputStatus: 10})
	db.AddPoint(Point{Type: objects.BinaryOutputStatus, Index: 3, StaticVariation: objects.GroupVariation{Group: 10, Variation: 2}})
	controls := &fakeControls{}
	r := NewResponder(DefaultConfig(), db, controls, fakeApplication{})
	return r, db, controls
}

func crobRequest(fc app.FunctionCode, seq uint8, index uint32, code objects.ControlCode) []byte {
	body, _ := objects.EncodeGroup(12, 1, []objects.Value{{Index: index, CROB: &objects.CROB{Code: code, Count: 1, OnTimeMs: 1000, OffTimeMs: 1000}}}, true)
	return app.EncodeRequest(app.RequestHeader{Control: app.Control{FIR: true, FIN: true, Seq: seq}, Function: fc}, body)
}

func TestSelectBeforeOperateHappyPath(t *testing.T) {
	r, db, controls := newTestResponder()

	selWire := crobRequest(app.FCSelect, 1, 3, objects.OpLatchOn)
	selHeader, selBody, err := app.DecodeRequest(selWire)
	assert.NoError(t, err)
	result := r.HandleRequest(selHeader, selBody, 10, 1)
	assert.NotNil(t, result.Response)

	opWire := crobRequest(app.FCOperate, 2, 3, objects.OpLatchOn)
	opHeader, opBody, err := app.DecodeRequest(opWire)
	assert.NoError(t, err)
	result = r.HandleRequest(opHeader, opBody, 10, 1)
	assert.NotNil(t, result.Response)
	assert.EqualValues(t, 3, controls.operatedIndex)
	assert.True(t, controls.operatedOn)

	p, ok := db.Get(objects.BinaryOutputStatus, 3)
	assert.True(t, ok)
	assert.True(t, p.Bool)
}

func TestOperateWithMismatchedBytesIsNoSelect(t *testing.T) {
	r, _, controls := newTestResponder()

	selWire := crobRequest(app.FCSelect, 1, 3, objects.OpLatchOn)
	selHeader, selBody, _ := app.DecodeRequest(selWire)
	r.HandleRequest(selHeader, selBody, 10, 1)

	opWire := crobRequest(app.FCOperate, 2, 3, objects.OpLatchOff) // different control code
	opHeader, opBody, _ := app.DecodeRequest(opWire)
	r.HandleRequest(opHeader, opBody, 10, 1)

	assert.NotEqualValues(t, 3, controls.operatedIndex)
}

func TestWriteClearsRestartIIN(t *testing.T) {
	r, db, _ := newTestResponder()
	db.SetDeviceRestart(true)

	body, _ := objects.EncodeGroup(80, 1, []objects.Value{{Index: 7, Bool: false}}, true)
	wire := app.EncodeRequest(app.RequestHeader{Control: app.Control{FIR: true, FIN: true, Seq: 1}, Function: app.FCWrite}, body)
	h, b, _ := app.DecodeRequest(wire)
	result := r.HandleRequest(h, b, 10, 1)
	assert.NotNil(t, result.Response)
	assert.False(t, db.IIN().DeviceRestart)
}

func TestBroadcastSuppressesResponse(t *testing.T) {
	r, _, _ := newTestResponder()
	body, _ := objects.EncodeGroup(80, 1, []objects.Value{{Index: 7, Bool: false}}, true)
	h := app.RequestHeader{Control: app.Control{FIR: true, FIN: true, Seq: 1}, Function: app.FCWrite}
	result := r.HandleRequest(h, body, 10, 0xFFFF)
	assert.Nil(t, result.Response)
	assert.True(t, result.IsBroadcast)
	assert.Equal(t, BroadcastProcessedByUser, result.Broadcast)
}
