package master

import (
	"testing"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/stretchr/testify/assert"
)

func respHeaderOK() app.ResponseHeader {
	return app.ResponseHeader{Control: app.Control{FIR: true, FIN: true}, IIN: app.IIN{}}
}

func encodeGroup52v2Millis(t *testing.T, ms uint32) ([]byte, error) {
	t.Helper()
	return objects.EncodeGroup(52, 2, []objects.Value{{Index: 0, Uint: uint64(ms)}}, true)
}

func TestComputeNonLANSyncTimeAppliesHalfRTTMinusDelayFormula(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(200 * time.Millisecond)
	delay := 40 * time.Millisecond

	got := ComputeNonLANSyncTime(t1, t2, delay)

	// t1 + ((200ms) - 40ms)/2 = t1 + 80ms
	assert.Equal(t, t1.Add(80*time.Millisecond), got)
}

func TestNonLANTimeSyncTaskDrivesDelayMeasureThenWrite(t *testing.T) {
	clockValues := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),        // t1, captured in phase 0 BuildRequest
		time.Date(2026, 1, 1, 0, 0, 0, 150_000_000, time.UTC), // t2, captured in phase 0 OnResponse
	}
	i := 0
	clock := func() time.Time {
		v := clockValues[i]
		if i < len(clockValues)-1 {
			i++
		}
		return v
	}

	var result error
	done := false
	task := NewNonLANTimeSyncTask(clock, time.Second, func(err error) {
		done = true
		result = err
	})

	req := task.BuildRequest(1)
	assert.NotEmpty(t, req)

	delayBody, err := encodeGroup52v2Millis(t, 30)
	assert.NoError(t, err)

	more, err := task.OnResponse(respHeaderOK(), delayBody)
	assert.NoError(t, err)
	assert.False(t, more, "phase 0 must request another round before completing")

	writeReq := task.BuildRequest(2)
	assert.NotEmpty(t, writeReq)

	finalDone, err := task.OnResponse(respHeaderOK(), nil)
	assert.NoError(t, err)
	assert.True(t, finalDone)
	assert.True(t, done)
	assert.NoError(t, result)
}
