package config

import (
	"testing"

	"github.com/dnp3go/dnp3/pkg/master"
	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/dnp3go/dnp3/pkg/outstation"
	"github.com/stretchr/testify/assert"
)

const sampleProfile = `
[channel]
Endpoint = tcp
Address = 10.0.0.5:20000
LocalAddress = 1024
RemoteAddress = 1
IsMaster = true
RxFragmentSize = 1024
TxFragmentSize = 1024
RetryMinDelayMs = 500
RetryMaxDelayMs = 5000
DecodeLevel = basic

[association]
StartupIntegrityClasses = 1,2,3,4
UnsolicitedClasses = 2,3,4
AutoTimeSync = nonlan
KeepAliveTimeoutMs = 15000
AutoIntegrityOnOverflow = true

[events]
Binary = 500
Analog = 200

[point.AnalogInput.0]
EventClass = 1
Deadband = 0.5
StaticVariation = 30v1
EventVariation = 32v3

[point.BinaryInput.3]
EventClass = 2
`

func TestParseProfileChannelSection(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	assert.NoError(t, err)
	assert.Equal(t, EndpointTCP, p.Channel.Endpoint)
	assert.Equal(t, "10.0.0.5:20000", p.Channel.TCP.Address)
	assert.Equal(t, uint16(1024), p.Channel.Link.LocalAddr)
	assert.Equal(t, uint16(1), p.Channel.Link.RemoteAddr)
	assert.True(t, p.Channel.Link.IsMaster)
	assert.Equal(t, BasicDecodeLevel(), p.Channel.Decode)
}

func TestParseProfileAssociationSection(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	assert.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3, 4}, p.Association.StartupIntegrityClasses)
	assert.Equal(t, []uint8{2, 3, 4}, p.Association.UnsolicitedClasses)
	assert.Equal(t, master.TimeSyncNonLAN, p.Association.AutoTimeSync)
	assert.True(t, p.Association.AutoIntegrityOnOverflow)
}

func TestParseProfilePointSections(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	assert.NoError(t, err)
	assert.Len(t, p.Points, 2)

	var analog, binary *PointConfig
	for i := range p.Points {
		switch p.Points[i].Type {
		case objects.AnalogInput:
			analog = &p.Points[i]
		case objects.BinaryInput:
			binary = &p.Points[i]
		}
	}
	assert.NotNil(t, analog)
	assert.Equal(t, outstation.Class1, analog.EventClass)
	assert.Equal(t, 0.5, analog.Deadband)
	assert.Equal(t, objects.GroupVariation{Group: 30, Variation: 1}, analog.StaticVariation)
	assert.Equal(t, objects.GroupVariation{Group: 32, Variation: 3}, analog.EventVariation)

	assert.NotNil(t, binary)
	assert.Equal(t, outstation.Class2, binary.EventClass)
}

func TestParseProfileAppliesEventCapacityOverrides(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	assert.NoError(t, err)
	assert.Equal(t, 500, p.EventCapacities.Binary)
	assert.Equal(t, 200, p.EventCapacities.Analog)
	assert.Equal(t, outstation.DefaultEventCapacities().Counter, p.EventCapacities.Counter)
}
