package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/dnp3go/dnp3/pkg/master"
	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/dnp3go/dnp3/pkg/outstation"
)

// PointConfig describes one static database entry plus its event behavior,
// as loaded from a `[point.<Type>.<Index>]` profile section.
type PointConfig struct {
	Type            objects.PointType
	Index           uint32
	EventClass      outstation.EventClass
	Deadband        float64
	StaticVariation objects.GroupVariation
	EventVariation  objects.GroupVariation
}

// Profile is the full device profile parsed from an INI file: channel wire
// parameters, association behavior, event buffer sizing, and the static
// point list, keyed by (PointType, index) point sections.
type Profile struct {
	Channel         ChannelConfig
	Association     master.AssociationConfig
	EventCapacities outstation.EventCapacities
	Points          []PointConfig
}

var pointSectionRe = regexp.MustCompile(`(?i)^point\.([a-z]+)\.(\d+)$`)

// Parse loads a device profile. file may be a path, []byte, or io.Reader,
// anything gopkg.in/ini.v1 accepts.
func Parse(file any) (*Profile, error) {
	doc, err := ini.Load(file)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Channel:         DefaultChannelConfig(),
		Association:     master.DefaultAssociationConfig(),
		EventCapacities: outstation.DefaultEventCapacities(),
	}

	if sec, err := doc.GetSection("channel"); err == nil {
		parseChannelSection(sec, &profile.Channel)
	}
	if sec, err := doc.GetSection("association"); err == nil {
		parseAssociationSection(sec, &profile.Association)
	}
	if sec, err := doc.GetSection("events"); err == nil {
		parseEventsSection(sec, &profile.EventCapacities)
	}

	for _, section := range doc.Sections() {
		m := pointSectionRe.FindStringSubmatch(section.Name())
		if m == nil {
			continue
		}
		pt, ok := pointTypeFromString(m[1])
		if !ok {
			return nil, fmt.Errorf("config: unknown point type %q in section %q", m[1], section.Name())
		}
		index, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: bad point index in section %q: %w", section.Name(), err)
		}
		pc := PointConfig{Type: pt, Index: uint32(index)}
		pc.EventClass = outstation.EventClass(section.Key("EventClass").MustUint64(0))
		pc.Deadband = section.Key("Deadband").MustFloat64(0)
		if g, v, ok := parseGroupVariation(section.Key("StaticVariation").String()); ok {
			pc.StaticVariation = objects.GroupVariation{Group: g, Variation: v}
		}
		if g, v, ok := parseGroupVariation(section.Key("EventVariation").String()); ok {
			pc.EventVariation = objects.GroupVariation{Group: g, Variation: v}
		}
		profile.Points = append(profile.Points, pc)
	}

	return profile, nil
}

func parseChannelSection(sec *ini.Section, cfg *ChannelConfig) {
	if v := sec.Key("Endpoint").String(); v != "" {
		switch strings.ToLower(v) {
		case "tcp":
			cfg.Endpoint = EndpointTCP
		case "tls":
			cfg.Endpoint = EndpointTLS
		case "serial":
			cfg.Endpoint = EndpointSerial
		case "udp":
			cfg.Endpoint = EndpointUDP
		}
	}
	cfg.TCP.Address = sec.Key("Address").MustString(cfg.TCP.Address)
	cfg.TLS.Address = sec.Key("Address").MustString(cfg.TLS.Address)
	cfg.UDP.Address = sec.Key("Address").MustString(cfg.UDP.Address)
	cfg.Serial.Port = sec.Key("SerialPort").MustString(cfg.Serial.Port)
	cfg.Serial.BaudRate = sec.Key("BaudRate").MustInt(cfg.Serial.BaudRate)
	cfg.Link.LocalAddr = uint16(sec.Key("LocalAddress").MustUint(uint(cfg.Link.LocalAddr)))
	cfg.Link.RemoteAddr = uint16(sec.Key("RemoteAddress").MustUint(uint(cfg.Link.RemoteAddr)))
	cfg.Link.IsMaster = sec.Key("IsMaster").MustBool(cfg.Link.IsMaster)
	cfg.RxFragmentSize = sec.Key("RxFragmentSize").MustInt(cfg.RxFragmentSize)
	cfg.TxFragmentSize = sec.Key("TxFragmentSize").MustInt(cfg.TxFragmentSize)
	cfg.Retry.MinDelay = time.Duration(sec.Key("RetryMinDelayMs").MustInt(int(cfg.Retry.MinDelay/time.Millisecond))) * time.Millisecond
	cfg.Retry.MaxDelay = time.Duration(sec.Key("RetryMaxDelayMs").MustInt(int(cfg.Retry.MaxDelay/time.Millisecond))) * time.Millisecond
	switch strings.ToLower(sec.Key("DecodeLevel").String()) {
	case "basic":
		cfg.Decode = BasicDecodeLevel()
	case "all":
		cfg.Decode = AllDecodeLevel()
	}
}

func parseAssociationSection(sec *ini.Section, cfg *master.AssociationConfig) {
	if v := sec.Key("StartupIntegrityClasses").String(); v != "" {
		cfg.StartupIntegrityClasses = parseUint8List(v)
	}
	if v := sec.Key("UnsolicitedClasses").String(); v != "" {
		cfg.UnsolicitedClasses = parseUint8List(v)
	}
	switch strings.ToLower(sec.Key("AutoTimeSync").String()) {
	case "off":
		cfg.AutoTimeSync = master.TimeSyncOff
	case "lan":
		cfg.AutoTimeSync = master.TimeSyncLAN
	case "nonlan":
		cfg.AutoTimeSync = master.TimeSyncNonLAN
	}
	cfg.KeepAliveTimeout = time.Duration(sec.Key("KeepAliveTimeoutMs").MustInt(int(cfg.KeepAliveTimeout/time.Millisecond))) * time.Millisecond
	cfg.AutoIntegrityOnOverflow = sec.Key("AutoIntegrityOnOverflow").MustBool(cfg.AutoIntegrityOnOverflow)
	cfg.EventScanOnEvents = sec.Key("EventScanOnEvents").MustBool(cfg.EventScanOnEvents)
	cfg.TaskTimeout = time.Duration(sec.Key("TaskTimeoutMs").MustInt(int(cfg.TaskTimeout/time.Millisecond))) * time.Millisecond
}

func parseEventsSection(sec *ini.Section, caps *outstation.EventCapacities) {
	caps.Binary = sec.Key("Binary").MustInt(caps.Binary)
	caps.DoubleBitBinary = sec.Key("DoubleBitBinary").MustInt(caps.DoubleBitBinary)
	caps.BinaryOutputStatus = sec.Key("BinaryOutputStatus").MustInt(caps.BinaryOutputStatus)
	caps.Counter = sec.Key("Counter").MustInt(caps.Counter)
	caps.FrozenCounter = sec.Key("FrozenCounter").MustInt(caps.FrozenCounter)
	caps.Analog = sec.Key("Analog").MustInt(caps.Analog)
	caps.AnalogOutputStatus = sec.Key("AnalogOutputStatus").MustInt(caps.AnalogOutputStatus)
	caps.OctetString = sec.Key("OctetString").MustInt(caps.OctetString)
}

func parseUint8List(s string) []uint8 {
	parts := strings.Split(s, ",")
	out := make([]uint8, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			continue
		}
		out = append(out, uint8(n))
	}
	return out
}

func parseGroupVariation(s string) (group, variation uint8, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), "v", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	g, err1 := strconv.ParseUint(parts[0], 10, 8)
	v, err2 := strconv.ParseUint(parts[1], 10, 8)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint8(g), uint8(v), true
}

func pointTypeFromString(s string) (objects.PointType, bool) {
	for t := objects.BinaryInput; t <= objects.DeviceAttribute; t++ {
		if strings.EqualFold(t.String(), s) {
			return t, true
		}
	}
	return 0, false
}
