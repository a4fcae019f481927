package outstation

import (
	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/objects"
)

// dispatch routes one decoded request to its function-code handler,
// returning the response-only IIN bits (transient, e.g. parameter errors)
// plus the encoded object-header body. Persistent IIN bits (device
// restart, need-time, event overflow) are folded in by the caller.
func (r *Responder) dispatch(reqHeader app.RequestHeader, body []byte, sourceAddr uint16) (app.IIN, []byte) {
	switch reqHeader.Function {
	case app.FCRead:
		return r.handleRead(body)
	case app.FCWrite:
		return r.handleWrite(body)
	case app.FCSelect:
		return r.handleSelect(body, sourceAddr)
	case app.FCOperate:
		return r.handleOperate(body, sourceAddr)
	case app.FCDirectOperate, app.FCDirectOperateNoAck:
		return r.handleDirectOperate(body)
	case app.FCColdRestart:
		return r.handleRestart(false)
	case app.FCWarmRestart:
		return r.handleRestart(true)
	case app.FCEnableUnsolicited:
		return r.handleUnsolicitedToggle(body, true)
	case app.FCDisableUnsolicited:
		return r.handleUnsolicitedToggle(body, false)
	case app.FCDelayMeasure:
		return r.handleDelayMeasure()
	case app.FCAssignClass:
		return r.handleAssignClass(body)
	case app.FCRecordCurrentTime:
		return app.IIN{}, nil
	default:
		if reqHeader.Function.IsFileTransfer() || reqHeader.Function.IsAuthenticate() {
			r.log.WithField("fc", reqHeader.Function).Debug("function code recognized but not implemented")
		} else {
			r.log.WithField("fc", reqHeader.Function).Warn("unsupported function code")
		}
		return app.IIN{IIN2: app.IIN2NoFuncCodeSupport}, nil
	}
}

func (r *Responder) handleRead(body []byte) (app.IIN, []byte) {
	headers, err := app.DecodeObjectHeaders(body, false)
	if err != nil {
		return app.IIN{IIN2: app.IIN2ParameterError}, nil
	}
	var out []byte
	var classes []EventClass
	staticRequested := false
	for _, h := range headers {
		if h.Group == 60 {
			switch h.Variation {
			case 1:
				staticRequested = true
			case 2:
				classes = append(classes, Class1)
			case 3:
				classes = append(classes, Class2)
			case 4:
				classes = append(classes, Class3)
			}
			continue
		}
		shape, ok := objects.Lookup(objects.GroupVariation{Group: h.Group, Variation: h.Variation})
		if !ok {
			continue
		}
		indices := make([]uint32, len(h.Values))
		for i, v := range h.Values {
			indices[i] = v.Index
		}
		out = append(out, r.encodeStaticPoints(shape.Type, indices, h.Group, h.Variation)...)
	}
	if staticRequested {
		out = append(out, r.encodeAllStatic()...)
	}
	if len(classes) > 0 {
		events := r.db.Events.SelectForClasses(classes...)
		r.pendingEvents = append(r.pendingEvents, events...)
		out = append(out, encodeEvents(events)...)
	}
	return app.IIN{}, out
}

func (r *Responder) encodeStaticPoints(t objects.PointType, indices []uint32, group, variation uint8) []byte {
	var values []objects.Value
	if len(indices) == 0 {
		for _, p := range r.db.All(t) {
			values = append(values, p.toValue())
		}
	} else {
		for _, idx := range indices {
			if p, ok := r.db.Get(t, idx); ok {
				values = append(values, p.toValue())
			}
		}
	}
	if len(values) == 0 {
		return nil
	}
	b, err := objects.EncodeGroup(group, variation, values, true)
	if err != nil {
		return nil
	}
	return b
}

var staticPointTypes = []objects.PointType{
	objects.BinaryInput, objects.DoubleBitBinaryInput, objects.BinaryOutputStatus,
	objects.Counter, objects.FrozenCounter, objects.AnalogInput,
	objects.AnalogOutputStatus, objects.OctetString,
}

func (r *Responder) encodeAllStatic() []byte {
	var out []byte
	for _, t := range staticPointTypes {
		byVariation := map[objects.GroupVariation][]objects.Value{}
		for _, p := range r.db.All(t) {
			gv := p.StaticVariation
			if gv == (objects.GroupVariation{}) {
				gv = objects.DefaultStaticVariation(t)
			}
			byVariation[gv] = append(byVariation[gv], p.toValue())
		}
		for gv, values := range byVariation {
			if gv == (objects.GroupVariation{}) {
				continue
			}
			if b, err := objects.EncodeGroup(gv.Group, gv.Variation, values, true); err == nil {
				out = append(out, b...)
			}
		}
	}
	return out
}

func (r *Responder) handleWrite(body []byte) (app.IIN, []byte) {
	headers, err := app.DecodeObjectHeaders(body, true)
	if err != nil {
		return app.IIN{IIN2: app.IIN2ParameterError}, nil
	}
	for _, h := range headers {
		if h.Group == 80 && h.Variation == 1 {
			for _, v := range h.Values {
				if v.Index == 7 && !v.Bool {
					r.db.SetDeviceRestart(false)
				}
			}
		}
	}
	return app.IIN{}, nil
}

func (r *Responder) handleSelect(body []byte, sourceAddr uint16) (app.IIN, []byte) {
	headers, err := app.DecodeObjectHeaders(body, true)
	if err != nil {
		return app.IIN{IIN2: app.IIN2ParameterError}, nil
	}
	var out []byte
	for _, h := range headers {
		for _, v := range h.Values {
			status := r.selectOne(h.Group, v)
			if status == objects.StatusSuccess {
				if raw, err := objects.EncodeGroup(h.Group, h.Variation, []objects.Value{v}, true); err == nil {
					r.sbo.Record(h.Group, v.Index, sourceAddr, raw)
				}
			}
			out = append(out, echoStatus(h.Group, h.Variation, v, status)...)
		}
	}
	return app.IIN{}, out
}

func (r *Responder) selectOne(group uint8, v objects.Value) objects.CommandStatus {
	switch group {
	case 12:
		if v.CROB == nil {
			return objects.StatusFormatError
		}
		return r.controls.SelectCROB(v.Index, *v.CROB, r.db)
	case 41:
		if v.AnalogCmd == nil {
			return objects.StatusFormatError
		}
		return r.controls.SelectAnalogOutput(v.Index, *v.AnalogCmd, r.db)
	default:
		return objects.StatusNotSupported
	}
}

func (r *Responder) handleOperate(body []byte, sourceAddr uint16) (app.IIN, []byte) {
	headers, err := app.DecodeObjectHeaders(body, true)
	if err != nil {
		return app.IIN{IIN2: app.IIN2ParameterError}, nil
	}
	var out []byte
	for _, h := range headers {
		for _, v := range h.Values {
			raw, _ := objects.EncodeGroup(h.Group, h.Variation, []objects.Value{v}, true)
			outcome := r.sbo.Match(h.Group, v.Index, sourceAddr, raw)
			var status objects.CommandStatus
			switch outcome {
			case SelectMatched:
				status = r.operateOne(h.Group, v, OpOperate)
			case SelectTimedOut:
				status = objects.StatusTimeout
			default:
				status = objects.StatusNoSelect
			}
			out = append(out, echoStatus(h.Group, h.Variation, v, status)...)
		}
	}
	return app.IIN{}, out
}

func (r *Responder) handleDirectOperate(body []byte) (app.IIN, []byte) {
	headers, err := app.DecodeObjectHeaders(body, true)
	if err != nil {
		return app.IIN{IIN2: app.IIN2ParameterError}, nil
	}
	var out []byte
	for _, h := range headers {
		for _, v := range h.Values {
			status := r.operateOne(h.Group, v, OpDirectOperate)
			out = append(out, echoStatus(h.Group, h.Variation, v, status)...)
		}
	}
	return app.IIN{}, out
}

func (r *Responder) operateOne(group uint8, v objects.Value, op OpType) objects.CommandStatus {
	switch group {
	case 12:
		if v.CROB == nil {
			return objects.StatusFormatError
		}
		return r.controls.OperateCROB(v.Index, *v.CROB, op, r.db)
	case 41:
		if v.AnalogCmd == nil {
			return objects.StatusFormatError
		}
		return r.controls.OperateAnalogOutput(v.Index, *v.AnalogCmd, op, r.db)
	default:
		return objects.StatusNotSupported
	}
}

func echoStatus(group, variation uint8, v objects.Value, status objects.CommandStatus) []byte {
	switch group {
	case 12:
		c := objects.CROB{}
		if v.CROB != nil {
			c = *v.CROB
		}
		c.Status = status
		v.CROB = &c
	case 41:
		c := objects.AnalogOutputCommand{}
		if v.AnalogCmd != nil {
			c = *v.AnalogCmd
		}
		c.Status = status
		v.AnalogCmd = &c
	}
	b, err := objects.EncodeGroup(group, variation, []objects.Value{v}, true)
	if err != nil {
		return nil
	}
	return b
}

func (r *Responder) handleRestart(warm bool) (app.IIN, []byte) {
	var delay uint16
	if warm {
		delay = r.appl.WarmRestartDelayMillis()
	} else {
		delay = r.appl.ColdRestartDelayMillis()
	}
	b, _ := objects.EncodeGroup(52, 2, []objects.Value{{Index: 0, Uint: uint64(delay)}}, true)
	return app.IIN{}, b
}

func (r *Responder) handleUnsolicitedToggle(body []byte, enable bool) (app.IIN, []byte) {
	headers, err := app.DecodeObjectHeaders(body, false)
	if err != nil {
		return app.IIN{IIN2: app.IIN2ParameterError}, nil
	}
	for _, h := range headers {
		if h.Group != 60 {
			continue
		}
		switch h.Variation {
		case 2:
			r.enabledClasses[Class1] = enable
		case 3:
			r.enabledClasses[Class2] = enable
		case 4:
			r.enabledClasses[Class3] = enable
		}
	}
	return app.IIN{}, nil
}

func (r *Responder) handleDelayMeasure() (app.IIN, []byte) {
	b, _ := objects.EncodeGroup(52, 2, []objects.Value{{Index: 0, Uint: 0}}, true)
	return app.IIN{}, b
}

func (r *Responder) handleAssignClass(body []byte) (app.IIN, []byte) {
	headers, err := app.DecodeObjectHeaders(body, false)
	if err != nil {
		return app.IIN{IIN2: app.IIN2ParameterError}, nil
	}
	current := ClassNone
	for _, h := range headers {
		if h.Group == 60 {
			switch h.Variation {
			case 2:
				current = Class1
			case 3:
				current = Class2
			case 4:
				current = Class3
			default:
				current = ClassNone
			}
			continue
		}
		shape, ok := objects.Lookup(objects.GroupVariation{Group: h.Group, Variation: h.Variation})
		if !ok {
			continue
		}
		for _, v := range h.Values {
			if p, ok := r.db.Get(shape.Type, v.Index); ok {
				p.EventClass = current
			}
		}
	}
	return app.IIN{}, nil
}
