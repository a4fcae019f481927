package channel

import "sync/atomic"

// Stats is a read-only snapshot of one channel's byte-stream counters,
// exposed for operational visibility rather than protocol behavior.
type Stats struct {
	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
	CRCErrors      uint64
	Retries        uint64
}

// statsCounters holds the live atomic counters a connSink/frameReader pair
// updates; Snapshot copies them out into a Stats value.
type statsCounters struct {
	framesSent     uint64
	framesReceived uint64
	bytesSent      uint64
	bytesReceived  uint64
	crcErrors      uint64
	retries        uint64
}

func (s *statsCounters) Snapshot() Stats {
	return Stats{
		FramesSent:     atomic.LoadUint64(&s.framesSent),
		FramesReceived: atomic.LoadUint64(&s.framesReceived),
		BytesSent:      atomic.LoadUint64(&s.bytesSent),
		BytesReceived:  atomic.LoadUint64(&s.bytesReceived),
		CRCErrors:      atomic.LoadUint64(&s.crcErrors),
		Retries:        atomic.LoadUint64(&s.retries),
	}
}
