package channel

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/dnp3go/dnp3/pkg/link"
)

// connSink serializes link.Frame values directly onto a byte stream,
// satisfying link.FrameSink. Writes are mutex-guarded since the link state
// machine's primary and secondary roles can each trigger a send from
// different goroutines (the read loop reacting to an incoming frame, and
// the task/poll loop initiating a new one).
type connSink struct {
	mu    sync.Mutex
	conn  io.Writer
	stats *statsCounters
}

func newConnSink(conn io.Writer, stats *statsCounters) *connSink {
	return &connSink{conn: conn, stats: stats}
}

func (s *connSink) SendFrame(f link.Frame) error {
	b, err := link.Encode(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.Write(b)
	if err == nil {
		atomic.AddUint64(&s.stats.framesSent, 1)
		atomic.AddUint64(&s.stats.bytesSent, uint64(len(b)))
	}
	return err
}
