// Package channel glues the link, transport, application, master, and
// outstation layers onto a byte stream: a channel owns its full stack of
// objects (link, transport, application, task queue). Runs as a
// streaming byte connection with incremental frame resynchronization.
package channel

import (
	"io"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/link"
)

// frameReader incrementally decodes link frames out of a byte stream,
// resynchronizing on any decode error other than ErrNeedMore: it drops the
// bytes the codec reports as consumed for the bad frame (one byte when it
// reports none) and retries.
type frameReader struct {
	conn  io.Reader
	buf   []byte
	log   *log.Entry
	stats *statsCounters
}

func newFrameReader(conn io.Reader, stats *statsCounters) *frameReader {
	return &frameReader{conn: conn, log: log.WithField("component", "channel"), stats: stats}
}

// next blocks until one complete, CRC-valid frame is available, reading
// more bytes from the underlying stream as needed. It returns io.EOF (or
// the underlying read error) when the stream closes.
func (r *frameReader) next() (link.Frame, error) {
	var codec link.Codec
	chunk := make([]byte, 4096)
	for {
		for len(r.buf) > 0 {
			f, consumed, err := codec.Decode(r.buf)
			if err == link.ErrNeedMore {
				break
			}
			if err != nil {
				r.log.WithError(err).Warn("link frame decode error, resynchronizing")
				if err == link.ErrBadHeaderCrc || err == link.ErrBadBodyCrc {
					atomic.AddUint64(&r.stats.crcErrors, 1)
				}
				if consumed == 0 {
					consumed = 1
				}
				r.buf = r.buf[consumed:]
				continue
			}
			r.buf = r.buf[consumed:]
			atomic.AddUint64(&r.stats.framesReceived, 1)
			atomic.AddUint64(&r.stats.bytesReceived, uint64(consumed))
			return f, nil
		}
		n, err := r.conn.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
		}
		if err != nil {
			return link.Frame{}, err
		}
	}
}
