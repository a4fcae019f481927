package channel

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/config"
	"github.com/dnp3go/dnp3/pkg/link"
	"github.com/dnp3go/dnp3/pkg/outstation"
	"github.com/dnp3go/dnp3/pkg/transport"
)

// OutstationChannel owns the full stack for one outstation-role byte-stream
// connection: link state machine, transport reassembly/segmentation, and
// the request/response/unsolicited responder running over it.
type OutstationChannel struct {
	conn io.ReadWriteCloser
	sm   *link.StateMachine
	rx   *transport.Reassembler
	resp *outstation.Responder

	sourceAddr uint16
	destAddr   uint16
	txSeq      uint8

	stats *statsCounters

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *log.Entry
}

// NewOutstationChannel builds the stack but does not start it; call Run.
func NewOutstationChannel(conn io.ReadWriteCloser, cfg config.ChannelConfig, responder *outstation.Responder) *OutstationChannel {
	stats := &statsCounters{}
	sink := newConnSink(conn, stats)
	sm := link.New(link.Config{
		LocalAddr:  cfg.Link.LocalAddr,
		RemoteAddr: cfg.Link.RemoteAddr,
		IsMaster:   false,
	}, sink)
	sm.OnRetransmit = func() { atomic.AddUint64(&stats.retries, 1) }

	c := &OutstationChannel{
		conn:       conn,
		sm:         sm,
		rx:         transport.NewReassembler(cfg.RxFragmentSize),
		resp:       responder,
		sourceAddr: cfg.Link.LocalAddr,
		destAddr:   cfg.Link.RemoteAddr,
		stats:      stats,
		stopCh:     make(chan struct{}),
		log:        log.WithField("component", "outstation-channel"),
	}
	sm.DataSink = c.onLinkPayload
	return c
}

// Stats returns a snapshot of this channel's byte-stream counters.
func (c *OutstationChannel) Stats() Stats { return c.stats.Snapshot() }

func (c *OutstationChannel) sendFragment(fragment []byte) error {
	for _, seg := range transport.Segment(fragment, c.txSeq) {
		if err := c.sm.SendUnconfirmed(seg); err != nil {
			return err
		}
	}
	c.txSeq = (c.txSeq + 1) & 0x3F
	return nil
}

func (c *OutstationChannel) onLinkPayload(payload []byte) {
	fragment, complete, err := c.rx.Accept(payload)
	if err != nil {
		c.log.WithError(err).Warn("transport reassembly error")
		return
	}
	if !complete {
		return
	}
	reqHeader, body, err := app.DecodeRequest(fragment)
	if err != nil {
		c.log.WithError(err).Warn("malformed request fragment")
		return
	}
	result := c.resp.HandleRequest(reqHeader, body, c.sourceAddr, c.destAddr)
	if result.IsBroadcast {
		return
	}
	if result.Response == nil {
		return
	}
	if err := c.sendFragment(result.Response); err != nil {
		c.log.WithError(err).Warn("failed to send response fragment")
	}
}

// Run starts the read loop and the unsolicited/confirm-timeout poll loop.
func (c *OutstationChannel) Run() {
	c.wg.Add(2)
	go c.readLoop()
	go c.pollLoop()
}

func (c *OutstationChannel) Stop() {
	close(c.stopCh)
	_ = c.conn.Close()
	c.wg.Wait()
}

func (c *OutstationChannel) readLoop() {
	defer c.wg.Done()
	r := newFrameReader(c.conn, c.stats)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		f, err := r.next()
		if err != nil {
			c.log.WithError(err).Info("outstation channel read loop stopped")
			return
		}
		if err := c.sm.OnFrame(f); err != nil {
			c.log.WithError(err).Debug("link frame rejected")
		}
	}
}

// pollLoop periodically checks for confirm-wait timeouts and pending
// unsolicited events, driving confirm-wait and unsolicited retry
// behavior.
func (c *OutstationChannel) pollLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.resp.OnConfirmTimeout()
			if wire := c.resp.PollUnsolicited(); wire != nil {
				if err := c.sendFragment(wire); err != nil {
					c.log.WithError(err).Warn("failed to send unsolicited response")
				}
			}
		}
	}
}
