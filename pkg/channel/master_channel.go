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
	"github.com/dnp3go/dnp3/pkg/master"
	"github.com/dnp3go/dnp3/pkg/transport"
)

type decodedResponse struct {
	header app.ResponseHeader
	body   []byte
}

// MasterChannel owns the full stack for one master-role byte-stream
// connection: link state machine, transport reassembly, task engine, and
// the single association running over it. Runs as a cooperative
// read/drive loop over a streaming connection.
//
// One MasterChannel drives one association; multiplexing several
// outstation addresses over a single physical link is not implemented
// (see DESIGN.md).
type MasterChannel struct {
	conn   io.ReadWriteCloser
	sm     *link.StateMachine
	rx     *transport.Reassembler
	engine *master.Engine
	assoc  *master.Association

	txSeq uint8
	resp  chan decodedResponse

	stats *statsCounters

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *log.Entry
}

// NewMasterChannel builds the stack but does not start it; call Run.
func NewMasterChannel(conn io.ReadWriteCloser, cfg config.ChannelConfig, assocCfg master.AssociationConfig, reader master.ReadHandler, handler master.AssociationHandler) *MasterChannel {
	stats := &statsCounters{}
	sink := newConnSink(conn, stats)
	sm := link.New(link.Config{
		LocalAddr:  cfg.Link.LocalAddr,
		RemoteAddr: cfg.Link.RemoteAddr,
		IsMaster:   true,
	}, sink)
	sm.OnRetransmit = func() { atomic.AddUint64(&stats.retries, 1) }

	c := &MasterChannel{
		conn:   conn,
		sm:     sm,
		rx:     transport.NewReassembler(cfg.RxFragmentSize),
		resp:   make(chan decodedResponse, 4),
		stats:  stats,
		stopCh: make(chan struct{}),
		log:    log.WithField("component", "master-channel"),
	}
	c.engine = master.NewEngine(c.sendFragment)
	c.assoc = master.NewAssociation(c.engine, assocCfg, reader, handler)
	sm.DataSink = c.onLinkPayload
	return c
}

func (c *MasterChannel) Association() *master.Association { return c.assoc }

// Stats returns a snapshot of this channel's byte-stream counters.
func (c *MasterChannel) Stats() Stats { return c.stats.Snapshot() }

// sendFragment segments and transmits one application-layer fragment.
func (c *MasterChannel) sendFragment(fragment []byte) error {
	for _, seg := range transport.Segment(fragment, c.txSeq) {
		if err := c.sm.SendUnconfirmed(seg); err != nil {
			return err
		}
	}
	c.txSeq = (c.txSeq + 1) & 0x3F
	return nil
}

func (c *MasterChannel) onLinkPayload(payload []byte) {
	fragment, complete, err := c.rx.Accept(payload)
	if err != nil {
		c.log.WithError(err).Warn("transport reassembly error")
		return
	}
	if !complete {
		return
	}
	header, body, err := app.DecodeResponse(fragment)
	if err != nil {
		c.log.WithError(err).Warn("malformed response fragment")
		return
	}
	c.assoc.OnResponseIIN(header.IIN)
	select {
	case c.resp <- decodedResponse{header: header, body: body}:
	default:
		c.log.Warn("response channel full, dropping fragment")
	}
}

// Run drives the association lifecycle and task engine until Stop is
// called or the connection's read side errs out.
func (c *MasterChannel) Run() {
	c.wg.Add(2)
	go c.readLoop()
	go c.driveLoop()
}

func (c *MasterChannel) Stop() {
	close(c.stopCh)
	_ = c.conn.Close()
	c.wg.Wait()
}

func (c *MasterChannel) readLoop() {
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
			c.log.WithError(err).Info("master channel read loop stopped")
			return
		}
		if err := c.sm.OnFrame(f); err != nil {
			c.log.WithError(err).Debug("link frame rejected")
		}
	}
}

// driveLoop runs the association's startup lifecycle, then repeatedly
// executes the highest-priority queued task to completion before moving
// on: only one task may hold the application layer at a time.
func (c *MasterChannel) driveLoop() {
	defer c.wg.Done()
	c.assoc.Start()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	idle := time.NewTimer(10 * time.Millisecond)
	defer idle.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.assoc.Tick(time.Now())
			continue
		default:
		}
		if c.engine.Len() == 0 {
			idle.Reset(10 * time.Millisecond)
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.assoc.Tick(time.Now())
			case <-idle.C:
			}
			continue
		}
		c.runOneTask()
	}
}

func (c *MasterChannel) runOneTask() {
	if t, ok := c.engine.PeekLinkStatus(); ok {
		c.runLinkStatus(t)
		return
	}
	inflight, ok := c.engine.RunNext()
	if !ok || inflight == nil {
		return
	}
	for {
		if !c.awaitResponse(inflight) {
			return
		}
	}
}

// runLinkStatus issues REQUEST_LINK_STATUS at the link layer directly,
// bypassing the application-layer sequencer entirely.
func (c *MasterChannel) runLinkStatus(t *master.LinkStatusTask) {
	replied, err := c.sm.RequestLinkStatus()
	if err != nil {
		t.OnError(err)
		return
	}
	timer := time.NewTimer(t.Timeout())
	defer timer.Stop()
	select {
	case <-c.stopCh:
		c.sm.CancelLinkStatus()
	case <-timer.C:
		c.sm.CancelLinkStatus()
		if t.Done != nil {
			t.Done(false)
		}
	case ok := <-replied:
		if t.Done != nil {
			t.Done(ok)
		}
	}
}

// awaitResponse waits for one response fragment (or timeout/shutdown),
// feeds it to the in-flight task, and returns true if another round is
// needed: a further fragment of the same response (FIN clear, awaited
// without resending) or a new request such as Select-before-Operate's
// OPERATE phase.
func (c *MasterChannel) awaitResponse(inflight *master.InFlight) bool {
	timer := time.NewTimer(inflight.Timeout())
	defer timer.Stop()
	select {
	case <-c.stopCh:
		return false
	case <-timer.C:
		inflight.Fail(&master.TaskError{Kind: "Timeout"})
		return false
	case r := <-c.resp:
		done, _ := inflight.Feed(r.header, r.body)
		if done {
			return false
		}
		if !r.header.Control.FIN {
			return true
		}
		req := c.engine.Resend(inflight)
		if err := c.sendFragment(req); err != nil {
			inflight.Fail(err)
			return false
		}
		return true
	}
}
