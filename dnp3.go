// Package dnp3 is the library surface of this module: the entry points a
// host application uses to stand up a DNP3 master or outstation over
// TCP, TLS, serial, or UDP, add associations/outstations, register polls,
// and issue tasks. Runtime hosts any number of master channels and
// outstation servers as the one exported façade over the internal
// link/transport/application/task machinery.
package dnp3

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/channel"
	"github.com/dnp3go/dnp3/pkg/config"
	"github.com/dnp3go/dnp3/pkg/master"
	"github.com/dnp3go/dnp3/pkg/objects"
	"github.com/dnp3go/dnp3/pkg/outstation"
)

// ErrParameter is a parameter/config problem rejected synchronously at
// creation time, distinct from a task error reported later through a
// Done callback.
type ErrParameter struct {
	Reason string
}

func (e *ErrParameter) Error() string { return "dnp3: " + e.Reason }

// Runtime keeps track of the channels it created so Shutdown can stop
// them. Each channel already drives itself with its own goroutines (see
// pkg/channel); numCoreThreads is recorded but does not limit how many
// channels run concurrently.
type Runtime struct {
	numCoreThreads int
	channels       []stoppable
}

type stoppable interface{ Stop() }

// NewRuntime creates a runtime. numCoreThreads <= 0 defaults to 1.
func NewRuntime(numCoreThreads int) *Runtime {
	if numCoreThreads <= 0 {
		numCoreThreads = 1
	}
	return &Runtime{numCoreThreads: numCoreThreads}
}

// Shutdown stops every master channel and every accepted outstation
// channel this runtime created. OutstationServer listeners are not
// registered with the runtime and stay open until their own Stop.
func (rt *Runtime) Shutdown() {
	for _, c := range rt.channels {
		c.Stop()
	}
	rt.channels = nil
}

func validateAddress(addr uint16) error {
	if addr >= 65520 {
		return &ErrParameter{Reason: fmt.Sprintf("address %d is reserved/broadcast (65520..65535)", addr)}
	}
	return nil
}

// MasterChannel is the host-facing handle for one master-role connection:
// the byte-stream driver plus the single association it hosts load
// associations onto via AddAssociation.
type MasterChannel struct {
	rt          *Runtime
	ch          *channel.MasterChannel
	cfg         config.ChannelConfig
	pendingConn io.ReadWriteCloser
}

// CreateMasterChannel dials (or opens, for UDP/serial) the endpoint
// cfg.Endpoint names: tcp, tls, serial, or udp, configured with a
// local-role address, decode level, rx/tx fragment size, and retry
// strategy. The read/drive loops start once AddAssociation supplies the
// outstation address to bind.
func CreateMasterChannel(ctx context.Context, rt *Runtime, cfg config.ChannelConfig) (*MasterChannel, error) {
	if err := validateAddress(cfg.Link.LocalAddr); err != nil {
		return nil, err
	}
	conn, err := dialMasterEndpoint(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dnp3: create master channel: %w", err)
	}
	return &MasterChannel{rt: rt, cfg: cfg, pendingConn: conn}, nil
}

func dialMasterEndpoint(ctx context.Context, cfg config.ChannelConfig) (io.ReadWriteCloser, error) {
	switch cfg.Endpoint {
	case config.EndpointTCP:
		return channel.DialTCPMaster(ctx, cfg)
	case config.EndpointTLS:
		return channel.DialTLSMaster(ctx, cfg)
	case config.EndpointUDP:
		return channel.DialUDPMaster(cfg)
	case config.EndpointSerial:
		return channel.OpenSerial(cfg.Serial)
	default:
		return nil, &ErrParameter{Reason: "unsupported endpoint kind"}
	}
}

// AddAssociation binds outstationAddress to this channel, builds the
// association controller, and starts the channel's read/drive loops.
// Only one association per channel is supported (see DESIGN.md); calling
// this twice on the same MasterChannel returns an ErrParameter.
func (mc *MasterChannel) AddAssociation(outstationAddress uint16, assocCfg master.AssociationConfig, reader master.ReadHandler, handler master.AssociationHandler) (*master.Association, error) {
	if err := validateAddress(outstationAddress); err != nil {
		return nil, err
	}
	if mc.pendingConn == nil {
		return nil, &ErrParameter{Reason: "channel already has an association bound"}
	}
	cfg := mc.cfg
	cfg.Link.RemoteAddr = outstationAddress
	cfg.Link.IsMaster = true
	ch := channel.NewMasterChannel(mc.pendingConn, cfg, assocCfg, reader, handler)
	mc.pendingConn = nil
	mc.ch = ch
	if mc.rt != nil {
		mc.rt.channels = append(mc.rt.channels, ch)
	}
	ch.Run()
	log.WithFields(log.Fields{"component": "dnp3", "outstation": outstationAddress}).Info("association started")
	return ch.Association(), nil
}

// Stop closes the underlying connection and waits for the channel's
// goroutines to exit.
func (mc *MasterChannel) Stop() {
	if mc.ch != nil {
		mc.ch.Stop()
	}
}

// Stats returns a snapshot of this channel's byte-stream counters (frames
// and bytes sent/received, CRC errors, retransmits), for operational
// visibility rather than protocol behavior.
func (mc *MasterChannel) Stats() channel.Stats {
	if mc.ch == nil {
		return channel.Stats{}
	}
	return mc.ch.Stats()
}

// AddPoll registers a periodic read.
func AddPoll(assoc *master.Association, request []byte, period time.Duration) int {
	return assoc.AddPoll(request, period)
}

// DemandPoll forces pollID to run on the association's next tick.
func DemandPoll(assoc *master.Association, pollID int) {
	assoc.DemandPoll(pollID)
}

// Engine exposes the task engine backing assoc's channel, for issuing the
// ad hoc task operations below (read, operate, synchronize_time, ...).
// Host code obtains it once via MasterChannel.Engine after AddAssociation.
func (mc *MasterChannel) Engine() *master.Engine {
	if mc.ch == nil {
		return nil
	}
	return mc.ch.Association().Engine
}

// Read issues a one-shot read of requestBody (pre-encoded object headers,
// e.g. class 0 or a specific point range).
func Read(engine *master.Engine, requestBody []byte, handler master.ReadHandler, timeout time.Duration) {
	engine.Enqueue(master.NewReadTask(requestBody, master.ReadSinglePoll, handler, timeout))
}

// Operate issues a command set using the given mode (DirectOperate,
// DirectOperateNoAck, or SelectBeforeOperate).
func Operate(engine *master.Engine, points []master.ControlPoint, mode master.OperateMode, timeout time.Duration, done func(master.CommandResult)) {
	engine.Enqueue(master.NewCommandTask(points, mode, timeout, done))
}

// SynchronizeTime runs one LAN or non-LAN time-sync round.
func SynchronizeTime(engine *master.Engine, mode master.TimeSyncMode, clock func() time.Time, timeout time.Duration, done func(error)) {
	if clock == nil {
		clock = time.Now
	}
	if mode == master.TimeSyncLAN {
		engine.Enqueue(master.NewLANTimeSyncTask(clock, timeout, done))
		return
	}
	engine.Enqueue(master.NewNonLANTimeSyncTask(clock, timeout, done))
}

// ColdRestart issues COLD_RESTART and reports the outstation's advertised
// restart delay.
func ColdRestart(engine *master.Engine, timeout time.Duration, done func(time.Duration, error)) {
	engine.Enqueue(master.NewRestartTask(false, timeout, done))
}

// WarmRestart issues WARM_RESTART.
func WarmRestart(engine *master.Engine, timeout time.Duration, done func(time.Duration, error)) {
	engine.Enqueue(master.NewRestartTask(true, timeout, done))
}

// CheckLinkStatus issues REQUEST_LINK_STATUS at the link layer only,
// bypassing the application-layer sequencer entirely.
func CheckLinkStatus(engine *master.Engine, timeout time.Duration, done func(bool)) {
	engine.Enqueue(master.NewLinkStatusTask(timeout, done))
}

// WriteDeadbands writes group-34 deadband values for the given analog
// input indices.
func WriteDeadbands(engine *master.Engine, variation uint8, values []objects.Value, timeout time.Duration, done func(app.ResponseHeader, []byte, error)) {
	body, err := objects.EncodeGroup(34, variation, values, true)
	if err != nil {
		if done != nil {
			done(app.ResponseHeader{}, nil, err)
		}
		return
	}
	engine.Enqueue(master.NewGenericTask(app.FCWrite, body, master.PriorityUser, timeout, done))
}

// SendAndExpectEmptyResponse issues an arbitrary function code with a
// pre-encoded request body and reports the bare IIN/error outcome.
func SendAndExpectEmptyResponse(engine *master.Engine, fc app.FunctionCode, requestBody []byte, timeout time.Duration, done func(app.IIN, error)) {
	engine.Enqueue(master.NewGenericTask(fc, requestBody, master.PriorityUser, timeout, func(header app.ResponseHeader, _ []byte, err error) {
		done(header.IIN, err)
	}))
}

// ReadFile, ReadDirectory, and GetFileInfo issue the corresponding file-
// transfer function codes and return the raw response bytes: the
// function codes are recognized by the application parser but the
// file-transfer object model itself is out of scope, so callers receive
// the undecoded object payload rather than a typed directory listing.
func ReadFile(engine *master.Engine, path string, timeout time.Duration, done func([]byte, error)) {
	engine.Enqueue(master.NewGenericTask(app.FCOpenFile, []byte(path), master.PriorityUser, timeout, func(_ app.ResponseHeader, body []byte, err error) {
		done(body, err)
	}))
}

func ReadDirectory(engine *master.Engine, path string, timeout time.Duration, done func([]byte, error)) {
	engine.Enqueue(master.NewGenericTask(app.FCOpenFile, []byte(path), master.PriorityUser, timeout, func(_ app.ResponseHeader, body []byte, err error) {
		done(body, err)
	}))
}

func GetFileInfo(engine *master.Engine, path string, timeout time.Duration, done func([]byte, error)) {
	engine.Enqueue(master.NewGenericTask(app.FCGetFileInfo, []byte(path), master.PriorityUser, timeout, func(_ app.ResponseHeader, body []byte, err error) {
		done(body, err)
	}))
}

// OutstationServer accepts incoming connections and spawns one
// OutstationChannel per accepted peer.
type OutstationServer struct {
	rt       *Runtime
	listener net.Listener
	cfg      config.ChannelConfig

	mu    sync.Mutex
	conns map[*outstation.Responder]*channel.OutstationChannel
}

// CreateTCPServer opens a TCP listener for outstation connections.
func CreateTCPServer(rt *Runtime, cfg config.ChannelConfig) (*OutstationServer, error) {
	ln, err := channel.ListenTCPOutstation(cfg)
	if err != nil {
		return nil, fmt.Errorf("dnp3: create tcp server: %w", err)
	}
	return &OutstationServer{rt: rt, listener: ln, cfg: cfg}, nil
}

// CreateTLSServer opens a TLS listener requiring client certificates.
func CreateTLSServer(rt *Runtime, cfg config.ChannelConfig) (*OutstationServer, error) {
	ln, err := channel.ListenTLSOutstation(cfg)
	if err != nil {
		return nil, fmt.Errorf("dnp3: create tls server: %w", err)
	}
	return &OutstationServer{rt: rt, listener: ln, cfg: cfg}, nil
}

// Stop closes the listener, preventing further AddOutstation accepts.
func (s *OutstationServer) Stop() {
	_ = s.listener.Close()
}

// AddOutstation blocks for the next connection satisfying the server's
// address filter, builds the responder over the given database/control/
// application callbacks, and starts its read/poll loops.
func (s *OutstationServer) AddOutstation(cfg outstation.Config, db *outstation.Database, appl outstation.Application, controls outstation.ControlHandler) (*outstation.Responder, error) {
	var filter config.AddressFilter
	switch s.cfg.Endpoint {
	case config.EndpointTLS:
		filter = s.cfg.TLS.Filter
	default:
		filter = s.cfg.TCP.Filter
	}
	conn, err := channel.AcceptFiltered(s.listener, filter)
	if err != nil {
		return nil, err
	}
	resp := outstation.NewResponder(cfg, db, controls, appl)
	ch := channel.NewOutstationChannel(conn, s.cfg, resp)
	if s.rt != nil {
		s.rt.channels = append(s.rt.channels, ch)
	}
	s.mu.Lock()
	if s.conns == nil {
		s.conns = make(map[*outstation.Responder]*channel.OutstationChannel)
	}
	s.conns[resp] = ch
	s.mu.Unlock()
	ch.Run()
	return resp, nil
}

// Stats returns a snapshot of the byte-stream counters for the connection
// backing resp, or a zero value if resp was not produced by this server
// (e.g. it came from a serial or UDP outstation helper instead).
func (s *OutstationServer) Stats(resp *outstation.Responder) channel.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.conns[resp]; ok {
		return ch.Stats()
	}
	return channel.Stats{}
}

// CreateSerialOutstation opens a serial port directly (no listener/accept
// step: a serial line has exactly one peer) and starts its responder.
func CreateSerialOutstation(rt *Runtime, cfg config.ChannelConfig, respCfg outstation.Config, db *outstation.Database, appl outstation.Application, controls outstation.ControlHandler) (*outstation.Responder, error) {
	f, err := channel.OpenSerial(cfg.Serial)
	if err != nil {
		return nil, fmt.Errorf("dnp3: create serial outstation: %w", err)
	}
	resp := outstation.NewResponder(respCfg, db, controls, appl)
	ch := channel.NewOutstationChannel(f, cfg, resp)
	if rt != nil {
		rt.channels = append(rt.channels, ch)
	}
	ch.Run()
	return resp, nil
}

// CreateUDPOutstation waits for the first datagram from a peer matching
// cfg.UDP.Filter and starts a responder bound to that peer.
func CreateUDPOutstation(rt *Runtime, cfg config.ChannelConfig, respCfg outstation.Config, db *outstation.Database, appl outstation.Application, controls outstation.ControlHandler) (*outstation.Responder, error) {
	conn, err := channel.AcceptUDPOutstation(cfg)
	if err != nil {
		return nil, fmt.Errorf("dnp3: create udp outstation: %w", err)
	}
	resp := outstation.NewResponder(respCfg, db, controls, appl)
	ch := channel.NewOutstationChannel(conn, cfg, resp)
	if rt != nil {
		rt.channels = append(rt.channels, ch)
	}
	ch.Run()
	return resp, nil
}

// Enable and Disable toggle whether db reports IIN1.DEVICE_RESTART
// persistently, over the outstation's transaction surface.
func Enable(db *outstation.Database) {
	db.Transaction(func(tx *outstation.Database) { tx.SetDeviceRestart(false) })
}

func Disable(db *outstation.Database) {
	db.Transaction(func(tx *outstation.Database) { tx.SetDeviceRestart(true) })
}

// Transaction runs fn with exclusive access to db.
func Transaction(db *outstation.Database, fn func(tx *outstation.Database)) {
	db.Transaction(fn)
}
