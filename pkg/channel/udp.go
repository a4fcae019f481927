package channel

import (
	"net"

	"github.com/dnp3go/dnp3/pkg/config"
)

// DialUDPMaster opens a connected UDP socket to cfg.UDP.Address. A
// connected *net.UDPConn already satisfies io.ReadWriteCloser with the
// datagram-per-frame semantics UDP requires.
func DialUDPMaster(cfg config.ChannelConfig) (net.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", cfg.UDP.Address)
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp", nil, raddr)
}

// udpPeerConn adapts one learned remote peer on a shared UDP socket to
// io.ReadWriteCloser, so an outstation UDP listener can hand OutstationChannel
// the same connection abstraction TCP/TLS/Serial use.
type udpPeerConn struct {
	pc     *net.UDPConn
	remote *net.UDPAddr
	first  []byte
}

func (u *udpPeerConn) Read(p []byte) (int, error) {
	if len(u.first) > 0 {
		n := copy(p, u.first)
		u.first = u.first[n:]
		return n, nil
	}
	for {
		n, addr, err := u.pc.ReadFromUDP(p)
		if err != nil || (addr.IP.Equal(u.remote.IP) && addr.Port == u.remote.Port) {
			return n, err
		}
	}
}

func (u *udpPeerConn) Write(p []byte) (int, error) {
	return u.pc.WriteToUDP(p, u.remote)
}

func (u *udpPeerConn) Close() error { return u.pc.Close() }

// AcceptUDPOutstation binds cfg.UDP.Address and blocks for the first
// datagram from a peer matching cfg.UDP.Filter, returning an
// io.ReadWriteCloser bound to that peer for the rest of the session (one
// association per UDP socket, the same per-channel scoping the TCP/TLS/
// Serial constructors use).
func AcceptUDPOutstation(cfg config.ChannelConfig) (*udpPeerConn, error) {
	laddr, err := net.ResolveUDPAddr("udp", cfg.UDP.Address)
	if err != nil {
		return nil, err
	}
	pc, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 2048)
	for {
		n, remote, err := pc.ReadFromUDP(buf)
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		if !matchAddressFilter(cfg.UDP.Filter, remote.IP.String()) {
			continue
		}
		first := make([]byte, n)
		copy(first, buf[:n])
		return &udpPeerConn{pc: pc, remote: remote, first: first}, nil
	}
}
