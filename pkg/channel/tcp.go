package channel

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/config"
)

// DialTCPMaster connects to cfg.TCP.Address, retrying with cfg.Retry's
// exponential backoff (min/max bounds) until ctx is cancelled.
func DialTCPMaster(ctx context.Context, cfg config.ChannelConfig) (net.Conn, error) {
	logger := log.WithFields(log.Fields{"component": "tcp-dial", "address": cfg.TCP.Address})
	var attempt int
	for {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", cfg.TCP.Address)
		if err == nil {
			return conn, nil
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("tcp dial failed, retrying")
		delay := cfg.Retry.Next(attempt)
		attempt++
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// ListenTCPOutstation opens a TCP listener for an outstation server.
func ListenTCPOutstation(cfg config.ChannelConfig) (net.Listener, error) {
	return net.Listen("tcp", cfg.TCP.Address)
}

// AcceptFiltered blocks for the next connection on ln whose remote host
// satisfies filter, closing and discarding any connection that
// does not.
func AcceptFiltered(ln net.Listener, filter config.AddressFilter) (net.Conn, error) {
	logger := log.WithField("component", "tcp-accept")
	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil, err
		}
		host := hostOnly(conn.RemoteAddr().String())
		if matchAddressFilter(filter, host) {
			return conn, nil
		}
		logger.WithField("remote", host).Warn("rejecting connection, address filter mismatch")
		_ = conn.Close()
	}
}
