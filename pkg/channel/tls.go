package channel

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/config"
)

// buildTLSConfig turns a config.TLSConfig into a *tls.Config honoring the
// two trust modes: CA-chain (verify the peer certificate against a
// supplied CA file) and self-signed (the peer's own certificate, read from
// the same CAFile setting, is the only trusted root; standard chain
// verification still runs against it). crypto/tls is the standard
// library's own TLS implementation; no ecosystem package in the retrieval
// pack wraps it usefully for a client-auth TLS 1.2/1.3 session.
func buildTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("dnp3: load tls keypair: %w", err)
	}
	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ServerName:   cfg.ServerName,
	}
	switch cfg.Trust {
	case config.TrustCAChain:
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("dnp3: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("dnp3: no certificates parsed from %s", cfg.CAFile)
		}
		tc.RootCAs = pool
		tc.ClientCAs = pool
	case config.TrustSelfSigned:
		peer, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("dnp3: read peer cert file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(peer) {
			return nil, fmt.Errorf("dnp3: no certificates parsed from %s", cfg.CAFile)
		}
		tc.RootCAs = pool
		tc.ClientCAs = pool
		tc.InsecureSkipVerify = false
	}
	return tc, nil
}

// DialTLSMaster connects and completes a client-auth TLS handshake,
// retrying the underlying TCP dial with cfg.Retry's backoff exactly like
// DialTCPMaster.
func DialTLSMaster(ctx context.Context, cfg config.ChannelConfig) (net.Conn, error) {
	tc, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{"component": "tls-dial", "address": cfg.TLS.Address})
	var attempt int
	for {
		d := tls.Dialer{Config: tc}
		conn, err := d.DialContext(ctx, "tcp", cfg.TLS.Address)
		if err == nil {
			return conn, nil
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("tls dial failed, retrying")
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

// ListenTLSOutstation opens a TLS listener requiring client certificates.
func ListenTLSOutstation(cfg config.ChannelConfig) (net.Listener, error) {
	tc, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	tc.ClientAuth = tls.RequireAndVerifyClientCert
	return tls.Listen("tcp", cfg.TLS.Address, tc)
}
