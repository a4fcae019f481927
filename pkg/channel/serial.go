//go:build linux

package channel

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/dnp3go/dnp3/pkg/config"
)

// PortState is the serial port's reported lifecycle:
// {Disabled, Open, Wait, Shutdown}.
type PortState int

const (
	PortDisabled PortState = iota
	PortOpen
	PortWait
	PortShutdown
)

func (s PortState) String() string {
	switch s {
	case PortDisabled:
		return "Disabled"
	case PortOpen:
		return "Open"
	case PortWait:
		return "Wait"
	case PortShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// OpenSerial opens cfg.Port and configures it raw, 8-N-1 (no parity, one
// stop bit, no flow control) at cfg.BaudRate; a rate not in baudRates
// falls back to 9600. Uses the termios ioctl sequence every
// userspace serial library (e.g. tarm/serial) performs under the hood;
// golang.org/x/sys/unix is already
// the pack's transitive dependency for exactly this syscall surface, so
// this is its wired home in this module rather than leaving it unused.
func OpenSerial(cfg config.SerialConfig) (*os.File, error) {
	f, err := os.OpenFile(cfg.Port, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("dnp3: open serial port %s: %w", cfg.Port, err)
	}
	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dnp3: get termios: %w", err)
	}

	baud, ok := baudRates[cfg.BaudRate]
	if !ok {
		baud = unix.B9600
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	t.Ispeed = baud
	t.Ospeed = baud

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("dnp3: set termios: %w", err)
	}
	return f, nil
}
