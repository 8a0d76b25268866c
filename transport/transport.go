// Package transport implements the per-channel UDP "antenna" abstraction:
// each channel gets one datagram socket used both to broadcast this
// station's frames and to receive everyone else's, standing in for the
// real VHF radio link the station would otherwise use.
package transport

import (
	"context"
	"errors"
	"net"

	"aisnet/slot"
)

// MaxDatagramSize matches the project's receive buffer size.
const MaxDatagramSize = 5096

// Handler processes one received, ASCII-encoded transport payload on the
// given channel. It must not block for long: it runs synchronously inside
// the antenna's listener loop.
type Handler func(payload []byte, chn slot.Channel)

// Antenna owns one UDP socket per channel: bound to this station's local
// broadcast address, "connected" to the relay's reception address so Send
// is a bare write. A background goroutine forwards inbound datagrams to Handler.
type Antenna struct {
	Channel slot.Channel

	conn    *net.UDPConn
	handler Handler
}

// Dial opens an Antenna bound to localAddr and connected to remoteAddr
// (i.e. the peer this station always sends to and expects broadcasts
// from). chn records which VHF channel this antenna represents purely for
// bookkeeping — the transport itself is channel-agnostic UDP.
func Dial(chn slot.Channel, localAddr, remoteAddr string, handler Handler) (*Antenna, error) {
	local, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, err
	}
	remote, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", local, remote)
	if err != nil {
		return nil, err
	}
	return &Antenna{Channel: chn, conn: conn, handler: handler}, nil
}

// Listen runs the receive loop until ctx is cancelled. Per-packet errors
// are swallowed so a single malformed or dropped datagram never kills the
// listener, matching the project's "keep listening despite individual
// errors" antenna behaviour.
func (a *Antenna) Listen(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.conn.Close()
	}()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, err := a.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		a.handler(payload, a.Channel)
	}
}

// Send writes payload to the connected peer.
func (a *Antenna) Send(payload []byte) error {
	_, err := a.conn.Write(payload)
	return err
}

// Close releases the underlying socket.
func (a *Antenna) Close() error {
	return a.conn.Close()
}
