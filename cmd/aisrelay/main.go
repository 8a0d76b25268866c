// Command aisrelay stands in for the simulated RF medium two AIS stations
// transmit through: it binds one UDP socket per channel, remembers which
// peer addresses have sent it a frame, and rebroadcasts every received
// datagram to every other known peer on the same channel. An
// application-level fanout gives the same observable effect as a real
// SO_BROADCAST socket without platform-specific socket options.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/spf13/pflag"

	"aisnet/aislog"
	"aisnet/config"
	"aisnet/slot"
)

// peerSet remembers every distinct sender address seen on one channel so a
// received frame can be rebroadcast to everyone except its own sender.
type peerSet struct {
	mu    sync.Mutex
	peers map[string]*net.UDPAddr
}

func newPeerSet() *peerSet {
	return &peerSet{peers: make(map[string]*net.UDPAddr)}
}

// observe records addr and returns every other known peer.
func (p *peerSet) observe(addr *net.UDPAddr) []*net.UDPAddr {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := addr.String()
	p.peers[key] = addr

	others := make([]*net.UDPAddr, 0, len(p.peers)-1)
	for k, a := range p.peers {
		if k != key {
			others = append(others, a)
		}
	}
	return others
}

// relayChannel runs the receive-and-forward loop for one channel's socket
// until conn is closed. Per-packet read and write errors are swallowed so a
// single malformed datagram or unreachable peer never kills the relay.
func relayChannel(chn slot.Channel, conn *net.UDPConn, logger *slog.Logger) {
	peers := newPeerSet()
	buf := make([]byte, 5096)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		aislog.WithSlots(logger).Debug("relayed frame", "channel", chn, "from", addr.String(), "bytes", n)
		for _, peer := range peers.observe(addr) {
			if _, err := conn.WriteToUDP(payload, peer); err != nil {
				aislog.WithSlots(logger).Warn("forwarding failed", "channel", chn, "to", peer.String(), "error", err)
			}
		}
	}
}

func main() {
	flagCfg := config.Default()
	fs := pflag.NewFlagSet("aisrelay", pflag.ExitOnError)
	configPath := fs.String("config", "", "YAML station config file (flags below override it)")
	config.FlagSet(fs, &flagCfg)
	fs.Parse(os.Args[1:])

	cfg := flagCfg
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slogFatal(err)
		}
		cfg = loaded
		config.ApplyOverrides(fs, &cfg, &flagCfg)
	}

	logger := aislog.New(nil)

	conn87, err := listen(cfg.ServerIP, cfg.Port87BReception)
	if err != nil {
		aislog.WithSlots(logger).Error("binding 87B reception socket", "error", err)
		os.Exit(1)
	}
	conn88, err := listen(cfg.ServerIP, cfg.Port88BReception)
	if err != nil {
		aislog.WithSlots(logger).Error("binding 88B reception socket", "error", err)
		os.Exit(1)
	}

	aislog.WithSlots(logger).Info("relay listening",
		"addr_87b", fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.Port87BReception),
		"addr_88b", fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.Port88BReception))

	done := make(chan struct{})
	go func() { relayChannel(slot.Channel87B, conn87, logger); close(done) }()
	go relayChannel(slot.Channel88B, conn88, logger)
	<-done
}

func listen(ip string, port int) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", addr)
}

func slogFatal(err error) {
	aislog.WithSlots(aislog.New(nil)).Error("aisrelay: loading config", "error", err)
	os.Exit(1)
}
