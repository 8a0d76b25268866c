// Command aisstation runs one simulated AIS Class-A station: it loads a
// boat identity and network config, dials both VHF antennas against the
// relay, starts the SOTDMA/ITDMA state machine, and shows a live dashboard
// of the station's own slot pair and every boat it has heard from.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/awesome-gocui/gocui"
	. "github.com/logrusorgru/aurora"
	"github.com/spf13/pflag"

	"aisnet/aislog"
	"aisnet/boat"
	"aisnet/config"
	"aisnet/slot"
	"aisnet/slotclock"
	"aisnet/station"
	"aisnet/transport"
)

func main() {
	flagCfg := config.Default()
	fs := pflag.NewFlagSet("aisstation", pflag.ExitOnError)
	configPath := fs.String("config", "", "YAML station config file (flags below override it)")
	config.FlagSet(fs, &flagCfg)
	fs.Parse(os.Args[1:])

	cfg := flagCfg
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("aisstation: %v", err)
		}
		cfg = loaded
		config.ApplyOverrides(fs, &cfg, &flagCfg)
	}

	logger := aislog.New(nil)
	b := boat.New(cfg.MMSI, cfg.CallSign, cfg.Name)
	st := station.NewStation(b, logger)

	handler := func(payload []byte, chn slot.Channel) { st.HandleTransmission(payload, chn) }

	a87, err := transport.Dial(slot.Channel87B,
		fmt.Sprintf("%s:%d", cfg.IP, cfg.Port87BBroadcast),
		fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.Port87BReception),
		handler)
	if err != nil {
		log.Fatalf("aisstation: dialing 87B antenna: %v", err)
	}
	a88, err := transport.Dial(slot.Channel88B,
		fmt.Sprintf("%s:%d", cfg.IP, cfg.Port88BBroadcast),
		fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.Port88BReception),
		handler)
	if err != nil {
		log.Fatalf("aisstation: dialing 88B antenna: %v", err)
	}
	st.AttachAntennas(a87, a88)

	ctx, cancel := context.WithCancel(context.Background())
	st.Start(ctx)

	g, err := gocui.NewGui(gocui.OutputNormal, false)
	if err != nil {
		log.Panicln(err)
	}
	defer g.Close()

	g.SetManagerFunc(layout)
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		log.Panicln(err)
	}

	update := dashboard(st)
	go func() {
		for ; ; <-time.Tick(200 * time.Millisecond) {
			g.Update(update)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
		g.Update(func(g *gocui.Gui) error { return gocui.ErrQuit })
	}()

	if err := g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		log.Panicln(err)
	}

	cancel()
	a87.Close()
	a88.Close()
}

func layout(g *gocui.Gui) error {
	const maxX = 90
	_, maxY := g.Size()

	v, _ := g.SetView("status", 0, 0, maxX-2, 2, 0)
	v.Title = " STATUS "
	fmt.Fprintln(v, " SLOT 87B: --  SLOT 88B: --  BOATS: --")

	v, _ = g.SetView("list", 0, 3, maxX-2, maxY-1, 0)
	v.Title = " KNOWN BOATS "
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func dashboard(st *station.Station) func(g *gocui.Gui) error {
	return func(g *gocui.Gui) error {
		i87, i88 := slotclock.CurrentIndices()

		s, err := g.View("status")
		if err != nil {
			return nil
		}
		s.Clear()
		fmt.Fprintf(s, " SLOT 87B: %04d  SLOT 88B: %04d  BOATS: %s\n",
			i87, i88, Green(st.Registry.Count()))

		l, err := g.View("list")
		if err != nil {
			return nil
		}
		l.Clear()
		fmt.Fprintln(l, " MMSI        NAME                 LAT         LON    COG   SOG  NAVSTAT")
		fmt.Fprintln(l, " ===================================================================")

		mmsis := st.Registry.MMSIs()
		sort.Slice(mmsis, func(i, j int) bool { return mmsis[i] < mmsis[j] })
		for _, mmsi := range mmsis {
			snap, ok := st.Registry.Get(mmsi)
			if !ok {
				continue
			}
			name, _ := snap["name"].(string)
			lat, _ := snap["latitude"].(uint64)
			lon, _ := snap["longitude"].(uint64)
			cog, _ := snap["course_over_ground"].(uint64)
			sog, _ := snap["speed_over_ground"].(uint64)
			nav, _ := snap["navigational_status"].(uint64)
			fmt.Fprintln(l, Sprintf(Yellow(" %-10d  %-18s  %8.4f  %8.4f  %5.1f  %5.1f  %3d"),
				mmsi, name,
				float64(lat)/10000/60, float64(lon)/10000/60,
				float64(cog)/10, float64(sog)/10, nav))
		}
		return nil
	}
}
