// Package station implements the SOTDMA/ITDMA AIS station state machine:
// initialisation, network entry, first-frame negotiation, continuous
// operation, and the reception handler that folds observed transmissions
// back into the shared slot map and boat registry.
package station

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"aisnet/aislog"
	"aisnet/aismsg"
	"aisnet/bitcodec"
	"aisnet/boat"
	"aisnet/registry"
	"aisnet/slot"
	"aisnet/slotclock"
	"aisnet/slotsmap"
	"aisnet/transport"
)

const slotsPerMinute = slotclock.SlotsPerMinute

// sleepTime is the cooperative polling interval used by every wait loop in
// the state machine; no operation here is allowed to busy-wait.
const sleepTime = time.Millisecond

// msg5Interval is how often the continuous loop prefers a type-5 static
// report over a type-1 position report.
const msg5Interval = 356 * time.Second

// Station holds one VHF station's full SOTDMA/ITDMA state plus its
// collaborators (boat, slot map, registry, antennas).
type Station struct {
	Boat       *boat.Boat
	Map        *slotsmap.SlotsMap
	Registry   *registry.Registry
	Antenna87B *transport.Antenna
	Antenna88B *transport.Antenna
	Logger     *slog.Logger

	NSS, NS, NTS *slot.Slot

	RI       uint16
	NI, SI   int
	TCounter uint32
	TMOMin   int8
	TMOMax   int8

	SyncState    uint64
	RecvStations uint64
	LastMsg5Ts   *float64
}

// NewStation allocates a station with the baseline SOTDMA timing
// parameters (RI=10, TMO in [3,7]) and a fresh slot map / registry.
// Antennas are attached separately via AttachAntennas once the transport
// layer can reference the station's HandleTransmission method.
func NewStation(b *boat.Boat, logger *slog.Logger) *Station {
	st := &Station{
		Boat:     b,
		Map:      slotsmap.New(),
		Registry: registry.New(),
		Logger:   logger,
		RI:       10,
		TMOMin:   3,
		TMOMax:   7,
	}
	st.NI = slotsPerMinute * int(st.RI) / 60
	st.SI = int(0.2 * float64(st.NI))
	return st
}

// AttachAntennas wires the station's two VHF antennas in after
// construction, breaking the constructor cycle between Station and the
// transport.Handler that must reference it.
func (st *Station) AttachAntennas(a87, a88 *transport.Antenna) {
	st.Antenna87B = a87
	st.Antenna88B = a88
}

// logger returns this station's logger tagged with the current
// (slot_87B, slot_88B) pair, or nil if no logger was configured. Every
// call site logs through this rather than the bare st.Logger so each entry
// carries the slot indices it was emitted under.
func (st *Station) logger() *slog.Logger {
	if st.Logger == nil {
		return nil
	}
	return aislog.WithSlots(st.Logger)
}

// Start launches every background task the station needs: the slot-map
// cleanup pass, both antenna listeners, the boat kinematics loop, and the
// state machine itself. All tasks are daemons torn down when ctx is
// cancelled.
func (st *Station) Start(ctx context.Context) {
	go st.Map.RunCleanup(ctx)
	go st.Antenna87B.Listen(ctx)
	go st.Antenna88B.Listen(ctx)
	go st.Boat.RunKinematics(ctx, sleepTime)
	go func() {
		if err := st.Run(ctx); err != nil && ctx.Err() == nil {
			if l := st.logger(); l != nil {
				l.Error("station state machine exited", "error", err)
			}
		}
	}()
}

// Run drives the state machine to completion: network entry, first-frame
// negotiation, then the continuous operation loop, which only returns when
// ctx is cancelled or building or sending a frame fails.
func (st *Station) Run(ctx context.Context) error {
	if l := st.logger(); l != nil {
		l.Info("entering network")
	}
	if err := st.netEntry(ctx); err != nil {
		return err
	}
	if l := st.logger(); l != nil {
		l.Info("negotiating first frame")
	}
	if err := st.firstFrame(ctx); err != nil {
		return err
	}
	if l := st.logger(); l != nil {
		l.Info("entering continuous operation")
	}
	return st.continuousLoop(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// waitForSlot blocks, polling cooperatively, until s becomes the current
// wall-clock slot.
func (st *Station) waitForSlot(ctx context.Context, s *slot.Slot) error {
	for !s.IsCurrent() {
		if err := sleepCtx(ctx, sleepTime); err != nil {
			return err
		}
	}
	return nil
}

func (st *Station) waitForNTS(ctx context.Context) error {
	return st.waitForSlot(ctx, st.NTS)
}

func randTimeout(min, max int8) int8 {
	return min + int8(rand.Intn(int(max-min)+1))
}

// ratdmaSelection picks a starting slot on chn via RATDMA: collect the
// available slots in a 150-slot window, then thin the candidate set with
// a probabilistic refinement loop. When the window is fully booked it
// blocks, retrying cooperatively, until a candidate appears.
func (st *Station) ratdmaSelection(ctx context.Context, chn slot.Channel) (*slot.Slot, error) {
	var startS *slot.Slot
	if chn == slot.Channel87B {
		startS = st.Map.Current87B()
	} else {
		startS = st.Map.Current88B()
	}
	lmeRtes := st.Map.ComputeOffsetSlot(startS, 150)

	candidates := slotsmap.ExtractAvailableSlots(st.Map.ComputeSlotsRange(chn, startS.Number, lmeRtes.Number))
	for len(candidates) == 0 {
		if err := sleepCtx(ctx, sleepTime); err != nil {
			return nil, err
		}
		candidates = slotsmap.ExtractAvailableSlots(st.Map.ComputeSlotsRange(chn, startS.Number, lmeRtes.Number))
	}

	candidate := candidates[rand.Intn(len(candidates))]
	lmeRtcsc := len(candidates)
	lmeRtps := 100.0 / float64(lmeRtes.Number)
	lmeRtp1 := rand.Float64() * 100
	lmeRtp2 := lmeRtps
	lmeRtpi := (100 - lmeRtp2) / float64(lmeRtcsc)

	for lmeRtp1 > lmeRtp2 {
		lmeRtp2 += lmeRtpi
		lmeRtcsc--
		candidates = removeSlot(candidates, candidate)
		if len(candidates) == 0 {
			break
		}
		candidate = candidates[rand.Intn(len(candidates))]
		lmeRtpi = (100 - lmeRtp2) / float64(lmeRtcsc)
	}
	return candidate, nil
}

func removeSlot(ss []*slot.Slot, target *slot.Slot) []*slot.Slot {
	out := make([]*slot.Slot, 0, len(ss))
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

func (st *Station) getNextNS(rank int) *slot.Slot {
	nsI := ((st.NSS.Number+(int(st.TCounter)+rank)*st.NI)%slotsPerMinute + slotsPerMinute) % slotsPerMinute
	return st.Map.Slot(nsI)
}

func (st *Station) setNextNS() {
	st.NS = st.getNextNS(0)
}

// setNextNTS reserves and returns the next transmission slot: a window of
// SI slots centred on NS, preferring the channel opposite the current NTS.
// It blocks cooperatively when the window has no free slot.
func (st *Station) setNextNTS(ctx context.Context) (*slot.Slot, error) {
	startSI := ringMod(st.NS.Number - st.SI/2)

	var rsvChn *slot.Channel
	if st.NTS != nil {
		c := slot.Channel87B
		if st.NTS.Channel == slot.Channel87B {
			c = slot.Channel88B
		}
		rsvChn = &c
	}

	available := st.Map.ScanForFreeSlots(st.SI, &startSI, 1, rsvChn)
	for len(available) == 0 {
		if err := sleepCtx(ctx, sleepTime); err != nil {
			return nil, err
		}
		available = st.Map.ScanForFreeSlots(st.SI, &startSI, 1, rsvChn)
	}

	next := available[rand.Intn(len(available))]
	next.Book(st.Boat.MMSI, randTimeout(st.TMOMin, st.TMOMax), false)
	return next, nil
}

// getNextNTS returns a randomly chosen slot this station already owns
// inside the SI window around the rank-ahead NS, or nil when none exists.
func (st *Station) getNextNTS(rank int) *slot.Slot {
	ns := st.getNextNS(rank)
	startSI := ringMod(ns.Number - st.SI/2)
	owned := st.Map.ScanForOwnedSlots(st.SI, &startSI, st.Boat.MMSI)
	if len(owned) == 0 {
		return nil
	}
	return owned[rand.Intn(len(owned))]
}

func ringMod(n int) int {
	return ((n % slotsPerMinute) + slotsPerMinute) % slotsPerMinute
}

// send builds and transmits msgType on the current NTS's antenna,
// filling in the communication-state fields appropriate to the message
// type and, for types 1/2, to the NTS's current timeout value.
func (st *Station) send(msgType int, keepFlag bool, offset uint64, slotsNbr uint64) error {
	ant := st.Antenna88B
	if st.NTS.Channel == slot.Channel87B {
		ant = st.Antenna87B
	}

	cs := aismsg.CommState{SyncState: st.SyncState}
	switch msgType {
	case 1, 2:
		timeout, finite := st.NTS.Timeout()
		if !finite {
			timeout = 0
		}
		cs.SlotTimeout = timeout
		switch timeout {
		case 3, 5, 7:
			cs.RecvStations = st.RecvStations
		case 2, 4, 6:
			cs.SlotNumber = uint64(st.NTS.Number)
		case 1:
			now := time.Now()
			cs.UTCHour = uint64(now.Hour())
			cs.UTCMinute = uint64(now.Minute())
		case 0:
			cs.Offset = offset
		}
	case 3:
		cs.SlotIncrement = offset
		cs.NumberOfSlots = slotsNbr
		cs.KeepFlag = keepFlag
	}

	frame, err := aismsg.Build(msgType, st.Boat, cs)
	if err != nil {
		return err
	}
	if err := ant.Send(bitcodec.Encode(frame)); err != nil {
		return err
	}
	if l := st.logger(); l != nil {
		l.Info("transmitted message", "message_id", msgType, "slot", st.NTS.Number, "channel", st.NTS.Channel)
	}
	return nil
}

// itdma performs an ITDMA (type-3) or plain transmission on t_s, waiting
// for it to become current first.
func (st *Station) itdma(ctx context.Context, t_s *slot.Slot, msgType int, slotIncrement, numberOfSlots uint64, keepFlag bool) error {
	if err := st.waitForSlot(ctx, t_s); err != nil {
		return err
	}
	if msgType == 3 {
		if err := st.send(msgType, keepFlag, slotIncrement, numberOfSlots); err != nil {
			return err
		}
	} else {
		if err := st.send(msgType, false, 0, 1); err != nil {
			return err
		}
	}
	t_s.Use()
	return nil
}

// netEntry picks an initial NSS via RATDMA and reserves a first NTS,
// retrying the whole selection until the NTS lands within NI slots ahead of
// the current slot.
func (st *Station) netEntry(ctx context.Context) error {
	for {
		chn := slot.Channel87B
		if rand.Intn(2) == 1 {
			chn = slot.Channel88B
		}
		nss, err := st.ratdmaSelection(ctx, chn)
		if err != nil {
			return err
		}
		st.NSS, st.NS = nss, nss

		nts, err := st.setNextNTS(ctx)
		if err != nil {
			return err
		}
		st.NTS = nts

		if st.Map.ComputeSlotOffset(st.NTS, nil) <= st.NI {
			break
		}
	}
	return st.waitForNTS(ctx)
}

// firstFrame negotiates the station's steady-state NTS by transmitting
// provisional ITDMA type-3 frames until a candidate settles with a zero
// offset relative to the reference NTS.
func (st *Station) firstFrame(ctx context.Context) error {
	st.TCounter++
	refNTS := st.NTS

	for {
		st.setNextNS()
		nextNTS, err := st.setNextNTS(ctx)
		if err != nil {
			return err
		}

		var offset uint64
		if st.Map.ComputeAbsoluteSlotDistance(nextNTS, refNTS) >= st.SI {
			offset = uint64(st.Map.ComputeSlotOffset(nextNTS, st.NTS))
		}

		if err := st.itdma(ctx, st.NTS, 3, offset, 1, true); err != nil {
			return err
		}
		st.TCounter++

		if offset != 0 {
			st.NTS = nextNTS
			continue
		}
		nextNTS.Release()
		st.NTS = refNTS
		st.TCounter--
		return nil
	}
}

// continuousLoop runs one frame per iteration until ctx is cancelled,
// alternating type-5 static reports (every msg5Interval) with type-1
// position reports otherwise.
func (st *Station) continuousLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := slotclock.Timestamp(time.Now())
		msgType := 1
		if st.LastMsg5Ts == nil || now-*st.LastMsg5Ts >= msg5Interval.Seconds() {
			ts := now
			st.LastMsg5Ts = &ts
			msgType = 5
		}

		if err := st.continuousFrame(ctx, msgType); err != nil {
			return err
		}
		if err := sleepCtx(ctx, sleepTime); err != nil {
			return err
		}
	}
}

func (st *Station) continuousFrame(ctx context.Context, msgType int) error {
	if st.getNextNTS(0) == nil {
		st.TCounter++
		st.setNextNS()
		nextNTS, err := st.setNextNTS(ctx)
		if err != nil {
			return err
		}
		offset := uint64(st.Map.ComputeSlotOffset(nextNTS, st.NTS))
		if err := st.waitForNTS(ctx); err != nil {
			return err
		}
		if err := st.itdma(ctx, st.NTS, 3, offset, 1, true); err != nil {
			return err
		}
		st.NTS = nextNTS
		return nil
	}

	if msgType == 5 {
		if err := st.waitForNTS(ctx); err != nil {
			return err
		}
		if err := st.send(msgType, false, 0, 1); err != nil {
			return err
		}
		st.NTS.Use()
		st.TCounter++
		st.setNextNS()
		st.NTS = st.getNextNTS(0)
		return nil
	}

	// msgType is 1 or 2: SOTDMA communication-state handling.
	if err := st.waitForNTS(ctx); err != nil {
		return err
	}
	timeout, finite := st.NTS.Timeout()
	if finite && timeout == 0 {
		startSI := ringMod(st.NS.Number - st.SI/2)
		chn := st.NTS.Channel
		available := st.Map.ScanForFreeSlots(st.SI, &startSI, 1, &chn)
		for len(available) == 0 {
			if err := sleepCtx(ctx, sleepTime); err != nil {
				return err
			}
			available = st.Map.ScanForFreeSlots(st.SI, &startSI, 1, &chn)
		}
		newNTS := available[rand.Intn(len(available))]
		offset := uint64(st.Map.ComputeSlotOffset(newNTS, nil))

		if err := st.send(msgType, false, offset, 1); err != nil {
			return err
		}
		st.NTS.Use()
		st.TCounter++
		st.setNextNS()
		st.NTS = st.getNextNTS(0)
		newNTS.Book(st.Boat.MMSI, randTimeout(st.TMOMin, st.TMOMax), false)
		return nil
	}

	if err := st.send(msgType, false, 0, 1); err != nil {
		return err
	}
	st.NTS.Use()
	st.TCounter++
	st.setNextNS()
	st.NTS = st.getNextNTS(0)
	return nil
}

// SOTDMAChangeRr is an extension point for runtime rate changes: recompute
// NI/SI from a new repetition rate and rerun the first-frame negotiation.
// Untested against live traffic; nothing else depends on it.
func (st *Station) SOTDMAChangeRr(ctx context.Context, newRI uint16) error {
	if err := st.waitForNTS(ctx); err != nil {
		return err
	}
	if l := st.logger(); l != nil {
		l.Info("changing transmission rate", "from", st.RI, "to", newRI)
	}
	st.NSS = st.NS
	st.RI = newRI
	st.NI = slotsPerMinute * int(st.RI) / 60
	st.SI = int(0.2 * float64(st.NI))
	return st.firstFrame(ctx)
}

// HandleTransmission decodes and applies one received transport payload:
// it updates the boat registry and performs the per-type slot bookkeeping
// described by the reception handler contract. Malformed frames and
// transmissions from this station's own MMSI are dropped silently (after
// being logged, for the former).
func (st *Station) HandleTransmission(payload []byte, chn slot.Channel) {
	bits := bitcodec.Decode(payload)
	fields, err := aismsg.Parse(bits)
	if err != nil {
		switch {
		case errors.Is(err, aismsg.ErrUnknownMessageType):
			if l := st.logger(); l != nil {
				l.Info("dropped transmission of unknown message type")
			}
		case errors.Is(err, aismsg.ErrCorruptedMessage):
			if l := st.logger(); l != nil {
				l.Info("dropped corrupted transmission")
			}
		default:
			if l := st.logger(); l != nil {
				l.Info("dropped unparseable transmission", "error", err)
			}
		}
		return
	}

	mmsi := fields.Int("mmsi")
	if uint32(mmsi) == st.Boat.MMSI {
		return
	}

	st.Registry.Upsert(fields)

	var tS *slot.Slot
	if chn == slot.Channel87B {
		tS = st.Map.Current87B()
	} else {
		tS = st.Map.Current88B()
	}

	if owner, hasOwner := tS.Owner(); hasOwner && owner != uint32(mmsi) {
		return
	}

	if _, finite := tS.Timeout(); finite {
		tS.Use()
	} else {
		tS.MarkAsUsed()
	}

	messageID := fields.Int("message_id")
	switch messageID {
	case 1, 2:
		slotTimeout := fields.Int("slot_timeout")
		_, hasOwner := tS.Owner()
		_, finite := tS.Timeout()
		switch {
		case !hasOwner && slotTimeout > 0:
			tS.Book(uint32(mmsi), int8(slotTimeout), false)
		case !finite && slotTimeout > 0:
			tS.SetTimeout(int8(slotTimeout))
		case !finite && slotTimeout == 0:
			tS.Release()
		}
		if slotTimeout == 0 {
			rsvS := st.Map.ComputeOffsetSlot(tS, int(fields.Int("slot_offset")))
			rsvS.Book(uint32(mmsi), 0, false)
			tS.Release()
		}
	case 3:
		keepFlag := fields.Int("keep_flag")
		_, hasOwner := tS.Owner()
		switch {
		case keepFlag == 0:
			tS.Release()
		case !hasOwner:
			tS.Book(uint32(mmsi), slot.NoTimeout, false)
		}
		if slotIncrement := fields.Int("slot_increment"); slotIncrement > 0 {
			rsvIdx := (tS.Number + int(slotIncrement)) % slotsPerMinute
			if tS.Channel == slot.Channel87B {
				rsvIdx += slotsPerMinute
			}
			st.Map.Slot(rsvIdx).Book(uint32(mmsi), slot.NoTimeout, false)
		}
	case 5:
		// Static/voyage data carries no slot reservation semantics.
	}

	if l := st.logger(); l != nil {
		l.Info("received transmission", "message_id", messageID, "mmsi", mmsi)
	}
}
