// Package slotsmap owns the combined 4500-entry dual-channel slot ring
// (indices [0,2250) on 87B, [2250,4500) on 88B), the windowed queries the
// station state machine builds its scheduling decisions on, and the
// background task that expires unused reservations.
package slotsmap

import (
	"context"
	"math/rand"
	"time"

	"aisnet/slot"
	"aisnet/slotclock"
)

const slotsPerMinute = slotclock.SlotsPerMinute

// SlotsMap is a fixed-length array of 4500 Slots, created once at station
// startup and never resized; its entries are mutated in place, never
// replaced.
type SlotsMap struct {
	slots [2 * slotsPerMinute]*slot.Slot
}

// New allocates a fresh SlotsMap with every slot free.
func New() *SlotsMap {
	m := &SlotsMap{}
	for i := range m.slots {
		m.slots[i] = slot.New(i)
	}
	return m
}

// Slot returns the slot at the given absolute index (0..4499).
func (m *SlotsMap) Slot(i int) *slot.Slot {
	return m.slots[i]
}

// CurrentSlots returns the two slots (87B, 88B) active on the wall clock
// right now.
func (m *SlotsMap) CurrentSlots() (s87, s88 *slot.Slot) {
	i87, i88 := slotclock.CurrentIndices()
	return m.slots[i87], m.slots[i88]
}

// Current87B is the shorthand used throughout the station for
// CurrentSlots()'s first element.
func (m *SlotsMap) Current87B() *slot.Slot {
	s, _ := m.CurrentSlots()
	return s
}

// Current88B is the shorthand used throughout the station for
// CurrentSlots()'s second element.
func (m *SlotsMap) Current88B() *slot.Slot {
	_, s := m.CurrentSlots()
	return s
}

// ComputeSlotOffset returns the non-negative forward distance, on the
// minute ring, from s0 to s1. When s0 is nil the current 87B slot is used.
func (m *SlotsMap) ComputeSlotOffset(s1, s0 *slot.Slot) int {
	if s0 == nil {
		s0 = m.Current87B()
	}
	a := s1.Number % slotsPerMinute
	b := s0.Number % slotsPerMinute
	return ((a-b)%slotsPerMinute + slotsPerMinute) % slotsPerMinute
}

// ComputeAbsoluteSlotDistance returns the unsigned minute-scale difference
// between two slot indices, collapsing channel halves onto the same ring.
// When s1 is nil the current 87B slot is used.
func (m *SlotsMap) ComputeAbsoluteSlotDistance(s0, s1 *slot.Slot) int {
	if s1 == nil {
		s1 = m.Current87B()
	}
	a := s0.Number % slotsPerMinute
	b := s1.Number % slotsPerMinute
	if a > b {
		return a - b
	}
	return b - a
}

// ComputeOffsetSlot returns the slot found by advancing s by delta slots on
// the minute ring, re-channelled back onto s's own channel.
func (m *SlotsMap) ComputeOffsetSlot(s *slot.Slot, delta int) *slot.Slot {
	si := ((s.Number+delta)%slotsPerMinute + slotsPerMinute) % slotsPerMinute
	if s.Channel == slot.Channel88B {
		si += slotsPerMinute
	}
	return m.slots[si]
}

// ComputeSlotsRange returns the slots spanning [startSI, endSI) on chn,
// minute-ring. When startSI > endSI, the range wraps as
// [startSI, 2250) + [0, endSI+1): the wrapped second half keeps the
// boundary slot, which callers depend on and the boundary test pins down.
func (m *SlotsMap) ComputeSlotsRange(chn slot.Channel, startSI, endSI int) []*slot.Slot {
	startSI = ((startSI % slotsPerMinute) + slotsPerMinute) % slotsPerMinute
	endSI = ((endSI % slotsPerMinute) + slotsPerMinute) % slotsPerMinute

	base := 0
	if chn == slot.Channel88B {
		base = slotsPerMinute
	}

	var indices []int
	if startSI <= endSI {
		for i := startSI; i < endSI; i++ {
			indices = append(indices, i)
		}
	} else {
		for i := startSI; i < slotsPerMinute; i++ {
			indices = append(indices, i)
		}
		for i := 0; i < endSI+1; i++ {
			indices = append(indices, i)
		}
	}

	out := make([]*slot.Slot, len(indices))
	for i, si := range indices {
		out[i] = m.slots[base+si]
	}
	return out
}

// ExtractAvailableSlots filters ss down to the currently-unowned slots.
func ExtractAvailableSlots(ss []*slot.Slot) []*slot.Slot {
	out := make([]*slot.Slot, 0, len(ss))
	for _, s := range ss {
		if _, ok := s.Owner(); !ok {
			out = append(out, s)
		}
	}
	return out
}

// GetOwnedSlots groups currently-owned slots by owner MMSI, restricted to
// mmsis when non-empty, each group sorted by minute-ring index.
func (m *SlotsMap) GetOwnedSlots(mmsis []uint32) map[uint32][]*slot.Slot {
	allow := func(uint32) bool { return true }
	if len(mmsis) > 0 {
		set := make(map[uint32]bool, len(mmsis))
		for _, id := range mmsis {
			set[id] = true
		}
		allow = func(id uint32) bool { return set[id] }
	}

	out := make(map[uint32][]*slot.Slot)
	for _, s := range m.slots {
		owner, ok := s.Owner()
		if !ok || !allow(owner) {
			continue
		}
		out[owner] = append(out[owner], s)
	}
	for owner, ss := range out {
		sorted := append([]*slot.Slot(nil), ss...)
		sortByMinuteIndex(sorted)
		out[owner] = sorted
	}
	return out
}

func sortByMinuteIndex(ss []*slot.Slot) {
	key := func(s *slot.Slot) int {
		if s.Channel == slot.Channel87B {
			return s.Number
		}
		return s.Number - slotsPerMinute
	}
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && key(ss[j-1]) > key(ss[j]); j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// ScanForFreeSlots collects contiguous free slots around a reference index.
// It considers both channels within a window of `length` slots starting at
// refSI (defaulting to the current 87B index), requires a channel to carry
// at least max(sCnt, 4) candidates to qualify, prefers chn when it
// qualifies, otherwise picks uniformly between qualifying channels, then
// returns a uniformly-chosen contiguous run of sCnt slots from the chosen
// channel's flat candidate list (sorted by slot number). Returns nil when
// no channel qualifies.
func (m *SlotsMap) ScanForFreeSlots(length int, refSI *int, sCnt int, chn *slot.Channel) []*slot.Slot {
	ref := m.Current87B().Number
	if refSI != nil {
		ref = ((*refSI % slotsPerMinute) + slotsPerMinute) % slotsPerMinute
	}
	endSI := ((ref+length)%slotsPerMinute + slotsPerMinute) % slotsPerMinute

	available := [2][]*slot.Slot{
		ExtractAvailableSlots(m.ComputeSlotsRange(slot.Channel87B, ref, endSI)),
		ExtractAvailableSlots(m.ComputeSlotsRange(slot.Channel88B, ref, endSI)),
	}

	minCandidates := sCnt
	if minCandidates < 4 {
		minCandidates = 4
	}

	var qualifying []int
	for i := 0; i < 2; i++ {
		if len(available[i]) >= minCandidates {
			qualifying = append(qualifying, i)
		}
	}
	if len(qualifying) == 0 {
		return nil
	}

	chosen := -1
	if chn != nil {
		want := 0
		if *chn == slot.Channel88B {
			want = 1
		}
		for _, q := range qualifying {
			if q == want {
				chosen = want
				break
			}
		}
	}
	if chosen == -1 {
		chosen = qualifying[rand.Intn(len(qualifying))]
	}

	pool := available[chosen]
	if len(pool) < sCnt {
		return nil
	}
	start := rand.Intn(len(pool) - sCnt + 1)
	sel := append([]*slot.Slot(nil), pool[start:start+sCnt]...)
	sortByAbsoluteNumber(sel)
	return sel
}

func sortByAbsoluteNumber(ss []*slot.Slot) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1].Number > ss[j].Number; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// ScanForOwnedSlots returns the slots owned by mmsi inside a window of
// `length` slots on both channels, starting at refSI (default: current 87B
// index).
func (m *SlotsMap) ScanForOwnedSlots(length int, refSI *int, mmsi uint32) []*slot.Slot {
	ref := m.Current87B().Number
	if refSI != nil {
		ref = ((*refSI % slotsPerMinute) + slotsPerMinute) % slotsPerMinute
	}
	endSI := ((ref+length)%slotsPerMinute + slotsPerMinute) % slotsPerMinute

	candidates := append(m.ComputeSlotsRange(slot.Channel87B, ref, endSI),
		m.ComputeSlotsRange(slot.Channel88B, ref, endSI)...)

	var out []*slot.Slot
	for _, s := range candidates {
		if owner, ok := s.Owner(); ok && owner == mmsi {
			out = append(out, s)
		}
	}
	return out
}

// RunCleanup runs the background expiry loop until ctx is cancelled. On
// each minute change it runs ExpirePass over every slot. The loop polls at a short interval to avoid busy-waiting
// while staying responsive to the minute boundary.
func (m *SlotsMap) RunCleanup(ctx context.Context) {
	lastMinute := time.Now().Minute()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if now.Minute() == lastMinute {
				continue
			}
			lastMinute = now.Minute()
			m.ExpirePass()
		}
	}
}

// ExpirePass applies one minute-boundary expiry sweep over every slot: an
// owned slot whose usage counter is unset (NoFramesSinceLastUse) is
// released, a slot idle for 3 frames is released, a free slot with an unset
// counter is left alone, and every other slot's counter advances by one
// frame.
func (m *SlotsMap) ExpirePass() {
	for _, s := range m.slots {
		switch s.FramesSinceLastUse() {
		case slot.NoFramesSinceLastUse:
			if _, ok := s.Owner(); ok {
				s.Release()
			}
		case 3:
			s.Release()
		default:
			s.IncrementFramesSinceLastUse()
		}
	}
}
