// Package slot implements the single-reservation entity shared by the two
// VHF channels' TDMA grids: ownership, countdown timeout, and the
// background-cleanup usage counter, each serialised by the slot's own lock.
package slot

import (
	"sync"

	"aisnet/slotclock"
)

// Channel identifies which of the two VHF channels a slot number belongs to.
type Channel string

const (
	Channel87B Channel = "87B"
	Channel88B Channel = "88B"
)

// NoTimeout marks an unlimited reservation.
const NoTimeout = -1

// NoFramesSinceLastUse is the unset value of the usage counter: a fresh
// slot starts with it and Release restores it. Book and MarkAsUsed both
// set the counter to -1.
const NoFramesSinceLastUse = -2

// Slot is a single reservable entry in the combined 4500-slot map.
// Channel is a pure function of Number, fixed at construction.
type Slot struct {
	mu sync.Mutex

	Number  int
	Channel Channel

	assigned           bool
	owner              uint32
	hasOwner           bool
	timeout            int8 // NoTimeout when unlimited
	framesSinceLastUse int8 // NoFramesSinceLastUse when unset
}

// New constructs a free slot for the given absolute index in [0, 4500).
func New(number int) *Slot {
	chn := Channel87B
	if number >= slotclock.SlotsPerMinute {
		chn = Channel88B
	}
	return &Slot{
		Number:             number,
		Channel:            chn,
		timeout:            NoTimeout,
		framesSinceLastUse: NoFramesSinceLastUse,
	}
}

// snapshot is a value copy of the mutable fields, safe to read without the
// lock once copied out.
type snapshot struct {
	assigned bool
	owner    uint32
	hasOwner bool
	timeout  int8
	frames   int8
}

func (s *Slot) read() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{s.assigned, s.owner, s.hasOwner, s.timeout, s.framesSinceLastUse}
}

// Owner returns the current owning MMSI and whether the slot is owned.
func (s *Slot) Owner() (mmsi uint32, ok bool) {
	snap := s.read()
	return snap.owner, snap.hasOwner
}

// Timeout returns the current countdown value and whether it is finite.
func (s *Slot) Timeout() (timeout int8, finite bool) {
	snap := s.read()
	return snap.timeout, snap.timeout != NoTimeout
}

// Assigned reports whether the reservation was flagged as network-assigned.
func (s *Slot) Assigned() bool {
	return s.read().assigned
}

// FramesSinceLastUse returns the raw counter value (NoFramesSinceLastUse
// when unset, as on a fresh or just-released slot).
func (s *Slot) FramesSinceLastUse() int8 {
	return s.read().frames
}

// IsCurrent reports whether this slot's Number is one of the two slot
// indices (87B, 88B) active on the wall clock right now.
func (s *Slot) IsCurrent() bool {
	i87, i88 := slotclock.CurrentIndices()
	return s.Number == i87 || s.Number == i88
}

// MarkAsUsed resets the frames-since-last-use counter to -1, signalling
// recent activity to the background cleanup pass.
func (s *Slot) MarkAsUsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesSinceLastUse = -1
}

// Book reserves the slot for mmsi if and only if it is currently free. It
// is a silent no-op when the slot already has an owner, by design: callers
// rely on Book as the race-closing check after an unlocked scan.
func (s *Slot) Book(mmsi uint32, timeout int8, assigned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasOwner {
		return
	}
	s.owner = mmsi
	s.hasOwner = true
	s.timeout = timeout
	s.assigned = assigned
	s.framesSinceLastUse = -1
}

// BookUnlimited books the slot with an unlimited (never-expiring) timeout.
func (s *Slot) BookUnlimited(mmsi uint32, assigned bool) {
	s.Book(mmsi, NoTimeout, assigned)
}

// Use consumes one usage cycle: marks the slot used, then applies the
// timeout's countdown semantics (unlimited: no-op; zero: release; else
// decrement).
func (s *Slot) Use() {
	s.mu.Lock()
	s.framesSinceLastUse = -1
	switch {
	case s.timeout == NoTimeout:
	case s.timeout == 0:
		s.releaseLocked()
	default:
		s.timeout--
	}
	s.mu.Unlock()
}

// Release clears ownership, timeout, assignment, and the usage counter.
func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Slot) releaseLocked() {
	s.hasOwner = false
	s.owner = 0
	s.timeout = NoTimeout
	s.assigned = false
	s.framesSinceLastUse = NoFramesSinceLastUse
}

// IncrementFramesSinceLastUse advances the background cleanup counter by
// one frame of inactivity. Called by the SlotsMap cleanup pass only.
func (s *Slot) IncrementFramesSinceLastUse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesSinceLastUse++
}

// SetTimeout overrides the timeout field directly. Used by the reception
// handler's "previously unlimited reservation becomes time-bounded" case,
// which is a direct field write rather than a Use()/Book() cycle.
func (s *Slot) SetTimeout(timeout int8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
}

func (s *Slot) String() string {
	snap := s.read()
	if !snap.hasOwner {
		return "[slot " + ChannelPrefix(s) + " free]"
	}
	return "[slot " + ChannelPrefix(s) + "]"
}

// ChannelPrefix is a small debug helper kept separate from String so tests
// can assert on the channel independent of owner formatting.
func ChannelPrefix(s *Slot) string {
	return string(s.Channel)
}
