package station_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisnet/aismsg"
	"aisnet/bitcodec"
	"aisnet/boat"
	"aisnet/slot"
	"aisnet/slotclock"
	"aisnet/station"
)

// pinClock freezes the slot clock for the duration of a test so "the
// current slot" cannot advance between the handler call and the
// assertions on it.
func pinClock(t *testing.T) {
	t.Helper()
	fixed := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)
	prev := slotclock.Now
	slotclock.Now = func() time.Time { return fixed }
	t.Cleanup(func() { slotclock.Now = prev })
}

func buildType1Frame(t *testing.T, src *boat.Boat, slotTimeout int8, recvStations uint64) string {
	t.Helper()
	frame, err := aismsg.Build(1, src, aismsg.CommState{
		SlotTimeout:  slotTimeout,
		RecvStations: recvStations,
	})
	require.NoError(t, err)
	return frame
}

func TestHandleTransmissionRegistersSenderAndBooksCurrentSlot(t *testing.T) {
	pinClock(t)
	st := station.NewStation(boat.New(900000001, "HOME", "home boat"), nil)
	peer := boat.New(227006760, "PEER", "peer boat")
	peer.NavigationalStatus = 0
	peer.SpeedOverGround = 42

	frame := buildType1Frame(t, peer, 3, 7)
	st.HandleTransmission(bitcodec.Encode(frame), slot.Channel87B)

	snap, ok := st.Registry.Get(227006760)
	require.True(t, ok)
	assert.EqualValues(t, 42, snap.Int("speed_over_ground"))

	current := st.Map.Current87B()
	owner, hasOwner := current.Owner()
	require.True(t, hasOwner)
	assert.Equal(t, uint32(227006760), owner)
	timeout, finite := current.Timeout()
	require.True(t, finite)
	assert.EqualValues(t, 3, timeout)
}

func TestHandleTransmissionIgnoresOwnMMSI(t *testing.T) {
	self := boat.New(227006760, "HOME", "home boat")
	st := station.NewStation(self, nil)

	frame := buildType1Frame(t, self, 3, 0)
	st.HandleTransmission(bitcodec.Encode(frame), slot.Channel87B)

	assert.Equal(t, 0, st.Registry.Count())
}

func TestHandleTransmissionDropsCorruptedFrameWithoutPanicking(t *testing.T) {
	st := station.NewStation(boat.New(900000001, "HOME", "home boat"), nil)
	peer := boat.New(227006760, "PEER", "peer boat")

	frame := buildType1Frame(t, peer, 3, 0)
	flipped := []byte(frame)
	flipped[60] ^= 1

	assert.NotPanics(t, func() {
		st.HandleTransmission(flipped, slot.Channel87B)
	})
	assert.Equal(t, 0, st.Registry.Count())
}

func TestHandleTransmissionType3BooksIncrementSlot(t *testing.T) {
	pinClock(t)
	st := station.NewStation(boat.New(900000001, "HOME", "home boat"), nil)
	peer := boat.New(227006760, "PEER", "peer boat")

	frame, err := aismsg.Build(3, peer, aismsg.CommState{
		SlotIncrement: 5,
		NumberOfSlots: 1,
		KeepFlag:      true,
	})
	require.NoError(t, err)

	st.HandleTransmission(bitcodec.Encode(frame), slot.Channel88B)

	current := st.Map.Current88B()
	owner, hasOwner := current.Owner()
	require.True(t, hasOwner)
	assert.Equal(t, uint32(227006760), owner)

	// The reservation lands on the *opposite* channel from the one the
	// frame was received on.
	rsvIdx := (current.Number + 5) % 2250
	if current.Channel == slot.Channel87B {
		rsvIdx += 2250
	}
	rsv := st.Map.Slot(rsvIdx)
	rsvOwner, rsvHasOwner := rsv.Owner()
	require.True(t, rsvHasOwner)
	assert.Equal(t, uint32(227006760), rsvOwner)
}
