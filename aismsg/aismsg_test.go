package aismsg_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"aisnet/aismsg"
)

// fixedSource is a FieldSource backed by plain maps, used for build/parse
// round-trip tests where only a handful of fields matter.
type fixedSource struct {
	ints map[string]uint64
	strs map[string]string
}

func (s fixedSource) IntField(name string) uint64 { return s.ints[name] }
func (s fixedSource) StrField(name string) string { return s.strs[name] }

func TestFrameRoundTripType1(t *testing.T) {
	src := fixedSource{ints: map[string]uint64{
		"mmsi":                227006760,
		"navigational_status": 0,
		"rate_of_turn":        0,
		"speed_over_ground":   0,
		"position_accuracy":   0,
		"longitude":           0,
		"latitude":            0,
		"course_over_ground":  0,
		"true_heading":        511,
		"time_stamp":          0,
		"special_maneuvre_indicator": 0,
		"spare":              0,
		"raim_flag":          0,
	}}

	cs := aismsg.CommState{SlotTimeout: 3, RecvStations: 42}

	frame, err := aismsg.Build(1, src, cs)
	require.NoError(t, err)

	parsed, err := aismsg.Parse(frame)
	require.NoError(t, err)

	assert.EqualValues(t, 1, parsed.Int("message_id"))
	assert.EqualValues(t, 227006760, parsed.Int("mmsi"))
	assert.EqualValues(t, 3, parsed.Int("slot_timeout"))
	assert.EqualValues(t, 42, parsed.Int("received_stations"))
}

func TestParseRejectsCorruptedFrame(t *testing.T) {
	src := fixedSource{ints: map[string]uint64{"mmsi": 1}}
	frame, err := aismsg.Build(1, src, aismsg.CommState{SlotTimeout: 0})
	require.NoError(t, err)

	corrupted := []byte(frame)
	// flip a bit inside the payload to break the CRC.
	if corrupted[50] == '0' {
		corrupted[50] = '1'
	} else {
		corrupted[50] = '0'
	}

	_, err = aismsg.Parse(string(corrupted))
	assert.True(t, errors.Is(err, aismsg.ErrCorruptedMessage))
}

func TestParseRejectsUnknownType(t *testing.T) {
	// Build a syntactically valid type-1 frame then overwrite the type
	// field with an unsupported value (4), leaving everything else
	// shaped like a real frame but off the type table.
	src := fixedSource{ints: map[string]uint64{"mmsi": 1}}
	frame, err := aismsg.Build(1, src, aismsg.CommState{SlotTimeout: 0})
	require.NoError(t, err)

	b := []byte(frame)
	copy(b[40:46], "000100") // type 4
	_, err = aismsg.Parse(string(b))
	assert.True(t, errors.Is(err, aismsg.ErrUnknownMessageType))
}

func TestSlotTimeoutOneCarriesUTCHourMinute(t *testing.T) {
	src := fixedSource{ints: map[string]uint64{"mmsi": 1}}
	cs := aismsg.CommState{SlotTimeout: 1, UTCHour: 13, UTCMinute: 45}
	frame, err := aismsg.Build(1, src, cs)
	require.NoError(t, err)

	parsed, err := aismsg.Parse(frame)
	require.NoError(t, err)
	assert.EqualValues(t, 13, parsed.Int("utc_hour"))
	assert.EqualValues(t, 45, parsed.Int("utc_minute"))
}

func TestType3ITDMACommState(t *testing.T) {
	src := fixedSource{ints: map[string]uint64{"mmsi": 1}}
	cs := aismsg.CommState{SlotIncrement: 10, NumberOfSlots: 1, KeepFlag: true}
	frame, err := aismsg.Build(3, src, cs)
	require.NoError(t, err)

	parsed, err := aismsg.Parse(frame)
	require.NoError(t, err)
	assert.EqualValues(t, 10, parsed.Int("slot_increment"))
	assert.EqualValues(t, 1, parsed.Int("keep_flag"))
}

// TestBuildParseRoundTripProperty: parse(build(p)) returns p on every
// encoded field, for arbitrary in-range type-1 field values.
func TestBuildParseRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ints := map[string]uint64{
			"mmsi":                rapid.Uint64Range(0, 1<<30-1).Draw(rt, "mmsi"),
			"navigational_status": rapid.Uint64Range(0, 15).Draw(rt, "nav_status"),
			"rate_of_turn":        rapid.Uint64Range(0, 255).Draw(rt, "rot"),
			"speed_over_ground":   rapid.Uint64Range(0, 1022).Draw(rt, "sog"),
			"course_over_ground":  rapid.Uint64Range(0, 3599).Draw(rt, "cog"),
			"true_heading":        rapid.Uint64Range(0, 511).Draw(rt, "heading"),
			"time_stamp":          rapid.Uint64Range(0, 59).Draw(rt, "time_stamp"),
		}
		cs := aismsg.CommState{
			SlotTimeout:  int8(rapid.IntRange(0, 7).Draw(rt, "slot_timeout")),
			Offset:       rapid.Uint64Range(0, 2249).Draw(rt, "offset"),
			RecvStations: rapid.Uint64Range(0, 16383).Draw(rt, "recv_stations"),
			SlotNumber:   rapid.Uint64Range(0, 4499).Draw(rt, "slot_number"),
			UTCHour:      rapid.Uint64Range(0, 23).Draw(rt, "utc_hour"),
			UTCMinute:    rapid.Uint64Range(0, 59).Draw(rt, "utc_minute"),
		}

		frame, err := aismsg.Build(1, fixedSource{ints: ints}, cs)
		require.NoError(rt, err)

		parsed, err := aismsg.Parse(frame)
		require.NoError(rt, err)

		for name, want := range ints {
			require.EqualValues(rt, want, parsed.Int(name), name)
		}
		require.EqualValues(rt, cs.SlotTimeout, parsed.Int("slot_timeout"))
	})
}

func TestType5StaticDataRoundTrip(t *testing.T) {
	src := fixedSource{
		ints: map[string]uint64{
			"mmsi":       227006760,
			"imo_number": 123,
		},
		strs: map[string]string{
			"call_sign":   "abcdefg",
			"name":        "superbateau",
			"destination": "brest",
		},
	}
	frame, err := aismsg.Build(5, src, aismsg.CommState{})
	require.NoError(t, err)

	parsed, err := aismsg.Parse(frame)
	require.NoError(t, err)
	assert.EqualValues(t, 227006760, parsed.Int("mmsi"))
	assert.Equal(t, "abcdefg", parsed.Str("call_sign"))
	assert.Equal(t, "superbateau", parsed.Str("name"))
	assert.Equal(t, "brest", parsed.Str("destination"))
}
