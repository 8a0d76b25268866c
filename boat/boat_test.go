package boat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aisnet/boat"
)

func TestNewDefaults(t *testing.T) {
	b := boat.New(227006760, "callsign", "vessel")
	assert.EqualValues(t, 227006760, b.IntField("mmsi"))
	assert.Equal(t, "vessel", b.StrField("name"))
	assert.EqualValues(t, 511, b.IntField("true_heading"))
}

func TestLatLngReflectsIntegerFields(t *testing.T) {
	b := boat.New(1, "a", "b")
	b.Latitude = 0
	b.Longitude = 0
	ll := b.LatLng()
	assert.InDelta(t, 0, ll.Lat.Degrees(), 1e-9)
	assert.InDelta(t, 0, ll.Lng.Degrees(), 1e-9)
}

func TestUnknownFieldNamesReturnZeroValue(t *testing.T) {
	b := boat.New(1, "a", "b")
	assert.EqualValues(t, 0, b.IntField("not_a_field"))
	assert.Equal(t, "", b.StrField("not_a_field"))
}
