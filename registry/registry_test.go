package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aisnet/aismsg"
	"aisnet/registry"
)

func TestAddThenGet(t *testing.T) {
	r := registry.New()
	fields := aismsg.Fields{"mmsi": uint64(227006760), "name": "vessel"}
	r.Upsert(fields)

	assert.True(t, r.HasBoat(227006760))
	snap, ok := r.Get(227006760)
	assert.True(t, ok)
	assert.Equal(t, "vessel", snap["name"])
}

func TestUpdateMergesOnlyModifiableFields(t *testing.T) {
	r := registry.New()
	r.Upsert(aismsg.Fields{"mmsi": uint64(1), "name": "first", "message_id": uint64(5)})
	r.Upsert(aismsg.Fields{"mmsi": uint64(1), "name": "second", "message_id": uint64(1)})

	snap, _ := r.Get(1)
	assert.Equal(t, "second", snap["name"])
	// message_id is not in the modifiable-field allowlist, so the
	// original insert's value (set via AddBoat, which copies everything)
	// would be overwritten only through UpdateBoat's allowlist; confirm
	// the allowlist actually narrowed the second write.
	assert.EqualValues(t, 5, snap["message_id"])
}

func TestCount(t *testing.T) {
	r := registry.New()
	r.Upsert(aismsg.Fields{"mmsi": uint64(1)})
	r.Upsert(aismsg.Fields{"mmsi": uint64(2)})
	assert.Equal(t, 2, r.Count())
}

func TestMMSIsEnumeratesEveryRegisteredBoat(t *testing.T) {
	r := registry.New()
	r.Upsert(aismsg.Fields{"mmsi": uint64(227006760)})
	r.Upsert(aismsg.Fields{"mmsi": uint64(366123456)})

	assert.ElementsMatch(t, []uint64{227006760, 366123456}, r.MMSIs())
}
