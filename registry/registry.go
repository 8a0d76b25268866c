// Package registry tracks the last-known snapshot of every boat this
// station has observed transmitting, keyed by MMSI. Entries are created on
// first observation and updated in place thereafter through a
// modifiable-field allowlist; the baseline policy never evicts them.
package registry

import (
	"strconv"

	"github.com/patrickmn/go-cache"

	"aisnet/aismsg"
)

// modifiableFields lists the parsed field names applied when updating an
// existing entry; anything else from the frame is kept from first insert.
var modifiableFields = []string{
	"mmsi", "imo_number", "call_sign", "name",
	"type_of_ship_and_cargo_type", "position_accuracy", "ais_version",
	"type_of_epf_device", "A", "B", "C", "D", "destination",
	"navigational_status", "time_stamp", "eta_month", "eta_day",
	"eta_hour", "eta_minute", "maximum_present_static_draught", "dte",
	"spare", "special_maneuvre_indicator", "raim_flag",
	"latitude", "longitude", "course_over_ground", "speed_over_ground",
	"rate_of_turn", "true_heading",
}

// Snapshot is the last-known field set reported by a boat, copied out of a
// parsed aismsg.Fields so registry entries are independent of the message
// that produced them.
type Snapshot map[string]interface{}

// Int returns the named field as an unsigned integer, or zero when the
// field is absent or non-numeric.
func (s Snapshot) Int(name string) uint64 {
	v, _ := s[name].(uint64)
	return v
}

// Str returns the named field as text, or "" when absent.
func (s Snapshot) Str(name string) string {
	v, _ := s[name].(string)
	return v
}

// Registry maps MMSI to the boat's last-known Snapshot. It is backed by
// a go-cache store configured with no expiration: a thread-safe key/value
// map used as an always-resident store rather than a TTL cache.
type Registry struct {
	c *cache.Cache
}

// New constructs an empty, non-evicting registry.
func New() *Registry {
	return &Registry{c: cache.New(cache.NoExpiration, cache.NoExpiration)}
}

func key(mmsi uint64) string {
	return strconv.FormatUint(mmsi, 10)
}

// HasBoat reports whether mmsi has a registered snapshot.
func (r *Registry) HasBoat(mmsi uint64) bool {
	_, ok := r.c.Get(key(mmsi))
	return ok
}

// AddBoat inserts a new snapshot built from the full parsed field set.
func (r *Registry) AddBoat(fields aismsg.Fields) {
	snap := Snapshot{}
	for k, v := range fields {
		snap[k] = v
	}
	r.c.Set(key(fields.Int("mmsi")), snap, cache.NoExpiration)
}

// UpdateBoat merges the modifiable fields of newInfo into the existing
// entry for mmsi. It is a no-op if mmsi has no existing entry.
func (r *Registry) UpdateBoat(mmsi uint64, newInfo aismsg.Fields) {
	existingRaw, ok := r.c.Get(key(mmsi))
	if !ok {
		return
	}
	existing := existingRaw.(Snapshot)
	for _, name := range modifiableFields {
		if v, present := newInfo[name]; present {
			existing[name] = v
		}
	}
	r.c.Set(key(mmsi), existing, cache.NoExpiration)
}

// Upsert is the reception handler's single entry point: update in place if
// mmsi is known, otherwise insert a new entry.
func (r *Registry) Upsert(fields aismsg.Fields) {
	mmsi := fields.Int("mmsi")
	if r.HasBoat(mmsi) {
		r.UpdateBoat(mmsi, fields)
	} else {
		r.AddBoat(fields)
	}
}

// Get returns the last-known snapshot for mmsi, if any.
func (r *Registry) Get(mmsi uint64) (Snapshot, bool) {
	v, ok := r.c.Get(key(mmsi))
	if !ok {
		return nil, false
	}
	return v.(Snapshot), true
}

// RemoveBoat deletes mmsi's entry, exposed for completeness though the
// baseline policy never calls it automatically.
func (r *Registry) RemoveBoat(mmsi uint64) {
	r.c.Delete(key(mmsi))
}

// Count returns the number of registered boats.
func (r *Registry) Count() int {
	return r.c.ItemCount()
}

// MMSIs returns the MMSI of every currently registered boat, for callers
// (the dashboard, diagnostics) that need to enumerate the registry rather
// than look up a single known MMSI.
func (r *Registry) MMSIs() []uint64 {
	items := r.c.Items()
	out := make([]uint64, 0, len(items))
	for k := range items {
		mmsi, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, mmsi)
	}
	return out
}
