// Package boat models the simulated vessel whose static identity and
// dynamic kinematics feed the AIS station: position, heading, speed, and
// voyage/static fields, plus the background integration loop that moves
// the boat along its reported course.
package boat

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Defaults mirror the simulator's reference boat.
const (
	DefaultMMSI                        = 123456789
	DefaultTypeOfShipAndCargo          = 255
	DefaultTypeOfEPFDevice             = 3
	DefaultETAMonth                    = 12
	DefaultETADay                      = 31
	DefaultETAHour                     = 23
	DefaultETAMinute                   = 59
	DefaultMaximumPresentStaticDraught = 255
	DefaultDTE                         = 1
	DefaultRAIMFlag                    = 1
)

// Boat holds every field the message codec reads through FieldSource, plus
// the kinematics state used by the position-integration loop. All fields
// are guarded by mu since both the station's send loop and the background
// updater goroutine read/write them concurrently.
type Boat struct {
	mu sync.Mutex

	// Static / voyage identity.
	MMSI                        uint32
	IMONumber                   uint64
	CallSign                    string
	Name                        string
	TypeOfShipAndCargoType      uint64
	PositionAccuracy            uint64
	AISVersion                  uint64
	TypeOfEPFDevice             uint64
	A, B, C, D                  uint64
	Destination                 string
	ETAMonth, ETADay            uint64
	ETAHour, ETAMinute          uint64
	MaximumPresentStaticDraught uint64
	DTE                         uint64
	Spare                       uint64
	SpecialManeuvreIndicator    uint64
	RAIMFlag                    uint64

	// Dynamic fields, updated by the integration loop.
	NavigationalStatus uint64
	TimeStamp          uint64
	Latitude           int64 // 1/10000 minute, signed
	Longitude          int64 // 1/10000 minute, signed
	CourseOverGround   uint64
	SpeedOverGround    uint64
	RateOfTurn         uint64 // AIS-encoded rot, fits the 8-bit wire field
	TrueHeading        uint64
}

// New constructs a Boat with the simulator's reference defaults.
func New(mmsi uint32, callSign, name string) *Boat {
	return &Boat{
		MMSI:                        mmsi,
		CallSign:                    callSign,
		Name:                        name,
		TypeOfShipAndCargoType:      DefaultTypeOfShipAndCargo,
		TypeOfEPFDevice:             DefaultTypeOfEPFDevice,
		Destination:                 "default",
		ETAMonth:                    DefaultETAMonth,
		ETADay:                      DefaultETADay,
		ETAHour:                     DefaultETAHour,
		ETAMinute:                   DefaultETAMinute,
		MaximumPresentStaticDraught: DefaultMaximumPresentStaticDraught,
		DTE:                         DefaultDTE,
		RAIMFlag:                    DefaultRAIMFlag,
		TrueHeading:                 511,
	}
}

// degToAISRot converts a sensor-measured rate of turn (deg/min) into the
// AIS-encoded value: round(4.733 * sqrt(rot)).
func degToAISRot(rotSensor float64) int {
	return int(math.Round(4.733 * math.Sqrt(rotSensor)))
}

// aisRotToDeg inverts degToAISRot: round((rot/4.733)^2).
func aisRotToDeg(rotAIS float64) float64 {
	return math.Round(math.Pow(rotAIS/4.733, 2))
}

// LatLng returns the boat's current position as a geo.s2 LatLng, built from
// the AIS 1/10000-minute integer fields.
func (b *Boat) LatLng() s2.LatLng {
	b.mu.Lock()
	defer b.mu.Unlock()
	latDeg := float64(b.Latitude) / 600000.0
	lonDeg := float64(b.Longitude) / 600000.0
	return s2.LatLng{Lat: s1.Angle(latDeg * math.Pi / 180), Lng: s1.Angle(lonDeg * math.Pi / 180)}
}

// RunKinematics integrates course/speed/rate-of-turn into position and
// heading on a short cadence until ctx is cancelled.
func (b *Boat) RunKinematics(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			b.step(elapsed)
		}
	}
}

func (b *Boat) step(elapsedSeconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cogRad := float64(b.CourseOverGround) * math.Pi / 180
	verticalSpeed := math.Sin(cogRad) * float64(b.SpeedOverGround) * (10.0 / 36.0)
	horizontalSpeed := math.Cos(cogRad) * float64(b.SpeedOverGround) * (10.0 / 36.0)
	degRot := aisRotToDeg(float64(b.RateOfTurn))

	newCOG := math.Mod(float64(b.CourseOverGround)+degRot, 360)
	newLat := math.Mod(float64(b.Latitude)+elapsedSeconds*verticalSpeed, 54000000)
	newLon := math.Mod(float64(b.Longitude)+elapsedSeconds*horizontalSpeed, 108000000)

	b.CourseOverGround = uint64(newCOG)
	b.TrueHeading = uint64(newCOG)
	b.Latitude = int64(math.Round(newLat))
	b.Longitude = int64(math.Round(newLon))
}

// IntField and StrField implement aismsg.FieldSource: a single typed
// switch over the known message field names.
func (b *Boat) IntField(name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch name {
	case "mmsi":
		return uint64(b.MMSI)
	case "imo_number":
		return b.IMONumber
	case "type_of_ship_and_cargo_type":
		return b.TypeOfShipAndCargoType
	case "position_accuracy":
		return b.PositionAccuracy
	case "ais_version":
		return b.AISVersion
	case "type_of_epf_device":
		return b.TypeOfEPFDevice
	case "A":
		return b.A
	case "B":
		return b.B
	case "C":
		return b.C
	case "D":
		return b.D
	case "navigational_status":
		return b.NavigationalStatus
	case "time_stamp":
		return b.TimeStamp
	case "eta_month":
		return b.ETAMonth
	case "eta_day":
		return b.ETADay
	case "eta_hour":
		return b.ETAHour
	case "eta_minute":
		return b.ETAMinute
	case "maximum_present_static_draught":
		return b.MaximumPresentStaticDraught
	case "dte":
		return b.DTE
	case "spare":
		return b.Spare
	case "special_maneuvre_indicator":
		return b.SpecialManeuvreIndicator
	case "raim_flag":
		return b.RAIMFlag
	case "latitude":
		return uint64(uint32(int32(b.Latitude)))
	case "longitude":
		return uint64(uint32(int32(b.Longitude)))
	case "course_over_ground":
		return b.CourseOverGround
	case "speed_over_ground":
		return b.SpeedOverGround
	case "rate_of_turn":
		return b.RateOfTurn
	case "true_heading":
		return b.TrueHeading
	default:
		return 0
	}
}

func (b *Boat) StrField(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch name {
	case "call_sign":
		return b.CallSign
	case "name":
		return b.Name
	case "destination":
		return b.Destination
	default:
		return ""
	}
}
