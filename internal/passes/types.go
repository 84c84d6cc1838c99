package passes

import (
	"fmt"
	"time"

	"github.com/Forken21/botsat/internal/transform"
)

// EventKind identifies a point of interest within a pass.
type EventKind int

const (
	Rise EventKind = iota
	Culmination
	Set
)

func (k EventKind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Culmination:
		return "culmination"
	case Set:
		return "set"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "rise":
		*k = Rise
	case "culmination":
		*k = Culmination
	case "set":
		*k = Set
	default:
		return fmt.Errorf("unknown event kind %q", b)
	}
	return nil
}

// Event is a pass event and the look angle at that instant.
type Event struct {
	Kind         EventKind `json:"kind"`
	Time         time.Time `json:"time"`
	AzimuthDeg   float64   `json:"azimuth"`
	ElevationDeg float64   `json:"elevation"`
	RangeKm      float64   `json:"range_km"`
}

func newEvent(kind EventKind, la transform.LookAngle) Event {
	return Event{
		Kind:         kind,
		Time:         la.Time,
		AzimuthDeg:   la.AzimuthDeg,
		ElevationDeg: la.ElevationDeg,
		RangeKm:      la.RangeKm,
	}
}

// Pass describes a single satellite pass over an observer location.
type Pass struct {
	Satellite        string        `json:"satellite"`
	Rise             Event         `json:"rise"`
	Culmination      Event         `json:"culmination"`
	Set              Event         `json:"set"`
	Duration         time.Duration `json:"-"`
	DurationSeconds  float64       `json:"duration_seconds"`
	PeakElevationDeg float64       `json:"max_elevation"`
}

func newPass(name string, rise, culm, set transform.LookAngle) Pass {
	d := set.Time.Sub(rise.Time)
	return Pass{
		Satellite:        name,
		Rise:             newEvent(Rise, rise),
		Culmination:      newEvent(Culmination, culm),
		Set:              newEvent(Set, set),
		Duration:         d,
		DurationSeconds:  d.Seconds(),
		PeakElevationDeg: culm.ElevationDeg,
	}
}
