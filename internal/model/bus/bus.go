package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPatch marks an update that would leave a bus in an invalid state.
var ErrInvalidPatch = errors.New("invalid bus update")

// Status is the service state reported for a bus.
type Status string

const (
	OnTime  Status = "On Time"
	Delayed Status = "Delayed"
	Planned Status = "Planned"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case OnTime, Delayed, Planned:
		return true
	default:
		return false
	}
}

// ScheduleStop is one timetable row of a route.
type ScheduleStop struct {
	Time string `json:"time"`
	Stop string `json:"stop"`
}

// Bus is a tracked vehicle on a named route.
type Bus struct {
	ID              string `json:"id"`
	Route           string `json:"route"`
	CurrentLocation string `json:"currentLocation"`
	Status          Status `json:"status"`
	// ETA is in minutes and nil while the bus is Planned.
	ETA      *int           `json:"eta"`
	Schedule []ScheduleStop `json:"schedule"`
	// Capacity is percent full, 0 when not reported.
	Capacity    int       `json:"capacity"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Patch carries the optional fields of a bus update. Nil fields are left
// untouched.
type Patch struct {
	Route           *string        `json:"route,omitempty"`
	CurrentLocation *string        `json:"currentLocation,omitempty"`
	Status          *Status        `json:"status,omitempty"`
	ETA             OptionalInt    `json:"eta"`
	Schedule        []ScheduleStop `json:"schedule,omitempty"`
	Capacity        *int           `json:"capacity,omitempty"`
}

// OptionalInt distinguishes an absent JSON field from an explicit null so a
// patch can clear the eta of a bus going back to Planned.
type OptionalInt struct {
	Set   bool
	Value *int
}

// UnmarshalJSON records that the field was present.
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON writes the value, or null when unset.
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// Validate checks each field of the patch on its own. Merge checks the
// combined result.
func (p Patch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, *p.Status)
	}
	if p.ETA.Value != nil && *p.ETA.Value < 0 {
		return fmt.Errorf("%w: eta must not be negative", ErrInvalidPatch)
	}
	if p.Capacity != nil && (*p.Capacity < 0 || *p.Capacity > 100) {
		return fmt.Errorf("%w: capacity must be within 0-100, got %d", ErrInvalidPatch, *p.Capacity)
	}
	if p.Schedule != nil && len(p.Schedule) == 0 {
		return fmt.Errorf("%w: schedule must not be empty", ErrInvalidPatch)
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Route == nil && p.CurrentLocation == nil && p.Status == nil &&
		!p.ETA.Set && p.Schedule == nil && p.Capacity == nil
}

// Merge returns a copy of b with the patch applied and LastUpdated set to
// now. Moving a bus to Planned clears its ETA unless the patch sets one;
// a Planned bus carrying an ETA is rejected with ErrInvalidPatch.
func (p Patch) Merge(b Bus, now time.Time) (Bus, error) {
	if err := p.Validate(); err != nil {
		return Bus{}, err
	}

	if p.Route != nil {
		b.Route = *p.Route
	}
	if p.CurrentLocation != nil {
		b.CurrentLocation = *p.CurrentLocation
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.ETA.Set {
		b.ETA = copyInt(p.ETA.Value)
	} else if p.Status != nil && *p.Status == Planned {
		b.ETA = nil
	}
	if p.Schedule != nil {
		b.Schedule = append([]ScheduleStop(nil), p.Schedule...)
	}
	if p.Capacity != nil {
		b.Capacity = *p.Capacity
	}

	if b.Status == Planned && b.ETA != nil {
		return Bus{}, fmt.Errorf("%w: a planned bus has no eta", ErrInvalidPatch)
	}

	b.LastUpdated = now
	return b, nil
}

// Clone returns a deep copy so callers cannot alias store state.
func (b Bus) Clone() Bus {
	b.ETA = copyInt(b.ETA)
	b.Schedule = append([]ScheduleStop(nil), b.Schedule...)
	return b
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IntPtr is a small helper for literals.
func IntPtr(v int) *int { return &v }
