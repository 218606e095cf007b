package models

import (
	"fmt"
	"sort"
	"time"
)

type DoctorProfile struct {
	ID             int64        `json:"doctor_id"`
	HospitalID     int64        `json:"hospital_id"`
	Name           string       `json:"name"`
	Active         bool         `json:"is_active"`
	TotalMinutes   int          `json:"total_minutes"`
	Break          *BreakWindow `json:"break"`
	Qualifications TreatmentSet `json:"qualified_treatment_ids"`
}

// TimeOfDay is a wall-clock time expressed in seconds since midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// BreakWindow is a recurring unavailable interval. Start after End means the
// window spans midnight.
type BreakWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Contains reports whether at falls inside the window, both ends inclusive.
func (b BreakWindow) Contains(at TimeOfDay) bool {
	if b.Start <= b.End {
		return b.Start <= at && at <= b.End
	}
	return at >= b.Start || at <= b.End
}

type TreatmentSet map[int64]struct{}

func NewTreatmentSet(ids ...int64) TreatmentSet {
	s := make(TreatmentSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s TreatmentSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Missing returns the ids not contained in the set, in input order.
func (s TreatmentSet) Missing(ids []int64) []int64 {
	var missing []int64
	for _, id := range ids {
		if !s.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

func (s TreatmentSet) Covers(ids []int64) bool {
	return len(s.Missing(ids)) == 0
}

// IDs returns the members sorted ascending.
func (s TreatmentSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
