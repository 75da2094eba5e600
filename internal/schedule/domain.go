package schedule

import (
	"strconv"
	"time"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/etag"
)

// ResourceKind names weekly schedules inside version tags.
const ResourceKind = "schedule"

// Shift is one serving assignment within the week.
type Shift struct {
	Day   string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Meal  string `json:"meal" validate:"required,oneof=breakfast lunch dinner"`
	Staff string `json:"staff" validate:"required,min=1"`
	Notes string `json:"notes"`
}

// WeekSchedule is the serving roster one department runs during one ISO
// week, versioned for optimistic locking.
type WeekSchedule struct {
	ID         int64     `json:"-"`
	TenantID   int64     `json:"tenant_id"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	Week       int       `json:"week"`
	Shifts     []Shift   `json:"shifts"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tag returns the weak entity tag for the schedule's current version.
func (s *WeekSchedule) Tag() etag.Tag {
	return etag.NewTag(ResourceKind, s.Version,
		strconv.FormatInt(s.TenantID, 10),
		s.Department,
		strconv.Itoa(s.Year),
		strconv.Itoa(s.Week))
}
