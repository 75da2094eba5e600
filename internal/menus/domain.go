package menus

import (
	"strconv"
	"time"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/etag"
)

// ResourceKind names week menus inside version tags.
const ResourceKind = "menu"

// DayMenu is one day's planned meals.
type DayMenu struct {
	Day     string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Lunch   string `json:"lunch"`
	Dinner  string `json:"dinner"`
	Dessert string `json:"dessert"`
}

// WeekMenu is the menu one department serves during one ISO week. The
// version column backs the optimistic-lock token; it advances by exactly
// one per successful mutation.
type WeekMenu struct {
	ID         int64     `json:"-"`
	TenantID   int64     `json:"tenant_id"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	Week       int       `json:"week"`
	Days       []DayMenu `json:"days"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tag returns the weak entity tag for the menu's current version.
func (m *WeekMenu) Tag() etag.Tag {
	return ScopeTag(m.TenantID, m.Department, m.Year, m.Week, m.Version)
}

// ScopeTag builds the tag for a menu scope at the given version.
func ScopeTag(tenantID int64, department string, year, week int, version int64) etag.Tag {
	return etag.NewTag(ResourceKind, version,
		strconv.FormatInt(tenantID, 10),
		department,
		strconv.Itoa(year),
		strconv.Itoa(week))
}
