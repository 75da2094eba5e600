package users

import (
	"strconv"
	"time"

	"github.com/Henkemannn/YuplanUnified-sub003/internal/etag"
)

// ResourceKind names user records inside version tags.
const ResourceKind = "user"

// User represents a tenant-scoped user account for management.
type User struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	SiteID    string    `json:"site_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag returns the weak entity tag for the record's current version.
func (u *User) Tag() etag.Tag {
	return etag.NewTag(ResourceKind, u.Version,
		strconv.FormatInt(u.TenantID, 10),
		strconv.FormatInt(u.ID, 10))
}
