package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	TenantID     int64
	Email        string
	Name         string
	PasswordHash string
	// RawRole is the stored role spelling; canonicalization happens at
	// identity resolution, never here.
	RawRole   string
	SiteID    string
	IsActive  bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
