package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrVersionConflict occurs when a conditional update loses a write race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrCSRFTokenMissing occurs when the CSRF cookie/header pair is incomplete.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when cookie and header tokens differ.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrOriginMismatch occurs when the Origin header names a foreign host.
	ErrOriginMismatch = errors.New("origin mismatch")
)
