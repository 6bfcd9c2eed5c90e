package models

import "time"

// Audit actions recorded by the auth flows.
const (
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// ResourceUsers is the resource name recorded for session events.
const ResourceUsers = "usuarios"

// AuditEvent is an append-only record of a session action.
type AuditEvent struct {
	UserID     int64
	Action     string
	Resource   string
	IP         string
	UserAgent  string
	OccurredAt time.Time
}
