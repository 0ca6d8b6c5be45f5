package domain

import "time"

// SessionStatus tracks whether a session is currently admitted.
type SessionStatus string

const (
	SessionStatusOnline  SessionStatus = "Online"
	SessionStatusOffline SessionStatus = "Offline"
)

// SessionRecord is the persisted view of a session: which identifier was
// admitted, where it trades and its last observed position.
type SessionRecord struct {
	ID        string
	DockID    string
	Status    SessionStatus
	Position  int
	LoginAt   time.Time
	LogoutAt  *time.Time
	UpdatedAt time.Time
}
