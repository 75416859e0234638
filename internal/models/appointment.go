package models

import "time"

type Appointment struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	HallID    int64     `json:"hall_id"`
	UserID    int64     `json:"user_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"` // pending, approved, rejected, cancelled
	CheckedIn bool      `json:"checked_in"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// IsTerminal reports whether no further status transition is possible.
func (a *Appointment) IsTerminal() bool {
	return a.Status == StatusRejected || a.Status == StatusCancelled
}

// CheckInWindow returns the bounds within which check-in is accepted.
func (a *Appointment) CheckInWindow() (time.Time, time.Time) {
	return a.Start.Add(-CheckInLeadTime), a.End
}
