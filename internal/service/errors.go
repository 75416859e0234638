package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPermissionDenied means the actor may not perform the operation on
	// this record.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRateLimited means the user filed too many booking requests.
	ErrRateLimited = errors.New("too many booking requests, try again later")

	// ErrEmptyHallName rejects hall writes without a usable name.
	ErrEmptyHallName = errors.New("hall name is required")
)

// CheckInWindowError reports a check-in attempt outside the allowed window
// and carries the valid bounds so callers can display them.
type CheckInWindowError struct {
	From  time.Time
	Until time.Time
}

func (e *CheckInWindowError) Error() string {
	return fmt.Sprintf("check-in is only allowed between %s and %s",
		e.From.Format(time.RFC3339), e.Until.Format(time.RFC3339))
}
