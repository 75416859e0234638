package database

import "errors"

var (
	// ErrInvalidRange means start >= end.
	ErrInvalidRange = errors.New("start must be before end")

	// ErrAvailabilityOverlap means the window overlaps an existing one of the same hall.
	ErrAvailabilityOverlap = errors.New("availability window overlaps an existing one")

	// ErrOutsideAvailability means the requested range is not fully inside any open window.
	ErrOutsideAvailability = errors.New("requested time is outside hall availability")

	// ErrAppointmentConflict means the range overlaps an approved appointment.
	ErrAppointmentConflict = errors.New("requested time conflicts with an approved appointment")

	// ErrInvalidTransition means the appointment status does not permit the operation.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrAlreadyCheckedIn means the one-shot check-in flag was already set.
	ErrAlreadyCheckedIn = errors.New("appointment is already checked in")

	ErrPastDate     = errors.New("date range must not start in the past")
	ErrRangeTooLong = errors.New("date range exceeds the allowed maximum")

	ErrNotFound = errors.New("record not found")

	ErrConcurrentModification = errors.New("record was modified concurrently")
)
