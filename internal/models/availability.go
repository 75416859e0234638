package models

import "time"

// Availability is an owner-declared window during which a hall can be booked.
// Windows of the same hall never overlap; the store enforces it on insert.
type Availability struct {
	ID        int64     `json:"id"`
	HallID    int64     `json:"hall_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	CreatedAt time.Time `json:"created_at"`
}

// BulkCreateResult reports per-date outcomes of a recurring-availability batch.
// The batch is not atomic: some dates may succeed while others are skipped.
type BulkCreateResult struct {
	Created []Availability `json:"created"`
	Skipped []SkippedDate  `json:"skipped"`
}

type SkippedDate struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}
