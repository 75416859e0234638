package models

import "time"

type Hall struct {
	ID          int64     `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Address     string    `yaml:"address" json:"address"`
	HourlyPrice float64   `yaml:"hourly_price" json:"hourly_price"`
	Description string    `yaml:"description" json:"description"`
	OwnerID     *int64    `yaml:"owner_id" json:"owner_id"` // nil when the owner account was removed
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether the hall belongs to the given user.
// Halls with a removed owner belong to nobody.
func (h *Hall) OwnedBy(userID int64) bool {
	return h.OwnerID != nil && *h.OwnerID == userID
}
