package models

import "time"

type Hall struct {
	ID            int64     `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	District      string    `yaml:"district" json:"district"`
	Address       string    `yaml:"address" json:"address"`
	Capacity      int       `yaml:"capacity" json:"capacity"`
	PricePerGuest float64   `yaml:"price_per_guest" json:"price_per_guest"`
	Phone         string    `yaml:"phone" json:"phone"`
	OwnerID       int64     `yaml:"owner_id" json:"owner_id,omitempty"` // 0 when the hall is not assigned
	Approved      bool      `yaml:"approved" json:"approved"`
	CreatedAt     time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time `yaml:"updated_at" json:"updated_at"`
}

// HasOwner reports whether the hall is assigned to an owner account.
func (h *Hall) HasOwner() bool {
	return h.OwnerID != 0
}

// OwnedBy reports whether userID owns the hall.
func (h *Hall) OwnedBy(userID int64) bool {
	return h.HasOwner() && h.OwnerID == userID
}

// Quote returns the total price for the given number of guests.
func (h *Hall) Quote(guests int) float64 {
	return float64(guests) * h.PricePerGuest
}
