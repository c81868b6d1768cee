// Package models holds the device record served by the reference service.
package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the checkout date format on the wire.
const DateLayout = "2006-01-02T15:04:05-07:00"

type Device struct {
	ID                 int64
	Name               string
	OS                 string
	Manufacturer       string
	IsCheckedOut       bool
	LastCheckedOutBy   *string
	LastCheckedOutDate *time.Time
}

type deviceJSON struct {
	ID                 int64   `json:"id"`
	Device             string  `json:"device"`
	OS                 string  `json:"os"`
	Manufacturer       string  `json:"manufacturer"`
	IsCheckedOut       bool    `json:"isCheckedOut"`
	LastCheckedOutBy   *string `json:"lastCheckedOutBy,omitempty"`
	LastCheckedOutDate *string `json:"lastCheckedOutDate,omitempty"`
}

// MarshalJSON renders the device in the shape clients decode.
func (d Device) MarshalJSON() ([]byte, error) {
	out := deviceJSON{
		ID:               d.ID,
		Device:           d.Name,
		OS:               d.OS,
		Manufacturer:     d.Manufacturer,
		IsCheckedOut:     d.IsCheckedOut,
		LastCheckedOutBy: d.LastCheckedOutBy,
	}
	if d.LastCheckedOutDate != nil {
		s := d.LastCheckedOutDate.Format(DateLayout)
		out.LastCheckedOutDate = &s
	}
	return json.Marshal(out)
}
