// Package models defines the client-side device record, its pending
// operation tag and the JSON shape exchanged with the device service.
package models

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/common"
)

// PendingOperation tags a local mutation that the remote has not confirmed.
// The zero value means the row matches the remote.
type PendingOperation string

const (
	OpSynced   PendingOperation = ""
	OpAdd      PendingOperation = "add"
	OpCheckIn  PendingOperation = "checkin"
	OpCheckOut PendingOperation = "checkout"
	OpDelete   PendingOperation = "delete"
)

// Known reports whether o is one of the tags the reconciler can replay.
func (o PendingOperation) Known() bool {
	switch o {
	case OpSynced, OpAdd, OpCheckIn, OpCheckOut, OpDelete:
		return true
	}
	return false
}

func (o PendingOperation) String() string {
	if o == OpSynced {
		return "synced"
	}
	return string(o)
}

// Device is one catalog entry. Name, OS and Manufacturer are fixed at
// creation; the checkout fields and the pending tag are mutable.
type Device struct {
	ID           int64
	Name         string
	OS           string
	Manufacturer string

	IsCheckedOut       bool
	LastCheckedOutBy   *string
	LastCheckedOutDate *time.Time

	PendingOperation PendingOperation
	// DeleteAttempts counts failed remote deletes of a row tagged OpDelete.
	DeleteAttempts int
}

// NewOfflineDevice builds a record for a device created on this client. The
// id is random and never checked for collisions against the remote.
func NewOfflineDevice(name, os, manufacturer string) (*Device, error) {
	if err := ValidateNew(name, os, manufacturer); err != nil {
		return nil, err
	}
	return &Device{
		ID:               NewClientID(),
		Name:             name,
		OS:               os,
		Manufacturer:     manufacturer,
		PendingOperation: OpAdd,
	}, nil
}

// NewClientID returns a random positive id in the uint32 range.
func NewClientID() int64 {
	for {
		if id := int64(rand.Uint32()); id != 0 {
			return id
		}
	}
}

// ValidateNew rejects a device with any empty descriptive field.
func ValidateNew(name, os, manufacturer string) error {
	var missing []string
	if strings.TrimSpace(name) == "" {
		missing = append(missing, "device")
	}
	if strings.TrimSpace(os) == "" {
		missing = append(missing, "os")
	}
	if strings.TrimSpace(manufacturer) == "" {
		missing = append(missing, "manufacturer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", common.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// IsPending reports whether the row carries an unflushed local mutation.
func (d *Device) IsPending() bool {
	return d.PendingOperation != OpSynced
}

// CheckOut sets the checkout fields in place.
func (d *Device) CheckOut(by string, at time.Time) {
	d.IsCheckedOut = true
	d.LastCheckedOutBy = &by
	d.LastCheckedOutDate = &at
}

// CheckIn clears the checked-out flag; the last checkout data is kept.
func (d *Device) CheckIn() {
	d.IsCheckedOut = false
}

// CopyStatusFrom overwrites the mutable checkout fields with src's values.
func (d *Device) CopyStatusFrom(src *Device) {
	d.IsCheckedOut = src.IsCheckedOut
	d.LastCheckedOutBy = cloneString(src.LastCheckedOutBy)
	d.LastCheckedOutDate = cloneTime(src.LastCheckedOutDate)
}

// Clone returns a deep copy.
func (d *Device) Clone() *Device {
	c := *d
	c.LastCheckedOutBy = cloneString(d.LastCheckedOutBy)
	c.LastCheckedOutDate = cloneTime(d.LastCheckedOutDate)
	return &c
}

// CheckoutSummary is the human-readable line shown in the detail view.
func (d *Device) CheckoutSummary() string {
	if d.LastCheckedOutBy == nil || d.LastCheckedOutDate == nil {
		if d.IsCheckedOut {
			return "Checked out by Unknown Person."
		}
		return ""
	}
	return fmt.Sprintf("Last Checked Out: %s, %s", *d.LastCheckedOutBy, d.LastCheckedOutDate.Format(time.DateTime))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
