package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WireTimeLayout is the checkout date format used on the wire
// (yyyy-MM-dd'T'HH:mm:ssXXX).
const WireTimeLayout = "2006-01-02T15:04:05-07:00"

// FormatWireTime renders t in WireTimeLayout.
func FormatWireTime(t time.Time) string {
	return t.Format(WireTimeLayout)
}

// ParseWireTime parses WireTimeLayout, also accepting a trailing "Z".
func ParseWireTime(s string) (time.Time, error) {
	t, err := time.Parse(WireTimeLayout, s)
	if err == nil {
		return t, nil
	}
	if t, err2 := time.Parse(time.RFC3339, s); err2 == nil {
		return t, nil
	}
	return time.Time{}, err
}

// WireDevice is the JSON object served by GET /devices. Pointer fields let
// the decoder tell a missing key from a zero value.
type WireDevice struct {
	ID                 *int64  `json:"id"`
	Device             *string `json:"device"`
	OS                 *string `json:"os"`
	Manufacturer       *string `json:"manufacturer"`
	IsCheckedOut       *bool   `json:"isCheckedOut"`
	LastCheckedOutBy   *string `json:"lastCheckedOutBy,omitempty"`
	LastCheckedOutDate *string `json:"lastCheckedOutDate,omitempty"`
}

// ToWire converts d into its wire form.
func (d *Device) ToWire() WireDevice {
	w := WireDevice{
		ID:               &d.ID,
		Device:           &d.Name,
		OS:               &d.OS,
		Manufacturer:     &d.Manufacturer,
		IsCheckedOut:     &d.IsCheckedOut,
		LastCheckedOutBy: cloneString(d.LastCheckedOutBy),
	}
	if d.LastCheckedOutDate != nil {
		s := FormatWireTime(*d.LastCheckedOutDate)
		w.LastCheckedOutDate = &s
	}
	return w
}

// ToDevice converts w into a synced record. ok is false when a required
// field (id, device, os, manufacturer, isCheckedOut) is missing. An
// unparsable date is dropped rather than rejecting the entry.
func (w WireDevice) ToDevice() (*Device, bool) {
	if w.ID == nil || w.Device == nil || w.OS == nil || w.Manufacturer == nil || w.IsCheckedOut == nil {
		return nil, false
	}
	d := &Device{
		ID:               *w.ID,
		Name:             *w.Device,
		OS:               *w.OS,
		Manufacturer:     *w.Manufacturer,
		IsCheckedOut:     *w.IsCheckedOut,
		LastCheckedOutBy: cloneString(w.LastCheckedOutBy),
		PendingOperation: OpSynced,
	}
	if w.LastCheckedOutDate != nil {
		if t, err := ParseWireTime(*w.LastCheckedOutDate); err == nil {
			d.LastCheckedOutDate = &t
		}
	}
	return d, true
}

// DecodeSnapshot decodes a GET /devices body, keeping the remote order and
// skipping entries that lack required fields. skipped counts those entries.
func DecodeSnapshot(body []byte) (devices []*Device, skipped int, err error) {
	var raw []WireDevice
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode device list: %w", err)
	}
	devices = make([]*Device, 0, len(raw))
	for _, w := range raw {
		d, ok := w.ToDevice()
		if !ok {
			skipped++
			continue
		}
		devices = append(devices, d)
	}
	return devices, skipped, nil
}
