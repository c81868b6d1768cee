// Package services holds the client's sync engine: the Reconciler that
// merges a remote snapshot into the local store and replays queued
// operations, and DeviceService, the API the front end calls.
package services

import "fmt"

// SyncPolicy decides what happens to a queued operation whose replay failed.
type SyncPolicy string

const (
	// PolicyConfirmed clears a pending tag only after the remote accepted
	// the replay, and purges a queued delete only once it was confirmed or
	// ran out of attempts.
	PolicyConfirmed SyncPolicy = "confirmed"
	// PolicyOptimistic clears every tag after one replay attempt and purges
	// every queued delete, whatever the remote answered.
	PolicyOptimistic SyncPolicy = "optimistic"
)

const DefaultMaxDeleteAttempts = 5

func ParseSyncPolicy(s string) (SyncPolicy, error) {
	switch p := SyncPolicy(s); p {
	case PolicyConfirmed, PolicyOptimistic:
		return p, nil
	case "":
		return PolicyConfirmed, nil
	}
	return "", fmt.Errorf("unknown sync policy %q", s)
}

// Options configures the Reconciler and DeviceService.
type Options struct {
	Policy SyncPolicy
	// MaxDeleteAttempts bounds remote delete retries under PolicyConfirmed.
	MaxDeleteAttempts int
	// AdoptServerIDs re-keys a locally created device to the id the server
	// echoed on create.
	AdoptServerIDs bool
}

func (o Options) withDefaults() Options {
	if o.Policy == "" {
		o.Policy = PolicyConfirmed
	}
	if o.MaxDeleteAttempts <= 0 {
		o.MaxDeleteAttempts = DefaultMaxDeleteAttempts
	}
	return o
}
