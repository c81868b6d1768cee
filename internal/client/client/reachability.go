package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/logging"
)

// Reachability answers whether the remote service can be reached. A sync
// session asks once, at its start.
type Reachability interface {
	IsOnline(ctx context.Context) bool
}

// StaticReachability always gives the same answer.
type StaticReachability bool

func (s StaticReachability) IsOnline(context.Context) bool { return bool(s) }

// Pinger is the part of Client the watcher needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher pings the remote periodically and caches the last answer.
type Watcher struct {
	pinger      Pinger
	interval    time.Duration
	pingTimeout time.Duration
	log         logging.Logger

	online atomic.Bool
}

func NewWatcher(p Pinger, interval, pingTimeout time.Duration, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{pinger: p, interval: interval, pingTimeout: pingTimeout, log: log.With("module", "watcher")}
}

// IsOnline returns the cached answer of the last ping.
func (w *Watcher) IsOnline(context.Context) bool {
	return w.online.Load()
}

// Check pings once and updates the cached answer.
func (w *Watcher) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, w.pingTimeout)
	err := w.pinger.Ping(ctx)
	cancel()

	online := err == nil
	if prev := w.online.Swap(online); prev != online {
		if online {
			w.log.Info(ctx, "switched to online mode")
		} else {
			w.log.Info(ctx, "switched to offline mode", "error", err)
		}
	}
	return online
}

// Run checks immediately and then on every tick until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
