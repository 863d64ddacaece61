//go:build deadlock

// Package syncutil holds the mutex types used by the host tools. This file
// is compiled with -tags=deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

func init() {
	// A serial write stuck behind a dead board takes a while to fail
	deadlock.Opts.DeadlockTimeout = 5 * time.Second
}

// Mutex reports lock-order inversions and long waits
type Mutex struct {
	deadlock.Mutex
}
