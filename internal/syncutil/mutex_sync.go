//go:build !deadlock

// Package syncutil holds the mutex types used by the host tools. Building
// with -tags=deadlock swaps in github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock
type Mutex struct {
	sync.Mutex
}
