// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package app

// State is the lifecycle state of a Loop.
type State int32

// Loop states.
const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StateShuttingDown
	StateStopped
	StateFailed
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateInitializing:  "initializing",
	StateRunning:       "running",
	StateShuttingDown:  "shutting-down",
	StateStopped:       "stopped",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
