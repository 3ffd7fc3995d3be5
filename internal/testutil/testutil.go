// Package testutil provides deterministic substitutes for the engine's
// injectable collaborators, used by the scenario harness and package tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates check ids of the form "check-0001", "check-0002",
// in allocation order. Safe for concurrent use, though deterministic output
// only makes sense for serial callers.
type SequentialIDs struct {
	mu   sync.Mutex
	next int
}

// NewSequentialIDs returns a generator starting at check-0001.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// NewID returns the next id in sequence.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("check-%04d", g.next)
}
