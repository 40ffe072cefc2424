package core

import (
	"math/rand"
	"time"
)

// RandSource supplies uniform samples in [0, 1) for beam flicker.
// *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// NewRandSource returns a seeded source. A zero seed picks a time-based
// seed so flicker differs between runs.
func NewRandSource(seed int64) RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
