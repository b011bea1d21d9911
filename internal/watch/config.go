// Package watch implements the proof-of-attention workflow of a single ad view:
// playback tracking, verification code issue and the verification gate.
package watch

import (
	"fmt"
	"time"
)

// Defaults for Config
const (
	DefaultRevealThreshold = 3 * time.Second
	DefaultMinWatchTime    = 5 * time.Second
	DefaultRequiredViews   = 5
)

// Config enumerates the tunables of the viewing workflow.
//
// RevealThreshold is the played duration after which the verification code is shown.
// MinWatchTime is the played duration after which the viewing dialog may be closed.
// RequiredViews is the number of validated views that unlocks ad creation.
type Config struct {
	RevealThreshold time.Duration
	MinWatchTime    time.Duration
	RequiredViews   int
}

// DefaultConfig returns the 3s / 5s / 5 views configuration
func DefaultConfig() Config {
	return Config{
		RevealThreshold: DefaultRevealThreshold,
		MinWatchTime:    DefaultMinWatchTime,
		RequiredViews:   DefaultRequiredViews,
	}
}

// Validate checks threshold ordering and bounds
func (c Config) Validate() error {
	if c.RevealThreshold <= 0 {
		return fmt.Errorf("reveal threshold must be positive, got %s", c.RevealThreshold)
	}
	if c.MinWatchTime < c.RevealThreshold {
		return fmt.Errorf("minimum watch time %s is below reveal threshold %s", c.MinWatchTime, c.RevealThreshold)
	}
	if c.RequiredViews < 1 {
		return fmt.Errorf("required views must be at least 1, got %d", c.RequiredViews)
	}
	return nil
}
