// Package clock abstracts time for services that bucket work by period.
package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock returns the current time; injected so tests can control periods.
type Clock interface {
	Now() time.Time
}

// Module provides the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time { return time.Now().UTC() }
