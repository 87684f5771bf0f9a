package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time so lifecycle transitions and cashier business dates
// are testable with a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock { return systemClock{} }

// Module wires the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
