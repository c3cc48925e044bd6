package process

import "github.com/Syrchalis/ProcessorFramework/internal/sim/process/rate"

type SignalKind string

const (
	SignalRuinedByTemperature SignalKind = "RUINED_BY_TEMPERATURE"
	SignalBecameEmpty         SignalKind = "BECAME_EMPTY"
	SignalBecameNonEmpty      SignalKind = "BECAME_NON_EMPTY"
	SignalDestroyTriggered    SignalKind = "DESTROY_TRIGGERED"
)

// Signal is a state transition reported to the host.
type Signal struct {
	Kind      SignalKind `json:"kind"`
	Container string     `json:"container"`
	// Process is the def id involved, empty for container level signals.
	Process string `json:"process,omitempty"`
}

// Notifier receives signals synchronously from inside a container call.
// Implementations must not call back into the container.
type Notifier interface {
	Notify(Signal)
}

type NotifierFunc func(Signal)

func (f NotifierFunc) Notify(s Signal) { f(s) }

// Environment samples the conditions around a container. It is queried
// once per recompute cycle and must not mutate anything.
type Environment interface {
	Conditions() rate.Conditions
}

type EnvironmentFunc func() rate.Conditions

func (f EnvironmentFunc) Conditions() rate.Conditions { return f() }

// Static is an Environment that never changes.
type Static rate.Conditions

func (s Static) Conditions() rate.Conditions { return rate.Conditions(s) }
