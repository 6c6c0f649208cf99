package driver

// State of a driver's load lifecycle.
type State int

const (
	// StateUnloaded is the initial state and the state after any reset.
	StateUnloaded State = iota

	// StateResolving is held while Load runs.
	StateResolving

	// StateLoaded means the driver's loader is built and, unless the driver
	// uses a custom loader, its instance exists.
	StateLoaded

	// StateFailed is entered when a load fails. It stays until the next
	// successful load or a reset.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateResolving:
		return "resolving"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
