package circuitbreaker

type State int

const (
	// StateClosed - backend healthy, calls go through
	StateClosed State = iota

	// StateOpen - backend considered down, calls are short-circuited
	StateOpen

	// StateHalfOpen - open timeout elapsed, probing the backend again
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON status payloads
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Gauge value exported for the breaker state
func (s State) Value() float64 {
	return float64(s)
}
