package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned when the breaker short-circuits a call
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

type neutralError struct{ err error }

func (e neutralError) Error() string { return e.err.Error() }
func (e neutralError) Unwrap() error { return e.err }

// Neutral marks err as unrelated to backend health. Call returns the wrapped
// error without recording a success or a failure.
func Neutral(err error) error {
	if err == nil {
		return nil
	}
	return neutralError{err: err}
}

// Guards calls to a backend that may become unreachable
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastStateChange time.Time

	maxFailures     int
	openTimeout     time.Duration
	halfOpenSuccess int
	listeners       []func(from, to State)
	now             func() time.Time
}

type Config struct {
	MaxFailures     int           // Default: 5
	OpenTimeout     time.Duration // Default: 30 seconds
	HalfOpenSuccess int           // Default: 1

	// Called after every transition, outside the breaker lock
	OnStateChange func(from, to State)

	// Clock, defaults to time.Now
	Now func() time.Time
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenSuccess <= 0 {
		cfg.HalfOpenSuccess = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cb := &CircuitBreaker{
		state:           StateClosed,
		maxFailures:     cfg.MaxFailures,
		openTimeout:     cfg.OpenTimeout,
		halfOpenSuccess: cfg.HalfOpenSuccess,
		now:             cfg.Now,
		lastStateChange: cfg.Now(),
	}
	if cfg.OnStateChange != nil {
		cb.listeners = append(cb.listeners, cfg.OnStateChange)
	}
	return cb
}

// Registers fn to be called after every later transition
func (cb *CircuitBreaker) Subscribe(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, fn)
}

// Runs fn unless the breaker is open. fn's error counts as a backend failure
// unless it was wrapped with Neutral.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) <= cb.openTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.successCount = 0
		from, to, changed := cb.setState(StateHalfOpen)
		cb.mu.Unlock()
		cb.notify(from, to, changed)
	} else {
		cb.mu.Unlock()
	}

	err := fn()

	var neutral neutralError
	if errors.As(err, &neutral) {
		return neutral.err
	}

	cb.mu.Lock()
	var from, to State
	var changed bool
	if err != nil {
		from, to, changed = cb.onFailure()
	} else {
		from, to, changed = cb.onSuccess()
	}
	cb.mu.Unlock()
	cb.notify(from, to, changed)

	return err
}

func (cb *CircuitBreaker) onFailure() (State, State, bool) {
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.successCount = 0
		return cb.setState(StateOpen)
	}
	return cb.state, cb.state, false
}

func (cb *CircuitBreaker) onSuccess() (State, State, bool) {
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenSuccess {
			cb.failureCount = 0
			return cb.setState(StateClosed)
		}
	case StateClosed:
		cb.failureCount = 0
	}
	return cb.state, cb.state, false
}

// Must be called with mu held
func (cb *CircuitBreaker) setState(newState State) (State, State, bool) {
	old := cb.state
	if old == newState {
		return old, newState, false
	}
	cb.state = newState
	cb.lastStateChange = cb.now()
	return old, newState, true
}

func (cb *CircuitBreaker) notify(from, to State, changed bool) {
	if !changed {
		return
	}
	cb.mu.Lock()
	listeners := cb.listeners
	cb.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Forces the breaker closed, e.g. after an operator confirms the backend is back
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.failureCount = 0
	cb.successCount = 0
	from, to, changed := cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.notify(from, to, changed)
}

func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Metrics{
		State:           cb.state,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailureTime,
		LastStateChange: cb.lastStateChange,
	}
}

type Metrics struct {
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastStateChange time.Time `json:"last_state_change"`
}
