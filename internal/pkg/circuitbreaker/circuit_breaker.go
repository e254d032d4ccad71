package circuitbreaker

import (
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/logger"
	"perfsummary/internal/pkg/metrics"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

type State int

// Values double as the circuit_breaker_state gauge reading.
const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

type CircuitBreaker struct {
	mutex            sync.Mutex
	failureCount     int
	lastFailure      time.Time
	resetTimeout     time.Duration
	failureThreshold int
	serviceName      string
	state            State
	now              func() time.Time
}

func NewCircuitBreaker(serviceName string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	cb := &CircuitBreaker{
		serviceName:      serviceName,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            Closed,
		now:              time.Now,
	}

	cb.setState(Closed)

	return cb
}

// Runs fn unless the circuit is open. A failure while half-open, or the
// threshold-th consecutive failure, opens the circuit for resetTimeout.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mutex.Lock()

	if cb.state == Open {
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.setState(HalfOpen)
			logger.Log.Info("Circuit half-open, allowing test request",
				zap.String("service", cb.serviceName))
		} else {
			cb.mutex.Unlock()
			return ErrCircuitOpen
		}
	}

	cb.mutex.Unlock()

	err := fn()

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailure = cb.now()

		if cb.state == HalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.setState(Open)
			logger.Log.Warn("Circuit opened due to failures",
				zap.String("service", cb.serviceName),
				zap.Int("failures", cb.failureCount),
				zap.Time("until", cb.lastFailure.Add(cb.resetTimeout)))
		}

		return err
	}

	if cb.state == HalfOpen {
		logger.Log.Info("Circuit closed after successful test",
			zap.String("service", cb.serviceName))
	}
	cb.failureCount = 0
	cb.setState(Closed)

	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Caller holds the mutex, except during construction.
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	metrics.CircuitBreakerState.WithLabelValues(cb.serviceName).Set(float64(state))
}
