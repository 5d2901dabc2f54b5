// Package resilience guards record store lookups so callers always receive a
// usable record, real or synthetic.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/records"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/tracing"
)

// Defaults for Connect.
const (
	DefaultRetries     = 3
	DefaultBackoffUnit = time.Second
	defaultPingTimeout = 5 * time.Second
)

// errorKind classifies a store failure.
type errorKind string

const (
	kindTransient errorKind = "transient"
	kindAuth      errorKind = "auth"
	kindCreate    errorKind = "create"
	kindCancelled errorKind = "cancelled"
	kindUnknown   errorKind = "unknown"
)

// createError marks a failed Create so it is never retried.
type createError struct{ err error }

func (e *createError) Error() string { return "create record: " + e.err.Error() }
func (e *createError) Unwrap() error { return e.err }

// panicError carries a panic raised by the store during one attempt.
type panicError struct{ value any }

func (e *panicError) Error() string { return fmt.Sprintf("record store panicked: %v", e.value) }

// Option configures a Manager.
type Option func(*Manager)

// WithBackoffUnit sets the base delay; attempt n waits n × unit.
func WithBackoffUnit(unit time.Duration) Option {
	return func(m *Manager) { m.unit = unit }
}

// WithTimer supplies the timer used for backoff waits. A new timer is
// requested for every Connect call.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(m *Manager) { m.newTimer = newTimer }
}

// WithHints replaces the troubleshooting hints returned by HealthCheck.
func WithHints(hints []string) Option {
	return func(m *Manager) { m.hints = hints }
}

// WithPingTimeout bounds HealthCheck's liveness probe.
func WithPingTimeout(d time.Duration) Option {
	return func(m *Manager) { m.pingTimeout = d }
}

// Manager wraps a records.Store with bounded retries and fallbacks.
type Manager struct {
	store       records.Store
	unit        time.Duration
	newTimer    func() backoff.Timer
	hints       []string
	pingTimeout time.Duration
	now         func() time.Time
	logger      zerolog.Logger

	mu   sync.RWMutex
	last ConnectionHealth
}

// NewManager creates a Manager for store.
func NewManager(logger zerolog.Logger, store records.Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		unit:        DefaultBackoffUnit,
		newTimer:    func() backoff.Timer { return nil }, // library default
		hints:       DefaultHints(),
		pingTimeout: defaultPingTimeout,
		now:         time.Now,
		logger:      logger.With().Str("component", "connectionManager").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.last = ConnectionHealth{Status: StatusDisconnected, Timestamp: m.now()}
	return m
}

// Connect returns the active record for agentType, creating one if the type
// has none. Transient store failures are retried up to retries attempts in
// total, waiting attempt × unit between them. Authentication failures,
// unexpected errors and a failed Create return a FallbackRecord at once.
// Connect never fails; retries < 1 is treated as 1.
func (m *Manager) Connect(ctx context.Context, agentType string, retries int) Result {
	ctx, span := tracing.StartSpan(ctx, "store.connect",
		tracing.String("agent.type", agentType),
		tracing.Int("retries", retries),
	)
	defer span.End()

	if retries < 1 {
		retries = 1
	}

	var (
		attempts int
		rec      records.Record
		kind     errorKind
	)
	op := func() (err error) {
		attempts++
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().Interface("panic", r).Str("agentType", agentType).Msg("Record store panicked")
				kind = kindUnknown
				err = backoff.Permanent(&panicError{value: r})
			}
		}()

		r, err := m.lookup(ctx, agentType)
		if err == nil {
			rec = r
			return nil
		}

		kind = classify(err)
		if kind == kindTransient {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		m.setHealth(StatusRetrying, err)
		m.logger.Warn().
			Err(err).
			Str("agentType", agentType).
			Int("attempt", attempts).
			Dur("wait", wait).
			Msg("Record store unavailable, retrying")
	}

	err := backoff.RetryNotifyWithTimer(op, newBackOff(ctx, m.unit, retries), notify, m.newTimer())
	if err == nil {
		m.setHealth(StatusConnected, nil)
		tracing.SetOK(span)
		return &LiveRecord{Record: rec, Attempts: attempts}
	}

	tracing.RecordError(span, err)
	if ctx.Err() != nil && kind == kindTransient {
		kind = kindCancelled
	}
	return m.fallback(agentType, kind, err, attempts)
}

// lookup performs one attempt: probe, find active, find any, create.
func (m *Manager) lookup(ctx context.Context, agentType string) (records.Record, error) {
	if err := m.store.Ping(ctx); err != nil {
		return records.Record{}, fmt.Errorf("ping: %w", err)
	}

	rec, err := m.store.FindByTypeAndStatus(ctx, agentType, records.StatusActive)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, records.ErrNotFound) {
		return records.Record{}, err
	}

	rec, err = m.store.FindByType(ctx, agentType)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, records.ErrNotFound) {
		return records.Record{}, err
	}

	rec, err = m.store.Create(ctx, agentType, defaultName(agentType), records.StatusActive)
	if err != nil {
		return records.Record{}, &createError{err: err}
	}
	m.logger.Info().Str("agentType", agentType).Str("id", rec.ID).Msg("Created missing agent record")
	return rec, nil
}

func classify(err error) errorKind {
	var ce *createError
	switch {
	case errors.As(err, &ce):
		return kindCreate
	case errors.Is(err, records.ErrAuth):
		return kindAuth
	case errors.Is(err, context.Canceled):
		return kindCancelled
	case errors.Is(err, records.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return kindTransient
	default:
		return kindUnknown
	}
}

func (m *Manager) fallback(agentType string, kind errorKind, err error, attempts int) *FallbackRecord {
	reason := ReasonStoreUnknown
	status := StatusError
	switch kind {
	case kindTransient:
		reason, status = ReasonStoreUnavailable, StatusDisconnected
	case kindAuth:
		reason = ReasonStoreAuth
	case kindCreate:
		reason = ReasonCreateFailed
	case kindCancelled:
		reason, status = ReasonCancelled, StatusDisconnected
	}
	m.setHealth(status, err)

	ev := m.logger.Warn()
	if kind == kindUnknown {
		ev = m.logger.Error().Str("errorType", fmt.Sprintf("%T", errors.Unwrap(err)))
	}
	ev.Err(err).
		Str("agentType", agentType).
		Str("kind", string(kind)).
		Str("reason", string(reason)).
		Int("attempts", attempts).
		Msg("Returning fallback record")

	return &FallbackRecord{
		ID:        "fallback-" + uuid.NewString(),
		Type:      agentType,
		Name:      defaultName(agentType),
		Status:    records.StatusActive,
		Fallback:  true,
		Reason:    reason,
		Error:     err.Error(),
		Attempts:  attempts,
		CreatedAt: m.now(),
	}
}

// ConnectAllReport summarizes a ConnectAll call.
type ConnectAllReport struct {
	Results      map[string]Result `json:"results"`
	Live         int               `json:"live"`
	Total        int               `json:"total"`
	SuccessRatio float64           `json:"success_ratio"`
}

// ConnectAll connects every agent type concurrently.
func (m *Manager) ConnectAll(ctx context.Context, agentTypes []string, retries int) ConnectAllReport {
	report := ConnectAllReport{
		Results: make(map[string]Result, len(agentTypes)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, agentType := range lo.Uniq(agentTypes) {
		wg.Add(1)
		go func(agentType string) {
			defer wg.Done()
			res := m.Connect(ctx, agentType, retries)
			mu.Lock()
			report.Results[agentType] = res
			mu.Unlock()
		}(agentType)
	}
	wg.Wait()

	report.Total = len(report.Results)
	for _, res := range report.Results {
		if !res.IsFallback() {
			report.Live++
		}
	}
	if report.Total > 0 {
		report.SuccessRatio = float64(report.Live) / float64(report.Total)
	}

	m.logger.Info().
		Int("live", report.Live).
		Int("total", report.Total).
		Float64("successRatio", report.SuccessRatio).
		Msg("Connected agent records")
	return report
}

func defaultName(agentType string) string {
	return agentType + " agent"
}
