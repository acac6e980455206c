// Package monitor runs the per-rig availability loop: query the pool,
// decide whether the rig is online, power-cycle its outlet when it is not,
// and stop once recovery keeps failing.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/powerhive/rig-restarter/internal/logger"
	"github.com/powerhive/rig-restarter/pkg/journal"
	"github.com/powerhive/rig-restarter/pkg/outlet"
	"github.com/powerhive/rig-restarter/pkg/pool"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

// Monitor supervises one rig. It is not safe for concurrent use; run one
// Monitor per goroutine.
type Monitor struct {
	cfg     rig.Config
	source  pool.StatusSource
	dialer  outlet.Dialer
	journal journal.Recorder
	log     *logger.Logger
	clock   Clock
	policy  Policy
	session string

	failures int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithJournal records every observation and action.
func WithJournal(r journal.Recorder) Option {
	return func(m *Monitor) {
		m.journal = r
	}
}

// WithLogger sets the parent logger. The monitor adds rig and session fields.
func WithLogger(l *logger.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithPolicy sets how failed pool queries are handled.
func WithPolicy(p Policy) Option {
	return func(m *Monitor) {
		m.policy = p
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(m *Monitor) {
		m.session = id
	}
}

// New creates a monitor for cfg.
func New(cfg rig.Config, source pool.StatusSource, dialer outlet.Dialer, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		source:  source,
		dialer:  dialer,
		journal: journal.Discard,
		log:     logger.Nop(),
		clock:   RealClock(),
		policy:  PolicyOffline,
		session: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("rig", cfg.WorkerName, "session", m.session)
	return m
}

// SessionID identifies this monitor run in logs and the journal.
func (m *Monitor) SessionID() string {
	return m.session
}

// Run resolves the rig's outlet and loops until the failsafe trips, a fatal
// error occurs, or ctx is cancelled. Cancellation returns ctx.Err(); every
// other return is a *Error.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.validate(); err != nil {
		return m.fail(ctx, KindConfig, err)
	}

	device := m.dialer.Dial(m.cfg.DeviceAddress)
	plug, err := outlet.Resolve(ctx, device, m.cfg.Plug)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return m.fail(ctx, KindOutlet, fmt.Errorf("%s at %s: %w", m.cfg.Plug, m.cfg.DeviceAddress, err))
	}
	m.log.Infof("Monitoring %s via %s on %s (%s).", m.cfg.WorkerName, m.cfg.StatusAPI, m.cfg.DeviceAddress, m.cfg.Plug)

	for {
		online, err := m.checkStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			switch m.policy {
			case PolicyHalt:
				return m.fail(ctx, KindQuery, err)
			case PolicySkip:
				m.log.Warnf("Status check for %s failed, skipping: %v", m.cfg.WorkerName, err)
				m.record(ctx, &journal.Event{Kind: journal.KindError, Message: err.Error()})
				if err := m.wait(ctx, m.cfg.StatusCheckFrequency); err != nil {
					return err
				}
				continue
			default:
				m.log.Warnf("Status check for %s failed, treating as OFFLINE: %v", m.cfg.WorkerName, err)
				m.record(ctx, &journal.Event{Kind: journal.KindError, Message: err.Error()})
			}
		}

		if online {
			m.failures = 0
			if err := m.wait(ctx, m.cfg.StatusCheckFrequency); err != nil {
				return err
			}
			continue
		}

		m.failures++
		m.log.Infof("\tConsecutive Restarts: %d", m.failures)
		if m.failures >= m.cfg.MaxConsecutiveRestarts {
			m.log.Errorf("FAILSAFE: %s stayed offline through %d consecutive restarts. Halting recovery for this rig.",
				m.cfg.WorkerName, m.failures)
			m.record(ctx, &journal.Event{Kind: journal.KindFailsafe, Message: ErrFailsafe.Error()})
			return m.fail(ctx, KindFailsafe, fmt.Errorf("%w (%d)", ErrFailsafe, m.cfg.MaxConsecutiveRestarts))
		}

		if err := m.powerCycle(ctx, plug); err != nil {
			return err
		}
		if err := m.wait(ctx, m.cfg.StatusCheckCooldown); err != nil {
			return err
		}
	}
}

// checkStatus queries the pool and logs the verdict. The failure counter
// in status events is the value after this observation is applied.
func (m *Monitor) checkStatus(ctx context.Context) (bool, error) {
	res, err := Check(ctx, m.source, m.cfg, m.clock)
	if err != nil {
		return false, err
	}
	seen := "Was last seen " + res.LastSeen() + "."

	failures := 0
	if res.Online {
		m.log.Infof("%s is ONLINE. %s", res.Status.Name, seen)
	} else {
		failures = m.failures + 1
		exceeds := ""
		if m.cfg.TimeUntilOffline > 0 {
			exceeds = fmt.Sprintf(" This exceeds the allowed offline time of %g min.", m.cfg.TimeUntilOffline)
		}
		m.log.Infof("%s is OFFLINE. %s%s", res.Status.Name, seen, exceeds)
	}

	online := res.Online
	age := res.LastSeenAge
	m.record(ctx, &journal.Event{
		Kind:        journal.KindStatus,
		Online:      &online,
		LastSeenAge: &age,
		Failures:    failures,
	})
	return res.Online, nil
}

// powerCycle turns the outlet off (when on), waits, and turns it back on.
// Outlet errors are logged; only cancellation is returned.
func (m *Monitor) powerCycle(ctx context.Context, plug outlet.Controller) error {
	var errs []error

	on, err := plug.IsOn(ctx)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("read outlet state: %w", err))
	case on:
		m.log.Infof("Powering off %s.", m.cfg.WorkerName)
		if err := plug.TurnOff(ctx); err != nil {
			errs = append(errs, fmt.Errorf("turn off: %w", err))
		} else if err := m.wait(ctx, m.cfg.PowerCycleOffDuration); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.log.Infof("Powering on %s.", m.cfg.WorkerName)
	if err := plug.TurnOn(ctx); err != nil {
		errs = append(errs, fmt.Errorf("turn on: %w", err))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := errors.Join(errs...); err != nil {
		m.log.Errorf("Power cycle of %s failed: %v", m.cfg.WorkerName, err)
		m.record(ctx, &journal.Event{Kind: journal.KindPowerCycle, Message: "failed: " + err.Error()})
		return nil
	}
	m.record(ctx, &journal.Event{Kind: journal.KindPowerCycle, Message: "power cycled"})
	return nil
}

// Result is one status check.
type Result struct {
	Status pool.WorkerStatus
	pool.Availability
	CheckedAt time.Time
}

// LastSeen describes how long ago the pool last saw the worker, e.g.
// "3 minutes ago".
func (r Result) LastSeen() string {
	return lastSeenText(r.LastSeenAge, r.CheckedAt)
}

// Check performs one status query and evaluation for cfg without touching
// the outlet. The clock is read after the query returns.
func Check(ctx context.Context, source pool.StatusSource, cfg rig.Config, clock Clock) (Result, error) {
	status, err := source.Query(ctx, cfg.Query())
	if err != nil {
		return Result{}, fmt.Errorf("query %s: %w", cfg.StatusAPI, err)
	}
	now := clock.Now()
	return Result{
		Status:       *status,
		Availability: pool.Evaluate(*status, cfg.TimeUntilOffline, now),
		CheckedAt:    now,
	}, nil
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(d):
		return nil
	}
}

func (m *Monitor) record(ctx context.Context, e *journal.Event) {
	e.SessionID = m.session
	e.Worker = m.cfg.WorkerName
	if e.Kind != journal.KindStatus {
		e.Failures = m.failures
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.clock.Now().UTC()
	}
	if err := m.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		m.log.Warnf("journal: %v", err)
	}
}

func (m *Monitor) fail(ctx context.Context, kind Kind, err error) error {
	merr := &Error{Rig: m.cfg.WorkerName, Kind: kind, Err: err}
	if kind != KindFailsafe {
		m.log.Errorf("%v", merr)
		m.record(ctx, &journal.Event{Kind: journal.KindError, Message: merr.Error()})
	}
	return merr
}

func (m *Monitor) validate() error {
	switch {
	case m.source == nil:
		return errors.New("no status source")
	case m.dialer == nil:
		return errors.New("no outlet dialer")
	case m.cfg.WorkerName == "":
		return fmt.Errorf("%s: %w", rig.FieldWorkerName, rig.ErrMissingField)
	case m.cfg.DeviceAddress == "":
		return fmt.Errorf("%s: %w", rig.FieldDeviceAddress, rig.ErrMissingField)
	case m.cfg.StatusCheckFrequency <= 0:
		return fmt.Errorf("%s: %w: must be > 0", rig.FieldStatusCheckFrequency, rig.ErrInvalidField)
	case m.cfg.StatusCheckCooldown <= 0:
		return fmt.Errorf("%s: %w: must be > 0", rig.FieldStatusCheckCooldown, rig.ErrInvalidField)
	case m.cfg.MaxConsecutiveRestarts <= 0:
		return fmt.Errorf("%s: %w: must be > 0", rig.FieldMaxConsecutiveRestarts, rig.ErrInvalidField)
	}
	return nil
}

func lastSeenText(age time.Duration, now time.Time) string {
	if age > -time.Second && age < time.Second {
		return "just now"
	}
	return humanize.RelTime(now.Add(-age), now, "ago", "from now")
}
