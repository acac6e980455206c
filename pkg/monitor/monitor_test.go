package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/powerhive/rig-restarter/internal/logger"
	"github.com/powerhive/rig-restarter/pkg/journal"
	"github.com/powerhive/rig-restarter/pkg/outlet"
	"github.com/powerhive/rig-restarter/pkg/pool"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

// fakeClock advances instantly on every wait.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// blockingClock never fires.
type blockingClock struct{ fakeClock }

func (c *blockingClock) After(time.Duration) <-chan time.Time { return nil }

// scriptedSource answers from a script and cancels the run once it runs out.
type scriptedSource struct {
	clock  Clock
	script []step
	cancel context.CancelFunc
	calls  int
}

type step struct {
	online bool
	err    error
}

func offline() step { return step{online: false} }
func online() step { return step{online: true} }
func failing(e error) step { return step{err: e} }

func (s *scriptedSource) Query(ctx context.Context, q pool.Query) (*pool.WorkerStatus, error) {
	if s.calls >= len(s.script) {
		s.cancel()
		return nil, ctx.Err()
	}
	st := s.script[s.calls]
	s.calls++
	if st.err != nil {
		return nil, st.err
	}
	return &pool.WorkerStatus{
		Name:     q.Worker,
		LastSeen: s.clock.Now().Add(-2 * time.Minute).Unix(),
		IsOnline: st.online,
	}, nil
}

// fakeOutlet records every call in order.
type fakeOutlet struct {
	on       bool
	calls    []string
	plugErr  error
	turnErr  error
	dialedTo string
}

func (f *fakeOutlet) Dial(address string) outlet.Device {
	f.dialedTo = address
	return f
}

func (f *fakeOutlet) Refresh(context.Context) error {
	f.calls = append(f.calls, "refresh")
	return nil
}

func (f *fakeOutlet) IsOn(context.Context) (bool, error) {
	f.calls = append(f.calls, "is_on")
	return f.on, nil
}

func (f *fakeOutlet) TurnOn(context.Context) error {
	f.calls = append(f.calls, "on")
	if f.turnErr != nil {
		return f.turnErr
	}
	f.on = true
	return nil
}

func (f *fakeOutlet) TurnOff(context.Context) error {
	f.calls = append(f.calls, "off")
	if f.turnErr != nil {
		return f.turnErr
	}
	f.on = false
	return nil
}

func (f *fakeOutlet) Plug(sel outlet.Selector) (outlet.Controller, error) {
	f.calls = append(f.calls, "plug "+sel.String())
	if f.plugErr != nil {
		return nil, f.plugErr
	}
	return f, nil
}

func (f *fakeOutlet) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

type memJournal struct {
	events []*journal.Event
	err    error
}

func (j *memJournal) Record(_ context.Context, e *journal.Event) error {
	j.events = append(j.events, e)
	return j.err
}

func (j *memJournal) statusFailures() []int {
	var out []int
	for _, e := range j.events {
		if e.Kind == journal.KindStatus {
			out = append(out, e.Failures)
		}
	}
	return out
}

func testConfig() rig.Config {
	return rig.Config{
		StatusAPI:              pool.KindFlexpool,
		Wallet:                 "0xabc",
		Coin:                   "eth",
		WorkerName:             "rig1",
		DeviceAddress:          "192.168.0.20",
		PowerCycleOffDuration:  3 * time.Second,
		TimeUntilOffline:       0,
		StatusCheckFrequency:   3 * time.Minute,
		StatusCheckCooldown:    10 * time.Minute,
		MaxConsecutiveRestarts: 5,
	}
}

type harness struct {
	clock   *fakeClock
	source  *scriptedSource
	outlet  *fakeOutlet
	journal *memJournal
	logs    *bytes.Buffer
	ctx     context.Context
}

func newHarness(t *testing.T, steps ...step) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := newFakeClock()
	return &harness{
		clock:   clock,
		source:  &scriptedSource{clock: clock, script: steps, cancel: cancel},
		outlet:  &fakeOutlet{on: true},
		journal: &memJournal{},
		logs:    &bytes.Buffer{},
		ctx:     ctx,
	}
}

func (h *harness) run(cfg rig.Config, opts ...Option) error {
	opts = append([]Option{
		WithClock(h.clock),
		WithJournal(h.journal),
		WithLogger(logger.NewWriter(h.logs, logger.DebugLevel)),
		WithSessionID("session-1"),
	}, opts...)
	return New(cfg, h.source, h.outlet, opts...).Run(h.ctx)
}

func TestRun_FailsafeAtThreshold(t *testing.T) {
	t.Parallel()

	h := newHarness(t, offline(), offline(), offline(), offline(), offline(), offline())
	err := h.run(testConfig())

	if kind, ok := KindOf(err); !ok || kind != KindFailsafe {
		t.Fatalf("want KindFailsafe, got %v", err)
	}
	if !errors.Is(err, ErrFailsafe) {
		t.Errorf("failsafe error must wrap ErrFailsafe: %v", err)
	}
	if h.source.calls != 5 {
		t.Errorf("want 5 status checks, got %d", h.source.calls)
	}
	if got := h.outlet.count("on"); got != 4 {
		t.Errorf("want 4 power cycles before the failsafe, got %d", got)
	}
	if got := h.journal.statusFailures(); fmt.Sprint(got) != "[1 2 3 4 5]" {
		t.Errorf("failure counter sequence: got %v", got)
	}

	var sawFailsafe bool
	for _, e := range h.journal.events {
		if e.Kind == journal.KindFailsafe {
			sawFailsafe = true
			if e.Failures != 5 || e.Worker != "rig1" || e.SessionID != "session-1" {
				t.Errorf("failsafe event: %+v", e)
			}
		}
	}
	if !sawFailsafe {
		t.Error("failsafe must be journaled")
	}

	logs := h.logs.String()
	for _, want := range []string{"rig1 is OFFLINE", "Consecutive Restarts: 5", "FAILSAFE: rig1"} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs should contain %q", want)
		}
	}
}

func TestRun_RecoveryResetsCounter(t *testing.T) {
	t.Parallel()

	h := newHarness(t, offline(), online(), offline())
	err := h.run(testConfig())

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if _, ok := KindOf(err); ok {
		t.Errorf("cancellation must not be a monitor error: %v", err)
	}
	if got := h.journal.statusFailures(); fmt.Sprint(got) != "[1 0 1]" {
		t.Errorf("failure counter sequence: want [1 0 1], got %v", got)
	}

	cfg := testConfig()
	want := []time.Duration{
		cfg.PowerCycleOffDuration, cfg.StatusCheckCooldown, // offline
		cfg.StatusCheckFrequency,                           // online
		cfg.PowerCycleOffDuration, cfg.StatusCheckCooldown, // offline
	}
	if got := h.clock.Sleeps(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("waits: want %v, got %v", want, got)
	}
	if !strings.Contains(h.logs.String(), "rig1 is ONLINE. Was last seen 2 minutes ago.") {
		t.Errorf("missing online line in %q", h.logs.String())
	}
}

func TestRun_SkipsTurnOffWhenAlreadyOff(t *testing.T) {
	t.Parallel()

	h := newHarness(t, offline())
	h.outlet.on = false
	if err := h.run(testConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	if want := "[refresh is_on on]"; fmt.Sprint(h.outlet.calls) != want {
		t.Errorf("outlet calls: want %s, got %v", want, h.outlet.calls)
	}
	if got := h.clock.Sleeps(); len(got) != 1 || got[0] != 10*time.Minute {
		t.Errorf("only the cooldown should be waited, got %v", got)
	}
}

func TestRun_PowerCycleOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, offline())
	if err := h.run(testConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if want := "[refresh is_on off on]"; fmt.Sprint(h.outlet.calls) != want {
		t.Errorf("outlet calls: want %s, got %v", want, h.outlet.calls)
	}
	if h.outlet.dialedTo != "192.168.0.20" {
		t.Errorf("dialed %q", h.outlet.dialedTo)
	}
}

func TestRun_PlugSelectedAfterRefresh(t *testing.T) {
	t.Parallel()

	h := newHarness(t, online())
	cfg := testConfig()
	cfg.Plug = outlet.ByName("rig1")
	if err := h.run(cfg); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if len(h.outlet.calls) < 2 || h.outlet.calls[0] != "refresh" || h.outlet.calls[1] != `plug plug "rig1"` {
		t.Errorf("plug must be selected right after the first refresh, got %v", h.outlet.calls)
	}
	if h.outlet.count("refresh") != 1 {
		t.Errorf("outlet must be resolved once, got %v", h.outlet.calls)
	}
}

func TestRun_OutletResolutionFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, offline())
	h.outlet.plugErr = errors.New("plug not found")
	cfg := testConfig()
	cfg.Plug = outlet.ByIndex(7)

	err := h.run(cfg)
	if kind, ok := KindOf(err); !ok || kind != KindOutlet {
		t.Fatalf("want KindOutlet, got %v", err)
	}
	if h.source.calls != 0 {
		t.Errorf("no status check may run without an outlet, got %d", h.source.calls)
	}
}

func TestRun_OutletErrorsDoNotStopTheLoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, offline(), offline())
	h.outlet.turnErr = errors.New("connection refused")
	if err := h.run(testConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if h.source.calls != 2 {
		t.Errorf("loop must continue after outlet failures, got %d checks", h.source.calls)
	}
	if got := h.outlet.count("on"); got != 2 {
		t.Errorf("want a power-on attempt after each offline check, got %d", got)
	}

	var failed int
	for _, e := range h.journal.events {
		if e.Kind == journal.KindPowerCycle && strings.HasPrefix(e.Message, "failed:") {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("want 2 failed power cycles journaled, got %d", failed)
	}
}

func TestRun_QueryFailurePolicies(t *testing.T) {
	t.Parallel()

	queryErr := &pool.RequestError{Kind: pool.KindFlexpool, Endpoint: "/v2/miner/workers", StatusCode: 429}

	t.Run("offline counts toward failsafe", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, failing(queryErr), failing(queryErr))
		cfg := testConfig()
		cfg.MaxConsecutiveRestarts = 2

		err := h.run(cfg, WithPolicy(PolicyOffline))
		if kind, _ := KindOf(err); kind != KindFailsafe {
			t.Fatalf("want KindFailsafe, got %v", err)
		}
		if got := h.outlet.count("on"); got != 1 {
			t.Errorf("want 1 power cycle, got %d", got)
		}
	})

	t.Run("skip leaves counter alone", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, offline(), failing(queryErr), offline())
		err := h.run(testConfig(), WithPolicy(PolicySkip))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
		if got := h.journal.statusFailures(); fmt.Sprint(got) != "[1 2]" {
			t.Errorf("failure counter sequence: want [1 2], got %v", got)
		}
		if got := h.outlet.count("on"); got != 2 {
			t.Errorf("skipped check must not power cycle, got %d cycles", got)
		}
		sleeps := h.clock.Sleeps()
		if sleeps[2] != 3*time.Minute {
			t.Errorf("skipped check waits the check frequency, got %v", sleeps)
		}
	})

	t.Run("duplicate worker entries count as offline", func(t *testing.T) {
		t.Parallel()

		ambiguous := fmt.Errorf("%w: %q at entry 1", pool.ErrAmbiguousWorker, "rig1")
		h := newHarness(t, online(), failing(ambiguous))
		err := h.run(testConfig(), WithPolicy(PolicyOffline))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
		if got := h.outlet.count("on"); got != 1 {
			t.Errorf("ambiguous answer must trigger a power cycle, got %d", got)
		}
		var errored bool
		for _, e := range h.journal.events {
			if e.Kind == journal.KindError && strings.Contains(e.Message, pool.ErrAmbiguousWorker.Error()) {
				errored = true
			}
		}
		if !errored {
			t.Error("ambiguous answer must be journaled as an error")
		}
	})

	t.Run("halt stops the rig", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, online(), failing(queryErr))
		err := h.run(testConfig(), WithPolicy(PolicyHalt))
		if kind, _ := KindOf(err); kind != KindQuery {
			t.Fatalf("want KindQuery, got %v", err)
		}
		if !errors.Is(err, pool.ErrProviderRequest) {
			t.Errorf("query error must stay inspectable: %v", err)
		}
	})
}

func TestRun_CancelDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	clock := &blockingClock{fakeClock: fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}}
	src := &scriptedSource{clock: clock, script: []step{online()}, cancel: cancel}

	done := make(chan error, 1)
	go func() {
		done <- New(testConfig(), src, &fakeOutlet{on: true}, WithClock(clock)).Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}

func TestRun_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cfg := testConfig()
	cfg.MaxConsecutiveRestarts = 0

	err := h.run(cfg)
	if kind, _ := KindOf(err); kind != KindConfig {
		t.Fatalf("want KindConfig, got %v", err)
	}
	if !errors.Is(err, rig.ErrInvalidField) {
		t.Errorf("want ErrInvalidField in chain: %v", err)
	}
	if len(h.outlet.calls) != 0 {
		t.Errorf("outlet must not be touched: %v", h.outlet.calls)
	}
}

func TestRun_JournalFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, online(), offline())
	h.journal.err = errors.New("database is locked")
	if err := h.run(testConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if !strings.Contains(h.logs.String(), "journal: database is locked") {
		t.Errorf("journal failure should be logged as a warning")
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	src := &scriptedSource{clock: clock, script: []step{offline()}, cancel: func() {}}
	cfg := testConfig()
	cfg.TimeUntilOffline = 1

	res, err := Check(context.Background(), src, cfg, clock)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Online {
		t.Errorf("2 minutes without a share exceeds a 1 minute threshold")
	}
	if res.LastSeenAge != 2*time.Minute || res.Status.Name != "rig1" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	cases := map[string]Policy{"": PolicyOffline, "offline": PolicyOffline, " Skip ": PolicySkip, "HALT": PolicyHalt}
	for in, want := range cases {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q): want %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestLastSeenText(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		age  time.Duration
		want string
	}{
		{0, "just now"},
		{20 * time.Minute, "20 minutes ago"},
		{-30 * time.Second, "30 seconds from now"},
	}
	for _, tc := range cases {
		if got := lastSeenText(tc.age, now); got != tc.want {
			t.Errorf("lastSeenText(%s): want %q, got %q", tc.age, tc.want, got)
		}
	}
}
