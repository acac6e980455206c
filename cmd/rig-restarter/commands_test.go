package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/powerhive/rig-restarter/pkg/discovery"
	"github.com/powerhive/rig-restarter/pkg/journal"
	"github.com/powerhive/rig-restarter/pkg/kasa"
	"github.com/powerhive/rig-restarter/pkg/pool"
	"github.com/powerhive/rig-restarter/pkg/rig"
)

const (
	testDefaults = `{"flexpool": {"coin": "eth", "time_until_offline": 10}}`
	testRigs     = `[
		{"status_api": "flexpool", "wallet": "0xabc", "worker_name": "rig1",
		 "kasa_device_ip": "192.168.0.20", "smart_strip_plug_number": 2},
		{"status_api": "ethermine", "wallet": "0xdef", "worker_name": "rig2",
		 "kasa_device_ip": "192.168.0.21", "max_consecutive_restarts": 3, "time_until_offline": 0}
	]`
)

func writeRigFiles(t *testing.T, rigs string) *Config {
	t.Helper()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.RigsFile = filepath.Join(dir, "rigs.json")
	cfg.DefaultsFile = filepath.Join(dir, "defaults.json")
	cfg.LogFile = ""
	if err := os.WriteFile(cfg.DefaultsFile, []byte(testDefaults), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.RigsFile, []byte(rigs), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func execute(t *testing.T, cfg *Config, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand(cfg)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, writeRigFiles(t, testRigs), "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"rig1", "flexpool/eth", "192.168.0.20 plug #2", "10m", "rig2", "pool flag", "2 rigs OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommand_BadRigs(t *testing.T) {
	t.Parallel()

	_, err := execute(t, writeRigFiles(t, `[{"status_api": "flexpool", "worker_name": "rig1"}]`), "validate")
	if !errors.Is(err, rig.ErrMissingField) {
		t.Fatalf("want ErrMissingField, got %v", err)
	}
}

func TestValidateCommand_BadPolicy(t *testing.T) {
	t.Parallel()

	cfg := writeRigFiles(t, testRigs)
	cfg.QueryFailurePolicy = "retry"
	if _, err := execute(t, cfg, "validate"); err == nil {
		t.Fatal("want error for unknown policy")
	}
}

func TestRootFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	cfg := writeRigFiles(t, testRigs)
	rigsFile := cfg.RigsFile
	cfg.RigsFile = "missing.json"

	if _, err := execute(t, cfg, "validate", "--rigs", rigsFile); err != nil {
		t.Fatalf("validate --rigs: %v", err)
	}
}

type stubSource struct {
	statuses map[string]*pool.WorkerStatus
}

func (s stubSource) Query(_ context.Context, q pool.Query) (*pool.WorkerStatus, error) {
	status, ok := s.statuses[q.Worker]
	if !ok {
		return nil, pool.ErrWorkerNotFound
	}
	return status, nil
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestCheckRigs(t *testing.T) {
	t.Parallel()

	now := time.Now().Unix()
	source := stubSource{statuses: map[string]*pool.WorkerStatus{
		"rig1": {Name: "rig1", LastSeen: now - 60, IsOnline: true},
		"rig2": {Name: "rig2", LastSeen: now - 3600, IsOnline: false},
	}}
	rigs := []rig.Config{
		{WorkerName: "rig1", StatusAPI: pool.KindFlexpool, TimeUntilOffline: 10},
		{WorkerName: "rig2", StatusAPI: pool.KindEthermine},
		{WorkerName: "rig3", StatusAPI: pool.KindEthermine},
	}

	cmd, out := testCommand()
	err := checkRigs(cmd, source, rigs)
	if !errors.Is(err, pool.ErrWorkerNotFound) {
		t.Fatalf("want rig3 failure, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("want header and 3 rows, got:\n%s", out)
	}
	if !strings.Contains(lines[1], "ONLINE") || !strings.Contains(lines[1], "1 minute ago") {
		t.Errorf("rig1 row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "OFFLINE") || !strings.Contains(lines[2], "1 hour ago") {
		t.Errorf("rig2 row: %q", lines[2])
	}
	if !strings.Contains(lines[3], "ERROR") {
		t.Errorf("rig3 row: %q", lines[3])
	}
}

func TestSelectRigs(t *testing.T) {
	t.Parallel()

	rigs := []rig.Config{{WorkerName: "a"}, {WorkerName: "b"}, {WorkerName: "c"}}

	all, err := selectRigs(rigs, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("no names: %v %v", all, err)
	}

	got, err := selectRigs(rigs, []string{"c", "a"})
	if err != nil {
		t.Fatalf("selectRigs: %v", err)
	}
	if len(got) != 2 || got[0].WorkerName != "c" || got[1].WorkerName != "a" {
		t.Errorf("want [c a], got %v", got)
	}

	if _, err := selectRigs(rigs, []string{"z"}); err == nil {
		t.Error("want error for unknown rig")
	}
}

type stubJournal struct {
	events []*journal.Event
	worker string
	limit  int
}

func (j *stubJournal) Record(context.Context, *journal.Event) error { return nil }
func (j *stubJournal) Close() error                               { return nil }

func (j *stubJournal) Recent(_ context.Context, worker string, limit int) ([]*journal.Event, error) {
	j.worker, j.limit = worker, limit
	return j.events, nil
}

func TestPrintJournal(t *testing.T) {
	t.Parallel()

	online := false
	age := 20 * time.Minute
	repo := &stubJournal{events: []*journal.Event{
		{Worker: "rig1", Kind: journal.KindPowerCycle, Failures: 1, Message: "power cycled", CreatedAt: time.Now()},
		{Worker: "rig1", Kind: journal.KindStatus, Online: &online, LastSeenAge: &age, Failures: 1, CreatedAt: time.Now()},
	}}

	cmd, out := testCommand()
	if err := printJournal(cmd, repo, "rig1", 10); err != nil {
		t.Fatalf("printJournal: %v", err)
	}
	if repo.worker != "rig1" || repo.limit != 10 {
		t.Errorf("Recent called with %q %d", repo.worker, repo.limit)
	}
	for _, want := range []string{"power_cycle", "power cycled", "OFFLINE, last seen 20m0s ago"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintJournal_Empty(t *testing.T) {
	t.Parallel()

	cmd, out := testCommand()
	if err := printJournal(cmd, &stubJournal{}, "", 0); err != nil {
		t.Fatalf("printJournal: %v", err)
	}
	if strings.TrimSpace(out.String()) != "No events" {
		t.Errorf("got %q", out)
	}
}

func TestJournalCommand_RequiresDB(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if _, err := execute(t, cfg, "journal"); err == nil || !strings.Contains(err.Error(), "no journal") {
		t.Fatalf("want missing journal error, got %v", err)
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	prober := discovery.ProberFunc(func(context.Context, string) (*kasa.SysInfo, error) {
		return &kasa.SysInfo{
			Alias:    "Rack A",
			Model:    "HS300(US)",
			DeviceID: "8006ABCDEF",
			Children: []kasa.ChildInfo{
				{ID: "00", Alias: "rig1", State: 1},
				{ID: "01", Alias: "rig2", State: 0},
			},
		}, nil
	})
	scanner := discovery.NewScanner(discovery.WithPort(port), discovery.WithProber(prober), discovery.WithTimeout(time.Second))

	cmd, out := testCommand()
	if err := discover(cmd, scanner, "127.0.0.1"); err != nil {
		t.Fatalf("discover: %v", err)
	}
	for _, want := range []string{"1 Kasa devices", "HS300(US)", "rig1", "rig2", "ON", "OFF"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDiscover_BadTarget(t *testing.T) {
	t.Parallel()

	cmd, _ := testCommand()
	if err := discover(cmd, discovery.NewScanner(), "not-a-network"); err == nil {
		t.Fatal("want error for bad target")
	}
}
