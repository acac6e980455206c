// Package rig loads the per-rig monitoring configuration: a list of rig
// overrides merged on top of per-pool defaults.
package rig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/powerhive/rig-restarter/pkg/outlet"
	"github.com/powerhive/rig-restarter/pkg/pool"
)

// JSON keys of a rig descriptor.
const (
	FieldStatusAPI              = "status_api"
	FieldWallet                 = "wallet"
	FieldCoin                   = "coin"
	FieldWorkerName             = "worker_name"
	FieldDeviceAddress          = "kasa_device_ip"
	FieldPlugName               = "smart_strip_plug_name"
	FieldPlugNumber             = "smart_strip_plug_number"
	FieldPowerCycleOnDelay      = "power_cycle_on_delay"
	FieldTimeUntilOffline       = "time_until_offline"
	FieldStatusCheckFrequency   = "status_check_frequency"
	FieldStatusCheckCooldown    = "status_check_cooldown"
	FieldMaxConsecutiveRestarts = "max_consecutive_restarts"
)

// Fallbacks for timing fields absent from both the rig and its defaults.
const (
	DefaultPowerCycleOffSeconds   = 3
	DefaultTimeUntilOffline       = 10
	DefaultStatusCheckFrequency   = 3
	DefaultStatusCheckCooldown    = 10
	DefaultMaxConsecutiveRestarts = 5
)

// Config is the merged configuration of one rig.
type Config struct {
	StatusAPI     pool.Kind
	Wallet        string
	Coin          string
	WorkerName    string
	DeviceAddress string
	Plug          outlet.Selector

	// PowerCycleOffDuration is how long the outlet stays off during a power cycle.
	PowerCycleOffDuration time.Duration

	// TimeUntilOffline is the staleness threshold in minutes. Zero or less
	// means the pool's own online flag is trusted.
	TimeUntilOffline float64

	StatusCheckFrequency   time.Duration
	StatusCheckCooldown    time.Duration
	MaxConsecutiveRestarts int
}

// Query returns the pool query for this rig.
func (c Config) Query() pool.Query {
	return pool.Query{
		Kind:   c.StatusAPI,
		Worker: c.WorkerName,
		Wallet: c.Wallet,
		Coin:   c.Coin,
	}
}

func (c Config) String() string {
	return c.WorkerName
}

// Defaults holds default rig fields per pool kind. It is read-only after
// loading and may be shared.
type Defaults map[pool.Kind]map[string]json.RawMessage

// LoadDefaults reads the defaults file.
func LoadDefaults(path string) (Defaults, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open defaults: %w", err)
	}
	defer f.Close()

	defaults, err := ParseDefaults(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defaults, nil
}

// ParseDefaults decodes an object keyed by status_api. Comments and
// trailing commas are allowed.
func ParseDefaults(r io.Reader) (Defaults, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: defaults: %v", ErrMalformedJSON, err)
	}

	defaults := make(Defaults, len(raw))
	for key, fields := range raw {
		kind, err := pool.ParseKind(key)
		if err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
		defaults[kind] = fields
	}
	return defaults, nil
}

// LoadRigs reads the rig list and merges defaults into every rig.
func LoadRigs(path string, defaults Defaults) ([]Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rigs: %w", err)
	}
	defer f.Close()

	rigs, err := ParseRigs(f, defaults)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rigs, nil
}

// ParseRigs decodes an array of rig overrides. Every rig is validated and
// all problems are reported together; no partial list is returned. Like
// the defaults, the list may carry comments and trailing commas.
func ParseRigs(r io.Reader, defaults Defaults) ([]Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rigs: %w", err)
	}
	var overrides []map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &overrides); err != nil {
		return nil, fmt.Errorf("%w: rigs: %v", ErrMalformedJSON, err)
	}
	if len(overrides) == 0 {
		return nil, ErrNoRigs
	}

	rigs := make([]Config, 0, len(overrides))
	var errs []error
	for i, override := range overrides {
		cfg, err := Merge(defaults, override)
		if err != nil {
			var fe *FieldError
			if errors.As(err, &fe) {
				fe.Index = i
			}
			errs = append(errs, err)
			continue
		}
		rigs = append(rigs, cfg)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rigs, nil
}

// document is a merged rig descriptor. Pointers record presence.
type document struct {
	StatusAPI              *string  `json:"status_api"`
	Wallet                 *string  `json:"wallet"`
	Coin                   *string  `json:"coin"`
	WorkerName             *string  `json:"worker_name"`
	DeviceAddress          *string  `json:"kasa_device_ip"`
	PlugName               *string  `json:"smart_strip_plug_name"`
	PlugNumber             *int     `json:"smart_strip_plug_number"`
	PowerCycleOnDelay      *float64 `json:"power_cycle_on_delay"`
	TimeUntilOffline       *float64 `json:"time_until_offline"`
	StatusCheckFrequency   *float64 `json:"status_check_frequency"`
	StatusCheckCooldown    *float64 `json:"status_check_cooldown"`
	MaxConsecutiveRestarts *int     `json:"max_consecutive_restarts"`
}

// Merge applies override on top of the defaults for its status_api and
// validates the result. Keys in override win.
func Merge(defaults Defaults, override map[string]json.RawMessage) (Config, error) {
	worker := rawString(override[FieldWorkerName])
	fail := func(field string, err error) (Config, error) {
		return Config{}, &FieldError{Worker: worker, Field: field, Err: err}
	}

	statusAPI := rawString(override[FieldStatusAPI])
	if statusAPI == "" {
		return fail(FieldStatusAPI, ErrMissingField)
	}
	kind, err := pool.ParseKind(statusAPI)
	if err != nil {
		return fail(FieldStatusAPI, err)
	}

	merged := make(map[string]json.RawMessage, len(defaults[kind])+len(override))
	for k, v := range defaults[kind] {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	body, err := json.Marshal(merged)
	if err != nil {
		return fail("*", fmt.Errorf("%w: %v", ErrMalformedJSON, err))
	}
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fail(typeErr.Field, fmt.Errorf("%w: want %s, got %s", ErrInvalidField, typeErr.Type, typeErr.Value))
		}
		return fail("*", fmt.Errorf("%w: %v", ErrMalformedJSON, err))
	}

	cfg := Config{StatusAPI: kind}

	for _, f := range []struct {
		name string
		src  *string
		dst  *string
	}{
		{FieldWallet, doc.Wallet, &cfg.Wallet},
		{FieldWorkerName, doc.WorkerName, &cfg.WorkerName},
		{FieldDeviceAddress, doc.DeviceAddress, &cfg.DeviceAddress},
	} {
		if f.src == nil || strings.TrimSpace(*f.src) == "" {
			return fail(f.name, ErrMissingField)
		}
		*f.dst = strings.TrimSpace(*f.src)
	}

	if doc.Coin != nil {
		cfg.Coin = strings.TrimSpace(*doc.Coin)
	}
	if kind.RequiresCoin() && cfg.Coin == "" {
		return fail(FieldCoin, fmt.Errorf("%w for %s", ErrMissingField, kind))
	}

	// A name wins over a number; a negative number means no plug.
	switch {
	case doc.PlugName != nil && *doc.PlugName != "":
		cfg.Plug = outlet.ByName(*doc.PlugName)
	case doc.PlugNumber != nil && *doc.PlugNumber >= 0:
		cfg.Plug = outlet.ByIndex(*doc.PlugNumber)
	}

	offSeconds := orDefault(doc.PowerCycleOnDelay, DefaultPowerCycleOffSeconds)
	if offSeconds < 0 {
		return fail(FieldPowerCycleOnDelay, fmt.Errorf("%w: must be >= 0", ErrInvalidField))
	}
	cfg.PowerCycleOffDuration = seconds(offSeconds)

	cfg.TimeUntilOffline = orDefault(doc.TimeUntilOffline, DefaultTimeUntilOffline)

	frequency := orDefault(doc.StatusCheckFrequency, DefaultStatusCheckFrequency)
	if frequency <= 0 {
		return fail(FieldStatusCheckFrequency, fmt.Errorf("%w: must be > 0", ErrInvalidField))
	}
	cfg.StatusCheckFrequency = minutes(frequency)

	cooldown := orDefault(doc.StatusCheckCooldown, DefaultStatusCheckCooldown)
	if cooldown <= 0 {
		return fail(FieldStatusCheckCooldown, fmt.Errorf("%w: must be > 0", ErrInvalidField))
	}
	cfg.StatusCheckCooldown = minutes(cooldown)

	cfg.MaxConsecutiveRestarts = DefaultMaxConsecutiveRestarts
	if doc.MaxConsecutiveRestarts != nil {
		cfg.MaxConsecutiveRestarts = *doc.MaxConsecutiveRestarts
	}
	if cfg.MaxConsecutiveRestarts <= 0 {
		return fail(FieldMaxConsecutiveRestarts, fmt.Errorf("%w: must be > 0", ErrInvalidField))
	}

	return cfg, nil
}

// rawString decodes a JSON string, returning "" for anything else.
func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func orDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

func minutes(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Minute)))
}
