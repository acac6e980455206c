package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/powerhive/rig-restarter/pkg/kasa"
)

// ErrNotKasa indicates the host answered on the port but not as a Kasa device.
var ErrNotKasa = errors.New("host is not a recognized Kasa device")

// Prober reads system information from one host.
type Prober interface {
	Probe(ctx context.Context, address string) (*kasa.SysInfo, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, address string) (*kasa.SysInfo, error)

func (f ProberFunc) Probe(ctx context.Context, address string) (*kasa.SysInfo, error) {
	return f(ctx, address)
}

// KasaProber probes hosts with get_sysinfo.
func KasaProber(timeout time.Duration) Prober {
	return ProberFunc(func(ctx context.Context, address string) (*kasa.SysInfo, error) {
		return kasa.NewClient(address, kasa.WithTimeout(timeout)).GetSysInfo(ctx)
	})
}

// Detector identifies Kasa devices.
type Detector struct {
	prober  Prober
	port    int
	timeout time.Duration
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDetectorTimeout sets the detection timeout.
func WithDetectorTimeout(timeout time.Duration) DetectorOption {
	return func(d *Detector) {
		d.timeout = timeout
	}
}

// WithDetectorPort sets the device port.
func WithDetectorPort(port int) DetectorOption {
	return func(d *Detector) {
		d.port = port
	}
}

// NewDetector creates a detector. A nil prober speaks the Kasa protocol.
func NewDetector(prober Prober, opts ...DetectorOption) *Detector {
	d := &Detector{
		port:    9999,
		timeout: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(d)
	}
	if prober == nil {
		prober = KasaProber(d.timeout)
	}
	d.prober = prober

	return d
}

// DetectDevice queries host and describes the device found there.
func (d *Detector) DetectDevice(ctx context.Context, host string) (*DiscoveredDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	info, err := d.prober.Probe(ctx, net.JoinHostPort(host, strconv.Itoa(d.port)))
	if err != nil {
		if errors.Is(err, kasa.ErrInvalidResponse) {
			return nil, fmt.Errorf("%w: %v", ErrNotKasa, err)
		}
		return nil, err
	}
	if info == nil || (info.DeviceID == "" && info.Model == "") {
		return nil, ErrNotKasa
	}

	dev := &DiscoveredDevice{
		IP:              host,
		Alias:           info.Alias,
		Model:           info.Model,
		MAC:             info.MACAddress(),
		DeviceID:        info.DeviceID,
		SoftwareVersion: info.SoftwareVersion,
		RelayOn:         info.RelayState == 1,
		DiscoveredAt:    time.Now(),
	}
	for i, child := range info.Children {
		dev.Plugs = append(dev.Plugs, DiscoveredPlug{Index: i, Alias: child.Alias, On: child.State == 1})
	}
	return dev, nil
}
