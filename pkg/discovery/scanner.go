package discovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/powerhive/rig-restarter/internal/netutil"
)

// Scanner discovers Kasa devices on the network.
type Scanner struct {
	sweep    netutil.Sweep
	detector *Detector
	prober   Prober
	opts     ScanOptions
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithTimeout sets the timeout for each host.
func WithTimeout(timeout time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.opts.Timeout = timeout
	}
}

// WithConcurrency sets the maximum concurrent scans.
func WithConcurrency(concurrency int) ScannerOption {
	return func(s *Scanner) {
		s.opts.Concurrency = concurrency
	}
}

// WithPort sets the port to scan.
func WithPort(port int) ScannerOption {
	return func(s *Scanner) {
		s.opts.Port = port
	}
}

// WithProber replaces the Kasa protocol prober.
func WithProber(p Prober) ScannerOption {
	return func(s *Scanner) {
		s.prober = p
	}
}

// NewScanner creates a new network scanner.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		opts: DefaultScanOptions(),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.opts.Concurrency < 1 {
		s.opts.Concurrency = 1
	}

	s.sweep = netutil.Sweep{
		Port:        s.opts.Port,
		Timeout:     s.opts.Timeout,
		Concurrency: s.opts.Concurrency,
	}
	s.detector = NewDetector(s.prober,
		WithDetectorTimeout(s.opts.Timeout),
		WithDetectorPort(s.opts.Port),
	)

	return s
}

// ScanNetwork scans a CIDR or an "a-b" range for Kasa devices.
// Example: "192.168.1.0/24"
func (s *Scanner) ScanNetwork(ctx context.Context, target string) (*ScanResult, error) {
	ips, err := netutil.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	return s.scanIPs(ctx, ips)
}

// ScanHosts scans specific IP addresses.
func (s *Scanner) ScanHosts(ctx context.Context, hosts []string) (*ScanResult, error) {
	return s.scanIPs(ctx, hosts)
}

func (s *Scanner) scanIPs(ctx context.Context, ips []string) (*ScanResult, error) {
	startTime := time.Now()

	result := &ScanResult{
		Devices:    make([]DiscoveredDevice, 0),
		Errors:     make(map[string]error),
		ScannedIPs: len(ips),
	}

	// Phase 1: port scan to find responsive hosts
	responsiveHosts := s.sweep.OpenHosts(ctx, ips)
	result.ResponsiveHosts = len(responsiveHosts)

	// Phase 2: ask each responsive host for its sysinfo
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.opts.Concurrency)
	)

scanLoop:
	for _, host := range responsiveHosts {
		select {
		case <-ctx.Done():
			break scanLoop
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(ip string) {
			defer wg.Done()
			defer func() { <-sem }()

			discovered, err := s.detector.DetectDevice(ctx, ip)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Errors[ip] = err
			} else if discovered != nil {
				result.Devices = append(result.Devices, *discovered)
			}
		}(host)
	}

	wg.Wait()

	order := make(map[string]int, len(ips))
	for i, ip := range ips {
		order[ip] = i
	}
	sort.Slice(result.Devices, func(i, j int) bool {
		return order[result.Devices[i].IP] < order[result.Devices[j].IP]
	})
	result.Duration = time.Since(startTime)

	return result, ctx.Err()
}
