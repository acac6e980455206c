package netutil

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"
)

// Sweep checks which hosts accept TCP connections on one port.
type Sweep struct {
	Port        int
	Timeout     time.Duration
	Concurrency int
}

// OpenHosts dials every host once and returns those that accepted, in the
// order given. Hosts not yet dialed when ctx is cancelled are skipped.
func (s Sweep) OpenHosts(ctx context.Context, hosts []string) []string {
	if len(hosts) == 0 {
		return nil
	}
	workers := s.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(hosts) {
		workers = len(hosts)
	}

	port := strconv.Itoa(s.Port)
	dialer := &net.Dialer{Timeout: s.Timeout}
	open := make([]bool, len(hosts))

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(hosts[i], port))
				if err != nil {
					continue
				}
				conn.Close()
				open[i] = true
			}
		}()
	}

feed:
	for i := range hosts {
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	var out []string
	for i, ok := range open {
		if ok {
			out = append(out, hosts[i])
		}
	}
	return out
}
