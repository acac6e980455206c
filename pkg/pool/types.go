// Package pool queries mining pool APIs for the status of a single worker
// and decides whether that worker should be considered online.
package pool

import (
	"fmt"
	"strings"
)

// Kind identifies a pool status API.
type Kind string

const (
	KindFlexpool  Kind = "flexpool"
	KindEthermine Kind = "ethermine"
)

// ParseKind returns the Kind for a status_api value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFlexpool, KindEthermine:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}

// RequiresCoin reports whether queries against this kind need a coin.
func (k Kind) RequiresCoin() bool {
	return k == KindFlexpool
}

// Query identifies one worker on one pool.
type Query struct {
	Kind   Kind
	Worker string
	Wallet string
	Coin   string
}

// WorkerStatus is the pool's view of a single worker.
type WorkerStatus struct {
	// Name is the worker name reported by the pool.
	Name string

	// LastSeen is the last time the pool saw the worker, in epoch seconds.
	LastSeen int64

	// IsOnline is the pool's own online flag.
	IsOnline bool
}
