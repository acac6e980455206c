package kasa

import (
	"context"
	"fmt"

	"github.com/powerhive/rig-restarter/pkg/outlet"
)

// Plug is one outlet of a power strip. State is read through the parent.
type Plug struct {
	parent *Client
	index  int
	id     string
}

// ID returns the full child id used in request contexts.
func (p *Plug) ID() string {
	return p.id
}

// Refresh reloads the parent strip.
func (p *Plug) Refresh(ctx context.Context) error {
	return p.parent.Refresh(ctx)
}

// IsOn refreshes the parent strip and reports this outlet's state.
func (p *Plug) IsOn(ctx context.Context) (bool, error) {
	if err := p.parent.Refresh(ctx); err != nil {
		return false, err
	}

	info := p.parent.SysInfo()
	if p.index >= len(info.Children) {
		return false, fmt.Errorf("%w: plug #%d disappeared from %s", ErrPlugNotFound, p.index, p.parent.host)
	}
	return info.Children[p.index].State == 1, nil
}

// TurnOn switches this outlet on.
func (p *Plug) TurnOn(ctx context.Context) error {
	return p.parent.setRelayState(ctx, true, p.id)
}

// TurnOff switches this outlet off.
func (p *Plug) TurnOff(ctx context.Context) error {
	return p.parent.setRelayState(ctx, false, p.id)
}

// Dialer creates Kasa clients. It implements outlet.Dialer.
type Dialer struct {
	opts []ClientOption
}

// NewDialer creates a dialer whose clients share opts.
func NewDialer(opts ...ClientOption) *Dialer {
	return &Dialer{opts: opts}
}

// Dial creates a client for address. No connection is made until first use.
func (d *Dialer) Dial(address string) outlet.Device {
	return NewClient(address, d.opts...)
}

var (
	_ outlet.Controller = (*Plug)(nil)
	_ outlet.Dialer     = (*Dialer)(nil)
)
