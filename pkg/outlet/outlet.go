// Package outlet defines the power outlet abstractions used by the rig
// monitor. This decouples recovery logic from specific smart plug
// implementations like Kasa.
package outlet

import (
	"context"
	"fmt"
)

// Controller switches a single outlet.
type Controller interface {
	// Refresh reloads the device state.
	Refresh(ctx context.Context) error

	// IsOn reports whether the outlet currently delivers power.
	IsOn(ctx context.Context) (bool, error)

	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// Device is a top-level outlet device, a plug or a power strip.
type Device interface {
	Controller

	// Plug returns the child outlet picked by sel. Child metadata is only
	// known after Refresh, so implementations fail if called earlier.
	Plug(sel Selector) (Controller, error)
}

// Dialer creates devices for a network address.
type Dialer interface {
	Dial(address string) Device
}

// Selector picks one child outlet of a power strip.
// The zero value selects nothing and means the device itself is switched.
type Selector struct {
	// Name is the child alias; empty when unset.
	Name string

	// Index is the zero-based child position; meaningful only with HasIndex.
	Index    int
	HasIndex bool
}

// ByName selects a child outlet by alias.
func ByName(name string) Selector {
	return Selector{Name: name}
}

// ByIndex selects a child outlet by zero-based position.
func ByIndex(index int) Selector {
	return Selector{Index: index, HasIndex: true}
}

// IsZero reports whether no child outlet is selected.
func (s Selector) IsZero() bool {
	return s.Name == "" && !s.HasIndex
}

func (s Selector) String() string {
	switch {
	case s.Name != "":
		return fmt.Sprintf("plug %q", s.Name)
	case s.HasIndex:
		return fmt.Sprintf("plug #%d", s.Index)
	default:
		return "device"
	}
}

// Resolve refreshes dev and returns the controller for sel. The refresh
// always happens first so child plugs are known before selection.
func Resolve(ctx context.Context, dev Device, sel Selector) (Controller, error) {
	if err := dev.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh device: %w", err)
	}
	if sel.IsZero() {
		return dev, nil
	}

	plug, err := dev.Plug(sel)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", sel, err)
	}
	return plug, nil
}
