// Package kasa controls TP-Link Kasa smart plugs and power strips over the
// local TCP protocol on port 9999.
package kasa

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/powerhive/rig-restarter/pkg/outlet"
)

// DefaultPort is the TCP port Kasa devices listen on.
const DefaultPort = "9999"

// Client talks to one Kasa device. It implements outlet.Device.
type Client struct {
	host    string
	address string
	timeout time.Duration
	dialer  *net.Dialer

	mu      sync.Mutex
	sysInfo *SysInfo
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each request to the device.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithDialer sets the dialer used to open device connections.
func WithDialer(dialer *net.Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// NewClient creates a client for address, which is a host or host:port.
func NewClient(address string, opts ...ClientOption) *Client {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		host, port = address, DefaultPort
	}

	c := &Client{
		host:    host,
		address: net.JoinHostPort(host, port),
		timeout: 5 * time.Second,
		dialer:  &net.Dialer{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Host returns the device host.
func (c *Client) Host() string {
	return c.host
}

// call marshals req, sends it and decodes the reply into resp.
func (c *Client) call(ctx context.Context, req, resp interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := roundTrip(ctx, c.dialer, c.address, c.timeout, payload)
	if err != nil {
		return fmt.Errorf("kasa %s: %w", c.host, err)
	}

	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("kasa %s: %w: %v", c.host, ErrInvalidResponse, err)
	}
	return nil
}

// GetSysInfo fetches device information without touching the cache.
func (c *Client) GetSysInfo(ctx context.Context) (*SysInfo, error) {
	var resp sysInfoResponse
	if err := c.call(ctx, sysInfoRequest{}, &resp); err != nil {
		return nil, err
	}

	info := resp.System.GetSysInfo
	if info == nil {
		return nil, fmt.Errorf("kasa %s: %w: missing get_sysinfo", c.host, ErrInvalidResponse)
	}
	if info.ErrCode != 0 {
		return nil, &DeviceError{Host: c.host, Method: "get_sysinfo", Code: info.ErrCode, Message: info.ErrMsg}
	}
	return info, nil
}

// Refresh reloads and caches the device sysinfo.
func (c *Client) Refresh(ctx context.Context) error {
	info, err := c.GetSysInfo(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sysInfo = info
	c.mu.Unlock()
	return nil
}

// SysInfo returns the cached sysinfo, or nil before the first Refresh.
func (c *Client) SysInfo() *SysInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sysInfo
}

// IsOn refreshes the device and reports its relay state.
func (c *Client) IsOn(ctx context.Context) (bool, error) {
	if err := c.Refresh(ctx); err != nil {
		return false, err
	}
	return c.SysInfo().RelayState == 1, nil
}

// TurnOn closes the device relay.
func (c *Client) TurnOn(ctx context.Context) error {
	return c.setRelayState(ctx, true, "")
}

// TurnOff opens the device relay.
func (c *Client) TurnOff(ctx context.Context) error {
	return c.setRelayState(ctx, false, "")
}

// Plug returns the child outlet of a power strip picked by sel.
func (c *Client) Plug(sel outlet.Selector) (outlet.Controller, error) {
	info := c.SysInfo()
	if info == nil {
		return nil, ErrNotRefreshed
	}
	if !info.IsStrip() {
		return nil, fmt.Errorf("%w: %s", ErrNotStrip, c.host)
	}

	switch {
	case sel.Name != "":
		for i, child := range info.Children {
			if child.Alias == sel.Name {
				return &Plug{parent: c, index: i, id: childID(info.DeviceID, child.ID)}, nil
			}
		}
		return nil, fmt.Errorf("%w: no plug named %q on %s", ErrPlugNotFound, sel.Name, c.host)
	case sel.HasIndex:
		if sel.Index < 0 || sel.Index >= len(info.Children) {
			return nil, fmt.Errorf("%w: index %d out of range (%d plugs) on %s",
				ErrPlugNotFound, sel.Index, len(info.Children), c.host)
		}
		return &Plug{parent: c, index: sel.Index, id: childID(info.DeviceID, info.Children[sel.Index].ID)}, nil
	default:
		return c, nil
	}
}

// setRelayState switches the device, or one child when childID is set.
func (c *Client) setRelayState(ctx context.Context, on bool, childID string) error {
	var req relayStateRequest
	if on {
		req.System.SetRelayState.State = 1
	}
	if childID != "" {
		req.Context = &requestContext{ChildIDs: []string{childID}}
	}

	var resp relayStateResponse
	if err := c.call(ctx, req, &resp); err != nil {
		return err
	}

	result := resp.System.SetRelayState
	if result == nil {
		return fmt.Errorf("kasa %s: %w: missing set_relay_state", c.host, ErrInvalidResponse)
	}
	if result.ErrCode != 0 {
		return &DeviceError{Host: c.host, Method: "set_relay_state", Code: result.ErrCode, Message: result.ErrMsg}
	}
	return nil
}

// childID returns the full id of a child outlet. Some firmware reports
// only the suffix, which must be prefixed with the parent device id.
func childID(deviceID, id string) string {
	if strings.HasPrefix(id, deviceID) {
		return id
	}
	return deviceID + id
}

// Ensure Client implements outlet.Device.
var _ outlet.Device = (*Client)(nil)
