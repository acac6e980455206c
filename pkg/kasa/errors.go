package kasa

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the device could not be reached.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidResponse indicates the device answered with something unexpected.
	ErrInvalidResponse = errors.New("invalid device response")

	// ErrNotRefreshed indicates child plugs were requested before the first refresh.
	ErrNotRefreshed = errors.New("device has not been refreshed")

	// ErrPlugNotFound indicates no child plug matches the selector.
	ErrPlugNotFound = errors.New("plug not found")

	// ErrNotStrip indicates a child plug was requested from a single outlet device.
	ErrNotStrip = errors.New("device has no child plugs")
)

// DeviceError is a non-zero err_code returned by a device.
type DeviceError struct {
	Host    string
	Method  string
	Code    int
	Message string
}

func (e *DeviceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("kasa %s at %s: err_code %d: %s", e.Method, e.Host, e.Code, e.Message)
	}
	return fmt.Sprintf("kasa %s at %s: err_code %d", e.Method, e.Host, e.Code)
}
