package kasa

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// initialKey seeds the XOR autokey cipher used by Kasa devices.
const initialKey byte = 171

// maxResponseSize caps the length prefix accepted from a device.
const maxResponseSize = 1 << 20

// encrypt applies the autokey cipher and prepends the big-endian length.
func encrypt(plain []byte) []byte {
	out := make([]byte, 4+len(plain))
	binary.BigEndian.PutUint32(out, uint32(len(plain)))

	key := initialKey
	for i, b := range plain {
		key ^= b
		out[4+i] = key
	}
	return out
}

// decrypt reverses the autokey cipher on a payload without length prefix.
func decrypt(cipher []byte) []byte {
	out := make([]byte, len(cipher))

	key := initialKey
	for i, b := range cipher {
		out[i] = key ^ b
		key = b
	}
	return out
}

// roundTrip sends one request frame and reads one response frame.
func roundTrip(ctx context.Context, dialer *net.Dialer, address string, timeout time.Duration, payload []byte) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	if _, err := conn.Write(encrypt(payload)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, fmt.Errorf("read response header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxResponseSize {
		return nil, fmt.Errorf("%w: response of %d bytes", ErrInvalidResponse, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return decrypt(body), nil
}
