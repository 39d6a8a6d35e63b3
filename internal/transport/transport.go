// Package transport abstracts the USB control and bulk transfer
// mechanism LLDevice drives.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("transport: closed")

// ErrTimeout is returned when a control or bulk operation exceeds its
// deadline without completing.
var ErrTimeout = errors.New("transport: timed out")

// SetupRequest is the USB control-transfer parameters: request type,
// request code, value, and index. The data stage is passed separately
// to ControlIn/ControlOut.
type SetupRequest struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
}

// Transport is the interface LLDevice drives against one claimed USB
// device: a single in-flight control pipe plus a pool of bulk-IN/OUT
// endpoints. A concrete Transport owns all libusb-level resource
// lifetime; callers never see a *gousb.Device directly.
type Transport interface {
	// ControlIn issues an IN control transfer and reads up to len(buf)
	// bytes into it, returning the number actually read.
	ControlIn(ctx context.Context, req SetupRequest, buf []byte) (int, error)

	// ControlOut issues an OUT control transfer carrying data.
	ControlOut(ctx context.Context, req SetupRequest, data []byte) error

	// OpenBulkIn claims the given bulk-IN endpoint for streaming reads.
	OpenBulkIn(endpoint int) (BulkInEndpoint, error)

	// OpenBulkOut claims the given bulk-OUT endpoint for writes.
	OpenBulkOut(endpoint int) (BulkOutEndpoint, error)

	// SerialNumber returns the instrument's USB serial string, used to
	// build the device-scoped topic prefix.
	SerialNumber() string

	// Close releases the underlying USB handle and every endpoint
	// opened through it.
	Close() error
}

// BulkInEndpoint reads fixed-size frames from one claimed bulk-IN pipe.
type BulkInEndpoint interface {
	Read(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// BulkOutEndpoint writes fixed-size frames to one claimed bulk-OUT pipe.
type BulkOutEndpoint interface {
	Write(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// DefaultControlTimeout bounds a ControlIn/ControlOut call made without
// an explicit per-call context deadline.
const DefaultControlTimeout = 1 * time.Second
