package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// GousbTransport implements Transport over a claimed *gousb.Device,
// following the same open/claim-interface/endpoint shape as a USBTMC
// bulk device: auto-detach the kernel driver, take the default
// interface, and hand out endpoints by number.
type GousbTransport struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	iface  *gousb.Interface
	closer func()
	serial string
}

// OpenGousb claims vid:pid and returns a ready Transport. Exactly one
// GousbTransport should exist per physical device; Backend is
// responsible for not opening the same VID:PID:serial twice.
func OpenGousb(ctx *gousb.Context, vid, pid uint16) (*GousbTransport, error) {
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, fmt.Errorf("transport: open %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("transport: no device matching %04x:%04x", vid, pid)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		return nil, fmt.Errorf("transport: set auto detach: %w", err)
	}
	iface, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("transport: claim default interface: %w", err)
	}
	serial, err := dev.SerialNumber()
	if err != nil {
		serial = fmt.Sprintf("%04x%04x", vid, pid)
	}
	return &GousbTransport{ctx: ctx, dev: dev, iface: iface, closer: done, serial: serial}, nil
}

func (t *GousbTransport) SerialNumber() string { return t.serial }

func (t *GousbTransport) ControlIn(ctx context.Context, req SetupRequest, buf []byte) (int, error) {
	timeout := controlDeadline(ctx)
	t.dev.ControlTimeout = timeout
	n, err := t.dev.Control(req.RequestType, req.Request, req.Value, req.Index, buf)
	if err != nil {
		return 0, fmt.Errorf("transport: control in: %w", err)
	}
	return n, nil
}

func (t *GousbTransport) ControlOut(ctx context.Context, req SetupRequest, data []byte) error {
	timeout := controlDeadline(ctx)
	t.dev.ControlTimeout = timeout
	_, err := t.dev.Control(req.RequestType, req.Request, req.Value, req.Index, data)
	if err != nil {
		return fmt.Errorf("transport: control out: %w", err)
	}
	return nil
}

func (t *GousbTransport) OpenBulkIn(endpoint int) (BulkInEndpoint, error) {
	ep, err := t.iface.InEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: open bulk-in ep %d: %w", endpoint, err)
	}
	return &gousbBulkIn{ep: ep}, nil
}

func (t *GousbTransport) OpenBulkOut(endpoint int) (BulkOutEndpoint, error) {
	ep, err := t.iface.OutEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: open bulk-out ep %d: %w", endpoint, err)
	}
	return &gousbBulkOut{ep: ep}, nil
}

func (t *GousbTransport) Close() error {
	if t.closer != nil {
		t.closer()
	}
	return t.dev.Close()
}

func controlDeadline(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return DefaultControlTimeout
}

type gousbBulkIn struct{ ep *gousb.InEndpoint }

func (b *gousbBulkIn) Read(ctx context.Context, buf []byte) (int, error) {
	stream, err := b.ep.NewStream(len(buf), 1)
	if err != nil {
		return 0, fmt.Errorf("transport: bulk-in stream: %w", err)
	}
	defer stream.Close()
	n, err := stream.Read(buf)
	if err != nil {
		return n, fmt.Errorf("transport: bulk-in read: %w", err)
	}
	return n, nil
}

func (b *gousbBulkIn) Close() error { return nil }

type gousbBulkOut struct{ ep *gousb.OutEndpoint }

func (b *gousbBulkOut) Write(ctx context.Context, buf []byte) (int, error) {
	n, err := b.ep.Write(buf)
	if err != nil {
		return n, fmt.Errorf("transport: bulk-out write: %w", err)
	}
	return n, nil
}

func (b *gousbBulkOut) Close() error { return nil }

var _ Transport = (*GousbTransport)(nil)
