package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/gousb"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
)

// Descriptor identifies one attached instrument: its USB vendor and
// product id, the serial number it reports, and the model name the
// id table resolves to.
type Descriptor struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
	Model     string
}

// modelTable maps the vendor:product pairs this driver recognizes to
// a model name, mirroring the wire protocol's own per-model split of
// the vendor control command table (JS110 vs JS220 link control).
var modelTable = map[[2]uint16]string{
	{constants.VendorID, constants.ProductIDJS110}: constants.ModelJS110,
	{constants.VendorID, constants.ProductIDJS220}: constants.ModelJS220,
}

// Scanner enumerates attached instruments and claims one by descriptor.
// Backend polls Scan on an interval and diffs the result against the
// devices it already tracks to detect arrivals and departures.
type Scanner interface {
	Scan(ctx context.Context) ([]Descriptor, error)
	Open(ctx context.Context, d Descriptor) (Transport, error)
}

// GousbScanner enumerates every device whose vid:pid appears in
// modelTable using one shared *gousb.Context, the same context
// OpenGousb later claims an interface against.
type GousbScanner struct {
	ctx *gousb.Context
}

// NewGousbScanner wraps ctx; ctx must outlive the scanner.
func NewGousbScanner(ctx *gousb.Context) *GousbScanner {
	return &GousbScanner{ctx: ctx}
}

// Scan opens (briefly) every recognized device to read its serial
// number, then closes it again — a scan never holds a claim, it only
// reports what is present.
func (s *GousbScanner) Scan(ctx context.Context) ([]Descriptor, error) {
	devs, err := s.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := modelTable[[2]uint16{uint16(desc.Vendor), uint16(desc.Product)}]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("transport: scan: %w", err)
	}
	found := make([]Descriptor, 0, len(devs))
	for _, d := range devs {
		vid, pid := uint16(d.Desc.Vendor), uint16(d.Desc.Product)
		serial, serr := d.SerialNumber()
		if serr != nil {
			serial = fmt.Sprintf("%04x%04x", vid, pid)
		}
		found = append(found, Descriptor{
			VendorID:  vid,
			ProductID: pid,
			Serial:    serial,
			Model:     modelTable[[2]uint16{vid, pid}],
		})
		d.Close()
	}
	return found, nil
}

// Open claims the device matching d's vendor/product id. gousb has no
// serial-scoped open primitive, so this assumes at most one instrument
// per vid:pid pair is attached at a time — acceptable for a driver
// core whose scan interval is on the order of a second.
func (s *GousbScanner) Open(ctx context.Context, d Descriptor) (Transport, error) {
	return OpenGousb(s.ctx, d.VendorID, d.ProductID)
}

var _ Scanner = (*GousbScanner)(nil)

// MockScanner is a programmable Scanner double: SetDevices controls
// what the next Scan reports, and RegisterTransport controls what
// Open hands back for a given serial, mirroring MockTransport's
// queue-ahead-of-time style.
type MockScanner struct {
	mu      sync.Mutex
	devices []Descriptor
	opened  map[string]Transport
}

// NewMockScanner returns a scanner reporting no devices.
func NewMockScanner() *MockScanner {
	return &MockScanner{opened: make(map[string]Transport)}
}

// SetDevices replaces the set of descriptors the next Scan returns.
func (s *MockScanner) SetDevices(d []Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append([]Descriptor(nil), d...)
}

// RegisterTransport associates the Transport Open should return for serial.
func (s *MockScanner) RegisterTransport(serial string, t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened[serial] = t
}

func (s *MockScanner) Scan(ctx context.Context) ([]Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Descriptor, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

func (s *MockScanner) Open(ctx context.Context, d Descriptor) (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.opened[d.Serial]
	if !ok {
		return nil, fmt.Errorf("transport: mock scanner: no transport registered for serial %s", d.Serial)
	}
	return t, nil
}

var _ Scanner = (*MockScanner)(nil)
