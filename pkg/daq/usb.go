package daq

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

// KnownVendors lists the USB vendor IDs claimed as DAQ hardware. USB-serial
// bridges such as FTDI (0x0403) or Silicon Labs (0x10c4) are left out so the
// serial prober can reach DAQs behind them.
var KnownVendors = map[gousb.ID]string{
	0x09db: "Measurement Computing",
	0x0683: "Measurement Computing (alternative)",
}

const usbChannels = 8

// USBProber opens the first USB device whose vendor is in Vendors.
type USBProber struct {
	Vendors map[gousb.ID]string
}

func NewUSBProber() *USBProber {
	return &USBProber{Vendors: KnownVendors}
}

func (*USBProber) Name() string { return BackendUSB }

func (p *USBProber) matches(desc *gousb.DeviceDesc) bool {
	_, ok := p.Vendors[desc.Vendor]
	return ok
}

func (p *USBProber) Probe(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usbctx := gousb.NewContext()
	devs, err := usbctx.OpenDevices(p.matches)
	if len(devs) == 0 {
		_ = usbctx.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
		}
		return nil, ErrNoDevice
	}
	// OpenDevices may report an error for devices it failed to open while
	// still returning the ones it did.
	if err != nil {
		logrus.WithError(err).Debug("some USB devices could not be opened")
	}

	dev := devs[0]
	for _, d := range devs[1:] {
		_ = d.Close()
	}

	return &usbDevice{
		ctx:    usbctx,
		dev:    dev,
		vendor: p.Vendors[dev.Desc.Vendor],
	}, nil
}

// usbDevice is a DAQ reached over generic USB. Without the vendor protocol it
// cannot sample, so reads report 0 V.
type usbDevice struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	vendor string

	warnOnce sync.Once
	mu       sync.Mutex
	closed   bool
}

func (u *usbDevice) Info() Info {
	return Info{
		Backend: BackendUSB,
		Name:    fmt.Sprintf("%s USB Device (PID: %s)", u.vendor, u.dev.Desc.Product),
		Path:    fmt.Sprintf("bus %d address %d", u.dev.Desc.Bus, u.dev.Desc.Address),
	}
}

func (u *usbDevice) NumChannels() int { return usbChannels }

func (u *usbDevice) Read(ctx context.Context, channel int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if channel < 0 || channel >= usbChannels {
		return 0, ErrChannelOutOfRange
	}

	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	u.warnOnce.Do(func() {
		logrus.WithField("device", u.Info().Name).Warn("generic USB mode has no sampling protocol, all channels read 0 V")
	})
	return 0, nil
}

func (u *usbDevice) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true

	err := u.dev.Close()
	if cerr := u.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}
