package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/daq"
)

const maxConsecutiveErrors = 5

var (
	// errorBackoff is the pause after a failed pass.
	errorBackoff = time.Second

	ErrTooManyErrors = errors.New("too many consecutive acquisition errors")
)

// Target maps a connector pin to the device channel wired to it.
type Target struct {
	Pin     int
	Channel int
}

// Reading is one raw voltage read from a pin.
type Reading struct {
	Pin     int
	Channel int
	Volts   float64
	Time    time.Time
}

// Acquirer polls the targets of a device at a fixed rate. It is the only
// producer of readings, so readings of a pin arrive in acquisition order.
type Acquirer struct {
	Device daq.Device
	// Interval returns the time between passes. It is consulted after
	// every pass so rate changes apply immediately.
	Interval func() time.Duration
	// Targets returns the pins to read in the next pass.
	Targets func() []Target

	now func() time.Time
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Acquirer) pass(ctx context.Context, out chan<- Reading) error {
	for _, tgt := range a.Targets() {
		v, err := a.Device.Read(ctx, tgt.Channel)
		if err != nil {
			return fmt.Errorf("pin %d (channel %d): %w", tgt.Pin, tgt.Channel, err)
		}
		select {
		case out <- Reading{Pin: tgt.Pin, Channel: tgt.Channel, Volts: v, Time: a.now()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run acquires until ctx is canceled or too many passes in a row fail. It
// closes out when it returns. A canceled context is a clean stop and
// returns nil.
func (a *Acquirer) Run(ctx context.Context, out chan<- Reading) error {
	defer close(out)
	if a.now == nil {
		a.now = time.Now
	}

	consecutiveErrors := 0
	for {
		err := a.pass(ctx, out)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			consecutiveErrors++
			logrus.WithError(err).WithFields(logrus.Fields{
				"errors":    consecutiveErrors,
				"maxErrors": maxConsecutiveErrors,
			}).Warn("acquisition error")
			if consecutiveErrors >= maxConsecutiveErrors {
				return fmt.Errorf("%w: %v", ErrTooManyErrors, err)
			}
			if !sleepCtx(ctx, errorBackoff) {
				return nil
			}
			continue
		}

		consecutiveErrors = 0
		if !sleepCtx(ctx, a.Interval()) {
			return nil
		}
	}
}
