package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charlie0129/daqmon/pkg/daq"
)

// fakeDevice returns channel+0.5 V, or the scripted errors in order. Reads
// block until gate is closed, if set.
type fakeDevice struct {
	gate chan struct{}

	mu     sync.Mutex
	reads  int
	errs   []error
	closed bool
}

func (f *fakeDevice) Info() daq.Info {
	return daq.Info{Backend: "fake", Name: "Fake DAQ"}
}

func (f *fakeDevice) NumChannels() int { return 8 }

func (f *fakeDevice) Read(ctx context.Context, channel int) (float64, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	return float64(channel) + 0.5, nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func withFastBackoff(t *testing.T) {
	old := errorBackoff
	errorBackoff = time.Millisecond
	t.Cleanup(func() { errorBackoff = old })
}

func TestAcquirerOrder(t *testing.T) {
	dev := &fakeDevice{}
	acq := &Acquirer{
		Device:   dev,
		Interval: func() time.Duration { return time.Millisecond },
		Targets: func() []Target {
			return []Target{{Pin: 1, Channel: 0}, {Pin: 2, Channel: 1}}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Reading)
	errc := make(chan error, 1)
	go func() { errc <- acq.Run(ctx, out) }()

	var got []Reading
	for r := range out {
		got = append(got, r)
		if len(got) == 10 {
			cancel()
			break
		}
	}
	for range out {
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run() = %v, want nil after cancel", err)
	}

	last := map[int]time.Time{}
	for i, r := range got {
		wantPin := 1 + i%2
		if r.Pin != wantPin {
			t.Fatalf("reading %d is pin %d, want %d", i, r.Pin, wantPin)
		}
		if r.Volts != float64(r.Channel)+0.5 {
			t.Errorf("reading %d volts = %v", i, r.Volts)
		}
		if r.Time.Before(last[r.Pin]) {
			t.Errorf("pin %d readings out of order", r.Pin)
		}
		last[r.Pin] = r.Time
	}
}

func TestAcquirerStopsAfterConsecutiveErrors(t *testing.T) {
	withFastBackoff(t)

	boom := errors.New("device unplugged")
	tests := []struct {
		name      string
		errs      []error
		wantReads int
	}{
		{
			name:      "five failures in a row",
			errs:      []error{boom, boom, boom, boom, boom},
			wantReads: 5,
		},
		{
			name: "a success resets the count",
			errs: []error{boom, boom, boom, boom, nil, boom, boom, boom, boom, boom},
			// 4 failed passes, 1 good pass, then 5 failed passes.
			wantReads: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{errs: tt.errs}
			acq := &Acquirer{
				Device:   dev,
				Interval: func() time.Duration { return time.Millisecond },
				Targets:  func() []Target { return []Target{{Pin: 1, Channel: 0}} },
			}
			// Fail every read after the script too.
			for i := 0; i < 10; i++ {
				dev.errs = append(dev.errs, boom)
			}

			out := make(chan Reading, 16)
			err := acq.Run(context.Background(), out)
			if !errors.Is(err, ErrTooManyErrors) {
				t.Fatalf("Run() = %v, want ErrTooManyErrors", err)
			}
			if dev.reads != tt.wantReads {
				t.Errorf("device read %d times, want %d", dev.reads, tt.wantReads)
			}
			if _, ok := <-out; ok && tt.wantReads == 5 {
				t.Error("no reading should have been produced")
			}
		})
	}
}
