package recording

import (
	"sort"
	"time"

	"github.com/charlie0129/daqmon/pkg/calibration"
)

// Channel is the configuration of a channel captured when recording starts.
type Channel struct {
	ID          int                     `json:"id"`
	Name        string                  `json:"name"`
	Color       string                  `json:"color,omitempty"`
	Calibration calibration.Calibration `json:"calibration"`
}

// Sample is a single reading. It is never modified after being recorded.
type Sample struct {
	ChannelID    int
	Raw          float64
	Calibrated   float64
	Timestamp    time.Time
	RelativeTime time.Duration
}

// Session is one recording interval. Its channel set and column layout are
// fixed when it starts.
type Session struct {
	ID           string
	FilenameHint string
	StartedAt    time.Time
	StoppedAt    time.Time

	channels map[int]Channel
	order    []int
	units    []string
	samples  []Sample
}

func newSession(id string, startedAt time.Time, channels map[int]Channel) *Session {
	s := &Session{
		ID:           id,
		FilenameHint: FilenameHint(startedAt),
		StartedAt:    startedAt,
		channels:     channels,
	}

	for ch := range channels {
		s.order = append(s.order, ch)
	}
	sort.Ints(s.order)

	seen := map[string]bool{}
	for _, c := range channels {
		if !c.Calibration.Enabled {
			continue
		}
		u := c.Calibration.DisplayUnit()
		if !seen[u] {
			seen[u] = true
			s.units = append(s.units, u)
		}
	}
	sort.Strings(s.units)

	return s
}

// FilenameHint is the suggested export file name for a session started at t.
func FilenameHint(t time.Time) string {
	return "daq_recording_" + t.Format("20060102_150405") + ".csv"
}

// Channel returns the configuration of an active channel.
func (s *Session) Channel(id int) (Channel, bool) {
	c, ok := s.channels[id]
	return c, ok
}

// Channels returns the active channels sorted by ID.
func (s *Session) Channels() []Channel {
	chans := make([]Channel, 0, len(s.order))
	for _, id := range s.order {
		chans = append(chans, s.channels[id])
	}
	return chans
}

// Units returns the distinct calibrated units among the active channels, sorted.
func (s *Session) Units() []string {
	return append([]string(nil), s.units...)
}

// Samples returns the recorded samples in arrival order.
func (s *Session) Samples() []Sample {
	return append([]Sample(nil), s.samples...)
}

// Len returns the number of recorded samples.
func (s *Session) Len() int {
	return len(s.samples)
}

// Duration is the time between the first and last recorded sample.
func (s *Session) Duration() time.Duration {
	if len(s.samples) == 0 {
		return 0
	}
	return s.samples[len(s.samples)-1].RelativeTime - s.samples[0].RelativeTime
}

func (s *Session) add(channelID int, raw, calibrated float64, ts time.Time) {
	s.samples = append(s.samples, Sample{
		ChannelID:    channelID,
		Raw:          raw,
		Calibrated:   calibrated,
		Timestamp:    ts,
		RelativeTime: ts.Sub(s.StartedAt),
	})
}
