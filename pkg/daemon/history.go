package daemon

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// historyLength is the number of recent values kept per channel, matching
// the live plot window.
const historyLength = 1000

type historyPoint struct {
	t time.Time
	v float64
}

// ChannelHistory keeps the last N calibrated values of every monitored
// channel.
type ChannelHistory struct {
	MaxRecordCount int

	mu     *sync.Mutex
	points map[int][]historyPoint
}

// ChannelStats summarizes the recent values of a channel.
type ChannelStats struct {
	Count  int       `json:"count"`
	Last   float64   `json:"last"`
	LastAt time.Time `json:"lastAt"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stdDev"`
}

func NewChannelHistory(maxRecordCount int) *ChannelHistory {
	return &ChannelHistory{
		MaxRecordCount: maxRecordCount,
		mu:             &sync.Mutex{},
		points:         make(map[int][]historyPoint),
	}
}

// AddRecord appends a value, evicting the oldest once the channel is full.
func (h *ChannelHistory) AddRecord(pin int, t time.Time, v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.points[pin]
	if len(p) >= h.MaxRecordCount {
		p = p[1:]
	}
	// Strip monotonic clock reading.
	h.points[pin] = append(p, historyPoint{t: t.Round(0), v: v})
}

// ClearRecords forgets the given pins, or every pin if none are given.
func (h *ChannelHistory) ClearRecords(pins ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(pins) == 0 {
		h.points = make(map[int][]historyPoint)
		return
	}
	for _, pin := range pins {
		delete(h.points, pin)
	}
}

// GetRecords returns a copy of the values of a pin, oldest first.
func (h *ChannelHistory) GetRecords(pin int) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.points[pin]
	out := make([]float64, len(p))
	for i := range p {
		out[i] = p[i].v
	}
	return out
}

// Stats summarizes the records of a pin. ok is false if it has none.
func (h *ChannelHistory) Stats(pin int) (s ChannelStats, ok bool) {
	h.mu.Lock()
	p := h.points[pin]
	if len(p) == 0 {
		h.mu.Unlock()
		return ChannelStats{}, false
	}
	values := make([]float64, len(p))
	for i := range p {
		values[i] = p[i].v
	}
	last := p[len(p)-1]
	h.mu.Unlock()

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return ChannelStats{
		Count:  len(values),
		Last:   last.v,
		LastAt: last.t,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}, true
}
