// Package chart renders a recorded session as a time series chart.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/recording"
)

const (
	Title = "DAQ Sensor Data Export"

	width  = 12 * vg.Inch
	height = 8 * vg.Inch
)

var (
	ErrUnsupportedFormat = errors.New("unsupported plot format")
	ErrEmptySession      = errors.New("session has no samples")
)

// Formats lists the accepted output extensions.
var Formats = []string{".png", ".jpg", ".jpeg", ".pdf", ".svg"}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats {
		if ext == f {
			return true
		}
	}
	return false
}

func channelUnit(c recording.Channel) string {
	if c.Calibration.Enabled {
		return c.Calibration.DisplayUnit()
	}
	return calibration.VoltUnit
}

// LegendLabel is the legend entry of a channel.
func LegendLabel(c recording.Channel) string {
	return fmt.Sprintf("Pin %d: %s (%s)", c.ID, c.Name, channelUnit(c))
}

// YLabel names the value axis after the shared unit of channels, or
// "Mixed Units" if they differ.
func YLabel(channels []recording.Channel) string {
	if len(channels) == 0 {
		return "Value"
	}
	unit := channelUnit(channels[0])
	for _, c := range channels[1:] {
		if channelUnit(c) != unit {
			return "Value (Mixed Units)"
		}
	}
	return fmt.Sprintf("Value (%s)", unit)
}

// ParseColor parses "#rrggbb" or "#rgb".
func ParseColor(s string) (color.Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// New builds the chart of s: one line per channel against seconds since
// the session started.
func New(s *recording.Session, generatedAt time.Time) (*plot.Plot, error) {
	if s.Len() == 0 {
		return nil, ErrEmptySession
	}

	p := plot.New()
	p.Title.Text = Title
	p.X.Label.Text = fmt.Sprintf("Time (seconds) - exported %s", generatedAt.Format("2006-01-02 15:04:05"))
	p.Legend.Top = true
	p.Legend.Padding = vg.Points(5)
	p.Add(plotter.NewGrid())

	channels := s.Channels()
	p.Y.Label.Text = YLabel(channels)

	series := make(map[int]plotter.XYs, len(channels))
	for _, sample := range s.Samples() {
		series[sample.ChannelID] = append(series[sample.ChannelID], plotter.XY{
			X: sample.RelativeTime.Seconds(),
			Y: sample.Calibrated,
		})
	}

	for i, c := range channels {
		xys := series[c.ID]
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("pin %d: %w", c.ID, err)
		}
		line.Width = vg.Points(2)
		line.Color = plotutil.Color(i)
		if c.Color != "" {
			if col, err := ParseColor(c.Color); err == nil {
				line.Color = col
			}
		}
		p.Add(line)
		p.Legend.Add(LegendLabel(c), line)
	}

	return p, nil
}

// Save renders s to path. The format follows the file extension.
func Save(s *recording.Session, path string, generatedAt time.Time) error {
	if !supported(path) {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, filepath.Ext(path), strings.Join(Formats, ", "))
	}
	p, err := New(s, generatedAt)
	if err != nil {
		return err
	}
	return p.Save(width, height, path)
}
