package recording

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"
)

const (
	columnTimestamp    = "Timestamp (Unix)"
	columnRelativeTime = "Relative Time (s)"
	columnChannel      = "Pin Number"
	columnName         = "Sensor Name"
	columnVoltage      = "Voltage (V)"
	columnCalibrated   = "Calibrated Value"
)

// Columns returns the header row of the export. It depends only on the
// channel configuration captured at Start.
func (s *Session) Columns() []string {
	cols := []string{columnTimestamp, columnRelativeTime, columnChannel, columnName, columnVoltage}
	if len(s.units) == 0 {
		return append(cols, columnCalibrated)
	}
	for _, u := range s.units {
		cols = append(cols, fmt.Sprintf("%s (%s)", columnCalibrated, u))
	}
	return cols
}

// Describe returns the header comment describing how c was converted.
func (c Channel) Describe() []string {
	cal := c.Calibration
	if !cal.Enabled {
		return []string{fmt.Sprintf("Pin %d (%s): Raw voltage (not calibrated)", c.ID, c.Name)}
	}
	unit := cal.DisplayUnit()
	return []string{
		fmt.Sprintf("Pin %d (%s): Calibrated to %s", c.ID, c.Name, unit),
		fmt.Sprintf("  Calibration: %s %s @ %s V, %s %s @ %s V",
			formatPoint(cal.Point1Physical), unit, formatPoint(cal.Point1Voltage),
			formatPoint(cal.Point2Physical), unit, formatPoint(cal.Point2Voltage)),
	}
}

// formatPoint prints calibration points with at least one decimal, so 5
// reads "5.0".
func formatPoint(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		s += ".0"
	}
	return s
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// WriteCSV serializes the session: a block of '#' comment lines, the column
// header, then one row per sample.
func (s *Session) WriteCSV(w io.Writer, generatedAt time.Time) error {
	header := []string{
		"DAQ Sensor Recording",
		"Generated: " + generatedAt.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("Recording Duration: %d data points", len(s.samples)),
		"",
		"Sensor Configuration:",
	}
	for _, c := range s.Channels() {
		header = append(header, c.Describe()...)
	}
	header = append(header, "")

	for _, line := range header {
		if _, err := fmt.Fprintf(w, "# %s\n", line); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(s.Columns()); err != nil {
		return err
	}

	for _, sample := range s.samples {
		if err := cw.Write(s.row(sample)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func (s *Session) row(sample Sample) []string {
	c := s.channels[sample.ChannelID]

	row := []string{
		fmt.Sprintf("%.6f", unixSeconds(sample.Timestamp)),
		fmt.Sprintf("%.3f", sample.RelativeTime.Seconds()),
		strconv.Itoa(sample.ChannelID),
		c.Name,
		fmt.Sprintf("%.6f", sample.Raw),
	}

	if len(s.units) == 0 {
		// Without calibrated channels the generic column repeats the voltage.
		return append(row, fmt.Sprintf("%.6f", sample.Raw))
	}

	unit := ""
	if c.Calibration.Enabled {
		unit = c.Calibration.DisplayUnit()
	}
	for _, u := range s.units {
		if u == unit {
			row = append(row, fmt.Sprintf("%.6f", sample.Calibrated))
		} else {
			row = append(row, "")
		}
	}
	return row
}

// writeFile renders the whole export before touching dest, so a failed
// render never leaves a truncated file behind.
func (s *Session) writeFile(dest string, generatedAt time.Time) error {
	var buf bytes.Buffer
	if err := s.WriteCSV(&buf, generatedAt); err != nil {
		return err
	}
	return os.WriteFile(dest, buf.Bytes(), 0644)
}
