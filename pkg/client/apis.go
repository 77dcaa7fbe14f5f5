package client

import (
	"encoding/json"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/daqmon/pkg/archive"
	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/config"
	"github.com/charlie0129/daqmon/pkg/daemon"
	"github.com/charlie0129/daqmon/pkg/recording"
)

func pinPath(pin int, suffix string) string {
	return "/pins/" + strconv.Itoa(pin) + suffix
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// getJSON fetches path and decodes the response into a T.
func getJSON[T any](c *Client, path, what string) (T, error) {
	var v T
	ret, err := c.Get(path)
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return v, nil
}

// sendJSON sends body as JSON and decodes the response into a T.
func sendJSON[T any](c *Client, method, path string, body any, what string) (T, error) {
	var v T
	var data string
	if body != nil {
		var err error
		if data, err = marshal(body); err != nil {
			return v, err
		}
	}
	ret, err := c.Send(method, path, data)
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to %s", what)
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to unmarshal response to %s", what)
	}
	return v, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	conf, err := getJSON[config.RawFileConfig](c, "/config", "config")
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Client) GetPins() ([]config.Pin, error) {
	return getJSON[[]config.Pin](c, "/pins", "pins")
}

func (c *Client) GetPin(pin int) (config.Pin, error) {
	return getJSON[config.Pin](c, pinPath(pin, ""), "pin "+strconv.Itoa(pin))
}

func (c *Client) SetPinName(pin int, name string) (string, error) {
	return sendJSON[string](c, "PUT", pinPath(pin, "/name"), name, "rename pin")
}

// SetCalibration returns the daemon's message, which carries a warning when
// the calibration is degenerate.
func (c *Client) SetCalibration(pin int, cal calibration.Calibration) (string, error) {
	return sendJSON[string](c, "PUT", pinPath(pin, "/calibration"), cal, "set calibration")
}

func (c *Client) GetEquation(pin int) (string, error) {
	return getJSON[string](c, pinPath(pin, "/calibration/equation"), "calibration equation")
}

func (c *Client) GetSampleRate() (int, error) {
	return getJSON[int](c, "/sample-rate", "sample rate")
}

func (c *Client) SetSampleRate(rate int) (string, error) {
	return sendJSON[string](c, "PUT", "/sample-rate", rate, "set sample rate")
}

func (c *Client) GetDevice() (*daemon.DeviceStatus, error) {
	return getJSON[*daemon.DeviceStatus](c, "/device", "device")
}

func (c *Client) DetectDevice() (*daemon.DeviceStatus, error) {
	return sendJSON[*daemon.DeviceStatus](c, "POST", "/device/detect", nil, "detect device")
}

func (c *Client) GetChannels() ([]int, error) {
	return getJSON[[]int](c, "/channels", "enabled channels")
}

func (c *Client) SetChannel(pin int, on bool) (string, error) {
	return sendJSON[string](c, "PUT", "/channels/"+strconv.Itoa(pin), on, "set channel")
}

// GetHistory returns the recent calibrated values of a pin, oldest first.
func (c *Client) GetHistory(pin int) ([]float64, error) {
	return getJSON[[]float64](c, "/channels/"+strconv.Itoa(pin)+"/history", "channel history")
}

func (c *Client) StartMonitoring() (string, error) {
	return sendJSON[string](c, "POST", "/monitoring/start", nil, "start monitoring")
}

// StopMonitoring returns the recorder state after acquisition stopped.
func (c *Client) StopMonitoring() (recording.Status, error) {
	return sendJSON[recording.Status](c, "POST", "/monitoring/stop", nil, "stop monitoring")
}

func (c *Client) GetStatus() (*daemon.Status, error) {
	st, err := getJSON[daemon.Status](c, "/status", "status")
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) GetArchivedSessions() ([]archive.SessionRow, error) {
	return getJSON[[]archive.SessionRow](c, "/archive/sessions", "archived sessions")
}

func (c *Client) GetRecording() (recording.Status, error) {
	return getJSON[recording.Status](c, "/recording", "recording status")
}

func (c *Client) StartRecording() (recording.StartInfo, error) {
	return sendJSON[recording.StartInfo](c, "POST", "/recording/start", nil, "start recording")
}

func (c *Client) StopRecording() (recording.Status, error) {
	return sendJSON[recording.Status](c, "POST", "/recording/stop", nil, "stop recording")
}

// ExportRecording writes the stopped session to path on the daemon's side
// and returns where it went. An empty path uses the suggested file name.
func (c *Client) ExportRecording(path string) (string, error) {
	var body any
	if path != "" {
		body = path
	}
	return sendJSON[string](c, "POST", "/recording/export", body, "export recording")
}

func (c *Client) DiscardRecording() (string, error) {
	return sendJSON[string](c, "POST", "/recording/discard", nil, "discard recording")
}

func (c *Client) PlotRecording(path string) (string, error) {
	var body any
	if path != "" {
		body = path
	}
	return sendJSON[string](c, "POST", "/recording/plot", body, "plot recording")
}

func (c *Client) GetSchedule() (daemon.RecordingSchedule, error) {
	return getJSON[daemon.RecordingSchedule](c, "/schedule", "schedule")
}

func (c *Client) SetSchedule(spec string, duration time.Duration) (daemon.RecordingSchedule, error) {
	req := daemon.ScheduleRequest{Spec: spec}
	if duration > 0 {
		req.Duration = duration.String()
	}
	return sendJSON[daemon.RecordingSchedule](c, "PUT", "/schedule", req, "set schedule")
}

func (c *Client) ClearSchedule() (string, error) {
	return sendJSON[string](c, "DELETE", "/schedule", nil, "clear schedule")
}

func (c *Client) SkipSchedule() (daemon.RecordingSchedule, error) {
	return sendJSON[daemon.RecordingSchedule](c, "POST", "/schedule/skip", nil, "skip scheduled recording")
}

func (c *Client) PostponeSchedule(d time.Duration) (daemon.RecordingSchedule, error) {
	return sendJSON[daemon.RecordingSchedule](c, "POST", "/schedule/postpone", d.String(), "postpone scheduled recording")
}

func (c *Client) GetVersion() (string, error) {
	return getJSON[string](c, "/version", "version")
}
