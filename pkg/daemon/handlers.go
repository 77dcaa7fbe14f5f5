package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/config"
	"github.com/charlie0129/daqmon/pkg/version"
)

const detectTimeout = 30 * time.Second

func pinParam(c *gin.Context) (int, bool) {
	pin, err := strconv.Atoi(c.Param("pin"))
	if err != nil {
		err = fmt.Errorf("invalid pin %q", c.Param("pin"))
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return 0, false
	}
	return pin, true
}

func (d *Daemon) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(d.conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (d *Daemon) getPins(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.conf.Pins())
}

func (d *Daemon) getPin(c *gin.Context) {
	pin, ok := pinParam(c)
	if !ok {
		return
	}
	p, ok := d.conf.Pin(pin)
	if !ok {
		abortWithError(c, config.ErrPinNotFound)
		return
	}
	c.IndentedJSON(http.StatusOK, p)
}

func (d *Daemon) setPinName(c *gin.Context) {
	pin, ok := pinParam(c)
	if !ok {
		return
	}
	var name string
	if err := c.BindJSON(&name); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetPinName(pin, name); err != nil {
		abortWithError(c, err)
		return
	}
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set name of pin %d to %q", pin, name)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) setCalibration(c *gin.Context) {
	pin, ok := pinParam(c)
	if !ok {
		return
	}
	var cal calibration.Calibration
	if err := c.BindJSON(&cal); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.SetCalibration(pin, cal); err != nil {
		abortWithError(c, err)
		return
	}

	msg := "ok"
	if err := cal.Validate(); err != nil {
		// Degenerate calibrations are accepted and map every voltage to point 1.
		msg = fmt.Sprintf("saved, but %v: every reading will be %g %s", err, cal.Point1Physical, cal.Normalize().DisplayUnit())
	}
	logrus.WithFields(logrus.Fields{
		"pin":     pin,
		"enabled": cal.Enabled,
		"unit":    cal.Normalize().DisplayUnit(),
		"slope":   cal.Slope(),
	}).Info("calibration updated")

	c.IndentedJSON(http.StatusCreated, msg)
}

func (d *Daemon) getEquation(c *gin.Context) {
	pin, ok := pinParam(c)
	if !ok {
		return
	}
	p, ok := d.conf.Pin(pin)
	if !ok {
		abortWithError(c, config.ErrPinNotFound)
		return
	}
	eq, err := p.Calibration.Equation()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, eq)
}

func (d *Daemon) getSampleRate(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.conf.SampleRate())
}

func (d *Daemon) setSampleRate(c *gin.Context) {
	var rate int
	if err := c.BindJSON(&rate); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetSampleRate(rate); err != nil {
		abortWithError(c, err)
		return
	}
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set sample rate to %d Hz", rate)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) getDevice(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.deviceStatus())
}

func (d *Daemon) detectDevice(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), detectTimeout)
	defer cancel()

	if _, err := d.DetectDevice(ctx); err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, d.deviceStatus())
}

func (d *Daemon) getChannels(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.EnabledPins())
}

func (d *Daemon) getHistory(c *gin.Context) {
	pin, ok := pinParam(c)
	if !ok {
		return
	}
	if _, ok := d.conf.Pin(pin); !ok {
		abortWithError(c, config.ErrPinNotFound)
		return
	}
	c.IndentedJSON(http.StatusOK, d.history.GetRecords(pin))
}

func (d *Daemon) setChannel(c *gin.Context) {
	pin, ok := pinParam(c)
	if !ok {
		return
	}
	var on bool
	if err := c.BindJSON(&on); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.SetChannel(pin, on); err != nil {
		abortWithError(c, err)
		return
	}
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
	}

	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) startMonitoring(c *gin.Context) {
	if err := d.StartMonitoring(); err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) stopMonitoring(c *gin.Context) {
	if err := d.StopMonitoring(); err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, d.recorder.Status())
}

func (d *Daemon) getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.Status())
}

func (d *Daemon) getRecording(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.recorder.Status())
}

func (d *Daemon) startRecording(c *gin.Context) {
	info, err := d.StartRecording()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, info)
}

func (d *Daemon) stopRecording(c *gin.Context) {
	st, err := d.StopRecording()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, st)
}

// bindOptionalPath reads a JSON string body. An empty body means "".
func bindOptionalPath(c *gin.Context) (string, bool) {
	var path string
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.BindJSON(&path); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return "", false
	}
	return strings.TrimSpace(path), true
}

func (d *Daemon) exportRecording(c *gin.Context) {
	path, ok := bindOptionalPath(c)
	if !ok {
		return
	}
	dest, err := d.ExportRecording(path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, dest)
}

func (d *Daemon) discardRecording(c *gin.Context) {
	if err := d.DiscardRecording(); err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) plotRecording(c *gin.Context) {
	path, ok := bindOptionalPath(c)
	if !ok {
		return
	}
	dest, err := d.PlotRecording(path)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, dest)
}

// streamEvents serves hub events as server-sent events. The optional
// "events" query parameter is a comma separated list of event names.
func (d *Daemon) getArchivedSessions(c *gin.Context) {
	sessions, err := d.ArchivedSessions(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, sessions)
}

func (d *Daemon) streamEvents(c *gin.Context) {
	var filter map[string]bool
	if q := c.Query("events"); q != "" {
		filter = make(map[string]bool)
		for _, name := range strings.Split(q, ",") {
			filter[strings.TrimSpace(name)] = true
		}
	}

	ch := d.hub.Subscribe()
	defer d.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			if filter == nil || filter[ev.Name] {
				c.SSEvent(ev.Name, string(ev.Data))
			}
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
