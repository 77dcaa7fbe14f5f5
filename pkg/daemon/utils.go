package daemon

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/chart"
	"github.com/charlie0129/daqmon/pkg/config"
	"github.com/charlie0129/daqmon/pkg/daq"
	"github.com/charlie0129/daqmon/pkg/recording"
)

// Logger is the logrus logger handler
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// other handler can change c.Path so:
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		stop := time.Since(start)
		latency := int(math.Ceil(float64(stop.Nanoseconds()) / 1000000.0))
		statusCode := c.Writer.Status()
		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}

		entry := logger.WithFields(logrus.Fields{
			"statusCode": statusCode,
			"latency":    latency, // time to process
			"method":     c.Request.Method,
			"path":       path,
			"dataLength": dataLength,
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		} else {
			msg := fmt.Sprintf("%s %s %d (%dms)", c.Request.Method, path, statusCode, latency)
			//nolint:gocritic
			if statusCode >= http.StatusInternalServerError {
				entry.Error(msg)
			} else if statusCode >= http.StatusBadRequest {
				entry.Warn(msg)
			} else {
				entry.Debug(msg)
			}
		}
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, config.ErrPinNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrNotAnalogInput),
		errors.Is(err, config.ErrInvalidSampleRate),
		errors.Is(err, config.ErrInvalidName),
		errors.Is(err, calibration.ErrDegenerateCalibration),
		errors.Is(err, recording.ErrNoActiveChannels),
		errors.Is(err, chart.ErrUnsupportedFormat),
		errors.Is(err, chart.ErrEmptySession),
		errors.Is(err, ErrNoChannelsEnabled),
		errors.Is(err, daq.ErrChannelOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, recording.ErrAlreadyRecording),
		errors.Is(err, recording.ErrExportPending),
		errors.Is(err, recording.ErrNotRecording),
		errors.Is(err, recording.ErrNothingToExport),
		errors.Is(err, recording.ErrEmptySession),
		errors.Is(err, ErrMonitoringActive),
		errors.Is(err, ErrMonitoringNotRunning),
		errors.Is(err, ErrPinRecording):
		return http.StatusConflict
	case errors.Is(err, daq.ErrNoDevice),
		errors.Is(err, ErrNoArchive):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError answers with the error message and a status derived from
// the error.
func abortWithError(c *gin.Context, err error) {
	code := statusCode(err)
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}
