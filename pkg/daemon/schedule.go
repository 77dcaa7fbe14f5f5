package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/events"
	"github.com/charlie0129/daqmon/pkg/recording"
)

const DefaultRecordDuration = 10 * time.Minute

// RecordingSchedule is the state reported by GET /schedule.
type RecordingSchedule struct {
	ScheduleStatus
	Duration string `json:"duration"`
}

// ScheduleRequest is the body of PUT /schedule.
type ScheduleRequest struct {
	Spec     string `json:"spec"`
	Duration string `json:"duration"`
}

func (d *Daemon) newScheduler() *Scheduler {
	s := NewScheduler(d.scheduledRecording, d.canRecord)
	s.OnUpcoming = func(runAt time.Time) {
		d.hub.Publish(events.ScheduleUpcoming, events.ScheduleEvent{RunAt: runAt.Unix(), Ts: d.now().Unix()})
	}
	s.OnError = func(err error) {
		d.hub.Publish(events.ScheduleError, events.ScheduleEvent{Message: err.Error(), Ts: d.now().Unix()})
	}
	return s
}

// canRecord is the precheck of scheduled recordings.
func (d *Daemon) canRecord() error {
	if !d.Monitoring() {
		return ErrMonitoringNotRunning
	}
	switch d.recorder.State() {
	case recording.StateRecording:
		return recording.ErrAlreadyRecording
	case recording.StateStopped:
		return recording.ErrExportPending
	}
	return nil
}

// scheduledRecording records for the configured duration and exports the
// session under its default name.
func (d *Daemon) scheduledRecording() error {
	info, err := d.StartRecording()
	if err != nil {
		return err
	}

	d.mu.Lock()
	dur := d.recordDuration
	d.mu.Unlock()

	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-d.quit:
		return nil
	}

	if st := d.recorder.Status(); st.ID == info.ID && st.State == recording.StateRecording {
		if _, err := d.StopRecording(); err != nil {
			return err
		}
	}
	// Monitoring may have stopped the session early. Export it all the same.
	if p := d.recorder.Pending(); p != nil && p.ID == info.ID {
		if p.Len() == 0 {
			logrus.WithField("session", p.ID).Warn("scheduled recording captured no data points, discarding")
			return d.DiscardRecording()
		}
		_, err := d.ExportRecording("")
		return err
	}
	return nil
}

// SetSchedule records for dur every time spec fires.
func (d *Daemon) SetSchedule(spec string, dur time.Duration) error {
	if dur <= 0 {
		return fmt.Errorf("recording duration must be positive, got %s", dur)
	}
	if err := d.scheduler.Schedule(spec); err != nil {
		return err
	}

	d.mu.Lock()
	d.recordDuration = dur
	d.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"spec":     spec,
		"duration": dur.String(),
		"nextRun":  d.scheduler.Status().NextRun.Format(time.DateTime),
	}).Info("recording scheduled")
	return nil
}

func (d *Daemon) Schedule() RecordingSchedule {
	d.mu.Lock()
	dur := d.recordDuration
	d.mu.Unlock()
	return RecordingSchedule{ScheduleStatus: d.scheduler.Status(), Duration: dur.String()}
}

func (d *Daemon) getSchedule(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.Schedule())
}

func (d *Daemon) setSchedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	dur := DefaultRecordDuration
	if req.Duration != "" {
		var err error
		dur, err = time.ParseDuration(req.Duration)
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	if err := d.SetSchedule(req.Spec, dur); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, d.Schedule())
}

func (d *Daemon) clearSchedule(c *gin.Context) {
	d.scheduler.Clear()
	logrus.Info("recording schedule cleared")
	c.IndentedJSON(http.StatusOK, "ok")
}

func (d *Daemon) skipSchedule(c *gin.Context) {
	if err := d.scheduler.Skip(); err != nil {
		c.IndentedJSON(http.StatusConflict, err.Error())
		_ = c.AbortWithError(http.StatusConflict, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, d.Schedule())
}

func (d *Daemon) postponeSchedule(c *gin.Context) {
	var s string
	if err := c.BindJSON(&s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	dur, err := time.ParseDuration(s)
	if err == nil {
		err = d.scheduler.Postpone(dur)
	}
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, d.Schedule())
}
