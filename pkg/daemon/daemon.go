package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/archive"
	"github.com/charlie0129/daqmon/pkg/config"
	"github.com/charlie0129/daqmon/pkg/daq"
	"github.com/charlie0129/daqmon/pkg/events"
	"github.com/charlie0129/daqmon/pkg/publish"
	"github.com/charlie0129/daqmon/pkg/recording"
)

// Options configures the daemon.
type Options struct {
	ConfigPath   string
	SocketPath   string
	AllowNonRoot bool
	// OutputDir receives exports and plots given as relative paths.
	OutputDir string

	Probers daq.ProberOptions
	// AutoDetect probes for a device at startup.
	AutoDetect bool

	// MQTT is disabled when Broker is empty.
	MQTT publish.Options

	// Archive is disabled when ArchiveDriver is empty.
	ArchiveDriver string
	ArchiveDSN    string

	// RecordSchedule is a cron expression for unattended recordings of
	// RecordDuration each. Empty disables them.
	RecordSchedule string
	RecordDuration time.Duration
}

type samplePublisher interface {
	Publish(events.SampleReadingEvent)
	Stats() (sent, dropped uint64)
	Close()
}

// Daemon owns the device, the acquisition loop and the recorder, and serves
// them over HTTP.
type Daemon struct {
	opts     Options
	conf     config.Config
	hub      *events.Hub
	recorder *recording.Recorder
	history  *ChannelHistory
	probers  []daq.Prober

	publisher samplePublisher
	archive   *archive.Archive
	scheduler *Scheduler

	now  func() time.Time
	quit chan struct{}

	mu         sync.Mutex
	device     daq.Device
	enabled    map[int]bool
	monitoring bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastErr    error

	recordDuration time.Duration
	closeOnce      sync.Once
}

func New(opts Options, conf config.Config) *Daemon {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.RecordDuration <= 0 {
		opts.RecordDuration = DefaultRecordDuration
	}
	d := &Daemon{
		opts:     opts,
		conf:     conf,
		hub:      events.NewHub(),
		recorder: recording.NewRecorder(),
		history:  NewChannelHistory(historyLength),
		probers:  daq.DefaultProbers(opts.Probers),
		now:      time.Now,
		quit:     make(chan struct{}),
		enabled:  make(map[int]bool),

		recordDuration: opts.RecordDuration,
	}
	d.scheduler = d.newScheduler()
	d.scheduler.Start()
	return d
}

// EnabledPins returns the pins selected for monitoring, sorted.
func (d *Daemon) EnabledPins() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabledPinsLocked()
}

func (d *Daemon) enabledPinsLocked() []int {
	pins := make([]int, 0, len(d.enabled))
	for pin, on := range d.enabled {
		if on {
			pins = append(pins, pin)
		}
	}
	sort.Ints(pins)
	return pins
}

// Close stops acquisition and releases every resource.
func (d *Daemon) Close() {
	d.closeOnce.Do(d.close)
}

func (d *Daemon) close() {
	d.scheduler.Stop()
	close(d.quit)

	if err := d.StopMonitoring(); err != nil && !errors.Is(err, ErrMonitoringNotRunning) {
		logrus.Errorf("failed to stop monitoring: %v", err)
	}

	d.mu.Lock()
	if d.device != nil {
		logrus.Info("closing DAQ device")
		if err := d.device.Close(); err != nil {
			logrus.Errorf("failed to close DAQ device: %v", err)
		}
		d.device = nil
	}
	d.mu.Unlock()

	if d.publisher != nil {
		logrus.Info("disconnecting from MQTT broker")
		d.publisher.Close()
	}
	if d.archive != nil {
		if err := d.archive.Close(); err != nil {
			logrus.Errorf("failed to close archive: %v", err)
		}
	}

	if p := d.recorder.Pending(); p != nil {
		logrus.WithFields(logrus.Fields{
			"session": p.ID,
			"points":  p.Len(),
		}).Warn("exiting with an unexported recording, its data is lost")
	}
}

func Run(opts Options) error {
	conf, err := config.NewFile(opts.ConfigPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	d := New(opts, conf)

	if opts.MQTT.Broker != "" {
		pub, err := publish.Connect(opts.MQTT)
		if err != nil {
			logrus.Errorf("live samples will not be published: %v", err)
		} else {
			d.publisher = pub
		}
	}

	if opts.ArchiveDriver != "" {
		a, err := archive.Open(context.Background(), opts.ArchiveDriver, opts.ArchiveDSN)
		if err != nil {
			return err
		}
		d.archive = a
	}

	if opts.RecordSchedule != "" {
		if err := d.SetSchedule(opts.RecordSchedule, opts.RecordDuration); err != nil {
			return err
		}
	}

	if opts.AutoDetect {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := d.DetectDevice(ctx); err != nil {
			logrus.Warnf("no DAQ device available: %v", err)
		}
		cancel()
	}

	router := d.setupRoutes()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// A stale socket from a previous crash would make Listen fail.
	if err := os.Remove(opts.SocketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", opts.SocketPath)
	if err != nil {
		return err
	}

	if opts.AllowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", opts.SocketPath)
		err = os.Chmod(opts.SocketPath, 0777)
		if err != nil {
			return err
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("stopping acquisition")
	d.Close()

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("saving config")
	if err := conf.Save(); err != nil {
		logrus.Errorf("failed to save config: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

func (d *Daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", d.getConfig)
	router.GET("/pins", d.getPins)
	router.GET("/pins/:pin", d.getPin)
	router.PUT("/pins/:pin/name", d.setPinName)
	router.PUT("/pins/:pin/calibration", d.setCalibration)
	router.GET("/pins/:pin/calibration/equation", d.getEquation)
	router.GET("/sample-rate", d.getSampleRate)
	router.PUT("/sample-rate", d.setSampleRate)
	router.GET("/device", d.getDevice)
	router.POST("/device/detect", d.detectDevice)
	router.GET("/channels", d.getChannels)
	router.PUT("/channels/:pin", d.setChannel)
	router.GET("/channels/:pin/history", d.getHistory)
	router.POST("/monitoring/start", d.startMonitoring)
	router.POST("/monitoring/stop", d.stopMonitoring)
	router.GET("/status", d.getStatus)
	router.GET("/recording", d.getRecording)
	router.POST("/recording/start", d.startRecording)
	router.POST("/recording/stop", d.stopRecording)
	router.POST("/recording/export", d.exportRecording)
	router.POST("/recording/discard", d.discardRecording)
	router.POST("/recording/plot", d.plotRecording)
	router.GET("/schedule", d.getSchedule)
	router.PUT("/schedule", d.setSchedule)
	router.DELETE("/schedule", d.clearSchedule)
	router.POST("/schedule/skip", d.skipSchedule)
	router.POST("/schedule/postpone", d.postponeSchedule)
	router.GET("/archive/sessions", d.getArchivedSessions)
	router.GET("/events", d.streamEvents)
	router.GET("/version", getVersion)

	return router
}
