package daemon

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	// leadDuration is how long before a run OnUpcoming fires.
	leadDuration = time.Minute
	// A failing precheck is retried preCheckMaxTimes times, preCheckInterval
	// apart, before the run is given up.
	preCheckMaxTimes = 6
	preCheckInterval = 10 * time.Second

	ErrNoSchedule = errors.New("no recording schedule")
)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Scheduler runs a task on a cron schedule. Runs are announced leadDuration
// in advance and may be skipped or postponed before they start.
type Scheduler struct {
	Task       TaskFunc
	PreCheck   TaskFunc
	OnUpcoming func(runAt time.Time)
	OnError    func(err error)

	parser cron.Parser

	mu       sync.Mutex
	spec     string
	schedule cron.Schedule
	nextRun  time.Time
	running  bool

	wake chan struct{}
	stop chan struct{}
}

// ScheduleStatus describes the schedule and its next run.
type ScheduleStatus struct {
	Spec    string    `json:"spec,omitempty"`
	NextRun time.Time `json:"nextRun,omitempty"`
	Running bool      `json:"running"`
}

func NewScheduler(task, preCheck TaskFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}
	return &Scheduler{
		Task:     task,
		PreCheck: preCheck,
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Schedule replaces the schedule with spec, a cron expression or
// descriptor such as "@every 1h".
func (s *Scheduler) Schedule(spec string) error {
	sh, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	s.spec = spec
	s.schedule = sh
	s.nextRun = sh.Next(time.Now())
	s.mu.Unlock()

	s.poke()
	return nil
}

// Clear removes the schedule. A run already in progress is not affected.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	s.spec = ""
	s.schedule = nil
	s.nextRun = time.Time{}
	s.mu.Unlock()

	s.poke()
}

// Skip moves the next run to the one after it.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil {
		s.mu.Unlock()
		return ErrNoSchedule
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	s.mu.Unlock()

	s.poke()
	return nil
}

// Postpone delays the next run by d. The delayed run must still come before
// the run after it.
func (s *Scheduler) Postpone(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("postpone duration must be positive")
	}

	s.mu.Lock()
	if s.schedule == nil {
		s.mu.Unlock()
		return ErrNoSchedule
	}
	following := s.schedule.Next(s.nextRun)
	pp := s.nextRun.Add(d)
	if !pp.Before(following) {
		s.mu.Unlock()
		return fmt.Errorf("postpone duration too long, the following run is at %s", following.Format(time.DateTime))
	}
	s.nextRun = pp
	s.mu.Unlock()

	s.poke()
	return nil
}

func (s *Scheduler) Status() ScheduleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScheduleStatus{Spec: s.spec, NextRun: s.nextRun, Running: s.running}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.run()
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stop: // already closed
	default:
		close(s.stop)
	}
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

// advance moves past runAt unless the schedule changed meanwhile.
func (s *Scheduler) advance(runAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule != nil && s.nextRun.Equal(runAt) {
		s.nextRun = s.schedule.Next(runAt)
	}
}

func (s *Scheduler) run() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	var announced time.Time
	attempts := 0
	for {
		schedule, nextRun := s.snapshot()

		wait := 10000 * time.Hour
		if schedule != nil {
			runIn := time.Until(nextRun)
			if announceIn := runIn - leadDuration; !announced.Equal(nextRun) && announceIn > 0 {
				wait = announceIn
			} else {
				wait = max(runIn, 0)
			}
		}
		timer := time.NewTimer(wait)

		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			attempts = 0
			continue
		case <-timer.C:
		}

		if schedule == nil {
			continue
		}

		if !announced.Equal(nextRun) {
			announced = nextRun
			if time.Until(nextRun) > 0 {
				logrus.Debugf("upcoming scheduled recording at %s", nextRun.Format(time.DateTime))
				s.notifyUpcoming(nextRun)
				continue
			}
		}

		if s.PreCheck != nil {
			if err := s.PreCheck(); err != nil {
				attempts++
				if attempts <= preCheckMaxTimes {
					logrus.Debugf("precheck failed (%d/%d): %v; retrying in %s", attempts, preCheckMaxTimes, err, preCheckInterval)
					if !s.sleep(preCheckInterval) {
						return
					}
					continue
				}
				s.notifyError(fmt.Errorf("scheduled run at %s skipped: %w", nextRun.Format(time.DateTime), err))
				attempts = 0
				s.advance(nextRun)
				continue
			}
		}
		attempts = 0

		logrus.Debugf("running scheduled task planned for %s", nextRun.Format(time.DateTime))
		go func() {
			if err := s.Task(); err != nil {
				s.notifyError(fmt.Errorf("scheduled task failed: %w", err))
			}
		}()
		s.advance(nextRun)
	}
}

// sleep waits d unless the scheduler is stopped first.
func (s *Scheduler) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Scheduler) notifyUpcoming(runAt time.Time) {
	if s.OnUpcoming != nil {
		go s.OnUpcoming(runAt)
	}
}

func (s *Scheduler) notifyError(err error) {
	logrus.Warn(err)
	if s.OnError != nil {
		go s.OnError(err)
	}
}
