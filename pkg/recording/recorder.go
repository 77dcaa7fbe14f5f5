package recording

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Recorder.
type State string

const (
	StateIdle      State = "Idle"
	StateRecording State = "Recording"
	StateStopped   State = "Stopped"
)

// StartInfo describes a newly started session.
type StartInfo struct {
	ID           string    `json:"id"`
	FilenameHint string    `json:"filenameHint"`
	StartedAt    time.Time `json:"startedAt"`
}

// Status is a snapshot of the Recorder.
type Status struct {
	State        State     `json:"state"`
	ID           string    `json:"id,omitempty"`
	FilenameHint string    `json:"filenameHint,omitempty"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	Points       int       `json:"points"`
	Channels     []int     `json:"channels,omitempty"`
	Units        []string  `json:"units,omitempty"`
}

// Recorder owns at most one session at a time.
type Recorder struct {
	mu      sync.Mutex
	state   State
	session *Session

	now   func() time.Time
	newID func() string
}

func NewRecorder() *Recorder {
	return &Recorder{
		state: StateIdle,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Start begins a session over active, looking each channel up in table.
// Nothing changes when an error is returned.
func (r *Recorder) Start(active []int, table map[int]Channel) (StartInfo, error) {
	if len(active) == 0 {
		return StartInfo{}, ErrNoActiveChannels
	}

	channels := make(map[int]Channel, len(active))
	for _, id := range active {
		c, ok := table[id]
		if !ok {
			return StartInfo{}, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
		}
		c.ID = id
		channels[id] = c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRecording:
		return StartInfo{}, ErrAlreadyRecording
	case StateStopped:
		return StartInfo{}, ErrExportPending
	}

	r.session = newSession(r.newID(), r.now(), channels)
	r.state = StateRecording

	return StartInfo{
		ID:           r.session.ID,
		FilenameHint: r.session.FilenameHint,
		StartedAt:    r.session.StartedAt,
	}, nil
}

// AddSample appends a sample to the recording session. It reports false and
// does nothing when no session is recording or the channel is not part of it.
func (r *Recorder) AddSample(channelID int, raw, calibrated float64, ts time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return false
	}
	if _, ok := r.session.channels[channelID]; !ok {
		return false
	}
	r.session.add(channelID, raw, calibrated, ts)
	return true
}

// RecordingChannel returns the configuration channelID was captured with
// when the current session started. It reports false unless a session is
// recording and includes the channel.
func (r *Recorder) RecordingChannel(channelID int) (Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return Channel{}, false
	}
	c, ok := r.session.channels[channelID]
	return c, ok
}

// Stop ends the recording. The session stays available for Export or Discard.
func (r *Recorder) Stop() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil, ErrNotRecording
	}
	r.session.StoppedAt = r.now()
	r.state = StateStopped
	return r.session, nil
}

// Pending returns the stopped session awaiting export, or nil.
func (r *Recorder) Pending() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStopped {
		return nil
	}
	return r.session
}

// Export writes the stopped session to dest and returns to Idle. On failure
// it returns an *ExportError and keeps the session.
func (r *Recorder) Export(dest string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStopped {
		return nil, ErrNothingToExport
	}
	if r.session.Len() == 0 {
		return nil, ErrEmptySession
	}

	if err := r.session.writeFile(dest, r.now()); err != nil {
		return nil, &ExportError{Path: dest, Err: err}
	}

	s := r.session
	r.session = nil
	r.state = StateIdle
	return s, nil
}

// Discard drops the stopped session, e.g. when the user cancels the export.
func (r *Recorder) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStopped {
		return ErrNothingToExport
	}
	r.session = nil
	r.state = StateIdle
	return nil
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{State: r.state}
	if r.session == nil {
		return st
	}
	st.ID = r.session.ID
	st.FilenameHint = r.session.FilenameHint
	st.StartedAt = r.session.StartedAt
	st.Points = len(r.session.samples)
	st.Channels = append([]int(nil), r.session.order...)
	st.Units = r.session.Units()
	return st
}
