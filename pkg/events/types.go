package events

import "encoding/json"

// Event names.
const (
	SampleReading   = "sample.reading"
	RecordingState  = "recording.state"
	MonitoringState = "monitoring.state"
	DeviceState     = "device.state"

	ScheduleUpcoming = "schedule.upcoming"
	ScheduleError    = "schedule.error"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// SampleReadingEvent is one calibrated reading of a monitored channel.
type SampleReadingEvent struct {
	Pin        int     `json:"pin"`
	Name       string  `json:"name"`
	Voltage    float64 `json:"voltage"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Recording  bool    `json:"recording"`
	Ts         float64 `json:"ts"` // unix seconds
	SessionRel float64 `json:"sessionRel,omitempty"`
}

// RecordingStateEvent reports a recorder transition.
type RecordingStateEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ID      string `json:"id,omitempty"`
	Points  int    `json:"points"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// MonitoringStateEvent reports acquisition starting or stopping.
type MonitoringStateEvent struct {
	Running bool   `json:"running"`
	Pins    []int  `json:"pins,omitempty"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// DeviceStateEvent reports device detection results.
type DeviceStateEvent struct {
	Connected bool   `json:"connected"`
	Backend   string `json:"backend,omitempty"`
	Name      string `json:"name,omitempty"`
	Ts        int64  `json:"ts"`
}

// ScheduleEvent reports an upcoming or failed scheduled recording.
type ScheduleEvent struct {
	RunAt   int64  `json:"runAt,omitempty"`
	Message string `json:"message,omitempty"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.SampleReadingEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Pin, payload.Value)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
