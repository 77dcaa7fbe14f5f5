package recording

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveChannels is returned by Start when no channel is selected.
	ErrNoActiveChannels = errors.New("no active channels: select at least one sensor before recording")

	// ErrAlreadyRecording is returned by Start while a session is recording.
	ErrAlreadyRecording = errors.New("a recording is already in progress")

	// ErrExportPending is returned by Start while a stopped session has not
	// been exported or discarded yet.
	ErrExportPending = errors.New("the previous recording has not been exported or discarded")

	// ErrUnknownChannel is returned by Start when an active channel has no configuration.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrNotRecording is returned by Stop when no session is recording.
	ErrNotRecording = errors.New("not recording")

	// ErrNothingToExport is returned by Export and Discard without a stopped session.
	ErrNothingToExport = errors.New("no stopped recording to export")

	// ErrEmptySession is returned by Export when the stopped session holds no
	// samples. The session is kept so it can be discarded.
	ErrEmptySession = errors.New("the recording has no data points, discard it instead")

	// ErrExportFailed matches every *ExportError.
	ErrExportFailed = errors.New("export failed")
)

// ExportError reports a failed export. The session is kept and can be
// exported again.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to export recording to %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

func (e *ExportError) Is(target error) bool {
	return target == ErrExportFailed
}
