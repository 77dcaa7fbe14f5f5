package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDaemonNotRunning is returned when the daemon is not running
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the user does not have permission to perform the requested action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when the daemon does not know the route,
	// usually because it is older than the client.
	ErrNotFound = errors.New("404 not found")
)

// ResponseError is a non-2xx answer from the daemon.
type ResponseError struct {
	StatusCode int
	Body       string
}

// Message is the error text sent by the daemon, unquoted when it is a JSON
// string.
func (e *ResponseError) Message() string {
	var msg string
	if err := json.Unmarshal([]byte(e.Body), &msg); err == nil {
		return msg
	}
	return e.Body
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("got %d: %s", e.StatusCode, e.Message())
}

// StatusCode returns the HTTP status of a ResponseError in err's chain, or 0.
func StatusCode(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
