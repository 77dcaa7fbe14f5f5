package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charlie0129/daqmon/pkg/events"
)

// serve runs h on a fresh unix socket and returns a client for it.
func serve(t *testing.T, h http.Handler) *Client {
	t.Helper()
	// Unix socket paths are short, so avoid the long t.TempDir() path.
	dir, err := os.MkdirTemp("", "daqmon")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sock := filepath.Join(dir, "d.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: h}
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })
	return NewClient(sock)
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	if _, err := c.Get("/version"); !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("Get() error = %v, want ErrDaemonNotRunning", err)
	}
}

func TestSend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sample-rate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, "250")
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `"sample rate must be between 1 and 1000 Hz"`)
	})
	mux.HandleFunc("/recording/export", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `"%d"`, r.ContentLength)
	})
	c := serve(t, mux)

	rate, err := c.GetSampleRate()
	if err != nil || rate != 250 {
		t.Errorf("GetSampleRate() = %d, %v", rate, err)
	}

	_, err = c.SetSampleRate(5000)
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("SetSampleRate() error = %v, want a 400", err)
	}
	var re *ResponseError
	if !errors.As(err, &re) || re.Message() != "sample rate must be between 1 and 1000 Hz" {
		t.Errorf("message = %q", re.Message())
	}

	// No path means no body, so the daemon picks the file name.
	if got, err := c.ExportRecording(""); err != nil || got != "0" {
		t.Errorf("ExportRecording(\"\") sent %q, %v", got, err)
	}

	if _, err := c.GetVersion(); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown route error = %v, want ErrNotFound", err)
	}
	if _, err := c.Send("PATCH", "/", ""); err == nil {
		t.Error("Send() should reject unknown methods")
	}
}

func TestReadEvents(t *testing.T) {
	stream := ": hello\n\n" +
		"event:sample.reading\ndata:{\"pin\":1}\n\n" +
		"event: recording.state\ndata: {\"to\":\n" +
		"data: \"Recording\"}\n\n"

	out := make(chan events.Event, 4)
	if err := readEvents(context.Background(), strings.NewReader(stream), out); err != nil {
		t.Fatal(err)
	}
	close(out)

	var got []events.Event
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Name != events.SampleReading || string(got[0].Data) != `{"pin":1}` {
		t.Errorf("first event = %s %s", got[0].Name, got[0].Data)
	}
	st, err := events.DecodeAs[events.RecordingStateEvent](got[1])
	if err != nil || got[1].Name != events.RecordingState || st.To != "Recording" {
		t.Errorf("second event = %s %s (%v)", got[1].Name, got[1].Data, err)
	}
}

func TestSubscribeEvents(t *testing.T) {
	c := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("events") != "device.state,sample.reading" {
			http.Error(w, "bad filter", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event:device.state\ndata:{\"connected\":true,\"ts\":1}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := c.SubscribeEvents(ctx, events.DeviceState, events.SampleReading)
	if err != nil {
		t.Fatal(err)
	}
	ev, ok := <-ch
	if !ok {
		t.Fatal("stream closed before the first event")
	}
	ds, err := events.DecodeAs[events.DeviceStateEvent](ev)
	if err != nil || !ds.Connected {
		t.Errorf("event = %s %s", ev.Name, ev.Data)
	}

	cancel()
	for range ch {
	}
}
