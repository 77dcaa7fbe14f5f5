package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/charlie0129/daqmon/pkg/events"
)

type fakeToken struct{ err error }

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeClient struct {
	mu           sync.Mutex
	topics       []string
	payloads     [][]byte
	failEvery    int
	calls        int
	disconnected bool
}

func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failEvery > 0 && f.calls%f.failEvery == 0 {
		return fakeToken{err: errors.New("broker unavailable")}
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return fakeToken{}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func TestPublishInOrder(t *testing.T) {
	fc := &fakeClient{}
	m := newMQTT(fc, "", 0)
	for i := 1; i <= 5; i++ {
		m.Publish(events.SampleReadingEvent{Pin: i, Voltage: float64(i) / 2})
	}
	m.Close()

	if !fc.disconnected {
		t.Error("Close() should disconnect")
	}
	if len(fc.payloads) != 5 {
		t.Fatalf("published %d samples, want 5", len(fc.payloads))
	}
	for i, p := range fc.payloads {
		if fc.topics[i] != DefaultTopic {
			t.Errorf("topic = %s", fc.topics[i])
		}
		var got events.SampleReadingEvent
		if err := json.Unmarshal(p, &got); err != nil {
			t.Fatal(err)
		}
		if got.Pin != i+1 {
			t.Errorf("sample %d has pin %d", i, got.Pin)
		}
	}
	if sent, dropped := m.Stats(); sent != 5 || dropped != 0 {
		t.Errorf("Stats() = %d, %d", sent, dropped)
	}
}

func TestPublishFailuresAreCounted(t *testing.T) {
	fc := &fakeClient{failEvery: 2}
	m := newMQTT(fc, "/custom", 1)
	for i := 0; i < 4; i++ {
		m.Publish(events.SampleReadingEvent{Pin: i})
	}
	m.Close()
	m.Close()

	if sent, _ := m.Stats(); sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if fc.topics[0] != "/custom" {
		t.Errorf("topic = %s", fc.topics[0])
	}
}
