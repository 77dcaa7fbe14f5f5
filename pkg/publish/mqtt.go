// Package publish forwards live samples to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/events"
)

const (
	DefaultTopic    = "/daqmon/sample"
	DefaultClientID = "daqmon"

	queueSize      = 1024
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures an MQTT publisher.
type Options struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes samples from a background worker. Publish never blocks;
// samples are dropped while the queue is full.
type MQTT struct {
	client mqttClient
	topic  string
	qos    byte

	queue   chan events.SampleReadingEvent
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	dropped uint64
	sent    uint64
}

// Connect dials the broker and starts the publishing worker.
func Connect(opts Options) (*MQTT, error) {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.WithError(err).WithField("broker", opts.Broker).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}

	logrus.WithFields(logrus.Fields{
		"broker": opts.Broker,
		"topic":  opts.Topic,
	}).Info("connected to MQTT broker")
	return newMQTT(client, opts.Topic, opts.QoS), nil
}

func newMQTT(client mqttClient, topic string, qos byte) *MQTT {
	if topic == "" {
		topic = DefaultTopic
	}
	m := &MQTT{
		client: client,
		topic:  topic,
		qos:    qos,
		queue:  make(chan events.SampleReadingEvent, queueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Publish queues a sample for the broker.
func (m *MQTT) Publish(s events.SampleReadingEvent) {
	select {
	case m.queue <- s:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
	}
}

func (m *MQTT) run() {
	defer close(m.done)
	for s := range m.queue {
		payload, err := json.Marshal(s)
		if err != nil {
			logrus.WithError(err).Error("failed to encode sample")
			continue
		}

		token := m.client.Publish(m.topic, m.qos, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			logrus.WithField("topic", m.topic).Warn("MQTT publish timed out")
			continue
		}
		if err := token.Error(); err != nil {
			logrus.WithError(err).WithField("topic", m.topic).Warn("MQTT publish failed")
			continue
		}

		m.mu.Lock()
		m.sent++
		m.mu.Unlock()
	}
}

// Stats returns the number of samples sent and dropped so far.
func (m *MQTT) Stats() (sent, dropped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent, m.dropped
}

// Close drains the queue and disconnects.
func (m *MQTT) Close() {
	m.once.Do(func() {
		close(m.queue)
		<-m.done
		m.client.Disconnect(250)
	})
}
