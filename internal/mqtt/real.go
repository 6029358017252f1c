package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/lacrosse-receiver/internal/logic"
)

const (
	clientID       = "lacrosse-receiver"
	bufferCapacity = 512
	publishTimeout = 5 * time.Second
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt: publish timeout")

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in a ring buffer and replayed, oldest
// first, when the connection comes back.
type RealPublisher struct {
	client client
	now    func() time.Time

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	reconnect bool // set after the first successful connect
}

// NewRealPublisher creates a publisher for the given broker. Connecting is
// asynchronous and retried forever; the broker's last will announces an
// unexpected disconnect on TopicSystem.
func NewRealPublisher(broker string) *RealPublisher {
	p := &RealPublisher{
		now: time.Now,
		buf: newRingBuffer(bufferCapacity),
	}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	c := paho.NewClient(opts)
	p.client = c
	c.Connect()
	return p
}

// newPublisher wraps an already configured client. Used by tests.
func newPublisher(c client, now func() time.Time) *RealPublisher {
	return &RealPublisher{
		client: c,
		now:    now,
		buf:    newRingBuffer(bufferCapacity),
	}
}

func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connected = true
	backlog := p.buf.drain()
	if len(backlog) > 0 {
		log.Printf("mqtt: connected, replaying %d buffered messages", len(backlog))
	} else {
		log.Printf("mqtt: connected")
	}
	if p.reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		backlog = append(backlog, pending{topic: TopicSystem, payload: payload, qos: 1})
	}
	p.reconnect = true

	for i, msg := range backlog {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay failed: %v", err)
			// Keep the rest for the next connect.
			for _, rest := range backlog[i:] {
				p.buf.push(rest)
			}
			return
		}
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// Publish sends a reading to TopicReadings with QoS 0.
func (p *RealPublisher) Publish(r logic.Reading) error {
	payload, err := FormatPayload(r)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(pending{topic: TopicReadings, payload: payload})
}

// PublishSystem sends a system lifecycle event with QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(pending{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg pending) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected || !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		return nil
	}
	if err := p.send(msg); err != nil {
		p.buf.push(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg pending) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%s: %w", msg.topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker. Buffered messages are discarded.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		log.Printf("mqtt: discarding %d buffered messages", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
