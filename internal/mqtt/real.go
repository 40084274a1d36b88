package mqtt

import (
	"fmt"
	"time"

	log "github.com/echocat/slf4g"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/jawtalk/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	// DefaultBufferCapacity bounds the messages held while disconnected.
	DefaultBufferCapacity = 1000
)

// Options configure a broker connection.
type Options struct {
	Broker   string
	ClientID string
	Topics   Topics
	// BufferCapacity bounds the offline buffer; zero means DefaultBufferCapacity.
	BufferCapacity int
}

func (o Options) clientOptions() *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	buffer *offlineBuffer
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// An unreachable broker is not an error: the client keeps retrying in the
// background and messages are buffered until it connects.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address is required")
	}
	capacity := o.BufferCapacity
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	p := &RealPublisher{
		topics: o.Topics,
		buffer: newOfflineBuffer(capacity),
	}

	will, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}
	opts := o.clientOptions().
		SetWill(o.Topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.replay() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost, buffering.")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.With("broker", o.Broker).Warn("MQTT broker not reachable yet, buffering until connected.")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// PublishPhrase sends a phrase to the broker.
func (p *RealPublisher) PublishPhrase(session string, phrase logic.Phrase) error {
	payload, err := FormatPhrasePayload(session, phrase)
	if err != nil {
		return fmt.Errorf("format phrase payload: %w", err)
	}
	// QoS 1: a phrase is something the user said
	return p.publish(bufferedMsg{topic: p.topics.Phrases, payload: payload, qos: 1})
}

// PublishUnrecognized sends a discarded sequence to the broker.
func (p *RealPublisher) PublishUnrecognized(session string, seq *logic.UnrecognizedSequenceError) error {
	payload, err := FormatUnrecognizedPayload(session, seq)
	if err != nil {
		return fmt.Errorf("format unrecognized payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.Unrecognized, payload: payload})
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.buffer.add(msg)
		return nil
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// replay runs on paho's connect callback.
func (p *RealPublisher) replay() {
	pending, dropped := p.buffer.take()
	if len(pending) == 0 {
		return
	}

	log.With("count", len(pending)).
		With("dropped", dropped).
		Info("MQTT connected, replaying buffered messages.")
	for _, msg := range pending {
		// Publish without waiting: the callback must not block the client
		p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
