package mqtt

import (
	"context"
	"fmt"
	"time"

	log "github.com/echocat/slf4g"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/jawtalk/internal/logic"
)

// ReadingSource subscribes to the acquisition node's readings topic.
// It implements source.Source.
type ReadingSource struct {
	opts Options
	// Now stamps readings that arrive without a timestamp.
	Now func() time.Time
}

// readingsClientSuffix keeps the subscriber's client ID distinct from the
// publisher's; a broker disconnects the older of two sessions sharing an ID.
const readingsClientSuffix = "-readings"

// NewReadingSource returns a source reading from o.Topics.Readings. It
// connects as o.ClientID with readingsClientSuffix appended, so it can share
// o with a RealPublisher.
func NewReadingSource(o Options) *ReadingSource {
	if o.ClientID != "" {
		o.ClientID += readingsClientSuffix
	}
	return &ReadingSource{opts: o, Now: time.Now}
}

// Run subscribes and emits decoded readings until ctx is done.
// Undecodable messages are logged and skipped.
func (s *ReadingSource) Run(ctx context.Context, emit func(logic.Reading)) error {
	if s.opts.Broker == "" {
		return fmt.Errorf("mqtt: broker address is required")
	}
	handler := s.handler(emit)

	topic := s.opts.Topics.Readings
	opts := s.opts.clientOptions().
		// Resubscribe after every reconnect; the session is not persistent
		SetOnConnectHandler(func(c paho.Client) {
			if t := c.Subscribe(topic, 0, handler); t.WaitTimeout(connectTimeout) && t.Error() != nil {
				log.WithError(t.Error()).With("topic", topic).Warn("MQTT subscribe failed.")
			}
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
	case <-ctx.Done():
		client.Disconnect(0)
		return nil
	}
	log.With("topic", topic).Info("Subscribed to readings.")

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

func (s *ReadingSource) handler(emit func(logic.Reading)) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		r, err := DecodeReading(msg.Payload(), s.Now())
		if err != nil {
			log.WithError(err).With("topic", msg.Topic()).Warn("Dropping undecodable reading.")
			return
		}
		emit(r)
	}
}
