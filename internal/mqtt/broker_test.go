package mqtt

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/jawtalk/internal/logic"
)

// startBroker runs an in-process broker on a free local port and returns
// its address as a paho broker URL.
func startBroker(t *testing.T) (*mochi.Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	server := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})))
	go func() {
		_ = server.Serve()
	}()
	t.Cleanup(func() { _ = server.Close() })

	return server, "tcp://" + addr
}

type received struct {
	mu       sync.Mutex
	payloads []string
}

func (r *received) add(p []byte) {
	r.mu.Lock()
	r.payloads = append(r.payloads, string(p))
	r.mu.Unlock()
}

func (r *received) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func TestReadingSourceUsesOwnClientID(t *testing.T) {
	s := NewReadingSource(Options{Broker: "tcp://x:1883", ClientID: "jawtalk-kitchen"})
	assert.Equal(t, "jawtalk-kitchen-readings", s.opts.ClientID)

	s = NewReadingSource(Options{Broker: "tcp://x:1883"})
	assert.Empty(t, s.opts.ClientID)
}

func TestPublisherAndReadingSourceShareBroker(t *testing.T) {
	server, broker := startBroker(t)
	opts := Options{Broker: broker, ClientID: "jawtalk-test", Topics: NewTopics("test")}

	var phrases received
	require.NoError(t, server.Subscribe(opts.Topics.Phrases, 1, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		phrases.add(pk.Payload)
	}))

	pub, err := NewRealPublisher(opts)
	require.NoError(t, err)
	defer pub.Close()
	require.Eventually(t, pub.IsConnected, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	readings := make(chan logic.Reading, 16)
	done := make(chan error, 1)
	go func() {
		done <- NewReadingSource(opts).Run(ctx, func(r logic.Reading) {
			select {
			case readings <- r:
			default:
			}
		})
	}()

	// The subscription lands on connect; publish until the first reading arrives
	require.Eventually(t, func() bool {
		if err := server.Publish(opts.Topics.Readings, []byte(`{"value":61}`), false, 0); err != nil {
			return false
		}
		select {
		case r := <-readings:
			return r.Value == 61
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	// Both clients stay connected side by side
	assert.Never(t, func() bool { return !pub.IsConnected() }, time.Second, 20*time.Millisecond)

	require.NoError(t, pub.PublishPhrase("s", logic.Phrase{Text: "Yes", Time: ts}))
	assert.Zero(t, pub.Buffered())
	require.Eventually(t, func() bool {
		got := phrases.all()
		return len(got) == 1 && strings.Contains(got[0], `"text":"Yes"`)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reading source did not stop")
	}
}
