package mqtt

import (
	"sync"

	log "github.com/echocat/slf4g"
)

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineBuffer holds messages published while disconnected. When full the
// oldest message is discarded; the number discarded is reported on take.
type offlineBuffer struct {
	mu      sync.Mutex
	msgs    []bufferedMsg
	start   int
	size    int
	dropped int
}

func newOfflineBuffer(capacity int) *offlineBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &offlineBuffer{msgs: make([]bufferedMsg, capacity)}
}

func (b *offlineBuffer) add(msg bufferedMsg) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.msgs)
	if b.size < n {
		b.msgs[(b.start+b.size)%n] = msg
		b.size++
		return
	}
	if b.dropped == 0 {
		log.With("capacity", n).Warn("MQTT offline buffer full, dropping oldest.")
	}
	b.msgs[b.start] = msg
	b.start = (b.start + 1) % n
	b.dropped++
}

// take empties the buffer, returning messages oldest first and the count
// discarded since the previous take.
func (b *offlineBuffer) take() ([]bufferedMsg, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := b.dropped
	if b.size == 0 {
		b.dropped = 0
		return nil, dropped
	}
	n := len(b.msgs)
	out := make([]bufferedMsg, b.size)
	for i := range out {
		out[i] = b.msgs[(b.start+i)%n]
		b.msgs[(b.start+i)%n] = bufferedMsg{}
	}
	b.start, b.size, b.dropped = 0, 0, 0
	return out, dropped
}

func (b *offlineBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
