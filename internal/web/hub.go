package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "github.com/echocat/slf4g"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/sweeney/jawtalk/internal/logic"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 16
)

// Message is pushed to every connected display.
type Message struct {
	Type      string          `json:"type"` // "phrase", "unrecognized" or "calibration"
	Text      string          `json:"text,omitempty"`
	Gestures  []logic.Gesture `json:"gestures,omitempty"`
	Step      string          `json:"step,omitempty"`
	Done      bool            `json:"done,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// PhraseMessage builds the display message for a phrase.
func PhraseMessage(p logic.Phrase) Message {
	return Message{
		Type:      "phrase",
		Text:      p.Text,
		Gestures:  p.Gestures,
		Timestamp: p.Time.UTC().Format(time.RFC3339Nano),
	}
}

// UnrecognizedMessage builds the display message for a discarded sequence.
func UnrecognizedMessage(seq *logic.UnrecognizedSequenceError) Message {
	return Message{
		Type:      "unrecognized",
		Gestures:  seq.Gestures,
		Timestamp: seq.Time.UTC().Format(time.RFC3339Nano),
	}
}

// CalibrationMessage builds the display prompt for the guided calibration.
func CalibrationMessage(next logic.Gesture, done bool, at time.Time) Message {
	m := Message{Type: "calibration", Done: done, Timestamp: at.UTC().Format(time.RFC3339Nano)}
	if !done {
		m.Step = next.String()
	}
	return m
}

// Hub fans messages out to websocket clients. A client that cannot keep up
// is disconnected rather than slowing the pipeline.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Broadcast sends m to every connected client without blocking.
func (h *Hub) Broadcast(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		log.WithError(err).Warn("Cannot encode display message.")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn("Display client too slow, disconnecting.")
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.hub.serve(w, r)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		log.WithError(err).Debug("Websocket upgrade failed.")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSend)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump()
	h.remove(c)
}

// readPump discards client messages; it returns once the connection closes.
func (c *client) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.WithError(err).Debug("Websocket read failed.")
			}
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
