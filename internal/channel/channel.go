// ABOUTME: WebSocket client for the agent conversation protocol
// ABOUTME: Handles connection, inbound message delivery, and outbound sends
package channel

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/baatein/baatein-go/internal/protocol"
)

// Channel is a persistent WebSocket connection to the agent. Inbound
// messages arrive on Inbound in wire order; Closed is closed exactly once
// when the connection terminates for any reason, after which the channel
// is dead and a new one must be dialed.
//
// Audio frames go through a bounded ring drained by a writer goroutine,
// so SendAudio never blocks the capture path. Control messages share the
// writer and are sent ahead of queued frames.
type Channel struct {
	url  string
	log  *zap.SugaredLogger
	conn *websocket.Conn
	mu   sync.RWMutex

	inbound chan protocol.Message
	closed  chan struct{}
	done    sync.Once

	ring    *FrameRing
	wake    chan struct{}
	control chan protocol.Message

	connected bool
}

// ringCapacity bounds buffered outbound audio to a few seconds of
// base64 16kHz mono PCM.
const ringCapacity = 1 << 20

// Dial connects to the agent at url (ws:// or wss://) and starts the
// reader and writer goroutines.
func Dial(url string, log *zap.SugaredLogger) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Channel{
		url:       url,
		log:       log,
		conn:      conn,
		inbound:   make(chan protocol.Message, 64),
		closed:    make(chan struct{}),
		ring:      NewFrameRing(ringCapacity),
		wake:      make(chan struct{}, 1),
		control:   make(chan protocol.Message, 16),
		connected: true,
	}

	go c.readMessages()
	go c.writeMessages()

	return c, nil
}

// Inbound returns the stream of decoded agent messages.
func (c *Channel) Inbound() <-chan protocol.Message {
	return c.inbound
}

// Closed is closed when the connection has terminated.
func (c *Channel) Closed() <-chan struct{} {
	return c.closed
}

// IsConnected reports whether the connection is still live.
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendAudio queues one encoded mic frame. Never blocks; when the agent
// falls behind, the oldest queued frames are dropped.
func (c *Channel) SendAudio(data string) {
	if !c.ring.Push(data) {
		c.log.Warnw("dropping oversized audio frame", "bytes", len(data))
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// SendUserStoppedSpeaking notifies the agent the user's turn ended.
func (c *Channel) SendUserStoppedSpeaking() {
	c.sendControl(protocol.UserStoppedSpeaking())
}

// SendBargeIn notifies the agent the user interrupted its reply.
func (c *Channel) SendBargeIn() {
	c.sendControl(protocol.BargeIn())
}

func (c *Channel) sendControl(msg protocol.Message) {
	select {
	case c.control <- msg:
	default:
		c.log.Errorw("control queue full, dropping message", "type", msg.Type)
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.connected {
		c.connected = false
		c.conn.Close()
	}
	c.mu.Unlock()

	c.done.Do(func() { close(c.closed) })
}

func (c *Channel) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsConnected() {
				c.log.Infow("connection closed by agent", "err", err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warnw("undecodable message", "err", err)
			continue
		}

		select {
		case c.inbound <- msg:
		case <-c.closed:
			return
		}
	}
}

func (c *Channel) writeMessages() {
	defer c.Close()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.control:
			if err := c.writeJSON(msg); err != nil {
				return
			}
		case <-c.wake:
			if !c.drainRing() {
				return
			}
		}
	}
}

// drainRing writes all queued frames, yielding to pending control
// messages between frames.
func (c *Channel) drainRing() bool {
	for {
		select {
		case msg := <-c.control:
			if err := c.writeJSON(msg); err != nil {
				return false
			}
			continue
		default:
		}

		data, ok := c.ring.Pop()
		if !ok {
			return true
		}
		if err := c.writeJSON(protocol.AudioChunk(data)); err != nil {
			return false
		}
	}
}

func (c *Channel) writeJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Warnw("write failed", "type", msg.Type, "err", err)
		return err
	}
	return nil
}
