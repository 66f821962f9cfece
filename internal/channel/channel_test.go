// ABOUTME: Loopback tests for the agent WebSocket channel
// ABOUTME: Uses an httptest server with the gorilla upgrader
package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/baatein/baatein-go/internal/protocol"
)

// testServer accepts one connection and hands it to handle.
func testServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialFailure(t *testing.T) {
	_, err := Dial("ws://127.0.0.1:1/nowhere", zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("Dial to unreachable address succeeded")
	}
}

func TestInboundDelivery(t *testing.T) {
	srv := testServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(protocol.Message{Type: protocol.TypeTranscript, Text: "hello"})
		conn.WriteJSON(protocol.Message{Type: protocol.TypeTTSDone, TotalTime: 1.5})
	})

	c, err := Dial(wsURL(srv), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer c.Close()

	msg := recvMsg(t, c)
	if msg.Type != protocol.TypeTranscript || msg.Text != "hello" {
		t.Errorf("first message = %+v, want transcript %q", msg, "hello")
	}
	msg = recvMsg(t, c)
	if msg.Type != protocol.TypeTTSDone || msg.TotalTime != 1.5 {
		t.Errorf("second message = %+v, want tts_done 1.5", msg)
	}
}

func TestOutboundControlAndAudio(t *testing.T) {
	got := make(chan protocol.Message, 8)
	srv := testServer(t, func(conn *websocket.Conn) {
		for {
			var msg protocol.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			got <- msg
		}
	})

	c, err := Dial(wsURL(srv), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer c.Close()

	c.SendAudio("AAAA")
	c.SendUserStoppedSpeaking()
	c.SendBargeIn()

	types := map[string]protocol.Message{}
	for i := 0; i < 3; i++ {
		select {
		case msg := <-got:
			types[msg.Type] = msg
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d messages", i)
		}
	}

	if msg, ok := types[protocol.TypeAudioChunk]; !ok || msg.Data != "AAAA" {
		t.Errorf("audio_chunk = %+v, want data %q", msg, "AAAA")
	}
	if _, ok := types[protocol.TypeUserStoppedSpeaking]; !ok {
		t.Error("user_stopped_speaking not received")
	}
	if _, ok := types[protocol.TypeBargeIn]; !ok {
		t.Error("barge_in not received")
	}
}

func TestAudioFramesArriveInOrder(t *testing.T) {
	got := make(chan string, 32)
	srv := testServer(t, func(conn *websocket.Conn) {
		for {
			var msg protocol.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == protocol.TypeAudioChunk {
				got <- msg.Data
			}
		}
	})

	c, err := Dial(wsURL(srv), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer c.Close()

	want := []string{"f0", "f1", "f2", "f3", "f4"}
	for _, f := range want {
		c.SendAudio(f)
	}

	for i, w := range want {
		select {
		case data := <-got:
			if data != w {
				t.Errorf("frame %d = %q, want %q", i, data, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

func TestClosedFiresOnServerClose(t *testing.T) {
	srv := testServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	c, err := Dial(wsURL(srv), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}

	select {
	case <-c.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("Closed() did not fire after server close")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after close")
	}
}

func TestCloseIdempotent(t *testing.T) {
	srv := testServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c, err := Dial(wsURL(srv), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}

	c.Close()
	c.Close()

	select {
	case <-c.Closed():
	default:
		t.Error("Closed() not closed after Close()")
	}

	// Sends after close must be harmless.
	c.SendAudio("late")
	c.SendBargeIn()
}

func recvMsg(t *testing.T, c *Channel) protocol.Message {
	t.Helper()
	select {
	case msg := <-c.Inbound():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")
		return protocol.Message{}
	}
}
