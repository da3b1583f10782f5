package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// The response stream writes from two goroutines: the forward loop pushes
// events while the read loop answers pings. Gorilla permits one writer at a
// time, so the wrapper must serialize them.
func TestConcurrentWritesAreSerialized(t *testing.T) {
	const writers = 8

	received := make(chan PongResponse, writers)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer serverConn.Close()

		for i := 0; i < writers; i++ {
			var msg PongResponse
			if err := serverConn.ReadJSON(&msg); err != nil {
				t.Errorf("read frame %d: %v", i, err)
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	raw, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := Wrap(raw)
	defer conn.Close()

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			if err := conn.WriteTyped(PongResponse{Event: EventPong}); err != nil {
				t.Errorf("concurrent write: %v", err)
			}
		}()
	}
	wg.Wait()

	// Every frame must arrive intact; interleaved writes would corrupt them.
	for i := 0; i < writers; i++ {
		msg := <-received
		if msg.Event != EventPong {
			t.Fatalf("frame %d: got event %q, want %q", i, msg.Event, EventPong)
		}
	}
}
