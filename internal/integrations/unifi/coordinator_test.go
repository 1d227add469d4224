package unifi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// nvrServer is a fake NVR event feed. Each accepted connection is
// handed to the frames channel consumer for scripting.
type nvrServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	ready chan *websocket.Conn
}

func newNVRServer(t *testing.T) *nvrServer {
	t.Helper()
	s := &nvrServer{ready: make(chan *websocket.Conn, 4)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.ready <- conn
		// Hold the connection open; the test side writes frames.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		s.mu.Lock()
		for _, c := range s.conns {
			c.Close() //nolint:errcheck // test teardown
		}
		s.mu.Unlock()
		s.srv.Close()
	})
	return s
}

func (s *nvrServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// conn waits for the next accepted connection.
func (s *nvrServer) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-s.ready:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NVR connection")
		return nil
	}
}

type update struct {
	deviceID string
	changed  []string
	state    map[string]any
}

func startCoordinator(t *testing.T, url string) (*Coordinator, chan update) {
	t.Helper()

	c := NewCoordinator(url, nil)
	updates := make(chan update, 16)
	c.SubscribeAll(func(deviceID string, changed []string, state map[string]any) {
		updates <- update{deviceID: deviceID, changed: changed, state: state}
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Error("coordinator did not stop")
		}
	})
	c.Start(ctx)
	return c, updates
}

func waitUpdate(t *testing.T, updates chan update) update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return update{}
	}
}

func TestCoordinatorDispatchesChangedFields(t *testing.T) {
	s := newNVRServer(t)
	_, updates := startCoordinator(t, s.url())
	conn := s.conn(t)

	write := func(frame string) {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("writing frame: %v", err)
		}
	}

	write(`{"type":"update","id":"cam-1","state":{"motion":false,"online":true}}`)
	first := waitUpdate(t, updates)
	if first.deviceID != "cam-1" {
		t.Errorf("deviceID = %q", first.deviceID)
	}
	if !reflect.DeepEqual(first.changed, []string{"motion", "online"}) {
		t.Errorf("changed = %v", first.changed)
	}

	write(`{"type":"update","id":"cam-1","state":{"motion":true,"online":true}}`)
	second := waitUpdate(t, updates)
	if !reflect.DeepEqual(second.changed, []string{"motion"}) {
		t.Errorf("changed = %v", second.changed)
	}
	if second.state["motion"] != true {
		t.Errorf("state = %v", second.state)
	}
}

func TestCoordinatorSkipsUnchangedUpdates(t *testing.T) {
	s := newNVRServer(t)
	_, updates := startCoordinator(t, s.url())
	conn := s.conn(t)

	frame := `{"type":"update","id":"cam-1","state":{"online":true}}`
	for range 2 {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("writing frame: %v", err)
		}
	}

	waitUpdate(t, updates)
	select {
	case u := <-updates:
		t.Errorf("unchanged update dispatched: %v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCoordinatorIgnoresNonUpdateFrames(t *testing.T) {
	s := newNVRServer(t)
	_, updates := startCoordinator(t, s.url())
	conn := s.conn(t)

	frames := []string{
		`{"type":"hello"}`,
		`not json at all`,
		`{"type":"update","state":{"x":1}}`, // missing id
		`{"type":"update","id":"cam-1","state":{"online":true}}`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("writing frame: %v", err)
		}
	}

	u := waitUpdate(t, updates)
	if u.deviceID != "cam-1" {
		t.Errorf("deviceID = %q", u.deviceID)
	}
}

func TestCoordinatorReconnects(t *testing.T) {
	s := newNVRServer(t)
	_, updates := startCoordinator(t, s.url())

	first := s.conn(t)
	first.Close() //nolint:errcheck // simulating a dropped feed

	// The coordinator should dial again after the initial backoff.
	second := s.conn(t)
	if err := second.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"update","id":"cam-2","state":{"online":true}}`)); err != nil {
		t.Fatalf("writing frame: %v", err)
	}

	u := waitUpdate(t, updates)
	if u.deviceID != "cam-2" {
		t.Errorf("deviceID = %q", u.deviceID)
	}
}

func TestSubscribeAndDetach(t *testing.T) {
	c := NewCoordinator("ws://unused", nil)

	var got []string
	detach := c.Subscribe("cam-1", func(deviceID string, _ []string, _ map[string]any) {
		got = append(got, deviceID)
	})

	mustFrame := func(frame string) {
		t.Helper()
		if err := c.handleFrame([]byte(frame)); err != nil {
			t.Fatalf("handleFrame() error = %v", err)
		}
	}
	mustFrame(`{"type":"update","id":"cam-1","state":{"n":1}}`)
	mustFrame(`{"type":"update","id":"cam-2","state":{"n":1}}`)

	if len(got) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(got))
	}

	detach()
	detach() // second call is a no-op
	mustFrame(`{"type":"update","id":"cam-1","state":{"n":2}}`)
	if len(got) != 1 {
		t.Error("detached subscriber still receiving")
	}
}

func TestStateAndLastSeen(t *testing.T) {
	c := NewCoordinator("ws://unused", nil)

	if err := c.handleFrame([]byte(`{"type":"update","id":"cam-1","state":{"online":true}}`)); err != nil {
		t.Fatalf("handleFrame() error = %v", err)
	}

	stateCopy, ok := c.State("cam-1")
	if !ok || stateCopy["online"] != true {
		t.Errorf("State() = %v, %v", stateCopy, ok)
	}
	stateCopy["online"] = false
	if again, _ := c.State("cam-1"); again["online"] != true {
		t.Error("State() must return a copy")
	}

	if _, ok := c.LastSeen("cam-1"); !ok {
		t.Error("LastSeen() missing after update")
	}
	if !c.Available("cam-1", time.Minute) {
		t.Error("device should be available")
	}
	if c.Available("cam-9", time.Minute) {
		t.Error("unseen device reported available")
	}
}

func TestDiffFields(t *testing.T) {
	tests := []struct {
		name string
		prev map[string]any
		next map[string]any
		want []string
	}{
		{
			name: "first sight lists everything",
			next: map[string]any{"b": 1, "a": 2},
			want: []string{"a", "b"},
		},
		{
			name: "value change",
			prev: map[string]any{"motion": false, "online": true},
			next: map[string]any{"motion": true, "online": true},
			want: []string{"motion"},
		},
		{
			name: "removed field",
			prev: map[string]any{"motion": false, "zoom": 2},
			next: map[string]any{"motion": false},
			want: []string{"zoom"},
		},
		{
			name: "no change",
			prev: map[string]any{"motion": false},
			next: map[string]any{"motion": false},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := diffFields(tt.prev, tt.next); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("diffFields() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	if got := nextBackoff(time.Second); got != 2*time.Second {
		t.Errorf("nextBackoff(1s) = %v", got)
	}
	if got := nextBackoff(48 * time.Second); got != maxBackoff {
		t.Errorf("nextBackoff(48s) = %v, want cap", got)
	}
	if got := nextBackoff(maxBackoff); got != maxBackoff {
		t.Errorf("nextBackoff(cap) = %v, want cap", got)
	}
}
