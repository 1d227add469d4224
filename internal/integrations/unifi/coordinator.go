package unifi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default reconnect backoff bounds.
const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second
)

// UpdateFunc receives a device update: which fields changed and the
// full current state. Called on the coordinator's read goroutine, so
// handlers must not block.
type UpdateFunc func(deviceID string, changed []string, state map[string]any)

// Logger is the minimal logging surface the coordinator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Coordinator maintains a websocket subscription to an NVR event feed
// and fans device updates out to subscribers.
//
// Each update frame carries the full state of one device. The
// coordinator diffs it against the previous state, and only the
// changed field names are reported. Subscribers register per device
// ID, or for all devices with SubscribeAll. The connection is retried
// forever with exponential backoff until the context is cancelled.
type Coordinator struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger Logger

	// onConnected, if set, is called with true after each successful
	// dial and false when the connection drops. Set before Start.
	onConnected func(connected bool)

	mu       sync.RWMutex
	states   map[string]map[string]any
	lastSeen map[string]time.Time
	subs     map[string]map[int]UpdateFunc
	allSubs  map[int]UpdateFunc
	nextSub  int

	done chan struct{}
}

// NewCoordinator creates a coordinator for the given websocket URL.
// logger may be nil.
func NewCoordinator(url string, logger Logger) *Coordinator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Coordinator{
		url:      url,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		states:   make(map[string]map[string]any),
		lastSeen: make(map[string]time.Time),
		subs:     make(map[string]map[int]UpdateFunc),
		allSubs:  make(map[int]UpdateFunc),
		done:     make(chan struct{}),
	}
}

// SetConnectionListener registers a callback for connect/disconnect
// transitions. Must be called before Start.
func (c *Coordinator) SetConnectionListener(fn func(connected bool)) {
	c.onConnected = fn
}

// SetRequestHeader sets headers sent on the websocket dial, typically
// an API key. Must be called before Start.
func (c *Coordinator) SetRequestHeader(h http.Header) {
	c.header = h
}

// SetTLSClientConfig overrides TLS settings for the dial, for NVRs
// with self-signed certificates. Must be called before Start.
func (c *Coordinator) SetTLSClientConfig(cfg *tls.Config) {
	c.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
		TLSClientConfig:  cfg,
	}
}

// Start runs the connect/read/reconnect loop until ctx is cancelled.
// It returns immediately; use Done to wait for shutdown.
func (c *Coordinator) Start(ctx context.Context) {
	go func() {
		defer close(c.done)

		backoff := initialBackoff
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
			if err != nil {
				c.logger.Warn("nvr connection failed",
					"url", c.url, "retry_in", backoff.String(), "error", err)
				if !sleepCtx(ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff)
				continue
			}

			c.logger.Info("nvr connected", "url", c.url)
			backoff = initialBackoff
			if c.onConnected != nil {
				c.onConnected(true)
			}

			c.readLoop(ctx, conn)

			conn.Close() //nolint:errcheck // already torn down
			if c.onConnected != nil {
				c.onConnected(false)
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("nvr connection lost", "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
		}
	}()
}

// Done returns a channel closed once the coordinator has fully stopped.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// readLoop consumes frames until the connection breaks or ctx ends.
func (c *Coordinator) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() //nolint:errcheck // forcing the read loop out
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := c.handleFrame(payload); err != nil {
			c.logger.Debug("nvr frame dropped", "error", err)
		}
	}
}

// updateFrame is one NVR event feed message.
type updateFrame struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	State map[string]any `json:"state"`
}

// handleFrame decodes an update frame, diffs it against the last known
// device state and dispatches to subscribers.
func (c *Coordinator) handleFrame(payload []byte) error {
	var frame updateFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}
	if frame.Type != "update" {
		// hello, pong and stats frames carry nothing we track.
		return nil
	}
	if frame.ID == "" {
		return fmt.Errorf("update frame without device id")
	}

	c.mu.Lock()
	prev := c.states[frame.ID]
	changed := diffFields(prev, frame.State)
	c.states[frame.ID] = frame.State
	c.lastSeen[frame.ID] = time.Now().UTC()

	var fns []UpdateFunc
	for _, fn := range c.subs[frame.ID] {
		fns = append(fns, fn)
	}
	for _, fn := range c.allSubs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if len(changed) == 0 && prev != nil {
		return nil
	}
	for _, fn := range fns {
		fn(frame.ID, changed, frame.State)
	}
	return nil
}

// diffFields returns the sorted names of fields that differ between
// two state maps, including fields that disappeared.
func diffFields(prev, next map[string]any) []string {
	var changed []string
	for k, v := range next {
		if old, ok := prev[k]; !ok || !reflect.DeepEqual(old, v) {
			changed = append(changed, k)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// Subscribe registers fn for updates to one device. The returned
// function removes the subscription and is safe to call more than once.
func (c *Coordinator) Subscribe(deviceID string, fn UpdateFunc) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	if c.subs[deviceID] == nil {
		c.subs[deviceID] = make(map[int]UpdateFunc)
	}
	c.subs[deviceID][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs[deviceID], id)
		if len(c.subs[deviceID]) == 0 {
			delete(c.subs, deviceID)
		}
		c.mu.Unlock()
	}
}

// SubscribeAll registers fn for updates to every device.
func (c *Coordinator) SubscribeAll(fn UpdateFunc) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.allSubs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.allSubs, id)
		c.mu.Unlock()
	}
}

// State returns a copy of the last known state for a device.
func (c *Coordinator) State(deviceID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.states[deviceID]
	if !ok {
		return nil, false
	}
	cp := make(map[string]any, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp, true
}

// LastSeen returns when a device last appeared on the feed.
func (c *Coordinator) LastSeen(deviceID string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.lastSeen[deviceID]
	return t, ok
}

// Available reports whether a device has been seen within staleAfter.
func (c *Coordinator) Available(deviceID string, staleAfter time.Duration) bool {
	t, ok := c.LastSeen(deviceID)
	return ok && time.Since(t) <= staleAfter
}

// nextBackoff doubles the delay up to the cap.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// sleepCtx waits for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
