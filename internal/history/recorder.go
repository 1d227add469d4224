package history

import (
	"context"
	"strconv"
	"time"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/state"
)

// StateWriter receives numeric state samples. Satisfied by *Client.
type StateWriter interface {
	WriteState(entityID string, value float64, at time.Time)
}

// Logger is the minimal logging surface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Recorder listens for state_changed events and records every state that
// parses as a number. Binary on/off states are stored as 1/0 so switch
// and motion history can be graphed alongside sensor values.
type Recorder struct {
	writer StateWriter
	bus    *bus.Bus
	logger Logger

	detach bus.DetachFunc
}

// NewRecorder creates a recorder. logger may be nil.
func NewRecorder(writer StateWriter, eventBus *bus.Bus, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{writer: writer, bus: eventBus, logger: logger}
}

// Start attaches the recorder to the event bus.
func (r *Recorder) Start() {
	r.detach = r.bus.Listen(bus.EventStateChanged, r.handleStateChanged)
}

// Stop detaches the recorder. Safe to call more than once.
func (r *Recorder) Stop() {
	if r.detach != nil {
		r.detach()
	}
}

func (r *Recorder) handleStateChanged(_ context.Context, e bus.Event) {
	newState, _ := e.Data["new_state"].(*state.EntityState)
	if newState == nil {
		return
	}

	value, ok := numericValue(newState.State)
	if !ok {
		r.logger.Debug("state not recorded, non-numeric",
			"entity_id", newState.EntityID, "state", newState.State)
		return
	}
	r.writer.WriteState(newState.EntityID, value, newState.LastUpdated)
}

// numericValue maps a state string onto a float sample.
func numericValue(s string) (float64, bool) {
	switch s {
	case state.StateOn, state.StateOpen:
		return 1, true
	case state.StateOff, state.StateClosed:
		return 0, true
	case state.StateUnknown, state.StateUnavailable:
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
