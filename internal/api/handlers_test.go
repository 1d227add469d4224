package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amberhub/amber-core/internal/auth"
	"github.com/amberhub/amber-core/internal/automation"
	"github.com/amberhub/amber-core/internal/automation/trigger"
	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/script"
	"github.com/amberhub/amber-core/internal/service"
	"github.com/amberhub/amber-core/internal/state"
)

// ─── States ──────────────────────────────────────────────────────────

func TestStateEndpoints(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")
	ctx := context.Background()

	mustSet := func(entityID, value string, attrs map[string]any) {
		if err := f.states.Set(ctx, entityID, value, attrs); err != nil {
			t.Fatalf("seeding state %s: %v", entityID, err)
		}
	}
	mustSet("light.kitchen", state.StateOn, map[string]any{"brightness": 200})
	mustSet("light.hall", state.StateOff, nil)
	mustSet("cover.garage", state.StateClosed, map[string]any{"position": 0})

	var all []state.EntityState
	status := f.request(t, http.MethodGet, "/api/v1/states", tokens.AccessToken, nil, &all)
	if status != http.StatusOK {
		t.Fatalf("list status = %d, want 200", status)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d states, want 3", len(all))
	}
	// Sorted by entity ID
	if all[0].EntityID != "cover.garage" {
		t.Errorf("first entity = %q, want cover.garage", all[0].EntityID)
	}

	var lights []state.EntityState
	f.request(t, http.MethodGet, "/api/v1/states?domain=light", tokens.AccessToken, nil, &lights)
	if len(lights) != 2 {
		t.Errorf("domain filter returned %d, want 2", len(lights))
	}

	var one state.EntityState
	status = f.request(t, http.MethodGet, "/api/v1/states/light.kitchen", tokens.AccessToken, nil, &one)
	if status != http.StatusOK {
		t.Fatalf("get status = %d, want 200", status)
	}
	if one.State != state.StateOn {
		t.Errorf("state = %q, want on", one.State)
	}
	if one.Attributes["brightness"] != float64(200) {
		t.Errorf("brightness = %v, want 200", one.Attributes["brightness"])
	}

	status = f.request(t, http.MethodGet, "/api/v1/states/light.nowhere", tokens.AccessToken, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("missing entity status = %d, want 404", status)
	}
}

// ─── Devices ─────────────────────────────────────────────────────────

func TestDeviceCRUD(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	var created device.Device
	status := f.request(t, http.MethodPost, "/api/v1/devices", tokens.AccessToken,
		device.Device{Name: "Kitchen Switch", Integration: "shelly", Area: "kitchen"}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", status)
	}
	if created.ID == "" {
		t.Fatal("created device should have an ID")
	}

	var fetched device.Device
	status = f.request(t, http.MethodGet, "/api/v1/devices/"+created.ID, tokens.AccessToken, nil, &fetched)
	if status != http.StatusOK {
		t.Fatalf("get status = %d, want 200", status)
	}
	if fetched.Name != "Kitchen Switch" {
		t.Errorf("name = %q, want Kitchen Switch", fetched.Name)
	}

	// Partial update keeps omitted fields
	var updated device.Device
	status = f.request(t, http.MethodPatch, "/api/v1/devices/"+created.ID, tokens.AccessToken,
		map[string]string{"area": "pantry"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", status)
	}
	if updated.Area != "pantry" {
		t.Errorf("area = %q, want pantry", updated.Area)
	}
	if updated.Name != "Kitchen Switch" {
		t.Errorf("name after patch = %q, want Kitchen Switch", updated.Name)
	}

	var listed []device.Device
	f.request(t, http.MethodGet, "/api/v1/devices?integration=shelly", tokens.AccessToken, nil, &listed)
	if len(listed) != 1 {
		t.Errorf("integration filter returned %d devices, want 1", len(listed))
	}

	status = f.request(t, http.MethodDelete, "/api/v1/devices/"+created.ID, tokens.AccessToken, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", status)
	}
	status = f.request(t, http.MethodGet, "/api/v1/devices/"+created.ID, tokens.AccessToken, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", status)
	}
}

func TestDeviceValidation(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	// Integration is required
	status := f.request(t, http.MethodPost, "/api/v1/devices", tokens.AccessToken,
		map[string]string{"name": "No Integration"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("invalid device status = %d, want 400", status)
	}
}

func TestDeviceCapabilities(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	var dev device.Device
	f.request(t, http.MethodPost, "/api/v1/devices", tokens.AccessToken,
		device.Device{Name: "Orphan", Integration: "nothing"}, &dev)

	// No provider registered for the integration: empty lists, not errors
	for _, kind := range []string{"triggers", "conditions", "actions"} {
		var caps []map[string]any
		status := f.request(t, http.MethodGet, "/api/v1/devices/"+dev.ID+"/"+kind, tokens.AccessToken, nil, &caps)
		if status != http.StatusOK {
			t.Errorf("%s status = %d, want 200", kind, status)
		}
		if len(caps) != 0 {
			t.Errorf("%s = %v, want empty", kind, caps)
		}
	}

	status := f.request(t, http.MethodGet, "/api/v1/devices/missing/triggers", tokens.AccessToken, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", status)
	}
}

// ─── Automations ─────────────────────────────────────────────────────

func testAutomation(alias string) automation.Automation {
	return automation.Automation{
		Alias:   alias,
		Enabled: false,
		Triggers: []trigger.Config{
			{"platform": "state", "entity_id": "light.kitchen", "to": "on"},
		},
		Actions: []script.ActionConfig{
			{"service": "light.turn_off", "target": []any{"light.kitchen"}},
		},
	}
}

func TestAutomationCRUD(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	var created automation.Automation
	status := f.request(t, http.MethodPost, "/api/v1/automations", tokens.AccessToken,
		testAutomation("Night lights"), &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", status)
	}
	if created.ID == "" {
		t.Fatal("created automation should have an ID")
	}

	var listed []automation.Automation
	f.request(t, http.MethodGet, "/api/v1/automations", tokens.AccessToken, nil, &listed)
	if len(listed) != 1 {
		t.Fatalf("listed %d automations, want 1", len(listed))
	}

	// Enable, then disable
	status = f.request(t, http.MethodPost, "/api/v1/automations/"+created.ID+"/enable", tokens.AccessToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("enable status = %d, want 200", status)
	}
	var fetched automation.Automation
	f.request(t, http.MethodGet, "/api/v1/automations/"+created.ID, tokens.AccessToken, nil, &fetched)
	if !fetched.Enabled {
		t.Error("automation should be enabled")
	}

	status = f.request(t, http.MethodPost, "/api/v1/automations/"+created.ID+"/disable", tokens.AccessToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("disable status = %d, want 200", status)
	}

	status = f.request(t, http.MethodDelete, "/api/v1/automations/"+created.ID, tokens.AccessToken, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", status)
	}
	status = f.request(t, http.MethodGet, "/api/v1/automations/"+created.ID, tokens.AccessToken, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", status)
	}
}

func TestAutomationValidation(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	// Missing triggers
	a := testAutomation("No triggers")
	a.Triggers = nil
	status := f.request(t, http.MethodPost, "/api/v1/automations", tokens.AccessToken, a, nil)
	if status != http.StatusBadRequest {
		t.Errorf("no triggers status = %d, want 400", status)
	}

	// Missing actions
	a = testAutomation("No actions")
	a.Actions = nil
	status = f.request(t, http.MethodPost, "/api/v1/automations", tokens.AccessToken, a, nil)
	if status != http.StatusBadRequest {
		t.Errorf("no actions status = %d, want 400", status)
	}

	// Unknown run mode
	a = testAutomation("Bad mode")
	a.Mode = "sometimes"
	status = f.request(t, http.MethodPost, "/api/v1/automations", tokens.AccessToken, a, nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", status)
	}
}

func TestTriggerWithoutEngine(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	var created automation.Automation
	f.request(t, http.MethodPost, "/api/v1/automations", tokens.AccessToken,
		testAutomation("Manual"), &created)

	// The harness runs without an engine; manual triggering reports that
	status := f.request(t, http.MethodPost, "/api/v1/automations/"+created.ID+"/trigger", tokens.AccessToken, nil, nil)
	if status != http.StatusInternalServerError {
		t.Errorf("trigger status = %d, want 500", status)
	}
}

// ─── Services ────────────────────────────────────────────────────────

func TestServiceEndpoints(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	var calls []service.Call
	f.services.Register("light", "turn_on", func(_ context.Context, call service.Call) error {
		calls = append(calls, call)
		return nil
	})

	var names []string
	status := f.request(t, http.MethodGet, "/api/v1/services", tokens.AccessToken, nil, &names)
	if status != http.StatusOK {
		t.Fatalf("list status = %d, want 200", status)
	}
	if len(names) != 1 || names[0] != "light.turn_on" {
		t.Errorf("services = %v, want [light.turn_on]", names)
	}

	status = f.request(t, http.MethodPost, "/api/v1/services/light/turn_on", tokens.AccessToken,
		map[string]any{"data": map[string]any{"brightness": 128}, "target": []string{"light.kitchen"}}, nil)
	if status != http.StatusOK {
		t.Fatalf("call status = %d, want 200", status)
	}
	if len(calls) != 1 {
		t.Fatalf("handler invoked %d times, want 1", len(calls))
	}
	if calls[0].Data["brightness"] != float64(128) {
		t.Errorf("brightness = %v, want 128", calls[0].Data["brightness"])
	}
	if len(calls[0].Target) != 1 || calls[0].Target[0] != "light.kitchen" {
		t.Errorf("target = %v, want [light.kitchen]", calls[0].Target)
	}

	status = f.request(t, http.MethodPost, "/api/v1/services/light/turn_sideways", tokens.AccessToken, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown service status = %d, want 404", status)
	}
}

// ─── Users ───────────────────────────────────────────────────────────

func TestUserManagement(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	var created auth.User
	status := f.request(t, http.MethodPost, "/api/v1/users", tokens.AccessToken,
		map[string]any{"username": "jess", "display_name": "Jess", "password": "long-enough-pw", "role": "user"}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", status)
	}
	if created.Role != auth.RoleUser {
		t.Errorf("role = %q, want user", created.Role)
	}

	// Duplicate username
	status = f.request(t, http.MethodPost, "/api/v1/users", tokens.AccessToken,
		map[string]any{"username": "jess", "password": "long-enough-pw", "role": "user"}, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", status)
	}

	// Weak password and bad role rejected
	status = f.request(t, http.MethodPost, "/api/v1/users", tokens.AccessToken,
		map[string]any{"username": "weak", "password": "short", "role": "user"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("weak password status = %d, want 400", status)
	}
	status = f.request(t, http.MethodPost, "/api/v1/users", tokens.AccessToken,
		map[string]any{"username": "odd", "password": "long-enough-pw", "role": "emperor"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", status)
	}

	// Role change
	var updated auth.User
	status = f.request(t, http.MethodPatch, "/api/v1/users/"+created.ID, tokens.AccessToken,
		map[string]any{"role": "viewer"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", status)
	}
	if updated.Role != auth.RoleViewer {
		t.Errorf("role = %q, want viewer", updated.Role)
	}

	// New password works for login
	status = f.request(t, http.MethodPut, "/api/v1/users/"+created.ID+"/password", tokens.AccessToken,
		map[string]string{"password": "brand-new-password"}, nil)
	if status != http.StatusOK {
		t.Fatalf("set password status = %d, want 200", status)
	}
	f.login(t, "jess", "brand-new-password")

	// Admins cannot delete themselves
	var me struct {
		User auth.User `json:"user"`
	}
	f.request(t, http.MethodGet, "/api/v1/auth/me", tokens.AccessToken, nil, &me)
	status = f.request(t, http.MethodDelete, "/api/v1/users/"+me.User.ID, tokens.AccessToken, nil, nil)
	if status != http.StatusBadRequest {
		t.Errorf("self-delete status = %d, want 400", status)
	}

	status = f.request(t, http.MethodDelete, "/api/v1/users/"+created.ID, tokens.AccessToken, nil, nil)
	if status != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", status)
	}
}

// ─── System ──────────────────────────────────────────────────────────

func TestSystemInfo(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	if err := f.states.Set(context.Background(), "light.kitchen", state.StateOn, nil); err != nil {
		t.Fatalf("seeding state: %v", err)
	}

	var info map[string]any
	status := f.request(t, http.MethodGet, "/api/v1/system", tokens.AccessToken, nil, &info)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if info["entities"] != float64(1) {
		t.Errorf("entities = %v, want 1", info["entities"])
	}
	if info["version"] != "test" {
		t.Errorf("version = %v, want test", info["version"])
	}
}

// ─── WebSocket ───────────────────────────────────────────────────────

func TestWebSocketEventStream(t *testing.T) {
	f := setupServer(t)
	tokens := f.login(t, "admin", "admin-password")

	// Tickets require auth; the socket requires a ticket
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	status := f.request(t, http.MethodPost, "/api/v1/auth/ws-ticket", tokens.AccessToken, nil, &ticketResp)
	if status != http.StatusOK {
		t.Fatalf("ticket status = %d, want 200", status)
	}
	if ticketResp.Ticket == "" {
		t.Fatal("ticket should not be empty")
	}

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/v1/ws?ticket=" + ticketResp.Ticket
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialling websocket: %v", err)
	}
	defer conn.Close()

	// Subscribe to state changes
	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{"state_changed"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("writing subscribe: %v", err)
	}

	var ack WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %q, want response", ack.Type)
	}

	// A state change must arrive as an event
	if err := f.states.Set(context.Background(), "light.kitchen", state.StateOn, nil); err != nil {
		t.Fatalf("setting state: %v", err)
	}

	var event WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != "state_changed" {
		t.Fatalf("event = %+v, want state_changed event", event)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		t.Fatalf("re-marshalling payload: %v", err)
	}
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if data["entity_id"] != "light.kitchen" {
		t.Errorf("entity_id = %v, want light.kitchen", data["entity_id"])
	}
}

func TestWebSocketRequiresTicket(t *testing.T) {
	f := setupServer(t)
	f.login(t, "admin", "admin-password")

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial without ticket should fail")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?ticket=bogus", nil)
	if err == nil {
		t.Fatal("dial with bogus ticket should fail")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
