package api

import (
	"net/http"
	"runtime"
	"time"
)

// startTime records process start for uptime reporting.
var startTime = time.Now()

// handleSystemInfo returns hub runtime information.
func (s *Server) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	info := map[string]any{
		"version":        s.version,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"entities":       s.states.Count(),
		"devices":        s.devices.Count(),
	}

	if s.automations != nil {
		info["automations"] = s.automations.Count()
	}
	if s.services != nil {
		info["services"] = len(s.services.List())
	}
	if s.hub != nil {
		info["websocket_clients"] = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, info)
}
