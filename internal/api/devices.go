package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/deviceauto"
)

// handleListDevices returns all registered devices. Optional query
// filters: ?integration= and ?area=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var (
		devices []device.Device
		err     error
	)

	switch {
	case r.URL.Query().Get("integration") != "":
		devices, err = s.devices.ListByIntegration(r.Context(), r.URL.Query().Get("integration"))
	case r.URL.Query().Get("area") != "":
		devices, err = s.devices.ListByArea(r.Context(), r.URL.Query().Get("area"))
	default:
		devices, err = s.devices.List(r.Context())
	}
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns one device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to read device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.devices.Create(r.Context(), &dev); err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidDevice):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice applies a partial update to a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to read device")
		return
	}

	// Decode over the existing device so omitted fields keep their values
	updated := existing.DeepCopy()
	if err := json.NewDecoder(r.Body).Decode(updated); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	updated.ID = id // path wins over body

	if err := s.devices.Update(r.Context(), updated); err != nil {
		if errors.Is(err, device.ErrInvalidDevice) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteDevice removes a device from the registry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// capabilityLister matches the deviceauto registry listing methods.
type capabilityLister func(ctx context.Context, deviceID string) ([]deviceauto.Capability, error)

// handleDeviceTriggers lists device trigger capabilities for a device.
func (s *Server) handleDeviceTriggers(w http.ResponseWriter, r *http.Request) {
	s.listCapabilities(w, r, s.deviceAuto.ListDeviceTriggers)
}

// handleDeviceConditions lists device condition capabilities for a device.
func (s *Server) handleDeviceConditions(w http.ResponseWriter, r *http.Request) {
	s.listCapabilities(w, r, s.deviceAuto.ListDeviceConditions)
}

// handleDeviceActions lists device action capabilities for a device.
func (s *Server) handleDeviceActions(w http.ResponseWriter, r *http.Request) {
	s.listCapabilities(w, r, s.deviceAuto.ListDeviceActions)
}

func (s *Server) listCapabilities(w http.ResponseWriter, r *http.Request, list capabilityLister) {
	if s.deviceAuto == nil {
		writeJSON(w, http.StatusOK, []deviceauto.Capability{})
		return
	}

	caps, err := list(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to list device capabilities")
		return
	}
	if caps == nil {
		caps = []deviceauto.Capability{}
	}

	writeJSON(w, http.StatusOK, caps)
}
