package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hue/internal/bridges/hue"
	"github.com/nerrad567/gray-logic-hue/internal/device"
)

// setStateRequest is the body of PUT /api/devices/{deviceID}/state.
type setStateRequest struct {
	State string `json:"state"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.GetDevicesByPluginID(r.Context(), s.pluginID)
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	if hue.Classify(deviceID).Kind == hue.KindUnknown {
		writeNotFound(w, "device id must start with L or G")
		return
	}

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	desired, ok := hue.ParseDesiredState(req.State)
	if !ok {
		writeBadRequest(w, `state must be "on" or "off"`)
		return
	}

	if err := s.adapter.ApplyState(r.Context(), deviceID, desired); err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeHardware, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"state":     desired,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.adapter.RefreshAll(r.Context()); err != nil {
		s.logger.Error("manual refresh failed", "error", err)
		writeInternalError(w, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed"})
}
