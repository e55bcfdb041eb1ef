package v1

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/paperkit/ocr-conductor/internal/store/model"
)

type endpointReply struct {
	URL     string `json:"url"`
	Ordinal int    `json:"ordinal"`
}

type settingsReply struct {
	Model     string          `json:"model"`
	Endpoints []endpointReply `json:"endpoints"`
}

func toSettingsReply(settings *model.OCRSettings) settingsReply {
	endpoints := settings.EndpointList()
	reply := settingsReply{Model: settings.Model, Endpoints: make([]endpointReply, 0, len(endpoints))}
	for _, ep := range endpoints {
		reply.Endpoints = append(reply.Endpoints, endpointReply{URL: ep.URL, Ordinal: ep.Ordinal})
	}
	return reply
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsSvc.OCR(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toSettingsReply(settings))
}

type saveSettingsRequest struct {
	Model     string          `json:"model"`
	Endpoints []endpointReply `json:"endpoints"`
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var req saveSettingsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid request body"})
		return
	}

	settings := model.OCRSettings{Model: req.Model}
	endpoints := make([]model.Endpoint, 0, len(req.Endpoints))
	for i, ep := range req.Endpoints {
		endpoints = append(endpoints, model.Endpoint{URL: ep.URL, Ordinal: i})
	}
	settings.SetEndpointList(endpoints)

	saved, err := h.settingsSvc.SaveOCR(r.Context(), settings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toSettingsReply(saved))
}

func (h *Handler) watchdogStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.watchdog.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

type watchdogConfigRequest struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

func (h *Handler) saveWatchdogConfig(w http.ResponseWriter, r *http.Request) {
	var req watchdogConfigRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid request body"})
		return
	}

	saved, err := h.settingsSvc.SaveWatchdog(r.Context(), model.WatchdogConfig{
		Enabled:         req.Enabled,
		IntervalMinutes: req.IntervalMinutes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, watchdogConfigRequest{Enabled: saved.Enabled, IntervalMinutes: saved.IntervalMinutes})
}
