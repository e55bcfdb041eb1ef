package v1

import (
	"net/http"

	"github.com/go-chi/render"
)

func (h *Handler) runSingle(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	result, err := h.ocrSvc.RunSingle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

type applyRequest struct {
	Content      string `json:"content"`
	SetFinishTag bool   `json:"set_finish_tag"`
}

func (h *Handler) applyResult(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	var req applyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "invalid request body"})
		return
	}

	if err := h.ocrSvc.ApplyResult(r.Context(), id, req.Content, req.SetFinishTag); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "applied"})
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.ocrSvc.Models(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string][]string{"models": models})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.ocrSvc.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, overview)
}

func (h *Handler) listStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ocrSvc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"stats": stats})
}

func (h *Handler) listReview(w http.ResponseWriter, r *http.Request) {
	items, err := h.ocrSvc.ReviewItems(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"items": items})
}

func (h *Handler) dismissReview(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	if err := h.ocrSvc.DismissReview(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "dismissed"})
}
