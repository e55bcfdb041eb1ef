package v1

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/paperkit/ocr-conductor/pkg/metrics"
)

type startBatchRequest struct {
	Selector     controller.Selector `json:"selector"`
	SetFinishTag *bool               `json:"set_finish_tag,omitempty"`
}

func (h *Handler) startBatch(w http.ResponseWriter, r *http.Request) {
	// an empty body means the unattended default: everything unfinished
	req := startBatchRequest{Selector: controller.Selector{Kind: controller.SelectAllUntagged}}
	if r.Body != nil && r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorReply{Error: "invalid request body"})
			return
		}
	}
	setFinishTag := true
	if req.SetFinishTag != nil {
		setFinishTag = *req.SetFinishTag
	}

	runID, err := h.ctrl.Start(r.Context(), req.Selector, setFinishTag, metrics.TriggerManual)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "started", "run_id": runID.String()})
}

func (h *Handler) pauseBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Pause(); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "pausing"})
}

func (h *Handler) resumeBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Resume(); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "resumed"})
}

func (h *Handler) stopBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Stop(); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "stopping"})
}

func (h *Handler) batchStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.ctrl.Status())
}
