package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/paperkit/ocr-conductor/internal/ocr"
	"github.com/paperkit/ocr-conductor/internal/pool"
	"github.com/paperkit/ocr-conductor/internal/service"
	"github.com/paperkit/ocr-conductor/internal/watchdog"
)

// Handler exposes the conductor's control API under /api/v1/ocr. The payloads
// are what the control panel polls; the status route must stay cheap enough
// for sub-second polling.
type Handler struct {
	ocrSvc      *service.OCRService
	settingsSvc *service.SettingsService
	ctrl        *controller.Controller
	watchdog    *watchdog.Scheduler
}

func NewHandler(ocrSvc *service.OCRService, settingsSvc *service.SettingsService, ctrl *controller.Controller, wd *watchdog.Scheduler) *Handler {
	return &Handler{
		ocrSvc:      ocrSvc,
		settingsSvc: settingsSvc,
		ctrl:        ctrl,
		watchdog:    wd,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1/ocr", func(r chi.Router) {
		r.Post("/single/{id}", h.runSingle)
		r.Post("/apply/{id}", h.applyResult)

		r.Post("/batch/start", h.startBatch)
		r.Post("/batch/pause", h.pauseBatch)
		r.Post("/batch/resume", h.resumeBatch)
		r.Post("/batch/stop", h.stopBatch)
		r.Get("/batch/status", h.batchStatus)

		r.Get("/watchdog/status", h.watchdogStatus)
		r.Put("/watchdog/config", h.saveWatchdogConfig)

		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.saveSettings)

		r.Get("/models", h.listModels)
		r.Get("/overview", h.overview)
		r.Get("/stats", h.listStats)
		r.Get("/review", h.listReview)
		r.Delete("/review/{id}", h.dismissReview)
	})
}

type errorReply struct {
	Error string `json:"error"`
}

// writeError maps the service and controller error taxonomy onto HTTP status
// codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var (
		docNotFound     *service.ErrDocumentNotFound
		reviewNotFound  *service.ErrReviewItemNotFound
		invalidSettings *service.ErrInvalidSettings
	)
	switch {
	case errors.Is(err, controller.ErrAlreadyRunning),
		errors.Is(err, controller.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, controller.ErrEmptySelection):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ocr.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, ocr.ErrUnreachable),
		errors.Is(err, ocr.ErrModelUnavailable),
		errors.Is(err, pool.ErrNoEndpoints):
		status = http.StatusBadGateway
	case errors.As(err, &docNotFound), errors.As(err, &reviewNotFound):
		status = http.StatusNotFound
	case errors.As(err, &invalidSettings):
		status = http.StatusBadRequest
	}

	render.Status(r, status)
	render.JSON(w, r, errorReply{Error: err.Error()})
}

func documentID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorReply{Error: "document id must be a positive integer"})
		return 0, false
	}
	return id, true
}
