package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/paperkit/ocr-conductor/internal/ocr"
	"github.com/paperkit/ocr-conductor/internal/pool"
	"github.com/paperkit/ocr-conductor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "already running", err: controller.ErrAlreadyRunning, want: http.StatusConflict},
		{name: "invalid state", err: controller.ErrInvalidState, want: http.StatusConflict},
		{name: "empty selection", err: controller.ErrEmptySelection, want: http.StatusUnprocessableEntity},
		{name: "timeout", err: ocr.ErrTimeout, want: http.StatusGatewayTimeout},
		{name: "unreachable", err: ocr.ErrUnreachable, want: http.StatusBadGateway},
		{name: "model unavailable", err: ocr.ErrModelUnavailable, want: http.StatusBadGateway},
		{name: "no endpoints", err: pool.ErrNoEndpoints, want: http.StatusBadGateway},
		{name: "document not found", err: service.NewErrDocumentNotFound(7), want: http.StatusNotFound},
		{name: "review not found", err: service.NewErrReviewItemNotFound(7), want: http.StatusNotFound},
		{name: "invalid settings", err: service.NewErrInvalidSettings("bad url"), want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(rec, req, tt.err)

			assert.Equal(t, tt.want, rec.Code)
			var reply errorReply
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
			assert.NotEmpty(t, reply.Error)
		})
	}
}

// instantProcessor completes documents immediately.
type instantProcessor struct{}

func (instantProcessor) Process(ctx context.Context, documentID int, setFinishTag bool) (controller.Outcome, error) {
	return controller.Outcome{Title: "doc", Status: controller.OutcomeApplied}, nil
}

func newBatchRouter() *chi.Mux {
	ctrl := controller.New(nil, instantProcessor{}, "runocr")
	h := NewHandler(nil, nil, ctrl, nil)
	router := chi.NewRouter()
	h.Routes(router)
	return router
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStartBatchEndpoint(t *testing.T) {
	router := newBatchRouter()

	rec := postJSON(t, router, "/api/v1/ocr/batch/start", startBatchRequest{
		Selector: controller.Selector{Kind: controller.SelectExplicit, IDs: []int{1, 2}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	assert.Equal(t, "started", reply["status"])
	assert.NotEmpty(t, reply["run_id"])
}

func TestStartBatchEmptySelection(t *testing.T) {
	router := newBatchRouter()

	rec := postJSON(t, router, "/api/v1/ocr/batch/start", startBatchRequest{
		Selector: controller.Selector{Kind: controller.SelectExplicit},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBatchControlsWithoutRun(t *testing.T) {
	router := newBatchRouter()

	for _, path := range []string{"/api/v1/ocr/batch/pause", "/api/v1/ocr/batch/resume", "/api/v1/ocr/batch/stop"} {
		rec := postJSON(t, router, path, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}
}

func TestBatchStatusEndpoint(t *testing.T) {
	router := newBatchRouter()

	rec := postJSON(t, router, "/api/v1/ocr/batch/start", startBatchRequest{
		Selector: controller.Selector{Kind: controller.SelectExplicit, IDs: []int{1, 2, 3}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ocr/batch/status", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var snapshot controller.Snapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
		return snapshot.State == controller.StateCompleted && snapshot.Processed == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSecondStartConflicts(t *testing.T) {
	proc := blockingProcessor{release: make(chan struct{})}
	defer close(proc.release)
	ctrl := controller.New(nil, proc, "runocr")
	h := NewHandler(nil, nil, ctrl, nil)
	router := chi.NewRouter()
	h.Routes(router)

	rec := postJSON(t, router, "/api/v1/ocr/batch/start", startBatchRequest{
		Selector: controller.Selector{Kind: controller.SelectExplicit, IDs: []int{1}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/api/v1/ocr/batch/start", startBatchRequest{
		Selector: controller.Selector{Kind: controller.SelectExplicit, IDs: []int{2}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type blockingProcessor struct {
	release chan struct{}
}

func (b blockingProcessor) Process(ctx context.Context, documentID int, setFinishTag bool) (controller.Outcome, error) {
	<-b.release
	return controller.Outcome{}, nil
}

func TestDocumentIDValidation(t *testing.T) {
	router := newBatchRouter()

	rec := postJSON(t, router, "/api/v1/ocr/single/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/v1/ocr/single/-4", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
