package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paperkit/ocr-conductor/internal/store/model"
	"github.com/paperkit/ocr-conductor/pkg/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	generatePath = "/api/generate"
	tagsPath     = "/api/tags"

	// The prompt matters for output shape, not for the controller; kept
	// fixed so results are comparable across runs.
	extractionPrompt = "Extract ALL text from this document image. " +
		"Return ONLY the extracted text, preserving the original layout and structure. " +
		"Include all headers, body text, dates, numbers, stamps, signatures. " +
		"Do not add commentary. Just raw text."

	probeTimeout = 10 * time.Second
)

var _ Engine = (*OllamaEngine)(nil)

// OllamaEngine talks to Ollama-compatible inference servers.
type OllamaEngine struct {
	client  *http.Client
	timeout time.Duration
}

// NewOllamaEngine returns an engine whose Recognize calls are bounded by the
// given timeout.
func NewOllamaEngine(timeout time.Duration) *OllamaEngine {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OllamaEngine{
		client:  &http.Client{},
		timeout: timeout,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (e *OllamaEngine) Recognize(ctx context.Context, endpoint model.Endpoint, modelName string, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload := generateRequest{
		Model:   modelName,
		Prompt:  extractionPrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
		Stream:  false,
		Options: generateOptions{Temperature: 0.1, NumPredict: 4096},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(endpoint, generatePath), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.Wrapf(ErrTimeout, "endpoint %s", endpoint.URL)
		}
		return "", errors.Wrapf(ErrUnreachable, "endpoint %s: %v", endpoint.URL, err)
	}
	defer resp.Body.Close()

	metrics.ObserveOcrDuration(endpoint.URL, time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusNotFound || strings.Contains(string(errBody), "not found") {
			return "", errors.Wrapf(ErrModelUnavailable, "model %q on %s", modelName, endpoint.URL)
		}
		return "", errors.Wrapf(ErrUnreachable, "endpoint %s returned %d: %s", endpoint.URL, resp.StatusCode, errBody)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrapf(ErrUnreachable, "endpoint %s: malformed response: %v", endpoint.URL, err)
	}

	return strings.TrimSpace(result.Response), nil
}

func (e *OllamaEngine) Healthy(ctx context.Context, endpoint model.Endpoint) bool {
	_, err := e.fetchTags(ctx, endpoint)
	return err == nil
}

func (e *OllamaEngine) ListModels(ctx context.Context, endpoint model.Endpoint) ([]string, error) {
	tags, err := e.fetchTags(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (e *OllamaEngine) fetchTags(ctx context.Context, endpoint model.Endpoint) (*tagsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL(endpoint, tagsPath), nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		zap.S().Named("ocr").Debugf("tags probe failed for %s: %v", endpoint.URL, err)
		return nil, errors.Wrapf(ErrUnreachable, "endpoint %s: %v", endpoint.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint %s: tags probe returned %d", endpoint.URL, resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}
	return &tags, nil
}

func endpointURL(endpoint model.Endpoint, path string) string {
	return strings.TrimRight(endpoint.URL, "/") + path
}
