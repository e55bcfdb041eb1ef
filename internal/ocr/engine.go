package ocr

import (
	"context"
	"errors"

	"github.com/paperkit/ocr-conductor/internal/store/model"
)

// Error taxonomy for inference calls. The run loop treats all three as a
// failure of the endpoint (for failover) and of the document (for logging).
var (
	ErrUnreachable      = errors.New("inference endpoint unreachable")
	ErrTimeout          = errors.New("inference request timed out")
	ErrModelUnavailable = errors.New("model not available on endpoint")
)

// Engine runs text recognition against one inference endpoint.
type Engine interface {
	// Recognize extracts text from a document image. The image bytes are
	// opaque to the controller; preprocessing is out of scope.
	Recognize(ctx context.Context, endpoint model.Endpoint, modelName string, image []byte) (string, error)
	// Healthy reports whether the endpoint answers its tags probe.
	Healthy(ctx context.Context, endpoint model.Endpoint) bool
	// ListModels returns the model names the endpoint serves.
	ListModels(ctx context.Context, endpoint model.Endpoint) ([]string, error)
}
