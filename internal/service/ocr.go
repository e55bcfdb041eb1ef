package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/paperkit/ocr-conductor/internal/controller"
	"github.com/paperkit/ocr-conductor/internal/docstore"
	"github.com/paperkit/ocr-conductor/internal/ocr"
	"github.com/paperkit/ocr-conductor/internal/pool"
	"github.com/paperkit/ocr-conductor/internal/store"
	"github.com/paperkit/ocr-conductor/internal/store/model"
	"go.uber.org/zap"
)

// reviewMinOldLength is the smallest existing content worth guarding. Shorter
// documents are applied unconditionally; halving 40 chars of text is noise,
// halving a full page is suspicious.
const reviewMinOldLength = 100

// OCRService runs text recognition for single documents and, as the batch
// run's document processor, for batch runs. Settings are re-read from the
// store on every document so edits in the control panel take effect mid-run.
type OCRService struct {
	store  store.Store
	docs   docstore.Store
	engine ocr.Engine
	pool   *pool.ServerPool

	runTag    string
	finishTag string
}

var _ controller.DocumentProcessor = (*OCRService)(nil)

func NewOCRService(st store.Store, docs docstore.Store, engine ocr.Engine, p *pool.ServerPool, runTag, finishTag string) *OCRService {
	return &OCRService{
		store:     st,
		docs:      docs,
		engine:    engine,
		pool:      p,
		runTag:    runTag,
		finishTag: finishTag,
	}
}

// inference is one completed recognition call.
type inference struct {
	Text     string
	Model    string
	Endpoint model.Endpoint
	Elapsed  time.Duration
}

// recognize picks an endpoint from the pool and runs the model, failing over
// once to the next-ranked endpoint. The failed endpoint goes into cooldown
// either way.
func (s *OCRService) recognize(ctx context.Context, image []byte) (*inference, error) {
	settings, err := s.store.Settings().OCR(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading OCR settings: %w", err)
	}
	s.pool.SetEndpoints(settings.EndpointList())

	endpoint, err := s.pool.Acquire()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := s.engine.Recognize(ctx, endpoint, settings.Model, image)
	if err != nil {
		s.pool.ReportFailure(endpoint)
		next, ok := s.pool.Next(endpoint)
		if !ok {
			return nil, err
		}
		zap.S().Named("service").Warnf("endpoint %s failed (%v), retrying on %s", endpoint.URL, err, next.URL)

		start = time.Now()
		text, err = s.engine.Recognize(ctx, next, settings.Model, image)
		if err != nil {
			s.pool.ReportFailure(next)
			return nil, err
		}
		endpoint = next
	}
	s.pool.ReportSuccess(endpoint)

	return &inference{
		Text:     strings.TrimSpace(text),
		Model:    settings.Model,
		Endpoint: endpoint,
		Elapsed:  time.Since(start),
	}, nil
}

// Process handles one batch document: recognize, apply the result unless the
// quality guard holds it back, then settle the tags. Satisfies the batch
// run's DocumentProcessor contract.
func (s *OCRService) Process(ctx context.Context, documentID int, setFinishTag bool) (controller.Outcome, error) {
	doc, image, err := s.fetch(ctx, documentID)
	if err != nil {
		return controller.Outcome{}, err
	}

	result, err := s.recognize(ctx, image)
	if err != nil {
		return controller.Outcome{}, err
	}

	outcome := controller.Outcome{
		Title:    doc.Title,
		Chars:    len(result.Text),
		Endpoint: result.Endpoint.URL,
	}

	oldLen := len(doc.Content)
	newLen := len(result.Text)
	switch {
	case oldLen > reviewMinOldLength && newLen < oldLen/2:
		// suspiciously short result, hold for manual review
		outcome.Status = controller.OutcomeReview
		outcome.RatioPercent = newLen * 100 / oldLen
		if err := s.store.Review().Add(ctx, model.ReviewItem{
			DocumentID: doc.ID,
			Title:      doc.Title,
			OldContent: doc.Content,
			NewContent: result.Text,
			OldLength:  oldLen,
			NewLength:  newLen,
		}); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("review entry not saved: %v", err))
		}
	case result.Text != doc.Content:
		if err := s.docs.UpdateContent(ctx, doc.ID, result.Text); err != nil {
			return controller.Outcome{}, fmt.Errorf("applying content: %w", err)
		}
		outcome.Status = controller.OutcomeApplied
	default:
		outcome.Status = controller.OutcomeUnchanged
	}

	s.settleTags(ctx, doc.ID, setFinishTag, &outcome)
	s.recordStat(ctx, doc.ID, result)
	return outcome, nil
}

// RunSingle recognizes one document without applying anything: the caller
// sees old and new content side by side and applies explicitly.
func (s *OCRService) RunSingle(ctx context.Context, documentID int) (*SingleResult, error) {
	doc, image, err := s.fetch(ctx, documentID)
	if err != nil {
		return nil, err
	}

	result, err := s.recognize(ctx, image)
	if err != nil {
		return nil, err
	}
	s.recordStat(ctx, doc.ID, result)

	return &SingleResult{
		DocumentID: doc.ID,
		Title:      doc.Title,
		OldContent: doc.Content,
		NewContent: result.Text,
		OldLength:  len(doc.Content),
		NewLength:  len(result.Text),
		Model:      result.Model,
		Endpoint:   result.Endpoint.URL,
		DurationMS: result.Elapsed.Milliseconds(),
	}, nil
}

// SingleResult is the outcome of a preview recognition.
type SingleResult struct {
	DocumentID int    `json:"document_id"`
	Title      string `json:"title"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
	OldLength  int    `json:"old_length"`
	NewLength  int    `json:"new_length"`
	Model      string `json:"model"`
	Endpoint   string `json:"endpoint"`
	DurationMS int64  `json:"duration_ms"`
}

// ApplyResult writes the given content to the document and settles its tags.
// Any pending review entry for the document is cleared: applying is the
// review decision.
func (s *OCRService) ApplyResult(ctx context.Context, documentID int, content string, setFinishTag bool) error {
	if err := s.docs.UpdateContent(ctx, documentID, content); err != nil {
		if errors.Is(err, docstore.ErrDocumentNotFound) {
			return NewErrDocumentNotFound(documentID)
		}
		return fmt.Errorf("applying content: %w", err)
	}

	var warnings controller.Outcome
	s.settleTags(ctx, documentID, setFinishTag, &warnings)
	for _, w := range warnings.Warnings {
		zap.S().Named("service").Warnf("document %d: %s", documentID, w)
	}

	if err := s.store.Review().Remove(ctx, documentID); err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		zap.S().Named("service").Warnf("document %d: review entry not cleared: %v", documentID, err)
	}
	return nil
}

// DismissReview drops a pending review entry without touching the document.
func (s *OCRService) DismissReview(ctx context.Context, documentID int) error {
	if err := s.store.Review().Remove(ctx, documentID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrReviewItemNotFound(documentID)
		}
		return err
	}
	return nil
}

func (s *OCRService) ReviewItems(ctx context.Context) ([]model.ReviewItem, error) {
	return s.store.Review().List(ctx)
}

func (s *OCRService) Stats(ctx context.Context) ([]model.RunStat, error) {
	return s.store.Stats().List(ctx)
}

// Models returns the union of model names served by the configured endpoints,
// sorted. Endpoints that do not answer are skipped; an error is returned only
// when none of them did.
func (s *OCRService) Models(ctx context.Context) ([]string, error) {
	settings, err := s.store.Settings().OCR(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading OCR settings: %w", err)
	}

	seen := make(map[string]struct{})
	var lastErr error
	reachable := 0
	for _, endpoint := range settings.EndpointList() {
		names, err := s.engine.ListModels(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		reachable++
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}
	if reachable == 0 && lastErr != nil {
		return nil, lastErr
	}

	models := make([]string, 0, len(seen))
	for name := range seen {
		models = append(models, name)
	}
	sort.Strings(models)
	return models, nil
}

// Overview reports document counts for the control panel header.
type Overview struct {
	TotalDocuments int `json:"total_documents"`
	TaggedForOCR   int `json:"tagged_for_ocr"`
	Finished       int `json:"finished"`
}

func (s *OCRService) Overview(ctx context.Context) (*Overview, error) {
	total, err := s.docs.CountDocuments(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	tagged, err := s.docs.CountDocuments(ctx, s.runTag)
	if err != nil {
		return nil, fmt.Errorf("counting tagged documents: %w", err)
	}
	finished, err := s.docs.CountDocuments(ctx, s.finishTag)
	if err != nil {
		return nil, fmt.Errorf("counting finished documents: %w", err)
	}
	return &Overview{TotalDocuments: total, TaggedForOCR: tagged, Finished: finished}, nil
}

// fetch loads the document metadata and its file bytes.
func (s *OCRService) fetch(ctx context.Context, documentID int) (*docstore.Document, []byte, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, docstore.ErrDocumentNotFound) {
			return nil, nil, NewErrDocumentNotFound(documentID)
		}
		return nil, nil, fmt.Errorf("loading document %d: %w", documentID, err)
	}

	image, err := s.docs.Download(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("downloading document %d: %w", documentID, err)
	}
	return doc, image, nil
}

// settleTags applies the finish tag and removes the run tag. Recognition
// already succeeded at this point, so tag failures are warnings, not errors.
func (s *OCRService) settleTags(ctx context.Context, documentID int, setFinishTag bool, outcome *controller.Outcome) {
	if setFinishTag {
		if err := s.docs.AddTag(ctx, documentID, s.finishTag); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("finish tag not applied: %v", err))
		}
	}
	if err := s.docs.RemoveTag(ctx, documentID, s.runTag); err != nil {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("run tag not removed: %v", err))
	}
}

func (s *OCRService) recordStat(ctx context.Context, documentID int, result *inference) {
	err := s.store.Stats().Record(ctx, model.RunStat{
		DocumentID: documentID,
		DurationMS: result.Elapsed.Milliseconds(),
		Chars:      len(result.Text),
		Model:      result.Model,
		Endpoint:   result.Endpoint.URL,
	})
	if err != nil {
		zap.S().Named("service").Warnf("run stat for document %d not recorded: %v", documentID, err)
	}
}
