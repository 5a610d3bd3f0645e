package intake

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/domain/document"
	"docproc/internal/errs"
	"docproc/internal/ports"
)

// StartProcessing transitions the document to processing and schedules the
// extraction unit in the background. The status transition happens before
// this returns, so a second request for the same document observes
// document.ErrAlreadyProcessing rather than a duplicate unit.
func (s *Service) StartProcessing(ctx context.Context, documentID uint64) error {
	if err := s.repo.MarkProcessing(ctx, documentID, nowUTCString()); err != nil {
		return err
	}

	// The background unit must outlive the request that triggered it.
	bgCtx := logging.WithAttrs(context.WithoutCancel(ctx),
		slog.String("component", "intake.process"),
		slog.Uint64("document_id", documentID),
	)
	s.workers.spawn(func() {
		if err := s.sem.Acquire(bgCtx, 1); err != nil {
			logging.Error(bgCtx, "acquire processing slot failed", slog.Any("error", errs.Loggable(err)))
			s.recordFailure(bgCtx, documentID, "processing slot unavailable: "+err.Error())
			return
		}
		defer s.sem.Release(1)
		s.runProcessing(bgCtx, documentID)
	})
	return nil
}

// runProcessing is the whole extraction unit for one document: prepare the
// page image, call the vision model, classify and validate, persist the
// terminal state. Any error ends in the failed state with retry_count
// incremented; the document row itself always survives.
func (s *Service) runProcessing(ctx context.Context, documentID uint64) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(ctx, "processing panicked", slog.Any("panic", r))
			s.recordFailure(ctx, documentID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	started := time.Now()

	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		logging.Error(ctx, "load document failed", slog.Any("error", errs.Loggable(err)))
		s.recordFailure(ctx, documentID, "document lookup failed: "+err.Error())
		return
	}

	imageData, err := s.preparePageImage(ctx, doc)
	if err != nil {
		logging.Error(ctx, "prepare page image failed", slog.Any("error", errs.Loggable(err)))
		s.recordFailure(ctx, documentID, err.Error())
		return
	}

	res, err := s.extractor.Extract(ctx, base64.StdEncoding.EncodeToString(imageData))
	if err != nil {
		logging.Error(ctx, "extraction failed", slog.Any("error", errs.Loggable(err)))
		s.recordFailure(ctx, documentID, err.Error())
		return
	}

	docType := document.ResolveType(res)
	confidence := document.ResolveConfidence(res)
	findings := document.Validate(res, docType, s.cfg.ConfidenceThreshold)
	elapsed := roundSeconds(time.Since(started))

	extractedJSON, err := json.Marshal(res)
	if err != nil {
		s.recordFailure(ctx, documentID, "encode extraction result: "+err.Error())
		return
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		s.recordFailure(ctx, documentID, "encode validation findings: "+err.Error())
		return
	}

	now := nowUTCString()
	details, _ := json.Marshal(map[string]any{
		"document_type":   string(docType),
		"confidence":      confidence,
		"processing_time": elapsed,
	})
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.MarkCompleted(txCtx, documentID, ports.CompletionUpdate{
			DocumentType:    string(docType),
			ConfidenceScore: confidence,
			ProcessingTime:  elapsed,
			ExtractedJSON:   string(extractedJSON),
			FindingsJSON:    string(findingsJSON),
			ProcessedAt:     now,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}
		return s.repo.AppendLog(txCtx, ports.LogEntryCreate{
			DocumentID:  documentID,
			EventType:   "extraction",
			Message:     fmt.Sprintf("Extraction completed: %s", docType),
			DetailsJSON: string(details),
			CreatedAt:   now,
		})
	})
	if err != nil {
		logging.Error(ctx, "persist completion failed", slog.Any("error", errs.Loggable(err)))
		s.recordFailure(ctx, documentID, "persist extraction result: "+err.Error())
		return
	}

	logging.Info(ctx, "document processed",
		slog.String("document_type", string(docType)),
		slog.Float64("confidence", confidence),
		slog.Float64("processing_time", elapsed),
		slog.Int("findings", len(findings)),
	)
}

// preparePageImage returns the bytes of the still image handed to the vision
// model. PDFs go through the renderer once; the rendered page is stored next
// to the upload and its path cached, so a retry after a transport failure
// skips the render.
func (s *Service) preparePageImage(ctx context.Context, doc ports.Document) ([]byte, error) {
	if doc.FileType != string(document.FileKindPDF) {
		data, err := os.ReadFile(doc.FilePath)
		if err != nil {
			return nil, fmt.Errorf("%w: read image: %s", document.ErrImagePreparation, err)
		}
		return data, nil
	}

	cacheKey := renderCacheKey(doc.DocumentID)
	if cached, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
		if data, err := os.ReadFile(cached); err == nil {
			return data, nil
		}
		// Stale entry; fall through to a fresh render.
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			logging.Warn(ctx, "drop stale render cache entry failed", slog.Any("error", errs.Loggable(err)))
		}
	}

	data, err := s.renderer.RenderFirstPage(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, document.ErrImagePreparation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", document.ErrImagePreparation, err)
	}

	renderedPath := strings.TrimSuffix(doc.FilePath, filepath.Ext(doc.FilePath)) + "_page1.jpg"
	if writeErr := os.WriteFile(renderedPath, data, 0o644); writeErr != nil {
		logging.Warn(ctx, "store rendered page failed", slog.Any("error", errs.Loggable(writeErr)))
	} else if cacheErr := s.cache.Set(ctx, cacheKey, renderedPath, 0); cacheErr != nil {
		logging.Warn(ctx, "cache rendered page path failed", slog.Any("error", errs.Loggable(cacheErr)))
	}
	return data, nil
}

// recordFailure moves the document to failed and appends the error log entry.
// Secondary persistence failures are logged and swallowed; there is nowhere
// further to report them.
func (s *Service) recordFailure(ctx context.Context, documentID uint64, message string) {
	now := nowUTCString()
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.MarkFailed(txCtx, documentID, message, now); err != nil {
			return err
		}
		return s.repo.AppendLog(txCtx, ports.LogEntryCreate{
			DocumentID: documentID,
			EventType:  "error",
			Message:    message,
			CreatedAt:  now,
		})
	})
	if err != nil {
		logging.Error(ctx, "record failure state failed", slog.Any("error", errs.Loggable(err)))
	}
}

func renderCacheKey(documentID uint64) string {
	return fmt.Sprintf("render:%d", documentID)
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
