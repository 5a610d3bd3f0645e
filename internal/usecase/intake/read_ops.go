package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/domain/document"
	"docproc/internal/errs"
	"docproc/internal/ports"
)

// GetDocument returns the full read model for one document.
func (s *Service) GetDocument(ctx context.Context, documentID uint64) (DocumentDetail, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return DocumentDetail{}, err
	}
	return s.toDetail(ctx, doc), nil
}

// ProcessingStatus is GetDocument under another name; handlers expose both
// the status poll and the document read through it.
func (s *Service) ProcessingStatus(ctx context.Context, documentID uint64) (DocumentDetail, error) {
	return s.GetDocument(ctx, documentID)
}

func (s *Service) ListDocuments(ctx context.Context, input ListInput) (DocumentList, error) {
	if input.Status != "" && !document.Status(input.Status).Valid() {
		return DocumentList{}, fmt.Errorf("%w: %q", ErrInvalidStatusFilter, input.Status)
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	docs, total, err := s.repo.ListDocuments(ctx, ports.DocumentFilter{
		Status:       input.Status,
		DocumentType: input.DocumentType,
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		return DocumentList{}, err
	}

	items := make([]DocumentDetail, 0, len(docs))
	for _, doc := range docs {
		items = append(items, s.toDetail(ctx, doc))
	}
	return DocumentList{
		Documents: items,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

func (s *Service) ListLogs(ctx context.Context, documentID uint64) ([]ports.LogEntry, error) {
	if _, err := s.repo.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.repo.ListLogs(ctx, documentID)
}

// DeleteDocument removes the row and then cleans up the stored files and the
// render cache entry. File removal is best effort; the row is already gone.
func (s *Service) DeleteDocument(ctx context.Context, documentID uint64) error {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		logging.Warn(ctx, "remove stored file failed",
			slog.String("path", doc.FilePath), slog.Any("error", errs.Loggable(err)))
	}
	cacheKey := renderCacheKey(documentID)
	if rendered, found, cacheErr := s.cache.Get(ctx, cacheKey); cacheErr == nil && found {
		if err := os.Remove(rendered); err != nil && !os.IsNotExist(err) {
			logging.Warn(ctx, "remove rendered page failed",
				slog.String("path", rendered), slog.Any("error", errs.Loggable(err)))
		}
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		logging.Warn(ctx, "drop render cache entry failed", slog.Any("error", errs.Loggable(err)))
	}

	logging.Info(ctx, "document deleted", slog.Uint64("document_id", documentID))
	return nil
}

// Statistics aggregates counts, averages and the derived time-saved figure.
// Each completed document is counted as five minutes of manual entry avoided.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	stats, err := s.repo.Aggregate(ctx)
	if err != nil {
		return Statistics{}, err
	}

	completed := stats.CountsByStatus[string(document.StatusCompleted)]
	byType := stats.CountsByType
	if byType == nil {
		byType = map[string]int64{}
	}
	return Statistics{
		TotalDocuments:         stats.TotalDocuments,
		Pending:                stats.CountsByStatus[string(document.StatusPending)],
		Processing:             stats.CountsByStatus[string(document.StatusProcessing)],
		Completed:              completed,
		Failed:                 stats.CountsByStatus[string(document.StatusFailed)],
		AverageProcessingTime:  roundTo(stats.AvgProcessingTime, 2),
		AverageConfidenceScore: roundTo(stats.AvgConfidence, 3),
		DocumentsByType:        byType,
		TimeSavedHours:         roundTo(float64(completed)*5.0/60.0, 2),
	}, nil
}

// toDetail maps the persisted snapshot into the read model. Extraction output
// is surfaced only once the document reached completed; a reader polling a
// document mid-flight never sees partial data.
func (s *Service) toDetail(ctx context.Context, doc ports.Document) DocumentDetail {
	detail := DocumentDetail{
		DocumentID:       doc.DocumentID,
		Filename:         doc.Filename,
		OriginalFilename: doc.OriginalFilename,
		FileType:         doc.FileType,
		FileSize:         doc.FileSize,
		Status:           doc.Status,
		DocumentType:     doc.DocumentType,
		ConfidenceScore:  doc.ConfidenceScore,
		ProcessingTime:   doc.ProcessingTime,
		ErrorMessage:     doc.ErrorMessage,
		RetryCount:       doc.RetryCount,
		Exported:         doc.Exported,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		ProcessedAt:      derefString(doc.ProcessedAt),
	}
	if doc.Status != string(document.StatusCompleted) {
		return detail
	}

	if doc.ExtractedJSON != "" {
		var res document.ExtractionResult
		if err := json.Unmarshal([]byte(doc.ExtractedJSON), &res); err != nil {
			logging.Warn(ctx, "decode stored extraction failed",
				slog.Uint64("document_id", doc.DocumentID), slog.Any("error", errs.Loggable(err)))
		} else {
			detail.ExtractedData = &res
		}
	}
	if doc.FindingsJSON != "" {
		var findings []document.Finding
		if err := json.Unmarshal([]byte(doc.FindingsJSON), &findings); err != nil {
			logging.Warn(ctx, "decode stored findings failed",
				slog.Uint64("document_id", doc.DocumentID), slog.Any("error", errs.Loggable(err)))
		} else {
			detail.Findings = findings
		}
	}
	return detail
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
