package intake

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/domain/document"
	"docproc/internal/errs"
	"docproc/internal/ports"
)

var exportHeader = []string{
	"Document ID",
	"Original Filename",
	"Document Type",
	"Field Name",
	"Field Value",
	"Confidence Score",
	"Processing Date",
}

// Export writes the extracted fields of completed documents to a CSV file,
// one row per field. With no ids given every completed document is included.
func (s *Service) Export(ctx context.Context, input ExportInput) (ExportResult, error) {
	docs, err := s.repo.ListForExport(ctx, input.DocumentIDs)
	if err != nil {
		return ExportResult{}, err
	}
	if len(docs) == 0 {
		return ExportResult{}, fmt.Errorf("%w for export", ErrNoDocumentsToExport)
	}

	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		return ExportResult{}, errs.Wrap(err, "ensure export directory")
	}

	now := time.Now().UTC()
	filename := "export_" + now.Format("20060102_150405") + ".csv"
	exportPath := filepath.Join(s.cfg.ExportDir, filename)

	file, err := os.Create(exportPath)
	if err != nil {
		return ExportResult{}, errs.Wrap(err, "create export file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(exportHeader); err != nil {
		return ExportResult{}, errs.Wrap(err, "write export header")
	}
	for _, doc := range docs {
		if err := writeDocumentRows(writer, doc); err != nil {
			return ExportResult{}, errs.Wrapf(err, "write rows for document %d", doc.DocumentID)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return ExportResult{}, errs.Wrap(err, "flush export file")
	}

	nowStr := nowUTCString()
	details, _ := json.Marshal(map[string]any{"export_path": exportPath, "format": "csv"})
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, doc := range docs {
			if err := s.repo.MarkExported(txCtx, doc.DocumentID, exportPath, nowStr); err != nil {
				return err
			}
			if err := s.repo.AppendLog(txCtx, ports.LogEntryCreate{
				DocumentID:  doc.DocumentID,
				EventType:   "export",
				Message:     "Document exported to " + filename,
				DetailsJSON: string(details),
				CreatedAt:   nowStr,
			}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return ExportResult{}, errs.Wrap(err, "record export state")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "intake.export")),
		"documents exported",
		slog.Int("count", len(docs)),
		slog.String("path", exportPath),
	)

	return ExportResult{
		ExportID:    uuid.New().String(),
		Filename:    filename,
		Format:      "csv",
		RecordCount: len(docs),
		DownloadURL: "/exports/" + filename,
		CreatedAt:   nowStr,
		Message:     fmt.Sprintf("Exported %d document(s) successfully", len(docs)),
	}, nil
}

func writeDocumentRows(writer *csv.Writer, doc ports.Document) error {
	id := strconv.FormatUint(doc.DocumentID, 10)
	processed := exportTimestamp(doc.ProcessedAt)

	var res document.ExtractionResult
	hasFields := false
	if doc.ExtractedJSON != "" {
		if err := json.Unmarshal([]byte(doc.ExtractedJSON), &res); err == nil && len(res.Fields) > 0 {
			hasFields = true
		}
	}
	if !hasFields {
		confidence := "0"
		if doc.ConfidenceScore != nil {
			confidence = strconv.FormatFloat(*doc.ConfidenceScore, 'f', -1, 64)
		}
		return writer.Write([]string{id, doc.OriginalFilename, doc.DocumentType, "No data", "No data extracted", confidence, processed})
	}

	for _, field := range res.Fields {
		confidence := "0"
		if field.Confidence != nil {
			confidence = strconv.FormatFloat(*field.Confidence, 'f', -1, 64)
		}
		if err := writer.Write([]string{
			id,
			doc.OriginalFilename,
			doc.DocumentType,
			field.FieldName,
			fieldValueString(field.Value),
			confidence,
			processed,
		}); err != nil {
			return err
		}
	}
	return nil
}

// exportTimestamp reformats the stored RFC3339 timestamp into the
// spreadsheet-friendly "2006-01-02 15:04:05" form.
func exportTimestamp(ptr *string) string {
	raw := derefString(ptr)
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func fieldValueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
