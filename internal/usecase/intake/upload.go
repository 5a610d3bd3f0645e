package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/domain/document"
	"docproc/internal/errs"
	"docproc/internal/ports"
)

// Upload validates and stores an incoming file, creates the pending document
// row and appends the upload log entry in one transaction.
func (s *Service) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if ctx == nil {
		return UploadResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return UploadResult{}, errs.Wrap(err, "check context")
	}

	original := strings.TrimSpace(input.OriginalFilename)
	if original == "" {
		return UploadResult{}, fmt.Errorf("%w: missing filename", ErrFileTypeNotAllowed)
	}
	if !s.extensionAllowed(original) {
		return UploadResult{}, fmt.Errorf("%w: %q (allowed: %s)",
			ErrFileTypeNotAllowed, filepath.Ext(original), strings.Join(s.cfg.AllowedExtensions, ","))
	}
	if len(input.Content) == 0 {
		return UploadResult{}, ErrEmptyUpload
	}
	if int64(len(input.Content)) > s.cfg.MaxFileSize {
		return UploadResult{}, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(input.Content), s.cfg.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(original))
	storedName := uuid.New().String() + ext
	fileKind := document.FileKindImage
	if ext == ".pdf" {
		fileKind = document.FileKindPDF
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return UploadResult{}, errs.Wrap(err, "ensure upload directory")
	}
	storedPath := filepath.Join(s.cfg.UploadDir, storedName)
	if err := os.WriteFile(storedPath, input.Content, 0o644); err != nil {
		return UploadResult{}, errs.Wrap(err, "write uploaded file")
	}

	now := nowUTCString()
	details, err := json.Marshal(map[string]any{
		"filename": storedName,
		"size":     len(input.Content),
		"type":     string(fileKind),
	})
	if err != nil {
		return UploadResult{}, errs.Wrap(err, "encode upload details")
	}

	var created ports.Document
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		doc, err := s.repo.CreateDocument(txCtx, ports.Document{
			Filename:         storedName,
			OriginalFilename: original,
			FilePath:         storedPath,
			FileSize:         int64(len(input.Content)),
			FileType:         string(fileKind),
			Status:           string(document.StatusPending),
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return err
		}
		created = doc

		return s.repo.AppendLog(txCtx, ports.LogEntryCreate{
			DocumentID:  doc.DocumentID,
			EventType:   "upload",
			Message:     "Document uploaded: " + original,
			DetailsJSON: string(details),
			CreatedAt:   now,
		})
	}); err != nil {
		// The row never existed; remove the orphaned file.
		if rmErr := os.Remove(storedPath); rmErr != nil {
			logging.Warn(ctx, "remove orphaned upload failed",
				slog.String("path", storedPath), slog.String("error", rmErr.Error()))
		}
		return UploadResult{}, errs.Wrap(err, "persist uploaded document")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "intake.upload")),
		"document uploaded",
		slog.Uint64("document_id", created.DocumentID),
		slog.String("filename", storedName),
		slog.Int64("size", created.FileSize),
		slog.String("type", string(fileKind)),
	)

	return UploadResult{
		DocumentID: created.DocumentID,
		Filename:   storedName,
		FileSize:   created.FileSize,
		Status:     created.Status,
		Message:    "Document uploaded successfully. Ready for processing.",
	}, nil
}
