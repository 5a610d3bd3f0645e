package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docproc/internal/domain/document"
	"docproc/internal/errs"
	"docproc/internal/infrastructure/persistence/sqlite/model"
	"docproc/internal/ports"
)

type DocumentRepository struct {
	db *gorm.DB
}

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc ports.Document) (ports.Document, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Document{}, err
	}

	row := toModel(doc)
	if err := db.Create(&row).Error; err != nil {
		return ports.Document{}, errs.Wrap(err, "insert document")
	}
	return mapDocument(row), nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, documentID uint64) (ports.Document, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Document{}, err
	}

	var row model.Document
	if err := db.Where("document_id = ?", documentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Document{}, ports.ErrDocumentNotFound
		}
		return ports.Document{}, errs.Wrap(err, "query document by id")
	}
	return mapDocument(row), nil
}

func (r *DocumentRepository) ListDocuments(ctx context.Context, filter ports.DocumentFilter) ([]ports.Document, int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&model.Document{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DocumentType != "" {
		query = query.Where("document_type = ?", filter.DocumentType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(err, "count documents")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var rows []model.Document
	if err := query.
		Order("created_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, errs.Wrap(err, "query documents")
	}

	items := make([]ports.Document, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapDocument(row))
	}
	return items, total, nil
}

func (r *DocumentRepository) ListForExport(ctx context.Context, documentIDs []uint64) ([]ports.Document, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Document{}).Where("status = ?", string(document.StatusCompleted))
	if len(documentIDs) > 0 {
		query = query.Where("document_id IN ?", documentIDs)
	}

	var rows []model.Document
	if err := query.Order("document_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query documents for export")
	}

	items := make([]ports.Document, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapDocument(row))
	}
	return items, nil
}

func (r *DocumentRepository) MarkProcessing(ctx context.Context, documentID uint64, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	// Conditional update: the affected-row count is the guard against a
	// second request slipping in between a read and a write. The startable
	// set comes from document.CanStart so the transition rule lives in one
	// place.
	res := db.Model(&model.Document{}).
		Where("document_id = ? AND status IN ?", documentID, statusStrings(document.StartableStatuses())).
		Updates(map[string]any{
			"status":     string(document.StatusProcessing),
			"updated_at": updatedAt,
		})
	if res.Error != nil {
		return errs.Wrap(res.Error, "mark document processing")
	}
	if res.RowsAffected == 0 {
		var row model.Document
		if err := db.Select("status").Where("document_id = ?", documentID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ports.ErrDocumentNotFound
			}
			return errs.Wrap(err, "check document status")
		}
		return document.ErrAlreadyProcessing
	}
	return nil
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, documentID uint64, update ports.CompletionUpdate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	res := db.Model(&model.Document{}).
		Where("document_id = ?", documentID).
		Updates(map[string]any{
			"status":            string(document.StatusCompleted),
			"document_type":     update.DocumentType,
			"confidence_score":  update.ConfidenceScore,
			"processing_time":   update.ProcessingTime,
			"extracted_data":    update.ExtractedJSON,
			"validation_errors": update.FindingsJSON,
			"error_message":     nil,
			"processed_at":      update.ProcessedAt,
			"updated_at":        update.UpdatedAt,
		})
	if res.Error != nil {
		return errs.Wrap(res.Error, "mark document completed")
	}
	if res.RowsAffected == 0 {
		return ports.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, documentID uint64, errorMessage string, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	res := db.Model(&model.Document{}).
		Where("document_id = ?", documentID).
		Updates(map[string]any{
			"status":        string(document.StatusFailed),
			"error_message": errorMessage,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"updated_at":    updatedAt,
		})
	if res.Error != nil {
		return errs.Wrap(res.Error, "mark document failed")
	}
	if res.RowsAffected == 0 {
		return ports.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkExported(ctx context.Context, documentID uint64, exportPath string, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	res := db.Model(&model.Document{}).
		Where("document_id = ?", documentID).
		Updates(map[string]any{
			"exported":    true,
			"export_path": exportPath,
			"updated_at":  updatedAt,
		})
	if res.Error != nil {
		return errs.Wrap(res.Error, "mark document exported")
	}
	if res.RowsAffected == 0 {
		return ports.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) DeleteDocument(ctx context.Context, documentID uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	res := db.Where("document_id = ?", documentID).Delete(&model.Document{})
	if res.Error != nil {
		return errs.Wrap(res.Error, "delete document")
	}
	if res.RowsAffected == 0 {
		return ports.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) AppendLog(ctx context.Context, entry ports.LogEntryCreate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.ProcessingLog{
		DocumentID: entry.DocumentID,
		EventType:  entry.EventType,
		Message:    entry.Message,
		Details:    entry.DetailsJSON,
		CreatedAt:  entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert processing log")
	}
	return nil
}

func (r *DocumentRepository) ListLogs(ctx context.Context, documentID uint64) ([]ports.LogEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ProcessingLog
	if err := db.
		Where("document_id = ?", documentID).
		Order("log_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query processing logs")
	}

	entries := make([]ports.LogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ports.LogEntry{
			LogID:       row.LogID,
			DocumentID:  row.DocumentID,
			EventType:   row.EventType,
			Message:     row.Message,
			DetailsJSON: row.Details,
			CreatedAt:   row.CreatedAt,
		})
	}
	return entries, nil
}

func (r *DocumentRepository) Aggregate(ctx context.Context) (ports.DocumentStats, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.DocumentStats{}, err
	}

	stats := ports.DocumentStats{
		CountsByStatus: make(map[string]int64),
		CountsByType:   make(map[string]int64),
	}

	if err := db.Model(&model.Document{}).Count(&stats.TotalDocuments).Error; err != nil {
		return ports.DocumentStats{}, errs.Wrap(err, "count documents")
	}

	type groupCount struct {
		Key   string
		Total int64
	}

	var byStatus []groupCount
	if err := db.Model(&model.Document{}).
		Select("status as key, count(*) as total").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return ports.DocumentStats{}, errs.Wrap(err, "count documents by status")
	}
	for _, row := range byStatus {
		stats.CountsByStatus[row.Key] = row.Total
	}

	var byType []groupCount
	if err := db.Model(&model.Document{}).
		Select("document_type as key, count(*) as total").
		Where("document_type IS NOT NULL").
		Group("document_type").
		Scan(&byType).Error; err != nil {
		return ports.DocumentStats{}, errs.Wrap(err, "count documents by type")
	}
	for _, row := range byType {
		stats.CountsByType[row.Key] = row.Total
	}

	// AVG over an empty set yields NULL; scan through pointers so empty stays 0.0.
	var avgTime *float64
	if err := db.Model(&model.Document{}).
		Select("avg(processing_time)").
		Where("processing_time IS NOT NULL").
		Scan(&avgTime).Error; err != nil {
		return ports.DocumentStats{}, errs.Wrap(err, "average processing time")
	}
	if avgTime != nil {
		stats.AvgProcessingTime = *avgTime
	}

	var avgConfidence *float64
	if err := db.Model(&model.Document{}).
		Select("avg(confidence_score)").
		Where("confidence_score IS NOT NULL").
		Scan(&avgConfidence).Error; err != nil {
		return ports.DocumentStats{}, errs.Wrap(err, "average confidence score")
	}
	if avgConfidence != nil {
		stats.AvgConfidence = *avgConfidence
	}

	return stats, nil
}

func toModel(doc ports.Document) model.Document {
	return model.Document{
		DocumentID:       doc.DocumentID,
		Filename:         doc.Filename,
		OriginalFilename: doc.OriginalFilename,
		FilePath:         doc.FilePath,
		FileSize:         doc.FileSize,
		FileType:         doc.FileType,
		Status:           doc.Status,
		DocumentType:     optional(doc.DocumentType),
		ConfidenceScore:  doc.ConfidenceScore,
		ProcessingTime:   doc.ProcessingTime,
		ExtractedData:    optional(doc.ExtractedJSON),
		ValidationErrors: optional(doc.FindingsJSON),
		ErrorMessage:     optional(doc.ErrorMessage),
		RetryCount:       doc.RetryCount,
		Exported:         doc.Exported,
		ExportPath:       optional(doc.ExportPath),
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		ProcessedAt:      doc.ProcessedAt,
	}
}

func mapDocument(row model.Document) ports.Document {
	return ports.Document{
		DocumentID:       row.DocumentID,
		Filename:         row.Filename,
		OriginalFilename: row.OriginalFilename,
		FilePath:         row.FilePath,
		FileSize:         row.FileSize,
		FileType:         row.FileType,
		Status:           row.Status,
		DocumentType:     deref(row.DocumentType),
		ConfidenceScore:  row.ConfidenceScore,
		ProcessingTime:   row.ProcessingTime,
		ExtractedJSON:    deref(row.ExtractedData),
		FindingsJSON:     deref(row.ValidationErrors),
		ErrorMessage:     deref(row.ErrorMessage),
		RetryCount:       row.RetryCount,
		Exported:         row.Exported,
		ExportPath:       deref(row.ExportPath),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		ProcessedAt:      row.ProcessedAt,
	}
}

func statusStrings(statuses []document.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
