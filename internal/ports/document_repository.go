package ports

import (
	"context"
	"errors"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is the persisted snapshot of one uploaded document.
// Timestamps are RFC3339Nano strings in UTC.
type Document struct {
	DocumentID       uint64
	Filename         string
	OriginalFilename string
	FilePath         string
	FileSize         int64
	FileType         string
	Status           string
	DocumentType     string
	ConfidenceScore  *float64
	ProcessingTime   *float64
	ExtractedJSON    string
	FindingsJSON     string
	ErrorMessage     string
	RetryCount       int
	Exported         bool
	ExportPath       string
	CreatedAt        string
	UpdatedAt        string
	ProcessedAt      *string
}

type DocumentFilter struct {
	Status       string
	DocumentType string
	Page         int
	PageSize     int
}

// CompletionUpdate carries everything the completion transition records.
type CompletionUpdate struct {
	DocumentType    string
	ConfidenceScore float64
	ProcessingTime  float64
	ExtractedJSON   string
	FindingsJSON    string
	ProcessedAt     string
	UpdatedAt       string
}

type LogEntry struct {
	LogID       uint64
	DocumentID  uint64
	EventType   string
	Message     string
	DetailsJSON string
	CreatedAt   string
}

type LogEntryCreate struct {
	DocumentID  uint64
	EventType   string
	Message     string
	DetailsJSON string
	CreatedAt   string
}

// DocumentStats is the aggregate read model for reporting.
type DocumentStats struct {
	TotalDocuments    int64
	CountsByStatus    map[string]int64
	CountsByType      map[string]int64
	AvgProcessingTime float64
	AvgConfidence     float64
}

type DocumentReadRepository interface {
	GetDocument(ctx context.Context, documentID uint64) (Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, int64, error)
	ListForExport(ctx context.Context, documentIDs []uint64) ([]Document, error)
	ListLogs(ctx context.Context, documentID uint64) ([]LogEntry, error)
	Aggregate(ctx context.Context) (DocumentStats, error)
}

type DocumentRepository interface {
	DocumentReadRepository
	CreateDocument(ctx context.Context, doc Document) (Document, error)
	// MarkProcessing is a conditional update: it succeeds only when the current
	// status is not "processing" (affected-row check), closing the
	// check-then-set race between concurrent processing requests. Returns
	// document.ErrAlreadyProcessing on a lost race and ErrDocumentNotFound for
	// an unknown id.
	MarkProcessing(ctx context.Context, documentID uint64, updatedAt string) error
	MarkCompleted(ctx context.Context, documentID uint64, update CompletionUpdate) error
	// MarkFailed records the error message and increments retry_count by one.
	MarkFailed(ctx context.Context, documentID uint64, errorMessage string, updatedAt string) error
	MarkExported(ctx context.Context, documentID uint64, exportPath string, updatedAt string) error
	DeleteDocument(ctx context.Context, documentID uint64) error
	AppendLog(ctx context.Context, entry LogEntryCreate) error
}
