package intake

import (
	"errors"

	"golang.org/x/sync/semaphore"

	"docproc/internal/domain/document"
	"docproc/internal/ports"
)

var (
	ErrFileTypeNotAllowed  = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file exceeds maximum size")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
	ErrNoDocumentsToExport = errors.New("no documents found")
	ErrInvalidStatusFilter = errors.New("unknown status filter")
)

// Config carries the processing knobs the service needs; the bootstrap layer
// maps it from the application config.
type Config struct {
	UploadDir           string
	ExportDir           string
	MaxFileSize         int64
	AllowedExtensions   []string
	MaxConcurrent       int
	ConfidenceThreshold float64
}

// Service owns the document lifecycle: upload, the background processing
// pipeline, reads, statistics and export. It is the only component that
// persists extraction output; gateway and classifier stay side-effect free.
type Service struct {
	repo      ports.DocumentRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	extractor ports.Extractor
	renderer  ports.PageRenderer
	cfg       Config

	sem     *semaphore.Weighted
	workers workerGroup
}

func NewService(
	repo ports.DocumentRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	extractor ports.Extractor,
	renderer ports.PageRenderer,
	cfg Config,
) *Service {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.7
	}

	return &Service{
		repo:      repo,
		uow:       uow,
		cache:     cache,
		extractor: extractor,
		renderer:  renderer,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Wait blocks until all in-flight background units reach a terminal state.
// Used by graceful shutdown and by tests.
func (s *Service) Wait() {
	s.workers.wait()
}

type UploadInput struct {
	OriginalFilename string
	Content          []byte
}

type UploadResult struct {
	DocumentID uint64 `json:"document_id"`
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// DocumentDetail is the read model returned by status and listing operations.
// ExtractedData is populated only for completed documents.
type DocumentDetail struct {
	DocumentID       uint64                     `json:"id"`
	Filename         string                     `json:"filename"`
	OriginalFilename string                     `json:"original_filename"`
	FileType         string                     `json:"file_type"`
	FileSize         int64                      `json:"file_size"`
	Status           string                     `json:"status"`
	DocumentType     string                     `json:"document_type,omitempty"`
	ConfidenceScore  *float64                   `json:"confidence_score,omitempty"`
	ProcessingTime   *float64                   `json:"processing_time,omitempty"`
	ExtractedData    *document.ExtractionResult `json:"extracted_data,omitempty"`
	Findings         []document.Finding         `json:"validation_errors,omitempty"`
	ErrorMessage     string                     `json:"error_message,omitempty"`
	RetryCount       int                        `json:"retry_count"`
	Exported         bool                       `json:"exported"`
	CreatedAt        string                     `json:"created_at"`
	UpdatedAt        string                     `json:"updated_at"`
	ProcessedAt      string                     `json:"processed_at,omitempty"`
}

type DocumentList struct {
	Documents []DocumentDetail `json:"documents"`
	Total     int64            `json:"total"`
	Page      int              `json:"page"`
	PageSize  int              `json:"page_size"`
}

type ListInput struct {
	Status       string
	DocumentType string
	Page         int
	PageSize     int
}

type Statistics struct {
	TotalDocuments         int64            `json:"total_documents"`
	Pending                int64            `json:"pending"`
	Processing             int64            `json:"processing"`
	Completed              int64            `json:"completed"`
	Failed                 int64            `json:"failed"`
	AverageProcessingTime  float64          `json:"average_processing_time"`
	AverageConfidenceScore float64          `json:"average_confidence_score"`
	DocumentsByType        map[string]int64 `json:"documents_by_type"`
	TimeSavedHours         float64          `json:"total_time_saved"`
}

type ExportInput struct {
	DocumentIDs []uint64
}

type ExportResult struct {
	ExportID    string `json:"export_id"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	RecordCount int    `json:"record_count"`
	DownloadURL string `json:"download_url"`
	CreatedAt   string `json:"created_at"`
	Message     string `json:"message"`
}
