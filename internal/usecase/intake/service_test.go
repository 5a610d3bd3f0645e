package intake

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"docproc/internal/domain/document"
	cacheinfra "docproc/internal/infrastructure/cache"
	"docproc/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "docproc/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "docproc/internal/infrastructure/persistence/sqlite/uow"
	"docproc/internal/ports"
)

type fakeExtractor struct {
	mu      sync.Mutex
	calls   int
	results []func() (document.ExtractionResult, error)
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (document.ExtractionResult, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if call < len(f.results) {
		return f.results[call]()
	}
	return document.ExtractionResult{}, fmt.Errorf("%w: no scripted result", document.ErrExtractionTransport)
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	data  []byte
	err   error
}

func (f *fakeRenderer) RenderFirstPage(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	svc       *Service
	repo      *sqliterepo.DocumentRepository
	extractor *fakeExtractor
	renderer  *fakeRenderer
}

func setupService(t *testing.T, extractor *fakeExtractor, renderer *fakeRenderer) fixture {
	t.Helper()

	base := t.TempDir()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(base, "intake.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.Document{}, &model.ProcessingLog{}, &model.IntakeKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewDocumentRepository(db)
	svc := NewService(
		repo,
		sqliteuow.NewUnitOfWork(db),
		cacheinfra.NewSQLiteCache(db),
		extractor,
		renderer,
		Config{
			UploadDir:           filepath.Join(base, "uploads"),
			ExportDir:           filepath.Join(base, "exports"),
			MaxFileSize:         1 << 20,
			AllowedExtensions:   []string{"pdf", "png", "jpg", "jpeg"},
			MaxConcurrent:       2,
			ConfidenceThreshold: 0.7,
		},
	)
	return fixture{svc: svc, repo: repo, extractor: extractor, renderer: renderer}
}

func invoiceResult(score float64) document.ExtractionResult {
	total := 0.95
	date := 0.9
	return document.ExtractionResult{
		DocumentType:    "invoice",
		ConfidenceScore: &score,
		Fields: []document.Field{
			{FieldName: "Total", Value: "123.45", Confidence: &total, DataType: "currency"},
			{FieldName: "Invoice Date", Value: "2026-01-15", Confidence: &date, DataType: "date"},
		},
		RawText: "INVOICE 123.45",
	}
}

func uploadSample(t *testing.T, svc *Service, name string, content []byte) UploadResult {
	t.Helper()

	res, err := svc.Upload(context.Background(), UploadInput{
		OriginalFilename: name,
		Content:          content,
	})
	if err != nil {
		t.Fatalf("upload %q: %v", name, err)
	}
	return res
}

func TestUploadValidation(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})
	ctx := context.Background()

	if _, err := f.svc.Upload(ctx, UploadInput{OriginalFilename: "notes.txt", Content: []byte("x")}); !errors.Is(err, ErrFileTypeNotAllowed) {
		t.Fatalf("txt upload error = %v, want ErrFileTypeNotAllowed", err)
	}
	if _, err := f.svc.Upload(ctx, UploadInput{OriginalFilename: "", Content: []byte("x")}); !errors.Is(err, ErrFileTypeNotAllowed) {
		t.Fatalf("empty name error = %v, want ErrFileTypeNotAllowed", err)
	}
	if _, err := f.svc.Upload(ctx, UploadInput{OriginalFilename: "scan.pdf"}); !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("empty content error = %v, want ErrEmptyUpload", err)
	}
	big := make([]byte, (1<<20)+1)
	if _, err := f.svc.Upload(ctx, UploadInput{OriginalFilename: "scan.pdf", Content: big}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("oversize error = %v, want ErrFileTooLarge", err)
	}
}

func TestUploadStoresFileAndPendingRow(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "receipt.JPG", []byte("jpeg-bytes"))
	if res.DocumentID == 0 || res.Status != string(document.StatusPending) {
		t.Fatalf("upload result = %+v", res)
	}
	if !strings.HasSuffix(res.Filename, ".jpg") {
		t.Fatalf("stored filename = %q, want lowercased .jpg suffix", res.Filename)
	}

	doc, err := f.repo.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.OriginalFilename != "receipt.JPG" || doc.FileType != string(document.FileKindImage) {
		t.Fatalf("document = %+v", doc)
	}
	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("stored content = %q", data)
	}

	logs, err := f.repo.ListLogs(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].EventType != "upload" {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestProcessImageDocumentToCompleted(t *testing.T) {
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) { return invoiceResult(0.92), nil },
	}}
	f := setupService(t, extractor, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "invoice.png", []byte("png-bytes"))
	if err := f.svc.StartProcessing(ctx, res.DocumentID); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	f.svc.Wait()

	detail, err := f.svc.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if detail.Status != string(document.StatusCompleted) {
		t.Fatalf("status = %q, error = %q", detail.Status, detail.ErrorMessage)
	}
	if detail.DocumentType != "invoice" {
		t.Fatalf("document type = %q", detail.DocumentType)
	}
	if detail.ConfidenceScore == nil || *detail.ConfidenceScore != 0.92 {
		t.Fatalf("confidence = %v", detail.ConfidenceScore)
	}
	if detail.ExtractedData == nil || len(detail.ExtractedData.Fields) != 2 {
		t.Fatalf("extracted data = %+v", detail.ExtractedData)
	}
	if len(detail.Findings) != 0 {
		t.Fatalf("findings = %+v", detail.Findings)
	}
	if detail.ProcessingTime == nil {
		t.Fatal("processing time not recorded")
	}
	if detail.ProcessedAt == "" {
		t.Fatal("processed_at not recorded")
	}
	if f.renderer.callCount() != 0 {
		t.Fatalf("renderer called %d times for an image upload", f.renderer.callCount())
	}

	logs, err := f.repo.ListLogs(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 || logs[1].EventType != "extraction" {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestProcessPDFUsesRendererAndCachesResult(t *testing.T) {
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) {
			return document.ExtractionResult{}, fmt.Errorf("%w: connection reset", document.ErrExtractionTransport)
		},
		func() (document.ExtractionResult, error) { return invoiceResult(0.88), nil },
	}}
	renderer := &fakeRenderer{data: []byte("rendered-first-page")}
	f := setupService(t, extractor, renderer)
	ctx := context.Background()

	res := uploadSample(t, f.svc, "scan.pdf", []byte("%PDF-1.4"))

	if err := f.svc.StartProcessing(ctx, res.DocumentID); err != nil {
		t.Fatalf("first start: %v", err)
	}
	f.svc.Wait()

	detail, err := f.svc.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get after failure: %v", err)
	}
	if detail.Status != string(document.StatusFailed) || detail.RetryCount != 1 {
		t.Fatalf("after failure = status %q retry %d", detail.Status, detail.RetryCount)
	}

	if err := f.svc.StartProcessing(ctx, res.DocumentID); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	f.svc.Wait()

	detail, err = f.svc.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get after retry: %v", err)
	}
	if detail.Status != string(document.StatusCompleted) {
		t.Fatalf("status = %q, error = %q", detail.Status, detail.ErrorMessage)
	}
	if renderer.callCount() != 1 {
		t.Fatalf("renderer called %d times, want 1 (second run should hit the cache)", renderer.callCount())
	}
	if extractor.callCount() != 2 {
		t.Fatalf("extractor called %d times, want 2", extractor.callCount())
	}
}

func TestProcessMalformedReplyEndsFailed(t *testing.T) {
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) {
			return document.ExtractionResult{}, fmt.Errorf("%w: invalid character 's'", document.ErrExtractionFormat)
		},
	}}
	f := setupService(t, extractor, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "invoice.jpg", []byte("jpeg-bytes"))
	if err := f.svc.StartProcessing(ctx, res.DocumentID); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	f.svc.Wait()

	detail, err := f.svc.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if detail.Status != string(document.StatusFailed) {
		t.Fatalf("status = %q", detail.Status)
	}
	if detail.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", detail.RetryCount)
	}
	if !strings.Contains(detail.ErrorMessage, "extraction reply has invalid format") {
		t.Fatalf("error message = %q", detail.ErrorMessage)
	}
	if detail.ExtractedData != nil {
		t.Fatalf("failed document exposes extracted data: %+v", detail.ExtractedData)
	}

	logs, err := f.repo.ListLogs(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 || logs[1].EventType != "error" {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestStartProcessingConflict(t *testing.T) {
	release := make(chan struct{})
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) {
			<-release
			return invoiceResult(0.9), nil
		},
	}}
	f := setupService(t, extractor, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "invoice.png", []byte("png-bytes"))
	if err := f.svc.StartProcessing(ctx, res.DocumentID); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := f.svc.StartProcessing(ctx, res.DocumentID); !errors.Is(err, document.ErrAlreadyProcessing) {
		t.Fatalf("second start error = %v, want ErrAlreadyProcessing", err)
	}

	close(release)
	f.svc.Wait()
}

func TestStartProcessingUnknownDocument(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})

	if err := f.svc.StartProcessing(context.Background(), 777); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("error = %v, want ErrDocumentNotFound", err)
	}
}

func TestProcessingStatusMasksDataUntilCompleted(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "invoice.png", []byte("png-bytes"))
	detail, err := f.svc.ProcessingStatus(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("processing status: %v", err)
	}
	if detail.Status != string(document.StatusPending) {
		t.Fatalf("status = %q", detail.Status)
	}
	if detail.ExtractedData != nil || detail.Findings != nil {
		t.Fatalf("pending document exposes data: %+v", detail)
	}
}

func TestDeleteDocumentRemovesRowAndFile(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "gone.png", []byte("png-bytes"))
	doc, err := f.repo.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}

	if err := f.svc.DeleteDocument(ctx, res.DocumentID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetDocument(ctx, res.DocumentID); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("get after delete error = %v", err)
	}
	if _, err := os.Stat(doc.FilePath); !os.IsNotExist(err) {
		t.Fatalf("stored file still present: %v", err)
	}
	if err := f.svc.DeleteDocument(ctx, res.DocumentID); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("second delete error = %v", err)
	}
}

func TestListDocuments(t *testing.T) {
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) { return invoiceResult(0.9), nil },
	}}
	f := setupService(t, extractor, &fakeRenderer{})
	ctx := context.Background()

	first := uploadSample(t, f.svc, "a.png", []byte("x"))
	uploadSample(t, f.svc, "b.png", []byte("y"))

	if err := f.svc.StartProcessing(ctx, first.DocumentID); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	f.svc.Wait()

	list, err := f.svc.ListDocuments(ctx, ListInput{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if list.Total != 2 || len(list.Documents) != 2 {
		t.Fatalf("list = total %d len %d", list.Total, len(list.Documents))
	}
	if list.Page != 1 || list.PageSize != 20 {
		t.Fatalf("defaults = page %d size %d", list.Page, list.PageSize)
	}

	list, err = f.svc.ListDocuments(ctx, ListInput{Status: string(document.StatusCompleted)})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if list.Total != 1 || list.Documents[0].DocumentID != first.DocumentID {
		t.Fatalf("completed list = %+v", list)
	}
}

func TestListDocumentsRejectsUnknownStatus(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})

	_, err := f.svc.ListDocuments(context.Background(), ListInput{Status: "archived"})
	if !errors.Is(err, ErrInvalidStatusFilter) {
		t.Fatalf("list error = %v, want ErrInvalidStatusFilter", err)
	}
}

func TestStatisticsEmpty(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})

	stats, err := f.svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalDocuments != 0 || stats.Completed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.AverageProcessingTime != 0 || stats.AverageConfidenceScore != 0 || stats.TimeSavedHours != 0 {
		t.Fatalf("averages not zero: %+v", stats)
	}
	if stats.DocumentsByType == nil {
		t.Fatal("documents_by_type is nil")
	}
}

func TestStatisticsAfterProcessing(t *testing.T) {
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) { return invoiceResult(0.9), nil },
		func() (document.ExtractionResult, error) {
			return document.ExtractionResult{}, fmt.Errorf("%w: timeout", document.ErrExtractionTransport)
		},
	}}
	f := setupService(t, extractor, &fakeRenderer{})
	ctx := context.Background()

	first := uploadSample(t, f.svc, "a.png", []byte("x"))
	second := uploadSample(t, f.svc, "b.png", []byte("y"))
	uploadSample(t, f.svc, "c.png", []byte("z"))

	if err := f.svc.StartProcessing(ctx, first.DocumentID); err != nil {
		t.Fatalf("start first: %v", err)
	}
	f.svc.Wait()
	if err := f.svc.StartProcessing(ctx, second.DocumentID); err != nil {
		t.Fatalf("start second: %v", err)
	}
	f.svc.Wait()

	stats, err := f.svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalDocuments != 3 || stats.Completed != 1 || stats.Failed != 1 || stats.Pending != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.DocumentsByType["invoice"] != 1 {
		t.Fatalf("by type = %+v", stats.DocumentsByType)
	}
	if stats.AverageConfidenceScore != 0.9 {
		t.Fatalf("avg confidence = %v", stats.AverageConfidenceScore)
	}
	if stats.TimeSavedHours != 0.08 {
		t.Fatalf("time saved = %v, want 0.08", stats.TimeSavedHours)
	}
}

func TestExportNoCompletedDocuments(t *testing.T) {
	f := setupService(t, &fakeExtractor{}, &fakeRenderer{})

	uploadSample(t, f.svc, "pending.png", []byte("x"))
	if _, err := f.svc.Export(context.Background(), ExportInput{}); !errors.Is(err, ErrNoDocumentsToExport) {
		t.Fatalf("export error = %v, want ErrNoDocumentsToExport", err)
	}
}

func TestExportWritesCSV(t *testing.T) {
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) { return invoiceResult(0.92), nil },
	}}
	f := setupService(t, extractor, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "invoice.png", []byte("png-bytes"))
	if err := f.svc.StartProcessing(ctx, res.DocumentID); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	f.svc.Wait()

	out, err := f.svc.Export(ctx, ExportInput{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.RecordCount != 1 || out.Format != "csv" {
		t.Fatalf("export result = %+v", out)
	}
	if !strings.HasPrefix(out.DownloadURL, "/exports/") {
		t.Fatalf("download url = %q", out.DownloadURL)
	}

	file, err := os.Open(filepath.Join(f.svc.cfg.ExportDir, out.Filename))
	if err != nil {
		t.Fatalf("open export file: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("csv rows = %d, want header + 2 fields", len(rows))
	}
	wantHeader := []string{"Document ID", "Original Filename", "Document Type", "Field Name", "Field Value", "Confidence Score", "Processing Date"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][1] != "invoice.png" || rows[1][2] != "invoice" || rows[1][3] != "Total" || rows[1][4] != "123.45" {
		t.Fatalf("first data row = %v", rows[1])
	}
	if rows[2][3] != "Invoice Date" {
		t.Fatalf("second data row = %v", rows[2])
	}

	detail, err := f.svc.GetDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if !detail.Exported {
		t.Fatal("document not flagged exported")
	}
}

func TestExportDocumentWithoutFields(t *testing.T) {
	score := 0.9
	extractor := &fakeExtractor{results: []func() (document.ExtractionResult, error){
		func() (document.ExtractionResult, error) {
			return document.ExtractionResult{
				DocumentType:    "invoice",
				ConfidenceScore: &score,
			}, nil
		},
	}}
	f := setupService(t, extractor, &fakeRenderer{})
	ctx := context.Background()

	res := uploadSample(t, f.svc, "blank.png", []byte("png-bytes"))
	if err := f.svc.StartProcessing(ctx, res.DocumentID); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	f.svc.Wait()

	out, err := f.svc.Export(ctx, ExportInput{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	file, err := os.Open(filepath.Join(f.svc.cfg.ExportDir, out.Filename))
	if err != nil {
		t.Fatalf("open export file: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("csv rows = %d, want header + placeholder row", len(rows))
	}
	row := rows[1]
	if row[1] != "blank.png" || row[2] != "invoice" {
		t.Fatalf("placeholder row = %v", row)
	}
	if row[3] != "No data" || row[4] != "No data extracted" {
		t.Fatalf("placeholder cells = %q, %q", row[3], row[4])
	}
	if row[5] != "0.9" {
		t.Fatalf("confidence cell = %q, want document score", row[5])
	}
}
