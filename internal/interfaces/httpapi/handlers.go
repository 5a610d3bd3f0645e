package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"docproc/internal/usecase/intake"
)

const apiVersion = "1.0.0"

// Handler exposes the intake service over HTTP. It owns no state beyond the
// service reference and the upload size guard.
type Handler struct {
	svc         *intake.Service
	maxFileSize int64
}

func NewHandler(svc *intake.Service, maxFileSize int64) *Handler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &Handler{svc: svc, maxFileSize: maxFileSize}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// Guard the multipart parse itself, not just the stored size; double the
	// limit leaves room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize*2)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		respondBadRequest(w, r, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondBadRequest(w, r, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondBadRequest(w, r, "unreadable file content")
		return
	}

	result, err := h.svc.Upload(r.Context(), intake.UploadInput{
		OriginalFilename: header.Filename,
		Content:          content,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, result)
}

func (h *Handler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.StartProcessing(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusAccepted, map[string]any{
		"document_id": id,
		"status":      "processing",
		"message":     "Processing started",
	})
}

func (h *Handler) ProcessingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.ProcessingStatus(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, detail)
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	list, err := h.svc.ListDocuments(r.Context(), intake.ListInput{
		Status:       query.Get("status"),
		DocumentType: query.Get("document_type"),
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, list)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, detail)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"document_id": id,
		"message":     "Document deleted",
	})
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}
	logs, err := h.svc.ListLogs(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"document_id": id,
		"logs":        logs,
	})
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stats)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DocumentIDs []uint64 `json:"document_ids"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, &body); err != nil {
			respondBadRequest(w, r, "invalid request body")
			return
		}
	}
	result, err := h.svc.Export(r.Context(), intake.ExportInput{DocumentIDs: body.DocumentIDs})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "docproc",
		"version": apiVersion,
	})
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{
		"service": "document intake",
		"version": apiVersion,
		"docs":    "/api",
	})
}

func documentIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(w, r, "invalid document id")
		return 0, false
	}
	return id, true
}
