package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/domain/document"
	"docproc/internal/errs"
	"docproc/internal/ports"
	"docproc/internal/usecase/intake"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error(r.Context(), "encode response failed", slog.Any("error", errs.Loggable(err)))
	}
}

// respondError maps domain and usecase sentinels onto HTTP statuses. Unmapped
// errors become a generic 500 so internals never leak to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal server error"

	switch {
	case errors.Is(err, ports.ErrDocumentNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, intake.ErrNoDocumentsToExport):
		status, code, message = http.StatusNotFound, "no_documents", err.Error()
	case errors.Is(err, document.ErrAlreadyProcessing):
		status, code, message = http.StatusConflict, "already_processing", err.Error()
	case errors.Is(err, intake.ErrFileTypeNotAllowed):
		status, code, message = http.StatusBadRequest, "file_type_not_allowed", err.Error()
	case errors.Is(err, intake.ErrFileTooLarge):
		status, code, message = http.StatusBadRequest, "file_too_large", err.Error()
	case errors.Is(err, intake.ErrEmptyUpload):
		status, code, message = http.StatusBadRequest, "empty_upload", err.Error()
	case errors.Is(err, intake.ErrInvalidStatusFilter):
		status, code, message = http.StatusBadRequest, "invalid_status_filter", err.Error()
	default:
		logging.Error(r.Context(), "request failed", slog.Any("error", errs.Loggable(err)))
	}

	respondJSON(w, r, status, errorEnvelope{Error: apiError{Message: message, Code: code}})
}

func respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	respondJSON(w, r, http.StatusBadRequest, errorEnvelope{Error: apiError{Message: message, Code: "bad_request"}})
}
