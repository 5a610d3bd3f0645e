package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig names the directories served as static downloads.
type RouterConfig struct {
	UploadDir string
	ExportDir string
}

func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.Root)
	r.Get("/api/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Post("/process/{id}", h.StartProcessing)
		r.Get("/process/{id}/status", h.ProcessingStatus)
		r.Get("/documents", h.ListDocuments)
		r.Get("/documents/{id}", h.GetDocument)
		r.Delete("/documents/{id}", h.DeleteDocument)
		r.Get("/documents/{id}/logs", h.ListLogs)
		r.Get("/statistics", h.Statistics)
		r.Post("/export", h.Export)
	})

	if cfg.UploadDir != "" {
		fileServer(r, "/uploads", cfg.UploadDir)
	}
	if cfg.ExportDir != "" {
		fileServer(r, "/exports", cfg.ExportDir)
	}

	return r
}

// fileServer mounts a directory read-only under the given prefix. Directory
// listings are disabled.
func fileServer(r chi.Router, prefix string, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(noListingFS{http.Dir(dir)}))
	r.Get(prefix+"/*", fs.ServeHTTP)
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.New("directory listing disabled")
	}
	return f, nil
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer io.Copy(io.Discard, r.Body)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
