package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/domain/document"
	"docproc/internal/ports"
)

// Runner lets tests stub the external pdftoppm command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// PdftoppmRenderer renders the first page of a PDF to a JPEG via pdftoppm.
// Pages beyond the first are never rendered.
type PdftoppmRenderer struct {
	runner Runner
	binary string
	dpi    int
}

var _ ports.PageRenderer = (*PdftoppmRenderer)(nil)

func NewPdftoppmRenderer(binary string, dpi int) *PdftoppmRenderer {
	return NewPdftoppmRendererWithRunner(execRunner{}, binary, dpi)
}

func NewPdftoppmRendererWithRunner(runner Runner, binary string, dpi int) *PdftoppmRenderer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &PdftoppmRenderer{runner: runner, binary: binary, dpi: dpi}
}

func (r *PdftoppmRenderer) RenderFirstPage(ctx context.Context, filePath string) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: source file: %v", document.ErrImagePreparation, err)
	}

	tmpDir, err := os.MkdirTemp("", "docproc-render-*")
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", document.ErrImagePreparation, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			logging.Warn(ctx, "remove render temp dir failed",
				slog.String("dir", tmpDir), slog.String("error", rmErr.Error()))
		}
	}()

	start := time.Now()
	prefix := filepath.Join(tmpDir, "page")
	_, errb, err := r.runner.Run(ctx, r.binary,
		"-f", "1", "-l", "1",
		"-r", strconv.Itoa(r.dpi),
		"-jpeg", filePath, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm: %v (%s)", document.ErrImagePreparation, err, truncate(string(errb), 2048))
	}

	// pdftoppm names output page-1.jpg, page-01.jpg etc. depending on page count.
	matches, _ := filepath.Glob(prefix + "-*.jpg")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no image", document.ErrImagePreparation)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read rendered page: %v", document.ErrImagePreparation, err)
	}

	logging.Debug(logging.WithAttrs(ctx, slog.String("component", "render.pdftoppm")),
		"first page rendered",
		slog.String("source", filePath),
		slog.Int("bytes", len(data)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return data, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
