package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"docproc/internal/domain/document"
)

type stubRunner struct {
	args    []string
	stderr  []byte
	err     error
	produce func(prefix string) error
}

func (s *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	s.args = args
	if s.err != nil {
		return nil, s.stderr, s.err
	}
	if s.produce != nil {
		prefix := args[len(args)-1]
		if err := s.produce(prefix); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func writeSourcePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatalf("write source pdf: %v", err)
	}
	return path
}

func TestRenderFirstPage(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		produce: func(prefix string) error {
			return os.WriteFile(prefix+"-1.jpg", []byte("jpeg-bytes"), 0o644)
		},
	}
	r := NewPdftoppmRendererWithRunner(runner, "pdftoppm", 150)
	src := writeSourcePDF(t)

	data, err := r.RenderFirstPage(context.Background(), src)
	if err != nil {
		t.Fatalf("RenderFirstPage() error = %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("rendered data = %q", data)
	}

	want := []string{"-f", "1", "-l", "1", "-r", strconv.Itoa(150), "-jpeg", src}
	if len(runner.args) != len(want)+1 {
		t.Fatalf("args = %v", runner.args)
	}
	for i, arg := range want {
		if runner.args[i] != arg {
			t.Fatalf("args[%d] = %q, want %q", i, runner.args[i], arg)
		}
	}
}

func TestRenderFirstPageCommandFailure(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{err: errors.New("exit status 1"), stderr: []byte("Syntax Error: bad xref")}
	r := NewPdftoppmRendererWithRunner(runner, "pdftoppm", 0)

	_, err := r.RenderFirstPage(context.Background(), writeSourcePDF(t))
	if !errors.Is(err, document.ErrImagePreparation) {
		t.Fatalf("RenderFirstPage() error = %v, want ErrImagePreparation", err)
	}
}

func TestRenderFirstPageNoOutput(t *testing.T) {
	t.Parallel()

	r := NewPdftoppmRendererWithRunner(&stubRunner{}, "pdftoppm", 300)

	_, err := r.RenderFirstPage(context.Background(), writeSourcePDF(t))
	if !errors.Is(err, document.ErrImagePreparation) {
		t.Fatalf("RenderFirstPage() error = %v, want ErrImagePreparation", err)
	}
}

func TestRenderFirstPageMissingSource(t *testing.T) {
	t.Parallel()

	r := NewPdftoppmRendererWithRunner(&stubRunner{}, "pdftoppm", 300)

	_, err := r.RenderFirstPage(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, document.ErrImagePreparation) {
		t.Fatalf("RenderFirstPage() error = %v, want ErrImagePreparation", err)
	}
}
