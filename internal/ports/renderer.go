package ports

import "context"

// PageRenderer converts the first page of a PDF into a single still image.
// Only page one is ever rendered; multi-page documents are not handled.
type PageRenderer interface {
	RenderFirstPage(ctx context.Context, filePath string) ([]byte, error)
}
