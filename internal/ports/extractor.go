package ports

import (
	"context"

	"docproc/internal/domain/document"
)

// Extractor calls the external vision model with a base64 encoded still image
// and returns the parsed structured result. Implementations perform no
// persistence and no internal retries.
type Extractor interface {
	Extract(ctx context.Context, imageBase64 string) (document.ExtractionResult, error)
}
