package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"docproc/internal/bootstrap/logging"
	"docproc/internal/domain/document"
	"docproc/internal/ports"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIExtractor implements ports.Extractor over the OpenAI chat completions
// API with an image part. It performs no persistence and no internal retries;
// a failed call is reported upward and retry stays with the caller.
type OpenAIExtractor struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

var _ ports.Extractor = (*OpenAIExtractor)(nil)

func NewOpenAIExtractor(cfg Config) *OpenAIExtractor {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OpenAIExtractor{
		client:  openai.NewClient(opts...),
		model:   openai.ChatModel(cfg.Model),
		timeout: timeout,
	}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, imageBase64 string) (document.ExtractionResult, error) {
	if ctx == nil {
		return document.ExtractionResult{}, errors.New("context is required")
	}
	if imageBase64 == "" {
		return document.ExtractionResult{}, fmt.Errorf("%w: empty image payload", document.ErrImagePreparation)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "vision.openai"))
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(extractionPrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    "data:image/jpeg;base64," + imageBase64,
			Detail: "high",
		}),
	}

	resp, err := e.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model:       e.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens:   openai.Int(4096),
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		logging.Error(logCtx, "vision model call failed",
			slog.String("model", string(e.model)),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			slog.String("error", err.Error()),
		)
		return document.ExtractionResult{}, fmt.Errorf("%w: %v", document.ErrExtractionTransport, err)
	}

	if len(resp.Choices) == 0 {
		return document.ExtractionResult{}, fmt.Errorf("%w: no choices in reply", document.ErrExtractionFormat)
	}

	result, err := parseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		logging.Error(logCtx, "vision reply parsing failed",
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			slog.String("error", err.Error()),
		)
		return document.ExtractionResult{}, err
	}

	logging.Info(logCtx, "extraction completed",
		slog.String("model", string(e.model)),
		slog.Int("fields", len(result.Fields)),
		slog.Int("line_items", len(result.LineItems)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}
