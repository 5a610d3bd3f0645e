package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"docproc/internal/domain/document"
)

// parseExtraction turns the raw model reply into a typed result. A reply
// wrapped in a fenced code block is unfenced first; anything that then fails
// to decode, or carries out-of-range confidences, is an ErrExtractionFormat.
func parseExtraction(content string) (document.ExtractionResult, error) {
	trimmed := stripCodeFence(content)
	if trimmed == "" {
		return document.ExtractionResult{}, fmt.Errorf("%w: empty reply", document.ErrExtractionFormat)
	}

	var res document.ExtractionResult
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		return document.ExtractionResult{}, fmt.Errorf("%w: %v", document.ErrExtractionFormat, err)
	}

	if err := checkConfidenceRanges(res); err != nil {
		return document.ExtractionResult{}, err
	}

	return res, nil
}

func checkConfidenceRanges(res document.ExtractionResult) error {
	if out := outOfRange(res.ConfidenceScore); out {
		return fmt.Errorf("%w: confidence_score outside [0,1]", document.ErrExtractionFormat)
	}
	for _, field := range res.Fields {
		if outOfRange(field.Confidence) {
			return fmt.Errorf("%w: field %q confidence outside [0,1]", document.ErrExtractionFormat, field.FieldName)
		}
	}
	for i, item := range res.LineItems {
		if outOfRange(item.Confidence) {
			return fmt.Errorf("%w: line item %d confidence outside [0,1]", document.ErrExtractionFormat, i)
		}
	}
	return nil
}

func outOfRange(score *float64) bool {
	return score != nil && (*score < 0 || *score > 1)
}

// stripCodeFence removes a leading "```json" or "```" delimiter and the
// matching trailing fence, if present.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = trimmed[len("```json"):]
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[len("```"):]
	}
	if strings.HasSuffix(strings.TrimSpace(trimmed), "```") {
		trimmed = strings.TrimSpace(trimmed)
		trimmed = trimmed[:len(trimmed)-len("```")]
	}

	return strings.TrimSpace(trimmed)
}
