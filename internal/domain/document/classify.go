package document

import "strings"

// typeKeywords is checked in order; the first matching group wins.
var typeKeywords = []struct {
	docType  Type
	keywords []string
}{
	{TypeInvoice, []string{"invoice", "inv no", "invoice number"}},
	{TypeReceipt, []string{"receipt", "transaction"}},
	{TypePurchaseOrder, []string{"purchase order", "po number"}},
	{TypeBill, []string{"bill", "billing"}},
}

// ResolveType returns the model's own classification when present, otherwise
// falls back to keyword matching over the concatenated lowercased field names.
func ResolveType(res ExtractionResult) Type {
	if typed := strings.TrimSpace(res.DocumentType); typed != "" {
		return Type(typed)
	}

	names := make([]string, 0, len(res.Fields))
	for _, field := range res.Fields {
		names = append(names, strings.ToLower(field.FieldName))
	}
	joined := strings.Join(names, " ")

	for _, group := range typeKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(joined, keyword) {
				return group.docType
			}
		}
	}
	return TypeOther
}

// ResolveConfidence returns the model's aggregate score when present, otherwise
// the arithmetic mean of field confidences with missing values counted as 0.5.
// An extraction with no fields resolves to exactly 0.5.
func ResolveConfidence(res ExtractionResult) float64 {
	if res.ConfidenceScore != nil {
		return *res.ConfidenceScore
	}

	if len(res.Fields) == 0 {
		return 0.5
	}

	sum := 0.0
	for _, field := range res.Fields {
		if field.Confidence != nil {
			sum += *field.Confidence
		} else {
			sum += 0.5
		}
	}
	return sum / float64(len(res.Fields))
}
