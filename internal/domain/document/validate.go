package document

import "strings"

var (
	financialTypes = map[Type]struct{}{
		TypeInvoice: {},
		TypeReceipt: {},
		TypeBill:    {},
	}

	totalFieldNames = []string{"total", "amount", "total amount", "grand total"}
	dateFieldNames  = []string{"date", "invoice date", "receipt date"}
)

// Validate runs the domain checks for a resolved document type and returns
// zero or more findings. It is pure: no I/O, deterministic given its inputs.
func Validate(res ExtractionResult, docType Type, confidenceThreshold float64) []Finding {
	var findings []Finding

	byName := make(map[string]struct{}, len(res.Fields))
	for _, field := range res.Fields {
		byName[strings.ToLower(field.FieldName)] = struct{}{}
	}

	if _, financial := financialTypes[docType]; financial {
		if !anyFieldPresent(byName, totalFieldNames) {
			findings = append(findings, Finding{
				Field:    "total",
				Message:  "Total amount not found",
				Severity: SeverityError,
			})
		}
		if !anyFieldPresent(byName, dateFieldNames) {
			findings = append(findings, Finding{
				Field:    "date",
				Message:  "Date not found",
				Severity: SeverityWarning,
			})
		}
	}

	var lowConfidence []string
	for _, field := range res.Fields {
		// A field without a reported confidence is not flagged.
		if field.Confidence != nil && *field.Confidence < confidenceThreshold {
			lowConfidence = append(lowConfidence, field.FieldName)
		}
	}
	if len(lowConfidence) > 0 {
		findings = append(findings, Finding{
			Field:    "confidence",
			Message:  "Low confidence in fields: " + strings.Join(lowConfidence, ", "),
			Severity: SeverityWarning,
		})
	}

	return findings
}

func anyFieldPresent(byName map[string]struct{}, candidates []string) bool {
	for _, name := range candidates {
		if _, ok := byName[name]; ok {
			return true
		}
	}
	return false
}
