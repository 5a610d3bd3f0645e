package document

// Type is the document category assigned after extraction.
type Type string

const (
	TypeInvoice       Type = "invoice"
	TypeReceipt       Type = "receipt"
	TypePurchaseOrder Type = "purchase_order"
	TypeBill          Type = "bill"
	TypeStatement     Type = "statement"
	TypeForm          Type = "form"
	TypeContract      Type = "contract"
	TypeOther         Type = "other"
)

// FileKind distinguishes how an uploaded source is prepared for extraction.
type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
)

// ExtractionResult is the structured reply of the vision model for one page.
//
// ConfidenceScore and per-field confidences are pointers: the model is allowed
// to omit them, and resolution rules treat "absent" differently from zero.
type ExtractionResult struct {
	DocumentType    string     `json:"document_type"`
	ConfidenceScore *float64   `json:"confidence_score"`
	Fields          []Field    `json:"fields"`
	LineItems       []LineItem `json:"line_items"`
	RawText         string     `json:"raw_text"`
	Metadata        Metadata   `json:"metadata"`
}

// Field is one labeled value extracted from the document.
type Field struct {
	FieldName  string   `json:"field_name"`
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence"`
	DataType   string   `json:"data_type"`
}

// LineItem is one row of an itemized table.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   float64  `json:"unit_price"`
	Amount      float64  `json:"amount"`
	Confidence  *float64 `json:"confidence"`
}

type Metadata struct {
	HasLogo      bool     `json:"has_logo"`
	HasSignature bool     `json:"has_signature"`
	QualityScore *float64 `json:"quality_score"`
	Language     string   `json:"language"`
}

// Severity tags a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is a non-fatal observation about extracted data. Findings never
// abort the pipeline; they are persisted alongside the result.
type Finding struct {
	Field    string   `json:"field"`
	Message  string   `json:"error"`
	Severity Severity `json:"severity"`
}
