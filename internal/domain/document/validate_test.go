package document

import "testing"

func TestValidateFinancialTypeMissingTotalAndDate(t *testing.T) {
	t.Parallel()

	res := ExtractionResult{
		Fields: []Field{
			{FieldName: "Vendor", Confidence: floatPtr(0.9)},
		},
	}
	findings := Validate(res, TypeInvoice, 0.7)
	if len(findings) != 2 {
		t.Fatalf("Validate() returned %d findings, want 2: %+v", len(findings), findings)
	}
	if findings[0].Field != "total" || findings[0].Message != "Total amount not found" || findings[0].Severity != SeverityError {
		t.Fatalf("total finding = %+v", findings[0])
	}
	if findings[1].Field != "date" || findings[1].Message != "Date not found" || findings[1].Severity != SeverityWarning {
		t.Fatalf("date finding = %+v", findings[1])
	}
}

func TestValidateFinancialTypeAcceptsAlternateNames(t *testing.T) {
	t.Parallel()

	res := ExtractionResult{
		Fields: []Field{
			{FieldName: "Grand Total", Confidence: floatPtr(0.95)},
			{FieldName: "Invoice Date", Confidence: floatPtr(0.9)},
		},
	}
	if findings := Validate(res, TypeInvoice, 0.7); len(findings) != 0 {
		t.Fatalf("Validate() = %+v, want none", findings)
	}
}

func TestValidateNonFinancialTypeSkipsRequiredFields(t *testing.T) {
	t.Parallel()

	res := ExtractionResult{
		Fields: []Field{
			{FieldName: "Subject", Confidence: floatPtr(0.9)},
		},
	}
	if findings := Validate(res, TypeContract, 0.7); len(findings) != 0 {
		t.Fatalf("Validate() = %+v, want none", findings)
	}
}

func TestValidateLowConfidenceAggregatedIntoOneFinding(t *testing.T) {
	t.Parallel()

	res := ExtractionResult{
		Fields: []Field{
			{FieldName: "Total", Confidence: floatPtr(0.95)},
			{FieldName: "Date", Confidence: floatPtr(0.4)},
			{FieldName: "Vendor", Confidence: floatPtr(0.2)},
			{FieldName: "Notes"},
		},
	}
	findings := Validate(res, TypeReceipt, 0.7)
	if len(findings) != 1 {
		t.Fatalf("Validate() returned %d findings, want 1: %+v", len(findings), findings)
	}
	got := findings[0]
	if got.Field != "confidence" || got.Severity != SeverityWarning {
		t.Fatalf("confidence finding = %+v", got)
	}
	if got.Message != "Low confidence in fields: Date, Vendor" {
		t.Fatalf("confidence message = %q", got.Message)
	}
}

func TestValidateNilConfidenceNotFlagged(t *testing.T) {
	t.Parallel()

	res := ExtractionResult{
		Fields: []Field{
			{FieldName: "Total"},
			{FieldName: "Date"},
		},
	}
	if findings := Validate(res, TypeBill, 0.7); len(findings) != 0 {
		t.Fatalf("Validate() = %+v, want none", findings)
	}
}
