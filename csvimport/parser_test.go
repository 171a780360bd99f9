package csvimport

import (
	"strings"
	"testing"
	"time"
)

const sampleHeader = "Client ID,Client Name,Email Address,Invoice #,Invoice Date,Invoice Amount,Current (0-30),31-60 Days,61-90 Days,91-120 Days,120+ Days,Total Outstanding"

func TestParseCSVHappyPath(t *testing.T) {
	data := sampleHeader + "\n" +
		`C-001,Acme Corp,ap@acme.com,INV-100,2026-01-15,"$2,500.00",$0.00,"$2,500.00",$0.00,$0.00,$0.00,"$2,500.00"` + "\n" +
		"C-001,Acme Corp,ap@acme.com,INV-101,2026-03-01,$500.00,$500.00,$0.00,$0.00,$0.00,$0.00,$500.00\n"

	rows, rowErrors, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("row errors: %v", rowErrors)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	r := rows[0]
	if r.ClientID != "C-001" || r.ClientName != "Acme Corp" {
		t.Errorf("client fields = %q/%q", r.ClientID, r.ClientName)
	}
	if r.EmailAddress != "ap@acme.com" {
		t.Errorf("email = %q", r.EmailAddress)
	}
	if r.InvoiceNumber != "INV-100" {
		t.Errorf("invoice number = %q", r.InvoiceNumber)
	}
	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !r.InvoiceDate.Equal(want) {
		t.Errorf("invoice date = %s, want %s", r.InvoiceDate, want)
	}
	if r.Days31To60.String() != "2500" {
		t.Errorf("31-60 bucket = %s, want 2500 (currency symbols stripped)", r.Days31To60)
	}
	if r.TotalOutstanding.String() != "2500" {
		t.Errorf("total outstanding = %s, want 2500", r.TotalOutstanding)
	}
}

func TestParseCSVRowNumbersAndRequiredFields(t *testing.T) {
	data := sampleHeader + "\n" +
		",Acme Corp,ap@acme.com,INV-100,2026-01-15,$100,$100,$0,$0,$0,$0,$100\n" +
		"C-002,Beta Inc,,,2026-01-15,$100,$100,$0,$0,$0,$0,$100\n" +
		"C-003,Good Co,ar@good.co,INV-200,2026-01-15,$100,$100,$0,$0,$0,$0,$100\n"

	rows, rowErrors, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if len(rowErrors) != 2 {
		t.Fatalf("row errors = %d, want 2", len(rowErrors))
	}
	// header is row 1
	if rowErrors[0].RowNumber != 2 || rowErrors[1].RowNumber != 3 {
		t.Errorf("error row numbers = %d/%d, want 2/3", rowErrors[0].RowNumber, rowErrors[1].RowNumber)
	}
	if rows[0].RowNumber != 4 {
		t.Errorf("surviving row number = %d, want 4", rows[0].RowNumber)
	}
}

func TestParseCSVBadDate(t *testing.T) {
	data := sampleHeader + "\n" +
		"C-001,Acme Corp,ap@acme.com,INV-100,15/01/2026,$100,$100,$0,$0,$0,$0,$100\n"

	rows, rowErrors, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
	if len(rowErrors) != 1 {
		t.Fatalf("row errors = %d, want 1", len(rowErrors))
	}
	if !strings.Contains(rowErrors[0].ErrorMessage, "invoice date") {
		t.Errorf("unexpected error message %q", rowErrors[0].ErrorMessage)
	}
}

func TestParseCSVUnparseableAmountsDefaultToZero(t *testing.T) {
	data := sampleHeader + "\n" +
		"C-001,Acme Corp,ap@acme.com,INV-100,2026-01-15,not-money,abc,$0,$0,$0,$0,$100\n"

	rows, rowErrors, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("row errors: %v", rowErrors)
	}
	if !rows[0].InvoiceAmount.IsZero() || !rows[0].DaysCurrent.IsZero() {
		t.Error("unparseable amounts should default to zero, not fail the row")
	}
}

func TestParseCSVMissingColumns(t *testing.T) {
	data := "Client ID,Client Name,Email Address\nC-001,Acme Corp,ap@acme.com\n"

	_, _, err := ParseCSV(strings.NewReader(data))
	if err == nil {
		t.Fatal("expected error for missing required columns")
	}
	if !strings.Contains(err.Error(), "Invoice #") {
		t.Errorf("error should name the missing column, got %q", err.Error())
	}
}

func TestValidateFormat(t *testing.T) {
	v := ValidateFormat(strings.Split(sampleHeader, ","))
	if !v.IsValid {
		t.Fatalf("full header flagged invalid: %v", v.MissingColumns)
	}

	v = ValidateFormat([]string{"Client ID", "Client Name", "Invoice #"})
	if v.IsValid {
		t.Fatal("partial header flagged valid")
	}
	want := []string{"Invoice Date", "Invoice Amount", "Total Outstanding"}
	if len(v.MissingColumns) != len(want) {
		t.Fatalf("missing columns = %v, want %v", v.MissingColumns, want)
	}
	for i, col := range want {
		if v.MissingColumns[i] != col {
			t.Errorf("missing[%d] = %q, want %q", i, v.MissingColumns[i], col)
		}
	}
}

func TestImportTemplateHeaders(t *testing.T) {
	f, err := ImportTemplate()
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("template rows = %d, want 1 header row", len(rows))
	}

	v := ValidateFormat(rows[0])
	if !v.IsValid {
		t.Fatalf("template header fails its own validation: %v", v.MissingColumns)
	}
}
