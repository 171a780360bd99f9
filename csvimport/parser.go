package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/utils"
)

// Aging report column headers. Optional columns may be absent; required ones
// fail format validation.
const (
	colClientID         = "Client ID"
	colClientName       = "Client Name"
	colEmailAddress     = "Email Address"
	colInvoiceNumber    = "Invoice #"
	colInvoiceDate      = "Invoice Date"
	colInvoiceAmount    = "Invoice Amount"
	colCurrent          = "Current (0-30)"
	colDays31To60       = "31-60 Days"
	colDays61To90       = "61-90 Days"
	colDays91To120      = "91-120 Days"
	colDaysOver120      = "120+ Days"
	colTotalOutstanding = "Total Outstanding"
)

var requiredColumns = []string{
	colClientID,
	colClientName,
	colInvoiceNumber,
	colInvoiceDate,
	colInvoiceAmount,
	colTotalOutstanding,
}

const invoiceDateLayout = "2006-01-02"

// ValidateFormat checks the header row for the required aging-report columns.
func ValidateFormat(headers []string) FormatValidation {
	found := make(map[string]bool, len(headers))
	cleaned := make([]string, 0, len(headers))
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		found[h] = true
		cleaned = append(cleaned, h)
	}

	result := FormatValidation{FoundColumns: cleaned, MissingColumns: []string{}}
	for _, col := range requiredColumns {
		if !found[col] {
			result.MissingColumns = append(result.MissingColumns, col)
		}
	}
	result.IsValid = len(result.MissingColumns) == 0
	return result
}

// ParseCSV reads an aging report and returns the normalized rows plus
// per-row errors. A malformed row never aborts the parse.
func ParseCSV(r io.Reader) ([]ImportRow, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %v", err)
	}
	return parseRecords(records)
}

// parseRecords converts raw rows (header first) into ImportRows. Shared by
// the CSV and XLSX readers.
func parseRecords(records [][]string) ([]ImportRow, []RowError, error) {
	if len(records) == 0 {
		return nil, nil, errors.New("file is empty")
	}

	headers := records[0]
	format := ValidateFormat(headers)
	if !format.IsValid {
		return nil, nil, fmt.Errorf("missing required columns: %s", strings.Join(format.MissingColumns, ", "))
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.TrimSpace(h)] = i
	}
	cell := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []ImportRow
	var rowErrors []RowError
	for n, record := range records[1:] {
		rowNumber := n + 2 // 1-based, after header

		rowData := map[string]string{}
		for _, h := range format.FoundColumns {
			rowData[h] = cell(record, h)
		}

		clientId := cell(record, colClientID)
		invoiceNumber := cell(record, colInvoiceNumber)
		if clientId == "" || invoiceNumber == "" {
			rowErrors = append(rowErrors, RowError{
				RowNumber:    rowNumber,
				ErrorMessage: "client id and invoice number are required",
				RowData:      rowData,
			})
			continue
		}

		row := ImportRow{
			RowNumber:        rowNumber,
			ClientID:         clientId,
			ClientName:       cell(record, colClientName),
			EmailAddress:     strings.ToLower(cell(record, colEmailAddress)),
			InvoiceNumber:    invoiceNumber,
			InvoiceAmount:    utils.ParseCurrency(cell(record, colInvoiceAmount)),
			DaysCurrent:      utils.ParseCurrency(cell(record, colCurrent)),
			Days31To60:       utils.ParseCurrency(cell(record, colDays31To60)),
			Days61To90:       utils.ParseCurrency(cell(record, colDays61To90)),
			Days91To120:      utils.ParseCurrency(cell(record, colDays91To120)),
			DaysOver120:      utils.ParseCurrency(cell(record, colDaysOver120)),
			TotalOutstanding: utils.ParseCurrency(cell(record, colTotalOutstanding)),
		}

		if raw := cell(record, colInvoiceDate); raw != "" {
			date, err := time.Parse(invoiceDateLayout, raw)
			if err != nil {
				rowErrors = append(rowErrors, RowError{
					RowNumber:    rowNumber,
					ErrorMessage: fmt.Sprintf("invalid invoice date %q (expected YYYY-MM-DD)", raw),
					RowData:      rowData,
				})
				continue
			}
			row.InvoiceDate = date
		}

		rows = append(rows, row)
	}

	return rows, rowErrors, nil
}
