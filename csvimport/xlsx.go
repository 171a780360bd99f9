package csvimport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads an aging report workbook; the first sheet must carry the
// same columns as the CSV layout.
func ParseXLSX(r io.Reader) ([]ImportRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %v", sheets[0], err)
	}

	return parseRecords(records)
}

// ImportTemplate builds an empty workbook with the expected header row for
// download from the template endpoint.
func ImportTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		colClientID, colClientName, colEmailAddress,
		colInvoiceNumber, colInvoiceDate, colInvoiceAmount,
		colCurrent, colDays31To60, colDays61To90,
		colDays91To120, colDaysOver120, colTotalOutstanding,
	}
	for i, h := range headers {
		name, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, name, h); err != nil {
			return nil, err
		}
	}
	return f, nil
}
