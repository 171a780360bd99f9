package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/csvimport"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const maxUploadBytes = 20 << 20 // 20 MiB

func readUpload(c *gin.Context) (string, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("file is required: %v", err)
	}
	if fileHeader.Size > maxUploadBytes {
		return "", nil, fmt.Errorf("file exceeds the %d MB upload limit", maxUploadBytes>>20)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return "", nil, err
	}
	if len(data) > maxUploadBytes {
		return "", nil, fmt.Errorf("file exceeds the %d MB upload limit", maxUploadBytes>>20)
	}
	return fileHeader.Filename, data, nil
}

func parseUpload(filename string, data []byte) ([]csvimport.ImportRow, []csvimport.RowError, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return csvimport.ParseXLSX(bytes.NewReader(data))
	default:
		return csvimport.ParseCSV(bytes.NewReader(data))
	}
}

// POST /api/v1/csv-import/upload
func csvUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := config.GetLogger()

		filename, data, err := readUpload(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rows, rowErrors, err := parseUpload(filename, data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// one import at a time; concurrent runs would race snapshot appends
		release, err := utils.ProcessLock(ctx, "Import", "aging-report", 10*time.Minute, "main", "csvUploadHandler")
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "another import is already running"})
			return
		}
		defer release()

		// archive the raw upload before touching the database (best-effort)
		objectName := fmt.Sprintf("aging-reports/%s_%s", utils.GenerateUniqueFilename(), filepath.Base(filename))
		contentType := "text/csv"
		if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
		if err := utils.ArchiveFileToGCS(ctx, objectName, data, contentType); err != nil {
			logger.Warn("aging report archive skipped: " + err.Error())
		}

		result := csvimport.Import(ctx, rows, rowErrors)

		status := http.StatusOK
		if !result.Success && result.SuccessfulRows == 0 {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, result)
	}
}

const csvTemplateBody = `Client ID,Client Name,Email Address,Invoice #,Invoice Date,Invoice Amount,Current (0-30),31-60 Days,61-90 Days,91-120 Days,120+ Days,Total Outstanding
C001001,Bright Horizon Manufacturing,accounting@brighthorizonmfg.com,INV-2024-1001,2025-07-13,"$23,264.00","$23,264.00",$0.00,$0.00,$0.00,$0.00,"$23,264.00"
C001002,Legacy Manufacturing Inc,,INV-2024-1002,2024-12-31,"$23,605.00",$0.00,$0.00,$0.00,$0.00,"$23,605.00","$23,605.00"
C001003,Sunrise Retail Co.,billing@sunriseretail.com,INV-2024-1003,2025-07-02,"$3,904.00","$3,904.00",$0.00,$0.00,$0.00,$0.00,"$3,904.00"
`

// GET /api/v1/csv-import/template?format=csv|xlsx
func csvTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.DefaultQuery("format", "csv") == "xlsx" {
			f, err := csvimport.ImportTemplate()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			defer f.Close()

			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			c.Header("Content-Disposition", `attachment; filename="invoice_aging_template.xlsx"`)
			if err := f.Write(c.Writer); err != nil {
				_ = c.Error(err)
			}
			return
		}

		c.Header("Content-Disposition", `attachment; filename="invoice_aging_template.csv"`)
		c.Data(http.StatusOK, "text/csv", []byte(csvTemplateBody))
	}
}

// POST /api/v1/csv-import/validate
// Checks only the header row; nothing is persisted.
func csvValidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filename, data, err := readUpload(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		headers, err := uploadHeaders(filename, data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, csvimport.ValidateFormat(headers))
	}
}

func uploadHeaders(filename string, data []byte) ([]string, error) {
	if ext := strings.ToLower(filepath.Ext(filename)); ext == ".xlsx" || ext == ".xls" {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %v", err)
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("workbook has no header row")
		}
		return rows[0], nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %v", err)
	}
	return headers, nil
}
