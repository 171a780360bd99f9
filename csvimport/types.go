package csvimport

import (
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"github.com/shopspring/decimal"
)

// ImportRow is one normalized aging-report row ready for persistence.
type ImportRow struct {
	RowNumber        int
	ClientID         string
	ClientName       string
	EmailAddress     string
	InvoiceNumber    string
	InvoiceDate      time.Time
	InvoiceAmount    decimal.Decimal
	DaysCurrent      decimal.Decimal
	Days31To60       decimal.Decimal
	Days61To90       decimal.Decimal
	Days91To120      decimal.Decimal
	DaysOver120      decimal.Decimal
	TotalOutstanding decimal.Decimal
}

type RowError struct {
	RowNumber    int               `json:"row_number"`
	ErrorMessage string            `json:"error_message"`
	RowData      map[string]string `json:"row_data,omitempty"`
}

type ImportResult struct {
	Success               bool                            `json:"success"`
	TotalRows             int                             `json:"total_rows"`
	SuccessfulRows        int                             `json:"successful_rows"`
	FailedRows            int                             `json:"failed_rows"`
	AccountsCreated       int                             `json:"accounts_created"`
	ContactsCreated       int                             `json:"contacts_created"`
	InvoicesCreated       int                             `json:"invoices_created"`
	InvoicesUpdated       int                             `json:"invoices_updated"`
	AgingSnapshotsCreated int                             `json:"aging_snapshots_created"`
	ContactReadyClients   []escalation.ContactReadyClient `json:"contact_ready_clients"`
	Errors                []RowError                      `json:"errors"`
	ProcessingTimeSeconds float64                         `json:"processing_time_seconds"`
}

type FormatValidation struct {
	IsValid        bool     `json:"is_valid"`
	MissingColumns []string `json:"missing_columns"`
	FoundColumns   []string `json:"found_columns"`
}
