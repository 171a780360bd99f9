package escalation

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"github.com/shopspring/decimal"
)

// AgingSnapshot is the point-in-time bucket breakdown of one invoice balance,
// detached from persistence so classification stays a pure computation.
type AgingSnapshot struct {
	InvoiceId        int             `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceDate      time.Time       `json:"invoice_date"`
	SnapshotDate     time.Time       `json:"snapshot_date"`
	DaysCurrent      decimal.Decimal `json:"days_current"`
	Days31To60       decimal.Decimal `json:"days_31_60"`
	Days61To90       decimal.Decimal `json:"days_61_90"`
	Days91To120      decimal.Decimal `json:"days_91_120"`
	DaysOver120      decimal.Decimal `json:"days_over_120"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

// ContactReadyClient is the account-level aggregation handed to batch
// processing. Rebuilt fresh on every aggregation call, never stored.
type ContactReadyClient struct {
	ClientID         string          `json:"client_id"`
	AccountName      string          `json:"account_name"`
	EmailAddress     string          `json:"email_address"`
	Snapshots        []AgingSnapshot `json:"aging_snapshots"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	DncStatus        bool            `json:"dnc_status"`
}

type InvoiceDetail struct {
	InvoiceId        int             `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceAmount    decimal.Decimal `json:"invoice_amount"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	DaysOverdue      int             `json:"days_overdue"`
	AgingBucket      string          `json:"aging_bucket"`
}

type AgingSummary struct {
	DaysCurrent decimal.Decimal `json:"days_current"`
	Days31To60  decimal.Decimal `json:"days_31_60"`
	Days61To90  decimal.Decimal `json:"days_61_90"`
	Days91To120 decimal.Decimal `json:"days_91_120"`
	DaysOver120 decimal.Decimal `json:"days_over_120"`
	Total       decimal.Decimal `json:"total"`
}

// EscalationResult is the per-account outcome of one batch run.
type EscalationResult struct {
	Account          string          `json:"account"`
	EmailAddress     string          `json:"email_address"`
	EmailSubject     string          `json:"email_subject"`
	EmailBody        string          `json:"email_body"`
	EscalationDegree int             `json:"escalation_degree"`
	Reason           string          `json:"reason"`
	TemplateUsed     string          `json:"template_used"`
	InvoiceCount     int             `json:"invoice_count"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	InvoiceDetails   []InvoiceDetail `json:"invoice_details"`
	AgingSummary     AgingSummary    `json:"aging_summary"`
	EmailSent        bool            `json:"email_sent"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	MessageId        string          `json:"message_id,omitempty"`
	SendError        string          `json:"send_error,omitempty"`
}

type BatchRequest struct {
	Contacts     []ContactReadyClient `json:"contacts" binding:"required"`
	SendEmails   bool                 `json:"send_emails"`
	Preview      bool                 `json:"preview"`
	BatchSize    int                  `json:"batch_size"`
	RetryEnabled *bool                `json:"retry_enabled"`
}

type BatchResponse struct {
	Success               bool                 `json:"success"`
	ProcessedCount        int                  `json:"processed_count"`
	EmailsGenerated       int                  `json:"emails_generated"`
	SkippedCount          int                  `json:"skipped_count"`
	EscalationResults     []EscalationResult   `json:"escalation_results"`
	SkippedReasons        map[string]int       `json:"skipped_reasons"`
	EmailSendingSummary   *EmailSendingSummary `json:"email_sending_summary,omitempty"`
	EmailSendingDetails   []EmailSendingDetail `json:"email_sending_details"`
	ProcessingTimeSeconds float64              `json:"processing_time_seconds"`
	Errors                []string             `json:"errors"`
}

type EmailSendingSummary struct {
	TotalAttempts       int     `json:"total_attempts"`
	SuccessfulSends     int     `json:"successful_sends"`
	FailedSends         int     `json:"failed_sends"`
	RetryAttempts       int     `json:"retry_attempts"`
	SendDurationSeconds float64 `json:"send_duration_seconds"`
}

type EmailSendingDetail struct {
	Account           string          `json:"account"`
	EmailAddress      string          `json:"email_address"`
	Sent              bool            `json:"sent"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	MessageId         string          `json:"message_id,omitempty"`
	Subject           string          `json:"subject"`
	Error             string          `json:"error,omitempty"`
	EscalationDegree  int             `json:"escalation_degree"`
	TemplateUsed      string          `json:"template_used"`
	InvoiceCount      int             `json:"invoice_count"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	OldestInvoiceDays int             `json:"oldest_invoice_days"`
	Invoices          []InvoiceDetail `json:"invoices"`
	AgingSummary      AgingSummary    `json:"aging_summary"`
}

type ValidationError struct {
	AccountName  string `json:"account_name"`
	Field        string `json:"field"`
	ErrorMessage string `json:"error_message"`
}

type ValidationResponse struct {
	IsValid          bool              `json:"is_valid"`
	ValidationErrors []ValidationError `json:"validation_errors"`
	ValidAccounts    int               `json:"valid_accounts"`
	InvalidAccounts  int               `json:"invalid_accounts"`
}

// EscalationStats is the dry analysis of a batch without generating emails.
type EscalationStats struct {
	TotalAccounts    int             `json:"total_accounts"`
	Degree0Count     int             `json:"degree_0_count"`
	Degree1Count     int             `json:"degree_1_count"`
	Degree2Count     int             `json:"degree_2_count"`
	Degree3Count     int             `json:"degree_3_count"`
	DncCount         int             `json:"dnc_count"`
	NoEmailCount     int             `json:"no_email_count"`
	ProcessableCount int             `json:"processable_count"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

type DegreeInfo struct {
	Degree      int    `json:"degree"`
	Bucket      string `json:"bucket"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// EligibleContact carries everything the email generator needs for one
// account that passed classification.
type EligibleContact struct {
	Account           string          `json:"account"`
	EmailAddress      string          `json:"email_address"`
	EscalationDegree  int             `json:"escalation_degree"`
	Reason            string          `json:"reason"`
	TemplateUsed      string          `json:"template_used"`
	InvoiceCount      int             `json:"invoice_count"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	OldestInvoiceDays int             `json:"oldest_invoice_days"`
	InvoiceDetails    []InvoiceDetail `json:"invoice_details"`
	AgingSummary      AgingSummary    `json:"aging_summary"`
}

// GeneratedEmail is one drafted email returned by the generator.
type GeneratedEmail struct {
	Account      string `json:"account"`
	EmailAddress string `json:"email_address"`
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
}

// TemplateSource supplies the active escalation templates for a batch run.
type TemplateSource interface {
	ListEscalationTemplates(ctx context.Context) (map[string]*models.EmailTemplate, error)
}

// EmailGenerator drafts collection emails for eligible contacts.
type EmailGenerator interface {
	GenerateEmails(ctx context.Context, contacts []EligibleContact, templates map[string]*models.EmailTemplate) ([]GeneratedEmail, error)
}

// EmailSender delivers one drafted email and returns the provider message id.
type EmailSender interface {
	Send(ctx context.Context, to string, subject string, body string) (string, error)
}
