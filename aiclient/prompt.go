package aiclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
)

const (
	minSubjectLength = 5
	minBodyLength    = 50
)

// buildSystemPrompt assembles the drafting instructions with every active
// escalation template inlined as a style guide.
func buildSystemPrompt(templates map[string]*models.EmailTemplate) string {
	identifiers := make([]string, 0, len(templates))
	for id := range templates {
		identifiers = append(identifiers, id)
	}
	sort.Strings(identifiers)

	var b strings.Builder
	b.WriteString("You are a professional accounts-receivable specialist drafting collection emails.\n")
	b.WriteString("For each account in the user message, draft one email using the template matching the account's template_used field.\n\n")
	b.WriteString("Available templates:\n")
	for _, id := range identifiers {
		t := templates[id]
		fmt.Fprintf(&b, "\n--- %s (version %d) ---\nSubject: %s\nBody:\n%s\n", t.Identifier, t.Version, t.Subject, t.Body)
	}
	b.WriteString("\nTemplate placeholders to fill from account data: ")
	b.WriteString("{{account_name}}, {{total_outstanding}}, {{invoice_count}}, {{oldest_invoice_days}}, {{invoice_details}}, {{current_date}}.\n")
	fmt.Fprintf(&b, "Current date: %s.\n\n", time.Now().Format("2006-01-02"))
	b.WriteString("Rules:\n")
	b.WriteString("- Respond with a JSON array only, no prose before or after.\n")
	b.WriteString("- Each element: {\"account\", \"email_address\", \"email_subject\", \"email_body\"}.\n")
	b.WriteString("- Keep the tone of the matched template; firmer for higher escalation degrees.\n")
	b.WriteString("- Include the exact outstanding amounts and invoice numbers provided.\n")
	b.WriteString("- Never invent amounts, dates or invoice numbers.\n")
	return b.String()
}

// promptAccount is the drafting payload view of an eligible contact. Amounts
// are pre-formatted so the model copies "$3,000.00" instead of a raw decimal.
type promptAccount struct {
	Account           string          `json:"account"`
	EmailAddress      string          `json:"email_address"`
	EscalationDegree  int             `json:"escalation_degree"`
	TemplateUsed      string          `json:"template_used"`
	InvoiceCount      int             `json:"invoice_count"`
	TotalOutstanding  string          `json:"total_outstanding"`
	OldestInvoiceDays int             `json:"oldest_invoice_days"`
	Invoices          []promptInvoice `json:"invoices"`
}

type promptInvoice struct {
	InvoiceNumber string `json:"invoice_number"`
	Outstanding   string `json:"outstanding"`
	DaysOverdue   int    `json:"days_overdue"`
	AgingBucket   string `json:"aging_bucket"`
}

// buildUserMessage serializes the eligible contacts as the drafting payload.
func buildUserMessage(contacts []escalation.EligibleContact) (string, error) {
	accounts := make([]promptAccount, 0, len(contacts))
	for _, c := range contacts {
		invoices := make([]promptInvoice, 0, len(c.InvoiceDetails))
		for _, inv := range c.InvoiceDetails {
			invoices = append(invoices, promptInvoice{
				InvoiceNumber: inv.InvoiceNumber,
				Outstanding:   utils.FormatCurrency(inv.TotalOutstanding),
				DaysOverdue:   inv.DaysOverdue,
				AgingBucket:   inv.AgingBucket,
			})
		}
		accounts = append(accounts, promptAccount{
			Account:           c.Account,
			EmailAddress:      c.EmailAddress,
			EscalationDegree:  c.EscalationDegree,
			TemplateUsed:      c.TemplateUsed,
			InvoiceCount:      c.InvoiceCount,
			TotalOutstanding:  utils.FormatCurrency(c.TotalOutstanding),
			OldestInvoiceDays: c.OldestInvoiceDays,
			Invoices:          invoices,
		})
	}

	payload, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return "", err
	}
	return "Draft collection emails for these accounts:\n" + string(payload), nil
}

// stripCodeFences removes a ```json ... ``` wrapper if the model added one.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// ParseGeneratedEmails extracts the drafted emails from a model response.
// Malformed items are dropped rather than failing the whole batch; the
// second return value counts the drops.
func ParseGeneratedEmails(text string) ([]escalation.GeneratedEmail, int) {
	cleaned := stripCodeFences(text)

	// tolerate prose around the array
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end < start {
		return nil, 0
	}
	cleaned = cleaned[start : end+1]

	var raw []escalation.GeneratedEmail
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, 0
	}

	var emails []escalation.GeneratedEmail
	dropped := 0
	for _, e := range raw {
		if !usableDraft(e) {
			dropped++
			continue
		}
		emails = append(emails, e)
	}
	return emails, dropped
}

func usableDraft(e escalation.GeneratedEmail) bool {
	if strings.TrimSpace(e.Account) == "" || strings.TrimSpace(e.EmailAddress) == "" {
		return false
	}
	if !strings.Contains(e.EmailAddress, "@") {
		return false
	}
	if len(strings.TrimSpace(e.EmailSubject)) < minSubjectLength {
		return false
	}
	if len(strings.TrimSpace(e.EmailBody)) < minBodyLength {
		return false
	}
	return true
}
