package aiclient

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"github.com/shopspring/decimal"
)

const longBody = "Dear customer, our records show an outstanding balance on your account. Please arrange payment at your earliest convenience to avoid further escalation."

func TestParseGeneratedEmailsPlainArray(t *testing.T) {
	text := `[{"account":"Acme Corp","email_address":"ap@acme.com","email_subject":"Payment reminder","email_body":"` + longBody + `"}]`

	emails, dropped := ParseGeneratedEmails(text)
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(emails) != 1 {
		t.Fatalf("emails = %d, want 1", len(emails))
	}
	if emails[0].Account != "Acme Corp" {
		t.Errorf("account = %q", emails[0].Account)
	}
}

func TestParseGeneratedEmailsCodeFenced(t *testing.T) {
	text := "```json\n[{\"account\":\"Acme Corp\",\"email_address\":\"ap@acme.com\",\"email_subject\":\"Payment reminder\",\"email_body\":\"" + longBody + "\"}]\n```"

	emails, _ := ParseGeneratedEmails(text)
	if len(emails) != 1 {
		t.Fatalf("emails = %d, want 1 (code fence should be stripped)", len(emails))
	}
}

func TestParseGeneratedEmailsSurroundingProse(t *testing.T) {
	text := "Here are the drafted emails:\n[{\"account\":\"Acme Corp\",\"email_address\":\"ap@acme.com\",\"email_subject\":\"Payment reminder\",\"email_body\":\"" + longBody + "\"}]\nLet me know if you need changes."

	emails, _ := ParseGeneratedEmails(text)
	if len(emails) != 1 {
		t.Fatalf("emails = %d, want 1 (prose around array should be tolerated)", len(emails))
	}
}

func TestParseGeneratedEmailsDropsMalformed(t *testing.T) {
	text := `[
		{"account":"Good Corp","email_address":"ok@good.com","email_subject":"Payment reminder","email_body":"` + longBody + `"},
		{"account":"","email_address":"x@y.com","email_subject":"Payment reminder","email_body":"` + longBody + `"},
		{"account":"No At","email_address":"not-an-email","email_subject":"Payment reminder","email_body":"` + longBody + `"},
		{"account":"Short Subject","email_address":"a@b.com","email_subject":"Hi","email_body":"` + longBody + `"},
		{"account":"Short Body","email_address":"a@b.com","email_subject":"Payment reminder","email_body":"too short"}
	]`

	emails, dropped := ParseGeneratedEmails(text)
	if len(emails) != 1 {
		t.Fatalf("emails = %d, want 1", len(emails))
	}
	if dropped != 4 {
		t.Fatalf("dropped = %d, want 4", dropped)
	}
	if emails[0].Account != "Good Corp" {
		t.Errorf("surviving account = %q, want Good Corp", emails[0].Account)
	}
}

func TestParseGeneratedEmailsGarbage(t *testing.T) {
	emails, dropped := ParseGeneratedEmails("I could not produce any emails today.")
	if emails != nil || dropped != 0 {
		t.Fatalf("got %v/%d, want nil/0 for garbage input", emails, dropped)
	}

	emails, _ = ParseGeneratedEmails("[{broken json")
	if emails != nil {
		t.Fatalf("got %v, want nil for broken json", emails)
	}
}

func TestBuildSystemPromptListsTemplates(t *testing.T) {
	templates := map[string]*models.EmailTemplate{
		"ESCALATION_LEVEL_2": {
			Identifier: "ESCALATION_LEVEL_2",
			Version:    3,
			Subject:    "Follow-up on {{account_name}}",
			Body:       "Your balance of {{total_outstanding}} is overdue.",
			IsActive:   utils.NewTrue(),
		},
	}

	prompt := buildSystemPrompt(templates)

	if !strings.Contains(prompt, "ESCALATION_LEVEL_2 (version 3)") {
		t.Error("template header missing from prompt")
	}
	if !strings.Contains(prompt, "Follow-up on {{account_name}}") {
		t.Error("template subject missing from prompt")
	}
	if !strings.Contains(prompt, "{{oldest_invoice_days}}") {
		t.Error("placeholder contract missing from prompt")
	}
	if !strings.Contains(prompt, "JSON array only") {
		t.Error("output format rule missing from prompt")
	}
}

func TestBuildUserMessageCarriesContactData(t *testing.T) {
	contacts := []escalation.EligibleContact{
		{
			Account:           "Acme Corp",
			EmailAddress:      "ap@acme.com",
			EscalationDegree:  1,
			TemplateUsed:      "ESCALATION_LEVEL_1",
			InvoiceCount:      1,
			TotalOutstanding:  decimal.NewFromInt(3000),
			OldestInvoiceDays: 45,
			InvoiceDetails: []escalation.InvoiceDetail{
				{InvoiceNumber: "INV-100", TotalOutstanding: decimal.NewFromInt(3000), DaysOverdue: 45, AgingBucket: "31-60"},
			},
		},
	}

	msg, err := buildUserMessage(contacts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "Acme Corp") || !strings.Contains(msg, "ESCALATION_LEVEL_1") {
		t.Error("contact data missing from user message")
	}
	if !strings.Contains(msg, `"$3,000.00"`) {
		t.Error("formatted outstanding amount missing from user message")
	}
	if !strings.Contains(msg, "INV-100") {
		t.Error("invoice number missing from user message")
	}
}
