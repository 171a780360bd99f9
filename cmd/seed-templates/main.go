// seed-templates loads the three default escalation email templates
// (ESCALATION_LEVEL_1..3). Safe to rerun: identifiers that already have an
// active version are left untouched.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-templates
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
)

var defaultTemplates = []models.NewEmailTemplate{
	{
		Identifier: "ESCALATION_LEVEL_1",
		Name:       "Payment Reminder (31-60 days)",
		Subject:    "Payment Reminder: {{account_name}} - {{total_outstanding}} outstanding",
		Body: `Dear {{account_name}},

This is a friendly reminder that you have {{invoice_count}} invoice(s) with an outstanding balance of {{total_outstanding}}.

{{invoice_details}}

If you have already sent payment, please disregard this notice. Otherwise, we would appreciate payment at your earliest convenience.

Thank you for your business.

Accounts Receivable
{{current_date}}`,
	},
	{
		Identifier: "ESCALATION_LEVEL_2",
		Name:       "Payment Follow-Up (61-90 days)",
		Subject:    "Second Notice: {{account_name}} account is {{oldest_invoice_days}} days past due",
		Body: `Dear {{account_name}},

Our records show {{invoice_count}} invoice(s) totaling {{total_outstanding}} remain unpaid, with the oldest now {{oldest_invoice_days}} days past due.

{{invoice_details}}

Please arrange payment within 10 business days or contact us to discuss payment options.

Accounts Receivable
{{current_date}}`,
	},
	{
		Identifier: "ESCALATION_LEVEL_3",
		Name:       "Final Notice (91+ days)",
		Subject:    "FINAL NOTICE: {{account_name}} - immediate payment required",
		Body: `Dear {{account_name}},

Despite previous reminders, {{invoice_count}} invoice(s) totaling {{total_outstanding}} remain unpaid. The oldest invoice is now {{oldest_invoice_days}} days past due.

{{invoice_details}}

Payment must be received within 5 business days to avoid referral of this account to collections. If you believe this notice is in error, contact us immediately.

Accounts Receivable
{{current_date}}`,
	},
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	for _, input := range defaultTemplates {
		input := input

		if existing, err := models.GetActiveTemplate(ctx, input.Identifier); err == nil {
			fmt.Printf("Skipping %s: active version %d already exists\n", existing.Identifier, existing.Version)
			continue
		} else if !errors.Is(err, utils.ErrorRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to check %s: %v\n", input.Identifier, err)
			os.Exit(1)
		}

		template, err := models.CreateEmailTemplate(ctx, &input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed %s: %v\n", input.Identifier, err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %s version %d (%s)\n", template.Identifier, template.Version, template.Name)
	}
}
