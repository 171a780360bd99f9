package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
)

type fakeTemplates struct {
	templates map[string]*models.EmailTemplate
	err       error
}

func (f fakeTemplates) ListEscalationTemplates(ctx context.Context) (map[string]*models.EmailTemplate, error) {
	return f.templates, f.err
}

type fakeGenerator struct {
	err  error
	skip map[string]bool
}

func (f fakeGenerator) GenerateEmails(ctx context.Context, contacts []EligibleContact, templates map[string]*models.EmailTemplate) ([]GeneratedEmail, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []GeneratedEmail
	for _, c := range contacts {
		if f.skip[c.Account] {
			continue
		}
		out = append(out, GeneratedEmail{
			Account:      c.Account,
			EmailAddress: c.EmailAddress,
			EmailSubject: "Payment reminder for " + c.Account,
			EmailBody:    "Dear " + c.Account + ", please settle your outstanding balance at your earliest convenience.",
		})
	}
	return out, nil
}

type fakeSender struct {
	mu        sync.Mutex
	calls     int
	failTimes map[string]int
}

func (f *fakeSender) Send(ctx context.Context, to string, subject string, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failTimes != nil && f.failTimes[to] > 0 {
		f.failTimes[to]--
		return "", errors.New("smtp unavailable")
	}
	return fmt.Sprintf("msg-%d", f.calls), nil
}

func escalationTemplates() map[string]*models.EmailTemplate {
	templates := make(map[string]*models.EmailTemplate)
	for degree := 1; degree <= 3; degree++ {
		id := fmt.Sprintf("ESCALATION_LEVEL_%d", degree)
		templates[id] = &models.EmailTemplate{
			Identifier: id,
			Version:    1,
			Subject:    "Reminder {{account_name}}",
			Body:       "You owe {{total_outstanding}}.",
			IsActive:   utils.NewTrue(),
		}
	}
	return templates
}

func eligibleContact(name string, email string, d31 string) ContactReadyClient {
	return Aggregate("C-"+name, name, email, []AgingSnapshot{
		snapshotWith("0", d31, "0", "0", "0"),
	})
}

func newTestProcessor(templates fakeTemplates, generator fakeGenerator, sender EmailSender) *Processor {
	return NewProcessor(templates, generator, sender, nil, nil)
}

func TestProcessBatchMixed(t *testing.T) {
	var contacts []ContactReadyClient
	// 3 dnc (no email), 2 degree-0 (email present), 5 eligible
	for i := 0; i < 3; i++ {
		contacts = append(contacts, Aggregate(fmt.Sprintf("C-D%d", i), fmt.Sprintf("Dnc %d", i), "", []AgingSnapshot{
			snapshotWith("0", "0", "0", "0", "1000"),
		}))
	}
	for i := 0; i < 2; i++ {
		contacts = append(contacts, Aggregate(fmt.Sprintf("C-Z%d", i), fmt.Sprintf("Zero %d", i), "z@example.com", []AgingSnapshot{
			snapshotWith("500", "0", "0", "0", "0"),
		}))
	}
	for i := 0; i < 5; i++ {
		contacts = append(contacts, eligibleContact(fmt.Sprintf("Eligible %d", i), "e@example.com", "750"))
	}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, nil)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{Contacts: contacts})

	if !resp.Success {
		t.Fatalf("success = false, errors: %v", resp.Errors)
	}
	if resp.ProcessedCount != 10 {
		t.Errorf("processed_count = %d, want 10", resp.ProcessedCount)
	}
	if resp.SkippedCount != 5 {
		t.Errorf("skipped_count = %d, want 5", resp.SkippedCount)
	}
	if resp.SkippedReasons[SkipReasonDnc] != 3 {
		t.Errorf("dnc_status skips = %d, want 3", resp.SkippedReasons[SkipReasonDnc])
	}
	if resp.SkippedReasons[SkipReasonDegree0] != 2 {
		t.Errorf("degree_0 skips = %d, want 2", resp.SkippedReasons[SkipReasonDegree0])
	}
	if resp.EmailsGenerated != 5 {
		t.Errorf("emails_generated = %d, want 5", resp.EmailsGenerated)
	}
	if len(resp.EscalationResults) != 5 {
		t.Fatalf("escalation_results = %d, want 5", len(resp.EscalationResults))
	}
	// input order preserved
	for i, r := range resp.EscalationResults {
		want := fmt.Sprintf("Eligible %d", i)
		if r.Account != want {
			t.Errorf("result %d account = %q, want %q", i, r.Account, want)
		}
	}
	if resp.ProcessingTimeSeconds < 0 {
		t.Error("processing_time_seconds is negative")
	}
}

func TestProcessBatchSkipsFlaggedDncWithEmail(t *testing.T) {
	// do-not-contact wins even when the account has an address and overdue
	// invoices that would otherwise classify at degree 2
	flagged := Aggregate("C-F", "Flagged Corp", "ap@flagged.com", []AgingSnapshot{
		snapshotWith("0", "0", "700", "0", "0"),
	})
	flagged.DncStatus = true
	contacts := []ContactReadyClient{
		flagged,
		eligibleContact("Acme Corp", "ap@acme.com", "2500"),
	}

	sender := &fakeSender{}
	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, sender)
	retry := false
	resp := p.ProcessBatch(context.Background(), &BatchRequest{
		Contacts:     contacts,
		SendEmails:   true,
		RetryEnabled: &retry,
	})

	if resp.SkippedReasons[SkipReasonDnc] != 1 {
		t.Errorf("dnc_status skips = %d, want 1", resp.SkippedReasons[SkipReasonDnc])
	}
	if resp.EmailsGenerated != 1 {
		t.Errorf("emails_generated = %d, want 1", resp.EmailsGenerated)
	}
	for _, r := range resp.EscalationResults {
		if r.Account == "Flagged Corp" {
			t.Fatal("do-not-contact account was drafted an email")
		}
	}
	if sender.calls != 1 {
		t.Errorf("sender called %d times, want 1 (eligible account only)", sender.calls)
	}
}

func TestProcessBatchResponseRoundTrip(t *testing.T) {
	var contacts []ContactReadyClient
	contacts = append(contacts, Aggregate("C-D0", "Ghost LLC", "", []AgingSnapshot{
		snapshotWith("0", "0", "0", "0", "10000"),
	}))
	contacts = append(contacts, Aggregate("C-Z0", "Fresh Co", "billing@fresh.co", []AgingSnapshot{
		snapshotWith("500", "0", "0", "0", "0"),
	}))
	for i := 0; i < 3; i++ {
		contacts = append(contacts, eligibleContact(fmt.Sprintf("Eligible %d", i), "e@example.com", "750"))
	}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, nil)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{Contacts: contacts})

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var decoded BatchResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Success != resp.Success {
		t.Errorf("success = %v, want %v", decoded.Success, resp.Success)
	}
	if decoded.ProcessedCount != resp.ProcessedCount {
		t.Errorf("processed_count = %d, want %d", decoded.ProcessedCount, resp.ProcessedCount)
	}
	if decoded.EmailsGenerated != resp.EmailsGenerated {
		t.Errorf("emails_generated = %d, want %d", decoded.EmailsGenerated, resp.EmailsGenerated)
	}
	if decoded.SkippedCount != resp.SkippedCount {
		t.Errorf("skipped_count = %d, want %d", decoded.SkippedCount, resp.SkippedCount)
	}
	if len(decoded.SkippedReasons) != len(resp.SkippedReasons) {
		t.Fatalf("skipped_reasons = %v, want %v", decoded.SkippedReasons, resp.SkippedReasons)
	}
	for reason, n := range resp.SkippedReasons {
		if decoded.SkippedReasons[reason] != n {
			t.Errorf("skipped_reasons[%s] = %d, want %d", reason, decoded.SkippedReasons[reason], n)
		}
	}
	if len(decoded.EscalationResults) != len(resp.EscalationResults) {
		t.Fatalf("escalation_results = %d, want %d", len(decoded.EscalationResults), len(resp.EscalationResults))
	}
	for i, want := range resp.EscalationResults {
		got := decoded.EscalationResults[i]
		if got.Account != want.Account {
			t.Errorf("result %d account = %q, want %q (order must survive round trip)", i, got.Account, want.Account)
		}
		if got.EscalationDegree != want.EscalationDegree {
			t.Errorf("result %d degree = %d, want %d", i, got.EscalationDegree, want.EscalationDegree)
		}
		if !got.TotalOutstanding.Equal(want.TotalOutstanding) {
			t.Errorf("result %d total_outstanding = %s, want %s", i, got.TotalOutstanding, want.TotalOutstanding)
		}
		if !got.AgingSummary.Total.Equal(want.AgingSummary.Total) {
			t.Errorf("result %d aging summary total = %s, want %s", i, got.AgingSummary.Total, want.AgingSummary.Total)
		}
	}
}

func TestProcessBatchResultShape(t *testing.T) {
	contacts := []ContactReadyClient{
		eligibleContact("Acme Corp", "ap@acme.com", "2500"),
	}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, nil)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{Contacts: contacts})

	if len(resp.EscalationResults) != 1 {
		t.Fatalf("escalation_results = %d, want 1", len(resp.EscalationResults))
	}
	r := resp.EscalationResults[0]
	if r.EscalationDegree != 1 {
		t.Errorf("degree = %d, want 1", r.EscalationDegree)
	}
	if r.TemplateUsed != "ESCALATION_LEVEL_1" {
		t.Errorf("template_used = %q, want ESCALATION_LEVEL_1", r.TemplateUsed)
	}
	if r.Reason != "Invoices in 31-60 days aging bucket" {
		t.Errorf("unexpected reason %q", r.Reason)
	}
	if r.InvoiceCount != 1 {
		t.Errorf("invoice_count = %d, want 1", r.InvoiceCount)
	}
	if !r.TotalOutstanding.Equal(dec("2500")) {
		t.Errorf("total_outstanding = %s, want 2500", r.TotalOutstanding)
	}
	if r.EmailSubject == "" || r.EmailBody == "" {
		t.Error("drafted subject/body missing")
	}
	if !r.AgingSummary.Total.Equal(dec("2500")) {
		t.Errorf("aging summary total = %s, want 2500", r.AgingSummary.Total)
	}
}

func TestProcessBatchNoValidContacts(t *testing.T) {
	contacts := []ContactReadyClient{
		Aggregate("C-1", "Ghost LLC", "", []AgingSnapshot{snapshotWith("0", "0", "0", "0", "10000")}),
		Aggregate("C-2", "Silent Inc", "", nil),
	}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, nil)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{Contacts: contacts})

	if !resp.Success {
		t.Fatal("success = false, want true (empty batch is not a failure)")
	}
	if len(resp.Errors) != 1 || resp.Errors[0] != "No valid contacts found for escalation processing" {
		t.Fatalf("unexpected errors: %v", resp.Errors)
	}
	if resp.EmailsGenerated != 0 {
		t.Errorf("emails_generated = %d, want 0", resp.EmailsGenerated)
	}
	if resp.SkippedReasons[SkipReasonDnc] != 2 {
		t.Errorf("dnc skips = %d, want 2", resp.SkippedReasons[SkipReasonDnc])
	}
}

func TestProcessBatchAllDegreeZero(t *testing.T) {
	contacts := []ContactReadyClient{
		Aggregate("C-1", "Fresh Co", "billing@fresh.co", []AgingSnapshot{snapshotWith("0", "0", "0", "0", "0")}),
		Aggregate("C-2", "Calm Ltd", "ar@calm.io", []AgingSnapshot{snapshotWith("900", "0", "0", "0", "0")}),
	}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, nil)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{Contacts: contacts})

	if !resp.Success {
		t.Fatal("success = false, want true")
	}
	if len(resp.Errors) != 1 || resp.Errors[0] != "No contacts require escalation (all are degree 0)" {
		t.Fatalf("unexpected errors: %v", resp.Errors)
	}
	if resp.SkippedReasons[SkipReasonDegree0] != 2 {
		t.Errorf("degree_0 skips = %d, want 2", resp.SkippedReasons[SkipReasonDegree0])
	}
}

func TestProcessBatchNoTemplates(t *testing.T) {
	contacts := []ContactReadyClient{eligibleContact("Acme Corp", "ap@acme.com", "2500")}

	p := newTestProcessor(fakeTemplates{templates: map[string]*models.EmailTemplate{}}, fakeGenerator{}, nil)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{Contacts: contacts})

	if resp.Success {
		t.Fatal("success = true, want false when no templates exist")
	}
	if len(resp.Errors) != 1 || resp.Errors[0] != "No escalation email templates found in database" {
		t.Fatalf("unexpected errors: %v", resp.Errors)
	}
	if resp.EmailsGenerated != 0 {
		t.Errorf("emails_generated = %d, want 0", resp.EmailsGenerated)
	}
}

func TestProcessBatchGenerationFailure(t *testing.T) {
	contacts := []ContactReadyClient{eligibleContact("Acme Corp", "ap@acme.com", "2500")}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{err: errors.New("ai timeout")}, nil)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{Contacts: contacts})

	if resp.Success {
		t.Fatal("success = true, want false on generation failure")
	}
	if resp.EmailsGenerated != 0 {
		t.Errorf("emails_generated = %d, want 0", resp.EmailsGenerated)
	}
}

func TestProcessBatchPreviewDoesNotSend(t *testing.T) {
	contacts := []ContactReadyClient{eligibleContact("Acme Corp", "ap@acme.com", "2500")}
	sender := &fakeSender{}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, sender)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{
		Contacts:   contacts,
		SendEmails: true,
		Preview:    true,
	})

	if !resp.Success {
		t.Fatalf("success = false, errors: %v", resp.Errors)
	}
	if sender.calls != 0 {
		t.Fatalf("sender called %d times in preview mode, want 0", sender.calls)
	}
	if resp.EmailSendingSummary != nil {
		t.Fatal("email_sending_summary present in preview mode")
	}
	if resp.EmailsGenerated != 1 {
		t.Errorf("emails_generated = %d, want 1 (drafting still runs in preview)", resp.EmailsGenerated)
	}
}

func TestProcessBatchSendsEmails(t *testing.T) {
	contacts := []ContactReadyClient{
		eligibleContact("Acme Corp", "ap@acme.com", "2500"),
		eligibleContact("Beta Inc", "ar@beta.io", "600"),
	}
	sender := &fakeSender{}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, sender)
	retry := false
	resp := p.ProcessBatch(context.Background(), &BatchRequest{
		Contacts:     contacts,
		SendEmails:   true,
		RetryEnabled: &retry,
	})

	if !resp.Success {
		t.Fatalf("success = false, errors: %v", resp.Errors)
	}
	if resp.EmailSendingSummary == nil {
		t.Fatal("email_sending_summary missing")
	}
	if resp.EmailSendingSummary.SuccessfulSends != 2 {
		t.Errorf("successful_sends = %d, want 2", resp.EmailSendingSummary.SuccessfulSends)
	}
	if len(resp.EmailSendingDetails) != 2 {
		t.Fatalf("email_sending_details = %d, want 2", len(resp.EmailSendingDetails))
	}
	for _, r := range resp.EscalationResults {
		if !r.EmailSent {
			t.Errorf("result for %s not marked sent", r.Account)
		}
		if r.MessageId == "" {
			t.Errorf("result for %s has no message id", r.Account)
		}
		if r.SentAt == nil {
			t.Errorf("result for %s has no sent_at", r.Account)
		}
	}
}

func TestProcessBatchSendRetries(t *testing.T) {
	contacts := []ContactReadyClient{eligibleContact("Flaky Corp", "ap@flaky.com", "900")}
	sender := &fakeSender{failTimes: map[string]int{"ap@flaky.com": 1}}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, sender)
	resp := p.ProcessBatch(context.Background(), &BatchRequest{
		Contacts:   contacts,
		SendEmails: true,
	})

	if resp.EmailSendingSummary == nil {
		t.Fatal("email_sending_summary missing")
	}
	if resp.EmailSendingSummary.SuccessfulSends != 1 {
		t.Errorf("successful_sends = %d, want 1", resp.EmailSendingSummary.SuccessfulSends)
	}
	if resp.EmailSendingSummary.RetryAttempts != 1 {
		t.Errorf("retry_attempts = %d, want 1", resp.EmailSendingSummary.RetryAttempts)
	}
}

func TestProcessBatchSendFailureIsPartial(t *testing.T) {
	contacts := []ContactReadyClient{
		eligibleContact("Good Corp", "ok@good.com", "900"),
		eligibleContact("Dead Corp", "gone@dead.com", "900"),
	}
	// dead address fails every attempt
	sender := &fakeSender{failTimes: map[string]int{"gone@dead.com": 10}}

	p := newTestProcessor(fakeTemplates{templates: escalationTemplates()}, fakeGenerator{}, sender)
	retry := false
	resp := p.ProcessBatch(context.Background(), &BatchRequest{
		Contacts:     contacts,
		SendEmails:   true,
		RetryEnabled: &retry,
	})

	if resp.EmailSendingSummary.SuccessfulSends != 1 {
		t.Errorf("successful_sends = %d, want 1", resp.EmailSendingSummary.SuccessfulSends)
	}
	if resp.EmailSendingSummary.FailedSends != 1 {
		t.Errorf("failed_sends = %d, want 1", resp.EmailSendingSummary.FailedSends)
	}

	var failed *EscalationResult
	for i := range resp.EscalationResults {
		if resp.EscalationResults[i].Account == "Dead Corp" {
			failed = &resp.EscalationResults[i]
		}
	}
	if failed == nil {
		t.Fatal("Dead Corp missing from results")
	}
	if failed.EmailSent {
		t.Error("failed send marked as sent")
	}
	if failed.SendError == "" {
		t.Error("failed send carries no error message")
	}
}

func TestValidateContacts(t *testing.T) {
	contacts := []ContactReadyClient{
		eligibleContact("Good Corp", "ok@good.com", "900"),
		{ClientID: "C-1", AccountName: "", EmailAddress: "x@y.com", Snapshots: []AgingSnapshot{snapshotWith("1", "0", "0", "0", "0")}},
		{ClientID: "C-2", AccountName: "Bad Email", EmailAddress: "not-an-email", Snapshots: []AgingSnapshot{snapshotWith("1", "0", "0", "0", "0")}},
		{ClientID: "C-3", AccountName: "No Invoices", EmailAddress: "a@b.com"},
	}

	resp := ValidateContacts(contacts)

	if resp.IsValid {
		t.Fatal("is_valid = true, want false")
	}
	if resp.ValidAccounts != 1 {
		t.Errorf("valid_accounts = %d, want 1", resp.ValidAccounts)
	}
	if resp.InvalidAccounts != 3 {
		t.Errorf("invalid_accounts = %d, want 3", resp.InvalidAccounts)
	}
	if len(resp.ValidationErrors) != 3 {
		t.Fatalf("validation_errors = %d, want 3", len(resp.ValidationErrors))
	}
}

func TestValidateEmailShape(t *testing.T) {
	cases := []struct {
		email string
		ok    bool
	}{
		{"ap@acme.com", true},
		{"a@b.co", true},
		{"missingat.com", false},
		{"no@dotafterat", false},
		{"@leading.com", false},
	}
	for _, tc := range cases {
		if got := validEmailShape(tc.email); got != tc.ok {
			t.Errorf("validEmailShape(%q) = %v, want %v", tc.email, got, tc.ok)
		}
	}
}

func TestAnalyzeContacts(t *testing.T) {
	contacts := []ContactReadyClient{
		Aggregate("C-1", "Ghost LLC", "", []AgingSnapshot{snapshotWith("0", "0", "0", "0", "10000")}),
		Aggregate("C-2", "Fresh Co", "billing@fresh.co", []AgingSnapshot{snapshotWith("0", "0", "0", "0", "0")}),
		eligibleContact("Acme Corp", "ap@acme.com", "2500"),
		Aggregate("C-4", "Late Ltd", "ar@late.io", []AgingSnapshot{snapshotWith("0", "0", "400", "0", "0")}),
	}

	stats := AnalyzeContacts(contacts)

	if stats.TotalAccounts != 4 {
		t.Errorf("total_accounts = %d, want 4", stats.TotalAccounts)
	}
	if stats.DncCount != 2 {
		t.Errorf("dnc_count = %d, want 2", stats.DncCount)
	}
	if stats.NoEmailCount != 1 {
		t.Errorf("no_email_count = %d, want 1", stats.NoEmailCount)
	}
	if stats.Degree1Count != 1 {
		t.Errorf("degree_1_count = %d, want 1", stats.Degree1Count)
	}
	if stats.Degree2Count != 1 {
		t.Errorf("degree_2_count = %d, want 1", stats.Degree2Count)
	}
	if stats.ProcessableCount != 2 {
		t.Errorf("processable_count = %d, want 2", stats.ProcessableCount)
	}
	if !stats.TotalOutstanding.Equal(dec("12900")) {
		t.Errorf("total_outstanding = %s, want 12900", stats.TotalOutstanding)
	}
}
