package escalation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	SkipReasonDnc        = "dnc_status"
	SkipReasonNoEmail    = "no_email"
	SkipReasonNoInvoices = "no_invoices"
	SkipReasonDegree0    = "degree_0_no_escalation"
)

// Processor drives a batch of contact-ready records through classification,
// template selection, AI drafting and optional delivery.
type Processor struct {
	Templates TemplateSource
	Generator EmailGenerator
	Sender    EmailSender
	Recorder  ActivityRecorder
	Logger    *logrus.Logger
}

// ActivityRecorder persists the outcome of one send attempt. Optional; a nil
// recorder keeps the batch purely in-memory.
type ActivityRecorder interface {
	Record(ctx context.Context, detail EmailSendingDetail)
}

func NewProcessor(templates TemplateSource, generator EmailGenerator, sender EmailSender, recorder ActivityRecorder, logger *logrus.Logger) *Processor {
	return &Processor{
		Templates: templates,
		Generator: generator,
		Sender:    sender,
		Recorder:  recorder,
		Logger:    logger,
	}
}

// ProcessBatch runs one escalation batch. Items are processed independently
// and in input order; bad items land in skip buckets instead of failing the
// run. Preview mode performs identical classification and drafting but never
// delivers.
func (p *Processor) ProcessBatch(ctx context.Context, req *BatchRequest) *BatchResponse {
	start := time.Now()

	resp := &BatchResponse{
		Success:             true,
		ProcessedCount:      len(req.Contacts),
		EscalationResults:   []EscalationResult{},
		SkippedReasons:      map[string]int{},
		EmailSendingDetails: []EmailSendingDetail{},
		Errors:              []string{},
	}
	finish := func() *BatchResponse {
		resp.SkippedCount = 0
		for _, n := range resp.SkippedReasons {
			resp.SkippedCount += n
		}
		resp.ProcessingTimeSeconds = time.Since(start).Seconds()
		return resp
	}

	// structural filter pass. A DNC flag always wins when the email is
	// missing or the account actually escalates; the one DNC case that falls
	// through is degree 0 with an address, so it reports the distinct
	// degree_0_no_escalation reason in the main loop.
	var candidates []ContactReadyClient
	for _, c := range req.Contacts {
		switch {
		case c.DncStatus && (c.EmailAddress == "" || DegreeForAccount(c.Snapshots) > DegreeNone):
			resp.SkippedReasons[SkipReasonDnc]++
		case c.EmailAddress == "":
			resp.SkippedReasons[SkipReasonNoEmail]++
		case len(c.Snapshots) == 0:
			resp.SkippedReasons[SkipReasonNoInvoices]++
		default:
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		resp.Errors = append(resp.Errors, "No valid contacts found for escalation processing")
		return finish()
	}

	var eligible []EligibleContact
	for _, c := range candidates {
		degree := DegreeForAccount(c.Snapshots)
		if degree == DegreeNone {
			resp.SkippedReasons[SkipReasonDegree0]++
			continue
		}

		eligible = append(eligible, EligibleContact{
			Account:           c.AccountName,
			EmailAddress:      c.EmailAddress,
			EscalationDegree:  degree,
			Reason:            ReasonForDegree(degree),
			TemplateUsed:      TemplateIdentifier(degree),
			InvoiceCount:      len(QualifyingSnapshots(c.Snapshots)),
			TotalOutstanding:  QualifyingTotal(c.Snapshots),
			OldestInvoiceDays: OldestInvoiceDays(c.Snapshots),
			InvoiceDetails:    BuildInvoiceDetails(c.Snapshots),
			AgingSummary:      BuildAgingSummary(c.Snapshots),
		})
	}

	if len(eligible) == 0 {
		resp.Errors = append(resp.Errors, "No contacts require escalation (all are degree 0)")
		return finish()
	}

	templates, err := p.Templates.ListEscalationTemplates(ctx)
	if err != nil {
		resp.Success = false
		resp.Errors = append(resp.Errors, "Failed to load escalation templates: "+err.Error())
		return finish()
	}
	if len(templates) == 0 {
		resp.Success = false
		resp.Errors = append(resp.Errors, "No escalation email templates found in database")
		return finish()
	}

	emails, err := p.Generator.GenerateEmails(ctx, eligible, templates)
	if err != nil {
		resp.Success = false
		resp.Errors = append(resp.Errors, "Email generation failed: "+err.Error())
		return finish()
	}

	generated := make(map[string]GeneratedEmail, len(emails))
	for _, e := range emails {
		generated[e.Account] = e
	}

	// assemble results in input order
	for _, e := range eligible {
		draft, ok := generated[e.Account]
		if !ok {
			resp.Errors = append(resp.Errors, "No email generated for account "+e.Account)
			continue
		}
		resp.EscalationResults = append(resp.EscalationResults, EscalationResult{
			Account:          e.Account,
			EmailAddress:     e.EmailAddress,
			EmailSubject:     draft.EmailSubject,
			EmailBody:        draft.EmailBody,
			EscalationDegree: e.EscalationDegree,
			Reason:           e.Reason,
			TemplateUsed:     e.TemplateUsed,
			InvoiceCount:     e.InvoiceCount,
			TotalOutstanding: e.TotalOutstanding,
			InvoiceDetails:   e.InvoiceDetails,
			AgingSummary:     e.AgingSummary,
		})
	}
	resp.EmailsGenerated = len(resp.EscalationResults)

	if req.SendEmails && !req.Preview && resp.EmailsGenerated > 0 {
		if p.Sender == nil {
			resp.Errors = append(resp.Errors, "Email sending requested but no sender is configured")
		} else {
			retry := true
			if req.RetryEnabled != nil {
				retry = *req.RetryEnabled
			}
			summary, details := p.sendEmails(ctx, resp.EscalationResults, eligible, req.BatchSize, retry)
			resp.EmailSendingSummary = summary
			resp.EmailSendingDetails = details
		}
	}

	return finish()
}
