package escalation

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSendBatchSize = 5
	maxSendBatchSize     = 10
	maxSendAttempts      = 3
	batchPause           = 500 * time.Millisecond
)

// sendEmails delivers drafted emails in bounded concurrent batches, retrying
// transient failures. Each result row is updated in place with its outcome.
func (p *Processor) sendEmails(ctx context.Context, results []EscalationResult, eligible []EligibleContact, batchSize int, retryEnabled bool) (*EmailSendingSummary, []EmailSendingDetail) {
	start := time.Now()

	if batchSize <= 0 {
		batchSize = defaultSendBatchSize
	}
	if batchSize > maxSendBatchSize {
		batchSize = maxSendBatchSize
	}

	maxAttempts := maxSendAttempts
	if !retryEnabled {
		maxAttempts = 1
	}

	byAccount := make(map[string]EligibleContact, len(eligible))
	for _, e := range eligible {
		byAccount[e.Account] = e
	}

	summary := &EmailSendingSummary{}
	details := make([]EmailSendingDetail, len(results))
	var mu sync.Mutex

	for batchStart := 0; batchStart < len(results); batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > len(results) {
			batchEnd = len(results)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := batchStart; i < batchEnd; i++ {
			i := i
			g.Go(func() error {
				result := &results[i]
				retries := 0

				var messageId string
				var sendErr error
				for attempt := 1; attempt <= maxAttempts; attempt++ {
					messageId, sendErr = p.Sender.Send(gctx, result.EmailAddress, result.EmailSubject, result.EmailBody)
					if sendErr == nil {
						break
					}
					if attempt < maxAttempts {
						retries++
						time.Sleep(time.Second * time.Duration(attempt))
					}
				}

				mu.Lock()
				summary.TotalAttempts++
				summary.RetryAttempts += retries
				if sendErr == nil {
					summary.SuccessfulSends++
					now := time.Now()
					result.EmailSent = true
					result.SentAt = &now
					result.MessageId = messageId
				} else {
					summary.FailedSends++
					result.SendError = sendErr.Error()
					if p.Logger != nil {
						p.Logger.WithField("account", result.Account).
							WithField("email", result.EmailAddress).
							WithError(sendErr).
							Warn("email delivery failed")
					}
				}
				mu.Unlock()

				detail := EmailSendingDetail{
					Account:          result.Account,
					EmailAddress:     result.EmailAddress,
					Sent:             result.EmailSent,
					SentAt:           result.SentAt,
					MessageId:        result.MessageId,
					Subject:          result.EmailSubject,
					Error:            result.SendError,
					EscalationDegree: result.EscalationDegree,
					TemplateUsed:     result.TemplateUsed,
					InvoiceCount:     result.InvoiceCount,
					TotalOutstanding: result.TotalOutstanding,
					Invoices:         result.InvoiceDetails,
					AgingSummary:     result.AgingSummary,
				}
				if e, ok := byAccount[result.Account]; ok {
					detail.OldestInvoiceDays = e.OldestInvoiceDays
				}
				details[i] = detail

				if p.Recorder != nil {
					p.Recorder.Record(ctx, detail)
				}
				return nil
			})
		}
		_ = g.Wait()

		if batchEnd < len(results) {
			time.Sleep(batchPause)
		}
	}

	summary.SendDurationSeconds = time.Since(start).Seconds()
	return summary, details
}
