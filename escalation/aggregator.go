package escalation

import (
	"context"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"github.com/shopspring/decimal"
)

// Aggregate builds the account-level contact record from its snapshots.
// dnc_status is true when the email is empty or the account degree is 0.
// An account with zero snapshots is degree 0, total 0, dnc regardless of
// email presence.
func Aggregate(clientId string, accountName string, email string, snapshots []AgingSnapshot) ContactReadyClient {
	total := decimal.Zero
	for _, s := range snapshots {
		total = total.Add(SnapshotTotal(s))
	}

	degree := DegreeForAccount(snapshots)
	dnc := email == "" || degree == DegreeNone

	return ContactReadyClient{
		ClientID:         clientId,
		AccountName:      accountName,
		EmailAddress:     email,
		Snapshots:        snapshots,
		TotalOutstanding: total,
		DncStatus:        dnc,
	}
}

// QualifyingSnapshots returns the snapshots actually driving an escalation,
// i.e. those whose own degree is above 0.
func QualifyingSnapshots(snapshots []AgingSnapshot) []AgingSnapshot {
	var qualifying []AgingSnapshot
	for _, s := range snapshots {
		if DegreeForSnapshot(s) > DegreeNone {
			qualifying = append(qualifying, s)
		}
	}
	return qualifying
}

// QualifyingTotal sums bucket amounts across qualifying snapshots only.
func QualifyingTotal(snapshots []AgingSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, s := range QualifyingSnapshots(snapshots) {
		total = total.Add(SnapshotTotal(s))
	}
	return total
}

// BuildInvoiceDetails renders the per-invoice detail list for qualifying
// snapshots, preserving snapshot order.
func BuildInvoiceDetails(snapshots []AgingSnapshot) []InvoiceDetail {
	qualifying := QualifyingSnapshots(snapshots)
	details := make([]InvoiceDetail, 0, len(qualifying))
	for _, s := range qualifying {
		total := SnapshotTotal(s)
		days := DaysOverdue(s.InvoiceDate, s.SnapshotDate)
		details = append(details, InvoiceDetail{
			InvoiceId:        s.InvoiceId,
			InvoiceNumber:    s.InvoiceNumber,
			InvoiceAmount:    total,
			TotalOutstanding: total,
			DaysOverdue:      days,
			AgingBucket:      BucketLabel(days),
		})
	}
	return details
}

// BuildAgingSummary totals the five buckets across all snapshots.
func BuildAgingSummary(snapshots []AgingSnapshot) AgingSummary {
	summary := AgingSummary{
		DaysCurrent: decimal.Zero,
		Days31To60:  decimal.Zero,
		Days61To90:  decimal.Zero,
		Days91To120: decimal.Zero,
		DaysOver120: decimal.Zero,
		Total:       decimal.Zero,
	}
	for _, s := range snapshots {
		summary.DaysCurrent = summary.DaysCurrent.Add(s.DaysCurrent)
		summary.Days31To60 = summary.Days31To60.Add(s.Days31To60)
		summary.Days61To90 = summary.Days61To90.Add(s.Days61To90)
		summary.Days91To120 = summary.Days91To120.Add(s.Days91To120)
		summary.DaysOver120 = summary.DaysOver120.Add(s.DaysOver120)
		summary.Total = summary.Total.Add(SnapshotTotal(s))
	}
	return summary
}

// OldestInvoiceDays returns the max days-overdue across snapshots.
func OldestInvoiceDays(snapshots []AgingSnapshot) int {
	oldest := 0
	for _, s := range snapshots {
		if days := DaysOverdue(s.InvoiceDate, s.SnapshotDate); days > oldest {
			oldest = days
		}
	}
	return oldest
}

// snapshotFromModel detaches a persisted snapshot into the pure value type.
func snapshotFromModel(invoice *models.Invoice, snapshot *models.InvoiceAgingSnapshot) AgingSnapshot {
	return AgingSnapshot{
		InvoiceId:        invoice.ID,
		InvoiceNumber:    invoice.InvoiceNumber,
		InvoiceDate:      invoice.InvoiceDate,
		SnapshotDate:     snapshot.SnapshotDate,
		DaysCurrent:      snapshot.DaysCurrent,
		Days31To60:       snapshot.Days31To60,
		Days61To90:       snapshot.Days61To90,
		Days91To120:      snapshot.Days91To120,
		DaysOver120:      snapshot.DaysOver120,
		TotalOutstanding: snapshot.TotalOutstanding,
	}
}

// LoadContactReadyClients rebuilds the contact-ready view of every account
// from the latest snapshot of each invoice.
func LoadContactReadyClients(ctx context.Context) ([]ContactReadyClient, error) {
	db := config.GetDB()

	accounts, err := models.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	contacts := make([]ContactReadyClient, 0, len(accounts))
	for _, account := range accounts {
		invoices, err := models.ListInvoicesByAccount(ctx, account.ID)
		if err != nil {
			return nil, err
		}

		var snapshots []AgingSnapshot
		for _, invoice := range invoices {
			latest, err := models.GetLatestSnapshot(db, ctx, invoice.ID)
			if err != nil {
				continue
			}
			snapshots = append(snapshots, snapshotFromModel(invoice, latest))
		}

		email := ""
		if contact, err := models.GetContactByAccountId(db, ctx, account.ID); err == nil {
			email = contact.Email
		}

		contacts = append(contacts, Aggregate(account.ClientID, account.AccountName, email, snapshots))
	}
	return contacts, nil
}
