package csvimport

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"gorm.io/gorm"
)

// Import persists parsed aging-report rows. Each row commits independently so
// one bad row never rolls back its neighbors. Snapshots are append-only and
// written only when the bucket values changed since the latest one.
func Import(ctx context.Context, rows []ImportRow, rowErrors []RowError) *ImportResult {
	start := time.Now()
	db := config.GetDB()
	logger := config.GetLogger()

	result := &ImportResult{
		TotalRows:           len(rows) + len(rowErrors),
		FailedRows:          len(rowErrors),
		ContactReadyClients: []escalation.ContactReadyClient{},
		Errors:              append([]RowError{}, rowErrors...),
	}

	snapshotDate := time.Now().Truncate(24 * time.Hour)

	// accounts resolved once per import run
	accountCache := map[string]*models.Account{}
	importedAccounts := map[string]*models.Account{}

	for _, row := range rows {
		row := row
		err := db.Transaction(func(tx *gorm.DB) error {
			account, ok := accountCache[row.ClientID]
			if !ok {
				var created bool
				var err error
				account, created, err = models.GetOrCreateAccount(tx, ctx, row.ClientID, row.ClientName)
				if err != nil {
					return err
				}
				if created {
					result.AccountsCreated++
				}
				accountCache[row.ClientID] = account
			}

			_, contactCreated, err := models.EnsureContact(tx, ctx, account, row.EmailAddress)
			if err != nil {
				return err
			}
			if contactCreated {
				result.ContactsCreated++
			}

			invoice, created, updated, err := models.UpsertInvoice(tx, ctx, &models.NewInvoice{
				AccountId:        account.ID,
				InvoiceNumber:    row.InvoiceNumber,
				InvoiceDate:      row.InvoiceDate,
				InvoiceAmount:    row.InvoiceAmount,
				TotalOutstanding: row.TotalOutstanding,
			})
			if err != nil {
				return err
			}
			if created {
				result.InvoicesCreated++
			}
			if updated {
				result.InvoicesUpdated++
			}

			_, written, err := models.AppendSnapshotIfChanged(tx, ctx, &models.NewInvoiceAgingSnapshot{
				InvoiceId:        invoice.ID,
				SnapshotDate:     snapshotDate,
				DaysCurrent:      row.DaysCurrent,
				Days31To60:       row.Days31To60,
				Days61To90:       row.Days61To90,
				Days91To120:      row.Days91To120,
				DaysOver120:      row.DaysOver120,
				TotalOutstanding: row.TotalOutstanding,
			})
			if err != nil {
				return err
			}
			if written {
				result.AgingSnapshotsCreated++
			}

			importedAccounts[row.ClientID] = account
			return nil
		})
		if err != nil {
			config.LogError(logger, "csvimport", "Import", "row failed", row.ClientID, err)
			result.FailedRows++
			result.Errors = append(result.Errors, RowError{
				RowNumber:    row.RowNumber,
				ErrorMessage: err.Error(),
			})
			continue
		}
		result.SuccessfulRows++
	}

	// rebuild the contact-ready view for every account touched by this run
	for _, account := range importedAccounts {
		contact, err := buildContactReady(ctx, account)
		if err != nil {
			config.LogError(logger, "csvimport", "Import", "contact aggregation failed", account.ClientID, err)
			continue
		}
		result.ContactReadyClients = append(result.ContactReadyClients, contact)
	}

	result.Success = result.FailedRows == 0
	result.ProcessingTimeSeconds = time.Since(start).Seconds()
	return result
}

func buildContactReady(ctx context.Context, account *models.Account) (escalation.ContactReadyClient, error) {
	db := config.GetDB()

	invoices, err := models.ListInvoicesByAccount(ctx, account.ID)
	if err != nil {
		return escalation.ContactReadyClient{}, err
	}

	var snapshots []escalation.AgingSnapshot
	for _, invoice := range invoices {
		latest, err := models.GetLatestSnapshot(db, ctx, invoice.ID)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, escalation.AgingSnapshot{
			InvoiceId:        invoice.ID,
			InvoiceNumber:    invoice.InvoiceNumber,
			InvoiceDate:      invoice.InvoiceDate,
			SnapshotDate:     latest.SnapshotDate,
			DaysCurrent:      latest.DaysCurrent,
			Days31To60:       latest.Days31To60,
			Days61To90:       latest.Days61To90,
			Days91To120:      latest.Days91To120,
			DaysOver120:      latest.DaysOver120,
			TotalOutstanding: latest.TotalOutstanding,
		})
	}

	email := ""
	if contact, err := models.GetContactByAccountId(db, ctx, account.ID); err == nil {
		email = contact.Email
	}

	return escalation.Aggregate(account.ClientID, account.AccountName, email, snapshots), nil
}
