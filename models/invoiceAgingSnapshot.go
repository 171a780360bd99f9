package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceAgingSnapshot records the bucket distribution of an invoice balance
// on a given snapshot date. Snapshots are append-only: a new row is written
// only when the bucket values changed since the latest one.
type InvoiceAgingSnapshot struct {
	ID               int             `gorm:"primary_key" json:"id"`
	InvoiceId        int             `gorm:"not null;index" json:"invoice_id"`
	SnapshotDate     time.Time       `gorm:"not null;index" json:"snapshot_date"`
	DaysCurrent      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"days_current"`
	Days31To60       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"days_31_60"`
	Days61To90       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"days_61_90"`
	Days91To120      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"days_91_120"`
	DaysOver120      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"days_over_120"`
	TotalOutstanding decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_outstanding"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewInvoiceAgingSnapshot struct {
	InvoiceId        int             `json:"invoice_id" binding:"required"`
	SnapshotDate     time.Time       `json:"snapshot_date"`
	DaysCurrent      decimal.Decimal `json:"days_current"`
	Days31To60       decimal.Decimal `json:"days_31_60"`
	Days61To90       decimal.Decimal `json:"days_61_90"`
	Days91To120      decimal.Decimal `json:"days_91_120"`
	DaysOver120      decimal.Decimal `json:"days_over_120"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

func (s *InvoiceAgingSnapshot) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(s).Error
}

// SameBuckets reports whether both snapshots carry identical bucket values.
func (s *InvoiceAgingSnapshot) SameBuckets(other *InvoiceAgingSnapshot) bool {
	return s.DaysCurrent.Equal(other.DaysCurrent) &&
		s.Days31To60.Equal(other.Days31To60) &&
		s.Days61To90.Equal(other.Days61To90) &&
		s.Days91To120.Equal(other.Days91To120) &&
		s.DaysOver120.Equal(other.DaysOver120)
}

func (i NewInvoiceAgingSnapshot) MapInput() *InvoiceAgingSnapshot {
	return &InvoiceAgingSnapshot{
		InvoiceId:        i.InvoiceId,
		SnapshotDate:     i.SnapshotDate,
		DaysCurrent:      i.DaysCurrent,
		Days31To60:       i.Days31To60,
		Days61To90:       i.Days61To90,
		Days91To120:      i.Days91To120,
		DaysOver120:      i.DaysOver120,
		TotalOutstanding: i.TotalOutstanding,
	}
}

func GetLatestSnapshot(tx *gorm.DB, ctx context.Context, invoiceId int) (*InvoiceAgingSnapshot, error) {
	var result InvoiceAgingSnapshot

	err := tx.WithContext(ctx).Model(&InvoiceAgingSnapshot{}).
		Where("invoice_id = ?", invoiceId).
		Order("snapshot_date DESC, id DESC").
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// AppendSnapshotIfChanged writes a new snapshot row only when the buckets
// differ from the invoice's latest snapshot. Returns whether a row was written.
func AppendSnapshotIfChanged(tx *gorm.DB, ctx context.Context, input *NewInvoiceAgingSnapshot) (*InvoiceAgingSnapshot, bool, error) {
	snapshot := input.MapInput()

	latest, err := GetLatestSnapshot(tx, ctx, input.InvoiceId)
	if err == nil {
		if latest.SameBuckets(snapshot) {
			return latest, false, nil
		}
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, false, err
	}

	if err := snapshot.Store(tx, ctx); err != nil {
		return nil, false, err
	}
	return snapshot, true, nil
}

// ListLatestSnapshotsByAccount returns the latest snapshot of every invoice
// belonging to the account, keyed by invoice id.
func ListLatestSnapshotsByAccount(ctx context.Context, accountId int) (map[int]*InvoiceAgingSnapshot, error) {
	db := config.GetDB()

	var invoices []*Invoice
	if err := db.WithContext(ctx).Where("account_id = ?", accountId).Find(&invoices).Error; err != nil {
		return nil, err
	}

	result := make(map[int]*InvoiceAgingSnapshot, len(invoices))
	for _, invoice := range invoices {
		latest, err := GetLatestSnapshot(db, ctx, invoice.ID)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				continue
			}
			return nil, err
		}
		result[invoice.ID] = latest
	}
	return result, nil
}

func CountSnapshots(ctx context.Context) (int64, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&InvoiceAgingSnapshot{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
