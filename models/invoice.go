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

type Invoice struct {
	ID               int                    `gorm:"primary_key" json:"id"`
	AccountId        int                    `gorm:"not null;index" json:"account_id"`
	InvoiceNumber    string                 `gorm:"size:100;not null;unique" json:"invoice_number" binding:"required"`
	InvoiceDate      time.Time              `json:"invoice_date"`
	InvoiceAmount    decimal.Decimal        `gorm:"type:decimal(20,2);default:0" json:"invoice_amount"`
	TotalOutstanding decimal.Decimal        `gorm:"type:decimal(20,2);default:0" json:"total_outstanding"`
	Snapshots        []InvoiceAgingSnapshot `gorm:"foreignKey:InvoiceId" json:"snapshots,omitempty"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoice struct {
	AccountId        int             `json:"account_id" binding:"required"`
	InvoiceNumber    string          `json:"invoice_number" binding:"required"`
	InvoiceDate      time.Time       `json:"invoice_date"`
	InvoiceAmount    decimal.Decimal `json:"invoice_amount"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

func (inv *Invoice) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(inv).Error
}

func (inv *Invoice) Update(tx *gorm.DB, ctx context.Context, fillable map[string]interface{}) error {
	return tx.WithContext(ctx).Model(inv).Updates(fillable).Error
}

func (inv *Invoice) Delete(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Delete(inv).Error
}

func (i NewInvoice) Fillable() (map[string]interface{}, error) {
	return map[string]interface{}{
		"InvoiceDate":      i.InvoiceDate,
		"InvoiceAmount":    i.InvoiceAmount,
		"TotalOutstanding": i.TotalOutstanding,
	}, nil
}

func GetInvoiceByNumber(tx *gorm.DB, ctx context.Context, invoiceNumber string) (*Invoice, error) {
	var result Invoice

	err := tx.WithContext(ctx).Model(&Invoice{}).Where("invoice_number = ?", invoiceNumber).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// UpsertInvoice creates the invoice row or updates amounts when they changed.
// Returns (invoice, created, updated).
func UpsertInvoice(tx *gorm.DB, ctx context.Context, input *NewInvoice) (*Invoice, bool, bool, error) {
	existing, err := GetInvoiceByNumber(tx, ctx, input.InvoiceNumber)
	if err == nil {
		if existing.InvoiceAmount.Equal(input.InvoiceAmount) &&
			existing.TotalOutstanding.Equal(input.TotalOutstanding) {
			return existing, false, false, nil
		}
		fillable, _ := input.Fillable()
		if err := existing.Update(tx, ctx, fillable); err != nil {
			return nil, false, false, err
		}
		existing.InvoiceDate = input.InvoiceDate
		existing.InvoiceAmount = input.InvoiceAmount
		existing.TotalOutstanding = input.TotalOutstanding
		return existing, false, true, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, false, false, err
	}

	invoice := Invoice{
		AccountId:        input.AccountId,
		InvoiceNumber:    input.InvoiceNumber,
		InvoiceDate:      input.InvoiceDate,
		InvoiceAmount:    input.InvoiceAmount,
		TotalOutstanding: input.TotalOutstanding,
	}
	if err := invoice.Store(tx, ctx); err != nil {
		return nil, false, false, err
	}
	return &invoice, true, false, nil
}

func ListInvoicesByAccount(ctx context.Context, accountId int) ([]*Invoice, error) {
	db := config.GetDB()
	var results []*Invoice

	if err := db.WithContext(ctx).
		Where("account_id = ?", accountId).
		Order("invoice_date ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func CountInvoices(ctx context.Context) (int64, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Invoice{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumOutstanding totals the latest outstanding balance across all invoices.
func SumOutstanding(ctx context.Context) (decimal.Decimal, error) {
	db := config.GetDB()
	var row struct {
		Total decimal.Decimal
	}
	err := db.WithContext(ctx).Model(&Invoice{}).
		Select("COALESCE(SUM(total_outstanding), 0) AS total").
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
