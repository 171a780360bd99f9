package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmailActivity is the audit row written for every send attempt outcome.
type EmailActivity struct {
	ID               int             `gorm:"primary_key" json:"id"`
	AccountId        int             `gorm:"index" json:"account_id"`
	AccountName      string          `gorm:"size:255" json:"account_name"`
	EmailAddress     string          `gorm:"size:255" json:"email_address"`
	Subject          string          `gorm:"size:500" json:"subject"`
	Degree           int             `json:"degree"`
	TemplateUsed     string          `gorm:"size:100" json:"template_used"`
	TotalOutstanding decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_outstanding"`
	Sent             *bool           `gorm:"not null;default:false" json:"sent"`
	MessageId        string          `gorm:"size:255" json:"message_id"`
	SendError        string          `gorm:"size:1000" json:"send_error"`
	SentAt           *time.Time      `json:"sent_at"`
	CorrelationId    string          `gorm:"size:100;index" json:"correlation_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (a *EmailActivity) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(a).Error
}

// ListRecentEmailActivity returns the newest send attempts, capped by limit.
func ListRecentEmailActivity(ctx context.Context, limit int) ([]*EmailActivity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	db := config.GetDB()
	var results []*EmailActivity

	if err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// CountEmailActivitySince counts sent/failed attempts after the given time.
func CountEmailActivitySince(ctx context.Context, since time.Time) (sent int64, failed int64, err error) {
	db := config.GetDB()

	if err = db.WithContext(ctx).Model(&EmailActivity{}).
		Where("created_at >= ? AND sent = ?", since, true).
		Count(&sent).Error; err != nil {
		return
	}
	err = db.WithContext(ctx).Model(&EmailActivity{}).
		Where("created_at >= ? AND sent = ?", since, false).
		Count(&failed).Error
	return
}
