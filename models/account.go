package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"gorm.io/gorm"
)

// Account is a receivable customer identified by the external client id
// carried on aging report rows.
type Account struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ClientID    string    `gorm:"size:100;not null;unique" json:"client_id" binding:"required"`
	AccountName string    `gorm:"size:255;not null" json:"account_name" binding:"required"`
	Contacts    []Contact `gorm:"foreignKey:AccountId" json:"contacts,omitempty"`
	Invoices    []Invoice `gorm:"foreignKey:AccountId" json:"invoices,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	ClientID    string `json:"client_id" binding:"required"`
	AccountName string `json:"account_name" binding:"required"`
}

func (a *Account) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(a).Error
}

func (a *Account) Update(tx *gorm.DB, ctx context.Context, fillable map[string]interface{}) error {
	return tx.WithContext(ctx).Model(a).Updates(fillable).Error
}

func (a *Account) Delete(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Delete(a).Error
}

func (i NewAccount) Fillable() (map[string]interface{}, error) {
	return map[string]interface{}{
		"ClientID":    i.ClientID,
		"AccountName": i.AccountName,
	}, nil
}

func (i NewAccount) MapInput() (*Account, error) {
	clientId := strings.TrimSpace(i.ClientID)
	if clientId == "" {
		return nil, errors.New("client id is required")
	}
	name := strings.TrimSpace(i.AccountName)
	if name == "" {
		return nil, errors.New("account name is required")
	}
	return &Account{
		ClientID:    clientId,
		AccountName: name,
	}, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	db := config.GetDB()
	var result Account

	err := db.WithContext(ctx).
		Preload("Contacts").
		First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetAccountByClientID(tx *gorm.DB, ctx context.Context, clientId string) (*Account, error) {
	var result Account

	err := tx.WithContext(ctx).Model(&Account{}).Where("client_id = ?", clientId).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetOrCreateAccount looks up an account by client id and creates it when
// missing. Returns whether a new row was created.
func GetOrCreateAccount(tx *gorm.DB, ctx context.Context, clientId string, accountName string) (*Account, bool, error) {
	existing, err := GetAccountByClientID(tx, ctx, clientId)
	if err == nil {
		// name drift on the aging report wins over the stored name
		if accountName != "" && existing.AccountName != accountName {
			if err := existing.Update(tx, ctx, map[string]interface{}{"AccountName": accountName}); err != nil {
				return nil, false, err
			}
			existing.AccountName = accountName
		}
		return existing, false, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, false, err
	}

	account := Account{ClientID: clientId, AccountName: accountName}
	if err := account.Store(tx, ctx); err != nil {
		return nil, false, err
	}
	return &account, true, nil
}

func ListAccounts(ctx context.Context) ([]*Account, error) {
	db := config.GetDB()
	var results []*Account

	if err := db.WithContext(ctx).Order("account_name ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func CountAccounts(ctx context.Context) (int64, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Account{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
