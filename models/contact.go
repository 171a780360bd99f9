package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"gorm.io/gorm"
)

// Contact is the billing contact for an account. Email may be blank when the
// aging report carries no address, which marks the account do-not-contact.
type Contact struct {
	ID        int       `gorm:"primary_key" json:"id"`
	AccountId int       `gorm:"not null;index" json:"account_id"`
	FirstName string    `gorm:"size:100" json:"first_name"`
	LastName  string    `gorm:"size:100" json:"last_name"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewContact struct {
	AccountId int    `json:"account_id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (c *Contact) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(c).Error
}

func (c *Contact) Update(tx *gorm.DB, ctx context.Context, fillable map[string]interface{}) error {
	return tx.WithContext(ctx).Model(c).Updates(fillable).Error
}

func (c *Contact) Delete(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Delete(c).Error
}

func (i NewContact) Fillable() (map[string]interface{}, error) {
	return map[string]interface{}{
		"FirstName": i.FirstName,
		"LastName":  i.LastName,
		"Email":     i.Email,
		"Phone":     i.Phone,
	}, nil
}

func (i NewContact) MapInput() (*Contact, error) {
	phone := strings.TrimSpace(i.Phone)
	if phone != "" {
		phone = utils.NormalizePhoneNumber(phone, utils.CountryCode)
	}
	return &Contact{
		AccountId: i.AccountId,
		FirstName: strings.TrimSpace(i.FirstName),
		LastName:  strings.TrimSpace(i.LastName),
		Email:     strings.ToLower(strings.TrimSpace(i.Email)),
		Phone:     phone,
	}, nil
}

func GetContactByAccountId(tx *gorm.DB, ctx context.Context, accountId int) (*Contact, error) {
	var result Contact

	err := tx.WithContext(ctx).Model(&Contact{}).Where("account_id = ?", accountId).Take(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// EnsureContact creates a billing contact for an account when none exists.
// When the email is blank the contact name falls back to the account name.
// Returns whether a new row was created.
func EnsureContact(tx *gorm.DB, ctx context.Context, account *Account, email string) (*Contact, bool, error) {
	existing, err := GetContactByAccountId(tx, ctx, account.ID)
	if err == nil {
		// fill in email when the report supplies one the contact lacks
		if email != "" && existing.Email == "" {
			if err := existing.Update(tx, ctx, map[string]interface{}{"Email": strings.ToLower(email)}); err != nil {
				return nil, false, err
			}
			existing.Email = strings.ToLower(email)
		}
		return existing, false, nil
	}
	if err != utils.ErrorRecordNotFound {
		return nil, false, err
	}

	firstName, lastName := utils.NameFromEmail(email, account.AccountName)
	contact := Contact{
		AccountId: account.ID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     strings.ToLower(strings.TrimSpace(email)),
	}
	if err := contact.Store(tx, ctx); err != nil {
		return nil, false, err
	}
	return &contact, true, nil
}

func CountContacts(ctx context.Context) (int64, error) {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Contact{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
