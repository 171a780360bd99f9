package models

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"gorm.io/gorm"
)

const (
	EscalationTemplatePrefix = "ESCALATION_LEVEL_"

	maxTemplateSubjectLength = 500
	maxTemplateBodyLength    = 50000
)

// EmailTemplate is a versioned email draft source. Every edit writes a new
// version; exactly one version per identifier is active at a time.
type EmailTemplate struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Identifier string    `gorm:"size:100;not null;index:idx_template_identifier_version,unique" json:"identifier" binding:"required"`
	Version    int       `gorm:"not null;default:1;index:idx_template_identifier_version,unique" json:"version"`
	Name       string    `gorm:"size:255" json:"name"`
	Subject    string    `gorm:"size:500;not null" json:"subject" binding:"required"`
	Body       string    `gorm:"type:text;not null" json:"body" binding:"required"`
	IsActive   *bool     `gorm:"not null;default:false" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEmailTemplate struct {
	Identifier string `json:"identifier" binding:"required"`
	Name       string `json:"name"`
	Subject    string `json:"subject" binding:"required"`
	Body       string `json:"body" binding:"required"`
}

/*
caches:
	EscalationTemplates
*/

var (
	scriptBlockRe    = regexp.MustCompile(`(?is)<script.*?</script>`)
	eventAttrRe      = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsProtocolRe     = regexp.MustCompile(`(?i)javascript:`)
	templateCacheTTL = 10 * time.Minute
)

// SanitizeTemplateContent strips script blocks, inline event handlers and
// javascript: URLs from template content before it is stored.
func SanitizeTemplateContent(content string) string {
	content = scriptBlockRe.ReplaceAllString(content, "")
	content = eventAttrRe.ReplaceAllString(content, "")
	content = jsProtocolRe.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

func (i *NewEmailTemplate) validate() error {
	i.Identifier = strings.TrimSpace(i.Identifier)
	if i.Identifier == "" {
		return errors.New("identifier is required")
	}
	i.Subject = SanitizeTemplateContent(i.Subject)
	i.Body = SanitizeTemplateContent(i.Body)
	if i.Subject == "" {
		return errors.New("subject is required")
	}
	if i.Body == "" {
		return errors.New("body is required")
	}
	if len(i.Subject) > maxTemplateSubjectLength {
		return errors.New("subject exceeds maximum length")
	}
	if len(i.Body) > maxTemplateBodyLength {
		return errors.New("body exceeds maximum length")
	}
	return nil
}

func (t *EmailTemplate) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(t).Error
}

func (t *EmailTemplate) RemoveAllRedis() error {
	return config.RemoveRedisKey("EscalationTemplates")
}

// CreateEmailTemplate stores a template. A new identifier starts at version 1;
// an existing identifier gets the next version number and becomes active,
// deactivating the previous active version in the same transaction.
func CreateEmailTemplate(ctx context.Context, input *NewEmailTemplate) (*EmailTemplate, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var result *EmailTemplate

	err := db.Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		row := struct{ MaxVersion int }{}
		if err := tx.WithContext(ctx).Model(&EmailTemplate{}).
			Select("COALESCE(MAX(version), 0) AS max_version").
			Where("identifier = ?", input.Identifier).
			Scan(&row).Error; err != nil {
			return err
		}
		maxVersion = row.MaxVersion

		if maxVersion > 0 {
			if err := tx.WithContext(ctx).Model(&EmailTemplate{}).
				Where("identifier = ? AND is_active = ?", input.Identifier, true).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}

		template := EmailTemplate{
			Identifier: input.Identifier,
			Version:    maxVersion + 1,
			Name:       strings.TrimSpace(input.Name),
			Subject:    input.Subject,
			Body:       input.Body,
			IsActive:   utils.NewTrue(),
		}
		if err := template.Store(tx, ctx); err != nil {
			return err
		}
		result = &template
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = result.RemoveAllRedis()
	return result, nil
}

// UpdateEmailTemplate writes a new active version for an existing identifier.
func UpdateEmailTemplate(ctx context.Context, identifier string, input *NewEmailTemplate) (*EmailTemplate, error) {
	count, err := utils.ResourceCountWhere[EmailTemplate](ctx, "identifier = ?", identifier)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	input.Identifier = identifier
	return CreateEmailTemplate(ctx, input)
}

// ActivateTemplateVersion flips the active flag to a historical version.
func ActivateTemplateVersion(ctx context.Context, identifier string, version int) (*EmailTemplate, error) {
	db := config.GetDB()
	var target EmailTemplate

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Model(&EmailTemplate{}).
			Where("identifier = ? AND version = ?", identifier, version).
			Take(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		if err := tx.WithContext(ctx).Model(&EmailTemplate{}).
			Where("identifier = ? AND is_active = ?", identifier, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Model(&EmailTemplate{}).
			Where("id = ?", target.ID).
			Update("is_active", true).Error; err != nil {
			return err
		}
		target.IsActive = utils.NewTrue()
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = target.RemoveAllRedis()
	return &target, nil
}

// DeleteEmailTemplate removes every version of the identifier.
func DeleteEmailTemplate(ctx context.Context, identifier string) (int64, error) {
	db := config.GetDB()

	result := db.WithContext(ctx).Where("identifier = ?", identifier).Delete(&EmailTemplate{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, utils.ErrorRecordNotFound
	}

	_ = (&EmailTemplate{}).RemoveAllRedis()
	return result.RowsAffected, nil
}

// GetActiveTemplate returns the active version of an identifier.
func GetActiveTemplate(ctx context.Context, identifier string) (*EmailTemplate, error) {
	db := config.GetDB()
	var result EmailTemplate

	err := db.WithContext(ctx).Model(&EmailTemplate{}).
		Where("identifier = ? AND is_active = ?", identifier, true).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetTemplateVersion returns one specific version of an identifier.
func GetTemplateVersion(ctx context.Context, identifier string, version int) (*EmailTemplate, error) {
	db := config.GetDB()
	var result EmailTemplate

	err := db.WithContext(ctx).Model(&EmailTemplate{}).
		Where("identifier = ? AND version = ?", identifier, version).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ListTemplateVersions returns every version of an identifier, newest first.
func ListTemplateVersions(ctx context.Context, identifier string) ([]*EmailTemplate, error) {
	db := config.GetDB()
	var results []*EmailTemplate

	if err := db.WithContext(ctx).
		Where("identifier = ?", identifier).
		Order("version DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return results, nil
}

// ListActiveTemplates returns the active version of every identifier.
func ListActiveTemplates(ctx context.Context) ([]*EmailTemplate, error) {
	db := config.GetDB()
	var results []*EmailTemplate

	if err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("identifier ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListLatestTemplates returns the newest version of every identifier whether
// active or not.
func ListLatestTemplates(ctx context.Context) ([]*EmailTemplate, error) {
	db := config.GetDB()
	var results []*EmailTemplate

	sub := db.Model(&EmailTemplate{}).
		Select("identifier, MAX(version) AS version").
		Group("identifier")

	if err := db.WithContext(ctx).
		Joins("JOIN (?) latest ON latest.identifier = email_templates.identifier AND latest.version = email_templates.version", sub).
		Order("email_templates.identifier ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListEscalationTemplates returns the active ESCALATION_LEVEL_* templates
// keyed by identifier, cached in redis.
func ListEscalationTemplates(ctx context.Context) (map[string]*EmailTemplate, error) {
	var cached map[string]*EmailTemplate
	if exists, err := config.GetRedisObject("EscalationTemplates", &cached); err == nil && exists {
		return cached, nil
	}

	db := config.GetDB()
	var results []*EmailTemplate

	if err := db.WithContext(ctx).
		Where("identifier LIKE ? AND is_active = ?", EscalationTemplatePrefix+"%", true).
		Find(&results).Error; err != nil {
		return nil, err
	}

	templates := make(map[string]*EmailTemplate, len(results))
	for _, t := range results {
		templates[t.Identifier] = t
	}

	_ = config.SetRedisObject("EscalationTemplates", &templates, templateCacheTTL)
	return templates, nil
}
