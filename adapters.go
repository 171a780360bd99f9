package main

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
)

// dbTemplateSource serves escalation templates from the database with the
// redis cache in front.
type dbTemplateSource struct{}

func (dbTemplateSource) ListEscalationTemplates(ctx context.Context) (map[string]*models.EmailTemplate, error) {
	return models.ListEscalationTemplates(ctx)
}

// activityRecorder writes the audit row for each send attempt and publishes
// the best-effort activity event.
type activityRecorder struct{}

func (activityRecorder) Record(ctx context.Context, detail escalation.EmailSendingDetail) {
	db := config.GetDB()
	logger := config.GetLogger()
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	accountId := 0
	var account models.Account
	if err := db.WithContext(ctx).Where("account_name = ?", detail.Account).Take(&account).Error; err == nil {
		accountId = account.ID
	}

	sent := detail.Sent
	activity := models.EmailActivity{
		AccountId:        accountId,
		AccountName:      detail.Account,
		EmailAddress:     detail.EmailAddress,
		Subject:          detail.Subject,
		Degree:           detail.EscalationDegree,
		TemplateUsed:     detail.TemplateUsed,
		TotalOutstanding: detail.TotalOutstanding,
		Sent:             &sent,
		MessageId:        detail.MessageId,
		SendError:        detail.Error,
		SentAt:           detail.SentAt,
		CorrelationId:    correlationId,
	}
	if err := activity.Store(db, ctx); err != nil {
		config.LogError(logger, "main", "Record", "failed to store email activity", detail.Account, err)
	}

	sentAt := time.Now()
	if detail.SentAt != nil {
		sentAt = *detail.SentAt
	}
	if _, err := config.PublishEmailActivity(ctx, config.EmailActivityMessage{
		AccountId:     account.ClientID,
		AccountName:   detail.Account,
		EmailAddress:  detail.EmailAddress,
		Degree:        detail.EscalationDegree,
		TemplateUsed:  detail.TemplateUsed,
		Sent:          detail.Sent,
		MessageId:     detail.MessageId,
		Error:         detail.Error,
		SentAt:        sentAt,
		CorrelationId: correlationId,
	}); err != nil {
		logger.Warn("email activity publish failed: " + err.Error())
	}
}
