package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dashboardCacheTTL = time.Minute

type dashboardMetrics struct {
	TotalAccounts    int64           `json:"total_accounts"`
	TotalContacts    int64           `json:"total_contacts"`
	TotalInvoices    int64           `json:"total_invoices"`
	TotalSnapshots   int64           `json:"total_snapshots"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

func loadDashboardMetrics(ctx context.Context) (*dashboardMetrics, error) {
	var cached dashboardMetrics
	if exists, err := config.GetRedisObject("DashboardMetrics", &cached); err == nil && exists {
		return &cached, nil
	}

	accounts, err := models.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}
	contacts, err := models.CountContacts(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := models.CountInvoices(ctx)
	if err != nil {
		return nil, err
	}
	snapshots, err := models.CountSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	outstanding, err := models.SumOutstanding(ctx)
	if err != nil {
		return nil, err
	}

	metrics := dashboardMetrics{
		TotalAccounts:    accounts,
		TotalContacts:    contacts,
		TotalInvoices:    invoices,
		TotalSnapshots:   snapshots,
		TotalOutstanding: outstanding,
	}
	_ = config.SetRedisObject("DashboardMetrics", &metrics, dashboardCacheTTL)
	return &metrics, nil
}

func loadEscalationStats(ctx context.Context) (*escalation.EscalationStats, error) {
	var cached escalation.EscalationStats
	if exists, err := config.GetRedisObject("DashboardEscalationStats", &cached); err == nil && exists {
		return &cached, nil
	}

	contacts, err := escalation.LoadContactReadyClients(ctx)
	if err != nil {
		return nil, err
	}
	stats := escalation.AnalyzeContacts(contacts)
	_ = config.SetRedisObject("DashboardEscalationStats", &stats, dashboardCacheTTL)
	return &stats, nil
}

// GET /api/v1/dashboard
// Combined overview used by the landing page.
func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		metrics, err := loadDashboardMetrics(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		stats, err := loadEscalationStats(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		activity, err := models.ListRecentEmailActivity(ctx, 10)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"metrics":          metrics,
			"escalation_stats": stats,
			"recent_activity":  activity,
		})
	}
}

// GET /api/v1/dashboard/metrics
func dashboardMetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics, err := loadDashboardMetrics(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, metrics)
	}
}

// GET /api/v1/dashboard/recent-activity?limit=20
func recentActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		activity, err := models.ListRecentEmailActivity(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activity": activity, "count": len(activity)})
	}
}

// GET /api/v1/dashboard/escalation-queue
// Accounts that would receive an email if a batch ran right now.
func escalationQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contacts, err := escalation.LoadContactReadyClients(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		type queueEntry struct {
			ClientID          string          `json:"client_id"`
			AccountName       string          `json:"account_name"`
			EmailAddress      string          `json:"email_address"`
			EscalationDegree  int             `json:"escalation_degree"`
			Reason            string          `json:"reason"`
			InvoiceCount      int             `json:"invoice_count"`
			TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
			OldestInvoiceDays int             `json:"oldest_invoice_days"`
		}

		queue := []queueEntry{}
		for _, contact := range contacts {
			if contact.DncStatus || contact.EmailAddress == "" {
				continue
			}
			degree := escalation.DegreeForAccount(contact.Snapshots)
			if degree == escalation.DegreeNone {
				continue
			}
			queue = append(queue, queueEntry{
				ClientID:          contact.ClientID,
				AccountName:       contact.AccountName,
				EmailAddress:      contact.EmailAddress,
				EscalationDegree:  degree,
				Reason:            escalation.ReasonForDegree(degree),
				InvoiceCount:      len(escalation.QualifyingSnapshots(contact.Snapshots)),
				TotalOutstanding:  escalation.QualifyingTotal(contact.Snapshots),
				OldestInvoiceDays: escalation.OldestInvoiceDays(contact.Snapshots),
			})
		}

		c.JSON(http.StatusOK, gin.H{"queue": queue, "count": len(queue)})
	}
}

// GET /api/v1/dashboard/receivables
// Escalation-degree breakdown of the full receivables book.
func receivablesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := loadEscalationStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// GET /api/v1/dashboard/activity-summary?hours=24
func activitySummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
		if err != nil || hours < 1 || hours > 24*30 {
			hours = 24
		}
		since := time.Now().Add(-time.Duration(hours) * time.Hour)

		sent, failed, err := models.CountEmailActivitySince(c.Request.Context(), since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"window_hours": hours,
			"since":        since,
			"emails_sent":  sent,
			"send_failed":  failed,
		})
	}
}
