package main

import (
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/aiclient"
	"bitbucket.org/mmdatafocus/receivables_backend/escalation"
	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"github.com/gin-gonic/gin"
)

// aiGenerator is set at startup when CLAUDE_API_KEY is configured; the
// ai/status endpoint reports on it.
var aiGenerator *aiclient.Client

// contactsInput accepts either an explicit contact list or an empty body, in
// which case contacts are rebuilt from the database.
type contactsInput struct {
	Contacts []escalation.ContactReadyClient `json:"contacts"`
}

func resolveContacts(c *gin.Context) ([]escalation.ContactReadyClient, bool) {
	var input contactsInput
	if err := c.ShouldBindJSON(&input); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	if len(input.Contacts) > 0 {
		return input.Contacts, true
	}

	contacts, err := escalation.LoadContactReadyClients(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return contacts, true
}

// POST /api/v1/escalation/process
func escalationProcessHandler(processor *escalation.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req escalation.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			// allow an empty body to mean "process everything in the database"
			if c.Request.ContentLength > 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			contacts, err := escalation.LoadContactReadyClients(ctx)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			req = escalation.BatchRequest{Contacts: contacts, SendEmails: true}
		}

		if processor.Generator == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI email generation is not configured"})
			return
		}

		// serialize batch runs; overlapping sends would double-email accounts
		release, err := utils.ProcessLock(ctx, "Escalation", "batch", 15*time.Minute, "main", "escalationProcessHandler")
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "another escalation batch is already running"})
			return
		}
		defer release()

		spanCtx, span := tracer.Start(ctx, "escalation.process_batch")
		resp := processor.ProcessBatch(spanCtx, &req)
		span.End()

		status := http.StatusOK
		if !resp.Success {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, resp)
	}
}

// POST /api/v1/escalation/preview
// Identical classification and drafting, but never sends.
func escalationPreviewHandler(processor *escalation.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		contacts, ok := resolveContacts(c)
		if !ok {
			return
		}

		if processor.Generator == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI email generation is not configured"})
			return
		}

		req := escalation.BatchRequest{Contacts: contacts, Preview: true}
		resp := processor.ProcessBatch(c.Request.Context(), &req)

		status := http.StatusOK
		if !resp.Success {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, resp)
	}
}

// POST /api/v1/escalation/analyze
func escalationAnalyzeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contacts, ok := resolveContacts(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, escalation.AnalyzeContacts(contacts))
	}
}

// POST /api/v1/escalation/validate
func escalationValidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contacts, ok := resolveContacts(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, escalation.ValidateContacts(contacts))
	}
}

// GET /api/v1/escalation/templates
func escalationTemplatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		templates, err := models.ListEscalationTemplates(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"templates": templates,
			"count":     len(templates),
		})
	}
}

// GET /api/v1/escalation/ai/status
func aiStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if aiGenerator == nil {
			c.JSON(http.StatusOK, gin.H{
				"configured": false,
				"connected":  false,
				"error":      "CLAUDE_API_KEY is not set",
			})
			return
		}

		resp := gin.H{
			"configured": true,
			"model":      aiGenerator.Model(),
		}
		if err := aiGenerator.TestConnection(c.Request.Context()); err != nil {
			resp["connected"] = false
			resp["error"] = err.Error()
		} else {
			resp["connected"] = true
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GET /api/v1/escalation/degrees/info
func degreesInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"degrees": escalation.DegreesInfo()})
	}
}
