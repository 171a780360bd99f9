package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/receivables_backend/models"
	"bitbucket.org/mmdatafocus/receivables_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func templateErrorStatus(err error) int {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// bindingErrorResponse reports struct-tag validation failures per field.
func bindingErrorResponse(c *gin.Context, err error) {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(verr)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// POST /api/v1/email-templates
func createTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewEmailTemplate
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingErrorResponse(c, err)
			return
		}

		template, err := models.CreateEmailTemplate(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, template)
	}
}

// GET /api/v1/email-templates
// Active version of every identifier.
func listTemplatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		templates, err := models.ListActiveTemplates(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
	}
}

// GET /api/v1/email-templates/latest
// Newest version of every identifier, active or not.
func listLatestTemplatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		templates, err := models.ListLatestTemplates(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
	}
}

// GET /api/v1/email-templates/:identifier
func getTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		template, err := models.GetActiveTemplate(c.Request.Context(), c.Param("identifier"))
		if err != nil {
			c.JSON(templateErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, template)
	}
}

// GET /api/v1/email-templates/:identifier/versions
func listTemplateVersionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		versions, err := models.ListTemplateVersions(c.Request.Context(), c.Param("identifier"))
		if err != nil {
			c.JSON(templateErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"versions": versions, "count": len(versions)})
	}
}

// GET /api/v1/email-templates/:identifier/versions/:version
func getTemplateVersionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		version, err := strconv.Atoi(c.Param("version"))
		if err != nil || version < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
			return
		}

		template, err := models.GetTemplateVersion(c.Request.Context(), c.Param("identifier"), version)
		if err != nil {
			c.JSON(templateErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, template)
	}
}

// PUT /api/v1/email-templates/:identifier
// Writes a new active version rather than mutating in place.
func updateTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewEmailTemplate
		input.Identifier = c.Param("identifier")
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingErrorResponse(c, err)
			return
		}

		template, err := models.UpdateEmailTemplate(c.Request.Context(), c.Param("identifier"), &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, template)
	}
}

// POST /api/v1/email-templates/:identifier/versions/:version/activate
func activateTemplateVersionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		version, err := strconv.Atoi(c.Param("version"))
		if err != nil || version < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
			return
		}

		template, err := models.ActivateTemplateVersion(c.Request.Context(), c.Param("identifier"), version)
		if err != nil {
			c.JSON(templateErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, template)
	}
}

// DELETE /api/v1/email-templates/:identifier
// Removes every version of the identifier.
func deleteTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := models.DeleteEmailTemplate(c.Request.Context(), c.Param("identifier"))
		if err != nil {
			c.JSON(templateErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_versions": deleted})
	}
}
