package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidyshare/tidyshare-api/internal/dto"
	"github.com/tidyshare/tidyshare-api/internal/models"
	"github.com/tidyshare/tidyshare-api/internal/service"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
	"github.com/tidyshare/tidyshare-api/pkg/response"
)

// SuggestionHandler wires HTTP endpoints to the suggestion review surface.
type SuggestionHandler struct {
	suggestions *service.SuggestionService
	exports     *service.ExportService
}

// NewSuggestionHandler creates a new handler.
func NewSuggestionHandler(suggestions *service.SuggestionService, exports *service.ExportService) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions, exports: exports}
}

// List godoc
// @Summary List suggestions
// @Description List one scan's cleanup suggestions with optional filters
// @Tags Suggestions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scan ID"
// @Param category query string false "Category filter"
// @Param severity query string false "Severity filter"
// @Param decision query string false "Decision filter"
// @Param source query string false "Source filter"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scans/{id}/suggestions [get]
func (h *SuggestionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.SuggestionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid suggestion filters"))
		return
	}

	filter := filterFromQuery(query)
	suggestions, err := h.suggestions.List(c.Request.Context(), claims.UserID, c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, suggestions, nil)
}

// Decide godoc
// @Summary Record a decision
// @Description Approve, reject, skip or mark executed one suggestion
// @Tags Suggestions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Suggestion ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /suggestions/{id}/decision [put]
func (h *SuggestionHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	suggestion, err := h.suggestions.Decide(c.Request.Context(), claims.UserID, c.Param("id"), models.UserDecision(req.Decision), req.Detail)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, suggestion, nil)
}

// History godoc
// @Summary Decision ledger
// @Description List one scan's recorded decisions, newest first
// @Tags Suggestions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scan ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scans/{id}/actions [get]
func (h *SuggestionHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	actions, err := h.suggestions.History(c.Request.Context(), claims.UserID, c.Param("id"), 100)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, actions, nil)
}

// Export godoc
// @Summary Export suggestions
// @Description Download one scan's suggestions as CSV or PDF
// @Tags Suggestions
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Scan ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scans/{id}/suggestions/export [get]
func (h *SuggestionHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.SuggestionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid suggestion filters"))
		return
	}

	format := service.ReportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.SuggestionsReport(c.Request.Context(), claims.UserID, c.Param("id"), format, filterFromQuery(query))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

func filterFromQuery(query dto.SuggestionListQuery) models.SuggestionFilter {
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := 0
	if query.Page > 1 {
		offset = (query.Page - 1) * limit
	}
	return models.SuggestionFilter{
		Category: models.SuggestionCategory(query.Category),
		Severity: models.SuggestionSeverity(query.Severity),
		Decision: models.UserDecision(query.Decision),
		Source:   models.SuggestionSource(query.Source),
		Limit:    limit,
		Offset:   offset,
	}
}
