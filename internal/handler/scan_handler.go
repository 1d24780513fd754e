package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tidyshare/tidyshare-api/internal/dto"
	"github.com/tidyshare/tidyshare-api/internal/service"
	appErrors "github.com/tidyshare/tidyshare-api/pkg/errors"
	"github.com/tidyshare/tidyshare-api/pkg/response"
)

// ScanHandler wires HTTP endpoints to the crawl and analysis engines.
type ScanHandler struct {
	crawl    *service.CrawlService
	analysis *service.AnalysisService
}

// NewScanHandler creates a new handler.
func NewScanHandler(crawl *service.CrawlService, analysis *service.AnalysisService) *ScanHandler {
	return &ScanHandler{crawl: crawl, analysis: analysis}
}

// Start godoc
// @Summary Start a scan
// @Description Resolve a SharePoint URL and start crawling it
// @Tags Scans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.StartScanRequest true "Scan payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /scans [post]
func (h *ScanHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan payload"))
		return
	}

	scan, err := h.crawl.StartCrawl(c.Request.Context(), claims.UserID, req.SourceURL)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ScanStatusFromModel(scan))
}

// Poll godoc
// @Summary Poll scan status
// @Description Report crawl state and advance a running crawl by one batch
// @Tags Scans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scan ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scans/{id} [get]
func (h *ScanHandler) Poll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.crawl.PollCrawl(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// List godoc
// @Summary List scans
// @Tags Scans
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /scans [get]
func (h *ScanHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	scans, err := h.crawl.ListScans(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	statuses := make([]dto.ScanStatusResponse, 0, len(scans))
	for i := range scans {
		statuses = append(statuses, dto.ScanStatusFromModel(&scans[i]))
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// Analyze godoc
// @Summary Run analysis
// @Description Run the rules and AI passes over a crawled scan
// @Tags Scans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scan ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scans/{id}/analyze [post]
func (h *ScanHandler) Analyze(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.analysis.RunAnalysis(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
