package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/pkg/export"
	"github.com/noah-isme/seatwatch/pkg/response"
)

type sectionQuery interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, *models.Pagination, error)
	Get(ctx context.Context, key models.SectionKey) (*models.CourseSection, error)
	Export(ctx context.Context, filter models.SectionFilter, format string) (*export.Document, error)
}

// SectionHandler exposes the monitored catalog.
type SectionHandler struct {
	sections sectionQuery
}

// NewSectionHandler constructs SectionHandler.
func NewSectionHandler(sections sectionQuery) *SectionHandler {
	return &SectionHandler{sections: sections}
}

// List godoc
// @Summary List monitored sections
// @Tags Sections
// @Produce json
// @Param courseCode query string false "Filter by course code"
// @Param full query bool false "Filter by full state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *SectionHandler) List(c *gin.Context) {
	filter := sectionFilterFromQuery(c)
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	sections, pagination, err := h.sections.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, pagination)
}

// Get godoc
// @Summary Get one section
// @Tags Sections
// @Produce json
// @Param courseCode path string true "Course code"
// @Param sectionNumber path string true "Section number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{courseCode}/{sectionNumber} [get]
func (h *SectionHandler) Get(c *gin.Context) {
	key := models.SectionKey{CourseCode: c.Param("courseCode"), SectionNumber: c.Param("sectionNumber")}
	section, err := h.sections.Get(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// Export godoc
// @Summary Download monitored sections
// @Tags Sections
// @Produce text/csv
// @Produce application/pdf
// @Param courseCode query string false "Filter by course code"
// @Param full query bool false "Filter by full state"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /sections/export [get]
func (h *SectionHandler) Export(c *gin.Context) {
	doc, err := h.sections.Export(c.Request.Context(), sectionFilterFromQuery(c), c.DefaultQuery("format", export.FormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func sectionFilterFromQuery(c *gin.Context) models.SectionFilter {
	var filter models.SectionFilter
	filter.CourseCode = strings.TrimSpace(c.Query("courseCode"))
	switch c.Query("full") {
	case "true":
		v := true
		filter.Full = &v
	case "false":
		v := false
		filter.Full = &v
	}
	return filter
}
