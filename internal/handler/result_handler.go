package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-grading-api/internal/models"
	"github.com/noah-isme/institute-grading-api/internal/service"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
	"github.com/noah-isme/institute-grading-api/pkg/response"
)

type resultService interface {
	SubjectResult(ctx context.Context, studentID, subjectID, academicYear string) (*models.FinalResult, error)
	Transcript(ctx context.Context, studentID, academicYear string) (*models.Transcript, error)
	TopStudents(ctx context.Context, filter models.ResultFilter) ([]models.RankedResult, error)
	ReviewList(ctx context.Context, filter models.ResultFilter) ([]models.RankedResult, error)
	ExportTranscript(ctx context.Context, studentID, academicYear, format string) (*service.ExportFile, error)
}

// ResultHandler exposes computed results. Nothing here writes to storage.
type ResultHandler struct {
	results resultService
}

// NewResultHandler constructs the handler.
func NewResultHandler(results resultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// Transcript godoc
// @Summary Student transcript
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /results/students/{id} [get]
func (h *ResultHandler) Transcript(c *gin.Context) {
	transcript, err := h.results.Transcript(c.Request.Context(), c.Param("id"), c.Query("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript)
}

// SubjectResult godoc
// @Summary Subject final result
// @Description Recomputed from the stored raw scores with the governing distribution.
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Param subjectId path string true "Subject ID"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /results/students/{id}/subjects/{subjectId} [get]
func (h *ResultHandler) SubjectResult(c *gin.Context) {
	result, err := h.results.SubjectResult(c.Request.Context(), c.Param("id"), c.Param("subjectId"), c.Query("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"stale": result.Stale})
}

// Export godoc
// @Summary Export transcript
// @Tags Results
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param academicYear query string true "Academic year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /results/students/{id}/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	file, err := h.results.ExportTranscript(c.Request.Context(), c.Param("id"), c.Query("academicYear"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

// Top godoc
// @Summary Top students of a subject
// @Tags Results
// @Produce json
// @Param level query string true "Education level"
// @Param system query string true "Study system"
// @Param subjectId query string true "Subject ID"
// @Param academicYear query string true "Academic year"
// @Param limit query int false "Maximum entries" default(10)
// @Success 200 {object} response.Envelope
// @Router /results/top [get]
func (h *ResultHandler) Top(c *gin.Context) {
	var filter models.ResultFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	ranked, err := h.results.TopStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, ranked)
}

// Review godoc
// @Summary Failed and incomplete results of a subject
// @Tags Results
// @Produce json
// @Param level query string true "Education level"
// @Param system query string true "Study system"
// @Param subjectId query string true "Subject ID"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /results/review [get]
func (h *ResultHandler) Review(c *gin.Context) {
	var filter models.ResultFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	review, err := h.results.ReviewList(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, review)
}
