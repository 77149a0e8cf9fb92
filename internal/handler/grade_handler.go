package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-grading-api/internal/dto"
	"github.com/noah-isme/institute-grading-api/internal/models"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
	"github.com/noah-isme/institute-grading-api/pkg/response"
)

type gradeEntryService interface {
	Eligibility(ctx context.Context, studentID string) (models.Eligibility, error)
	Enter(ctx context.Context, req dto.GradeEntryRequest) (*models.SubjectGradeRecord, error)
	Import(ctx context.Context, req dto.GradeImportRequest) (*dto.GradeImportResult, error)
	Reset(ctx context.Context, key models.GradeRecordKey) error
	List(ctx context.Context, filter models.GradeRecordFilter) ([]models.SubjectGradeRecord, error)
}

// GradeHandler exposes grade entry endpoints.
type GradeHandler struct {
	grades gradeEntryService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeEntryService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Eligibility godoc
// @Summary Grade entry eligibility
// @Description Periods that currently accept grades for the student.
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/eligibility [get]
func (h *GradeHandler) Eligibility(c *gin.Context) {
	eligibility, err := h.grades.Eligibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eligibility)
}

// List godoc
// @Summary List grade records
// @Tags Grades
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param subjectId query string false "Filter by subject"
// @Param academicYear query string false "Filter by academic year"
// @Param period query int false "Filter by period (1-3)"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeRecordFilter{
		StudentID:    c.Query("studentId"),
		SubjectID:    c.Query("subjectId"),
		AcademicYear: c.Query("academicYear"),
	}
	if raw := c.Query("period"); raw != "" {
		period, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid period"))
			return
		}
		filter.Period = models.Period(period)
	}
	records, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, records)
}

// Enter godoc
// @Summary Enter period grades
// @Description Stores the scores of one period. Omitted fields keep their stored value.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.GradeEntryRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /grades [put]
func (h *GradeHandler) Enter(c *gin.Context) {
	var req dto.GradeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.grades.Enter(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Import godoc
// @Summary Bulk import grades
// @Description Rows that fail are skipped and reported by their 1-based position.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.GradeImportRequest true "Import payload"
// @Success 200 {object} response.Envelope
// @Router /grades/import [post]
func (h *GradeHandler) Import(c *gin.Context) {
	var req dto.GradeImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.grades.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Reset godoc
// @Summary Reset a period record
// @Tags Grades
// @Param studentId query string true "Student ID"
// @Param subjectId query string true "Subject ID"
// @Param academicYear query string true "Academic year"
// @Param period query int true "Period (1-3)"
// @Success 204 {string} string ""
// @Router /grades [delete]
func (h *GradeHandler) Reset(c *gin.Context) {
	var key models.GradeRecordKey
	if err := c.ShouldBindQuery(&key); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.grades.Reset(c.Request.Context(), key); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
