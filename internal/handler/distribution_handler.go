package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-grading-api/internal/dto"
	"github.com/noah-isme/institute-grading-api/internal/models"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
	"github.com/noah-isme/institute-grading-api/pkg/response"
)

type distributionService interface {
	List(ctx context.Context, query dto.DistributionQuery) ([]models.DistributionProfile, error)
	Get(ctx context.Context, id string) (*models.DistributionProfile, error)
	Create(ctx context.Context, req dto.DistributionProfileRequest) (*models.DistributionProfile, error)
	Update(ctx context.Context, id string, req dto.DistributionProfileRequest) (*models.DistributionProfile, error)
	Delete(ctx context.Context, id string) error
	ResolveQuery(ctx context.Context, query dto.DistributionQuery) (*models.DistributionProfile, error)
}

// DistributionHandler exposes grade distribution profile endpoints.
type DistributionHandler struct {
	distributions distributionService
}

// NewDistributionHandler constructs the handler.
func NewDistributionHandler(distributions distributionService) *DistributionHandler {
	return &DistributionHandler{distributions: distributions}
}

// List godoc
// @Summary List distribution profiles
// @Tags Distributions
// @Produce json
// @Param level query string false "Education level code or label"
// @Param system query string false "Study system code or label"
// @Success 200 {object} response.Envelope
// @Router /distribution-profiles [get]
func (h *DistributionHandler) List(c *gin.Context) {
	var query dto.DistributionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	profiles, err := h.distributions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, profiles)
}

// Get godoc
// @Summary Get distribution profile
// @Tags Distributions
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /distribution-profiles/{id} [get]
func (h *DistributionHandler) Get(c *gin.Context) {
	profile, err := h.distributions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// Create godoc
// @Summary Create distribution profile
// @Description Fails with DUPLICATE_CONFIGURATION when the level and study system already have a profile.
// @Tags Distributions
// @Accept json
// @Produce json
// @Param payload body dto.DistributionProfileRequest true "Profile payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /distribution-profiles [post]
func (h *DistributionHandler) Create(c *gin.Context) {
	var req dto.DistributionProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	profile, err := h.distributions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, profile)
}

// Update godoc
// @Summary Replace distribution profile
// @Description Bumps the profile version and schedules recalculation of stored period totals.
// @Tags Distributions
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param payload body dto.DistributionProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /distribution-profiles/{id} [put]
func (h *DistributionHandler) Update(c *gin.Context) {
	var req dto.DistributionProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	profile, err := h.distributions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, map[string]interface{}{"version": profile.Version})
}

// Delete godoc
// @Summary Delete distribution profile
// @Tags Distributions
// @Param id path string true "Profile ID"
// @Success 204 {string} string ""
// @Router /distribution-profiles/{id} [delete]
func (h *DistributionHandler) Delete(c *gin.Context) {
	if err := h.distributions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Resolve godoc
// @Summary Resolve governing distribution
// @Description Returns the legacy subject distribution when one exists, otherwise the flexible profile.
// @Tags Distributions
// @Produce json
// @Param level query string true "Education level code or label"
// @Param system query string true "Study system code or label"
// @Param subject query string false "Subject name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /distribution-profiles/resolve [get]
func (h *DistributionHandler) Resolve(c *gin.Context) {
	var query dto.DistributionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	profile, err := h.distributions.ResolveQuery(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, map[string]interface{}{"source": profile.Source})
}
