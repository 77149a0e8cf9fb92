package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-grading-api/internal/dto"
	"github.com/noah-isme/institute-grading-api/internal/grading"
	"github.com/noah-isme/institute-grading-api/internal/models"
	"github.com/noah-isme/institute-grading-api/internal/repository"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
	applog "github.com/noah-isme/institute-grading-api/pkg/logger"
)

const (
	distributionCachePrefix = "grading:distribution:"
	weightTolerance         = 0.001
	// totalTolerance absorbs one-decimal rounding of declared period totals.
	totalTolerance          = 0.05
)

type distributionRepository interface {
	List(ctx context.Context, filter models.DistributionFilter) ([]models.DistributionProfile, error)
	FindByID(ctx context.Context, id string) (*models.DistributionProfile, error)
	FindByKey(ctx context.Context, level models.EducationLevel, system models.StudySystem) (*models.DistributionProfile, error)
	Exists(ctx context.Context, level models.EducationLevel, system models.StudySystem, excludeID string) (bool, error)
	Create(ctx context.Context, profile *models.DistributionProfile) error
	Update(ctx context.Context, profile *models.DistributionProfile) error
	Delete(ctx context.Context, id string) error
}

type distributionCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// RecalculationScheduler queues recomputation of records governed by a profile.
type RecalculationScheduler interface {
	ScheduleRecalculation(ctx context.Context, key models.DistributionKey) error
}

// DistributionServiceConfig tunes registry behaviour.
type DistributionServiceConfig struct {
	CacheTTL time.Duration
	Legacy   *grading.LegacyTable
}

// DistributionService manages flexible distribution profiles and resolves the
// profile governing a grade through the distribution registry.
type DistributionService struct {
	repo      distributionRepository
	cache     distributionCache
	recalc    RecalculationScheduler
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
	registry  *grading.Registry
}

// NewDistributionService constructs a DistributionService. Legacy entries take
// precedence over flexible profiles for the subjects they name.
func NewDistributionService(repo distributionRepository, cache distributionCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg DistributionServiceConfig) *DistributionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DistributionService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cacheTTL:  cfg.CacheTTL,
	}
	svc.registry = grading.NewRegistry(cfg.Legacy, grading.SourceFunc(svc.lookupFlexible))
	return svc
}

// SetRecalculationScheduler wires the background recalculation trigger.
func (s *DistributionService) SetRecalculationScheduler(scheduler RecalculationScheduler) {
	s.recalc = scheduler
}

// List returns flexible profiles matching the query.
func (s *DistributionService) List(ctx context.Context, query dto.DistributionQuery) ([]models.DistributionProfile, error) {
	filter := models.DistributionFilter{}
	if query.EducationLevel != "" {
		level, ok := models.ParseEducationLevel(query.EducationLevel)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown education level")
		}
		filter.EducationLevel = level
	}
	if query.StudySystem != "" {
		system, ok := models.ParseStudySystem(query.StudySystem)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown study system")
		}
		filter.StudySystem = system
	}
	profiles, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list distribution profiles")
	}
	return profiles, nil
}

// Get returns a flexible profile by ID.
func (s *DistributionService) Get(ctx context.Context, id string) (*models.DistributionProfile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfigurationNotFound, "distribution profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load distribution profile")
	}
	return profile, nil
}

// Create stores a new flexible profile. A second profile for the same level
// and system is refused; callers must update the existing one.
func (s *DistributionService) Create(ctx context.Context, req dto.DistributionProfileRequest) (*models.DistributionProfile, error) {
	profile, err := s.buildProfile(req)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.Exists(ctx, profile.EducationLevel, profile.StudySystem, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check distribution profile")
	}
	if exists {
		return nil, duplicateConfiguration(profile)
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, duplicateConfiguration(profile)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create distribution profile")
	}
	s.invalidate(ctx, profile.EducationLevel, profile.StudySystem)
	// Records kept from a deleted profile are restamped under the new one.
	s.scheduleRecalculation(ctx, profile)
	applog.FromContext(ctx, s.logger).Info("distribution profile created",
		zap.String("profile_id", profile.ID),
		zap.String("education_level", string(profile.EducationLevel)),
		zap.String("study_system", string(profile.StudySystem)))
	return profile, nil
}

// Update replaces the maxima and weights of a profile, bumps its version and
// schedules recalculation of the records it governs.
func (s *DistributionService) Update(ctx context.Context, id string, req dto.DistributionProfileRequest) (*models.DistributionProfile, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.buildProfile(req)
	if err != nil {
		return nil, err
	}
	if profile.EducationLevel != existing.EducationLevel || profile.StudySystem != existing.StudySystem {
		return nil, appErrors.Clone(appErrors.ErrValidation, "education level and study system of a profile cannot change")
	}
	profile.ID = existing.ID
	profile.Version = existing.Version
	profile.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, profile); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfigurationNotFound, "distribution profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update distribution profile")
	}
	s.invalidate(ctx, profile.EducationLevel, profile.StudySystem)

	s.scheduleRecalculation(ctx, profile)
	applog.FromContext(ctx, s.logger).Info("distribution profile updated", zap.String("profile_id", profile.ID), zap.Int("version", profile.Version))
	return profile, nil
}

// Delete removes a flexible profile.
func (s *DistributionService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConfigurationNotFound, "distribution profile not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete distribution profile")
	}
	s.invalidate(ctx, existing.EducationLevel, existing.StudySystem)
	return nil
}

// Resolve returns the profile governing a level, system and subject. It never
// falls back to a default profile.
func (s *DistributionService) Resolve(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
	profile, err := s.registry.Lookup(ctx, key)
	if err != nil {
		if errors.Is(err, grading.ErrNotConfigured) {
			s.metrics.RecordNotConfigured()
			return nil, appErrors.Clone(appErrors.ErrConfigurationNotFound,
				fmt.Sprintf("grading not configured for %s / %s", key.EducationLevel.Label(), key.StudySystem.Label()))
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve distribution")
	}
	return profile, nil
}

// ResolveQuery parses a query and resolves it.
func (s *DistributionService) ResolveQuery(ctx context.Context, query dto.DistributionQuery) (*models.DistributionProfile, error) {
	level, ok := models.ParseEducationLevel(query.EducationLevel)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown education level")
	}
	system, ok := models.ParseStudySystem(query.StudySystem)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown study system")
	}
	return s.Resolve(ctx, models.DistributionKey{EducationLevel: level, StudySystem: system, Subject: query.Subject})
}

func (s *DistributionService) lookupFlexible(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
	cacheKey := distributionCacheKey(key.EducationLevel, key.StudySystem)
	if s.cache != nil {
		var cached models.DistributionProfile
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}
	profile, err := s.repo.FindByKey(ctx, key.EducationLevel, key.StudySystem)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, grading.ErrNotConfigured
		}
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, profile, s.cacheTTL)
	}
	return profile, nil
}

func (s *DistributionService) invalidate(ctx context.Context, level models.EducationLevel, system models.StudySystem) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, distributionCacheKey(level, system)); err != nil {
		applog.FromContext(ctx, s.logger).Warn("failed to invalidate distribution cache", zap.Error(err))
	}
}

func (s *DistributionService) scheduleRecalculation(ctx context.Context, profile *models.DistributionProfile) {
	if s.recalc == nil {
		return
	}
	key := models.DistributionKey{EducationLevel: profile.EducationLevel, StudySystem: profile.StudySystem}
	if err := s.recalc.ScheduleRecalculation(ctx, key); err != nil {
		applog.FromContext(ctx, s.logger).Warn("failed to schedule recalculation", zap.String("profile_id", profile.ID), zap.Error(err))
	}
}

func (s *DistributionService) buildProfile(req dto.DistributionProfileRequest) (*models.DistributionProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid distribution payload")
	}
	level, ok := models.ParseEducationLevel(req.EducationLevel)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown education level")
	}
	system, ok := models.ParseStudySystem(req.StudySystem)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown study system")
	}
	profile := &models.DistributionProfile{
		EducationLevel:    level,
		StudySystem:       system,
		Source:            models.ProfileSourceFlexible,
		FirstPeriod:       req.FirstPeriod,
		SecondPeriod:      req.SecondPeriod,
		ThirdPeriod:       req.ThirdPeriod,
		TwoPeriodsWeight:  req.TwoPeriodsWeight,
		ThirdPeriodWeight: req.ThirdPeriodWeight,
		TotalGrade:        req.TotalGrade,
	}
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func validateProfile(profile *models.DistributionProfile) error {
	for _, period := range models.AllPeriods {
		dist := profile.Period(period)
		if dist.MonthsCount < 0 || dist.MonthsCount > 3 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: months count must be between 0 and 3", period.Label()))
		}
		if dist.MonthlyGrade < 0 || dist.MonthlyAverage < 0 || dist.PeriodExam < 0 || dist.PeriodTotal < 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: maxima must not be negative", period.Label()))
		}
		if dist.MonthsCount > 0 && dist.MonthlyAverage > dist.MonthlyGrade {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: monthly average cannot exceed the monthly grade", period.Label()))
		}
		if want := grading.PeriodMax(dist, period); math.Abs(dist.PeriodTotal-want) > totalTolerance {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("%s: period total must be %.1f, the highest total its months and exam can produce", period.Label(), want))
		}
	}

	twoMax := profile.FirstPeriod.PeriodTotal + profile.SecondPeriod.PeriodTotal
	thirdMax := profile.ThirdPeriod.PeriodTotal
	if profile.Weighted() {
		if profile.TotalGrade <= 0 {
			return appErrors.Clone(appErrors.ErrInvalidWeights, "total grade must be positive")
		}
		if math.Abs(profile.TwoPeriodsWeight+profile.ThirdPeriodWeight-profile.TotalGrade) > weightTolerance {
			return appErrors.Clone(appErrors.ErrInvalidWeights, "period weights must add up to the total grade")
		}
		// A weight over a zero ceiling can never be earned.
		if profile.TwoPeriodsWeight > 0 && twoMax <= 0 {
			return appErrors.Clone(appErrors.ErrInvalidWeights, "first and second periods carry weight but have no period total")
		}
		if profile.ThirdPeriodWeight > 0 && thirdMax <= 0 {
			return appErrors.Clone(appErrors.ErrInvalidWeights, "third period carries weight but has no period total")
		}
	} else if twoMax+thirdMax <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one period needs a period total")
	}

	// Distance students below the final year only sit the third period, so it
	// must carry the whole total.
	if profile.StudySystem.IsDistance() && !profile.EducationLevel.IsFinal() {
		if profile.Weighted() && profile.TwoPeriodsWeight > weightTolerance {
			return appErrors.Clone(appErrors.ErrInvalidWeights, "distance profiles below the final year must put the whole total on the third period")
		}
		if !profile.Weighted() && twoMax > 0 {
			return appErrors.Clone(appErrors.ErrValidation, "distance profiles below the final year cannot grade the first or second period")
		}
	}
	return nil
}

func duplicateConfiguration(profile *models.DistributionProfile) error {
	return appErrors.Clone(appErrors.ErrDuplicateConfiguration,
		fmt.Sprintf("distribution profile for %s / %s already exists, use update instead", profile.EducationLevel.Label(), profile.StudySystem.Label()))
}

func distributionCacheKey(level models.EducationLevel, system models.StudySystem) string {
	return distributionCachePrefix + string(level) + ":" + string(system)
}
