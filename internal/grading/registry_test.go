package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

func TestRegistryPrefersLegacySubjectOverride(t *testing.T) {
	flexible := SourceFunc(func(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
		return flexibleProfile(), nil
	})
	registry := NewRegistry(DefaultLegacyTable(), flexible)

	profile, err := registry.Lookup(context.Background(), models.DistributionKey{
		EducationLevel: models.LevelFirstYear,
		StudySystem:    models.StudySystemRegular,
		Subject:        "  اللغة   العربية ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProfileSourceLegacy, profile.Source)
	assert.Equal(t, 25.0, profile.FirstPeriod.PeriodTotal)

	profile, err = registry.Lookup(context.Background(), models.DistributionKey{
		EducationLevel: models.LevelFirstYear,
		StudySystem:    models.StudySystemRegular,
		Subject:        "الفيزياء",
	})
	require.NoError(t, err)
	assert.Equal(t, "flex", profile.ID)
}

func TestRegistryNotConfigured(t *testing.T) {
	registry := NewRegistry(DefaultLegacyTable())

	_, err := registry.Lookup(context.Background(), models.DistributionKey{
		EducationLevel: models.LevelFirstYear,
		StudySystem:    models.StudySystemDistance,
	})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRegistryPropagatesSourceFailures(t *testing.T) {
	boom := errors.New("db down")
	registry := NewRegistry(SourceFunc(func(ctx context.Context, key models.DistributionKey) (*models.DistributionProfile, error) {
		return nil, boom
	}), DefaultLegacyTable())

	_, err := registry.Lookup(context.Background(), models.DistributionKey{EducationLevel: models.LevelFirstYear, StudySystem: models.StudySystemRegular})
	assert.ErrorIs(t, err, boom)
}

func TestDefaultLegacyTableTotals(t *testing.T) {
	table := DefaultLegacyTable()
	assert.Equal(t, 15, table.Len())

	activity, err := table.Lookup(context.Background(), models.DistributionKey{
		EducationLevel: models.LevelThirdYear,
		StudySystem:    models.StudySystemRegular,
		Subject:        "التربية الفنية",
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, activity.TotalPossible())
}

func TestDefaultLegacyTableTotalsAreReachable(t *testing.T) {
	for key, profile := range DefaultLegacyTable().entries {
		var sum float64
		for _, period := range models.AllPeriods {
			dist := profile.Period(period)
			assert.Equal(t, dist.PeriodTotal, PeriodMax(dist, period), "%v %s", key, period.Label())
			sum += dist.PeriodTotal
		}
		assert.Equal(t, profile.TotalGrade, sum, "%v", key)
	}
}
