package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

func TestValidate(t *testing.T) {
	dist := models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 25, MonthlyAverage: 25, PeriodExam: 50, PeriodTotal: 50}

	cases := []struct {
		name  string
		value float64
		slot  models.SlotKind
		ok    bool
	}{
		{"zero monthly", 0, models.SlotMonthly, true},
		{"monthly at max", 25, models.SlotMonthly, true},
		{"monthly above max", 25.5, models.SlotMonthly, false},
		{"exam allows higher max", 48.5, models.SlotExam, true},
		{"exam above max", 50.1, models.SlotExam, false},
		{"negative", -1, models.SlotExam, false},
		{"one decimal", 12.3, models.SlotMonthly, true},
		{"two decimals", 12.35, models.SlotMonthly, false},
		{"float noise within tolerance", 0.1 + 0.2, models.SlotMonthly, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.value, tc.slot, dist)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var rejection *Rejection
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, SlotMax(tc.slot, dist), rejection.Max)
		})
	}
}

func TestValidateReportsMaximum(t *testing.T) {
	dist := models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 25, PeriodExam: 50}
	err := Validate(60, models.SlotExam, dist)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "50")
}

func TestValidateAcceptedValuesStayInRange(t *testing.T) {
	dist := models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 20, PeriodExam: 40}
	for v := -5.0; v <= 45; v += 0.1 {
		for _, slot := range []models.SlotKind{models.SlotMonthly, models.SlotExam} {
			if Validate(v, slot, dist) == nil {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, SlotMax(slot, dist))
			}
		}
	}
}

func TestValidateEntryRejectsUnconfiguredMonth(t *testing.T) {
	dist := models.PeriodDistribution{MonthsCount: 2, MonthlyGrade: 25, MonthlyAverage: 25, PeriodExam: 50}
	errs := ValidateEntry([3]*float64{f(10), f(12), f(14)}, f(30), dist)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "month 3")
}

func TestValidateEntryCollectsEveryFailure(t *testing.T) {
	dist := models.PeriodDistribution{MonthsCount: 3, MonthlyGrade: 25, MonthlyAverage: 25, PeriodExam: 50}
	errs := ValidateEntry([3]*float64{f(30), nil, f(-1)}, f(51), dist)
	assert.Len(t, errs, 3)
}
