package dto

import "github.com/noah-isme/institute-grading-api/internal/models"

// DistributionProfileRequest is the admin payload for creating or replacing a
// distribution profile. Level and system accept a code or its Arabic label.
type DistributionProfileRequest struct {
	EducationLevel    string                    `json:"education_level" validate:"required"`
	StudySystem       string                    `json:"study_system" validate:"required"`
	FirstPeriod       models.PeriodDistribution `json:"first_period"`
	SecondPeriod      models.PeriodDistribution `json:"second_period"`
	ThirdPeriod       models.PeriodDistribution `json:"third_period"`
	TwoPeriodsWeight  float64                   `json:"two_periods_weight" validate:"gte=0"`
	ThirdPeriodWeight float64                   `json:"third_period_weight" validate:"gte=0"`
	TotalGrade        float64                   `json:"total_grade" validate:"gte=0"`
}

// DistributionQuery scopes profile listing and resolution.
type DistributionQuery struct {
	EducationLevel string `form:"level"`
	StudySystem    string `form:"system"`
	Subject        string `form:"subject"`
}

// GradeEntryRequest carries the raw scores of one period. Omitted fields keep
// their stored value.
type GradeEntryRequest struct {
	StudentID    string   `json:"student_id" validate:"required"`
	SubjectID    string   `json:"subject_id" validate:"required"`
	AcademicYear string   `json:"academic_year" validate:"required"`
	Period       int      `json:"period" validate:"required,min=1,max=3"`
	Month1       *float64 `json:"month1"`
	Month2       *float64 `json:"month2"`
	Month3       *float64 `json:"month3"`
	ExamScore    *float64 `json:"exam_score"`
}

// GradeImportRow is one spreadsheet row of a bulk import.
type GradeImportRow struct {
	StudentID string   `json:"student_id" validate:"required"`
	SubjectID string   `json:"subject_id" validate:"required"`
	Period    int      `json:"period" validate:"required,min=1,max=3"`
	Month1    *float64 `json:"month1"`
	Month2    *float64 `json:"month2"`
	Month3    *float64 `json:"month3"`
	ExamScore *float64 `json:"exam_score"`
}

// GradeImportRequest groups rows for one academic year.
type GradeImportRequest struct {
	AcademicYear string           `json:"academic_year" validate:"required"`
	Rows         []GradeImportRow `json:"rows" validate:"required,min=1"`
}

// GradeImportFailure reports a skipped row by its 1-based position.
type GradeImportFailure struct {
	Row       int    `json:"row"`
	StudentID string `json:"student_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Reason    string `json:"reason"`
}

// GradeImportResult summarises a bulk import.
type GradeImportResult struct {
	Total    int                  `json:"total"`
	Imported int                  `json:"imported"`
	Failures []GradeImportFailure `json:"failures"`
}

// RecalculationReport summarises a profile recalculation run.
type RecalculationReport struct {
	EducationLevel models.EducationLevel `json:"education_level"`
	StudySystem    models.StudySystem    `json:"study_system"`
	Scanned        int                   `json:"scanned"`
	Updated        int                   `json:"updated"`
	Skipped        int                   `json:"skipped"`
	Failed         int                   `json:"failed"`
}
