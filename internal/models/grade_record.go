package models

import "time"

// SubjectGradeRecord stores the raw and derived scores of one student for one
// subject, academic year and grading period.
type SubjectGradeRecord struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	AcademicYear   string    `db:"academic_year" json:"academic_year"`
	Period         Period    `db:"period" json:"period"`
	Month1         *float64  `db:"month1" json:"month1,omitempty"`
	Month2         *float64  `db:"month2" json:"month2,omitempty"`
	Month3         *float64  `db:"month3" json:"month3,omitempty"`
	ExamScore      *float64  `db:"exam_score" json:"exam_score,omitempty"`
	WorkTotal      float64   `db:"work_total" json:"work_total"`
	PeriodTotal    *float64  `db:"period_total" json:"period_total,omitempty"`
	ProfileID      string    `db:"profile_id" json:"profile_id"`
	ProfileVersion int       `db:"profile_version" json:"profile_version"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Months returns the three monthly slots in order.
func (r *SubjectGradeRecord) Months() [3]*float64 {
	return [3]*float64{r.Month1, r.Month2, r.Month3}
}

// Key returns the upsert key of the record.
func (r *SubjectGradeRecord) Key() GradeRecordKey {
	return GradeRecordKey{StudentID: r.StudentID, SubjectID: r.SubjectID, AcademicYear: r.AcademicYear, Period: r.Period}
}

// GradeRecordKey uniquely identifies a SubjectGradeRecord.
type GradeRecordKey struct {
	StudentID    string `json:"student_id" form:"studentId" validate:"required"`
	SubjectID    string `json:"subject_id" form:"subjectId" validate:"required"`
	AcademicYear string `json:"academic_year" form:"academicYear" validate:"required"`
	Period       Period `json:"period" form:"period" validate:"required,min=1,max=3"`
}

// GradeRecordFilter scopes record listings.
type GradeRecordFilter struct {
	StudentID    string
	SubjectID    string
	AcademicYear string
	Period       Period
}

// PeriodResult is the recomputed view of one period inside a final result.
type PeriodResult struct {
	Period         Period   `json:"period"`
	PeriodLabel    string   `json:"period_label"`
	Required       bool     `json:"required"`
	WorkTotal      float64  `json:"work_total"`
	PeriodTotal    *float64 `json:"period_total,omitempty"`
	PersistedTotal *float64 `json:"persisted_total,omitempty"`
}

// FinalResult is the computed outcome of a subject for one academic year.
type FinalResult struct {
	StudentID     string         `json:"student_id"`
	SubjectID     string         `json:"subject_id"`
	SubjectName   string         `json:"subject_name,omitempty"`
	AcademicYear  string         `json:"academic_year"`
	FinalTotal    float64        `json:"final_total"`
	TotalPossible float64        `json:"total_possible"`
	Percentage    float64        `json:"percentage"`
	LetterGrade   LetterGrade    `json:"letter_grade,omitempty"`
	LetterLabel   string         `json:"letter_label,omitempty"`
	Status        ResultStatus   `json:"status"`
	StatusLabel   string         `json:"status_label"`
	Periods       []PeriodResult `json:"periods,omitempty"`
	Stale         bool           `json:"stale"`
}

// Transcript lists every subject result of a student for one academic year.
type Transcript struct {
	StudentID      string         `json:"student_id"`
	StudentName    string         `json:"student_name"`
	EducationLevel EducationLevel `json:"education_level"`
	StudySystem    StudySystem    `json:"study_system"`
	AcademicYear   string         `json:"academic_year"`
	Subjects       []FinalResult  `json:"subjects"`
}

// RankedResult is one row of a top-student ranking.
type RankedResult struct {
	Rank        int    `json:"rank"`
	StudentName string `json:"student_name"`
	FinalResult
}

// ResultFilter scopes rankings and review lists.
type ResultFilter struct {
	EducationLevel EducationLevel `form:"level" validate:"required"`
	StudySystem    StudySystem    `form:"system" validate:"required"`
	SubjectID      string         `form:"subjectId" validate:"required"`
	AcademicYear   string         `form:"academicYear" validate:"required"`
	Limit          int            `form:"limit"`
}
