package models

import "time"

// Student represents a learner registered in the institute.
type Student struct {
	ID             string         `db:"id" json:"id"`
	NIS            string         `db:"nis" json:"nis"`
	FullName       string         `db:"full_name" json:"full_name"`
	EducationLevel EducationLevel `db:"education_level" json:"education_level"`
	StudySystem    StudySystem    `db:"study_system" json:"study_system"`
	DiplomaTrack   bool           `db:"diploma_track" json:"diploma_track"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// AcademicContext returns the facts that drive grading eligibility.
func (s *Student) AcademicContext() StudentAcademicContext {
	return StudentAcademicContext{
		EducationLevel: s.EducationLevel,
		StudySystem:    s.StudySystem,
		DiplomaTrack:   s.DiplomaTrack,
	}
}

// StudentAcademicContext is derived per request, never stored on its own.
type StudentAcademicContext struct {
	EducationLevel EducationLevel `json:"education_level"`
	StudySystem    StudySystem    `json:"study_system"`
	DiplomaTrack   bool           `json:"diploma_track"`
}

// Eligibility describes which periods accept grade entry for a student.
type Eligibility struct {
	CanEnterGrades   bool     `json:"can_enter_grades"`
	AvailablePeriods []Period `json:"available_periods"`
	Notes            []string `json:"notes,omitempty"`
}

// Allows reports whether grades may be written for the period.
func (e Eligibility) Allows(period Period) bool {
	if !e.CanEnterGrades {
		return false
	}
	for _, p := range e.AvailablePeriods {
		if p == period {
			return true
		}
	}
	return false
}
