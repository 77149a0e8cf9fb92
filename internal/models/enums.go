package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// EducationLevel identifies the academic year a student is enrolled in.
type EducationLevel string

const (
	LevelFirstYear  EducationLevel = "FIRST_YEAR"
	LevelSecondYear EducationLevel = "SECOND_YEAR"
	LevelThirdYear  EducationLevel = "THIRD_YEAR"
)

// StudySystem identifies how a student attends the institute.
type StudySystem string

const (
	StudySystemRegular  StudySystem = "REGULAR"
	StudySystemDistance StudySystem = "DISTANCE"
)

// Period identifies one of the three grading intervals of an academic year.
type Period int

const (
	PeriodFirst  Period = 1
	PeriodSecond Period = 2
	PeriodThird  Period = 3
)

// AllPeriods lists every grading period in chronological order.
var AllPeriods = []Period{PeriodFirst, PeriodSecond, PeriodThird}

// SlotKind selects which maximum a raw score is checked against.
type SlotKind string

const (
	SlotMonthly SlotKind = "MONTHLY"
	SlotExam    SlotKind = "EXAM"
)

// ResultStatus is the outcome of a subject for one academic year.
type ResultStatus string

const (
	ResultPassed     ResultStatus = "PASSED"
	ResultFailed     ResultStatus = "FAILED"
	ResultIncomplete ResultStatus = "INCOMPLETE"
)

// LetterGrade is the tier derived from a result percentage.
type LetterGrade string

const (
	GradeExcellent  LetterGrade = "EXCELLENT"
	GradeVeryGood   LetterGrade = "VERY_GOOD"
	GradeGood       LetterGrade = "GOOD"
	GradeAcceptable LetterGrade = "ACCEPTABLE"
	GradeWeak       LetterGrade = "WEAK"
	GradeFail       LetterGrade = "FAIL"
)

// ProfileSource tells whether a distribution comes from the fixed per-subject
// table or from an administrator-managed profile.
type ProfileSource string

const (
	ProfileSourceLegacy   ProfileSource = "LEGACY"
	ProfileSourceFlexible ProfileSource = "FLEXIBLE"
)

// displayLabels is the single mapping from enum codes to Arabic display strings.
var displayLabels = map[string]string{
	string(LevelFirstYear):      "السنة الأولى",
	string(LevelSecondYear):     "السنة الثانية",
	string(LevelThirdYear):      "السنة الثالثة",
	string(StudySystemRegular):  "نظامي",
	string(StudySystemDistance): "انتساب",
	string(ResultPassed):        "ناجح",
	string(ResultFailed):        "راسب",
	string(ResultIncomplete):    "غير مكتمل",
	string(GradeExcellent):      "ممتاز",
	string(GradeVeryGood):       "جيد جداً",
	string(GradeGood):           "جيد",
	string(GradeAcceptable):     "مقبول",
	string(GradeWeak):           "ضعيف",
	string(GradeFail):           "راسب",
}

var periodLabels = map[Period]string{
	PeriodFirst:  "الفصل الأول",
	PeriodSecond: "الفصل الثاني",
	PeriodThird:  "الفصل الثالث",
}

// Label returns the Arabic display string of the level.
func (l EducationLevel) Label() string { return displayLabels[string(l)] }

// Valid reports whether the level is a known code.
func (l EducationLevel) Valid() bool {
	return l == LevelFirstYear || l == LevelSecondYear || l == LevelThirdYear
}

// IsFinal reports whether the level is the final (third) year.
func (l EducationLevel) IsFinal() bool { return l == LevelThirdYear }

// Label returns the Arabic display string of the study system.
func (s StudySystem) Label() string { return displayLabels[string(s)] }

// Valid reports whether the study system is a known code.
func (s StudySystem) Valid() bool {
	return s == StudySystemRegular || s == StudySystemDistance
}

// IsDistance reports whether the system is distance/correspondence study.
func (s StudySystem) IsDistance() bool { return s == StudySystemDistance }

// Label returns the Arabic display string of the period.
func (p Period) Label() string { return periodLabels[p] }

// Valid reports whether p is one of the three grading periods.
func (p Period) Valid() bool { return p >= PeriodFirst && p <= PeriodThird }

// Label returns the Arabic display string of the status.
func (s ResultStatus) Label() string { return displayLabels[string(s)] }

// Label returns the Arabic display string of the letter grade.
func (g LetterGrade) Label() string { return displayLabels[string(g)] }

// Passing reports whether the tier counts as a pass.
func (g LetterGrade) Passing() bool { return g != "" && g != GradeFail }

// ParseEducationLevel accepts either a level code or its Arabic label.
func ParseEducationLevel(raw string) (EducationLevel, bool) {
	key := NormalizeLabel(raw)
	for _, level := range []EducationLevel{LevelFirstYear, LevelSecondYear, LevelThirdYear} {
		if strings.EqualFold(key, string(level)) || key == NormalizeLabel(level.Label()) {
			return level, true
		}
	}
	return "", false
}

// ParseStudySystem accepts either a study system code or its Arabic label.
func ParseStudySystem(raw string) (StudySystem, bool) {
	key := NormalizeLabel(raw)
	for _, system := range []StudySystem{StudySystemRegular, StudySystemDistance} {
		if strings.EqualFold(key, string(system)) || key == NormalizeLabel(system.Label()) {
			return system, true
		}
	}
	return "", false
}

// NormalizeLabel canonicalises free-text labels (NFC, trimmed, single spaces)
// so that spreadsheet input and stored keys compare equal.
func NormalizeLabel(raw string) string {
	return strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
}
