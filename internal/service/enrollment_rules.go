package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

// ValidationMode selects how RunRules treats a failing rule.
type ValidationMode int

const (
	// ModeShortCircuit stops at the first violated rule.
	ModeShortCircuit ValidationMode = iota
	// ModeExhaustive collects every violated rule.
	ModeExhaustive
)

const unknownCourseName = "Unknown Course"

// ValidationContext is the read-only state the enrollment rules are evaluated against.
type ValidationContext struct {
	StudentID       string
	CourseID        string
	AlreadyEnrolled bool
	// Course is nil when the identifier does not resolve.
	Course      *models.Course
	YearOfStudy int
	Schedule    models.ScheduleSnapshot
}

// CourseName returns the display name of the target course.
func (vc ValidationContext) CourseName() string {
	if vc.Course == nil || vc.Course.Name == "" {
		return unknownCourseName
	}
	return vc.Course.Name
}

type enrollmentRule struct {
	name  string
	check func(vc ValidationContext) *models.ValidationIssue
	// terminal rules stop evaluation in every mode when violated
	terminal bool
}

var enrollmentRules = []enrollmentRule{
	{name: "duplicate", check: checkDuplicate},
	{name: "existence", check: checkExistence, terminal: true},
	{name: "capacity", check: checkCapacity},
	{name: "prerequisite", check: checkPrerequisite},
	{name: "time_conflict", check: checkTimeConflict},
}

// RunRules evaluates the enrollment rules in their fixed order.
func RunRules(vc ValidationContext, mode ValidationMode) []models.ValidationIssue {
	var issues []models.ValidationIssue
	for _, rule := range enrollmentRules {
		issue := rule.check(vc)
		if issue == nil {
			continue
		}
		issues = append(issues, *issue)
		if mode == ModeShortCircuit || rule.terminal {
			break
		}
	}
	return issues
}

func checkDuplicate(vc ValidationContext) *models.ValidationIssue {
	if !vc.AlreadyEnrolled {
		return nil
	}
	return &models.ValidationIssue{
		Reason:  models.ReasonAlreadyEnrolled,
		Message: "Student is already enrolled in this course",
	}
}

func checkExistence(vc ValidationContext) *models.ValidationIssue {
	if vc.Course != nil {
		return nil
	}
	return &models.ValidationIssue{
		Reason:  models.ReasonCourseNotFound,
		Message: "Course not found",
	}
}

func checkCapacity(vc ValidationContext) *models.ValidationIssue {
	if vc.Course == nil || vc.Course.AvailableSeats > 0 {
		return nil
	}
	return &models.ValidationIssue{
		Reason:  models.ReasonCourseFull,
		Message: "Course is full. No available seats.",
	}
}

func checkPrerequisite(vc ValidationContext) *models.ValidationIssue {
	if vc.Course == nil || vc.YearOfStudy >= vc.Course.PrerequisiteYear {
		return nil
	}
	return &models.ValidationIssue{
		Reason:  models.ReasonPrerequisiteNotMet,
		Message: fmt.Sprintf("Student must be in year %d or higher to enroll in this course", vc.Course.PrerequisiteYear),
	}
}

// checkTimeConflict is skipped when either the course or the student has no meetings on record.
func checkTimeConflict(vc ValidationContext) *models.ValidationIssue {
	if vc.Course == nil || len(vc.Course.Schedule) == 0 || len(vc.Schedule) == 0 {
		return nil
	}
	for _, slot := range vc.Course.Schedule {
		for _, current := range vc.Schedule {
			if !strings.EqualFold(strings.TrimSpace(slot.Day), strings.TrimSpace(current.Day)) {
				continue
			}
			if slotsOverlap(slot.StartTime, slot.EndTime, current.StartTime, current.EndTime) {
				return &models.ValidationIssue{
					Reason:            models.ReasonScheduleConflict,
					Message:           fmt.Sprintf("Time conflict detected with course: %s", current.CourseName),
					ConflictingCourse: current.CourseName,
				}
			}
		}
	}
	return nil
}

// slotsOverlap reports start1 < end2 && end1 > start2. Unparseable times never overlap.
func slotsOverlap(start1, end1, start2, end2 string) bool {
	s1, ok1 := parseClock(start1)
	e1, ok2 := parseClock(end1)
	s2, ok3 := parseClock(start2)
	e2, ok4 := parseClock(end2)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return s1 < e2 && e1 > s2
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04PM", "3:04 PM"}

// parseClock converts a wall clock time to minutes since midnight.
func parseClock(raw string) (int, bool) {
	value := strings.TrimSpace(raw)
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}
