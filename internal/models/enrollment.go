package models

import "time"

// EnrollmentStatus represents the lifecycle of a ledger entry.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive  EnrollmentStatus = "Active"
	EnrollmentStatusDropped EnrollmentStatus = "Dropped"
)

// MarkStatus tracks grading progress for an enrollment.
type MarkStatus string

// Possible mark statuses.
const (
	MarkStatusInProgress MarkStatus = "In Progress"
	MarkStatusPending    MarkStatus = "Pending"
	MarkStatusSubmitted  MarkStatus = "Submitted"
	MarkStatusCompleted  MarkStatus = "Completed"
)

// Enrollment is one row of the enrollment ledger. Rows are never deleted; a drop flips the
// status and re-enrollment appends a new row.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	MarkStatus MarkStatus       `db:"mark_status" json:"mark_status"`
	Grade      *float64         `db:"grade" json:"grade,omitempty"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with course info. Listings also carry the
// student's name and e-mail for rosters.
type EnrollmentDetail struct {
	Enrollment
	CourseName   string `db:"course_name" json:"course_name"`
	Credits      int    `db:"credits" json:"credits"`
	StudentName  string `db:"student_name" json:"student_name,omitempty"`
	StudentEmail string `db:"student_email" json:"student_email,omitempty"`
}

// EnrollmentReason is the machine readable outcome of an enrollment decision.
type EnrollmentReason string

// Business rule outcomes. They are reported to callers, never raised.
const (
	ReasonAlreadyEnrolled    EnrollmentReason = "ALREADY_ENROLLED"
	ReasonCourseNotFound     EnrollmentReason = "COURSE_NOT_FOUND"
	ReasonCourseFull         EnrollmentReason = "COURSE_FULL"
	ReasonPrerequisiteNotMet EnrollmentReason = "PREREQUISITE_NOT_MET"
	ReasonScheduleConflict   EnrollmentReason = "SCHEDULE_CONFLICT"
	ReasonCommitConflict     EnrollmentReason = "COMMIT_CONFLICT"
	ReasonNotActive          EnrollmentReason = "NOT_ACTIVE"
	ReasonEnrollmentNotFound EnrollmentReason = "ENROLLMENT_NOT_FOUND"
)

// Result statuses used on the wire.
const (
	ResultSuccess = "Success"
	ResultError   = "Error"
)

// ValidationIssue is a single violated enrollment rule.
type ValidationIssue struct {
	Reason  EnrollmentReason `json:"reason"`
	Message string           `json:"message"`
	// ConflictingCourse is set for schedule conflicts.
	ConflictingCourse string `json:"conflicting_course,omitempty"`
}

// ValidationReport is the outcome of running the enrollment rules.
type ValidationReport struct {
	CanEnroll bool              `json:"can_enroll"`
	Issues    []ValidationIssue `json:"issues"`
}

// EnrollmentResult is returned by enroll and drop operations.
type EnrollmentResult struct {
	Status         string           `json:"status"`
	Reason         EnrollmentReason `json:"reason,omitempty"`
	Message        string           `json:"message"`
	Enrollment     *Enrollment      `json:"enrollment,omitempty"`
	AvailableSeats *int             `json:"available_seats,omitempty"`
}

// OK reports whether the operation succeeded.
func (r EnrollmentResult) OK() bool {
	return r.Status == ResultSuccess
}

// EnrollmentFilter provides filters for listing ledger entries.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SeatState is the seat counter of a course right after a commit.
type SeatState struct {
	AvailableSeats int `db:"available_seats" json:"available_seats"`
	Capacity       int `db:"capacity" json:"capacity"`
}
