package models

import "time"

// RosterStudent is one actively enrolled student on a class roster.
type RosterStudent struct {
	StudentID        string           `json:"id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	EnrollmentID     string           `json:"enrollment_id"`
	EnrollmentStatus EnrollmentStatus `json:"enrollment_status"`
	MarkStatus       MarkStatus       `json:"mark_status"`
	EnrolledAt       time.Time        `json:"enrolled_at"`
}

// ClassRoster lists the Active enrollments of one course for its instructor.
type ClassRoster struct {
	CourseID     string          `json:"course_id"`
	CourseCode   string          `json:"course_code"`
	CourseName   string          `json:"course"`
	InstructorID string          `json:"instructor_id"`
	Capacity     int             `json:"capacity"`
	Students     []RosterStudent `json:"students"`
	Message      string          `json:"message,omitempty"`
}
