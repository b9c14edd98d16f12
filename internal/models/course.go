package models

import "time"

// Course is a catalog entry students can enroll in.
type Course struct {
	ID               string         `db:"id" json:"id"`
	Code             string         `db:"code" json:"code"`
	Name             string         `db:"name" json:"name"`
	Description      string         `db:"description" json:"description"`
	Capacity         int            `db:"capacity" json:"capacity"`
	AvailableSeats   int            `db:"available_seats" json:"available_seats"`
	Credits          int            `db:"credits" json:"credits"`
	PrerequisiteYear int            `db:"prerequisite_year" json:"prerequisite_year"`
	DepartmentID     string         `db:"department_id" json:"department_id"`
	InstructorID     string         `db:"instructor_id" json:"instructor_id"`
	Critical         bool           `db:"critical" json:"critical"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
	Schedule         []ScheduleSlot `db:"-" json:"schedule,omitempty"`
}

// CourseSummary is a catalog row enriched with department and instructor names.
type CourseSummary struct {
	Course
	DepartmentName string `db:"department_name" json:"department_name"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
}

// CourseFilter describes catalog listing parameters.
type CourseFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ScheduleSlot is one weekly meeting of a course.
type ScheduleSlot struct {
	ID        string `db:"id" json:"id"`
	CourseID  string `db:"course_id" json:"course_id"`
	Day       string `db:"day_of_week" json:"day"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	Location  string `db:"location" json:"location"`
}
