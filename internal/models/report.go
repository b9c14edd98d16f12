package models

// CourseEnrollmentStatistics summarises seat usage for one course.
type CourseEnrollmentStatistics struct {
	CourseID             string  `db:"course_id" json:"course_id"`
	CourseName           string  `db:"course_name" json:"course_name"`
	Capacity             int     `db:"capacity" json:"capacity"`
	AvailableSeats       int     `db:"available_seats" json:"available_seats"`
	EnrolledCount        int     `db:"enrolled_count" json:"enrolled_count"`
	EnrollmentPercentage float64 `db:"enrollment_percentage" json:"enrollment_percentage"`
}

// ScheduleSummaryEntry is one course meeting in a student's timetable.
type ScheduleSummaryEntry struct {
	CourseID       string  `db:"course_id" json:"course_id"`
	CourseName     string  `db:"course_name" json:"course_name"`
	Credits        int     `db:"credits" json:"credits"`
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	DepartmentName string  `db:"department_name" json:"department_name"`
	Day            *string `db:"day_of_week" json:"day,omitempty"`
	StartTime      *string `db:"start_time" json:"start_time,omitempty"`
	EndTime        *string `db:"end_time" json:"end_time,omitempty"`
}

// ScheduleSummary aggregates a student's active timetable.
type ScheduleSummary struct {
	StudentID    string                 `json:"student_id"`
	Entries      []ScheduleSummaryEntry `json:"entries"`
	TotalCredits int                    `json:"total_credits"`
	CourseCount  int                    `json:"course_count"`
}

// ReportFile is a rendered report ready for download.
type ReportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
