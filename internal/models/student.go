package models

// StudentAcademicRecord holds the academic standing used by enrollment checks.
type StudentAcademicRecord struct {
	StudentID   string `db:"student_id" json:"student_id"`
	YearOfStudy int    `db:"year_of_study" json:"year_of_study"`
	DegreeID    string `db:"degree_id" json:"degree_id"`
}

// StudentContact identifies a student for outbound notifications.
type StudentContact struct {
	StudentID string `db:"student_id" json:"student_id"`
	FullName  string `db:"full_name" json:"full_name"`
	Email     string `db:"email" json:"email"`
}

// Advisor is the faculty member assigned to guide a student.
type Advisor struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// StudentScheduleSlot is a meeting drawn from one of a student's active enrollments.
type StudentScheduleSlot struct {
	CourseID   string `db:"course_id" json:"course_id"`
	CourseName string `db:"course_name" json:"course_name"`
	Day        string `db:"day_of_week" json:"day"`
	StartTime  string `db:"start_time" json:"start_time"`
	EndTime    string `db:"end_time" json:"end_time"`
}

// ScheduleSnapshot is the set of weekly meetings a student currently attends.
type ScheduleSnapshot []StudentScheduleSlot
