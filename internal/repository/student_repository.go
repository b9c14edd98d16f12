package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

// StudentRepository reads student academic records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindRecord returns the academic record for a student.
func (r *StudentRepository) FindRecord(ctx context.Context, studentID string) (*models.StudentAcademicRecord, error) {
	const query = `SELECT id AS student_id, year_of_study, COALESCE(degree_id, '') AS degree_id FROM students WHERE id = $1`
	var record models.StudentAcademicRecord
	if err := r.db.GetContext(ctx, &record, query, studentID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ActiveScheduleSlots returns the meetings of every course the student is actively enrolled in.
func (r *StudentRepository) ActiveScheduleSlots(ctx context.Context, studentID string) (models.ScheduleSnapshot, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, cs.day_of_week, cs.start_time, cs.end_time
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN course_schedules cs ON cs.course_id = c.id
        WHERE e.student_id = $1 AND e.status = $2`
	var slots models.ScheduleSnapshot
	if err := r.db.SelectContext(ctx, &slots, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list student schedule: %w", err)
	}
	return slots, nil
}

// weekdayOrder ranks day_of_week Monday first; courses without meetings sort last.
const weekdayOrder = `CASE lower(trim(cs.day_of_week))
            WHEN 'monday' THEN 1 WHEN 'tuesday' THEN 2 WHEN 'wednesday' THEN 3
            WHEN 'thursday' THEN 4 WHEN 'friday' THEN 5 WHEN 'saturday' THEN 6
            WHEN 'sunday' THEN 7 ELSE 8 END`

// ScheduleSummary returns the active timetable with credits and instructor names, in
// weekday order.
func (r *StudentRepository) ScheduleSummary(ctx context.Context, studentID string) ([]models.ScheduleSummaryEntry, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, c.credits,
        COALESCE(u.full_name, '') AS instructor_name, COALESCE(d.name, '') AS department_name,
        cs.day_of_week, cs.start_time, cs.end_time
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        LEFT JOIN users u ON u.id = c.instructor_id
        LEFT JOIN departments d ON d.id = c.department_id
        LEFT JOIN course_schedules cs ON cs.course_id = c.id
        WHERE e.student_id = $1 AND e.status = $2
        ORDER BY ` + weekdayOrder + `, cs.start_time, c.name`
	var entries []models.ScheduleSummaryEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("student schedule summary: %w", err)
	}
	return entries, nil
}

// FindContact returns name and email for a student. Missing students yield nil without error.
func (r *StudentRepository) FindContact(ctx context.Context, studentID string) (*models.StudentContact, error) {
	const query = `SELECT u.id AS student_id, u.full_name, u.email FROM users u WHERE u.id = $1 AND u.role = 'STUDENT'`
	var contact models.StudentContact
	if err := r.db.GetContext(ctx, &contact, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student contact: %w", err)
	}
	return &contact, nil
}

// FindAdvisor returns the advisor assigned to a student, or nil when none is assigned.
func (r *StudentRepository) FindAdvisor(ctx context.Context, studentID string) (*models.Advisor, error) {
	const query = `SELECT a.id, a.full_name, a.email FROM students s JOIN users a ON a.id = s.advisor_id WHERE s.id = $1`
	var advisor models.Advisor
	if err := r.db.GetContext(ctx, &advisor, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student advisor: %w", err)
	}
	return &advisor, nil
}
