package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

const courseColumns = `id, code, name, description, capacity, available_seats, credits, prerequisite_year,
        department_id, instructor_id, critical, created_at, updated_at`

// CourseRepository reads the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns the course with its weekly schedule.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	slots, err := r.ListSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Schedule = slots
	return &course, nil
}

// ListSchedule returns the weekly slots for a course.
func (r *CourseRepository) ListSchedule(ctx context.Context, courseID string) ([]models.ScheduleSlot, error) {
	const query = `SELECT id, course_id, day_of_week, start_time, end_time, location FROM course_schedules WHERE course_id = $1 ORDER BY day_of_week, start_time`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, courseID); err != nil {
		return nil, fmt.Errorf("list course schedule: %w", err)
	}
	return slots, nil
}

// List returns catalog rows filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error) {
	base := `FROM courses c
LEFT JOIN departments d ON d.id = c.department_id
LEFT JOIN users u ON u.id = c.instructor_id`
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":            "c.name",
		"code":            "c.code",
		"available_seats": "c.available_seats",
		"created_at":      "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.code, c.name, c.description, c.capacity, c.available_seats, c.credits, c.prerequisite_year,
        c.department_id, c.instructor_id, c.critical, c.created_at, c.updated_at,
        COALESCE(d.name, '') AS department_name, COALESCE(u.full_name, '') AS instructor_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var courses []models.CourseSummary
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Statistics reports seat usage per course. An empty courseID covers the whole catalog.
func (r *CourseRepository) Statistics(ctx context.Context, courseID string) ([]models.CourseEnrollmentStatistics, error) {
	query := `SELECT c.id AS course_id, c.name AS course_name, c.capacity, c.available_seats,
        COUNT(e.id) AS enrolled_count,
        ROUND(COUNT(e.id)::numeric * 100 / c.capacity, 2)::float8 AS enrollment_percentage
        FROM courses c
        LEFT JOIN enrollments e ON e.course_id = c.id AND e.status = $1`
	args := []interface{}{models.EnrollmentStatusActive}
	if courseID != "" {
		query += " WHERE c.id = $2"
		args = append(args, courseID)
	}
	query += " GROUP BY c.id, c.name, c.capacity, c.available_seats ORDER BY c.name"

	var stats []models.CourseEnrollmentStatistics
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("course statistics: %w", err)
	}
	return stats, nil
}
