package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

var (
	// ErrNoSeatAvailable is returned when the conditional seat decrement matched no row.
	ErrNoSeatAvailable = errors.New("no seat available")
	// ErrActiveEnrollmentExists is returned when the partial unique index rejects a second Active row.
	ErrActiveEnrollmentExists = errors.New("active enrollment already exists")
	// ErrEnrollmentNotActive is returned when a drop targets a row that is not Active.
	ErrEnrollmentNotActive = errors.New("enrollment not active")
	// ErrStudentNotFound is returned when the ledger insert names a student without a students row.
	ErrStudentNotFound = errors.New("student not found")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const enrollmentColumns = `id, student_id, course_id, status, mark_status, grade, enrolled_at, updated_at`

// EnrollmentRepository handles persistence of the enrollment ledger.
type EnrollmentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// List returns ledger entries filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN users su ON su.id = e.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"updated_at":   "e.updated_at",
		"course_name":  "c.name",
		"student_name": "su.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.status, e.mark_status, e.grade, e.enrolled_at, e.updated_at,
        COALESCE(c.name, '') AS course_name, COALESCE(c.credits, 0) AS credits,
        COALESCE(su.full_name, '') AS student_name, COALESCE(su.email, '') AS student_email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns a ledger entry by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns a ledger entry with course info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.status, e.mark_status, e.grade, e.enrolled_at, e.updated_at,
        COALESCE(c.name, '') AS course_name, COALESCE(c.credits, 0) AS credits
        FROM enrollments e
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks if an Active ledger entry exists for the student and course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = "SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CommitEnroll takes a seat and appends an Active ledger row in one transaction. The seat is
// only taken when available_seats is still positive at write time.
func (r *EnrollmentRepository) CommitEnroll(ctx context.Context, studentID, courseID string) (enrollment *models.Enrollment, seats *models.SeatState, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin enroll transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now()
	var state models.SeatState
	const seatQuery = `UPDATE courses SET available_seats = available_seats - 1, updated_at = $2
        WHERE id = $1 AND available_seats > 0
        RETURNING available_seats, capacity`
	if err = tx.GetContext(ctx, &state, seatQuery, courseID, now); err != nil {
		if err == sql.ErrNoRows {
			err = ErrNoSeatAvailable
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("take course seat: %w", err)
	}

	enrollment = &models.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     models.EnrollmentStatusActive,
		MarkStatus: models.MarkStatusInProgress,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	const insertQuery = `INSERT INTO enrollments (id, student_id, course_id, status, mark_status, enrolled_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertQuery, enrollment.ID, enrollment.StudentID, enrollment.CourseID,
		enrollment.Status, enrollment.MarkStatus, enrollment.EnrolledAt, enrollment.UpdatedAt); err != nil {
		// the course row is locked by the seat update above, so a foreign key
		// failure here can only be the student reference
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case uniqueViolation:
				err = ErrActiveEnrollmentExists
				return nil, nil, err
			case foreignKeyViolation:
				err = ErrStudentNotFound
				return nil, nil, err
			}
		}
		return nil, nil, fmt.Errorf("insert enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return enrollment, &state, nil
}

// CommitDrop flips an Active ledger row to Dropped and returns its seat, capped at capacity,
// in one transaction.
func (r *EnrollmentRepository) CommitDrop(ctx context.Context, id string) (enrollment *models.Enrollment, seats *models.SeatState, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin drop transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now()
	var dropped models.Enrollment
	dropQuery := `UPDATE enrollments SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
        RETURNING ` + enrollmentColumns
	if err = tx.GetContext(ctx, &dropped, dropQuery, id, models.EnrollmentStatusActive, models.EnrollmentStatusDropped, now); err != nil {
		if err == sql.ErrNoRows {
			err = ErrEnrollmentNotActive
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("drop enrollment: %w", err)
	}

	var state models.SeatState
	const seatQuery = `UPDATE courses SET available_seats = LEAST(available_seats + 1, capacity), updated_at = $2
        WHERE id = $1
        RETURNING available_seats, capacity`
	if err = tx.GetContext(ctx, &state, seatQuery, dropped.CourseID, now); err != nil {
		return nil, nil, fmt.Errorf("release course seat: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit drop: %w", err)
	}
	return &dropped, &state, nil
}
