package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	applog "github.com/noah-isme/uni-enrollment-api/pkg/logger"
	"github.com/noah-isme/uni-enrollment-api/pkg/middleware/requestid"
)

const (
	operationEnroll   = "enroll"
	operationDrop     = "drop"
	operationValidate = "validate"

	// DefaultCapacityLowThreshold replaces a negative configured threshold.
	// Zero is a valid setting and only alerts once the last seat is taken.
	DefaultCapacityLowThreshold = 3
)

var errUnknownStudent = errors.New("student not found")

func unknownStudent() error {
	return appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

type enrollmentLedger interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	CommitEnroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, *models.SeatState, error)
	CommitDrop(ctx context.Context, id string) (*models.Enrollment, *models.SeatState, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type studentRecordReader interface {
	FindRecord(ctx context.Context, studentID string) (*models.StudentAcademicRecord, error)
	ActiveScheduleSlots(ctx context.Context, studentID string) (models.ScheduleSnapshot, error)
	ScheduleSummary(ctx context.Context, studentID string) ([]models.ScheduleSummaryEntry, error)
}

type eventNotifier interface {
	Notify(ctx context.Context, event models.Event)
}

type catalogInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string)
}

// EnrollRequest identifies the student and course of an enrollment decision.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// EnrollmentServiceConfig tunes the enrollment pipeline.
type EnrollmentServiceConfig struct {
	CapacityLowThreshold int
}

// EnrollmentService runs the validation pipeline, commits decisions and notifies listeners.
type EnrollmentService struct {
	ledger    enrollmentLedger
	courses   courseReader
	students  studentRecordReader
	notifier  eventNotifier
	catalog   catalogInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
	threshold int
}

// NewEnrollmentService constructs EnrollmentService. notifier, catalog and metrics are optional.
func NewEnrollmentService(ledger enrollmentLedger, courses courseReader, students studentRecordReader, notifier eventNotifier, catalog catalogInvalidator, metrics *MetricsService, cfg EnrollmentServiceConfig, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.CapacityLowThreshold
	if threshold < 0 {
		threshold = DefaultCapacityLowThreshold
	}
	return &EnrollmentService{
		ledger:    ledger,
		courses:   courses,
		students:  students,
		notifier:  notifier,
		catalog:   catalog,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		tracer:    otel.Tracer("github.com/noah-isme/uni-enrollment-api/internal/service/enrollment"),
		threshold: threshold,
	}
}

// Validate runs every rule without committing and reports all violations.
func (s *EnrollmentService) Validate(ctx context.Context, req EnrollRequest) (*models.ValidationReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid enrollment payload")
	}
	spanCtx, span := s.tracer.Start(ctx, "enrollment.validate", trace.WithAttributes(
		attribute.String("enrollment.student_id", req.StudentID),
		attribute.String("enrollment.course_id", req.CourseID),
	))
	defer span.End()

	vc, err := s.loadContext(spanCtx, req.StudentID, req.CourseID)
	if errors.Is(err, errUnknownStudent) {
		return nil, unknownStudent()
	}
	if err != nil {
		span.RecordError(err)
		return nil, s.systemError(spanCtx, operationValidate, err)
	}
	issues := RunRules(vc, ModeExhaustive)
	if issues == nil {
		issues = []models.ValidationIssue{}
	}
	return &models.ValidationReport{CanEnroll: len(issues) == 0, Issues: issues}, nil
}

// Enroll validates the request in short-circuit mode and commits it when every rule passes.
// Business rule failures are reported in the result; only unexpected failures return an error.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid enrollment payload")
	}
	start := time.Now()
	spanCtx, span := s.tracer.Start(ctx, "enrollment.enroll", trace.WithAttributes(
		attribute.String("enrollment.student_id", req.StudentID),
		attribute.String("enrollment.course_id", req.CourseID),
	))
	defer span.End()

	vc, err := s.loadContext(spanCtx, req.StudentID, req.CourseID)
	if errors.Is(err, errUnknownStudent) {
		return nil, unknownStudent()
	}
	if err != nil {
		span.RecordError(err)
		return nil, s.systemError(spanCtx, operationEnroll, err)
	}

	if issues := RunRules(vc, ModeShortCircuit); len(issues) > 0 {
		result := s.reject(spanCtx, vc, issues[0])
		s.metrics.ObserveEnrollmentDecision(operationEnroll, result, time.Since(start))
		return &result, nil
	}

	enrollment, seats, err := s.ledger.CommitEnroll(spanCtx, req.StudentID, req.CourseID)
	switch {
	case errors.Is(err, repository.ErrNoSeatAvailable):
		result := s.reject(spanCtx, vc, models.ValidationIssue{
			Reason:  models.ReasonCommitConflict,
			Message: "Course is full. No available seats.",
		})
		s.metrics.ObserveEnrollmentDecision(operationEnroll, result, time.Since(start))
		return &result, nil
	case errors.Is(err, repository.ErrStudentNotFound):
		return nil, unknownStudent()
	case errors.Is(err, repository.ErrActiveEnrollmentExists):
		result := s.reject(spanCtx, vc, models.ValidationIssue{
			Reason:  models.ReasonAlreadyEnrolled,
			Message: "Student is already enrolled in this course",
		})
		s.metrics.ObserveEnrollmentDecision(operationEnroll, result, time.Since(start))
		return &result, nil
	case err != nil:
		span.RecordError(err)
		return nil, s.systemError(spanCtx, operationEnroll, err)
	}

	span.SetAttributes(attribute.String("enrollment.id", enrollment.ID), attribute.Int("course.available_seats", seats.AvailableSeats))
	s.invalidate(spanCtx, req.CourseID)
	s.notify(spanCtx, models.Event{
		Kind:           models.EventEnrollmentSucceeded,
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		CourseName:     vc.CourseName(),
		EnrollmentID:   enrollment.ID,
		AvailableSeats: seats.AvailableSeats,
		Capacity:       seats.Capacity,
	})
	if seats.AvailableSeats <= s.threshold {
		s.notify(spanCtx, models.Event{
			Kind:           models.EventCapacityLow,
			CourseID:       req.CourseID,
			CourseName:     vc.CourseName(),
			AvailableSeats: seats.AvailableSeats,
			Capacity:       seats.Capacity,
		})
	}

	remaining := seats.AvailableSeats
	result := models.EnrollmentResult{
		Status:         models.ResultSuccess,
		Message:        "Student enrolled successfully",
		Enrollment:     enrollment,
		AvailableSeats: &remaining,
	}
	s.metrics.ObserveEnrollmentDecision(operationEnroll, result, time.Since(start))
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.Int("available_seats", remaining),
	)
	return &result, nil
}

// Drop flips an Active ledger entry to Dropped and returns its seat.
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID string) (*models.EnrollmentResult, error) {
	if enrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment id is required")
	}
	start := time.Now()
	spanCtx, span := s.tracer.Start(ctx, "enrollment.drop", trace.WithAttributes(
		attribute.String("enrollment.id", enrollmentID),
	))
	defer span.End()

	existing, err := s.ledger.FindByID(spanCtx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result := errorResult(models.ReasonEnrollmentNotFound, "Enrollment not found")
			s.metrics.ObserveEnrollmentDecision(operationDrop, result, time.Since(start))
			return &result, nil
		}
		span.RecordError(err)
		return nil, s.systemError(spanCtx, operationDrop, err)
	}

	notActive := errorResult(models.ReasonNotActive, "Active enrollment not found")
	if existing.Status != models.EnrollmentStatusActive {
		s.metrics.ObserveEnrollmentDecision(operationDrop, notActive, time.Since(start))
		return &notActive, nil
	}

	dropped, seats, err := s.ledger.CommitDrop(spanCtx, enrollmentID)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotActive) {
			s.metrics.ObserveEnrollmentDecision(operationDrop, notActive, time.Since(start))
			return &notActive, nil
		}
		span.RecordError(err)
		return nil, s.systemError(spanCtx, operationDrop, err)
	}

	event := models.Event{
		Kind:           models.EventCourseDropped,
		StudentID:      dropped.StudentID,
		CourseID:       dropped.CourseID,
		CourseName:     unknownCourseName,
		EnrollmentID:   dropped.ID,
		AvailableSeats: seats.AvailableSeats,
		Capacity:       seats.Capacity,
	}
	if course, err := s.courses.FindByID(spanCtx, dropped.CourseID); err == nil {
		event.CourseName = course.Name
		event.Critical = course.Critical
	} else {
		s.logger.Warn("course lookup after drop failed", zap.String("course_id", dropped.CourseID), zap.Error(err))
	}
	s.invalidate(spanCtx, dropped.CourseID)
	s.notify(spanCtx, event)

	remaining := seats.AvailableSeats
	result := models.EnrollmentResult{
		Status:         models.ResultSuccess,
		Message:        "Course dropped successfully",
		Enrollment:     dropped,
		AvailableSeats: &remaining,
	}
	s.metrics.ObserveEnrollmentDecision(operationDrop, result, time.Since(start))
	s.logger.Info("enrollment dropped",
		zap.String("enrollment_id", dropped.ID),
		zap.String("student_id", dropped.StudentID),
		zap.String("course_id", dropped.CourseID),
		zap.Int("available_seats", remaining),
	)
	return &result, nil
}

// Get returns a ledger entry with course details.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.ledger.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load enrollment")
	}
	return detail, nil
}

// ListByStudent returns a student's ledger entries with pagination metadata.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	enrollments, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return enrollments, models.NewPagination(page, size, total), nil
}

// ScheduleSummary returns the student's active timetable with credit totals.
func (s *EnrollmentService) ScheduleSummary(ctx context.Context, studentID string) (*models.ScheduleSummary, error) {
	entries, err := s.students.ScheduleSummary(ctx, studentID)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load schedule")
	}
	if entries == nil {
		entries = []models.ScheduleSummaryEntry{}
	}
	summary := &models.ScheduleSummary{StudentID: studentID, Entries: entries}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.CourseID]; ok {
			continue
		}
		seen[entry.CourseID] = struct{}{}
		summary.TotalCredits += entry.Credits
	}
	summary.CourseCount = len(seen)
	return summary, nil
}

// loadContext reads everything the rules need. Nothing is locked; the commit re-checks seats.
// A student without a students row is not a rule failure: it yields errUnknownStudent.
func (s *EnrollmentService) loadContext(ctx context.Context, studentID, courseID string) (ValidationContext, error) {
	vc := ValidationContext{StudentID: studentID, CourseID: courseID}

	record, err := s.students.FindRecord(ctx, studentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return vc, errUnknownStudent
	case err != nil:
		return vc, fmt.Errorf("load student record: %w", err)
	}
	vc.YearOfStudy = record.YearOfStudy

	exists, err := s.ledger.ExistsActive(ctx, studentID, courseID)
	if err != nil {
		return vc, err
	}
	vc.AlreadyEnrolled = exists

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vc, nil
		}
		return vc, fmt.Errorf("load course: %w", err)
	}
	vc.Course = course

	snapshot, err := s.students.ActiveScheduleSlots(ctx, studentID)
	if err != nil {
		return vc, err
	}
	vc.Schedule = snapshot
	return vc, nil
}

func (s *EnrollmentService) reject(ctx context.Context, vc ValidationContext, issue models.ValidationIssue) models.EnrollmentResult {
	s.notify(ctx, models.Event{
		Kind:       models.EventEnrollmentFailed,
		StudentID:  vc.StudentID,
		CourseID:   vc.CourseID,
		CourseName: vc.CourseName(),
		Reason:     issue.Reason,
		Message:    issue.Message,
	})
	s.logger.Info("enrollment rejected",
		zap.String("student_id", vc.StudentID),
		zap.String("course_id", vc.CourseID),
		zap.String("reason", string(issue.Reason)),
	)
	return errorResult(issue.Reason, issue.Message)
}

// systemError reports an unexpected failure to the admin listeners and wraps it for the caller.
func (s *EnrollmentService) systemError(ctx context.Context, operation string, err error) error {
	applog.WithRequest(ctx, s.logger).Error("enrollment pipeline failure", zap.String("operation", operation), zap.Error(err))
	s.notify(ctx, models.Event{
		Kind:      models.EventSystemError,
		Component: "enrollment." + operation,
		Message:   err.Error(),
	})
	return appErrors.WrapAs(appErrors.ErrInternal, err, fmt.Sprintf("failed to %s", operation))
}

func (s *EnrollmentService) notify(ctx context.Context, event models.Event) {
	if s.notifier == nil {
		return
	}
	if event.RequestID == "" {
		event.RequestID = requestid.FromContext(ctx)
	}
	s.notifier.Notify(ctx, event)
}

func (s *EnrollmentService) invalidate(ctx context.Context, courseID string) {
	if s.catalog == nil {
		return
	}
	s.catalog.InvalidateCourse(ctx, courseID)
}

func errorResult(reason models.EnrollmentReason, message string) models.EnrollmentResult {
	return models.EnrollmentResult{Status: models.ResultError, Reason: reason, Message: message}
}
