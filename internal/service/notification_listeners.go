package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

// Mailer delivers rendered notifications.
type Mailer interface {
	Send(ctx context.Context, email models.Email) error
}

// LogMailer writes e-mails to the structured log instead of an SMTP relay.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.With(zap.String("component", "mailer"))}
}

// Send logs the e-mail.
func (m *LogMailer) Send(ctx context.Context, email models.Email) error {
	level := m.logger.Info
	if email.Urgent {
		level = m.logger.Warn
	}
	level("email dispatched",
		zap.Strings("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("type", email.Type),
		zap.String("body", email.Body),
	)
	return nil
}

type studentDirectory interface {
	FindContact(ctx context.Context, studentID string) (*models.StudentContact, error)
	FindAdvisor(ctx context.Context, studentID string) (*models.Advisor, error)
}

type courseStatisticsReader interface {
	Statistics(ctx context.Context, courseID string) ([]models.CourseEnrollmentStatistics, error)
}

var plainText = bluemonday.StrictPolicy()

// clean strips markup from user supplied text before it lands in a message body.
func clean(value, fallback string) string {
	out := strings.TrimSpace(html.UnescapeString(plainText.Sanitize(value)))
	if out == "" {
		return fallback
	}
	return out
}

// StudentListener e-mails the student affected by an event.
type StudentListener struct {
	students studentDirectory
	mailer   Mailer
}

// NewStudentListener constructs a StudentListener.
func NewStudentListener(students studentDirectory, mailer Mailer) *StudentListener {
	return &StudentListener{students: students, mailer: mailer}
}

// Category implements Listener.
func (l *StudentListener) Category() string { return CategoryStudent }

// OnEvent implements Listener.
func (l *StudentListener) OnEvent(ctx context.Context, event models.Event) error {
	course := clean(event.CourseName, unknownCourseName)
	var body, kind string
	switch event.Kind {
	case models.EventEnrollmentSucceeded:
		body = fmt.Sprintf("Successfully enrolled in %s. Welcome to the class!", course)
		kind = "ENROLLMENT_CONFIRMATION"
	case models.EventEnrollmentFailed:
		body = fmt.Sprintf("Enrollment in %s failed: %s", course, clean(event.Message, "Unknown reason"))
		kind = "ENROLLMENT_FAILURE"
	case models.EventCourseDropped:
		body = fmt.Sprintf("You have dropped %s.", course)
		kind = "COURSE_DROP_CONFIRMATION"
	default:
		return nil
	}

	contact, err := l.students.FindContact(ctx, event.StudentID)
	if err != nil {
		return fmt.Errorf("load student contact: %w", err)
	}
	if contact == nil {
		return nil
	}
	return l.mailer.Send(ctx, models.Email{
		To:      []string{contact.Email},
		Subject: "Course Enrollment Update",
		Body:    body,
		Type:    kind,
	})
}

// AdvisorListener e-mails the advisor of the affected student.
type AdvisorListener struct {
	students studentDirectory
	mailer   Mailer
}

// NewAdvisorListener constructs an AdvisorListener.
func NewAdvisorListener(students studentDirectory, mailer Mailer) *AdvisorListener {
	return &AdvisorListener{students: students, mailer: mailer}
}

// Category implements Listener.
func (l *AdvisorListener) Category() string { return CategoryAdvisor }

// OnEvent implements Listener.
func (l *AdvisorListener) OnEvent(ctx context.Context, event models.Event) error {
	if event.Kind != models.EventEnrollmentSucceeded && event.Kind != models.EventCourseDropped {
		return nil
	}
	advisor, err := l.students.FindAdvisor(ctx, event.StudentID)
	if err != nil {
		return fmt.Errorf("load advisor: %w", err)
	}
	if advisor == nil {
		return nil
	}
	contact, err := l.students.FindContact(ctx, event.StudentID)
	if err != nil {
		return fmt.Errorf("load student contact: %w", err)
	}
	student := event.StudentID
	if contact != nil && contact.FullName != "" {
		student = contact.FullName
	}
	course := clean(event.CourseName, unknownCourseName)

	email := models.Email{
		To:      []string{advisor.Email},
		Subject: fmt.Sprintf("Advisee Update - %s", student),
	}
	switch {
	case event.Kind == models.EventEnrollmentSucceeded:
		email.Body = fmt.Sprintf("Your advisee %s has successfully enrolled in %s.", student, course)
		email.Type = "ADVISEE_ENROLLMENT_SUCCESS"
	case event.Critical:
		email.Body = fmt.Sprintf("URGENT: Your advisee %s has dropped %s, which is a critical course for their degree. Please schedule a meeting immediately.", student, course)
		email.Type = "CRITICAL_COURSE_DROP_ALERT"
		email.Urgent = true
	default:
		email.Body = fmt.Sprintf("Your advisee %s has dropped %s.", student, course)
		email.Type = "ADVISEE_COURSE_DROP"
	}
	return l.mailer.Send(ctx, email)
}

// AdminListener alerts administrators about seat usage and system failures.
type AdminListener struct {
	stats      courseStatisticsReader
	mailer     Mailer
	recipients []string
}

// NewAdminListener constructs an AdminListener.
func NewAdminListener(stats courseStatisticsReader, mailer Mailer, recipients []string) *AdminListener {
	return &AdminListener{stats: stats, mailer: mailer, recipients: recipients}
}

// Category implements Listener.
func (l *AdminListener) Category() string { return CategoryAdmin }

// OnEvent implements Listener.
func (l *AdminListener) OnEvent(ctx context.Context, event models.Event) error {
	switch event.Kind {
	case models.EventEnrollmentSucceeded, models.EventCourseDropped:
		return l.statisticsUpdate(ctx, event)
	case models.EventCapacityLow:
		body := fmt.Sprintf("CAPACITY WARNING: %s is almost full!\nOnly %d seats remaining out of %d\nConsider opening additional sections or waitlist management",
			clean(event.CourseName, unknownCourseName), event.AvailableSeats, event.Capacity)
		return l.send(ctx, body, "CAPACITY_WARNING", false)
	case models.EventSystemError:
		body := fmt.Sprintf("SYSTEM ERROR ALERT:\nComponent: %s\nDetails: %s\nImmediate attention required!",
			clean(event.Component, "Unknown Component"), clean(event.Message, "No details available"))
		return l.send(ctx, body, "SYSTEM_ERROR", true)
	}
	return nil
}

func (l *AdminListener) statisticsUpdate(ctx context.Context, event models.Event) error {
	rows, err := l.stats.Statistics(ctx, event.CourseID)
	if err != nil {
		return fmt.Errorf("load course statistics: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	stat := rows[0]
	var utilization float64
	if stat.Capacity > 0 {
		utilization = float64(stat.EnrolledCount) / float64(stat.Capacity) * 100
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Course Statistics Update for %s:\n", clean(stat.CourseName, unknownCourseName))
	fmt.Fprintf(&b, "Enrolled: %d/%d (%.1f%% utilization)\n", stat.EnrolledCount, stat.Capacity, utilization)
	fmt.Fprintf(&b, "Available Seats: %d\n", stat.AvailableSeats)
	fmt.Fprintf(&b, "Event: %s", event.Kind)
	if utilization > 95 {
		b.WriteString("\nCourse nearly full - consider adding more sections")
	} else if utilization < 30 && stat.EnrolledCount > 0 {
		b.WriteString("\nLow enrollment - consider promotional activities")
	}
	return l.send(ctx, b.String(), "ENROLLMENT_STATISTICS", false)
}

func (l *AdminListener) send(ctx context.Context, body, kind string, urgent bool) error {
	if len(l.recipients) == 0 {
		return nil
	}
	return l.mailer.Send(ctx, models.Email{
		To:      l.recipients,
		Subject: fmt.Sprintf("Enrollment System Alert - %s", kind),
		Body:    body,
		Type:    kind,
		Urgent:  urgent,
	})
}

type broadcastEnvelope struct {
	Source string       `json:"source"`
	Event  models.Event `json:"event"`
	SentAt time.Time    `json:"sent_at"`
}

// BroadcastListener publishes every event to Redis pub/sub and NATS for other consumers.
type BroadcastListener struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
}

// NewBroadcastListener constructs a BroadcastListener. Either sink may be nil.
func NewBroadcastListener(redisClient *redis.Client, redisChannel string, natsConn *nats.Conn, natsSubject string) *BroadcastListener {
	return &BroadcastListener{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		nodeID:       uuid.NewString(),
	}
}

// Category implements Listener.
func (l *BroadcastListener) Category() string { return CategoryBroadcast }

// OnEvent implements Listener.
func (l *BroadcastListener) OnEvent(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(broadcastEnvelope{Source: l.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal broadcast event: %w", err)
	}

	var errs []error
	if l.redis != nil && l.redisChannel != "" {
		if err := l.redis.Publish(ctx, l.redisChannel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}
	if l.nats != nil && l.natsSubject != "" {
		if err := l.nats.Publish(l.natsSubject, payload); err != nil {
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}
	return errors.Join(errs...)
}
