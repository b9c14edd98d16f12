package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/jobs"
)

// Listener categories known to the notifier.
const (
	CategoryStudent   = "student"
	CategoryAdvisor   = "advisor"
	CategoryAdmin     = "admin"
	CategoryBroadcast = "broadcast"
)

const (
	recentNotificationLimit = 10
	notificationLogCapacity = 200
)

// Listener reacts to enrollment events. Returned errors are logged, never propagated.
type Listener interface {
	Category() string
	OnEvent(ctx context.Context, event models.Event) error
}

// Delivery is one event addressed to one listener category, the unit of queued work.
type Delivery struct {
	Category string
	Event    models.Event
}

// NotificationService fans enrollment events out to the attached listeners.
type NotificationService struct {
	mu       sync.RWMutex
	registry map[string]Listener
	order    []string
	attached map[string]bool

	logMu sync.Mutex
	log   []models.NotificationLogEntry
	total int

	queue   *jobs.Queue[Delivery]
	metrics *MetricsService
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewNotificationService registers the listeners and attaches all of them.
func NewNotificationService(listeners []Listener, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		registry: make(map[string]Listener),
		attached: make(map[string]bool),
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "notifier")),
		tracer:   otel.Tracer("github.com/noah-isme/uni-enrollment-api/internal/service/notification"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, l := range listeners {
		svc.Register(l)
	}
	svc.AttachAll()
	return svc
}

// Register adds a listener to the registry without attaching it. A listener with the same
// category replaces the previous one.
func (s *NotificationService) Register(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	category := l.Category()
	if _, exists := s.registry[category]; !exists {
		s.order = append(s.order, category)
	}
	s.registry[category] = l
}

// NewDeliveryQueue builds a stopped worker queue bound to this service's handlers.
func (s *NotificationService) NewDeliveryQueue(cfg jobs.QueueConfig) *jobs.Queue[Delivery] {
	return jobs.NewQueue("notifications", s.HandleJob, s.DeliveryExhausted, cfg)
}

// UseQueue switches delivery to the given worker queue. Pass nil to deliver synchronously.
func (s *NotificationService) UseQueue(q *jobs.Queue[Delivery]) {
	s.mu.Lock()
	s.queue = q
	s.mu.Unlock()
}

// Attach enables delivery to a registered category.
func (s *NotificationService) Attach(category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[category]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown observer category %q", category))
	}
	if !s.attached[category] {
		s.attached[category] = true
		s.logger.Info("observer attached", zap.String("category", category))
	}
	return nil
}

// Detach disables delivery to a category. Detaching an unattached category is a no-op.
func (s *NotificationService) Detach(category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[category]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown observer category %q", category))
	}
	if s.attached[category] {
		delete(s.attached, category)
		s.logger.Info("observer detached", zap.String("category", category))
	}
	return nil
}

// AttachAll enables every registered category.
func (s *NotificationService) AttachAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range s.order {
		s.attached[category] = true
	}
}

// Observers lists the attached categories in registration order.
func (s *NotificationService) Observers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.attached))
	for _, category := range s.order {
		if s.attached[category] {
			out = append(out, category)
		}
	}
	return out
}

// Notify delivers the event to a snapshot of the attached listeners. It never fails.
func (s *NotificationService) Notify(ctx context.Context, event models.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.attached))
	for _, category := range s.order {
		if s.attached[category] {
			listeners = append(listeners, s.registry[category])
		}
	}
	queue := s.queue
	s.mu.RUnlock()

	spanCtx, span := s.tracer.Start(ctx, "notifications.notify", trace.WithAttributes(
		attribute.String("event.kind", string(event.Kind)),
		attribute.Int("event.listeners", len(listeners)),
	))
	defer span.End()

	s.record(event, len(listeners))
	s.logger.Info("notification event",
		zap.String("kind", string(event.Kind)),
		zap.String("student_id", event.StudentID),
		zap.String("course_id", event.CourseID),
		zap.Int("observers", len(listeners)),
	)

	for _, l := range listeners {
		if queue != nil {
			err := queue.Enqueue(uuid.NewString(), Delivery{Category: l.Category(), Event: event})
			if err == nil {
				continue
			}
			s.logger.Warn("notification enqueue failed, delivering inline", zap.String("category", l.Category()), zap.Error(err))
		}
		if err := s.deliver(spanCtx, l, event); err != nil {
			span.RecordError(err)
		}
	}
}

// HandleJob delivers a queued event. Errors trigger queue retries; a category that
// was unregistered in the meantime is dropped.
func (s *NotificationService) HandleJob(ctx context.Context, task jobs.Task[Delivery]) error {
	s.mu.RLock()
	l, ok := s.registry[task.Value.Category]
	s.mu.RUnlock()
	if !ok {
		s.logger.Warn("queued notification for unknown category", zap.String("category", task.Value.Category), zap.String("task_id", task.ID))
		return nil
	}
	return s.deliver(ctx, l, task.Value.Event)
}

// DeliveryExhausted records a delivery that failed on every retry.
func (s *NotificationService) DeliveryExhausted(task jobs.Task[Delivery], err error) {
	s.logger.Error("notification dropped after retries",
		zap.String("category", task.Value.Category),
		zap.String("kind", string(task.Value.Event.Kind)),
		zap.Int("attempts", task.Attempt),
		zap.Error(err),
	)
}

func (s *NotificationService) deliver(ctx context.Context, l Listener, event models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener %s panicked: %v", l.Category(), r)
		}
		if err != nil {
			s.logger.Warn("notification listener failed",
				zap.String("category", l.Category()),
				zap.String("kind", string(event.Kind)),
				zap.Error(err),
			)
		}
		s.metrics.ObserveNotification(l.Category(), event.Kind, err == nil)
	}()
	return l.OnEvent(ctx, event)
}

func (s *NotificationService) record(event models.Event, observers int) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.total++
	s.log = append(s.log, models.NotificationLogEntry{
		Kind:              event.Kind,
		Event:             event,
		ObserversNotified: observers,
		Timestamp:         s.now(),
	})
	if len(s.log) > notificationLogCapacity {
		s.log = append([]models.NotificationLogEntry(nil), s.log[len(s.log)-notificationLogCapacity:]...)
	}
}

// Statistics reports observer count, total events and the most recent log entries.
func (s *NotificationService) Statistics() models.NotificationStatistics {
	observers := s.Observers()

	s.logMu.Lock()
	defer s.logMu.Unlock()
	start := len(s.log) - recentNotificationLimit
	if start < 0 {
		start = 0
	}
	recent := make([]models.NotificationLogEntry, len(s.log)-start)
	copy(recent, s.log[start:])

	stats := models.NotificationStatistics{
		ObserversCount:      len(observers),
		Observers:           observers,
		TotalNotifications:  s.total,
		RecentNotifications: recent,
	}
	s.mu.RLock()
	if s.queue != nil {
		q := s.queue.Stats()
		stats.Queue = &q
	}
	s.mu.RUnlock()
	return stats
}
