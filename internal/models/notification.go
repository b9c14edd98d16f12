package models

import (
	"time"

	"github.com/noah-isme/uni-enrollment-api/pkg/jobs"
)

// EventKind names a notification event.
type EventKind string

// Notification event kinds.
const (
	EventEnrollmentSucceeded EventKind = "ENROLLMENT_SUCCEEDED"
	EventEnrollmentFailed    EventKind = "ENROLLMENT_FAILED"
	EventCourseDropped       EventKind = "COURSE_DROPPED"
	EventCapacityLow         EventKind = "CAPACITY_LOW"
	EventSystemError         EventKind = "SYSTEM_ERROR"
)

// Event is the payload handed to notification listeners.
type Event struct {
	Kind           EventKind        `json:"kind"`
	StudentID      string           `json:"student_id,omitempty"`
	CourseID       string           `json:"course_id,omitempty"`
	CourseName     string           `json:"course_name,omitempty"`
	EnrollmentID   string           `json:"enrollment_id,omitempty"`
	Reason         EnrollmentReason `json:"reason,omitempty"`
	Message        string           `json:"message,omitempty"`
	AvailableSeats int              `json:"available_seats,omitempty"`
	Capacity       int              `json:"capacity,omitempty"`
	Critical       bool             `json:"critical,omitempty"`
	Component      string           `json:"component,omitempty"`
	RequestID      string           `json:"request_id,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// NotificationLogEntry records one dispatched event.
type NotificationLogEntry struct {
	Kind              EventKind `json:"kind"`
	Event             Event     `json:"event"`
	ObserversNotified int       `json:"observers_notified"`
	Timestamp         time.Time `json:"timestamp"`
}

// NotificationStatistics summarises the notifier state.
type NotificationStatistics struct {
	ObserversCount      int                    `json:"observers_count"`
	Observers           []string               `json:"observers"`
	TotalNotifications  int                    `json:"total_notifications"`
	RecentNotifications []NotificationLogEntry `json:"recent_notifications"`
	Queue               *jobs.Stats            `json:"queue,omitempty"`
}

// Email is a rendered notification addressed to one or more recipients.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Type    string   `json:"type"`
	Urgent  bool     `json:"urgent,omitempty"`
}
