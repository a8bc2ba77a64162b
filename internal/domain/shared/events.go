// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Engagement events
	EventEngagementSampleLogged EventType = "engagement.sample_logged"
	EventConfusionSignalled     EventType = "engagement.confusion_signalled"

	// Mastery events
	EventMasterySnapshotRecorded EventType = "mastery.snapshot_recorded"
	EventMasteryRecordUpdated    EventType = "mastery.record_updated"

	// Alert events
	EventAlertCreated   EventType = "alert.created"
	EventAlertResolved  EventType = "alert.resolved"
	EventAlertBroadcast EventType = "alert.broadcast"

	// Live session events
	EventLiveSessionCreated EventType = "session.created"
	EventLiveSessionEnded   EventType = "session.ended"

	// System events
	EventSweepCompleted EventType = "system.sweep_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Engagement Events
// ═══════════════════════════════════════════════════════════════════════════

// EngagementSampleLoggedEvent is emitted when a raw engagement sample is ingested.
type EngagementSampleLoggedEvent struct {
	BaseEvent
	SampleID        string  `json:"sample_id"`
	StudentID       string  `json:"student_id"`
	ClassID         string  `json:"class_id"`
	EngagementIndex float64 `json:"engagement_index"`
}

// Payload implements Event interface.
func (e EngagementSampleLoggedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sample_id":        e.SampleID,
		"student_id":       e.StudentID,
		"class_id":         e.ClassID,
		"engagement_index": e.EngagementIndex,
	}
}

// NewEngagementSampleLoggedEvent creates a new EngagementSampleLoggedEvent.
func NewEngagementSampleLoggedEvent(sampleID, studentID, classID string, index float64) EngagementSampleLoggedEvent {
	return EngagementSampleLoggedEvent{
		BaseEvent:       NewBaseEvent(EventEngagementSampleLogged, studentID),
		SampleID:        sampleID,
		StudentID:       studentID,
		ClassID:         classID,
		EngagementIndex: index,
	}
}

// ConfusionSignalledEvent is emitted when a student reports confusion
// during a live session.
type ConfusionSignalledEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	SessionID string `json:"session_id"`
	Topic     string `json:"topic,omitempty"`
}

// Payload implements Event interface.
func (e ConfusionSignalledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"class_id":   e.ClassID,
		"session_id": e.SessionID,
		"topic":      e.Topic,
	}
}

// NewConfusionSignalledEvent creates a new ConfusionSignalledEvent.
func NewConfusionSignalledEvent(studentID, classID, sessionID, topic string) ConfusionSignalledEvent {
	return ConfusionSignalledEvent{
		BaseEvent: NewBaseEvent(EventConfusionSignalled, studentID),
		StudentID: studentID,
		ClassID:   classID,
		SessionID: sessionID,
		Topic:     topic,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mastery Events
// ═══════════════════════════════════════════════════════════════════════════

// MasterySnapshotRecordedEvent is emitted when a point-in-time mastery
// snapshot is persisted.
type MasterySnapshotRecordedEvent struct {
	BaseEvent
	SnapshotID   string  `json:"snapshot_id"`
	StudentID    string  `json:"student_id"`
	LevelType    string  `json:"level_type"`
	LevelID      string  `json:"level_id"`
	MasteryScore float64 `json:"mastery_score"`
}

// Payload implements Event interface.
func (e MasterySnapshotRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_id":   e.SnapshotID,
		"student_id":    e.StudentID,
		"level_type":    e.LevelType,
		"level_id":      e.LevelID,
		"mastery_score": e.MasteryScore,
	}
}

// NewMasterySnapshotRecordedEvent creates a new MasterySnapshotRecordedEvent.
func NewMasterySnapshotRecordedEvent(snapshotID, studentID, levelType, levelID string, score float64) MasterySnapshotRecordedEvent {
	return MasterySnapshotRecordedEvent{
		BaseEvent:    NewBaseEvent(EventMasterySnapshotRecorded, studentID),
		SnapshotID:   snapshotID,
		StudentID:    studentID,
		LevelType:    levelType,
		LevelID:      levelID,
		MasteryScore: score,
	}
}

// MasteryRecordUpdatedEvent is emitted when the local cache of the
// probability engine's per-concept estimate is refreshed.
type MasteryRecordUpdatedEvent struct {
	BaseEvent
	StudentID    string  `json:"student_id"`
	ConceptID    string  `json:"concept_id"`
	MasteryScore float64 `json:"mastery_score"`
	Confidence   float64 `json:"confidence"`
}

// Payload implements Event interface.
func (e MasteryRecordUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"concept_id":    e.ConceptID,
		"mastery_score": e.MasteryScore,
		"confidence":    e.Confidence,
	}
}

// NewMasteryRecordUpdatedEvent creates a new MasteryRecordUpdatedEvent.
func NewMasteryRecordUpdatedEvent(studentID, conceptID string, score, confidence float64) MasteryRecordUpdatedEvent {
	return MasteryRecordUpdatedEvent{
		BaseEvent:    NewBaseEvent(EventMasteryRecordUpdated, studentID),
		StudentID:    studentID,
		ConceptID:    conceptID,
		MasteryScore: score,
		Confidence:   confidence,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Alert Events
// ═══════════════════════════════════════════════════════════════════════════

// AlertCreatedEvent is emitted when a detection rule produces a new alert.
type AlertCreatedEvent struct {
	BaseEvent
	AlertID   string  `json:"alert_id"`
	ClassID   string  `json:"class_id"`
	StudentID string  `json:"student_id,omitempty"`
	ConceptID string  `json:"concept_id,omitempty"`
	AlertType string  `json:"alert_type"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
}

// Payload implements Event interface.
func (e AlertCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id":   e.AlertID,
		"class_id":   e.ClassID,
		"student_id": e.StudentID,
		"concept_id": e.ConceptID,
		"alert_type": e.AlertType,
		"severity":   e.Severity,
		"message":    e.Message,
		"value":      e.Value,
	}
}

// NewAlertCreatedEvent creates a new AlertCreatedEvent. ConceptID is
// empty for alert types not tied to a concept.
func NewAlertCreatedEvent(alertID, classID, studentID, conceptID, alertType, severity, message string, value float64) AlertCreatedEvent {
	return AlertCreatedEvent{
		BaseEvent: NewBaseEvent(EventAlertCreated, alertID),
		AlertID:   alertID,
		ClassID:   classID,
		StudentID: studentID,
		ConceptID: conceptID,
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		Value:     value,
	}
}

// AlertResolvedEvent is emitted when a staff member resolves an alert.
type AlertResolvedEvent struct {
	BaseEvent
	AlertID    string `json:"alert_id"`
	ClassID    string `json:"class_id"`
	ResolvedBy string `json:"resolved_by"`
}

// Payload implements Event interface.
func (e AlertResolvedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id":    e.AlertID,
		"class_id":    e.ClassID,
		"resolved_by": e.ResolvedBy,
	}
}

// NewAlertResolvedEvent creates a new AlertResolvedEvent.
func NewAlertResolvedEvent(alertID, classID, resolvedBy string) AlertResolvedEvent {
	return AlertResolvedEvent{
		BaseEvent:  NewBaseEvent(EventAlertResolved, alertID),
		AlertID:    alertID,
		ClassID:    classID,
		ResolvedBy: resolvedBy,
	}
}

// AlertBroadcastEvent re-announces a recent unresolved alert to class
// subscribers. Produced by the periodic broadcast sweep.
type AlertBroadcastEvent struct {
	BaseEvent
	AlertID   string    `json:"alert_id"`
	ClassID   string    `json:"class_id"`
	StudentID string    `json:"student_id,omitempty"`
	AlertType string    `json:"alert_type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Payload implements Event interface.
func (e AlertBroadcastEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alert_id":   e.AlertID,
		"class_id":   e.ClassID,
		"student_id": e.StudentID,
		"alert_type": e.AlertType,
		"severity":   e.Severity,
		"message":    e.Message,
		"created_at": e.CreatedAt.Format(time.RFC3339),
	}
}

// NewAlertBroadcastEvent creates a new AlertBroadcastEvent.
func NewAlertBroadcastEvent(alertID, classID, studentID, alertType, severity, message string, createdAt time.Time) AlertBroadcastEvent {
	return AlertBroadcastEvent{
		BaseEvent: NewBaseEvent(EventAlertBroadcast, alertID),
		AlertID:   alertID,
		ClassID:   classID,
		StudentID: studentID,
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: createdAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Live Session Events
// ═══════════════════════════════════════════════════════════════════════════

// LiveSessionCreatedEvent is emitted when a staff member starts a live
// monitoring session for a class.
type LiveSessionCreatedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	ClassID   string `json:"class_id"`
	Topic     string `json:"topic,omitempty"`
	CreatedBy string `json:"created_by"`
}

// Payload implements Event interface.
func (e LiveSessionCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"class_id":   e.ClassID,
		"topic":      e.Topic,
		"created_by": e.CreatedBy,
	}
}

// NewLiveSessionCreatedEvent creates a new LiveSessionCreatedEvent.
func NewLiveSessionCreatedEvent(sessionID, classID, topic, createdBy string) LiveSessionCreatedEvent {
	return LiveSessionCreatedEvent{
		BaseEvent: NewBaseEvent(EventLiveSessionCreated, sessionID),
		SessionID: sessionID,
		ClassID:   classID,
		Topic:     topic,
		CreatedBy: createdBy,
	}
}

// LiveSessionEndedEvent is emitted when a live monitoring session ends.
type LiveSessionEndedEvent struct {
	BaseEvent
	SessionID string        `json:"session_id"`
	ClassID   string        `json:"class_id"`
	EndedBy   string        `json:"ended_by"`
	Duration  time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e LiveSessionEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"class_id":   e.ClassID,
		"ended_by":   e.EndedBy,
		"duration":   e.Duration.String(),
	}
}

// NewLiveSessionEndedEvent creates a new LiveSessionEndedEvent.
func NewLiveSessionEndedEvent(sessionID, classID, endedBy string, duration time.Duration) LiveSessionEndedEvent {
	return LiveSessionEndedEvent{
		BaseEvent: NewBaseEvent(EventLiveSessionEnded, sessionID),
		SessionID: sessionID,
		ClassID:   classID,
		EndedBy:   endedBy,
		Duration:  duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// SweepCompletedEvent is emitted when a detection sweep over monitored
// classes finishes.
type SweepCompletedEvent struct {
	BaseEvent
	ClassesScanned int           `json:"classes_scanned"`
	AlertsCreated  int           `json:"alerts_created"`
	ClassesFailed  int           `json:"classes_failed"`
	Duration       time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SweepCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"classes_scanned": e.ClassesScanned,
		"alerts_created":  e.AlertsCreated,
		"classes_failed":  e.ClassesFailed,
		"duration":        e.Duration.String(),
	}
}

// NewSweepCompletedEvent creates a new SweepCompletedEvent.
func NewSweepCompletedEvent(scanned, created, failed int, duration time.Duration) SweepCompletedEvent {
	return SweepCompletedEvent{
		BaseEvent:      NewBaseEvent(EventSweepCompleted, "alert-sweep"),
		ClassesScanned: scanned,
		AlertsCreated:  created,
		ClassesFailed:  failed,
		Duration:       duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
