package realtime

import (
	"encoding/json"
	"time"
)

// MessageType identifies a wire message. Types follow the dashboard
// protocol: clients send intents, the hub pushes events.
type MessageType string

// Inbound message types.
const (
	MessageJoinClass       MessageType = "JOIN_CLASS"
	MessageCreateSession   MessageType = "CREATE_SESSION"
	MessageJoinSession     MessageType = "JOIN_SESSION"
	MessageLeaveSession    MessageType = "LEAVE_SESSION"
	MessageEndSession      MessageType = "END_SESSION"
	MessageLaunchPoll      MessageType = "LAUNCH_POLL"
	MessagePollResponse    MessageType = "POLL_RESPONSE"
	MessageConfusionSignal MessageType = "CONFUSION_SIGNAL"
)

// Outbound message types.
const (
	MessageJoinedClass         MessageType = "JOINED_CLASS"
	MessageSessionCreated      MessageType = "SESSION_CREATED"
	MessageJoinedSession       MessageType = "JOINED_SESSION"
	MessageLeftSession         MessageType = "LEFT_SESSION"
	MessageSessionStats        MessageType = "SESSION_STATS"
	MessageSessionEnded        MessageType = "SESSION_ENDED"
	MessageSessionEndedConfirm MessageType = "SESSION_ENDED_CONFIRM"
	MessagePollLaunched        MessageType = "POLL_LAUNCHED"
	MessagePollLaunchedAck     MessageType = "POLL_LAUNCHED_ACK"
	MessagePollResults         MessageType = "POLL_RESULTS"
	MessageConfusionAlert      MessageType = "CONFUSION_ALERT"
	MessageEngagementDrop      MessageType = "ENGAGEMENT_DROP"
	MessageMasteryThreshold    MessageType = "MASTERY_THRESHOLD"
	MessageAlert               MessageType = "ALERT"
	MessageError               MessageType = "ERROR"
)

// Envelope is the inbound wire format.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundMessage is a hub-to-client message.
type OutboundMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Inbound payloads
// ─────────────────────────────────────────────────────────────────────────────

// JoinClassPayload asks to observe a class room. Staff only.
type JoinClassPayload struct {
	ClassID string `json:"classId"`
}

// CreateSessionPayload starts a live monitoring session.
type CreateSessionPayload struct {
	ClassID string `json:"classId"`
	Topic   string `json:"topic,omitempty"`
}

// JoinSessionPayload enters a live session as a participant. Students
// only.
type JoinSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// LeaveSessionPayload exits a live session voluntarily.
type LeaveSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// EndSessionPayload ends a live monitoring session.
type EndSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// LaunchPollPayload starts a poll in a session. Owner only; at least
// two options are required.
type LaunchPollPayload struct {
	SessionID string   `json:"sessionId"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
}

// PollResponsePayload is one student's answer to the active poll.
type PollResponsePayload struct {
	PollID      string `json:"pollId"`
	OptionIndex int    `json:"optionIndex"`
}

// ConfusionSignalPayload reports confusion during a live session.
type ConfusionSignalPayload struct {
	ClassID   string `json:"classId"`
	SessionID string `json:"sessionId,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Outbound payloads
// ─────────────────────────────────────────────────────────────────────────────

// JoinedClassPayload confirms a class room join.
type JoinedClassPayload struct {
	ClassID string `json:"classId"`
}

// SessionCreatedPayload confirms session creation to its owner.
type SessionCreatedPayload struct {
	SessionID string `json:"sessionId"`
	ClassID   string `json:"classId"`
	Topic     string `json:"topic"`
}

// JoinedSessionPayload confirms a session join to the student.
type JoinedSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// LeftSessionPayload confirms a voluntary session exit.
type LeftSessionPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message,omitempty"`
}

// SessionParticipant is one student on a session roster.
type SessionParticipant struct {
	StudentID string `json:"studentId"`
	Email     string `json:"email,omitempty"`
}

// SessionStatsPayload keeps the session owner's roster view current.
// Event names the roster change that triggered the update, when there
// was one.
type SessionStatsPayload struct {
	SessionID     string               `json:"sessionId"`
	TotalStudents int                  `json:"totalStudents"`
	Students      []SessionParticipant `json:"students"`
	Event         string               `json:"event,omitempty"`
}

// PollLaunchedPayload presents a new poll to session participants.
type PollLaunchedPayload struct {
	SessionID string   `json:"sessionId"`
	PollID    string   `json:"pollId"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
}

// PollLaunchedAckPayload confirms a poll launch to its owner.
type PollLaunchedAckPayload struct {
	SessionID string `json:"sessionId"`
	PollID    string `json:"pollId"`
}

// PollResultsPayload streams the running tally to the session owner
// after each response.
type PollResultsPayload struct {
	SessionID      string         `json:"sessionId"`
	PollID         string         `json:"pollId"`
	Results        map[string]int `json:"results"`
	TotalResponses int            `json:"totalResponses"`
}

// SessionEndedPayload announces a session end to the class room.
type SessionEndedPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message,omitempty"`
}

// ConfusionAlertPayload fans a confusion signal out to class observers.
type ConfusionAlertPayload struct {
	ClassID   string    `json:"classId"`
	Topic     string    `json:"topic,omitempty"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// EngagementDropPayload notifies class observers of a disengaged student.
type EngagementDropPayload struct {
	StudentID       string    `json:"studentId"`
	EngagementIndex float64   `json:"engagementIndex"`
	Timestamp       time.Time `json:"timestamp"`
}

// MasteryThresholdPayload notifies a student of a low mastery estimate.
type MasteryThresholdPayload struct {
	ConceptID    string    `json:"conceptId,omitempty"`
	MasteryScore float64   `json:"masteryScore"`
	Timestamp    time.Time `json:"timestamp"`
}

// AlertPayload re-announces a stored unresolved alert to the class room.
type AlertPayload struct {
	AlertType string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a rejected intent back to the sender.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
