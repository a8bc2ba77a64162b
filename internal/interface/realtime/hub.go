// Package realtime implements the websocket channel manager for live
// classroom monitoring. Authenticated staff observe class rooms,
// students receive their personal mastery events, and the hub bridges
// the in-process event bus onto the wire.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyansetu/pulse/internal/domain/shared"
	"github.com/gyansetu/pulse/internal/infrastructure/external/directory"
)

// ConnState is the lifecycle state of one connection.
type ConnState int

const (
	// StateConnecting - transport is up, identity not yet verified.
	StateConnecting ConnState = iota

	// StateAuthenticated - identity verified, no rooms joined yet.
	StateAuthenticated

	// StateJoined - member of at least one room.
	StateJoined

	// StateDisconnected - terminal.
	StateDisconnected
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Subscriber is the transport half of a connection. The websocket
// transport implements it with a buffered outbound queue; tests
// implement it in memory.
type Subscriber interface {
	// Send enqueues one message for delivery. Must not block; a full
	// queue is an error and tears the connection down.
	Send(msg OutboundMessage) error

	// Close shuts the transport down with a reason.
	Close(reason string) error
}

// Connection is one client connection tracked by the hub. All fields
// are guarded by the hub's mutex.
type Connection struct {
	id       string
	state    ConnState
	identity *directory.Identity
	rooms    map[Room]struct{}
	sub      Subscriber
}

// ID returns the connection's ID.
func (c *Connection) ID() string {
	return c.id
}

// LiveSession is an ephemeral monitoring session owned by a staff
// connection. Sessions live in hub memory only; a restart drops them.
type LiveSession struct {
	SessionID   string
	ClassID     string
	Topic       string
	OwnerID     string
	ownerConnID string
	StartedAt   time.Time

	// participants maps connection ID to the joined student's identity.
	participants map[string]*directory.Identity

	// poll is the session's active poll, nil when none is running.
	poll *sessionPoll
}

// sessionPoll is the running poll of one session. A new launch replaces
// the previous poll; each student answers at most once.
type sessionPoll struct {
	PollID    string
	Question  string
	Options   []string
	counts    []int
	responded map[string]struct{} // student user IDs
}

// TokenVerifier verifies a bearer credential with the directory.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*directory.Identity, error)
}

// PresenceTracker mirrors connection presence to Redis so other
// components can tell whether live monitoring is active. Satisfied by
// the Redis presence tracker; a nil tracker disables mirroring.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, userID, role string) error
	MarkOffline(ctx context.Context, userID string, rooms []string) error
	JoinRoom(ctx context.Context, room, userID string) error
	LeaveRoom(ctx context.Context, room, userID string) error
}

// Hub is the channel manager. One hub serves all websocket clients of
// the process; a single mutex guards the registry, the connection
// table and the session table.
type Hub struct {
	mu       sync.Mutex
	conns    map[string]*Connection
	registry *registry
	sessions map[string]*LiveSession

	verifier  TokenVerifier
	presence  PresenceTracker
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewHub creates a channel manager.
func NewHub(verifier TokenVerifier, presence PresenceTracker, publisher shared.EventPublisher, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:     make(map[string]*Connection),
		registry:  newRegistry(),
		sessions:  make(map[string]*LiveSession),
		verifier:  verifier,
		presence:  presence,
		publisher: publisher,
		logger:    logger,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Connection lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Connect registers a new transport with the hub. The connection
// starts in the connecting state and must authenticate before any
// intent is accepted.
func (h *Hub) Connect(sub Subscriber) *Connection {
	conn := &Connection{
		id:    uuid.NewString(),
		state: StateConnecting,
		rooms: make(map[Room]struct{}),
		sub:   sub,
	}

	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()

	return conn
}

// Authenticate verifies the handshake credential. On success students
// are auto-joined to their personal room; staff stay room-less until
// they send a join intent. A failed handshake is terminal: the caller
// closes the transport, there is no retry.
func (h *Hub) Authenticate(ctx context.Context, conn *Connection, token string) (*directory.Identity, error) {
	h.mu.Lock()
	if conn.state != StateConnecting {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: connection is %s", shared.ErrInvalidState, conn.state)
	}
	h.mu.Unlock()

	identity, err := h.verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	conn.identity = identity
	conn.state = StateAuthenticated

	var joined *Room
	if identity.Role == shared.RoleStudent {
		room := RoomStudent(identity.UserID)
		h.registry.join(room, conn)
		conn.state = StateJoined
		joined = &room
	}
	h.mu.Unlock()

	h.markOnline(ctx, identity, joined)

	h.logger.Debug("client authenticated",
		"conn_id", conn.id,
		"user_id", identity.UserID,
		"role", identity.Role.String())

	return identity, nil
}

// Disconnect tears a connection down: rooms are left, owned sessions
// are ended and announced to their class rooms, presence is cleared.
// Safe to call more than once.
func (h *Hub) Disconnect(ctx context.Context, conn *Connection) {
	h.mu.Lock()
	if conn.state == StateDisconnected {
		h.mu.Unlock()
		return
	}

	identity := conn.identity
	var owned []*LiveSession
	type rosterUpdate struct {
		owner *Connection
		stats SessionStatsPayload
	}
	var updates []rosterUpdate
	if identity != nil {
		for _, session := range h.sessions {
			if session.ownerConnID == conn.id {
				owned = append(owned, session)
				delete(h.sessions, session.SessionID)
				continue
			}
			if _, member := session.participants[conn.id]; member {
				delete(session.participants, conn.id)
				if owner, stats := h.sessionStatsLocked(session, "STUDENT_LEFT"); owner != nil {
					updates = append(updates, rosterUpdate{owner: owner, stats: stats})
				}
			}
		}
	}

	rooms := h.registry.leaveAll(conn)
	conn.state = StateDisconnected
	delete(h.conns, conn.id)
	h.mu.Unlock()

	// A disconnected teacher takes their sessions down with them.
	for _, session := range owned {
		h.announceSessionEnded(session, "Teacher has ended the session")
	}

	// A dropped student comes off every roster they were on.
	for _, update := range updates {
		h.sendTo(update.owner, OutboundMessage{Type: MessageSessionStats, Payload: update.stats})
	}

	if identity != nil && h.presence != nil {
		roomKeys := make([]string, 0, len(rooms))
		for _, room := range rooms {
			roomKeys = append(roomKeys, room.Key())
		}
		if err := h.presence.MarkOffline(ctx, identity.UserID, roomKeys); err != nil {
			h.logger.Warn("failed to clear presence", "user_id", identity.UserID, "error", err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Inbound intents
// ─────────────────────────────────────────────────────────────────────────────

// HandleMessage processes one inbound frame. Malformed frames and
// rejected intents are answered with an ERROR message; only transport
// failures propagate to the caller.
func (h *Hub) HandleMessage(ctx context.Context, conn *Connection, data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.sendError(conn, "INVALID_PAYLOAD", "message is not valid JSON")
		return
	}

	if !h.isAuthenticated(conn) {
		h.sendError(conn, "UNAUTHORIZED", "authenticate before sending intents")
		return
	}

	switch envelope.Type {
	case MessageJoinClass:
		h.handleJoinClass(ctx, conn, envelope.Payload)
	case MessageCreateSession:
		h.handleCreateSession(ctx, conn, envelope.Payload)
	case MessageJoinSession:
		h.handleJoinSession(conn, envelope.Payload)
	case MessageLeaveSession:
		h.handleLeaveSession(conn, envelope.Payload)
	case MessageEndSession:
		h.handleEndSession(conn, envelope.Payload)
	case MessageLaunchPoll:
		h.handleLaunchPoll(conn, envelope.Payload)
	case MessagePollResponse:
		h.handlePollResponse(conn, envelope.Payload)
	case MessageConfusionSignal:
		h.handleConfusionSignal(conn, envelope.Payload)
	default:
		h.sendError(conn, "UNKNOWN_TYPE", "unknown message type "+string(envelope.Type))
	}
}

func (h *Hub) handleJoinClass(ctx context.Context, conn *Connection, payload json.RawMessage) {
	var req JoinClassPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ClassID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "classId is required")
		return
	}

	h.mu.Lock()
	identity := conn.identity
	if !identity.Role.IsStaff() {
		h.mu.Unlock()
		h.sendError(conn, "FORBIDDEN", "only staff can observe class rooms")
		return
	}
	room := RoomClass(req.ClassID)
	h.registry.join(room, conn)
	conn.state = StateJoined
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.JoinRoom(ctx, room.Key(), identity.UserID); err != nil {
			h.logger.Warn("failed to mirror room join", "room", room.Key(), "error", err)
		}
	}

	h.sendTo(conn, OutboundMessage{Type: MessageJoinedClass, Payload: JoinedClassPayload{ClassID: req.ClassID}})
}

func (h *Hub) handleCreateSession(ctx context.Context, conn *Connection, payload json.RawMessage) {
	var req CreateSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ClassID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "classId is required")
		return
	}

	h.mu.Lock()
	identity := conn.identity
	if !identity.Role.IsStaff() {
		h.mu.Unlock()
		h.sendError(conn, "FORBIDDEN", "only staff can create sessions")
		return
	}

	topic := req.Topic
	if topic == "" {
		topic = "Untitled Session"
	}
	session := &LiveSession{
		SessionID:    uuid.NewString(),
		ClassID:      req.ClassID,
		Topic:        topic,
		OwnerID:      identity.UserID,
		ownerConnID:  conn.id,
		StartedAt:    time.Now(),
		participants: make(map[string]*directory.Identity),
	}
	h.sessions[session.SessionID] = session

	// The owner observes the class they are monitoring.
	room := RoomClass(req.ClassID)
	h.registry.join(room, conn)
	conn.state = StateJoined
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.JoinRoom(ctx, room.Key(), identity.UserID); err != nil {
			h.logger.Warn("failed to mirror room join", "room", room.Key(), "error", err)
		}
	}

	h.sendTo(conn, OutboundMessage{Type: MessageSessionCreated, Payload: SessionCreatedPayload{
		SessionID: session.SessionID,
		ClassID:   session.ClassID,
		Topic:     session.Topic,
	}})

	h.publish(shared.NewLiveSessionCreatedEvent(session.SessionID, session.ClassID, session.Topic, identity.UserID))
}

func (h *Hub) handleEndSession(conn *Connection, payload json.RawMessage) {
	var req EndSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "sessionId is required")
		return
	}

	h.mu.Lock()
	identity := conn.identity
	session, ok := h.sessions[req.SessionID]
	if !ok {
		h.mu.Unlock()
		h.sendError(conn, "NOT_FOUND", "session not found")
		return
	}
	if session.OwnerID != identity.UserID {
		h.mu.Unlock()
		h.sendError(conn, "FORBIDDEN", "only the session owner can end it")
		return
	}
	delete(h.sessions, session.SessionID)
	h.mu.Unlock()

	h.announceSessionEnded(session, "Teacher has ended the session")
	h.sendTo(conn, OutboundMessage{Type: MessageSessionEndedConfirm, Payload: SessionEndedPayload{
		SessionID: session.SessionID,
		Message:   "Session ended successfully",
	}})
}

func (h *Hub) handleJoinSession(conn *Connection, payload json.RawMessage) {
	var req JoinSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "sessionId is required")
		return
	}

	h.mu.Lock()
	identity := conn.identity
	if identity.Role != shared.RoleStudent {
		h.mu.Unlock()
		h.sendError(conn, "FORBIDDEN", "only students join sessions")
		return
	}
	session, ok := h.sessions[req.SessionID]
	if !ok {
		h.mu.Unlock()
		h.sendError(conn, "NOT_FOUND", "session not found")
		return
	}

	session.participants[conn.id] = identity
	h.registry.join(RoomSession(session.SessionID), conn)
	conn.state = StateJoined
	owner, stats := h.sessionStatsLocked(session, "")
	h.mu.Unlock()

	h.sendTo(conn, OutboundMessage{Type: MessageJoinedSession, Payload: JoinedSessionPayload{SessionID: session.SessionID}})
	if owner != nil {
		h.sendTo(owner, OutboundMessage{Type: MessageSessionStats, Payload: stats})
	}
}

func (h *Hub) handleLeaveSession(conn *Connection, payload json.RawMessage) {
	var req LeaveSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "sessionId is required")
		return
	}

	h.mu.Lock()
	session, ok := h.sessions[req.SessionID]
	if !ok {
		h.mu.Unlock()
		h.sendError(conn, "NOT_FOUND", "session not found")
		return
	}

	var owner *Connection
	var stats SessionStatsPayload
	if _, member := session.participants[conn.id]; member {
		delete(session.participants, conn.id)
		h.registry.leave(RoomSession(session.SessionID), conn)
		owner, stats = h.sessionStatsLocked(session, "STUDENT_LEFT")
	}
	h.mu.Unlock()

	h.sendTo(conn, OutboundMessage{Type: MessageLeftSession, Payload: LeftSessionPayload{
		SessionID: session.SessionID,
		Message:   "You have left the session",
	}})
	if owner != nil {
		h.sendTo(owner, OutboundMessage{Type: MessageSessionStats, Payload: stats})
	}
}

func (h *Hub) handleLaunchPoll(conn *Connection, payload json.RawMessage) {
	var req LaunchPollPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "sessionId is required")
		return
	}
	if req.Question == "" || len(req.Options) < 2 {
		h.sendError(conn, "INVALID_PAYLOAD", "a question and at least two options are required")
		return
	}

	h.mu.Lock()
	session, ok := h.sessions[req.SessionID]
	if !ok {
		h.mu.Unlock()
		h.sendError(conn, "NOT_FOUND", "session not found")
		return
	}
	if session.ownerConnID != conn.id {
		h.mu.Unlock()
		h.sendError(conn, "FORBIDDEN", "only the session owner can launch polls")
		return
	}

	// A new launch replaces any poll still running.
	poll := &sessionPoll{
		PollID:    uuid.NewString(),
		Question:  req.Question,
		Options:   req.Options,
		counts:    make([]int, len(req.Options)),
		responded: make(map[string]struct{}),
	}
	session.poll = poll
	h.mu.Unlock()

	h.Broadcast(RoomSession(session.SessionID), OutboundMessage{Type: MessagePollLaunched, Payload: PollLaunchedPayload{
		SessionID: session.SessionID,
		PollID:    poll.PollID,
		Question:  poll.Question,
		Options:   poll.Options,
	}})
	h.sendTo(conn, OutboundMessage{Type: MessagePollLaunchedAck, Payload: PollLaunchedAckPayload{
		SessionID: session.SessionID,
		PollID:    poll.PollID,
	}})
}

func (h *Hub) handlePollResponse(conn *Connection, payload json.RawMessage) {
	var req PollResponsePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.PollID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "pollId is required")
		return
	}

	h.mu.Lock()
	var session *LiveSession
	var identity *directory.Identity
	for _, s := range h.sessions {
		if id, ok := s.participants[conn.id]; ok {
			session, identity = s, id
			break
		}
	}
	if session == nil {
		h.mu.Unlock()
		h.sendError(conn, "NOT_FOUND", "join a session before answering polls")
		return
	}

	poll := session.poll
	// Answers for a replaced poll and repeat answers are dropped, not
	// rejected: they lose the race, the student did nothing wrong.
	if poll == nil || poll.PollID != req.PollID {
		h.mu.Unlock()
		return
	}
	if _, answered := poll.responded[identity.UserID]; answered {
		h.mu.Unlock()
		return
	}
	if req.OptionIndex < 0 || req.OptionIndex >= len(poll.counts) {
		h.mu.Unlock()
		h.sendError(conn, "INVALID_PAYLOAD", "optionIndex is out of range")
		return
	}

	poll.responded[identity.UserID] = struct{}{}
	poll.counts[req.OptionIndex]++

	results := make(map[string]int, len(poll.Options))
	for i, option := range poll.Options {
		results[option] = poll.counts[i]
	}
	tally := PollResultsPayload{
		SessionID:      session.SessionID,
		PollID:         poll.PollID,
		Results:        results,
		TotalResponses: len(poll.responded),
	}
	owner := h.conns[session.ownerConnID]
	h.mu.Unlock()

	if owner != nil {
		h.sendTo(owner, OutboundMessage{Type: MessagePollResults, Payload: tally})
	}
}

func (h *Hub) handleConfusionSignal(conn *Connection, payload json.RawMessage) {
	var req ConfusionSignalPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.ClassID == "" {
		h.sendError(conn, "INVALID_PAYLOAD", "classId is required")
		return
	}

	h.mu.Lock()
	identity := conn.identity
	h.mu.Unlock()

	if identity.Role != shared.RoleStudent {
		h.sendError(conn, "FORBIDDEN", "only students signal confusion")
		return
	}

	h.Broadcast(RoomClass(req.ClassID), OutboundMessage{Type: MessageConfusionAlert, Payload: ConfusionAlertPayload{
		ClassID:   req.ClassID,
		Topic:     req.Topic,
		Severity:  "LOW",
		Timestamp: time.Now(),
	}})

	h.publish(shared.NewConfusionSignalledEvent(identity.UserID, req.ClassID, req.SessionID, req.Topic))
}

// ─────────────────────────────────────────────────────────────────────────────
// Delivery
// ─────────────────────────────────────────────────────────────────────────────

// Broadcast delivers a message to every member of a room. Sends are
// non-blocking enqueues and happen under the hub lock, so all members
// observe hub emissions in the same order. A member whose queue is
// full is disconnected as a slow consumer.
func (h *Hub) Broadcast(room Room, msg OutboundMessage) {
	h.mu.Lock()
	var failed []*Connection
	for _, conn := range h.registry.connections(room) {
		if err := conn.sub.Send(msg); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range failed {
		h.logger.Warn("dropping slow consumer", "conn_id", conn.id, "room", room.Key())
		_ = conn.sub.Close("slow consumer")
		h.Disconnect(context.Background(), conn)
	}
}

// sendTo delivers one message to one connection.
func (h *Hub) sendTo(conn *Connection, msg OutboundMessage) {
	if err := conn.sub.Send(msg); err != nil {
		h.logger.Warn("dropping slow consumer", "conn_id", conn.id)
		_ = conn.sub.Close("slow consumer")
		h.Disconnect(context.Background(), conn)
	}
}

func (h *Hub) sendError(conn *Connection, code, message string) {
	h.sendTo(conn, OutboundMessage{Type: MessageError, Payload: ErrorPayload{Code: code, Message: message}})
}

// announceSessionEnded notifies a session's class room and its student
// participants that it is over, then publishes the lifecycle event. The
// participant room is emptied afterwards.
func (h *Hub) announceSessionEnded(session *LiveSession, message string) {
	ended := OutboundMessage{Type: MessageSessionEnded, Payload: SessionEndedPayload{
		SessionID: session.SessionID,
		Message:   message,
	}}
	h.Broadcast(RoomClass(session.ClassID), ended)
	h.Broadcast(RoomSession(session.SessionID), ended)

	h.mu.Lock()
	room := RoomSession(session.SessionID)
	for _, conn := range h.registry.connections(room) {
		h.registry.leave(room, conn)
	}
	h.mu.Unlock()

	h.publish(shared.NewLiveSessionEndedEvent(session.SessionID, session.ClassID, session.OwnerID, time.Since(session.StartedAt)))
}

// sessionStatsLocked builds the owner's roster update for a session.
// Callers hold the hub mutex and deliver the payload after unlocking.
func (h *Hub) sessionStatsLocked(session *LiveSession, event string) (*Connection, SessionStatsPayload) {
	students := make([]SessionParticipant, 0, len(session.participants))
	for _, identity := range session.participants {
		students = append(students, SessionParticipant{
			StudentID: identity.UserID,
			Email:     identity.Email,
		})
	}
	return h.conns[session.ownerConnID], SessionStatsPayload{
		SessionID:     session.SessionID,
		TotalStudents: len(session.participants),
		Students:      students,
		Event:         event,
	}
}

func (h *Hub) publish(event shared.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event", "event_type", string(event.EventType()), "error", err)
	}
}

func (h *Hub) markOnline(ctx context.Context, identity *directory.Identity, joined *Room) {
	if h.presence == nil {
		return
	}
	if err := h.presence.MarkOnline(ctx, identity.UserID, identity.Role.String()); err != nil {
		h.logger.Warn("failed to mark presence", "user_id", identity.UserID, "error", err)
	}
	if joined != nil {
		if err := h.presence.JoinRoom(ctx, joined.Key(), identity.UserID); err != nil {
			h.logger.Warn("failed to mirror room join", "room", joined.Key(), "error", err)
		}
	}
}

func (h *Hub) isAuthenticated(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return conn.state == StateAuthenticated || conn.state == StateJoined
}

// ─────────────────────────────────────────────────────────────────────────────
// Inspection
// ─────────────────────────────────────────────────────────────────────────────

// RoomSize returns the current member count of a room.
func (h *Hub) RoomSize(room Room) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.size(room)
}

// ConnectionCount returns the number of tracked connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Sessions returns a snapshot of the live sessions.
func (h *Hub) Sessions() []LiveSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LiveSession, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, *s)
	}
	return out
}
