package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyansetu/pulse/internal/domain/shared"
	"github.com/gyansetu/pulse/internal/infrastructure/external/directory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeSub struct {
	mu      sync.Mutex
	msgs    []OutboundMessage
	sendErr error
	closed  bool
}

func (f *fakeSub) Send(msg OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSub) Close(reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSub) byType(t MessageType) []OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []OutboundMessage
	for _, msg := range f.msgs {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

type fakeVerifier struct {
	identities map[string]*directory.Identity
}

func (f *fakeVerifier) VerifyToken(ctx context.Context, token string) (*directory.Identity, error) {
	identity, ok := f.identities[token]
	if !ok {
		return nil, shared.ErrTokenRejected
	}
	return identity, nil
}

type fakePresence struct {
	mu      sync.Mutex
	online  []string
	offline []string
	joins   []string // "room/user"
}

func (f *fakePresence) MarkOnline(ctx context.Context, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = append(f.online, userID)
	return nil
}

func (f *fakePresence) MarkOffline(ctx context.Context, userID string, rooms []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, userID)
	return nil
}

func (f *fakePresence) JoinRoom(ctx context.Context, room, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, room+"/"+userID)
	return nil
}

func (f *fakePresence) LeaveRoom(ctx context.Context, room, userID string) error {
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, evt := range p.events {
		if evt.EventType() == t {
			out = append(out, evt)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestHub() (*Hub, *fakePresence, *capturePublisher) {
	verifier := &fakeVerifier{identities: map[string]*directory.Identity{
		"teacher-token":  {UserID: "t-1", Role: shared.RoleTeacher, Email: "teacher@school.test"},
		"student-token":  {UserID: "st-1", Role: shared.RoleStudent, Email: "student@school.test"},
		"student2-token": {UserID: "st-2", Role: shared.RoleStudent},
	}}
	presence := &fakePresence{}
	publisher := &capturePublisher{}
	return NewHub(verifier, presence, publisher, nil), presence, publisher
}

func mustAuth(t *testing.T, hub *Hub, token string) (*Connection, *fakeSub) {
	t.Helper()
	sub := &fakeSub{}
	conn := hub.Connect(sub)
	_, err := hub.Authenticate(context.Background(), conn, token)
	require.NoError(t, err)
	return conn, sub
}

func intent(t *testing.T, msgType MessageType, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	require.NoError(t, err)
	return data
}

// ─────────────────────────────────────────────────────────────────────────────
// Authentication and state machine
// ─────────────────────────────────────────────────────────────────────────────

func TestRejectedHandshakeNeverJoins(t *testing.T) {
	hub, _, _ := newTestHub()
	sub := &fakeSub{}
	conn := hub.Connect(sub)

	_, err := hub.Authenticate(context.Background(), conn, "bogus")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.Equal(t, StateConnecting, conn.state)
	assert.Empty(t, conn.rooms)
}

func TestUnauthenticatedIntentsAreRejected(t *testing.T) {
	hub, _, _ := newTestHub()
	sub := &fakeSub{}
	conn := hub.Connect(sub)

	hub.HandleMessage(context.Background(), conn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	errs := sub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "UNAUTHORIZED", errs[0].Payload.(ErrorPayload).Code)
	assert.Equal(t, 0, hub.RoomSize(RoomClass("class-1")))
}

func TestStudentAutoJoinsPersonalRoom(t *testing.T) {
	hub, presence, _ := newTestHub()
	conn, _ := mustAuth(t, hub, "student-token")

	assert.Equal(t, StateJoined, conn.state)
	assert.Equal(t, 1, hub.RoomSize(RoomStudent("st-1")))
	assert.Contains(t, presence.joins, "student:st-1/st-1")
	assert.Contains(t, presence.online, "st-1")
}

func TestDoubleAuthenticateIsRejected(t *testing.T) {
	hub, _, _ := newTestHub()
	conn, _ := mustAuth(t, hub, "teacher-token")

	_, err := hub.Authenticate(context.Background(), conn, "teacher-token")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

// ─────────────────────────────────────────────────────────────────────────────
// Room gating
// ─────────────────────────────────────────────────────────────────────────────

func TestTeacherJoinsClassRoom(t *testing.T) {
	hub, _, _ := newTestHub()
	conn, sub := mustAuth(t, hub, "teacher-token")

	hub.HandleMessage(context.Background(), conn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	require.Len(t, sub.byType(MessageJoinedClass), 1)
	assert.Equal(t, StateJoined, conn.state)
	assert.Equal(t, 1, hub.RoomSize(RoomClass("class-1")))
}

func TestStudentCannotJoinClassRoom(t *testing.T) {
	hub, _, _ := newTestHub()
	conn, sub := mustAuth(t, hub, "student-token")

	hub.HandleMessage(context.Background(), conn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	errs := sub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "FORBIDDEN", errs[0].Payload.(ErrorPayload).Code)
	assert.Equal(t, 0, hub.RoomSize(RoomClass("class-1")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Event routing
// ─────────────────────────────────────────────────────────────────────────────

func TestMasteryAlertRoutesToStudentRoom(t *testing.T) {
	hub, _, _ := newTestHub()
	teacherConn, teacherSub := mustAuth(t, hub, "teacher-token")
	_, studentSub := mustAuth(t, hub, "student-token")
	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	err := hub.onAlertCreated(shared.NewAlertCreatedEvent("a-1", "class-1", "st-1", "algebra-1", "MASTERY_THRESHOLD", "HIGH", "Student mastery below threshold: 25%", 25))
	require.NoError(t, err)

	got := studentSub.byType(MessageMasteryThreshold)
	require.Len(t, got, 1)
	payload := got[0].Payload.(MasteryThresholdPayload)
	assert.Equal(t, "algebra-1", payload.ConceptID)
	assert.InDelta(t, 25.0, payload.MasteryScore, 1e-9)

	// The class room does not see personal mastery events
	assert.Empty(t, teacherSub.byType(MessageMasteryThreshold))
}

func TestEngagementAlertRoutesToClassRoom(t *testing.T) {
	hub, _, _ := newTestHub()
	teacherConn, teacherSub := mustAuth(t, hub, "teacher-token")
	_, studentSub := mustAuth(t, hub, "student-token")
	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	err := hub.onAlertCreated(shared.NewAlertCreatedEvent("a-1", "class-1", "st-1", "", "ENGAGEMENT_DROP", "MEDIUM", "Student engagement dropped to 40%", 0.4))
	require.NoError(t, err)

	got := teacherSub.byType(MessageEngagementDrop)
	require.Len(t, got, 1)
	payload := got[0].Payload.(EngagementDropPayload)
	assert.Equal(t, "st-1", payload.StudentID)
	assert.InDelta(t, 0.4, payload.EngagementIndex, 1e-9)

	assert.Empty(t, studentSub.byType(MessageEngagementDrop))
}

func TestBroadcastSweepAlertReachesClassRoom(t *testing.T) {
	hub, _, _ := newTestHub()
	teacherConn, teacherSub := mustAuth(t, hub, "teacher-token")
	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	createdAt := time.Now().Add(-30 * time.Second)
	err := hub.onAlertBroadcast(shared.NewAlertBroadcastEvent("a-1", "class-1", "st-1", "ENGAGEMENT_DROP", "HIGH", "Student engagement dropped to 20%", createdAt))
	require.NoError(t, err)

	got := teacherSub.byType(MessageAlert)
	require.Len(t, got, 1)
	payload := got[0].Payload.(AlertPayload)
	assert.Equal(t, "ENGAGEMENT_DROP", payload.AlertType)
	assert.Equal(t, "HIGH", payload.Severity)
}

func TestLowSampleTriggersImmediateDrop(t *testing.T) {
	hub, _, _ := newTestHub()
	teacherConn, teacherSub := mustAuth(t, hub, "teacher-token")
	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	require.NoError(t, hub.onEngagementSample(shared.NewEngagementSampleLoggedEvent("s-1", "st-1", "class-1", 0.35)))
	require.NoError(t, hub.onEngagementSample(shared.NewEngagementSampleLoggedEvent("s-2", "st-2", "class-1", 0.8)))

	got := teacherSub.byType(MessageEngagementDrop)
	require.Len(t, got, 1)
	assert.Equal(t, "st-1", got[0].Payload.(EngagementDropPayload).StudentID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Live sessions
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionLifecycle(t *testing.T) {
	hub, _, publisher := newTestHub()
	teacherConn, teacherSub := mustAuth(t, hub, "teacher-token")

	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageCreateSession, CreateSessionPayload{ClassID: "class-1", Topic: "Fractions"}))

	created := teacherSub.byType(MessageSessionCreated)
	require.Len(t, created, 1)
	sessionID := created[0].Payload.(SessionCreatedPayload).SessionID
	require.NotEmpty(t, sessionID)
	assert.Len(t, publisher.byType(shared.EventLiveSessionCreated), 1)

	// The owner observes the class room they are monitoring
	assert.Equal(t, 1, hub.RoomSize(RoomClass("class-1")))

	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageEndSession, EndSessionPayload{SessionID: sessionID}))

	assert.Len(t, teacherSub.byType(MessageSessionEnded), 1)
	assert.Len(t, teacherSub.byType(MessageSessionEndedConfirm), 1)
	assert.Empty(t, hub.Sessions())
	assert.Len(t, publisher.byType(shared.EventLiveSessionEnded), 1)
}

func TestOnlyOwnerEndsSession(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, studentSub := mustAuth(t, hub, "student-token")

	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageCreateSession, CreateSessionPayload{ClassID: "class-1"}))
	sessionID := ownerSub.byType(MessageSessionCreated)[0].Payload.(SessionCreatedPayload).SessionID

	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageEndSession, EndSessionPayload{SessionID: sessionID}))

	errs := studentSub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "FORBIDDEN", errs[0].Payload.(ErrorPayload).Code)
	assert.Len(t, hub.Sessions(), 1)
}

func TestStudentCannotCreateSession(t *testing.T) {
	hub, _, _ := newTestHub()
	conn, sub := mustAuth(t, hub, "student-token")

	hub.HandleMessage(context.Background(), conn, intent(t, MessageCreateSession, CreateSessionPayload{ClassID: "class-1"}))

	errs := sub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "FORBIDDEN", errs[0].Payload.(ErrorPayload).Code)
	assert.Empty(t, hub.Sessions())
}

func TestTeacherDisconnectEndsOwnedSessions(t *testing.T) {
	hub, presence, publisher := newTestHub()
	ownerConn, _ := mustAuth(t, hub, "teacher-token")
	observerConn, observerSub := mustAuth(t, hub, "teacher-token")

	hub.HandleMessage(context.Background(), observerConn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))
	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageCreateSession, CreateSessionPayload{ClassID: "class-1"}))
	require.Len(t, hub.Sessions(), 1)

	hub.Disconnect(context.Background(), ownerConn)

	assert.Empty(t, hub.Sessions())
	assert.Len(t, observerSub.byType(MessageSessionEnded), 1)
	assert.Len(t, publisher.byType(shared.EventLiveSessionEnded), 1)
	assert.Contains(t, presence.offline, "t-1")
	assert.Equal(t, StateDisconnected, ownerConn.state)
}

// ─────────────────────────────────────────────────────────────────────────────
// Session participation and polls
// ─────────────────────────────────────────────────────────────────────────────

func startSession(t *testing.T, hub *Hub, ownerConn *Connection, ownerSub *fakeSub, classID string) string {
	t.Helper()
	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageCreateSession, CreateSessionPayload{ClassID: classID}))
	created := ownerSub.byType(MessageSessionCreated)
	require.Len(t, created, 1)
	return created[0].Payload.(SessionCreatedPayload).SessionID
}

func TestStudentJoinsSessionAndOwnerGetsRoster(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, studentSub := mustAuth(t, hub, "student-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")

	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))

	joined := studentSub.byType(MessageJoinedSession)
	require.Len(t, joined, 1)
	assert.Equal(t, sessionID, joined[0].Payload.(JoinedSessionPayload).SessionID)

	stats := ownerSub.byType(MessageSessionStats)
	require.Len(t, stats, 1)
	roster := stats[0].Payload.(SessionStatsPayload)
	assert.Equal(t, sessionID, roster.SessionID)
	assert.Equal(t, 1, roster.TotalStudents)
	require.Len(t, roster.Students, 1)
	assert.Equal(t, "st-1", roster.Students[0].StudentID)
	assert.Equal(t, "student@school.test", roster.Students[0].Email)
	assert.Equal(t, 1, hub.RoomSize(RoomSession(sessionID)))
}

func TestJoinUnknownSessionIsNotFound(t *testing.T) {
	hub, _, _ := newTestHub()
	conn, sub := mustAuth(t, hub, "student-token")

	hub.HandleMessage(context.Background(), conn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: "missing"}))

	errs := sub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "NOT_FOUND", errs[0].Payload.(ErrorPayload).Code)
}

func TestTeacherCannotJoinSession(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	otherConn, otherSub := mustAuth(t, hub, "teacher-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")

	hub.HandleMessage(context.Background(), otherConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))

	errs := otherSub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "FORBIDDEN", errs[0].Payload.(ErrorPayload).Code)
	assert.Equal(t, 0, hub.RoomSize(RoomSession(sessionID)))
}

func TestLeaveSessionNotifiesOwner(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, studentSub := mustAuth(t, hub, "student-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")

	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))
	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageLeaveSession, LeaveSessionPayload{SessionID: sessionID}))

	left := studentSub.byType(MessageLeftSession)
	require.Len(t, left, 1)
	assert.Equal(t, "You have left the session", left[0].Payload.(LeftSessionPayload).Message)

	stats := ownerSub.byType(MessageSessionStats)
	require.Len(t, stats, 2)
	departure := stats[1].Payload.(SessionStatsPayload)
	assert.Equal(t, "STUDENT_LEFT", departure.Event)
	assert.Equal(t, 0, departure.TotalStudents)
	assert.Equal(t, 0, hub.RoomSize(RoomSession(sessionID)))
}

func TestPollRoundTrip(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, studentSub := mustAuth(t, hub, "student-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")
	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))

	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageLaunchPoll, LaunchPollPayload{
		SessionID: sessionID,
		Question:  "Is 3/4 bigger than 2/3?",
		Options:   []string{"Yes", "No"},
	}))

	launched := studentSub.byType(MessagePollLaunched)
	require.Len(t, launched, 1)
	poll := launched[0].Payload.(PollLaunchedPayload)
	assert.Equal(t, "Is 3/4 bigger than 2/3?", poll.Question)
	assert.Equal(t, []string{"Yes", "No"}, poll.Options)

	acks := ownerSub.byType(MessagePollLaunchedAck)
	require.Len(t, acks, 1)
	assert.Equal(t, poll.PollID, acks[0].Payload.(PollLaunchedAckPayload).PollID)

	hub.HandleMessage(context.Background(), studentConn, intent(t, MessagePollResponse, PollResponsePayload{PollID: poll.PollID, OptionIndex: 0}))

	results := ownerSub.byType(MessagePollResults)
	require.Len(t, results, 1)
	tally := results[0].Payload.(PollResultsPayload)
	assert.Equal(t, 1, tally.TotalResponses)
	assert.Equal(t, map[string]int{"Yes": 1, "No": 0}, tally.Results)

	// A repeat answer from the same student changes nothing.
	hub.HandleMessage(context.Background(), studentConn, intent(t, MessagePollResponse, PollResponsePayload{PollID: poll.PollID, OptionIndex: 1}))
	assert.Len(t, ownerSub.byType(MessagePollResults), 1)
	assert.Empty(t, studentSub.byType(MessageError))
}

func TestOnlyOwnerLaunchesPolls(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, studentSub := mustAuth(t, hub, "student-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")
	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))

	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageLaunchPoll, LaunchPollPayload{
		SessionID: sessionID,
		Question:  "Ready?",
		Options:   []string{"Yes", "No"},
	}))

	errs := studentSub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "FORBIDDEN", errs[0].Payload.(ErrorPayload).Code)
}

func TestPollNeedsQuestionAndTwoOptions(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")

	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageLaunchPoll, LaunchPollPayload{
		SessionID: sessionID,
		Question:  "Ready?",
		Options:   []string{"Yes"},
	}))

	errs := ownerSub.byType(MessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "INVALID_PAYLOAD", errs[0].Payload.(ErrorPayload).Code)
}

func TestStalePollAnswerIsDropped(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, studentSub := mustAuth(t, hub, "student-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")
	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))

	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageLaunchPoll, LaunchPollPayload{
		SessionID: sessionID, Question: "First?", Options: []string{"A", "B"},
	}))
	stale := studentSub.byType(MessagePollLaunched)[0].Payload.(PollLaunchedPayload).PollID
	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageLaunchPoll, LaunchPollPayload{
		SessionID: sessionID, Question: "Second?", Options: []string{"A", "B"},
	}))

	hub.HandleMessage(context.Background(), studentConn, intent(t, MessagePollResponse, PollResponsePayload{PollID: stale, OptionIndex: 0}))

	assert.Empty(t, ownerSub.byType(MessagePollResults))
	assert.Empty(t, studentSub.byType(MessageError))
}

func TestSessionEndReachesParticipants(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, studentSub := mustAuth(t, hub, "student-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")
	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))

	hub.HandleMessage(context.Background(), ownerConn, intent(t, MessageEndSession, EndSessionPayload{SessionID: sessionID}))

	assert.Len(t, studentSub.byType(MessageSessionEnded), 1)
	assert.Equal(t, 0, hub.RoomSize(RoomSession(sessionID)))
}

func TestParticipantDisconnectUpdatesRoster(t *testing.T) {
	hub, _, _ := newTestHub()
	ownerConn, ownerSub := mustAuth(t, hub, "teacher-token")
	studentConn, _ := mustAuth(t, hub, "student-token")
	sessionID := startSession(t, hub, ownerConn, ownerSub, "class-1")
	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageJoinSession, JoinSessionPayload{SessionID: sessionID}))

	hub.Disconnect(context.Background(), studentConn)

	stats := ownerSub.byType(MessageSessionStats)
	require.Len(t, stats, 2)
	departure := stats[1].Payload.(SessionStatsPayload)
	assert.Equal(t, "STUDENT_LEFT", departure.Event)
	assert.Equal(t, 0, departure.TotalStudents)
}

// ─────────────────────────────────────────────────────────────────────────────
// Confusion signals
// ─────────────────────────────────────────────────────────────────────────────

func TestConfusionSignalFansOutToClass(t *testing.T) {
	hub, _, publisher := newTestHub()
	teacherConn, teacherSub := mustAuth(t, hub, "teacher-token")
	studentConn, _ := mustAuth(t, hub, "student-token")
	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	hub.HandleMessage(context.Background(), studentConn, intent(t, MessageConfusionSignal, ConfusionSignalPayload{ClassID: "class-1", Topic: "Fractions"}))

	got := teacherSub.byType(MessageConfusionAlert)
	require.Len(t, got, 1)
	assert.Equal(t, "Fractions", got[0].Payload.(ConfusionAlertPayload).Topic)
	assert.Len(t, publisher.byType(shared.EventConfusionSignalled), 1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cleanup and slow consumers
// ─────────────────────────────────────────────────────────────────────────────

func TestDisconnectCleansUpRooms(t *testing.T) {
	hub, _, _ := newTestHub()
	conn, _ := mustAuth(t, hub, "student-token")
	require.Equal(t, 1, hub.RoomSize(RoomStudent("st-1")))

	hub.Disconnect(context.Background(), conn)

	assert.Equal(t, 0, hub.RoomSize(RoomStudent("st-1")))
	assert.Equal(t, 0, hub.ConnectionCount())

	// Idempotent
	hub.Disconnect(context.Background(), conn)
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	hub, _, _ := newTestHub()
	teacherConn, teacherSub := mustAuth(t, hub, "teacher-token")
	hub.HandleMessage(context.Background(), teacherConn, intent(t, MessageJoinClass, JoinClassPayload{ClassID: "class-1"}))

	teacherSub.mu.Lock()
	teacherSub.sendErr = errors.New("queue full")
	teacherSub.mu.Unlock()

	hub.Broadcast(RoomClass("class-1"), OutboundMessage{Type: MessageAlert})

	assert.Equal(t, 0, hub.RoomSize(RoomClass("class-1")))
	assert.Equal(t, 0, hub.ConnectionCount())
	teacherSub.mu.Lock()
	assert.True(t, teacherSub.closed)
	teacherSub.mu.Unlock()
}
