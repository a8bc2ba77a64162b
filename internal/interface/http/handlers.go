package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gyansetu/pulse/internal/application/command"
	"github.com/gyansetu/pulse/internal/application/query"
	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
	"github.com/gyansetu/pulse/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Pulse Monitoring API",
		"version":     "v1",
		"description": "Real-time engagement and mastery monitoring for live classroom sessions",
		"endpoints": map[string]string{
			"health":     "/health",
			"engagement": "/api/v1/engagement",
			"alerts":     "/api/v1/classes/{id}/alerts",
			"pace":       "/api/v1/pace/overview",
			"websocket":  "/ws",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// logEngagementRequest is the ingestion payload. Raw behavioral
// telemetry; the command layer clamps out-of-range numeric fields.
type logEngagementRequest struct {
	StudentID         string  `json:"studentId"`
	ClassID           string  `json:"classId"`
	IdleTimeSeconds   float64 `json:"idleTime"`
	Interactions      int     `json:"interactions"`
	PollParticipation int     `json:"pollParticipation"`
	TabFocusPercent   float64 `json:"tabFocus"`
}

// handleLogEngagement handles POST /api/v1/engagement
func (s *Server) handleLogEngagement(w http.ResponseWriter, r *http.Request) {
	if s.deps.LogEngagementHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Engagement handler not configured")
		return
	}

	var req logEngagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return
	}

	cmd := command.LogEngagementCommand{
		StudentID:         req.StudentID,
		ClassID:           req.ClassID,
		IdleTimeSeconds:   req.IdleTimeSeconds,
		Interactions:      req.Interactions,
		PollParticipation: req.PollParticipation,
		TabFocusPercent:   req.TabFocusPercent,
		Timestamp:         time.Now(),
		CorrelationID:     getRequestID(r.Context()),
	}

	result, err := s.deps.LogEngagementHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to log engagement sample")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sampleId":        result.SampleID,
		"engagementIndex": result.EngagementIndex,
		"disengaged":      result.Disengaged,
		"recordedAt":      result.RecordedAt,
	})
}

// handleGetClassEngagement handles GET /api/v1/classes/{id}/engagement
func (s *Server) handleGetClassEngagement(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("id")
	if classID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Class ID is required")
		return
	}

	if s.deps.ClassEngagementHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Engagement handler not configured")
		return
	}

	q := query.GetClassEngagementQuery{
		ClassID: classID,
		Limit:   getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.ClassEngagementHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to get class engagement")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStudentEngagement handles GET /api/v1/students/{id}/engagement
func (s *Server) handleGetStudentEngagement(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.StudentEngagementHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Engagement handler not configured")
		return
	}

	q := query.GetStudentEngagementQuery{
		StudentID: studentID,
		Limit:     getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.StudentEngagementHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to get student engagement")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ALERT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetClassAlerts handles GET /api/v1/classes/{id}/alerts
func (s *Server) handleGetClassAlerts(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("id")
	if classID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Class ID is required")
		return
	}

	if s.deps.ClassAlertsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Alerts handler not configured")
		return
	}

	q := query.GetClassAlertsQuery{
		ClassID:         classID,
		IncludeResolved: getQueryParamBool(r, "include_resolved"),
		Limit:           getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.ClassAlertsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to get class alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"classId": classID,
		"alerts":  result,
	})
}

// resolveAlertRequest is the body of POST /api/v1/alerts/{id}/resolve.
type resolveAlertRequest struct {
	ResolvedBy string `json:"resolvedBy"`
}

// handleResolveAlert handles POST /api/v1/alerts/{id}/resolve
func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Alert ID is required")
		return
	}

	if s.deps.ResolveAlertHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Alerts handler not configured")
		return
	}

	var req resolveAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return
	}

	// Prefer the authenticated identity over the body field.
	resolvedBy := req.ResolvedBy
	if identity := identityFrom(r); identity != "" {
		resolvedBy = identity
	}

	cmd := command.ResolveAlertCommand{
		AlertID:       alertID,
		ResolvedBy:    resolvedBy,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.ResolveAlertHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to resolve alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alertId":    result.AlertID,
		"resolvedAt": result.ResolvedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PACE & VELOCITY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStudentVelocity handles GET /api/v1/students/{id}/velocity
func (s *Server) handleGetStudentVelocity(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.StudentVelocityHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Velocity handler not configured")
		return
	}

	q := query.GetStudentVelocityQuery{
		StudentID:  studentID,
		LevelID:    getQueryParam(r, "level_id", ""),
		WindowDays: getQueryParamInt(r, "window_days", 0),
	}

	result, err := s.deps.StudentVelocityHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to compute velocity")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// paceRequest is the body of the pace overview and at-risk endpoints.
type paceRequest struct {
	StudentIDs []string `json:"studentIds"`
	LevelID    string   `json:"levelId"`
	WindowDays int      `json:"windowDays,omitempty"`
}

// handleGetPaceOverview handles POST /api/v1/pace/overview
func (s *Server) handleGetPaceOverview(w http.ResponseWriter, r *http.Request) {
	if s.deps.PaceOverviewHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Pace handler not configured")
		return
	}

	var req paceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return
	}
	if len(req.StudentIDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "studentIds is required")
		return
	}

	q := query.GetClassPaceOverviewQuery{
		StudentIDs: req.StudentIDs,
		LevelID:    req.LevelID,
		WindowDays: req.WindowDays,
	}

	result, err := s.deps.PaceOverviewHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to compute pace overview")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetAtRisk handles POST /api/v1/pace/at-risk
func (s *Server) handleGetAtRisk(w http.ResponseWriter, r *http.Request) {
	if s.deps.AtRiskHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Pace handler not configured")
		return
	}

	var req paceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return
	}
	if len(req.StudentIDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "studentIds is required")
		return
	}

	q := query.GetAtRiskStudentsQuery{
		StudentIDs: req.StudentIDs,
		LevelID:    req.LevelID,
		WindowDays: req.WindowDays,
	}

	result, err := s.deps.AtRiskHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to classify at-risk students")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"atRisk": result,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY ENGINE PROXY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// updateMasteryRequest is the body of POST /api/v1/mastery/update.
type updateMasteryRequest struct {
	StudentID  string  `json:"studentId"`
	ConceptID  string  `json:"conceptId"`
	Correct    bool    `json:"correct"`
	Engagement float64 `json:"engagement"`
}

// masteryRecordResponse is the wire shape of a mastery record.
type masteryRecordResponse struct {
	StudentID    string    `json:"studentId"`
	ConceptID    string    `json:"conceptId"`
	MasteryScore float64   `json:"masteryScore"`
	Confidence   float64   `json:"confidence"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

func toMasteryResponse(rec *mastery.Record) masteryRecordResponse {
	return masteryRecordResponse{
		StudentID:    string(rec.StudentID),
		ConceptID:    rec.ConceptID,
		MasteryScore: rec.MasteryScore,
		Confidence:   rec.Confidence,
		LastUpdated:  rec.LastUpdated,
	}
}

// handleUpdateMastery handles POST /api/v1/mastery/update
func (s *Server) handleUpdateMastery(w http.ResponseWriter, r *http.Request) {
	if s.deps.MasteryService == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Mastery service not configured")
		return
	}

	var req updateMasteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return
	}
	if req.StudentID == "" || req.ConceptID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "studentId and conceptId are required")
		return
	}

	rec, err := s.deps.MasteryService.UpdateMastery(r.Context(), mastery.StudentID(req.StudentID), req.ConceptID, req.Correct, req.Engagement)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to update mastery")
		return
	}

	writeJSON(w, http.StatusOK, toMasteryResponse(rec))
}

// handleGetConceptMastery handles GET /api/v1/students/{id}/mastery/{conceptId}
func (s *Server) handleGetConceptMastery(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	conceptID := r.PathValue("conceptId")
	if studentID == "" || conceptID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID and concept ID are required")
		return
	}

	if s.deps.MasteryService == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Mastery service not configured")
		return
	}

	rec, err := s.deps.MasteryService.GetConceptMastery(r.Context(), mastery.StudentID(studentID), conceptID)
	if err != nil {
		s.writeDomainError(w, r, err, "Failed to get concept mastery")
		return
	}

	writeJSON(w, http.StatusOK, toMasteryResponse(rec))
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain error kinds to HTTP status codes. The
// fallback message hides internal detail on unexpected failures.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case shared.IsUnauthorized(err):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, shared.ErrRateLimited):
		w.Header().Set("Retry-After", "15")
		writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "Upstream engine is rate limiting requests")
	case shared.IsExternalService(err):
		writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", "An upstream dependency is unavailable")
	default:
		s.logger.Error(fallback,
			"error", err,
			"path", r.URL.Path,
			"request_id", getRequestID(r.Context()),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

// identityFrom returns the authenticated user ID, or empty when the
// route runs unauthenticated.
func identityFrom(r *http.Request) string {
	if identity := handlers.IdentityFrom(r.Context()); identity != nil {
		return identity.UserID
	}
	return ""
}
