package masteryengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyansetu/pulse/internal/domain/shared"
)

// newTestClient builds a client with limits loose enough that tests
// never block on the token bucket and fail fast on errors.
func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		RateLimiterConfig: RateLimiterConfig{
			RequestsPerSecond: 1000,
			BurstSize:         1000,
			WaitTimeout:       time.Second,
			RetryAfter:        time.Second,
		},
		CircuitBreakerConfig: CircuitBreakerConfig{
			FailureThreshold:   2,
			SuccessThreshold:   1,
			Timeout:            time.Minute,
			HalfOpenMaxRetries: 1,
		},
		RetryConfig: RetryConfig{
			MaxRetries:        0,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1.0,
		},
	})
}

func TestUpdateMastery(t *testing.T) {
	var got UpdateMasteryRequestDTO
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mastery/update", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(UpdateAckDTO{Status: "updated"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.UpdateMastery(context.Background(), "st-1", "fractions", true, 0.8)
	require.NoError(t, err)

	assert.Equal(t, "st-1", got.StudentID)
	assert.Equal(t, "fractions", got.ConceptID)
	assert.True(t, got.Correct)
	assert.InDelta(t, 0.8, got.Engagement, 1e-9)
}

func TestUpdateMasteryUnexpectedAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(UpdateAckDTO{Status: "queued"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.UpdateMastery(context.Background(), "st-1", "fractions", true, 1.0)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestGetConceptMastery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mastery/concept/st-1/fractions", r.URL.Path)
		json.NewEncoder(w).Encode(ConceptMasteryDTO{
			Concept:      "Fractions",
			MasteryScore: 62,
			Probability:  0.62,
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	report, err := client.GetConceptMastery(context.Background(), "st-1", "fractions")
	require.NoError(t, err)

	assert.Equal(t, "Fractions", report.Concept)
	assert.Equal(t, 62, report.MasteryScore)
	assert.InDelta(t, 0.62, report.Probability, 1e-9)
}

func TestGetModuleMastery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mastery/module/st-1/mod-1", r.URL.Path)
		json.NewEncoder(w).Encode(ModuleMasteryDTO{
			Module:       "Arithmetic",
			Mastery:      71.5,
			WeakConcepts: []string{"fractions"},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	report, err := client.GetModuleMastery(context.Background(), "st-1", "mod-1")
	require.NoError(t, err)

	assert.Equal(t, "Arithmetic", report.Module)
	assert.InDelta(t, 71.5, report.Mastery, 1e-9)
	assert.Equal(t, []string{"fractions"}, report.WeakConcepts)
}

func TestGetSubjectMastery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mastery/subject/st-1/math", r.URL.Path)
		json.NewEncoder(w).Encode(SubjectMasteryDTO{
			Subject:        "Mathematics",
			SubjectMastery: 64.2,
			Modules: []SubjectModuleDTO{
				{Module: "Arithmetic", Mastery: 71.5, Status: "on_track"},
				{Module: "Geometry", Mastery: 52.0, Status: "needs_practice"},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	report, err := client.GetSubjectMastery(context.Background(), "st-1", "math")
	require.NoError(t, err)

	assert.Equal(t, "Mathematics", report.Subject)
	assert.InDelta(t, 64.2, report.SubjectMastery, 1e-9)
	require.Len(t, report.Modules, 2)
	assert.Equal(t, "Geometry", report.Modules[1].Module)
}

func TestGetStudentMastery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mastery/student/st-1", r.URL.Path)
		json.NewEncoder(w).Encode(StudentMasteryDTO{
			StudentID:      "st-1",
			OverallMastery: 58.3,
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	report, err := client.GetStudentMastery(context.Background(), "st-1")
	require.NoError(t, err)

	assert.Equal(t, "st-1", report.StudentID)
	assert.InDelta(t, 58.3, report.OverallMastery, 1e-9)
}

func TestGetPracticePlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mastery/practice/st-1/math", r.URL.Path)
		json.NewEncoder(w).Encode(PracticePlanDTO{
			"mod-1": {
				Remedial: []string{"fractions"},
				Core:     []string{"decimals"},
				Stretch:  []string{},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	plan, err := client.GetPracticePlan(context.Background(), "st-1", "math")
	require.NoError(t, err)

	require.Contains(t, plan, "mod-1")
	assert.Equal(t, []string{"fractions"}, plan["mod-1"].Remedial)
	assert.Equal(t, []string{"decimals"}, plan["mod-1"].Core)
}

func TestRateLimitResponseMapsToRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetConceptMastery(context.Background(), "st-1", "fractions")
	assert.ErrorIs(t, err, shared.ErrRateLimited)
}

func TestServerErrorsOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	for i := 0; i < 2; i++ {
		_, err := client.GetConceptMastery(context.Background(), "st-1", "fractions")
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	}

	assert.Equal(t, CircuitOpen, client.Status(context.Background()).CircuitBreaker.State)

	// Circuit is open: the request fails fast without reaching the server
	_, err := client.GetConceptMastery(context.Background(), "st-1", "fractions")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	client.Reset()
	assert.Equal(t, CircuitClosed, client.circuitBreaker.State())
}

func TestMalformedPayloadIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetConceptMastery(context.Background(), "st-1", "fractions")
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"service": "mastery-engine"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	assert.True(t, client.IsHealthy(context.Background()))

	srv.Close()
	assert.False(t, client.IsHealthy(context.Background()))
}
