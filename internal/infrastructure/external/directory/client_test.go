package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyansetu/pulse/internal/domain/shared"
)

func TestVerifyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/verify", r.URL.Path)

		var req verifyRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Token != "good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(identityDTO{
			UserID: "u-42",
			Role:   "teacher",
			Email:  "teacher@school.test",
		})
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	identity, err := client.VerifyToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "u-42", identity.UserID)
	assert.Equal(t, shared.RoleTeacher, identity.Role)
	assert.Equal(t, "teacher@school.test", identity.Email)

	_, err = client.VerifyToken(context.Background(), "bad-token")
	assert.ErrorIs(t, err, shared.ErrTokenRejected)

	_, err = client.VerifyToken(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrTokenRejected)
}

func TestVerifyTokenRejectsUnknownRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identityDTO{UserID: "u-42", Role: "janitor"})
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))
	_, err := client.VerifyToken(context.Background(), "token")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestListActiveClasses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/classes/active", r.URL.Path)
		json.NewEncoder(w).Encode(classListDTO{Classes: []string{"class-a", "class-b"}})
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))
	classes, err := client.ListActiveClasses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"class-a", "class-b"}, classes)
}

func TestGetClassRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/classes/class-a/students":
			json.NewEncoder(w).Encode(rosterDTO{Students: []string{"st-1", "st-2"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	roster, err := client.GetClassRoster(context.Background(), "class-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"st-1", "st-2"}, roster)

	_, err = client.GetClassRoster(context.Background(), "class-zzz")
	assert.ErrorIs(t, err, shared.ErrClassNotFound)
}

func TestUnreachableDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))
	_, err := client.ListActiveClasses(context.Background())
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestAPIKeyIsSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(classListDTO{Classes: nil})
	}))
	defer srv.Close()

	config := DefaultClientConfig(srv.URL)
	config.APIKey = "secret"
	client := NewClient(config)

	_, err := client.ListActiveClasses(context.Background())
	require.NoError(t, err)
}
