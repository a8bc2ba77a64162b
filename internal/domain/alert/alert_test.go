package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngagementDrop_Severity(t *testing.T) {
	tests := []struct {
		name  string
		index float64
		want  Severity
	}{
		{"moderate drop", 0.45, SeverityMedium},
		{"just under threshold", 0.49, SeverityMedium},
		{"severe drop", 0.25, SeverityHigh},
		{"boundary stays medium", 0.3, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewEngagementDrop("alert-1", "class-1", "student-1", tt.index, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Severity)
			assert.Equal(t, TypeEngagementDrop, a.Type)
		})
	}
}

func TestNewEngagementDrop_Message(t *testing.T) {
	a, err := NewEngagementDrop("alert-1", "class-1", "student-1", 0.42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Student engagement dropped to 42%", a.Message)
}

func TestNewMasteryThreshold_Severity(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  Severity
	}{
		{"below alert threshold", 45, SeverityMedium},
		{"severe", 25, SeverityHigh},
		{"boundary stays medium", 30, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewMasteryThreshold("alert-1", "class-1", "student-1", "algebra-1", tt.score, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Severity)
			assert.Equal(t, TypeMasteryThreshold, a.Type)
		})
	}
}

func TestResolve(t *testing.T) {
	a, err := New("alert-1", "class-1", "student-1", "", TypeEngagementDrop, SeverityMedium, "msg", time.Now())
	require.NoError(t, err)

	err = a.Resolve("teacher-1", time.Now())
	require.NoError(t, err)

	assert.True(t, a.Resolved)
	assert.Equal(t, "teacher-1", a.ResolvedBy)
	require.NotNil(t, a.ResolvedAt)
}

func TestResolve_IdempotentRestamp(t *testing.T) {
	a, err := New("alert-1", "class-1", "student-1", "", TypeEngagementDrop, SeverityMedium, "msg", time.Now())
	require.NoError(t, err)

	first := time.Now().Add(-time.Hour)
	require.NoError(t, a.Resolve("teacher-1", first))

	second := time.Now()
	require.NoError(t, a.Resolve("teacher-2", second))

	assert.True(t, a.Resolved)
	assert.Equal(t, "teacher-2", a.ResolvedBy)
	assert.Equal(t, second, *a.ResolvedAt)
}

func TestResolve_EmptyResolver(t *testing.T) {
	a, err := New("alert-1", "class-1", "", "", TypeConfusion, SeverityLow, "msg", time.Now())
	require.NoError(t, err)

	err = a.Resolve("", time.Now())
	assert.ErrorIs(t, err, ErrEmptyResolvedBy)
	assert.False(t, a.Resolved)
}

func TestIsRecent(t *testing.T) {
	now := time.Now()

	fresh, err := New("a1", "class-1", "", "", TypeConfusion, SeverityLow, "msg", now.Add(-30*time.Second))
	require.NoError(t, err)
	assert.True(t, fresh.IsRecent(now, time.Minute))

	stale, err := New("a2", "class-1", "", "", TypeConfusion, SeverityLow, "msg", now.Add(-2*time.Minute))
	require.NoError(t, err)
	assert.False(t, stale.IsRecent(now, time.Minute))
}

func TestNew_Validation(t *testing.T) {
	now := time.Now()

	_, err := New("", "class-1", "", "", TypeConfusion, SeverityLow, "msg", now)
	assert.ErrorIs(t, err, ErrInvalidAlertID)

	_, err = New("a1", "", "", "", TypeConfusion, SeverityLow, "msg", now)
	assert.ErrorIs(t, err, ErrInvalidClassID)

	_, err = New("a1", "class-1", "", "", "BOGUS", SeverityLow, "msg", now)
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = New("a1", "class-1", "", "", TypeConfusion, "URGENT", "msg", now)
	assert.ErrorIs(t, err, ErrInvalidSeverity)
}
