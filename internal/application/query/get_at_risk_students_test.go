package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyansetu/pulse/internal/domain/mastery"
)

func addSnapshots(t *testing.T, repo *memSnapshotRepo, studentID string, scores []float64, daysAgo []int) {
	t.Helper()
	require.Equal(t, len(scores), len(daysAgo))
	now := time.Now()
	for i, score := range scores {
		at := now.AddDate(0, 0, -daysAgo[i])
		s, err := mastery.NewSnapshot(
			"snap-"+studentID+"-"+at.Format(time.RFC3339Nano),
			mastery.StudentID(studentID), mastery.LevelSubject, mastery.DefaultLevelID, score, at,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), s))
	}
}

func TestGetAtRiskStudents_HighSeverityWithTwoReasons(t *testing.T) {
	repo := newMemSnapshotRepo()
	// Declining mastery ending at 35: low mastery and negative velocity.
	addSnapshots(t, repo, "student-1", []float64{55, 35}, []int{10, 0})

	handler := NewGetAtRiskStudentsHandler(repo)
	result, err := handler.Handle(context.Background(), GetAtRiskStudentsQuery{
		StudentIDs: []string{"student-1"},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)

	flagged := result[0]
	assert.Equal(t, "student-1", flagged.StudentID)
	assert.Equal(t, RiskSeverityHigh, flagged.Severity)
	require.Len(t, flagged.Reasons, 2)
	assert.Contains(t, flagged.Reasons[0], "Low Mastery (35%)")
	assert.Contains(t, flagged.Reasons[1], "Negative Learning Velocity")
}

func TestGetAtRiskStudents_MediumSeverityWithOneReason(t *testing.T) {
	repo := newMemSnapshotRepo()
	// Improving but still below the mastery threshold.
	addSnapshots(t, repo, "student-1", []float64{20, 35}, []int{10, 0})

	handler := NewGetAtRiskStudentsHandler(repo)
	result, err := handler.Handle(context.Background(), GetAtRiskStudentsQuery{
		StudentIDs: []string{"student-1"},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)

	assert.Equal(t, RiskSeverityMedium, result[0].Severity)
	assert.Len(t, result[0].Reasons, 1)
}

func TestGetAtRiskStudents_HealthyStudentOmitted(t *testing.T) {
	repo := newMemSnapshotRepo()
	addSnapshots(t, repo, "student-1", []float64{60, 80}, []int{10, 0})

	handler := NewGetAtRiskStudentsHandler(repo)
	result, err := handler.Handle(context.Background(), GetAtRiskStudentsQuery{
		StudentIDs: []string{"student-1"},
	})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestGetAtRiskStudents_NoSnapshotsCountsAsZeroMastery(t *testing.T) {
	repo := newMemSnapshotRepo()

	handler := NewGetAtRiskStudentsHandler(repo)
	result, err := handler.Handle(context.Background(), GetAtRiskStudentsQuery{
		StudentIDs: []string{"student-ghost"},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)

	flagged := result[0]
	assert.Equal(t, RiskSeverityMedium, flagged.Severity)
	assert.Contains(t, flagged.Reasons[0], "Low Mastery (0%)")
	assert.Nil(t, flagged.Velocity.Velocity)
	assert.Equal(t, string(mastery.CategoryUnknown), flagged.Velocity.Category)
}

func TestGetAtRiskStudents_FailingStudentIsSkipped(t *testing.T) {
	repo := newMemSnapshotRepo()
	addSnapshots(t, repo, "student-1", []float64{55, 35}, []int{10, 0})
	repo.failFor["student-broken"] = errRepoDown

	handler := NewGetAtRiskStudentsHandler(repo)
	result, err := handler.Handle(context.Background(), GetAtRiskStudentsQuery{
		StudentIDs: []string{"student-broken", "student-1"},
	})
	require.NoError(t, err)

	// The unreadable student is dropped; the rest of the roster is
	// still classified.
	require.Len(t, result, 1)
	assert.Equal(t, "student-1", result[0].StudentID)
}

func TestGetAtRiskStudents_RequiresRoster(t *testing.T) {
	handler := NewGetAtRiskStudentsHandler(newMemSnapshotRepo())
	_, err := handler.Handle(context.Background(), GetAtRiskStudentsQuery{})
	assert.Error(t, err)
}
