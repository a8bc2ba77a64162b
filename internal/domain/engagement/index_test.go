package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIndex_FullyEngaged(t *testing.T) {
	index := ComputeIndex(Metrics{
		IdleTimeSeconds:   0,
		Interactions:      50,
		PollParticipation: 1,
		TabFocusPercent:   100,
	})

	assert.InDelta(t, 1.0, index, 1e-9)
}

func TestComputeIndex_FullyDisengaged(t *testing.T) {
	// Idle at saturation, no interactions, no poll responses, tab never
	// focused. Only the neutral poll weight remains: 0.2 * 0.5 = 0.1.
	index := ComputeIndex(Metrics{
		IdleTimeSeconds:   300,
		Interactions:      0,
		PollParticipation: 0,
		TabFocusPercent:   0,
	})

	assert.InDelta(t, 0.1, index, 1e-9)
}

func TestComputeIndex_Components(t *testing.T) {
	tests := []struct {
		name    string
		metrics Metrics
		want    float64
	}{
		{
			name:    "half idle decay",
			metrics: Metrics{IdleTimeSeconds: 150, Interactions: 0, PollParticipation: 0, TabFocusPercent: 0},
			want:    0.3*0.5 + 0.2*0.5,
		},
		{
			name:    "interaction cap at fifty",
			metrics: Metrics{IdleTimeSeconds: 300, Interactions: 500, PollParticipation: 0, TabFocusPercent: 0},
			want:    0.3 + 0.2*0.5,
		},
		{
			name:    "poll participation is binary",
			metrics: Metrics{IdleTimeSeconds: 300, Interactions: 0, PollParticipation: 7, TabFocusPercent: 0},
			want:    0.2,
		},
		{
			name:    "focus only",
			metrics: Metrics{IdleTimeSeconds: 300, Interactions: 0, PollParticipation: 0, TabFocusPercent: 60},
			want:    0.2*0.5 + 0.2*0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ComputeIndex(tt.metrics), 1e-9)
		})
	}
}

func TestComputeIndex_ClampedToUnitInterval(t *testing.T) {
	extremes := []Metrics{
		{IdleTimeSeconds: -500, Interactions: 10000, PollParticipation: 99, TabFocusPercent: 400},
		{IdleTimeSeconds: 1e9, Interactions: -5, PollParticipation: -1, TabFocusPercent: -50},
	}

	for _, m := range extremes {
		index := ComputeIndex(m)
		assert.GreaterOrEqual(t, index, 0.0)
		assert.LessOrEqual(t, index, 1.0)
	}
}

func TestNewSample_ClampsMetrics(t *testing.T) {
	sample, err := NewSample("sample-1", "student-1", "class-1", Metrics{
		IdleTimeSeconds:   -10,
		Interactions:      -3,
		PollParticipation: -1,
		TabFocusPercent:   150,
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0.0, sample.Metrics.IdleTimeSeconds)
	assert.Equal(t, 0, sample.Metrics.Interactions)
	assert.Equal(t, 0, sample.Metrics.PollParticipation)
	assert.Equal(t, 100.0, sample.Metrics.TabFocusPercent)
}

func TestNewSample_Validation(t *testing.T) {
	_, err := NewSample("", "student-1", "class-1", Metrics{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidSampleID)

	_, err = NewSample("sample-1", "", "class-1", Metrics{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidStudentID)

	_, err = NewSample("sample-1", "student-1", "", Metrics{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidClassID)
}

func TestSample_IsDisengaged(t *testing.T) {
	engaged, err := NewSample("s1", "student-1", "class-1", Metrics{
		Interactions: 50, PollParticipation: 1, TabFocusPercent: 100,
	}, time.Now())
	require.NoError(t, err)
	assert.False(t, engaged.IsDisengaged())

	idle, err := NewSample("s2", "student-1", "class-1", Metrics{
		IdleTimeSeconds: 300,
	}, time.Now())
	require.NoError(t, err)
	assert.True(t, idle.IsDisengaged())
}

func TestAverageIndex(t *testing.T) {
	assert.Equal(t, 0.0, AverageIndex(nil))

	samples := []*Sample{
		{Index: 0.2},
		{Index: 0.8},
	}
	assert.InDelta(t, 0.5, AverageIndex(samples), 1e-9)
}
