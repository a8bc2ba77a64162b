package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name    string
	runs    atomic.Int64
	release chan struct{}
	err     error
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job for tests" }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.release != nil {
		select {
		case <-j.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	cfg := DefaultSchedulerConfig()
	cfg.MaxHistorySize = 10
	return NewScheduler(cfg)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Register(nil, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrNilJob)

	err = s.Register(&stubJob{name: "sweep"}, nil)
	assert.ErrorIs(t, err, ErrNilSchedule)

	require.NoError(t, s.Register(&stubJob{name: "sweep"}, NewIntervalSchedule(time.Minute)))
	err = s.Register(&stubJob{name: "sweep"}, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestUnregister(t *testing.T) {
	s := newTestScheduler(t)

	assert.ErrorIs(t, s.Unregister("missing"), ErrJobNotFound)

	require.NoError(t, s.Register(&stubJob{name: "sweep"}, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.Unregister("sweep"))
	assert.Empty(t, s.ListJobs())
}

func TestEnableDisableJob(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.Register(&stubJob{name: "sweep"}, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.DisableJob("sweep"))
	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Enabled)

	require.NoError(t, s.EnableJob("sweep"))
	jobs = s.ListJobs()
	assert.True(t, jobs[0].Enabled)

	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestStartStopLifecycle(t *testing.T) {
	s := newTestScheduler(t)

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestDueJobRunsOnce(t *testing.T) {
	s := newTestScheduler(t)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	job := &stubJob{name: "sweep"}
	// A negative interval keeps the job permanently due.
	require.NoError(t, s.Register(job, NewIntervalSchedule(-time.Second)))

	s.checkAndRunJobs()
	s.wg.Wait()

	assert.Equal(t, int64(1), job.runs.Load())

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].RunCount)
	assert.Equal(t, int64(0), jobs[0].FailCount)
	require.NotNil(t, jobs[0].LastResult)
	assert.True(t, jobs[0].LastResult.Success)
}

func TestInFlightJobIsNotRelaunched(t *testing.T) {
	s := newTestScheduler(t)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	job := &stubJob{name: "slow-sweep", release: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(-time.Second)))

	s.checkAndRunJobs()

	// The first run is still blocked. Further ticks must skip the job.
	for i := 0; i < 5; i++ {
		s.checkAndRunJobs()
	}
	assert.Equal(t, int64(1), job.runs.Load())

	close(job.release)
	s.wg.Wait()

	// Once finished it becomes eligible again.
	s.checkAndRunJobs()
	s.wg.Wait()
	assert.Equal(t, int64(2), job.runs.Load())
}

func TestFailedJobRecorded(t *testing.T) {
	s := newTestScheduler(t)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	job := &stubJob{name: "sweep", err: errors.New("db down")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(-time.Second)))

	s.checkAndRunJobs()
	s.wg.Wait()

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	require.NotNil(t, jobs[0].LastResult)
	assert.False(t, jobs[0].LastResult.Success)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.Equal(t, 0.0, snap.SuccessRate)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	job := &stubJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "sweep", result.JobName)
	assert.Equal(t, int64(1), job.runs.Load())
}

func TestGetHistoryBounded(t *testing.T) {
	s := newTestScheduler(t)
	job := &stubJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 15; i++ {
		_, err := s.RunNow(context.Background(), "sweep")
		require.NoError(t, err)
	}

	// MaxHistorySize is 10 in the test config.
	assert.Len(t, s.GetHistory(0), 10)
	assert.Len(t, s.GetHistory(3), 3)
}

func TestIntervalSchedule(t *testing.T) {
	sched := NewIntervalSchedule(15 * time.Minute)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(15*time.Minute), sched.Next(base))
	assert.Equal(t, "@every 15m0s", sched.String())
}

func TestCronExpressionNext(t *testing.T) {
	ce, err := ParseCronExpression(Every15Minutes)
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 10, 7, 30, 0, time.UTC)
	next := ce.Next(base)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC), next)

	// At an exact boundary the next match is the following slot.
	boundary := time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC), ce.Next(boundary))
}

func TestCronExpressionParseErrors(t *testing.T) {
	cases := []string{
		"* * * *",        // too few fields
		"61 * * * *",     // minute out of range
		"* 25 * * *",     // hour out of range
		"*/x * * * *",    // bad step
		"* * * * monday", // non-numeric
	}
	for _, expr := range cases {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q should not parse", expr)
	}
}

func TestCronExpressionImplementsSchedule(t *testing.T) {
	var _ Schedule = MustParseCronExpression(EveryHour)
}
