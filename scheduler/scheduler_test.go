package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	unlocked []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) TryLock(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.unlocked = append(l.unlocked, key)
	return nil
}

type SchedulerTestSuite struct {
	suite.Suite
	locker *fakeLocker
	sched  Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	s.locker = newFakeLocker()
	s.sched = MustNew(WithLocker(s.locker), WithDefaultTimeout(time.Second))
}

func (s *SchedulerTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.NoError(s.sched.Shutdown(ctx))
}

func (s *SchedulerTestSuite) add(b *JobBuilder) *Job {
	job := b.MustBuild()
	s.Require().NoError(s.sched.Add(job))
	return job
}

func (s *SchedulerTestSuite) TestAdd() {
	noop := func(context.Context) error { return nil }
	job := s.add(NewJob("a").Schedule("@every 1h").Handler(noop))
	s.Equal(time.Second, job.Timeout)

	s.ErrorIs(s.sched.Add(NewJob("a").Schedule("@every 1h").Handler(noop).MustBuild()), ErrJobExists)

	got, ok := s.sched.Get("a")
	s.True(ok)
	s.Same(job, got)
	s.Len(s.sched.List(), 1)

	s.Require().NoError(s.sched.Remove("a"))
	s.ErrorIs(s.sched.Remove("a"), ErrJobNotFound)
}

func (s *SchedulerTestSuite) TestInvalidScheduleRejectedOnStart() {
	s.add(NewJob("bad").Schedule("not a cron").Handler(func(context.Context) error { return nil }))
	s.ErrorIs(s.sched.Start(), ErrScheduleInvalid)
	s.False(s.sched.Running())
}

func (s *SchedulerTestSuite) TestTriggerRetriesUntilSuccess() {
	var calls atomic.Int32
	job := s.add(NewJob("flaky").
		Schedule("@every 1h").
		Retry(2, time.Millisecond).
		Handler(func(context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("not yet")
			}
			return nil
		}))

	s.Require().NoError(s.sched.Trigger("flaky"))
	s.Eventually(func() bool { return job.Stats().SuccessCount == 1 }, time.Second, 5*time.Millisecond)
	s.EqualValues(3, calls.Load())
	s.NoError(job.Stats().LastError)
}

func (s *SchedulerTestSuite) TestTriggerRecordsFailure() {
	boom := errors.New("boom")
	var failed atomic.Pointer[Run]
	s.sched = MustNew(WithOnError(func(_ context.Context, run *Run) { failed.Store(run) }))

	job := s.add(NewJob("broken").
		Schedule("@every 1h").
		Retry(1, 0).
		Handler(func(context.Context) error { return boom }))

	s.Require().NoError(s.sched.Trigger("broken"))
	s.Eventually(func() bool { return failed.Load() != nil }, time.Second, 5*time.Millisecond)

	run := failed.Load()
	s.ErrorIs(run.Error, boom)
	s.EqualValues(2, run.Attempts)
	stats := job.Stats()
	s.EqualValues(1, stats.FailCount)
	s.ErrorIs(stats.LastError, boom)
	s.EqualValues(1, stats.ConsecutiveFails)
}

func (s *SchedulerTestSuite) TestSingletonSkipsOverlappingRun() {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	job := s.add(NewJob("slow").
		Schedule("@every 1h").
		Singleton().
		Handler(func(context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		}))

	s.Require().NoError(s.sched.Trigger("slow"))
	<-started
	s.True(job.IsRunning())

	s.Require().NoError(s.sched.Trigger("slow"))
	s.Eventually(func() bool { return job.Stats().SkipCount == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	s.Eventually(func() bool { return !job.IsRunning() }, time.Second, 5*time.Millisecond)
	s.EqualValues(1, job.Stats().RunCount)
}

func (s *SchedulerTestSuite) TestDistributedSkipsWhenLockHeld() {
	var ran atomic.Bool
	job := s.add(NewJob("dist").
		Schedule("@every 1h").
		Distributed().
		Handler(func(context.Context) error {
			ran.Store(true)
			return nil
		}))

	s.locker.held["scheduler:dist"] = true
	s.Require().NoError(s.sched.Trigger("dist"))
	s.Eventually(func() bool { return job.Stats().SkipCount == 1 }, time.Second, 5*time.Millisecond)
	s.False(ran.Load())

	s.Require().NoError(s.locker.Unlock(context.Background(), "scheduler:dist"))
	s.Require().NoError(s.sched.Trigger("dist"))
	s.Eventually(func() bool { return job.Stats().SuccessCount == 1 }, time.Second, 5*time.Millisecond)
	s.True(ran.Load())
}

func (s *SchedulerTestSuite) TestScheduledRun() {
	var calls atomic.Int32
	s.add(NewJob("tick").
		Schedule("* * * * * *").
		Handler(func(context.Context) error {
			calls.Add(1)
			return nil
		}))

	s.Require().NoError(s.sched.Start())
	s.True(s.sched.Running())
	s.Eventually(func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func (s *SchedulerTestSuite) TestClosed() {
	s.Require().NoError(s.sched.Shutdown(context.Background()))

	noop := func(context.Context) error { return nil }
	s.ErrorIs(s.sched.Add(NewJob("late").Schedule("@every 1h").Handler(noop).MustBuild()), ErrSchedulerClosed)
	s.ErrorIs(s.sched.Trigger("late"), ErrSchedulerClosed)
	s.ErrorIs(s.sched.Start(), ErrSchedulerClosed)
}

func TestAdd_DistributedRequiresLocker(t *testing.T) {
	sched := MustNew()
	job := NewJob("dist").Schedule("@every 1h").Distributed().
		Handler(func(context.Context) error { return nil }).MustBuild()
	assert.ErrorIs(t, sched.Add(job), ErrLockerRequired)
}

func TestJobBuilder_Validation(t *testing.T) {
	noop := func(context.Context) error { return nil }
	tests := []struct {
		name    string
		builder *JobBuilder
		wantErr error
	}{
		{"缺少名称", NewJob("").Schedule("@every 1m").Handler(noop), ErrJobNameEmpty},
		{"缺少表达式", NewJob("a").Handler(noop), ErrScheduleEmpty},
		{"缺少处理函数", NewJob("a").Schedule("@every 1m"), ErrHandlerNil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Panics(t, func() { tt.builder.MustBuild() })
		})
	}
}

type fakeMaintainer struct {
	sweepTimeout time.Duration
	grace        time.Duration
	err          error
}

func (m *fakeMaintainer) SweepStuckSteps(_ context.Context, timeout time.Duration) (int, error) {
	m.sweepTimeout = timeout
	return 2, m.err
}

func (m *fakeMaintainer) RecoverCompensations(_ context.Context, grace time.Duration) (int, error) {
	m.grace = grace
	return 1, m.err
}

func TestSagaJobs(t *testing.T) {
	m := &fakeMaintainer{}

	sweep := SweepStuckStepsJob(m, "@every 30s", 5*time.Minute, nil).MustBuild()
	assert.Equal(t, JobSweepStuckSteps, sweep.Name)
	assert.True(t, sweep.Singleton)
	require.NoError(t, sweep.Handler(context.Background()))
	assert.Equal(t, 5*time.Minute, m.sweepTimeout)

	recoverJob := RecoverCompensationsJob(m, "@every 1m", time.Minute, nil).MustBuild()
	assert.Equal(t, JobRecoverCompensations, recoverJob.Name)
	require.NoError(t, recoverJob.Handler(context.Background()))
	assert.Equal(t, time.Minute, m.grace)

	m.err = errors.New("store down")
	assert.ErrorIs(t, sweep.Handler(context.Background()), m.err)
}
