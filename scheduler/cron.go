package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/robfig/cron/v3"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// cronScheduler 基于 robfig/cron 的调度器.
type cronScheduler struct {
	cron *cron.Cron
	opts *options

	mu      sync.RWMutex
	jobs    map[string]*Job
	running bool
	closed  bool

	// ctx 为任务执行的根上下文，关闭超时后取消
	ctx    context.Context
	cancel context.CancelFunc
	// triggered 跟踪 Trigger 启动的执行，cron 调度的执行由 cron.Stop 跟踪
	triggered sync.WaitGroup
}

func newCronScheduler(opts ...Option) (*cronScheduler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var cronOpts []cron.Option
	if o.withSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}
	if o.location != nil {
		cronOpts = append(cronOpts, cron.WithLocation(o.location))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &cronScheduler{
		cron:   cron.New(cronOpts...),
		opts:   o,
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Add 添加任务，调度器运行中时立即生效.
func (s *cronScheduler) Add(job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if job.Distributed && s.opts.locker == nil {
		return ErrLockerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}
	if _, exists := s.jobs[job.Name]; exists {
		return ErrJobExists
	}
	if job.Timeout <= 0 {
		job.Timeout = s.opts.defaultTimeout
	}
	if s.running {
		if err := s.register(job); err != nil {
			return err
		}
	}

	s.jobs[job.Name] = job
	s.opts.logger.With(
		logger.String("job", job.Name),
		logger.String("schedule", job.Schedule),
		logger.Bool("singleton", job.Singleton),
		logger.Bool("distributed", job.Distributed),
	).Debug("[Scheduler] 任务已添加")
	return nil
}

// Remove 移除任务.
func (s *cronScheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return ErrJobNotFound
	}
	if job.entryID > 0 {
		s.cron.Remove(cron.EntryID(job.entryID))
	}
	delete(s.jobs, name)
	return nil
}

func (s *cronScheduler) Get(name string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[name]
	return job, ok
}

func (s *cronScheduler) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// Start 注册全部任务并开始调度.
func (s *cronScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}
	if s.running {
		return nil
	}
	for _, job := range s.jobs {
		if err := s.register(job); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true
	s.opts.logger.With(logger.Int("jobs", len(s.jobs))).Info("[Scheduler] 调度器已启动")
	return nil
}

// Shutdown 停止调度并等待执行中的任务，ctx 到期时取消任务上下文.
func (s *cronScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.running = false
	s.mu.Unlock()

	stopped := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.triggered.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.opts.logger.Info("[Scheduler] 调度器已关闭")
		return nil
	case <-ctx.Done():
		s.cancel()
		s.opts.logger.Warn("[Scheduler] 等待任务完成超时")
		return ctx.Err()
	}
}

func (s *cronScheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Trigger 立即在后台执行一次任务.
func (s *cronScheduler) Trigger(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSchedulerClosed
	}
	job, exists := s.jobs[name]
	if !exists {
		return ErrJobNotFound
	}

	s.triggered.Add(1)
	go func() {
		defer s.triggered.Done()
		s.execute(job)
	}()
	return nil
}

func (s *cronScheduler) register(job *Job) error {
	id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(job) })
	if err != nil {
		return ErrScheduleInvalid
	}
	job.entryID = int(id)
	return nil
}

// execute 执行一次任务: 单例检查、分布式锁、带重试执行.
func (s *cronScheduler) execute(job *Job) {
	ctx := s.ctx
	run := &Run{Job: job, StartTime: time.Now()}
	log := s.opts.logger.With(logger.String("job", job.Name))

	if job.Singleton {
		if !job.running.CompareAndSwap(false, true) {
			s.skip(ctx, log, run, "上一次执行尚未结束")
			return
		}
	} else {
		job.running.Store(true)
	}
	defer job.running.Store(false)

	if job.Distributed {
		key := s.opts.lockPrefix + job.Name
		acquired, err := s.opts.locker.TryLock(ctx, key)
		if err != nil {
			run.Error = err
			s.skip(ctx, log, run, "获取分布式锁失败")
			return
		}
		if !acquired {
			s.skip(ctx, log, run, "分布式锁由其他实例持有")
			return
		}
		defer func() {
			if err := s.opts.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				log.With(logger.Err(err)).Warn("[Scheduler] 释放分布式锁失败")
			}
		}()
	}

	err := retry.Do(
		func() error {
			run.Attempts++
			attemptCtx, cancel := context.WithTimeout(ctx, job.Timeout)
			defer cancel()
			return job.Handler(attemptCtx)
		},
		retry.Context(ctx),
		retry.Attempts(job.RetryCount+1),
		retry.Delay(job.RetryInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.With(logger.Int("attempt", int(n)+1), logger.Err(err)).Warn("[Scheduler] 任务执行失败，重试中")
		}),
	)
	run.Duration = time.Since(run.StartTime)
	run.Error = err
	job.recordRun(run)
	s.observe(job.Name, run)

	if err != nil {
		log.With(logger.Err(err), logger.Int("attempts", int(run.Attempts))).Error("[Scheduler] 任务执行失败")
		if s.opts.onError != nil {
			s.opts.onError(ctx, run)
		}
		return
	}
	log.With(logger.Duration("duration", run.Duration)).Debug("[Scheduler] 任务执行完成")
}

func (s *cronScheduler) skip(ctx context.Context, log logger.Logger, run *Run, reason string) {
	run.SkipReason = reason
	run.Job.recordSkip()
	if s.opts.metrics != nil {
		s.opts.metrics.Counter("scheduler_job_skipped_total", map[string]string{"job": run.Job.Name})
	}
	log.With(logger.String("reason", reason)).Debug("[Scheduler] 任务跳过")
	if s.opts.onSkip != nil {
		s.opts.onSkip(ctx, run)
	}
}

func (s *cronScheduler) observe(name string, run *Run) {
	if s.opts.metrics == nil {
		return
	}
	result := "success"
	if run.Error != nil {
		result = "failure"
	}
	s.opts.metrics.Counter("scheduler_job_runs_total", map[string]string{"job": name, "result": result})
	s.opts.metrics.Histogram("scheduler_job_duration_seconds", run.Duration.Seconds(), map[string]string{"job": name})
}
