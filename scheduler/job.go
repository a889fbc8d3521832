package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// JobFunc 任务体.
type JobFunc func(ctx context.Context) error

// Job 定时任务，通过 NewJob 构建.
type Job struct {
	Name     string // 调度器内唯一
	Schedule string // 支持秒字段的 cron 表达式或 @every
	Handler  JobFunc
	Timeout  time.Duration // 0 时使用调度器默认超时

	// Singleton 上一轮未结束时跳过本轮.
	Singleton bool
	// Distributed 多个编排器实例之间只有抢到锁的实例执行.
	Distributed bool

	RetryCount    uint
	RetryInterval time.Duration

	entryID int
	running atomic.Bool

	mu    sync.Mutex
	stats JobStats
}

// Run 一轮执行的信息，传给 WithOnError 与 WithOnSkip 回调.
type Run struct {
	Job        *Job
	StartTime  time.Time
	Attempts   uint
	Duration   time.Duration
	Error      error
	SkipReason string
}

// JobStats 任务累计统计.
type JobStats struct {
	RunCount     int64
	SuccessCount int64
	FailCount    int64
	SkipCount    int64
	// ConsecutiveFails 最近连续失败的轮数，成功后归零.
	ConsecutiveFails int64

	LastRunAt     time.Time
	LastSuccessAt time.Time
	LastDuration  time.Duration
	LastError     error
}

// Validate 检查名称、表达式与任务体.
func (j *Job) Validate() error {
	switch {
	case j.Name == "":
		return ErrJobNameEmpty
	case j.Schedule == "":
		return ErrScheduleEmpty
	case j.Handler == nil:
		return ErrHandlerNil
	}
	return nil
}

// IsRunning 报告任务当前是否在执行.
func (j *Job) IsRunning() bool { return j.running.Load() }

// Stats 返回统计快照.
func (j *Job) Stats() JobStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *Job) recordRun(run *Run) {
	j.mu.Lock()
	defer j.mu.Unlock()

	st := &j.stats
	st.RunCount++
	st.LastRunAt = run.StartTime
	st.LastDuration = run.Duration
	st.LastError = run.Error
	if run.Error != nil {
		st.FailCount++
		st.ConsecutiveFails++
		return
	}
	st.SuccessCount++
	st.ConsecutiveFails = 0
	st.LastSuccessAt = run.StartTime.Add(run.Duration)
}

func (j *Job) recordSkip() {
	j.mu.Lock()
	j.stats.SkipCount++
	j.mu.Unlock()
}

// JobBuilder 链式构建 Job.
type JobBuilder struct {
	job *Job
}

// NewJob 开始构建名为 name 的任务.
func NewJob(name string) *JobBuilder {
	return &JobBuilder{job: &Job{Name: name}}
}

func (b *JobBuilder) Schedule(expr string) *JobBuilder {
	b.job.Schedule = expr
	return b
}

func (b *JobBuilder) Handler(fn JobFunc) *JobBuilder {
	b.job.Handler = fn
	return b
}

func (b *JobBuilder) Timeout(d time.Duration) *JobBuilder {
	b.job.Timeout = d
	return b
}

func (b *JobBuilder) Singleton() *JobBuilder {
	b.job.Singleton = true
	return b
}

// Distributed 需要调度器配置 WithLocker，否则 Add 返回 ErrLockerRequired.
func (b *JobBuilder) Distributed() *JobBuilder {
	b.job.Distributed = true
	return b
}

// Retry 失败后以固定间隔再试 count 次.
func (b *JobBuilder) Retry(count uint, interval time.Duration) *JobBuilder {
	b.job.RetryCount, b.job.RetryInterval = count, interval
	return b
}

func (b *JobBuilder) Build() (*Job, error) {
	if err := b.job.Validate(); err != nil {
		return nil, err
	}
	return b.job, nil
}

func (b *JobBuilder) MustBuild() *Job {
	job, err := b.Build()
	if err != nil {
		panic(err)
	}
	return job
}
