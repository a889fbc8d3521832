package bootstrap

import (
	"context"

	"github.com/Tsukikage7/saga-orchestrator/app"
	"github.com/Tsukikage7/saga-orchestrator/config"
	"github.com/Tsukikage7/saga-orchestrator/lock"
	"github.com/Tsukikage7/saga-orchestrator/participant/payment"
	"github.com/Tsukikage7/saga-orchestrator/saga"
	"github.com/Tsukikage7/saga-orchestrator/scheduler"
)

func (r *Runtime) buildOrchestrator() error {
	store, err := r.sagaStore()
	if err != nil {
		return err
	}
	producer, err := r.broker.Producer()
	if err != nil {
		return err
	}

	opts := []saga.Option{
		saga.WithLogger(r.log),
		saga.WithMetrics(r.metrics),
	}
	if r.cfg.Saga.PublishAttempts > 0 {
		opts = append(opts, saga.WithPublishRetry(r.cfg.Saga.PublishAttempts, r.cfg.Saga.PublishRetryDelay))
	}
	var redisLock *lock.Redis
	if r.cfg.Saga.Lock == config.LockRedis {
		redisLock, err = lock.NewRedis(r.cache, lock.WithKeyPrefix("saga:lock:"), lock.WithTTL(r.cfg.Saga.LockTTL))
		if err != nil {
			return err
		}
		opts = append(opts, saga.WithLocker(redisLock))
	}
	// 支付记录对编排器可见时才能补录已确认的扣款
	if payments := r.sharedPayments(); payments != nil {
		opts = append(opts, saga.WithSideEffectRecorder(saga.StepProcessPayment, payment.NewRecorder(payments)))
	}

	orch, err := saga.NewOrchestrator(store, producer, opts...)
	if err != nil {
		return err
	}
	r.orch = orch

	consumer, err := r.broker.Consumer(saga.GroupOrchestrator)
	if err != nil {
		return err
	}
	r.beforeStart(func(ctx context.Context) error {
		return consumer.Consume(ctx, []string{saga.TopicReplies}, orch.HandleReply)
	})

	if r.cfg.Scheduler.Enabled {
		return r.buildScheduler(redisLock)
	}
	return nil
}

func (r *Runtime) sagaStore() (saga.Store, error) {
	switch r.cfg.Saga.Store {
	case config.StoreGorm:
		store := saga.NewGormStore(r.db.Gorm())
		if r.cfg.Database.AutoMigrate {
			r.beforeStart(store.Migrate)
		}
		return store, nil
	case config.StoreMongo:
		store := saga.NewMongoStore(r.mongo.SagaCollection())
		r.beforeStart(store.EnsureIndexes)
		return store, nil
	default:
		return saga.NewMemoryStore(), nil
	}
}

// sharedPayments 返回编排器与支付参与方共同可见的支付存储.
//
// 内存存储只在同一进程内共享，gorm 存储跨进程共享.
func (r *Runtime) sharedPayments() payment.Store {
	if r.payments != nil {
		return r.payments
	}
	p := r.cfg.Participant
	switch {
	case p.Store == config.StoreGorm:
		r.payments = r.paymentGormStore()
	case r.Has(RoleParticipant) && r.runs(config.ServicePayment):
		r.payments = payment.NewMemoryStore()
	}
	return r.payments
}

func (r *Runtime) paymentGormStore() payment.Store {
	store := payment.NewGormStore(r.db.Gorm())
	if r.cfg.Database.AutoMigrate {
		r.beforeStart(store.Migrate)
	}
	return store
}

// buildScheduler 注册超时步骤清扫与补偿恢复任务.
//
// 配置了 Redis 锁时任务按分布式互斥执行，多副本中同一时刻只有一个实例运行.
func (r *Runtime) buildScheduler(redisLock *lock.Redis) error {
	opts := []scheduler.Option{
		scheduler.WithLogger(r.log),
		scheduler.WithMetrics(r.metrics),
	}
	if redisLock != nil {
		opts = append(opts, scheduler.WithLocker(redisLock))
	}
	sched, err := scheduler.New(opts...)
	if err != nil {
		return err
	}

	sc := r.cfg.Scheduler
	jobs := []*scheduler.JobBuilder{
		scheduler.SweepStuckStepsJob(r.orch, sc.SweepSchedule, sc.StepTimeout, r.log),
		scheduler.RecoverCompensationsJob(r.orch, sc.RecoverSchedule, sc.RecoverGrace, r.log),
	}
	for _, b := range jobs {
		if redisLock != nil {
			b = b.Distributed()
		}
		job, err := b.Build()
		if err != nil {
			return err
		}
		if err := sched.Add(job); err != nil {
			return err
		}
	}

	r.app.Use(app.NewWorker("scheduler",
		func(context.Context) error { return sched.Start() },
		sched.Shutdown,
	))
	return nil
}
