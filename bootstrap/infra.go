package bootstrap

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/Tsukikage7/saga-orchestrator/app"
	"github.com/Tsukikage7/saga-orchestrator/cache"
	"github.com/Tsukikage7/saga-orchestrator/database"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
	"github.com/Tsukikage7/saga-orchestrator/storage/mongodb"
	"github.com/Tsukikage7/saga-orchestrator/tracing"
	"github.com/Tsukikage7/saga-orchestrator/transport/health"
)

func (r *Runtime) openTelemetry() error {
	collector, err := metrics.NewMetrics(&r.cfg.Metrics)
	if err != nil {
		return err
	}
	r.metrics = collector

	if !r.cfg.Tracing.Enabled {
		return nil
	}
	tp, err := tracing.NewTracer(&r.cfg.Tracing, r.cfg.App.Name, r.cfg.App.Version)
	if err != nil {
		return err
	}
	r.onClose("tracer", app.PriorityTelemetry, tp.Shutdown)
	return nil
}

func (r *Runtime) openBroker() error {
	opts := []messaging.ClientOption{
		messaging.WithLogger(r.log),
		messaging.WithMetrics(r.metrics),
	}
	if r.cfg.Tracing.Enabled {
		opts = append(opts, messaging.WithTracing(r.cfg.App.Name))
	}

	client, err := messaging.NewClient(&r.cfg.Messaging, opts...)
	if err != nil {
		return err
	}
	r.broker = client
	r.onClose("broker", app.PriorityBroker, client.Shutdown)
	r.addChecker(health.NewPingChecker("broker", health.KindBroker, health.PingerFunc(client.HealthCheck)))
	return nil
}

// openStores 只连接配置中出现的存储段.
func (r *Runtime) openStores(ctx context.Context) error {
	if cfg := r.cfg.Database; cfg != nil {
		db, err := database.Open(cfg, r.log)
		if err != nil {
			return err
		}
		r.db = db
		r.onClose("database", app.PriorityStore, func(context.Context) error { return db.Close() })
		r.addChecker(health.NewPingChecker("database", health.KindDatabase, db))
	}

	if cfg := r.cfg.Mongo; cfg != nil {
		client, err := mongodb.Connect(ctx, cfg, r.log)
		if err != nil {
			return err
		}
		r.mongo = client
		r.onClose("mongodb", app.PriorityStore, client.Close)
		r.addChecker(health.NewPingChecker("mongodb", health.KindMongo, client))
	}

	if cfg := r.cfg.Redis; cfg != nil {
		c, err := cache.New(cfg, r.log)
		if err != nil {
			return err
		}
		r.cache = c
		r.onClose("redis", app.PriorityStore, func(context.Context) error { return c.Close() })
		r.addChecker(health.NewPingChecker("redis", health.KindRedis, c))
	}
	return nil
}

// newRedisClient 为去重存储创建 go-redis v9 客户端，连接参数与缓存共用 redis 配置段.
func newRedisClient(cfg *cache.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	})
}
