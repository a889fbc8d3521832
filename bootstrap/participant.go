package bootstrap

import (
	"context"
	"slices"

	"github.com/Tsukikage7/saga-orchestrator/app"
	"github.com/Tsukikage7/saga-orchestrator/config"
	"github.com/Tsukikage7/saga-orchestrator/idempotency"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
	"github.com/Tsukikage7/saga-orchestrator/participant"
	"github.com/Tsukikage7/saga-orchestrator/participant/inventory"
	"github.com/Tsukikage7/saga-orchestrator/participant/order"
	"github.com/Tsukikage7/saga-orchestrator/participant/payment"
	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// runs 报告本进程是否运行该参与方.
func (r *Runtime) runs(service string) bool {
	return slices.Contains(r.cfg.Participant.Services, service)
}

func (r *Runtime) buildParticipants() error {
	dedupe, err := r.idempotencyStore()
	if err != nil {
		return err
	}
	producer, err := r.broker.Producer()
	if err != nil {
		return err
	}

	services := map[string]func() (string, func(*participant.Dispatcher)){
		config.ServicePayment:   r.paymentService,
		config.ServiceInventory: r.inventoryService,
		config.ServiceOrder:     r.orderService,
	}
	for _, name := range r.cfg.Participant.Services {
		group, register := services[name]()
		if err := r.serve(group, producer, dedupe, register); err != nil {
			return err
		}
	}
	return nil
}

// serve 为参与方创建分发器，并在启动前订阅命令主题.
func (r *Runtime) serve(group string, producer messaging.Producer, dedupe idempotency.Store, register func(*participant.Dispatcher)) error {
	opts := []participant.Option{participant.WithLogger(r.log)}
	if dedupe != nil {
		idem := r.cfg.Participant.Idempotency
		opts = append(opts, participant.WithIdempotency(dedupe, idem.ClaimTTL, idem.ResultTTL))
	}
	d, err := participant.NewDispatcher(group, producer, opts...)
	if err != nil {
		return err
	}
	register(d)

	consumer, err := r.broker.Consumer(group)
	if err != nil {
		return err
	}
	r.beforeStart(func(ctx context.Context) error {
		return consumer.Consume(ctx, []string{saga.TopicCommands}, d.Handle)
	})
	return nil
}

func (r *Runtime) idempotencyStore() (idempotency.Store, error) {
	switch r.cfg.Participant.Idempotency.Store {
	case config.StoreRedis:
		client := newRedisClient(r.cfg.Redis)
		r.onClose("idempotency", app.PriorityStore, func(context.Context) error { return client.Close() })
		return idempotency.NewRedisStore(client, idempotency.WithKeyPrefix(r.cfg.App.Name+":idempotency:"))
	case config.StoreMemory:
		store := idempotency.NewMemoryStore()
		r.onClose("idempotency", app.PriorityStore, func(context.Context) error { return store.Close() })
		return store, nil
	default:
		return nil, nil
	}
}

func (r *Runtime) paymentService() (string, func(*participant.Dispatcher)) {
	gateway := &payment.SimulatedGateway{MaxAmount: r.cfg.Participant.PaymentMaxAmount}
	svc := payment.NewService(r.sharedPayments(), gateway, payment.WithLogger(r.log))
	return saga.GroupPayment, svc.Register
}

func (r *Runtime) inventoryService() (string, func(*participant.Dispatcher)) {
	var store inventory.Store = inventory.NewMemoryStore()
	if r.cfg.Participant.Store == config.StoreGorm {
		gs := inventory.NewGormStore(r.db.Gorm())
		if r.cfg.Database.AutoMigrate {
			r.beforeStart(gs.Migrate)
		}
		store = gs
	}

	svc := inventory.NewService(store, inventory.WithLogger(r.log))
	if r.cfg.Participant.SeedInventory {
		r.beforeStart(svc.SeedSampleProducts)
	}
	return saga.GroupInventory, svc.Register
}

func (r *Runtime) orderService() (string, func(*participant.Dispatcher)) {
	var store order.Store = order.NewMemoryStore()
	if r.cfg.Participant.Store == config.StoreGorm {
		gs := order.NewGormStore(r.db.Gorm())
		if r.cfg.Database.AutoMigrate {
			r.beforeStart(gs.Migrate)
		}
		store = gs
	}
	return saga.GroupOrder, order.NewService(store, r.log).Register
}
