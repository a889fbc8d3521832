package app

import "context"

// Worker 将后台组件适配为 Server，例如消息消费者与定时调度器.
type Worker struct {
	name  string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

// NewWorker 创建 Worker，stop 可以为 nil.
func NewWorker(name string, start, stop func(ctx context.Context) error) *Worker {
	return &Worker{name: name, start: start, stop: stop}
}

func (w *Worker) Start(ctx context.Context) error { return w.start(ctx) }

func (w *Worker) Stop(ctx context.Context) error {
	if w.stop == nil {
		return nil
	}
	return w.stop(ctx)
}

func (w *Worker) Name() string { return w.name }

// Addr Worker 不监听端口.
func (w *Worker) Addr() string { return "" }
