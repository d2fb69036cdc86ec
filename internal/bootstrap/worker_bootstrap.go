package bootstrap

import (
	"context"
	"sync"
	"time"

	"apptrack_worker/adapter/in/worker"
	"apptrack_worker/config"
	"apptrack_worker/internal/stream"
)

// Worker runs the analysis pipeline against the inbound Redis stream.
type Worker struct {
	deps     *Dependencies
	pool     *worker.Pool
	consumer *stream.Consumer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker builds the worker entry point: dependency graph, worker pool and
// stream consumer. Redis is required here; a worker without a stream to
// consume has nothing to do.
func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg, "apptrack-worker")
	if err != nil {
		return nil, nil, err
	}

	handler := worker.NewHandler(deps.Orchestrator, deps.Log)
	pool := worker.NewPool(handler, &worker.PoolConfig{
		Workers:        cfg.WorkerCount,
		QueueSize:      1000,
		JobTimeout:     cfg.WorkerJobTimeout(),
		BatchSize:      cfg.WorkerBatchSize,
		WorkerChanSize: 100,
		MaxRetries:     3,
		RatePerSecond:  100,
		JobTimeoutByType: map[worker.JobType]time.Duration{
			worker.JobAnalyzeReply: cfg.WorkerJobTimeout(),
		},
	}, deps.Log)

	var consumer *stream.Consumer
	if deps.Stream != nil {
		consumerConfig := stream.DefaultConsumerConfig()
		consumerConfig.BatchSize = cfg.ConsumerBatchSize
		consumerConfig.Block = time.Duration(cfg.ConsumerBlockMS) * time.Millisecond
		consumer = stream.NewConsumer(deps.Stream, pool, cfg.WorkerID, consumerConfig, deps.Log)
	} else {
		deps.Log.Warn().Msg("no stream configured, worker will only serve in-process jobs")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		deps:     deps,
		pool:     pool,
		consumer: consumer,
		ctx:      ctx,
		cancel:   cancel,
	}, cleanup, nil
}

// Start runs the pool and the stream consumer and blocks until Stop is
// called.
func (w *Worker) Start() {
	w.pool.Start()

	if w.consumer != nil {
		w.consumer.Start(w.ctx)
	}

	w.deps.Log.Info().
		Int("workers", w.deps.Config.WorkerCount).
		Str("worker_id", w.deps.Config.WorkerID).
		Msg("worker started")

	<-w.ctx.Done()
}

// Stop cancels the consume loops and drains the pool.
func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
	w.wg.Wait()
	w.deps.Log.Info().Msg("worker stopped")
}
