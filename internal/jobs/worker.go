package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/pkg/config"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

const (
	// sweepBatch comprobantes por barrido (envíos huérfanos + consultas).
	sweepBatch = 100
	// scanBatch comprobantes en contingencia por barrido.
	scanBatch = 200
)

// Worker envuelve el servidor asynq y el scheduler de barridos periódicos.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewWorker construye el worker con sus handlers y crons registrados.
func NewWorker(
	redisOpts asynq.RedisClientOpt,
	cfg config.WorkerConfig,
	orch *billing.ECFOrchestrator,
	monitor *billing.ContingencyMonitor,
	log *logger.Logger,
) (*Worker, error) {
	wlog := log.WithComponent("worker")

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeECFSubmit, handleECFTask(orch.Submit, wlog))
	mux.HandleFunc(TypeECFPoll, handleECFTask(orch.Poll, wlog))
	mux.HandleFunc(TypeECFSweep, func(ctx context.Context, _ *asynq.Task) error {
		if err := orch.SubmitPending(ctx, sweepBatch); err != nil {
			return err
		}
		return orch.PollPending(ctx, sweepBatch)
	})
	mux.HandleFunc(TypeContingencyScan, func(ctx context.Context, _ *asynq.Task) error {
		return monitor.Scan(ctx, time.Now(), scanBatch)
	})

	scheduler := asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(cfg.PollCron, NewSweepTask(), asynq.Queue(QueueDefault)); err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cfg.ContingencyCron, NewContingencyScanTask(), asynq.Queue(QueueDefault)); err != nil {
		return nil, err
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, log: wlog}, nil
}

// Run procesa tareas hasta que el contexto se cancele.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.log.Info().Msg("deteniendo worker")
		w.scheduler.Shutdown()
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		w.scheduler.Shutdown()
		return err
	}
}

// handleECFTask adapta un método del orquestador a un handler de asynq.
// Un payload ilegible no se reintenta.
func handleECFTask(fn func(ctx context.Context, invoiceID string) error, log *logger.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ECFTaskPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			log.Error().Err(err).Str("task", t.Type()).Msg("payload inválido")
			return asynq.SkipRetry
		}
		if payload.InvoiceID == "" {
			log.Error().Str("task", t.Type()).Msg("payload sin invoice_id")
			return asynq.SkipRetry
		}
		return fn(ctx, payload.InvoiceID)
	}
}
