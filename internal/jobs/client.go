package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client encola tareas hacia Redis. Implementa billing.TaskEnqueuer.
type Client struct {
	client *asynq.Client
}

// NewClient construye el cliente de encolado.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueSubmit encola el envío de un comprobante a la DGII. Los reintentos
// de asynq cubren fallas de infraestructura (BD, Redis); la indisponibilidad
// de la DGII se maneja como contingencia y la reintenta el monitor.
func (c *Client) EnqueueSubmit(ctx context.Context, invoiceID string) error {
	task, err := NewSubmitTask(invoiceID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// EnqueuePoll encola la consulta de estado de un comprobante.
func (c *Client) EnqueuePoll(ctx context.Context, invoiceID string) error {
	task, err := NewPollTask(invoiceID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
	return err
}

// Close libera la conexión del cliente.
func (c *Client) Close() error {
	return c.client.Close()
}
