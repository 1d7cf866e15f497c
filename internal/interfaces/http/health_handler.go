package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/internal/jobs"
	"github.com/redis/go-redis/v9"
)

// readyTimeout techo para las sondas de dependencias.
const readyTimeout = 3 * time.Second

// dbPinger acota la dependencia de BD a lo que necesita la sonda.
// Lo implementa *pgxpool.Pool.
type dbPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler expone el panel de salud: BD, Redis, profundidad de cola y
// backlog de contingencias.
type HealthHandler struct {
	db          dbPinger
	rdb         *redis.Client
	inspector   *asynq.Inspector
	invoiceRepo repository.InvoiceRepository
	contRepo    repository.ContingencyRepository
}

// NewHealthHandler construye el handler. inspector puede ser nil (sin métricas de cola).
func NewHealthHandler(db dbPinger, rdb *redis.Client, inspector *asynq.Inspector, invoiceRepo repository.InvoiceRepository, contRepo repository.ContingencyRepository) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, inspector: inspector, invoiceRepo: invoiceRepo, contRepo: contRepo}
}

// Ready godoc
// @Summary      Sonda de disponibilidad
// @Description  Verifica BD y Redis, y reporta cola pendiente, contingencias abiertas y comprobantes por estado.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health/ready [get]
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readyTimeout)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "down: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = "down: " + err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	out := fiber.Map{"checks": checks}

	if h.inspector != nil {
		if qi, err := h.inspector.GetQueueInfo(jobs.QueueDefault); err == nil {
			out["queue_pending"] = qi.Pending
		}
	}
	if healthy {
		if n, err := h.contRepo.CountOpen(ctx); err == nil {
			out["contingency_open"] = n
		}
		if m, err := h.invoiceRepo.CountByStatus(ctx); err == nil {
			out["invoices_by_status"] = m
		}
	}

	if !healthy {
		out["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(out)
	}
	out["status"] = "ok"
	return c.JSON(out)
}
