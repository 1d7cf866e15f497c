package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

// Plazo legal de reintentos en contingencia cuando la configuración no dice
// otra cosa (Norma General 01-2020: 72 horas).
const plazoContingenciaDefault = 72 * time.Hour

// ContingencyMonitor vigila los comprobantes en CONTINGENCIA: reencola el
// envío de los que siguen dentro del plazo legal y escala a ERROR los
// vencidos. El barrido corre por cron en el worker.
type ContingencyMonitor struct {
	txRunner    BillingTxRunner
	invoiceRepo repository.InvoiceRepository
	enqueuer    TaskEnqueuer
	plazo       time.Duration
	log         *logger.Logger
}

// NewContingencyMonitor construye el monitor. plazoHoras ≤ 0 usa las 72 horas
// de la norma.
func NewContingencyMonitor(
	txRunner BillingTxRunner,
	invoiceRepo repository.InvoiceRepository,
	enqueuer TaskEnqueuer,
	plazoHoras int,
	log *logger.Logger,
) *ContingencyMonitor {
	plazo := time.Duration(plazoHoras) * time.Hour
	if plazo <= 0 {
		plazo = plazoContingenciaDefault
	}
	return &ContingencyMonitor{
		txRunner:    txRunner,
		invoiceRepo: invoiceRepo,
		enqueuer:    enqueuer,
		plazo:       plazo,
		log:         log.WithComponent("contingency_monitor"),
	}
}

// Scan recorre los comprobantes en CONTINGENCIA y decide por cada uno:
// reintentar (dentro del plazo) o escalar (plazo vencido). A las 71h59m
// todavía se reintenta; a las 72h en punto se escala.
func (m *ContingencyMonitor) Scan(ctx context.Context, now time.Time, limit int) error {
	invs, err := m.invoiceRepo.ListByStatus(ctx, entity.EstadoContingencia, limit)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		if inv.ContingenciaVencida(now, m.plazo) {
			if err := m.escalar(ctx, inv, now); err != nil {
				m.log.Error().Err(err).Str("invoice_id", inv.ID).
					Msg("no se pudo escalar la contingencia vencida")
			}
			continue
		}
		if m.enqueuer != nil {
			if err := m.enqueuer.EnqueueSubmit(ctx, inv.ID); err != nil {
				m.log.Warn().Err(err).Str("invoice_id", inv.ID).
					Msg("no se pudo reencolar el reintento de contingencia")
			}
		}
	}
	return nil
}

// escalar cierra la contingencia como ESCALADA y mueve el comprobante a
// ERROR. El vencimiento del plazo es un incumplimiento regulatorio: queda en
// el log como error y el comprobante exige conciliación manual.
func (m *ContingencyMonitor) escalar(ctx context.Context, inv *entity.Invoice, now time.Time) error {
	prev := inv.Status
	if err := inv.CambiarEstado(entity.EstadoError); err != nil {
		return err
	}
	inv.DGIIMessage = domain.ErrContingenciaVencida.Error()

	err := m.txRunner.RunBilling(ctx, func(
		_ repository.SequenceRangeRepository,
		invoiceRepo repository.InvoiceRepository,
		contingencyRepo repository.ContingencyRepository,
	) error {
		if err := invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
			return err
		}
		return contingencyRepo.Resolve(ctx, inv.ID, entity.ContingenciaEscalada, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Un reintento en vuelo resolvió el comprobante primero.
			return nil
		}
		return err
	}

	m.log.Error().Err(domain.ErrContingenciaVencida).
		Str("invoice_id", inv.ID).Str("encf", inv.ENCF).
		Time("contingencia_desde", derefTime(inv.ContingencyAt)).
		Msg("plazo de contingencia vencido, comprobante escalado a ERROR")
	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
