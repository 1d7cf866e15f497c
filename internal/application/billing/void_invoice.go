package billing

import (
	"context"
	"time"

	"github.com/jhoicas/Facturacion-ecf/internal/application/dto"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/pkg/logger"
)

// VoidInvoiceUseCase anula comprobantes que la DGII aún no aceptó. El e-NCF
// queda consumido para siempre: la fila se conserva en ANULADO y la secuencia
// nunca se reutiliza.
type VoidInvoiceUseCase struct {
	txRunner    BillingTxRunner
	invoiceRepo repository.InvoiceRepository
	log         *logger.Logger
}

// NewVoidInvoiceUseCase construye el caso de uso.
func NewVoidInvoiceUseCase(txRunner BillingTxRunner, invoiceRepo repository.InvoiceRepository, log *logger.Logger) *VoidInvoiceUseCase {
	return &VoidInvoiceUseCase{
		txRunner:    txRunner,
		invoiceRepo: invoiceRepo,
		log:         log.WithComponent("void_invoice"),
	}
}

// VoidInvoice aplica la transición a ANULADO si el estado actual lo permite
// (BORRADOR, CONTINGENCIA, RECHAZADO o ERROR). Un comprobante aceptado no se
// anula: se corrige emitiendo nota de crédito. Si había una contingencia
// abierta se cierra con desenlace ANULADA, en la misma transacción.
func (uc *VoidInvoiceUseCase) VoidInvoice(ctx context.Context, companyID, id string, in dto.VoidInvoiceRequest) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}

	prev := inv.Status
	if err := inv.CambiarEstado(entity.EstadoAnulado); err != nil {
		return nil, err
	}
	if in.Reason != "" {
		inv.DGIIMessage = "Anulado por el emisor: " + in.Reason
	}

	now := time.Now()
	err = uc.txRunner.RunBilling(ctx, func(
		_ repository.SequenceRangeRepository,
		invoiceRepo repository.InvoiceRepository,
		contingencyRepo repository.ContingencyRepository,
	) error {
		if err := invoiceRepo.UpdateStatus(ctx, inv, prev); err != nil {
			return err
		}
		return contingencyRepo.Resolve(ctx, inv.ID, entity.ContingenciaAnulada, now)
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("invoice_id", inv.ID).Str("encf", inv.ENCF).
		Str("estado_previo", string(prev)).Msg("comprobante anulado")

	return toInvoiceResponse(inv, nil), nil
}
