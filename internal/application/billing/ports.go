package billing

import (
	"context"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
)

// BillingTxRunner ejecuta una función dentro de una transacción que incluye
// los repos de rangos, comprobantes y contingencias. Es el perímetro atómico
// de la asignación: bloquear el rango, avanzar el contador e insertar el
// comprobante se confirman juntos o ninguno.
type BillingTxRunner interface {
	RunBilling(ctx context.Context, fn func(
		rangeRepo repository.SequenceRangeRepository,
		invoiceRepo repository.InvoiceRepository,
		contingencyRepo repository.ContingencyRepository,
	) error) error
}

// TaskEnqueuer encola trabajos de fondo hacia el worker. La emisión encola el
// envío a la DGII después del commit; nil deshabilita el encolado (el barrido
// del worker termina recogiendo el comprobante).
type TaskEnqueuer interface {
	EnqueueSubmit(ctx context.Context, invoiceID string) error
	EnqueuePoll(ctx context.Context, invoiceID string) error
}
