package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/Facturacion-ecf/internal/application/billing"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
)

// Ensure TxRunner implements billing.BillingTxRunner.
var _ billing.BillingTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunBilling inicia una transacción, ejecuta fn con los repos de facturación
// atados a la tx y hace Commit o Rollback. Es el perímetro atómico de la
// asignación de e-NCF: bloqueo del rango, avance del contador e inserción del
// comprobante se confirman juntos o ninguno.
func (r *TxRunner) RunBilling(ctx context.Context, fn func(
	rangeRepo repository.SequenceRangeRepository,
	invoiceRepo repository.InvoiceRepository,
	contingencyRepo repository.ContingencyRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rangeRepo := NewSequenceRangeRepository(tx)
	invoiceRepo := NewInvoiceRepository(tx)
	contingencyRepo := NewContingencyRepository(tx)

	if err := fn(rangeRepo, invoiceRepo, contingencyRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
