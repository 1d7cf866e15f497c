package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
)

// ContingencyRepository define el puerto de persistencia para los períodos de
// contingencia. Los eventos nunca se borran: se cierran con un desenlace para
// conservar la auditoría del plazo legal.
type ContingencyRepository interface {
	Create(ctx context.Context, ev *entity.ContingencyEvent) error

	// GetOpenByInvoice devuelve la contingencia abierta del comprobante, o
	// domain.ErrNotFound si no tiene ninguna.
	GetOpenByInvoice(ctx context.Context, invoiceID string) (*entity.ContingencyEvent, error)

	// Resolve cierra la contingencia abierta del comprobante con el desenlace
	// dado. Es idempotente: si no hay contingencia abierta no hace nada.
	Resolve(ctx context.Context, invoiceID, outcome string, resolvedAt time.Time) error

	// ListOpen lista contingencias abiertas de todas las empresas, más
	// antiguas primero, para el barrido del monitor.
	ListOpen(ctx context.Context, limit int) ([]*entity.ContingencyEvent, error)

	// CountOpen cuenta contingencias abiertas para el panel de salud.
	CountOpen(ctx context.Context) (int64, error)
}
