package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// SequenceRangeRepository define el puerto de persistencia para rangos de
// secuencias e-NCF autorizados por la DGII.
type SequenceRangeRepository interface {
	Create(ctx context.Context, r *entity.SequenceRange) error
	GetByID(ctx context.Context, id string) (*entity.SequenceRange, error)

	// LockForAllocation carga con bloqueo exclusivo (SELECT ... FOR UPDATE)
	// todos los rangos activos de la clave (empresa, tipo), ordenados por id
	// para que transacciones concurrentes bloqueen en el mismo orden. Es la
	// sección crítica de la asignación: debe llamarse dentro de una
	// transacción; fuera de una, el bloqueo se libera de inmediato.
	LockForAllocation(ctx context.Context, companyID string, tipo dgii.TipoECF) ([]*entity.SequenceRange, error)

	// ListByCompany lista todos los rangos de una empresa (activos e inactivos).
	ListByCompany(ctx context.Context, companyID string) ([]*entity.SequenceRange, error)

	// UpdateCurrent persiste el avance del contador con guarda optimista: la
	// fila solo se actualiza si current_number aún vale prev. Si ninguna fila
	// coincide devuelve domain.ErrConflictoAsignacion.
	UpdateCurrent(ctx context.Context, id string, prev, next int64) error

	// Update actualiza los campos administrativos (activación, vigencia).
	Update(ctx context.Context, r *entity.SequenceRange) error
}
