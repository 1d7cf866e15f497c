package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
)

// PadronRepository define el puerto de consulta del padrón de contribuyentes
// DGII. La tabla es de solo lectura para la aplicación: se puebla y refresca
// con el seeder cmd/seed_padron.
type PadronRepository interface {
	GetByRNC(ctx context.Context, rnc string) (*entity.PadronEntry, error)
	SearchByName(ctx context.Context, nombre string, limit int) ([]*entity.PadronEntry, error)
	Count(ctx context.Context) (int64, error)
}
