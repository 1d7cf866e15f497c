package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para credenciales de acceso
// al API (DIP).
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
}
