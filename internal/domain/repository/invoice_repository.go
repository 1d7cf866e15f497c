package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// InvoiceFilter acota listados de comprobantes.
type InvoiceFilter struct {
	Status entity.ECFStatus // vacío = todos
	Tipo   dgii.TipoECF     // 0 = todos
	Limit  int
	Offset int
}

// InvoiceRepository define el puerto de persistencia para comprobantes y sus
// líneas.
type InvoiceRepository interface {
	// Create inserta la cabecera y sus líneas. Se invoca dentro de la misma
	// transacción que consume la secuencia: o se persisten comprobante y
	// avance del rango juntos, o ninguno.
	Create(ctx context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error

	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetByENCF(ctx context.Context, companyID, encf string) (*entity.Invoice, error)
	GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error)

	List(ctx context.Context, companyID string, f InvoiceFilter) ([]*entity.Invoice, error)

	// ListByStatus lista comprobantes de todas las empresas en un estado dado;
	// lo usan los barridos del worker (consulta de TrackId, contingencia).
	ListByStatus(ctx context.Context, status entity.ECFStatus, limit int) ([]*entity.Invoice, error)

	// UpdateStatus persiste estado y campos DGII (track id, mensaje, código de
	// seguridad, XML firmado, marcas de tiempo) con guarda optimista: la fila
	// solo se actualiza si el estado persistido aún es prev. Si ninguna fila
	// coincide devuelve domain.ErrConflict; así dos desenlaces terminales
	// nunca se pisan.
	UpdateStatus(ctx context.Context, inv *entity.Invoice, prev entity.ECFStatus) error

	// CountByStatus agrega comprobantes por estado para el panel de salud.
	CountByStatus(ctx context.Context) (map[entity.ECFStatus]int64, error)
}
