package entity

import (
	"time"

	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// SequenceRange representa un rango de secuencias e-NCF autorizado por la
// DGII para un tipo de e-CF de una empresa. La DGII asigna los rangos vía la
// "Solicitud de Autorización de Secuencias"; el sistema los consume en orden
// sin dejar huecos.
//
// Invariante: RangeFrom ≤ Current ≤ RangeTo+1. Current es el próximo número
// a asignar; Current == RangeTo+1 significa rango agotado.
type SequenceRange struct {
	ID         string
	CompanyID  string
	Tipo       dgii.TipoECF
	AuthNumber string    // número de autorización DGII del rango
	RangeFrom  int64     // primera secuencia autorizada
	RangeTo    int64     // última secuencia autorizada
	Current    int64     // próxima secuencia a asignar
	DateFrom   time.Time // inicio de vigencia
	DateTo     time.Time // fecha de vencimiento autorizada
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Disponibles devuelve cuántas secuencias quedan por asignar en el rango.
func (r *SequenceRange) Disponibles() int64 {
	if r.Agotado() {
		return 0
	}
	return r.RangeTo - r.Current + 1
}

// Agotado indica si el rango ya no tiene secuencias por asignar.
func (r *SequenceRange) Agotado() bool {
	return r.Current > r.RangeTo
}

// Vencido indica si el rango pasó su fecha de vencimiento autorizada.
func (r *SequenceRange) Vencido(now time.Time) bool {
	return now.After(r.DateTo)
}

// Usable indica si el rango puede entregar una secuencia en este momento.
func (r *SequenceRange) Usable(now time.Time) bool {
	return r.IsActive && !r.Agotado() && !r.Vencido(now)
}

// Solapa indica si el rango numérico de r se cruza con el de otro. Solo tiene
// sentido entre rangos de la misma empresa y tipo; esa precondición la
// garantiza quien consulta.
func (r *SequenceRange) Solapa(otro *SequenceRange) bool {
	return r.RangeFrom <= otro.RangeTo && otro.RangeFrom <= r.RangeTo
}

// Asignar entrega la próxima secuencia del rango y avanza Current. Debe
// llamarse con el rango bloqueado (SELECT ... FOR UPDATE) para que el avance
// sea serializado.
func (r *SequenceRange) Asignar(now time.Time) (int64, error) {
	if !r.IsActive {
		return 0, domain.ErrSinRangoDisponible
	}
	if r.Vencido(now) {
		return 0, domain.ErrRangoVencido
	}
	if r.Agotado() {
		return 0, domain.ErrRangoAgotado
	}
	n := r.Current
	r.Current++
	return n, nil
}
