package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// Invoice representa la cabecera de un comprobante fiscal electrónico (e-CF).
// El e-NCF se asigna al crear el comprobante consumiendo secuencia de un
// SequenceRange; desde ese momento el número queda consumido aunque el
// comprobante termine anulado.
type Invoice struct {
	ID        string
	CompanyID string
	Tipo      dgii.TipoECF
	ENCF      string // e-NCF asignado (E + tipo + secuencia en 10 dígitos)
	Secuencia int64  // secuencia consumida dentro del rango
	RangeID   string // SequenceRange del que se consumió la secuencia

	FechaEmision time.Time

	// Comprador. BuyerTaxID vacío = consumidor final, solo admitido en tipo 32.
	BuyerName  string
	BuyerTaxID string // RNC (9 dígitos) o cédula (11 dígitos)

	// Moneda: DOP por defecto; moneda extranjera exige tasa de cambio a DOP.
	Currency     string
	ExchangeRate decimal.Decimal // 4 decimales; 1 para DOP

	// Totales a 2 decimales (redondeo medio hacia arriba).
	NetTotal   decimal.Decimal // suma de montos netos de línea
	TaxTotal   decimal.Decimal // ITBIS total
	GrandTotal decimal.Decimal

	// Referencia de modificación, obligatoria en NC/ND (tipos 33 y 34).
	ModifiedENCF     string
	ModifiedDate     *time.Time // fecha de emisión del comprobante modificado
	ModificationCode int        // catálogo DGII 1..5

	// Ciclo de vida.
	Status             ECFStatus
	ToleranciaExcedida bool   // totales válidos solo por tolerancia; degrada ACEPTADO a condicional
	TrackID            string // identificador devuelto por la DGII al recibir el e-CF
	SecurityCode       string // código de seguridad derivado de la firma (consulta QR)
	XMLSigned          string // XML firmado enviado a la DGII
	QRData             string // URL de consulta de timbre con RNC, e-NCF, monto y código
	DGIIMessage        string // último mensaje devuelto por la DGII
	ContingencyAt      *time.Time // primera entrada a contingencia; los reintentos no la reinician
	SubmittedAt        *time.Time // último envío aceptado por el servicio de recepción

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CambiarEstado aplica la transición de ciclo de vida, rechazando las que la
// tabla no permite. Reaplicar el estado actual es un no-op legal.
func (i *Invoice) CambiarEstado(destino ECFStatus) error {
	if !destino.EsValido() {
		return fmt.Errorf("%w: estado desconocido %q", domain.ErrTransicionInvalida, destino)
	}
	if !i.Status.PuedeTransicionar(destino) {
		return fmt.Errorf("%w: de %s a %s", domain.ErrTransicionInvalida, i.Status, destino)
	}
	i.Status = destino
	return nil
}

// EsModificacion indica si el comprobante es nota de crédito o débito y por
// tanto referencia un e-NCF previo.
func (i *Invoice) EsModificacion() bool {
	return i.Tipo == dgii.TipoNotaCredito || i.Tipo == dgii.TipoNotaDebito
}

// ConsumidorFinal indica si el comprobante no identifica al comprador.
func (i *Invoice) ConsumidorFinal() bool {
	return i.BuyerTaxID == ""
}

// ContingenciaVencida indica si el comprobante lleva más del plazo legal en
// CONTINGENCIA. Con plazo de 72h: a las 71h59m todavía se reintenta; a las
// 72h en punto el plazo está vencido.
func (i *Invoice) ContingenciaVencida(now time.Time, plazo time.Duration) bool {
	if i.Status != EstadoContingencia || i.ContingencyAt == nil {
		return false
	}
	return !now.Before(i.ContingencyAt.Add(plazo))
}
