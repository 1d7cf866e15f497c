// Package dgii implementa los adaptadores hacia los servicios web e-CF de la
// DGII (República Dominicana): autenticación por semilla, recepción de
// comprobantes firmados y consulta de resultado por TrackId.
package dgii

import (
	"context"
	"time"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
)

// ── Puertos (interfaces) ───────────────────────────────────────────────────────

// ReceptionResult resultado de la entrega de un e-CF al servicio de recepción.
type ReceptionResult struct {
	TrackID string // identificador asignado por la DGII para consultar el resultado
	Message string // mensaje informativo devuelto junto a la recepción
}

// StatusResult resultado de la consulta de estado por TrackId.
type StatusResult struct {
	TrackID  string
	Codigo   int    // catálogo DGII: 0 no encontrado, 1 aceptado, 2 rechazado, 3 en proceso, 4 aceptado condicional
	Estado   string // descripción textual del estado
	Mensajes string // detalle de validaciones de la DGII (rechazos, condicionales)
}

// ECFSubmitter define el puerto de salida hacia los servicios e-CF.
// env es el ambiente DGII (TesteCF, CerteCF o eCF); determina la URL base.
// Para tests se inyecta un doble.
type ECFSubmitter interface {
	// Submit entrega el XML firmado al servicio de recepción. filename sigue
	// la convención DGII: {RNC}{eNCF}.xml.
	Submit(ctx context.Context, signedXML []byte, filename, env string) (*ReceptionResult, error)

	// QueryStatus consulta el resultado de un envío por su TrackId.
	QueryStatus(ctx context.Context, trackID, env string) (*StatusResult, error)
}

// TokenCache guarda los tokens de sesión DGII compartidos entre procesos
// (API y worker). La clave distingue ambiente y RNC del emisor.
type TokenCache interface {
	Get(ctx context.Context, env, rnc string) (string, error)
	Set(ctx context.Context, env, rnc, token string, ttl time.Duration) error
}

// ── Contexto de construcción del XML ──────────────────────────────────────────

// ECFBuildContext reúne los datos necesarios para construir el XML e-CF 1.0.
type ECFBuildContext struct {
	Invoice *entity.Invoice
	Company *entity.Company // emisor
	Lines   []*entity.InvoiceLine
	Range   *entity.SequenceRange // rango del que salió la secuencia (FechaVencimientoSecuencia)
}
