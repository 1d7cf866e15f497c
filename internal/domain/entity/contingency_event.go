package entity

import "time"

// Desenlaces de un período de contingencia.
const (
	ContingenciaAbierta  = ""         // aún en reintentos
	ContingenciaResuelta = "RESUELTA" // el reenvío llegó a la DGII dentro del plazo
	ContingenciaEscalada = "ESCALADA" // plazo legal vencido; comprobante en ERROR
	ContingenciaAnulada  = "ANULADA"  // el comprobante se anuló durante la contingencia
)

// ContingencyEvent registra cada entrada de un comprobante al período de
// contingencia (DGII inalcanzable). Sirve de auditoría y alimenta el panel
// de salud: contingencias abiertas por empresa y tiempo restante del plazo.
type ContingencyEvent struct {
	ID         string
	InvoiceID  string
	CompanyID  string
	Reason     string     // detalle del fallo de transporte que abrió la contingencia
	StartedAt  time.Time  // inicio del plazo legal de reintentos
	ResolvedAt *time.Time // nil mientras siga abierta
	Outcome    string     // "", RESUELTA, ESCALADA o ANULADA
	CreatedAt  time.Time
}

// Abierta indica si la contingencia sigue sin desenlace.
func (c *ContingencyEvent) Abierta() bool {
	return c.ResolvedAt == nil
}
