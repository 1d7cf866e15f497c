package entity

import "time"

// Company representa un emisor/tenant del sistema (multi-tenant, enfoque
// República Dominicana). El RNC identifica al emisor ante la DGII y viaja en
// todos sus comprobantes.
type Company struct {
	ID          string
	Name        string // razón social registrada en la DGII
	TradeName   string // nombre comercial (opcional)
	RNC         string // 9 dígitos, con dígito verificador válido
	Address     string
	Phone       string
	Email       string
	Environment string // override del ambiente DGII: TesteCF, CerteCF o eCF; vacío = global
	Status      string // active, suspended, inactive
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Activa indica si la empresa puede emitir comprobantes.
func (c *Company) Activa() bool {
	return c.Status == "active"
}
