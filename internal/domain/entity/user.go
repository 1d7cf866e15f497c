package entity

import "time"

// Roles válidos para User. "emisor" crea y anula comprobantes; "consulta"
// solo lee estados y rangos.
const (
	RoleAdmin    = "admin"
	RoleEmisor   = "emisor"
	RoleConsulta = "consulta"
)

// User representa una credencial de acceso al API (pertenece a una Company).
type User struct {
	ID           string
	CompanyID    string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Name         string
	Role         string // admin, emisor, consulta
	Status       string // active, inactive, suspended
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
