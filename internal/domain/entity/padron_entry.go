package entity

// Estados de un contribuyente en el padrón DGII.
const (
	PadronActivo       = "ACTIVO"
	PadronSuspendido   = "SUSPENDIDO"
	PadronDadoDeBaja   = "DADO DE BAJA"
	PadronCeseTemporal = "CESE TEMPORAL"
)

// PadronEntry es una fila del padrón de contribuyentes que publica la DGII
// (RNC de 9 dígitos o cédula-RNC de 11). La tabla se puebla con el seeder
// cmd/seed_padron y sirve para la consulta previa a la emisión: verificar que
// el comprador existe y está activo antes de pedirle un crédito fiscal.
type PadronEntry struct {
	RNC       string
	Name      string // razón social
	TradeName string
	Activity  string // actividad económica declarada
	Status    string
}

// Activo indica si el contribuyente puede recibir comprobantes con validez
// fiscal según su estado en el padrón.
func (p *PadronEntry) Activo() bool {
	return p.Status == PadronActivo
}
