package entity

// ECFStatus es el estado del comprobante dentro del ciclo de vida e-CF.
// El conjunto es cerrado y las transiciones se validan contra la tabla
// transicionesValidas; cualquier otra combinación se rechaza.
type ECFStatus string

const (
	EstadoBorrador     ECFStatus = "BORRADOR"             // creado con e-NCF asignado, sin enviar
	EstadoProcesando   ECFStatus = "PROCESANDO"           // firmando / preparando envío
	EstadoEnviado      ECFStatus = "ENVIADO"              // recibido por la DGII, TrackId pendiente de resolución
	EstadoContingencia ECFStatus = "CONTINGENCIA"         // DGII inalcanzable; reintentos dentro del plazo legal
	EstadoAceptado     ECFStatus = "ACEPTADO"             // aceptado por la DGII
	EstadoCondicional  ECFStatus = "ACEPTADO_CONDICIONAL" // aceptado con observaciones
	EstadoRechazado    ECFStatus = "RECHAZADO"            // rechazado por la DGII
	EstadoError        ECFStatus = "ERROR"                // fallo no recuperable (firma, generación, plazo vencido)
	EstadoAnulado      ECFStatus = "ANULADO"              // anulado antes de ser aceptado
)

// transicionesValidas define el grafo del ciclo de vida. La anulación solo
// procede desde estados donde el comprobante aún no fue aceptado por la DGII;
// un comprobante aceptado se corrige con nota de crédito, nunca se anula.
var transicionesValidas = map[ECFStatus]map[ECFStatus]bool{
	EstadoBorrador:   {EstadoProcesando: true, EstadoAnulado: true},
	EstadoProcesando: {EstadoEnviado: true, EstadoContingencia: true, EstadoRechazado: true, EstadoError: true},
	EstadoEnviado:    {EstadoAceptado: true, EstadoCondicional: true, EstadoRechazado: true, EstadoError: true},
	// El reenvío desde contingencia puede recibir resultado inmediato de la
	// DGII, por eso los estados terminales también son alcanzables desde aquí.
	EstadoContingencia: {EstadoProcesando: true, EstadoAceptado: true, EstadoCondicional: true, EstadoRechazado: true, EstadoError: true, EstadoAnulado: true},
	EstadoRechazado:    {EstadoAnulado: true},
	EstadoError:        {EstadoAnulado: true},
	EstadoAceptado:     {},
	EstadoCondicional:  {},
	EstadoAnulado:      {},
}

// EsValido indica si s pertenece al conjunto cerrado de estados.
func (s ECFStatus) EsValido() bool {
	_, ok := transicionesValidas[s]
	return ok
}

// EsTerminal indica si el estado cierra el ciclo de vida del comprobante.
func (s ECFStatus) EsTerminal() bool {
	switch s {
	case EstadoAceptado, EstadoCondicional, EstadoRechazado, EstadoAnulado:
		return true
	}
	return false
}

// PuedeTransicionar indica si la transición s → destino es legal. Reaplicar
// el mismo estado es legal y no-op: las consultas de estado son idempotentes
// sobre comprobantes ya resueltos.
func (s ECFStatus) PuedeTransicionar(destino ECFStatus) bool {
	if s == destino {
		return s.EsValido()
	}
	permitidos, ok := transicionesValidas[s]
	if !ok {
		return false
	}
	return permitidos[destino]
}
