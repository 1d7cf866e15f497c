package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")
)

// Errores de asignación de secuencias e-NCF.
var (
	ErrRangoAgotado        = errors.New("rango de secuencias agotado")
	ErrRangoVencido        = errors.New("rango de secuencias vencido")
	ErrRangoSolapado       = errors.New("el rango se solapa con otro rango activo del mismo tipo")
	ErrSinRangoDisponible  = errors.New("no hay rango activo disponible para el tipo de e-CF")
	ErrConflictoAsignacion = errors.New("conflicto de concurrencia al asignar secuencia")
)

// Errores de cumplimiento y ciclo de vida e-CF.
var (
	ErrTechoConsumo        = errors.New("factura de consumo excede el techo sin identificar al comprador")
	ErrTransicionInvalida  = errors.New("transición de estado inválida")
	ErrTransporteDGII      = errors.New("servicio DGII inalcanzable")
	ErrRechazoDGII         = errors.New("comprobante rechazado por la DGII")
	ErrContingenciaVencida = errors.New("plazo de contingencia vencido")
)
