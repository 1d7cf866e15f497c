// Package dgii contiene catálogos y validaciones alineados a la Norma General
// 01-2020 de la DGII (República Dominicana) sobre Comprobantes Fiscales
// Electrónicos (e-CF) y al Formato Estándar e-CF v1.0.
package dgii

// TipoECF identifica el tipo de comprobante fiscal electrónico (campo TipoeCF
// del encabezado, dos dígitos).
type TipoECF int

// =============================================================================
// Tabla de Tipos de e-CF (Norma General 01-2020, Art. 4)
// El tipo viaja en el e-NCF como los dos dígitos siguientes a la letra E.
// =============================================================================

const (
	TipoCreditoFiscal       TipoECF = 31 // Factura de Crédito Fiscal Electrónica
	TipoConsumo             TipoECF = 32 // Factura de Consumo Electrónica
	TipoNotaDebito          TipoECF = 33 // Nota de Débito Electrónica
	TipoNotaCredito         TipoECF = 34 // Nota de Crédito Electrónica
	TipoCompras             TipoECF = 41 // Comprobante Electrónico de Compras
	TipoGastosMenores       TipoECF = 43 // Comprobante Electrónico para Gastos Menores
	TipoRegimenesEspeciales TipoECF = 44 // Comprobante Electrónico para Regímenes Especiales
	TipoGubernamental       TipoECF = 45 // Comprobante Electrónico Gubernamental
	TipoExportaciones       TipoECF = 46 // Comprobante Electrónico de Exportaciones
	TipoPagosExterior       TipoECF = 47 // Comprobante Electrónico para Pagos al Exterior
)

// ReglasTipo describe las reglas de emisión que la DGII asocia a cada tipo de
// e-CF. Se consultan antes de consumir secuencia.
type ReglasTipo struct {
	Nombre            string
	RequiereComprador bool // exige RNC o cédula del comprador en el encabezado
	EsModificacion    bool // exige referencia al e-NCF modificado (NC/ND)
	AplicaTecho       bool // aplica techo de consumo cuando no se identifica al comprador
}

var reglasPorTipo = map[TipoECF]ReglasTipo{
	TipoCreditoFiscal:       {Nombre: "Factura de Crédito Fiscal Electrónica", RequiereComprador: true},
	TipoConsumo:             {Nombre: "Factura de Consumo Electrónica", AplicaTecho: true},
	TipoNotaDebito:          {Nombre: "Nota de Débito Electrónica", RequiereComprador: true, EsModificacion: true},
	TipoNotaCredito:         {Nombre: "Nota de Crédito Electrónica", RequiereComprador: true, EsModificacion: true},
	TipoCompras:             {Nombre: "Comprobante Electrónico de Compras", RequiereComprador: true},
	TipoGastosMenores:       {Nombre: "Comprobante Electrónico para Gastos Menores", RequiereComprador: true},
	TipoRegimenesEspeciales: {Nombre: "Comprobante Electrónico para Regímenes Especiales", RequiereComprador: true},
	TipoGubernamental:       {Nombre: "Comprobante Electrónico Gubernamental", RequiereComprador: true},
	TipoExportaciones:       {Nombre: "Comprobante Electrónico de Exportaciones", RequiereComprador: true},
	TipoPagosExterior:       {Nombre: "Comprobante Electrónico para Pagos al Exterior", RequiereComprador: true},
}

// Reglas devuelve las reglas del tipo y false si el tipo no existe en el catálogo.
func Reglas(t TipoECF) (ReglasTipo, bool) {
	r, ok := reglasPorTipo[t]
	return r, ok
}

// EsTipoValido indica si t es un tipo de e-CF reconocido por la DGII.
func EsTipoValido(t TipoECF) bool {
	_, ok := reglasPorTipo[t]
	return ok
}

// =============================================================================
// Códigos de modificación para Notas de Crédito / Débito (Formato e-CF,
// sección InformacionReferencia, campo CodigoModificacion)
// =============================================================================

const (
	ModificacionAnulaTotal          = 1 // Anula el e-NCF modificado en su totalidad
	ModificacionCorrigeTexto        = 2 // Corrige texto del comprobante modificado
	ModificacionCorrigeMontos       = 3 // Corrige montos del comprobante modificado
	ModificacionReemplazaContingencia = 4 // Reemplaza comprobante emitido en contingencia
	ModificacionReferenciaConsumo   = 5 // Referencia a Factura de Consumo Electrónica
)

// ValidModificationCodes contiene los códigos de modificación admitidos para NC/ND.
var ValidModificationCodes = map[int]bool{
	ModificacionAnulaTotal:            true,
	ModificacionCorrigeTexto:          true,
	ModificacionCorrigeMontos:         true,
	ModificacionReemplazaContingencia: true,
	ModificacionReferenciaConsumo:     true,
}

// =============================================================================
// Estados de respuesta de la consulta de resultado por TrackId
// (servicio ConsultaResultado / ConsultaEstado de la DGII)
// =============================================================================

const (
	EstadoDGIINoEncontrado        = 0 // TrackId sin registro; se ignora y se reintenta
	EstadoDGIIAceptado            = 1 // Aceptado
	EstadoDGIIRechazado           = 2 // Rechazado
	EstadoDGIIEnProceso           = 3 // En proceso; mantener en espera
	EstadoDGIIAceptadoCondicional = 4 // Aceptado condicional
)

// =============================================================================
// Ambientes de los servicios web e-CF (ecf.dgii.gov.do)
// =============================================================================

const (
	AmbienteTesteCF = "TesteCF" // pruebas
	AmbienteCerteCF = "CerteCF" // certificación
	AmbienteECF     = "eCF"     // producción
)

// ValidEnvironments contiene los ambientes e-CF publicados por la DGII.
var ValidEnvironments = map[string]bool{
	AmbienteTesteCF: true,
	AmbienteCerteCF: true,
	AmbienteECF:     true,
}

// =============================================================================
// Tasas de ITBIS vigentes (Ley 253-12): 18% tasa general, 16% tasa reducida,
// 0% exento/tasa cero. El indicador de facturación por línea depende de la tasa.
// =============================================================================

var ValidITBISRates = map[string]bool{
	"0":  true,
	"16": true,
	"18": true,
}

// =============================================================================
// Tipos de identificación del comprador
// =============================================================================

const (
	IdentificacionRNC    = "RNC"    // 9 dígitos, persona jurídica o física con RNC
	IdentificacionCedula = "CEDULA" // 11 dígitos, persona física
)
