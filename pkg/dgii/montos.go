// Package dgii: redondeo y tolerancias monetarias del Formato e-CF.
// La DGII exige montos a 2 decimales con redondeo medio hacia arriba y admite
// una tolerancia de ±1 por línea, acumulable en los totales del comprobante.

package dgii

import "github.com/shopspring/decimal"

// MontoTechoConsumo es el monto máximo de una Factura de Consumo Electrónica
// sin identificar al comprador (Norma General 01-2020). Superarlo exige RNC
// o cédula del comprador.
var MontoTechoConsumo = decimal.New(250000, 0)

// ToleranciaLinea es la diferencia admitida entre un monto recalculado y el
// declarado en una línea: ±1. Superarla no invalida el comprobante; lo marca
// para que una aceptación DGII se registre como condicional.
var ToleranciaLinea = decimal.New(1, 0)

// Redondear2 redondea a 2 decimales con medio hacia arriba (half-up), que es
// el redondeo que la DGII aplica a los montos del e-CF.
func Redondear2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Redondear4 redondea a 4 decimales; se usa para precio unitario y tasa de
// cambio, que el formato conserva con mayor precisión que los totales.
func Redondear4(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// DentroDeTolerancia indica si |declarado - recalculado| ≤ tolerancia.
func DentroDeTolerancia(declarado, recalculado, tolerancia decimal.Decimal) bool {
	return declarado.Sub(recalculado).Abs().LessThanOrEqual(tolerancia)
}

// ToleranciaTotales devuelve la tolerancia admitida para los montos totales
// de un comprobante de numLineas líneas: ±1 por línea.
func ToleranciaTotales(numLineas int) decimal.Decimal {
	if numLineas < 1 {
		numLineas = 1
	}
	return ToleranciaLinea.Mul(decimal.NewFromInt(int64(numLineas)))
}

// ExcedeTechoConsumo indica si el monto total supera el techo de consumo
// sin identificación del comprador.
func ExcedeTechoConsumo(total decimal.Decimal) bool {
	return total.GreaterThan(MontoTechoConsumo)
}
