// Package dgii contiene las validaciones de dominio para comprobantes
// fiscales electrónicos (e-CF) según la Norma General 01-2020 de la DGII y el
// Formato Estándar e-CF v1.0. Utiliza catálogos y reglas de pkg/dgii.
package dgii

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// ErrComprobanteInvalido agrupa errores de validación del e-CF.
var ErrComprobanteInvalido = errors.New("comprobante inválido para DGII")

// ResultadoValidacion es el veredicto de ValidateComprobante cuando el
// comprobante es emitible.
type ResultadoValidacion struct {
	// ToleranciaExcedida indica que los montos declarados se desvían de los
	// recalculados más allá de la tolerancia DGII (±1 por línea, ±n en los
	// totales). No bloquea la emisión: degrada una aceptación posterior de la
	// DGII a ACEPTADO_CONDICIONAL.
	ToleranciaExcedida bool
}

var cien = decimal.NewFromInt(100)

// ValidateComprobante valida y normaliza el comprobante y sus líneas antes de
// consumir secuencia. Normaliza en el agregado recibido: precios unitarios y
// tasa de cambio a 4 decimales, montos declarados a 2 decimales con redondeo
// medio hacia arriba, y completa los montos derivados que el emisor no
// declaró. Las reglas duras (comprador, techo, líneas, referencia) se
// acumulan con errors.Join; la desviación de tolerancia nunca es error.
func ValidateComprobante(inv *entity.Invoice, lines []*entity.InvoiceLine, emisorRNC string) (ResultadoValidacion, error) {
	var res ResultadoValidacion
	if inv == nil {
		return res, fmt.Errorf("%w: comprobante nulo", ErrComprobanteInvalido)
	}
	var errs []error

	// Tipo de e-CF reconocido y sus reglas de emisión.
	reglas, ok := dgii.Reglas(inv.Tipo)
	if !ok {
		return res, fmt.Errorf("%w: tipo de e-CF desconocido: %d", ErrComprobanteInvalido, inv.Tipo)
	}

	// Emisor: el RNC debe tener dígito verificador válido.
	if err := dgii.ValidateRNC(emisorRNC); err != nil {
		errs = append(errs, fmt.Errorf("emisor: %w", err))
	}

	if inv.FechaEmision.IsZero() {
		errs = append(errs, fmt.Errorf("fecha de emisión requerida"))
	}

	// Comprador según el tipo: los tipos con comprador obligatorio exigen RNC
	// o cédula; consumo admite consumidor final. Si viene identificación, el
	// dígito verificador debe ser correcto sea o no obligatoria.
	if reglas.RequiereComprador && inv.ConsumidorFinal() {
		errs = append(errs, fmt.Errorf("el tipo %d (%s) exige RNC o cédula del comprador", inv.Tipo, reglas.Nombre))
	}
	if !inv.ConsumidorFinal() {
		if err := dgii.ValidarIdentificacion(inv.BuyerTaxID); err != nil {
			errs = append(errs, fmt.Errorf("comprador: %w", err))
		}
	}

	// Referencia de modificación: obligatoria y completa en NC/ND, prohibida
	// en el resto de los tipos.
	if reglas.EsModificacion {
		if inv.ModifiedENCF == "" {
			errs = append(errs, fmt.Errorf("el tipo %d exige el e-NCF modificado", inv.Tipo))
		} else if err := dgii.ValidateENCF(inv.ModifiedENCF); err != nil {
			errs = append(errs, fmt.Errorf("e-NCF modificado: %w", err))
		}
		if inv.ModifiedDate == nil || inv.ModifiedDate.IsZero() {
			errs = append(errs, fmt.Errorf("el tipo %d exige la fecha de emisión del comprobante modificado", inv.Tipo))
		}
		if !dgii.ValidModificationCodes[inv.ModificationCode] {
			errs = append(errs, fmt.Errorf("código de modificación inválido: %d (catálogo 1..5)", inv.ModificationCode))
		}
	} else if inv.ModifiedENCF != "" || inv.ModificationCode != 0 {
		errs = append(errs, fmt.Errorf("solo notas de crédito y débito llevan referencia de modificación"))
	}

	// Moneda: DOP por defecto; moneda extranjera exige tasa de cambio positiva.
	if inv.Currency == "" {
		inv.Currency = "DOP"
	}
	if inv.Currency == "DOP" {
		inv.ExchangeRate = decimal.NewFromInt(1)
	} else {
		inv.ExchangeRate = dgii.Redondear4(inv.ExchangeRate)
		if !inv.ExchangeRate.IsPositive() {
			errs = append(errs, fmt.Errorf("moneda %s exige tasa de cambio positiva", inv.Currency))
		}
	}

	// Líneas: reglas duras por línea y recálculo de montos derivados.
	var sumNeto, sumITBIS decimal.Decimal
	if len(lines) == 0 {
		errs = append(errs, fmt.Errorf("el comprobante debe tener al menos una línea"))
	}
	for idx, l := range lines {
		n := idx + 1
		l.LineNumber = n
		if l.Description == "" {
			errs = append(errs, fmt.Errorf("línea %d: descripción requerida", n))
		}
		if !l.Quantity.IsPositive() {
			errs = append(errs, fmt.Errorf("línea %d: cantidad debe ser mayor que cero", n))
		}
		l.UnitPrice = dgii.Redondear4(l.UnitPrice)
		if !l.UnitPrice.IsPositive() {
			errs = append(errs, fmt.Errorf("línea %d: precio unitario debe ser mayor que cero", n))
		}
		if l.Discount.IsNegative() {
			errs = append(errs, fmt.Errorf("línea %d: descuento no puede ser negativo", n))
		}
		if l.Discount.GreaterThan(l.MontoBruto()) {
			errs = append(errs, fmt.Errorf("línea %d: descuento (%s) excede el monto bruto de la línea (%s)", n, l.Discount, l.MontoBruto()))
		}
		if !esTasaITBISValida(l.TaxRate) {
			errs = append(errs, fmt.Errorf("línea %d: tasa ITBIS %s fuera del catálogo (0, 16, 18)", n, l.TaxRate))
		}

		// Montos derivados a 2 decimales desde los valores unitarios a 4.
		netoCalc := dgii.Redondear2(l.Quantity.Mul(l.UnitPrice).Sub(l.Discount))
		itbisCalc := dgii.Redondear2(netoCalc.Mul(l.TaxRate).Div(cien))

		// El emisor puede declarar sus propios montos de línea; si no declara,
		// se adoptan los calculados. Declarados y calculados se comparan bajo
		// la tolerancia de ±1 por línea.
		if l.NetAmount.IsZero() {
			l.NetAmount = netoCalc
		} else {
			l.NetAmount = dgii.Redondear2(l.NetAmount)
			if !dgii.DentroDeTolerancia(l.NetAmount, netoCalc, dgii.ToleranciaLinea) {
				res.ToleranciaExcedida = true
			}
		}
		if l.TaxAmount.IsZero() {
			l.TaxAmount = itbisCalc
		} else {
			l.TaxAmount = dgii.Redondear2(l.TaxAmount)
			if !dgii.DentroDeTolerancia(l.TaxAmount, itbisCalc, dgii.ToleranciaLinea) {
				res.ToleranciaExcedida = true
			}
		}

		sumNeto = sumNeto.Add(netoCalc)
		sumITBIS = sumITBIS.Add(itbisCalc)
	}

	// Totales: los declarados se comparan contra los recalculados con
	// tolerancia de ±1 por línea del comprobante; sin declarar, se adoptan.
	tolTotales := dgii.ToleranciaTotales(len(lines))
	granCalc := dgii.Redondear2(sumNeto.Add(sumITBIS))
	inv.NetTotal = adoptarOComparar(inv.NetTotal, dgii.Redondear2(sumNeto), tolTotales, &res)
	inv.TaxTotal = adoptarOComparar(inv.TaxTotal, dgii.Redondear2(sumITBIS), tolTotales, &res)
	inv.GrandTotal = adoptarOComparar(inv.GrandTotal, granCalc, tolTotales, &res)

	// Techo de consumo: una factura de consumo sin comprador identificado no
	// puede superar el techo; el emisor debe identificar al comprador (o
	// emitir crédito fiscal, tipo 31).
	if reglas.AplicaTecho && inv.ConsumidorFinal() && dgii.ExcedeTechoConsumo(inv.GrandTotal) {
		errs = append(errs, fmt.Errorf("%w: total %s supera %s; identifique al comprador o emita tipo %d",
			domain.ErrTechoConsumo, inv.GrandTotal, dgii.MontoTechoConsumo, dgii.TipoCreditoFiscal))
	}

	if len(errs) > 0 {
		return res, errors.Join(append([]error{ErrComprobanteInvalido}, errs...)...)
	}
	return res, nil
}

// adoptarOComparar devuelve el monto declarado normalizado, adoptando el
// calculado cuando el emisor no declaró, y marca la tolerancia excedida si la
// desviación supera tol.
func adoptarOComparar(declarado, calculado, tol decimal.Decimal, res *ResultadoValidacion) decimal.Decimal {
	if declarado.IsZero() {
		return calculado
	}
	declarado = dgii.Redondear2(declarado)
	if !dgii.DentroDeTolerancia(declarado, calculado, tol) {
		res.ToleranciaExcedida = true
	}
	return declarado
}

func esTasaITBISValida(rate decimal.Decimal) bool {
	for tasa := range dgii.ValidITBISRates {
		if rate.Equal(decimal.RequireFromString(tasa)) {
			return true
		}
	}
	return false
}
