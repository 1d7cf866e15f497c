package entity

import "github.com/shopspring/decimal"

// InvoiceLine representa una línea de detalle de un e-CF. Cantidad y precio
// unitario se conservan a 4 decimales; los montos de línea van a 2 decimales
// con redondeo medio hacia arriba.
type InvoiceLine struct {
	ID          string
	InvoiceID   string
	LineNumber  int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal // 4 decimales
	Discount    decimal.Decimal // monto absoluto descontado de la línea
	TaxRate     decimal.Decimal // porcentaje ITBIS: 0, 16 o 18
	NetAmount   decimal.Decimal // (Quantity*UnitPrice - Discount) a 2 decimales
	TaxAmount   decimal.Decimal // NetAmount * TaxRate/100 a 2 decimales
}

// MontoBruto devuelve Quantity * UnitPrice sin redondear; es la base sobre la
// que se valida que el descuento no exceda la línea.
func (l *InvoiceLine) MontoBruto() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}
