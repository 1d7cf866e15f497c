package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest body para POST /api/invoices. El e-NCF no viene en el
// request: lo asigna el sistema consumiendo secuencia del rango autorizado.
type CreateInvoiceRequest struct {
	ECFType    int    `json:"ecf_type" validate:"required"`
	BuyerName  string `json:"buyer_name,omitempty" validate:"omitempty,max=200"`
	BuyerTaxID string `json:"buyer_tax_id,omitempty" validate:"omitempty,min=9,max=13"`
	IssueDate  string `json:"issue_date,omitempty"` // YYYY-MM-DD; vacío = hoy

	Currency     string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	ExchangeRate decimal.Decimal `json:"exchange_rate,omitempty"`

	// Totales declarados por el emisor (opcionales). Si vienen se comparan
	// contra los recalculados con la tolerancia DGII.
	NetTotal   decimal.Decimal `json:"net_total,omitempty"`
	TaxTotal   decimal.Decimal `json:"tax_total,omitempty"`
	GrandTotal decimal.Decimal `json:"grand_total,omitempty"`

	// Referencia de modificación, solo para notas de crédito/débito.
	ModifiedENCF     string `json:"modified_encf,omitempty"`
	ModifiedDate     string `json:"modified_date,omitempty"` // YYYY-MM-DD
	ModificationCode int    `json:"modification_code,omitempty" validate:"omitempty,min=1,max=5"`

	Lines []InvoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// InvoiceLineRequest línea de detalle del comprobante.
type InvoiceLineRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // 0, 16 o 18

	// Montos declarados (opcionales); vacíos = se adoptan los calculados.
	NetAmount decimal.Decimal `json:"net_amount,omitempty"`
	TaxAmount decimal.Decimal `json:"tax_amount,omitempty"`
}

// InvoiceResponse comprobante con detalle para GET /api/invoices/:id.
type InvoiceResponse struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	ECFType   int    `json:"ecf_type"`
	ENCF      string `json:"encf"`
	Status    string `json:"status"`
	IssueDate string `json:"issue_date"`

	BuyerName  string `json:"buyer_name,omitempty"`
	BuyerTaxID string `json:"buyer_tax_id,omitempty"`

	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	NetTotal     decimal.Decimal `json:"net_total"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	GrandTotal   decimal.Decimal `json:"grand_total"`

	ModifiedENCF     string `json:"modified_encf,omitempty"`
	ModificationCode int    `json:"modification_code,omitempty"`

	ToleranceExceeded bool       `json:"tolerance_exceeded"`
	TrackID           string     `json:"track_id,omitempty"`
	SecurityCode      string     `json:"security_code,omitempty"`
	QRData            string     `json:"qr_data,omitempty"`
	DGIIMessage       string     `json:"dgii_message,omitempty"`
	ContingencyAt     *time.Time `json:"contingency_at,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`

	Lines []InvoiceLineResponse `json:"lines,omitempty"`
}

// InvoiceLineResponse línea de detalle en la respuesta.
type InvoiceLineResponse struct {
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// InvoiceStatusDTO respuesta ligera para el polling de estado
// GET /api/invoices/:id/status. El cliente consulta hasta ver un estado
// terminal (ACEPTADO, ACEPTADO_CONDICIONAL, RECHAZADO, ANULADO o ERROR).
type InvoiceStatusDTO struct {
	ID                string `json:"id"`
	ENCF              string `json:"encf"`
	Status            string `json:"status"`
	ToleranceExceeded bool   `json:"tolerance_exceeded"`
	TrackID           string `json:"track_id,omitempty"`
	DGIIMessage       string `json:"dgii_message,omitempty"`
}

// VoidInvoiceRequest body para POST /api/invoices/:id/void.
type VoidInvoiceRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RegisterRangeRequest body para POST /api/sequences: registrar un rango de
// secuencias autorizado por la DGII.
type RegisterRangeRequest struct {
	ECFType    int    `json:"ecf_type" validate:"required"`
	AuthNumber string `json:"auth_number" validate:"required,max=50"`
	RangeFrom  int64  `json:"range_from" validate:"required,min=1"`
	RangeTo    int64  `json:"range_to" validate:"required,min=1"`
	DateFrom   string `json:"date_from" validate:"required"` // YYYY-MM-DD
	DateTo     string `json:"date_to" validate:"required"`   // YYYY-MM-DD
}

// SequenceRangeResponse rango en respuestas, con las secuencias restantes.
type SequenceRangeResponse struct {
	ID         string `json:"id"`
	CompanyID  string `json:"company_id"`
	ECFType    int    `json:"ecf_type"`
	AuthNumber string `json:"auth_number"`
	RangeFrom  int64  `json:"range_from"`
	RangeTo    int64  `json:"range_to"`
	Current    int64  `json:"current"`
	Available  int64  `json:"available"`
	DateFrom   string `json:"date_from"`
	DateTo     string `json:"date_to"`
	IsActive   bool   `json:"is_active"`
	Exhausted  bool   `json:"exhausted"`
	Expired    bool   `json:"expired"`
}
