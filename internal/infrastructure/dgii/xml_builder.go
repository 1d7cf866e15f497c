package dgii

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

// Formatos de fecha del estándar e-CF (día-mes-año).
const (
	fechaLayout     = "02-01-2006"
	fechaHoraLayout = "02-01-2006 15:04:05"
)

// XMLBuilderService construye el XML e-CF 1.0 (sin firma). La firma se añade
// después como último hijo del elemento raíz ECF.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el documento ECF a partir del comprobante validado.
func (s *XMLBuilderService) Build(bc *ECFBuildContext) ([]byte, error) {
	if bc == nil || bc.Invoice == nil || bc.Company == nil {
		return nil, fmt.Errorf("dgii: faltan invoice o company en el contexto")
	}
	if len(bc.Lines) == 0 {
		return nil, fmt.Errorf("dgii: comprobante sin líneas")
	}
	inv := bc.Invoice

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("ECF")
	root.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")

	enc := root.CreateElement("Encabezado")
	enc.CreateElement("Version").SetText("1.0")

	// ── IdDoc ──
	idDoc := enc.CreateElement("IdDoc")
	idDoc.CreateElement("TipoeCF").SetText(strconv.Itoa(int(inv.Tipo)))
	idDoc.CreateElement("eNCF").SetText(inv.ENCF)
	if bc.Range != nil && !bc.Range.DateTo.IsZero() {
		idDoc.CreateElement("FechaVencimientoSecuencia").SetText(bc.Range.DateTo.Format(fechaLayout))
	}
	idDoc.CreateElement("TipoIngresos").SetText("01")
	idDoc.CreateElement("TipoPago").SetText("1")

	// ── Emisor ──
	emisor := enc.CreateElement("Emisor")
	emisor.CreateElement("RNCEmisor").SetText(bc.Company.RNC)
	emisor.CreateElement("RazonSocialEmisor").SetText(bc.Company.Name)
	if bc.Company.TradeName != "" {
		emisor.CreateElement("NombreComercial").SetText(bc.Company.TradeName)
	}
	if bc.Company.Address != "" {
		emisor.CreateElement("DireccionEmisor").SetText(bc.Company.Address)
	}
	emisor.CreateElement("FechaEmision").SetText(inv.FechaEmision.Format(fechaLayout))

	// ── Comprador (se omite entero en consumidor final) ──
	if !inv.ConsumidorFinal() {
		comprador := enc.CreateElement("Comprador")
		comprador.CreateElement("RNCComprador").SetText(inv.BuyerTaxID)
		comprador.CreateElement("RazonSocialComprador").SetText(inv.BuyerName)
	}

	// ── Totales ──
	s.writeTotales(enc, inv, bc.Lines)

	// ── DetallesItems ──
	detalles := root.CreateElement("DetallesItems")
	for _, l := range bc.Lines {
		s.writeItem(detalles, l)
	}

	// ── InformacionReferencia (NC/ND) ──
	if inv.EsModificacion() {
		ref := root.CreateElement("InformacionReferencia")
		ref.CreateElement("NCFModificado").SetText(inv.ModifiedENCF)
		if inv.ModifiedDate != nil {
			ref.CreateElement("FechaNCFModificado").SetText(inv.ModifiedDate.Format(fechaLayout))
		}
		ref.CreateElement("CodigoModificacion").SetText(strconv.Itoa(inv.ModificationCode))
	}

	root.CreateElement("FechaHoraFirma").SetText(time.Now().Format(fechaHoraLayout))

	doc.Indent(2)
	return doc.WriteToBytes()
}

// writeTotales agrega las líneas por tasa: ITBIS1 = 18%, ITBIS2 = 16%; la
// tasa 0 va como monto exento.
func (s *XMLBuilderService) writeTotales(enc *etree.Element, inv *entity.Invoice, lines []*entity.InvoiceLine) {
	var gravado18, gravado16, exento, itbis18, itbis16 decimal.Decimal
	for _, l := range lines {
		switch l.TaxRate.IntPart() {
		case 18:
			gravado18 = gravado18.Add(l.NetAmount)
			itbis18 = itbis18.Add(l.TaxAmount)
		case 16:
			gravado16 = gravado16.Add(l.NetAmount)
			itbis16 = itbis16.Add(l.TaxAmount)
		default:
			exento = exento.Add(l.NetAmount)
		}
	}
	gravadoTotal := gravado18.Add(gravado16)

	tot := enc.CreateElement("Totales")
	if gravadoTotal.IsPositive() {
		tot.CreateElement("MontoGravadoTotal").SetText(monto(gravadoTotal))
	}
	if gravado18.IsPositive() {
		tot.CreateElement("MontoGravadoI1").SetText(monto(gravado18))
	}
	if gravado16.IsPositive() {
		tot.CreateElement("MontoGravadoI2").SetText(monto(gravado16))
	}
	if exento.IsPositive() {
		tot.CreateElement("MontoExento").SetText(monto(exento))
	}
	if gravado18.IsPositive() {
		tot.CreateElement("ITBIS1").SetText("18")
	}
	if gravado16.IsPositive() {
		tot.CreateElement("ITBIS2").SetText("16")
	}
	if gravadoTotal.IsPositive() {
		tot.CreateElement("TotalITBIS").SetText(monto(inv.TaxTotal))
	}
	if gravado18.IsPositive() {
		tot.CreateElement("TotalITBIS1").SetText(monto(itbis18))
	}
	if gravado16.IsPositive() {
		tot.CreateElement("TotalITBIS2").SetText(monto(itbis16))
	}
	tot.CreateElement("MontoTotal").SetText(monto(inv.GrandTotal))

	// Moneda extranjera: tipo de cambio y total en la otra moneda.
	if inv.Currency != "" && inv.Currency != "DOP" {
		om := enc.CreateElement("OtraMoneda")
		om.CreateElement("TipoMoneda").SetText(inv.Currency)
		om.CreateElement("TipoCambio").SetText(inv.ExchangeRate.StringFixed(4))
		om.CreateElement("MontoTotalOtraMoneda").SetText(monto(inv.GrandTotal.Div(inv.ExchangeRate).Round(2)))
	}
}

func (s *XMLBuilderService) writeItem(detalles *etree.Element, l *entity.InvoiceLine) {
	item := detalles.CreateElement("Item")
	item.CreateElement("NumeroLinea").SetText(strconv.Itoa(l.LineNumber))
	item.CreateElement("IndicadorFacturacion").SetText(indicadorFacturacion(l.TaxRate))
	item.CreateElement("NombreItem").SetText(l.Description)
	item.CreateElement("IndicadorBienoServicio").SetText("1")
	item.CreateElement("CantidadItem").SetText(l.Quantity.String())
	item.CreateElement("PrecioUnitarioItem").SetText(l.UnitPrice.StringFixed(4))
	if l.Discount.IsPositive() {
		item.CreateElement("DescuentoMonto").SetText(monto(l.Discount))
	}
	item.CreateElement("MontoItem").SetText(monto(l.NetAmount))
}

// indicadorFacturacion mapea la tasa ITBIS al catálogo del formato:
// 1 = gravado 18%, 2 = gravado 16%, 4 = exento.
func indicadorFacturacion(rate decimal.Decimal) string {
	switch rate.IntPart() {
	case 18:
		return "1"
	case 16:
		return "2"
	default:
		return "4"
	}
}

func monto(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// ECFFilename genera el nombre de archivo que exige la recepción DGII:
// {RNC}{eNCF}.xml, sin separadores.
func ECFFilename(company *entity.Company, inv *entity.Invoice) string {
	return company.RNC + inv.ENCF + ".xml"
}

// BuildQRURL arma la URL de consulta del timbre para el código QR de la
// representación impresa. Consumidor final usa el endpoint sin RNC comprador.
func BuildQRURL(env string, company *entity.Company, inv *entity.Invoice, fechaFirma time.Time, securityCode string) string {
	base := baseURLTesteCF
	switch env {
	case dgii.AmbienteCerteCF:
		base = baseURLCerteCF
	case dgii.AmbienteECF:
		base = baseURLECF
	}

	q := url.Values{}
	q.Set("RncEmisor", company.RNC)
	path := "/consultatimbrefc"
	if !inv.ConsumidorFinal() {
		path = "/consultatimbre"
		q.Set("RncComprador", inv.BuyerTaxID)
	}
	q.Set("ENCF", inv.ENCF)
	q.Set("FechaEmision", inv.FechaEmision.Format(fechaLayout))
	q.Set("MontoTotal", monto(inv.GrandTotal))
	q.Set("FechaFirma", fechaFirma.Format(fechaHoraLayout))
	q.Set("CodigoSeguridad", securityCode)
	return base + path + "?" + q.Encode()
}
