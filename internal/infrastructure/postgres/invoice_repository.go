package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
	"github.com/jhoicas/Facturacion-ecf/pkg/dgii"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementa InvoiceRepository sobre PostgreSQL (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Columnas de la cabecera en el orden que espera scanInvoice. Los textos
// opcionales van con COALESCE para escanear directo a string.
const invoiceColumns = `
	id, company_id, ecf_type, encf, sequence_number, range_id, issued_at,
	COALESCE(buyer_name, ''), COALESCE(buyer_tax_id, ''),
	currency, exchange_rate, net_total, tax_total, grand_total,
	COALESCE(modified_encf, ''), modified_date, modification_code,
	status, tolerance_exceeded,
	COALESCE(track_id, ''), COALESCE(security_code, ''),
	COALESCE(xml_signed, ''), COALESCE(qr_data, ''), COALESCE(dgii_message, ''),
	contingency_at, submitted_at, created_at, updated_at`

// Create persiste cabecera y líneas. Se invoca dentro de la misma transacción
// que avanza el contador del rango: comprobante y secuencia consumida se
// confirman juntos o ninguno.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice, lines []*entity.InvoiceLine) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO invoices
			(id, company_id, ecf_type, encf, sequence_number, range_id, issued_at,
			 buyer_name, buyer_tax_id, currency, exchange_rate,
			 net_total, tax_total, grand_total,
			 modified_encf, modified_date, modification_code,
			 status, tolerance_exceeded,
			 track_id, security_code, xml_signed, qr_data, dgii_message,
			 contingency_at, submitted_at, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			 $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, now(), now())`
	_, err := r.q.Exec(ctx, q,
		inv.ID, inv.CompanyID, int(inv.Tipo), inv.ENCF, inv.Secuencia, inv.RangeID, inv.FechaEmision,
		nullIfEmpty(inv.BuyerName), nullIfEmpty(inv.BuyerTaxID),
		inv.Currency, inv.ExchangeRate,
		inv.NetTotal, inv.TaxTotal, inv.GrandTotal,
		nullIfEmpty(inv.ModifiedENCF), inv.ModifiedDate, inv.ModificationCode,
		string(inv.Status), inv.ToleranciaExcedida,
		nullIfEmpty(inv.TrackID), nullIfEmpty(inv.SecurityCode),
		nullIfEmpty(inv.XMLSigned), nullIfEmpty(inv.QRData), nullIfEmpty(inv.DGIIMessage),
		inv.ContingencyAt, inv.SubmittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: e-NCF %s ya emitido: %v", domain.ErrDuplicate, inv.ENCF, err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	for _, l := range lines {
		if err := r.createLine(ctx, inv.ID, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *InvoiceRepo) createLine(ctx context.Context, invoiceID string, l *entity.InvoiceLine) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.InvoiceID = invoiceID
	const q = `
		INSERT INTO invoice_lines
			(id, invoice_id, line_number, description, quantity, unit_price, discount, tax_rate, net_amount, tax_amount)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, q,
		l.ID, l.InvoiceID, l.LineNumber, l.Description,
		l.Quantity, l.UnitPrice, l.Discount, l.TaxRate,
		l.NetAmount, l.TaxAmount,
	)
	if err != nil {
		return fmt.Errorf("insert invoice line %d: %w", l.LineNumber, err)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice by id: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepo) GetByENCF(ctx context.Context, companyID, encf string) (*entity.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = $1 AND encf = $2`
	inv, err := scanInvoice(r.q.QueryRow(ctx, q, companyID, encf))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice by encf: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepo) GetLines(ctx context.Context, invoiceID string) ([]*entity.InvoiceLine, error) {
	const q = `
		SELECT id, invoice_id, line_number, description, quantity, unit_price, discount, tax_rate, net_amount, tax_amount
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_number`
	rows, err := r.q.Query(ctx, q, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(
			&l.ID, &l.InvoiceID, &l.LineNumber, &l.Description,
			&l.Quantity, &l.UnitPrice, &l.Discount, &l.TaxRate,
			&l.NetAmount, &l.TaxAmount,
		); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// List devuelve comprobantes de una empresa, más recientes primero. Los
// filtros vacíos (status "", tipo 0) no acotan.
func (r *InvoiceRepo) List(ctx context.Context, companyID string, f repository.InvoiceFilter) ([]*entity.Invoice, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	q := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE company_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3 = 0  OR ecf_type = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`
	rows, err := r.q.Query(ctx, q, companyID, string(f.Status), int(f.Tipo), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

// ListByStatus alimenta los barridos del worker: comprobantes de todas las
// empresas en un estado dado, más antiguos primero para drenar en orden.
func (r *InvoiceRepo) ListByStatus(ctx context.Context, status entity.ECFStatus, limit int) ([]*entity.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = $1
		ORDER BY updated_at ASC
		LIMIT $2`
	rows, err := r.q.Query(ctx, q, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices by status: %w", err)
	}
	defer rows.Close()
	return collectInvoices(rows)
}

// UpdateStatus persiste estado y campos DGII con guarda optimista sobre el
// estado previo. Cero filas afectadas significa que otro proceso movió el
// comprobante primero; el llamador decide si recargar o descartar su
// desenlace. Así dos resultados terminales nunca se pisan.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, inv *entity.Invoice, prev entity.ECFStatus) error {
	const q = `
		UPDATE invoices
		SET status             = $3,
		    tolerance_exceeded = $4,
		    track_id           = COALESCE($5, track_id),
		    security_code      = COALESCE($6, security_code),
		    xml_signed         = COALESCE($7, xml_signed),
		    qr_data            = COALESCE($8, qr_data),
		    dgii_message       = $9,
		    contingency_at     = $10,
		    submitted_at       = $11,
		    updated_at         = now()
		WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(ctx, q,
		inv.ID, string(prev),
		string(inv.Status), inv.ToleranciaExcedida,
		nullIfEmpty(inv.TrackID), nullIfEmpty(inv.SecurityCode),
		nullIfEmpty(inv.XMLSigned), nullIfEmpty(inv.QRData),
		nullIfEmpty(inv.DGIIMessage),
		inv.ContingencyAt, inv.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: comprobante %s ya no está en %s", domain.ErrConflict, inv.ID, prev)
	}
	return nil
}

// CountByStatus agrega comprobantes por estado para el panel de salud.
func (r *InvoiceRepo) CountByStatus(ctx context.Context) (map[entity.ECFStatus]int64, error) {
	const q = `SELECT status, COUNT(*) FROM invoices GROUP BY status`
	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count invoices by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[entity.ECFStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[entity.ECFStatus(status)] = n
	}
	return counts, rows.Err()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func scanInvoice(row pgxScanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var tipo int
	var status string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &tipo, &inv.ENCF, &inv.Secuencia, &inv.RangeID, &inv.FechaEmision,
		&inv.BuyerName, &inv.BuyerTaxID,
		&inv.Currency, &inv.ExchangeRate,
		&inv.NetTotal, &inv.TaxTotal, &inv.GrandTotal,
		&inv.ModifiedENCF, &inv.ModifiedDate, &inv.ModificationCode,
		&status, &inv.ToleranciaExcedida,
		&inv.TrackID, &inv.SecurityCode,
		&inv.XMLSigned, &inv.QRData, &inv.DGIIMessage,
		&inv.ContingencyAt, &inv.SubmittedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Tipo = dgii.TipoECF(tipo)
	inv.Status = entity.ECFStatus(status)
	return &inv, nil
}

func collectInvoices(rows pgx.Rows) ([]*entity.Invoice, error) {
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
