package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Facturacion-ecf/internal/domain"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
)

var _ repository.ContingencyRepository = (*ContingencyRepo)(nil)

// ContingencyRepo implementa ContingencyRepository sobre PostgreSQL (usable
// con pool o tx). Los eventos se cierran con desenlace, nunca se borran.
type ContingencyRepo struct {
	q Querier
}

// NewContingencyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewContingencyRepository(q Querier) *ContingencyRepo {
	return &ContingencyRepo{q: q}
}

func (r *ContingencyRepo) Create(ctx context.Context, ev *entity.ContingencyEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO contingency_events
			(id, invoice_id, company_id, reason, started_at, resolved_at, outcome, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, now())`
	_, err := r.q.Exec(ctx, q,
		ev.ID, ev.InvoiceID, ev.CompanyID, ev.Reason,
		ev.StartedAt, ev.ResolvedAt, ev.Outcome,
	)
	if err != nil {
		return fmt.Errorf("insert contingency_event: %w", err)
	}
	return nil
}

func (r *ContingencyRepo) GetOpenByInvoice(ctx context.Context, invoiceID string) (*entity.ContingencyEvent, error) {
	const q = `
		SELECT id, invoice_id, company_id, reason, started_at, resolved_at, COALESCE(outcome, ''), created_at
		FROM contingency_events
		WHERE invoice_id = $1 AND resolved_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`
	ev, err := scanContingency(r.q.QueryRow(ctx, q, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get open contingency: %w", err)
	}
	return ev, nil
}

// Resolve cierra la contingencia abierta del comprobante. Idempotente: si ya
// está cerrada (o nunca existió) no afecta ninguna fila y no es error.
func (r *ContingencyRepo) Resolve(ctx context.Context, invoiceID, outcome string, resolvedAt time.Time) error {
	const q = `
		UPDATE contingency_events
		SET resolved_at = $2, outcome = $3
		WHERE invoice_id = $1 AND resolved_at IS NULL`
	_, err := r.q.Exec(ctx, q, invoiceID, resolvedAt, outcome)
	if err != nil {
		return fmt.Errorf("resolve contingency: %w", err)
	}
	return nil
}

// ListOpen lista contingencias abiertas, más antiguas primero, para que el
// monitor escale primero las más cercanas al vencimiento del plazo.
func (r *ContingencyRepo) ListOpen(ctx context.Context, limit int) ([]*entity.ContingencyEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, invoice_id, company_id, reason, started_at, resolved_at, COALESCE(outcome, ''), created_at
		FROM contingency_events
		WHERE resolved_at IS NULL
		ORDER BY started_at ASC
		LIMIT $1`
	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list open contingencies: %w", err)
	}
	defer rows.Close()
	var list []*entity.ContingencyEvent
	for rows.Next() {
		ev, err := scanContingency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contingency_event: %w", err)
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

func (r *ContingencyRepo) CountOpen(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM contingency_events WHERE resolved_at IS NULL`
	var n int64
	if err := r.q.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open contingencies: %w", err)
	}
	return n, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func scanContingency(row pgxScanner) (*entity.ContingencyEvent, error) {
	var ev entity.ContingencyEvent
	err := row.Scan(
		&ev.ID, &ev.InvoiceID, &ev.CompanyID, &ev.Reason,
		&ev.StartedAt, &ev.ResolvedAt, &ev.Outcome, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
