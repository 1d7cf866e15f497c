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

var _ repository.SequenceRangeRepository = (*SequenceRangeRepo)(nil)

// SequenceRangeRepo implementa SequenceRangeRepository sobre PostgreSQL
// (usable con pool o tx).
type SequenceRangeRepo struct {
	q Querier
}

// NewSequenceRangeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSequenceRangeRepository(q Querier) *SequenceRangeRepo {
	return &SequenceRangeRepo{q: q}
}

func (r *SequenceRangeRepo) Create(ctx context.Context, rg *entity.SequenceRange) error {
	if rg.ID == "" {
		rg.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO sequence_ranges
			(id, company_id, ecf_type, auth_number, range_from, range_to, current_number, date_from, date_to, is_active, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := r.q.Exec(ctx, q,
		rg.ID, rg.CompanyID, int(rg.Tipo), rg.AuthNumber,
		rg.RangeFrom, rg.RangeTo, rg.Current,
		rg.DateFrom, rg.DateTo, rg.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: autorización ya registrada: %v", domain.ErrDuplicate, err)
		}
		return fmt.Errorf("insert sequence_range: %w", err)
	}
	return nil
}

func (r *SequenceRangeRepo) GetByID(ctx context.Context, id string) (*entity.SequenceRange, error) {
	const q = `
		SELECT id, company_id, ecf_type, auth_number, range_from, range_to,
		       current_number, date_from, date_to, is_active, created_at, updated_at
		FROM sequence_ranges WHERE id = $1`
	rg, err := scanRange(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sequence_range by id: %w", err)
	}
	return rg, nil
}

// LockForAllocation es la sección crítica de la asignación de e-NCF. Bloquea
// con FOR UPDATE todos los rangos activos de (empresa, tipo) en orden de id,
// de modo que transacciones concurrentes serialicen en el mismo orden y no se
// bloqueen entre sí. Debe llamarse dentro de una transacción.
func (r *SequenceRangeRepo) LockForAllocation(ctx context.Context, companyID string, tipo dgii.TipoECF) ([]*entity.SequenceRange, error) {
	const q = `
		SELECT id, company_id, ecf_type, auth_number, range_from, range_to,
		       current_number, date_from, date_to, is_active, created_at, updated_at
		FROM sequence_ranges
		WHERE company_id = $1
		  AND ecf_type   = $2
		  AND is_active  = true
		ORDER BY id
		FOR UPDATE`
	rows, err := r.q.Query(ctx, q, companyID, int(tipo))
	if err != nil {
		if isSerializationFailure(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrConflictoAsignacion, err)
		}
		return nil, fmt.Errorf("lock sequence_ranges: %w", err)
	}
	defer rows.Close()
	var list []*entity.SequenceRange
	for rows.Next() {
		rg, err := scanRange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sequence_range: %w", err)
		}
		list = append(list, rg)
	}
	return list, rows.Err()
}

func (r *SequenceRangeRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.SequenceRange, error) {
	const q = `
		SELECT id, company_id, ecf_type, auth_number, range_from, range_to,
		       current_number, date_from, date_to, is_active, created_at, updated_at
		FROM sequence_ranges
		WHERE company_id = $1
		ORDER BY ecf_type, date_from DESC`
	rows, err := r.q.Query(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list sequence_ranges: %w", err)
	}
	defer rows.Close()
	var list []*entity.SequenceRange
	for rows.Next() {
		rg, err := scanRange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sequence_range: %w", err)
		}
		list = append(list, rg)
	}
	return list, rows.Err()
}

// UpdateCurrent avanza el contador con guarda optimista: solo escribe si
// current_number todavía vale prev. Cero filas afectadas significa que otra
// transacción consumió la misma secuencia y el llamador debe reintentar.
func (r *SequenceRangeRepo) UpdateCurrent(ctx context.Context, id string, prev, next int64) error {
	const q = `
		UPDATE sequence_ranges
		SET current_number = $3, updated_at = now()
		WHERE id = $1 AND current_number = $2`
	tag, err := r.q.Exec(ctx, q, id, prev, next)
	if err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", domain.ErrConflictoAsignacion, err)
		}
		return fmt.Errorf("update sequence_range current: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rango %s avanzó de %d por otra transacción", domain.ErrConflictoAsignacion, id, prev)
	}
	return nil
}

func (r *SequenceRangeRepo) Update(ctx context.Context, rg *entity.SequenceRange) error {
	const q = `
		UPDATE sequence_ranges
		SET auth_number = $2, date_from = $3, date_to = $4, is_active = $5, updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, q,
		rg.ID, rg.AuthNumber, rg.DateFrom, rg.DateTo, rg.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update sequence_range: %w", err)
	}
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar los scan helpers.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanRange(row pgxScanner) (*entity.SequenceRange, error) {
	var rg entity.SequenceRange
	var tipo int
	err := row.Scan(
		&rg.ID, &rg.CompanyID, &tipo, &rg.AuthNumber,
		&rg.RangeFrom, &rg.RangeTo, &rg.Current,
		&rg.DateFrom, &rg.DateTo,
		&rg.IsActive, &rg.CreatedAt, &rg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rg.Tipo = dgii.TipoECF(tipo)
	return &rg, nil
}
