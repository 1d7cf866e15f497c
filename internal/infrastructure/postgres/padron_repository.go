package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/Facturacion-ecf/internal/domain/entity"
	"github.com/jhoicas/Facturacion-ecf/internal/domain/repository"
)

var _ repository.PadronRepository = (*PadronRepo)(nil)

// PadronRepo consulta de solo lectura sobre la tabla dgii_padron.
type PadronRepo struct {
	q Querier
}

// NewPadronRepository construye el adaptador de consulta del padrón.
func NewPadronRepository(q Querier) *PadronRepo {
	return &PadronRepo{q: q}
}

// GetByRNC busca un contribuyente por RNC o cédula-RNC exacto.
func (r *PadronRepo) GetByRNC(ctx context.Context, rnc string) (*entity.PadronEntry, error) {
	const q = `
		SELECT rnc, name, trade_name, activity, status
		FROM dgii_padron WHERE rnc = $1`
	p, err := scanPadronEntry(r.q.QueryRow(ctx, q, rnc))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get padron entry: %w", err)
	}
	return p, nil
}

// SearchByName busca contribuyentes por razón social o nombre comercial
// (coincidencia parcial, sin distinguir mayúsculas).
func (r *PadronRepo) SearchByName(ctx context.Context, nombre string, limit int) ([]*entity.PadronEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT rnc, name, trade_name, activity, status
		FROM dgii_padron
		WHERE name ILIKE '%' || $1 || '%' OR trade_name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2`
	rows, err := r.q.Query(ctx, q, nombre, limit)
	if err != nil {
		return nil, fmt.Errorf("search padron: %w", err)
	}
	defer rows.Close()

	var list []*entity.PadronEntry
	for rows.Next() {
		p, err := scanPadronEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan padron entry: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Count devuelve el total de contribuyentes cargados; 0 delata un padrón sin
// seed.
func (r *PadronRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM dgii_padron`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count padron: %w", err)
	}
	return n, nil
}

func scanPadronEntry(row pgxScanner) (*entity.PadronEntry, error) {
	var p entity.PadronEntry
	if err := row.Scan(&p.RNC, &p.Name, &p.TradeName, &p.Activity, &p.Status); err != nil {
		return nil, err
	}
	return &p, nil
}
