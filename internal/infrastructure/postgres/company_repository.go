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
)

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación del puerto CompanyRepository sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para emisores.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// Create persiste un nuevo emisor.
func (r *CompanyRepo) Create(ctx context.Context, company *entity.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO companies (id, name, trade_name, rnc, address, phone, email, environment, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`
	_, err := r.q.Exec(ctx, q,
		company.ID, company.Name, company.TradeName, company.RNC,
		company.Address, company.Phone, company.Email,
		company.Environment, company.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: RNC %s ya registrado: %v", domain.ErrDuplicate, company.RNC, err)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// GetByID obtiene un emisor por ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	const q = `
		SELECT id, name, trade_name, rnc, address, phone, email, environment, status, created_at, updated_at
		FROM companies WHERE id = $1`
	c, err := scanCompany(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

// GetByRNC obtiene un emisor por RNC.
func (r *CompanyRepo) GetByRNC(ctx context.Context, rnc string) (*entity.Company, error) {
	const q = `
		SELECT id, name, trade_name, rnc, address, phone, email, environment, status, created_at, updated_at
		FROM companies WHERE rnc = $1`
	c, err := scanCompany(r.q.QueryRow(ctx, q, rnc))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company by RNC: %w", err)
	}
	return c, nil
}

// Update actualiza un emisor existente.
func (r *CompanyRepo) Update(ctx context.Context, company *entity.Company) error {
	const q = `
		UPDATE companies
		SET name = $2, trade_name = $3, rnc = $4, address = $5, phone = $6,
		    email = $7, environment = $8, status = $9, updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, q,
		company.ID, company.Name, company.TradeName, company.RNC,
		company.Address, company.Phone, company.Email,
		company.Environment, company.Status,
	)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

// List devuelve emisores con paginación.
func (r *CompanyRepo) List(ctx context.Context, limit, offset int) ([]*entity.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, name, trade_name, rnc, address, phone, email, environment, status, created_at, updated_at
		FROM companies ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var list []*entity.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func scanCompany(row pgxScanner) (*entity.Company, error) {
	var c entity.Company
	err := row.Scan(
		&c.ID, &c.Name, &c.TradeName, &c.RNC,
		&c.Address, &c.Phone, &c.Email,
		&c.Environment, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
