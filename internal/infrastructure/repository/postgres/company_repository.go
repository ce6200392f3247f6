package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

// CompanyRepository reads companies owned by the wider product.
type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	var c domain.Company
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, name FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.UserID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get company", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	return &c, nil
}

// ValuationRepository reads valuations produced by the valuation workflow.
type ValuationRepository struct {
	db *sql.DB
}

func NewValuationRepository(db *sql.DB) *ValuationRepository {
	return &ValuationRepository{db: db}
}

func (r *ValuationRepository) GetByID(ctx context.Context, id string) (*domain.Valuation, error) {
	var v domain.Valuation
	var idsRaw, resultsRaw []byte
	err := r.db.QueryRowContext(ctx, `
SELECT id, company_id, user_id, document_ids, results, created_at
FROM valuations
WHERE id = $1
`, id).Scan(&v.ID, &v.CompanyID, &v.UserID, &idsRaw, &resultsRaw, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get valuation", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan valuation: %w", err)
	}
	if len(idsRaw) > 0 {
		if err := json.Unmarshal(idsRaw, &v.DocumentIDs); err != nil {
			return nil, fmt.Errorf("unmarshal valuation document ids: %w", err)
		}
	}
	v.Results = rawJSON(resultsRaw)
	return &v, nil
}
