package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO company_documents (id, company_id, user_id, name, file_path, file_type, document_type, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, doc.ID, doc.CompanyID, doc.UserID, doc.Name, doc.FilePath, doc.FileType, doc.DocumentType, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, company_id, user_id, name, file_path, file_type, document_type, created_at
FROM company_documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, company_id, user_id, name, file_path, file_type, document_type, created_at
FROM company_documents
WHERE company_id = $1
ORDER BY created_at DESC
`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list company documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company documents: %w", err)
	}
	return out, nil
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID,
		&doc.CompanyID,
		&doc.UserID,
		&doc.Name,
		&doc.FilePath,
		&doc.FileType,
		&doc.DocumentType,
		&doc.CreatedAt,
	)
	return doc, err
}
