package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"vacancy_insight/internal/domain"
)

type CompanyStore struct {
	db *sqlx.DB
}

func NewCompanyStore(db *sqlx.DB) *CompanyStore {
	return &CompanyStore{db: db}
}

// FindByName returns nil without error when no company has exactly this name.
func (s *CompanyStore) FindByName(ctx context.Context, name string) (*domain.Company, error) {
	var company domain.Company
	query := `SELECT company_id, name, website, description FROM companies WHERE name = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &company, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &company, nil
}

func (s *CompanyStore) Create(ctx context.Context, company *domain.Company) error {
	query := `
		INSERT INTO companies (name, website, description)
		VALUES ($1, $2, $3)
		RETURNING company_id`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		company.Name,
		company.Website,
		company.Description,
	).Scan(&company.ID)

	return classify(err)
}
