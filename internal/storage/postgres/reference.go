package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"vacancy_insight/internal/domain"
)

type refTable struct {
	name     string
	idColumn string
	rank     string
	category string
}

var refTables = map[domain.RefKind]refTable{
	domain.RefCompany:      {name: "companies", idColumn: "company_id", rank: "0", category: "NULL::varchar"},
	domain.RefExperience:   {name: "experiences", idColumn: "experience_id", rank: "rank", category: "NULL::varchar"},
	domain.RefWorkFormat:   {name: "work_formats", idColumn: "work_format_id", rank: "0", category: "NULL::varchar"},
	domain.RefWorkSchedule: {name: "work_schedules", idColumn: "work_schedule_id", rank: "0", category: "NULL::varchar"},
	domain.RefSkill:        {name: "skills", idColumn: "skill_id", rank: "0", category: "category"},
}

func lookup(kind domain.RefKind) (refTable, error) {
	t, ok := refTables[kind]
	if !ok {
		return refTable{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	return t, nil
}

// ReferenceStore serves the experience, work format, work schedule and skill
// lookup tables. Names are matched case-insensitively.
type ReferenceStore struct {
	db *sqlx.DB
}

func NewReferenceStore(db *sqlx.DB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

func (s *ReferenceStore) FindByName(ctx context.Context, kind domain.RefKind, name string) (*domain.Reference, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s AS id, name, %s AS rank, %s AS category
		FROM %s
		WHERE LOWER(name) = LOWER($1)
		ORDER BY %s
		LIMIT 1`, t.idColumn, t.rank, t.category, t.name, t.idColumn)

	var ref domain.Reference
	err = sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &ref, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	ref.Kind = kind
	return &ref, nil
}

func (s *ReferenceStore) Create(ctx context.Context, ref *domain.Reference) error {
	var query string
	args := []any{ref.Name}

	switch ref.Kind {
	case domain.RefExperience:
		query = `INSERT INTO experiences (name, rank) VALUES ($1, $2) RETURNING experience_id`
		args = append(args, ref.Rank)
	case domain.RefWorkFormat:
		query = `INSERT INTO work_formats (name) VALUES ($1) RETURNING work_format_id`
	case domain.RefWorkSchedule:
		query = `INSERT INTO work_schedules (name) VALUES ($1) RETURNING work_schedule_id`
	case domain.RefSkill:
		query = `INSERT INTO skills (name, category) VALUES ($1, $2) RETURNING skill_id`
		args = append(args, ref.Category)
	default:
		return fmt.Errorf("cannot create reference of kind %q", ref.Kind)
	}

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, args...).Scan(&ref.ID)
	return classify(err)
}

// MissingIDs returns, in ascending order, the ids that have no row in the
// table of the given kind.
func (s *ReferenceStore) MissingIDs(ctx context.Context, kind domain.RefKind, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT u.id
		FROM UNNEST($1::bigint[]) AS u(id)
		WHERE NOT EXISTS (SELECT 1 FROM %s t WHERE t.%s = u.id)
		ORDER BY u.id`, t.name, t.idColumn)

	var missing []int64
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &missing, query, pq.Array(ids)); err != nil {
		return nil, classify(err)
	}
	return missing, nil
}
