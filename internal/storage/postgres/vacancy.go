package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"vacancy_insight/internal/domain"
)

type VacancyStore struct {
	db *sqlx.DB
}

func NewVacancyStore(db *sqlx.DB) *VacancyStore {
	return &VacancyStore{db: db}
}

func (s *VacancyStore) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM vacancies WHERE source_url = $1)", sourceURL)
}

func (s *VacancyStore) TitleExists(ctx context.Context, title string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS(SELECT 1 FROM vacancies WHERE title = $1)", title)
}

func (s *VacancyStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	if err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, classify(err)
	}
	return exists, nil
}

// Insert stores the vacancy row and fills in its generated id and
// creation time.
func (s *VacancyStore) Insert(ctx context.Context, v *domain.Vacancy) error {
	query := `
		INSERT INTO vacancies (
			title, description, salary_from, salary_to, currency, location,
			raw_address, parsed_address, source_url, published_date, is_active,
			company_id, experience_id, work_format_id, work_schedule_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		RETURNING vacancy_id, created_at`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		v.Title,
		v.Description,
		v.SalaryFrom,
		v.SalaryTo,
		v.Currency,
		v.Location,
		v.RawAddress,
		v.ParsedAddress,
		v.SourceURL,
		v.PublishedDate,
		v.IsActive,
		v.CompanyID,
		v.ExperienceID,
		v.WorkFormatID,
		v.WorkScheduleID,
	).Scan(&v.ID, &v.CreatedAt)

	return classify(err)
}

func (s *VacancyStore) AttachSkills(ctx context.Context, vacancyID int64, links []domain.SkillLink) error {
	if len(links) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO vacancy_skills (vacancy_id, skill_id, is_mandatory) VALUES ")
	valueArgs := make([]any, 0, len(links)*2+1)
	valueArgs = append(valueArgs, vacancyID)

	for i, link := range links {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(strconv.Itoa(i*2 + 2))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(i*2 + 3))
		sb.WriteString(")")
		valueArgs = append(valueArgs, link.SkillID, link.IsMandatory)
	}
	sb.WriteString(` ON CONFLICT (vacancy_id, skill_id) DO UPDATE SET
		is_mandatory = vacancy_skills.is_mandatory OR EXCLUDED.is_mandatory`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), valueArgs...)
	return classify(err)
}

// GetByID loads a vacancy together with its skills.
func (s *VacancyStore) GetByID(ctx context.Context, id int64) (*domain.Vacancy, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		SELECT vacancy_id, title, description, salary_from, salary_to, currency,
			location, raw_address, parsed_address, source_url, published_date,
			is_active, company_id, experience_id, work_format_id, work_schedule_id,
			created_at
		FROM vacancies
		WHERE vacancy_id = $1`

	var v domain.Vacancy
	err := sqlx.GetContext(ctx, exec, &v, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vacancy %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err)
	}

	skillsQuery := `
		SELECT s.skill_id, s.name, vs.is_mandatory
		FROM vacancy_skills vs
		INNER JOIN skills s ON s.skill_id = vs.skill_id
		WHERE vs.vacancy_id = $1
		ORDER BY vs.is_mandatory DESC, s.name`

	if err := sqlx.SelectContext(ctx, exec, &v.Skills, skillsQuery, id); err != nil {
		return nil, classify(err)
	}

	return &v, nil
}
