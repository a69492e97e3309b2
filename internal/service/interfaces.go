package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"vacancy_insight/internal/domain"
)

type VacancyStore interface {
	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)
	TitleExists(ctx context.Context, title string) (bool, error)
	Insert(ctx context.Context, vacancy *domain.Vacancy) error
	AttachSkills(ctx context.Context, vacancyID int64, links []domain.SkillLink) error
	GetByID(ctx context.Context, id int64) (*domain.Vacancy, error)
}

type CompanyStore interface {
	FindByName(ctx context.Context, name string) (*domain.Company, error)
	Create(ctx context.Context, company *domain.Company) error
}

// ReferenceStore covers the lookup tables: experiences, work formats,
// work schedules and skills. MissingIDs also understands companies.
type ReferenceStore interface {
	FindByName(ctx context.Context, kind domain.RefKind, name string) (*domain.Reference, error)
	Create(ctx context.Context, ref *domain.Reference) error
	MissingIDs(ctx context.Context, kind domain.RefKind, ids []int64) ([]int64, error)
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)
	// Record stamps the poll time and adds created to the running total.
	Record(ctx context.Context, sourceID string, polledAt time.Time, created int) error
}

type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.RawVacancy, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, vacancy *domain.Vacancy) error
	Close() error
}
