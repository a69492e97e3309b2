package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"vacancy_insight/internal/domain"
	"vacancy_insight/internal/extract"
	"vacancy_insight/internal/normalize"
)

const (
	// ImportedCompanyDescription marks companies created from parsed
	// postings rather than entered by hand.
	ImportedCompanyDescription = "Imported from hh.ru"

	// Unspecified stands in for a required name the source left empty.
	Unspecified = "Not specified"

	titleTimeLayout = "2006-01-02 15:04:05"
	maxTitleSuffix  = 100
)

type IngestService struct {
	source     Source
	vacancies  VacancyStore
	companies  CompanyStore
	references ReferenceStore
	syncState  SyncStateStore
	txManager  TransactionManager
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewIngestService wires the pipeline. publisher may be nil.
func NewIngestService(
	source Source,
	vacancies VacancyStore,
	companies CompanyStore,
	references ReferenceStore,
	syncState SyncStateStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		source:     source,
		vacancies:  vacancies,
		companies:  companies,
		references: references,
		syncState:  syncState,
		txManager:  txManager,
		publisher:  publisher,
		logger:     logger.With("component", "ingest", "source", source.ID()),
		now:        time.Now,
	}
}

// IngestFromQuery fetches full postings for q and ingests them.
func (s *IngestService) IngestFromQuery(ctx context.Context, q domain.SearchQuery) (*domain.IngestResult, error) {
	q.Light = false

	items, err := s.source.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch vacancies: %w", err)
	}

	stats, err := s.IngestBatch(ctx, items)
	if err != nil {
		return nil, err
	}

	return &domain.IngestResult{
		Parsed:  len(items),
		Created: stats.Created,
		Skipped: stats.Skipped,
	}, nil
}

// IngestBatch stores every item whose source URL is not yet known, in input
// order and inside a single transaction. Items without a URL and items
// already stored are counted as skipped. Any failure rolls back the whole
// batch.
func (s *IngestService) IngestBatch(ctx context.Context, items []domain.RawVacancy) (*domain.IngestStats, error) {
	startTime := time.Now()
	stats := &domain.IngestStats{SourceID: s.source.ID()}

	var created []*domain.Vacancy

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for i := range items {
			raw := &items[i]

			sourceURL := strings.TrimSpace(raw.SourceURL)
			if sourceURL == "" {
				stats.Skipped++
				continue
			}

			exists, err := s.vacancies.ExistsBySourceURL(txCtx, sourceURL)
			if err != nil {
				return fmt.Errorf("check source url: %w", err)
			}
			if exists {
				stats.Skipped++
				continue
			}

			vacancy, err := s.createFromParsed(txCtx, raw)
			if err != nil {
				return fmt.Errorf("create vacancy %q: %w", sourceURL, err)
			}
			created = append(created, vacancy)
			stats.Created++
		}

		return s.updateSyncState(txCtx, stats.Created)
	})
	if err != nil {
		return nil, err
	}

	stats.Published = s.publish(ctx, created)
	stats.Duration = time.Since(startTime)

	s.logger.Info("batch ingested",
		"items", len(items),
		"created", stats.Created,
		"skipped", stats.Skipped,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return stats, nil
}

// Create stores a vacancy whose references are supplied by the caller. Each
// reference is checked before insert and the first missing one is reported
// as a *domain.NotFoundError.
func (s *IngestService) Create(ctx context.Context, spec domain.VacancySpec) (*domain.Vacancy, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	var vacancy *domain.Vacancy

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkReferences(txCtx, spec); err != nil {
			return err
		}

		v := vacancyFromSpec(spec)
		if err := s.vacancies.Insert(txCtx, v); err != nil {
			return fmt.Errorf("insert vacancy: %w", err)
		}

		if len(spec.Skills) > 0 {
			if err := s.vacancies.AttachSkills(txCtx, v.ID, spec.Skills); err != nil {
				return fmt.Errorf("attach skills: %w", err)
			}
		}

		stored, err := s.vacancies.GetByID(txCtx, v.ID)
		if err != nil {
			return fmt.Errorf("load vacancy: %w", err)
		}
		vacancy = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, []*domain.Vacancy{vacancy})

	s.logger.Info("vacancy created", "vacancy_id", vacancy.ID, "title", vacancy.Title)

	return vacancy, nil
}

func validateSpec(spec domain.VacancySpec) error {
	if strings.TrimSpace(spec.Title) == "" {
		return &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(spec.SourceURL) == "" {
		return &domain.ValidationError{Field: "source_url", Reason: "must not be empty"}
	}
	return nil
}

func (s *IngestService) checkReferences(ctx context.Context, spec domain.VacancySpec) error {
	single := []struct {
		kind domain.RefKind
		id   int64
	}{
		{domain.RefCompany, spec.CompanyID},
		{domain.RefExperience, spec.ExperienceID},
		{domain.RefWorkFormat, spec.WorkFormatID},
		{domain.RefWorkSchedule, spec.WorkScheduleID},
	}

	for _, ref := range single {
		missing, err := s.references.MissingIDs(ctx, ref.kind, []int64{ref.id})
		if err != nil {
			return fmt.Errorf("check %s: %w", ref.kind, err)
		}
		if len(missing) > 0 {
			return &domain.NotFoundError{Entity: ref.kind, IDs: missing}
		}
	}

	if len(spec.Skills) == 0 {
		return nil
	}

	skillIDs := make([]int64, 0, len(spec.Skills))
	for _, link := range spec.Skills {
		if !slices.Contains(skillIDs, link.SkillID) {
			skillIDs = append(skillIDs, link.SkillID)
		}
	}

	missing, err := s.references.MissingIDs(ctx, domain.RefSkill, skillIDs)
	if err != nil {
		return fmt.Errorf("check skills: %w", err)
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return &domain.NotFoundError{Entity: domain.RefSkill, IDs: missing}
	}
	return nil
}

func vacancyFromSpec(spec domain.VacancySpec) *domain.Vacancy {
	v := &domain.Vacancy{
		Title:          strings.TrimSpace(spec.Title),
		Description:    spec.Description,
		SalaryFrom:     spec.SalaryFrom,
		SalaryTo:       spec.SalaryTo,
		Location:       Unspecified,
		RawAddress:     spec.RawAddress,
		ParsedAddress:  spec.ParsedAddress,
		SourceURL:      strings.TrimSpace(spec.SourceURL),
		PublishedDate:  spec.PublishedDate,
		IsActive:       true,
		CompanyID:      spec.CompanyID,
		ExperienceID:   spec.ExperienceID,
		WorkFormatID:   spec.WorkFormatID,
		WorkScheduleID: spec.WorkScheduleID,
	}
	if spec.Location != nil && strings.TrimSpace(*spec.Location) != "" {
		v.Location = strings.TrimSpace(*spec.Location)
	}
	if spec.IsActive != nil {
		v.IsActive = *spec.IsActive
	}
	if spec.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*spec.Currency))
		v.Currency = &currency
	}
	return v
}

func (s *IngestService) createFromParsed(ctx context.Context, raw *domain.RawVacancy) (*domain.Vacancy, error) {
	company, err := s.resolveCompany(ctx, raw.Company)
	if err != nil {
		return nil, err
	}

	experience := normalize.Experience(strings.TrimSpace(raw.Experience))
	if experience == "" {
		experience = Unspecified
	}
	experienceID, err := s.resolveReference(ctx, domain.RefExperience, experience)
	if err != nil {
		return nil, err
	}
	workFormatID, err := s.resolveReference(ctx, domain.RefWorkFormat, string(normalize.WorkFormatOf(raw.WorkFormat)))
	if err != nil {
		return nil, err
	}
	workScheduleID, err := s.resolveReference(ctx, domain.RefWorkSchedule, string(normalize.WorkScheduleOf(raw.WorkSchedule)))
	if err != nil {
		return nil, err
	}

	description := extract.StripMarkup(raw.Description)
	salary := normalize.Salary(raw.Salary)

	baseTitle := strings.TrimSpace(raw.Title)
	if baseTitle == "" {
		baseTitle = Unspecified
	}
	title, err := s.uniqueTitle(ctx, baseTitle, company.Name)
	if err != nil {
		return nil, err
	}

	v := &domain.Vacancy{
		Title:          title,
		Description:    description,
		SalaryFrom:     salary.From,
		SalaryTo:       salary.To,
		Currency:       salary.Currency,
		Location:       Unspecified,
		RawAddress:     optional(raw.RawAddress),
		SourceURL:      strings.TrimSpace(raw.SourceURL),
		PublishedDate:  normalize.Timestamp(raw.PublishedAt),
		IsActive:       true,
		CompanyID:      company.ID,
		ExperienceID:   experienceID,
		WorkFormatID:   workFormatID,
		WorkScheduleID: workScheduleID,
	}
	if loc := strings.TrimSpace(raw.Location); loc != "" {
		v.Location = loc
	}

	if err := s.vacancies.Insert(ctx, v); err != nil {
		return nil, fmt.Errorf("insert vacancy: %w", err)
	}

	skills := extract.MergeSkills(raw.KeySkills, extract.Skills(description))
	if len(skills) == 0 {
		return v, nil
	}

	links := make([]domain.SkillLink, 0, len(skills))
	for _, name := range skills {
		id, err := s.resolveReference(ctx, domain.RefSkill, name)
		if err != nil {
			return nil, err
		}
		// Imported skills are all treated as requirements
		links = append(links, domain.SkillLink{SkillID: id, IsMandatory: true})
		v.Skills = append(v.Skills, domain.VacancySkill{SkillID: id, Name: name, IsMandatory: true})
	}

	if err := s.vacancies.AttachSkills(ctx, v.ID, links); err != nil {
		return nil, fmt.Errorf("attach skills: %w", err)
	}

	return v, nil
}

func (s *IngestService) resolveCompany(ctx context.Context, raw domain.RawCompany) (*domain.Company, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = Unspecified
	}

	company, err := s.companies.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find company: %w", err)
	}
	if company != nil {
		return company, nil
	}

	company = &domain.Company{
		Name:        name,
		Website:     optional(raw.Website),
		Description: ImportedCompanyDescription,
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	s.logger.Debug("company created", "company_id", company.ID, "name", name)
	return company, nil
}

func (s *IngestService) resolveReference(ctx context.Context, kind domain.RefKind, name string) (int64, error) {
	ref, err := s.references.FindByName(ctx, kind, name)
	if err != nil {
		return 0, fmt.Errorf("find %s: %w", kind, err)
	}
	if ref != nil {
		return ref.ID, nil
	}

	ref = &domain.Reference{Kind: kind, Name: name}
	if kind == domain.RefExperience {
		ref.Rank = normalize.ExperienceRank(name)
	}
	if err := s.references.Create(ctx, ref); err != nil {
		return 0, fmt.Errorf("create %s: %w", kind, err)
	}

	s.logger.Debug("reference created", "kind", kind, "id", ref.ID, "name", name)
	return ref.ID, nil
}

// uniqueTitle returns the first free title among the raw title, the title
// with the company name, and the title with company name and creation time.
// Should all three be taken, a counter is appended to the last form.
func (s *IngestService) uniqueTitle(ctx context.Context, title, company string) (string, error) {
	stamped := fmt.Sprintf("%s (%s, %s)", title, company, s.now().Format(titleTimeLayout))
	candidates := []string{
		title,
		fmt.Sprintf("%s (%s)", title, company),
		stamped,
	}
	for n := 2; n <= maxTitleSuffix; n++ {
		candidates = append(candidates, fmt.Sprintf("%s #%d", stamped, n))
	}

	for _, candidate := range candidates {
		taken, err := s.vacancies.TitleExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check title: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no free title for %q", domain.ErrConflict, title)
}

func (s *IngestService) updateSyncState(ctx context.Context, created int) error {
	if err := s.syncState.Record(ctx, s.source.ID(), s.now(), created); err != nil {
		return fmt.Errorf("record poll state: %w", err)
	}
	return nil
}

// publish announces committed vacancies. Failures are logged only; the rows
// are already stored.
func (s *IngestService) publish(ctx context.Context, vacancies []*domain.Vacancy) int {
	if s.publisher == nil {
		return 0
	}

	published := 0
	for _, v := range vacancies {
		if err := s.publisher.Publish(ctx, v); err != nil {
			s.logger.Warn("publish vacancy failed", "vacancy_id", v.ID, "error", err)
			continue
		}
		published++
	}
	return published
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
