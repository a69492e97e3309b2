package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vacancy_insight/internal/domain"
	"vacancy_insight/internal/normalize"
	"vacancy_insight/internal/service/mocks"
	"vacancy_insight/testdata/utils"
)

type IngestServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source     *mocks.MockSource
	vacancies  *mocks.MockVacancyStore
	companies  *mocks.MockCompanyStore
	references *mocks.MockReferenceStore
	syncState  *mocks.MockSyncStateStore
	txManager  *mocks.MockTransactionManager
	publisher  *mocks.MockPublisher

	service *IngestService
	now     time.Time
	logger  *slog.Logger
}

func (s *IngestServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.vacancies = mocks.NewMockVacancyStore(s.ctrl)
	s.companies = mocks.NewMockCompanyStore(s.ctrl)
	s.references = mocks.NewMockReferenceStore(s.ctrl)
	s.syncState = mocks.NewMockSyncStateStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.now = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)

	s.source.EXPECT().ID().Return("hh").AnyTimes()
	s.source.EXPECT().Name().Return("HeadHunter").AnyTimes()

	s.service = NewIngestService(
		s.source,
		s.vacancies,
		s.companies,
		s.references,
		s.syncState,
		s.txManager,
		s.publisher,
		s.logger,
	)
	s.service.now = func() time.Time { return s.now }
}

func (s *IngestServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestIngestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IngestServiceTestSuite))
}

func (s *IngestServiceTestSuite) expectTransaction() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func (s *IngestServiceTestSuite) expectSyncState(created int) {
	s.syncState.EXPECT().Record(gomock.Any(), "hh", s.now, created).Return(nil)
}

// expectKnownReferences answers reference lookups from a fixed table and
// creates unknown names with sequential ids starting at 100.
func (s *IngestServiceTestSuite) expectKnownReferences(known map[string]int64) {
	nextID := int64(100)

	s.references.EXPECT().FindByName(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, kind domain.RefKind, name string) (*domain.Reference, error) {
			if id, ok := known[string(kind)+":"+name]; ok {
				return &domain.Reference{ID: id, Kind: kind, Name: name}, nil
			}
			return nil, nil
		},
	).AnyTimes()

	s.references.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ref *domain.Reference) error {
			ref.ID = nextID
			nextID++
			known[string(ref.Kind)+":"+ref.Name] = ref.ID
			return nil
		},
	).AnyTimes()
}

func rawVacancy(url string) domain.RawVacancy {
	from := 100.0
	return domain.RawVacancy{
		ExternalID:   "1",
		Title:        "Go Developer",
		Description:  "<p>Docker &amp; SQL</p><p>Kubernetes</p>",
		Company:      domain.RawCompany{Name: "Acme", Website: "https://acme.example"},
		Salary:       &domain.RawSalary{From: &from, Currency: "rur"},
		Experience:   "От 1 года до 3 лет",
		WorkFormat:   "Удалённо",
		WorkSchedule: "Полный день",
		Location:     "Москва",
		KeySkills:    []string{"Go", "docker"},
		SourceURL:    url,
		PublishedAt:  "2024-01-05T10:00:00+0300",
	}
}

func (s *IngestServiceTestSuite) TestIngestBatch_CountsCreatedAndSkipped() {
	ctx := context.Background()
	items := []domain.RawVacancy{
		rawVacancy(""),
		rawVacancy("https://hh.ru/vacancy/1"),
		rawVacancy("https://hh.ru/vacancy/2"),
	}

	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), "https://hh.ru/vacancy/1").Return(true, nil)
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), "https://hh.ru/vacancy/2").Return(false, nil)

	s.companies.EXPECT().FindByName(gomock.Any(), "Acme").Return(&domain.Company{ID: 7, Name: "Acme"}, nil)
	s.expectKnownReferences(map[string]int64{
		"experience:" + normalize.OneToThree:         2,
		"work_format:" + string(normalize.Remote):    3,
		"work_schedule:" + string(normalize.FullDay): 4,
		"skill:docker":                               11,
	})
	s.vacancies.EXPECT().TitleExists(gomock.Any(), "Go Developer").Return(false, nil)

	var inserted *domain.Vacancy
	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *domain.Vacancy) error {
			v.ID = 55
			inserted = v
			return nil
		},
	)
	s.vacancies.EXPECT().AttachSkills(gomock.Any(), int64(55), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, links []domain.SkillLink) error {
			s.Require().Len(links, 4)
			s.Equal(domain.SkillLink{SkillID: 100, IsMandatory: true}, links[0])
			s.Equal(domain.SkillLink{SkillID: 11, IsMandatory: true}, links[1])
			s.Equal(domain.SkillLink{SkillID: 101, IsMandatory: true}, links[2])
			s.Equal(domain.SkillLink{SkillID: 102, IsMandatory: true}, links[3])
			return nil
		},
	)
	s.expectSyncState(1)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.IngestBatch(ctx, items)

	s.Require().NoError(err)
	s.Equal("hh", stats.SourceID)
	s.Equal(1, stats.Created)
	s.Equal(2, stats.Skipped)
	s.Equal(1, stats.Published)

	s.Require().NotNil(inserted)
	s.Equal("Go Developer", inserted.Title)
	s.Equal("Docker & SQL Kubernetes", inserted.Description)
	s.Equal(int64(7), inserted.CompanyID)
	s.Equal(int64(2), inserted.ExperienceID)
	s.Equal(int64(3), inserted.WorkFormatID)
	s.Equal(int64(4), inserted.WorkScheduleID)
	s.Equal("Москва", inserted.Location)
	s.Equal("RUB", *inserted.Currency)
	s.Equal(100.0, *inserted.SalaryFrom)
	s.Nil(inserted.SalaryTo)
	s.True(inserted.IsActive)
	s.Require().NotNil(inserted.PublishedDate)
	s.True(inserted.PublishedDate.Equal(time.Date(2024, 1, 5, 7, 0, 0, 0, time.UTC)))

	names := make([]string, len(inserted.Skills))
	for i, sk := range inserted.Skills {
		names[i] = sk.Name
	}
	s.Equal([]string{"Go", "docker", "SQL", "Kubernetes"}, names)
}

func (s *IngestServiceTestSuite) TestIngestBatch_ExtractedSkillsAreMandatory() {
	ctx := context.Background()
	raw := rawVacancy("https://hh.ru/vacancy/3")
	raw.KeySkills = nil
	raw.Description = "We use Python and Docker"

	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), raw.SourceURL).Return(false, nil)
	s.companies.EXPECT().FindByName(gomock.Any(), "Acme").Return(&domain.Company{ID: 7, Name: "Acme"}, nil)
	s.expectKnownReferences(map[string]int64{
		"skill:Python": 20,
		"skill:Docker": 21,
	})
	s.vacancies.EXPECT().TitleExists(gomock.Any(), "Go Developer").Return(false, nil)
	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *domain.Vacancy) error {
			v.ID = 3
			return nil
		},
	)
	s.vacancies.EXPECT().AttachSkills(gomock.Any(), int64(3), []domain.SkillLink{
		{SkillID: 20, IsMandatory: true},
		{SkillID: 21, IsMandatory: true},
	}).Return(nil)
	s.expectSyncState(1)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.IngestBatch(ctx, []domain.RawVacancy{raw})

	s.Require().NoError(err)
	s.Equal(1, stats.Created)
}

func (s *IngestServiceTestSuite) TestIngestBatch_EmptyTitleBecomesUnspecified() {
	ctx := context.Background()
	raw := rawVacancy("https://hh.ru/vacancy/4")
	raw.Title = "   "
	raw.KeySkills = nil
	raw.Description = ""

	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), raw.SourceURL).Return(false, nil)
	s.companies.EXPECT().FindByName(gomock.Any(), "Acme").Return(&domain.Company{ID: 7, Name: "Acme"}, nil)
	s.expectKnownReferences(map[string]int64{})
	s.vacancies.EXPECT().TitleExists(gomock.Any(), Unspecified).Return(false, nil)

	var inserted *domain.Vacancy
	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *domain.Vacancy) error {
			v.ID = 4
			inserted = v
			return nil
		},
	)
	s.expectSyncState(1)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	_, err := s.service.IngestBatch(ctx, []domain.RawVacancy{raw})

	s.Require().NoError(err)
	s.Equal(Unspecified, inserted.Title)
}

func (s *IngestServiceTestSuite) TestIngestBatch_CreatesImportedCompanyAndReferences() {
	ctx := context.Background()
	raw := rawVacancy("https://hh.ru/vacancy/9")
	raw.Company = domain.RawCompany{Name: "  New Corp "}
	raw.Experience = ""
	raw.WorkFormat = ""
	raw.WorkSchedule = "Сменный график"
	raw.Location = ""
	raw.KeySkills = nil
	raw.Description = "no recognizable tools"

	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), raw.SourceURL).Return(false, nil)
	s.companies.EXPECT().FindByName(gomock.Any(), "New Corp").Return(nil, nil)
	s.companies.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.Company) error {
			s.Equal("New Corp", c.Name)
			s.Equal(ImportedCompanyDescription, c.Description)
			s.Nil(c.Website)
			c.ID = 42
			return nil
		},
	)
	known := map[string]int64{}
	s.expectKnownReferences(known)
	s.vacancies.EXPECT().TitleExists(gomock.Any(), "Go Developer").Return(false, nil)

	var inserted *domain.Vacancy
	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *domain.Vacancy) error {
			v.ID = 1
			inserted = v
			return nil
		},
	)
	s.expectSyncState(1)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.IngestBatch(ctx, []domain.RawVacancy{raw})

	s.Require().NoError(err)
	s.Equal(1, stats.Created)
	s.Equal(int64(42), inserted.CompanyID)
	s.Equal(Unspecified, inserted.Location)
	s.Empty(inserted.Skills)

	s.Contains(known, "experience:"+Unspecified)
	s.Contains(known, "work_format:"+string(normalize.AnyFormat))
	s.Contains(known, "work_schedule:"+string(normalize.Shift))
}

func (s *IngestServiceTestSuite) TestIngestBatch_DisambiguatesTitles() {
	ctx := context.Background()
	raw := rawVacancy("https://hh.ru/vacancy/3")
	raw.KeySkills = nil
	raw.Description = ""

	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), raw.SourceURL).Return(false, nil)
	s.companies.EXPECT().FindByName(gomock.Any(), "Acme").Return(&domain.Company{ID: 7, Name: "Acme"}, nil)
	s.expectKnownReferences(map[string]int64{})

	gomock.InOrder(
		s.vacancies.EXPECT().TitleExists(gomock.Any(), "Go Developer").Return(true, nil),
		s.vacancies.EXPECT().TitleExists(gomock.Any(), "Go Developer (Acme)").Return(true, nil),
		s.vacancies.EXPECT().TitleExists(gomock.Any(), "Go Developer (Acme, 2024-03-01 12:30:45)").Return(false, nil),
	)

	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *domain.Vacancy) error {
			s.Equal("Go Developer (Acme, 2024-03-01 12:30:45)", v.Title)
			v.ID = 3
			return nil
		},
	)
	s.expectSyncState(1)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.IngestBatch(ctx, []domain.RawVacancy{raw})

	s.Require().NoError(err)
	s.Equal(1, stats.Created)
}

func (s *IngestServiceTestSuite) TestUniqueTitle_ExhaustedIsConflict() {
	s.vacancies.EXPECT().TitleExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(maxTitleSuffix + 2)

	_, err := s.service.uniqueTitle(context.Background(), "Go Developer", "Acme")

	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrConflict)
}

func (s *IngestServiceTestSuite) TestIngestBatch_StoreFailureRollsBackBatch() {
	ctx := context.Background()
	raw := rawVacancy("https://hh.ru/vacancy/4")

	storeErr := errors.New("connection reset")
	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), raw.SourceURL).Return(false, nil)
	s.companies.EXPECT().FindByName(gomock.Any(), "Acme").Return(nil, storeErr)

	stats, err := s.service.IngestBatch(ctx, []domain.RawVacancy{raw})

	s.Require().Error(err)
	s.ErrorIs(err, storeErr)
	s.Nil(stats)
}

func (s *IngestServiceTestSuite) TestIngestBatch_PublishFailureIsNotFatal() {
	ctx := context.Background()
	raw := rawVacancy("https://hh.ru/vacancy/5")
	raw.KeySkills = nil
	raw.Description = ""

	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), raw.SourceURL).Return(false, nil)
	s.companies.EXPECT().FindByName(gomock.Any(), "Acme").Return(&domain.Company{ID: 7, Name: "Acme"}, nil)
	s.expectKnownReferences(map[string]int64{})
	s.vacancies.EXPECT().TitleExists(gomock.Any(), gomock.Any()).Return(false, nil)
	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	s.expectSyncState(1)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("channel closed"))

	stats, err := s.service.IngestBatch(ctx, []domain.RawVacancy{raw})

	s.Require().NoError(err)
	s.Equal(1, stats.Created)
	s.Equal(0, stats.Published)
}

func (s *IngestServiceTestSuite) TestIngestBatch_Empty() {
	ctx := context.Background()

	s.expectTransaction()
	s.expectSyncState(0)

	stats, err := s.service.IngestBatch(ctx, nil)

	s.Require().NoError(err)
	s.Equal(0, stats.Created)
	s.Equal(0, stats.Skipped)
}

func (s *IngestServiceTestSuite) TestIngestFromQuery_FetchesFullPostings() {
	ctx := context.Background()
	query := domain.SearchQuery{Text: "golang", Limit: 5, Light: true}

	s.source.EXPECT().Fetch(ctx, domain.SearchQuery{Text: "golang", Limit: 5}).Return(
		[]domain.RawVacancy{rawVacancy("https://hh.ru/vacancy/1"), rawVacancy("")}, nil,
	)
	s.expectTransaction()
	s.vacancies.EXPECT().ExistsBySourceURL(gomock.Any(), "https://hh.ru/vacancy/1").Return(true, nil)
	s.expectSyncState(0)

	result, err := s.service.IngestFromQuery(ctx, query)

	s.Require().NoError(err)
	s.Equal(&domain.IngestResult{Parsed: 2, Created: 0, Skipped: 2}, result)
}

func (s *IngestServiceTestSuite) TestIngestFromQuery_FetchError() {
	ctx := context.Background()

	s.source.EXPECT().Fetch(ctx, gomock.Any()).Return(nil, errors.New("decode response: unexpected EOF"))

	result, err := s.service.IngestFromQuery(ctx, domain.SearchQuery{Text: "go", Limit: 1})

	s.Require().Error(err)
	s.Contains(err.Error(), "fetch vacancies")
	s.Nil(result)
}

func (s *IngestServiceTestSuite) validSpec() domain.VacancySpec {
	return domain.VacancySpec{
		Title:          "Data Engineer",
		Description:    "Pipelines",
		Currency:       utils.Ptr("usd"),
		SourceURL:      "https://example.com/jobs/1",
		CompanyID:      1,
		ExperienceID:   2,
		WorkFormatID:   3,
		WorkScheduleID: 4,
		Skills: []domain.SkillLink{
			{SkillID: 9, IsMandatory: true},
			{SkillID: 5},
		},
	}
}

func (s *IngestServiceTestSuite) TestCreate_Success() {
	ctx := context.Background()
	spec := s.validSpec()

	s.expectTransaction()
	s.references.EXPECT().MissingIDs(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(5)
	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v *domain.Vacancy) error {
			s.Equal("USD", *v.Currency)
			s.Equal(Unspecified, v.Location)
			s.True(v.IsActive)
			v.ID = 77
			return nil
		},
	)
	s.vacancies.EXPECT().AttachSkills(gomock.Any(), int64(77), spec.Skills).Return(nil)

	stored := &domain.Vacancy{
		ID:    77,
		Title: "Data Engineer",
		Skills: []domain.VacancySkill{
			{SkillID: 9, Name: "Python", IsMandatory: true},
			{SkillID: 5, Name: "SQL"},
		},
	}
	s.vacancies.EXPECT().GetByID(gomock.Any(), int64(77)).Return(stored, nil)
	s.publisher.EXPECT().Publish(ctx, stored).Return(nil)

	got, err := s.service.Create(ctx, spec)

	s.Require().NoError(err)
	s.Equal(stored, got)
}

func (s *IngestServiceTestSuite) TestCreate_MissingReferenceStopsAtFirst() {
	ctx := context.Background()
	spec := s.validSpec()

	s.expectTransaction()
	gomock.InOrder(
		s.references.EXPECT().MissingIDs(gomock.Any(), domain.RefCompany, []int64{1}).Return(nil, nil),
		s.references.EXPECT().MissingIDs(gomock.Any(), domain.RefExperience, []int64{2}).Return([]int64{2}, nil),
	)

	got, err := s.service.Create(ctx, spec)

	s.Require().Error(err)
	s.Nil(got)
	s.ErrorIs(err, domain.ErrNotFound)

	var nf *domain.NotFoundError
	s.Require().ErrorAs(err, &nf)
	s.Equal(domain.RefExperience, nf.Entity)
	s.Equal([]int64{2}, nf.IDs)
}

func (s *IngestServiceTestSuite) TestCreate_MissingSkillsAreSorted() {
	ctx := context.Background()
	spec := s.validSpec()
	spec.Skills = append(spec.Skills, domain.SkillLink{SkillID: 9}, domain.SkillLink{SkillID: 3})

	s.expectTransaction()
	s.references.EXPECT().MissingIDs(gomock.Any(), gomock.Not(domain.RefSkill), gomock.Any()).Return(nil, nil).Times(4)
	s.references.EXPECT().MissingIDs(gomock.Any(), domain.RefSkill, []int64{9, 5, 3}).Return([]int64{9, 3}, nil)

	_, err := s.service.Create(ctx, spec)

	var nf *domain.NotFoundError
	s.Require().ErrorAs(err, &nf)
	s.Equal(domain.RefSkill, nf.Entity)
	s.Equal([]int64{3, 9}, nf.IDs)
	s.Equal("skill not found: [3, 9]", err.Error())
}

func (s *IngestServiceTestSuite) TestCreate_Validation() {
	spec := s.validSpec()
	spec.Title = "   "

	_, err := s.service.Create(context.Background(), spec)

	s.ErrorIs(err, domain.ErrValidation)
}

func (s *IngestServiceTestSuite) TestCreate_ConflictPropagates() {
	ctx := context.Background()
	spec := s.validSpec()
	spec.Skills = nil

	s.expectTransaction()
	s.references.EXPECT().MissingIDs(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(4)
	s.vacancies.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(
		errors.Join(domain.ErrConflict, errors.New(`duplicate key value violates unique constraint "vacancies_title_key"`)),
	)

	_, err := s.service.Create(ctx, spec)

	s.ErrorIs(err, domain.ErrConflict)
}
