package hh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vacancy_insight/internal/domain"
)

const (
	SourceID   = "hh"
	SourceName = "HeadHunter"

	// MaxPageSize is the largest per_page the search endpoint honours.
	MaxPageSize = 20
)

// Config holds hh.ru source configuration.
type Config struct {
	BaseURL        string
	PageSize       int
	UserAgent      string
	Timeout        time.Duration
	Concurrency    int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// HTTPClient, when set, is shared by every Fetch and never closed by the
	// source. Otherwise each Fetch opens and releases its own session.
	HTTPClient *http.Client
}

// StatusError reports a non-success response from the API.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Is(target error) bool {
	return target == domain.ErrTransientFetch
}

// networkError wraps transport failures; only these are retried.
type networkError struct {
	err error
}

func (e *networkError) Error() string {
	return "execute request: " + e.err.Error()
}

func (e *networkError) Unwrap() error {
	return e.err
}

func (e *networkError) Is(target error) bool {
	return target == domain.ErrTransientFetch
}

// Source implements service.Source for the hh.ru public API.
type Source struct {
	client         *http.Client
	baseURL        string
	pageSize       int
	userAgent      string
	timeout        time.Duration
	concurrency    int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new hh.ru source.
func New(cfg Config, logger *slog.Logger) *Source {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return &Source{
		client:         cfg.HTTPClient,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:       pageSize,
		userAgent:      cfg.UserAgent,
		timeout:        cfg.Timeout,
		concurrency:    max(1, cfg.Concurrency),
		maxAttempts:    max(1, cfg.MaxAttempts),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

type session struct {
	client *http.Client
	owned  bool
}

func (s *Source) openSession() *session {
	if s.client != nil {
		return &session{client: s.client}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &session{
		client: &http.Client{Timeout: s.timeout, Transport: transport},
		owned:  true,
	}
}

func (ss *session) Close() {
	if ss.owned {
		ss.client.CloseIdleConnections()
	}
}

// Fetch pages through search results until q.Limit vacancies are collected,
// a page comes back empty, or the API stops answering with 200. Network and
// status failures shorten the result instead of failing the call; only
// undecodable bodies are returned as errors, together with what was
// collected before them.
func (s *Source) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.RawVacancy, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	sess := s.openSession()
	defer sess.Close()

	perPage := min(s.pageSize, q.Limit)
	vacancies := make([]domain.RawVacancy, 0, q.Limit)

	for page := 0; len(vacancies) < q.Limit; page++ {
		resp, err := s.fetchPage(ctx, sess, q, page, perPage)
		if err != nil {
			if errors.Is(err, domain.ErrTransientFetch) {
				s.logger.Warn("listing fetch stopped",
					"page", page,
					"collected", len(vacancies),
					"error", err,
				)
				break
			}
			return truncate(vacancies, q.Limit), fmt.Errorf("fetch page %d: %w", page, err)
		}

		if len(resp.Items) == 0 {
			break
		}

		var batch []domain.RawVacancy
		if q.Light {
			batch = summaries(resp.Items)
		} else {
			batch, err = s.details(ctx, sess, resp.Items)
			if err != nil {
				return truncate(vacancies, q.Limit), fmt.Errorf("fetch page %d details: %w", page, err)
			}
		}
		vacancies = append(vacancies, batch...)

		s.logger.Debug("fetched page",
			"page", page,
			"items", len(resp.Items),
			"total", len(vacancies),
		)

		if resp.Pages > 0 && page >= resp.Pages-1 {
			break
		}
	}

	return truncate(vacancies, q.Limit), nil
}

func truncate(v []domain.RawVacancy, limit int) []domain.RawVacancy {
	if len(v) > limit {
		return v[:limit]
	}
	return v
}

func (s *Source) fetchPage(ctx context.Context, sess *session, q domain.SearchQuery, page, perPage int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("text", q.Text)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	if q.Area != nil {
		params.Set("area", strconv.Itoa(*q.Area))
	}
	if q.OnlyWithSalary {
		params.Set("only_with_salary", "true")
	}
	reqURL := s.baseURL + "/vacancies?" + params.Encode()

	var resp searchResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.getJSON(ctx, sess, reqURL, &resp)
		if err == nil {
			return &resp, nil
		}

		var netErr *networkError
		if !errors.As(err, &netErr) || attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, err
}

// details fetches the full record of every item with bounded concurrency,
// keeping the page order and dropping items whose fetch failed.
func (s *Source) details(ctx context.Context, sess *session, items []item) ([]domain.RawVacancy, error) {
	fetched := make([]*detail, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			d, err := s.fetchDetail(gctx, sess, it.ID)
			if err != nil {
				return fmt.Errorf("vacancy %s: %w", it.ID, err)
			}
			fetched[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	vacancies := make([]domain.RawVacancy, 0, len(items))
	for _, d := range fetched {
		if d == nil {
			continue
		}
		vacancies = append(vacancies, fromDetail(d))
	}
	return vacancies, nil
}

func (s *Source) fetchDetail(ctx context.Context, sess *session, id string) (*detail, error) {
	var d detail
	err := s.getJSON(ctx, sess, s.baseURL+"/vacancies/"+url.PathEscape(id), &d)
	if errors.Is(err, domain.ErrTransientFetch) {
		s.logger.Debug("vacancy detail skipped", "id", id, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Source) getJSON(ctx context.Context, sess *session, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := sess.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &networkError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func summaries(items []item) []domain.RawVacancy {
	vacancies := make([]domain.RawVacancy, 0, len(items))
	for _, it := range items {
		var description string
		if it.Snippet != nil {
			description = strings.TrimSpace(it.Snippet.Requirement + " " + it.Snippet.Responsibility)
		}
		vacancies = append(vacancies, transform(it, description, nil))
	}
	return vacancies
}

func fromDetail(d *detail) domain.RawVacancy {
	skills := make([]string, 0, len(d.KeySkills))
	for _, ks := range d.KeySkills {
		if ks.Name != "" {
			skills = append(skills, ks.Name)
		}
	}
	return transform(d.item, d.Description, skills)
}

func transform(it item, description string, skills []string) domain.RawVacancy {
	v := domain.RawVacancy{
		ExternalID:   it.ID,
		Title:        it.Name,
		Description:  description,
		Experience:   it.Experience.name(),
		WorkFormat:   workFormatHint(it),
		WorkSchedule: it.Schedule.name(),
		Location:     it.Area.name(),
		KeySkills:    skills,
		SourceURL:    it.AlternateURL,
		PublishedAt:  it.PublishedAt,
	}

	if it.Employer != nil {
		v.Company = domain.RawCompany{
			Name:    it.Employer.Name,
			Website: it.Employer.SiteURL,
		}
	}
	if it.Salary != nil {
		v.Salary = &domain.RawSalary{
			From:     it.Salary.From,
			To:       it.Salary.To,
			Currency: it.Salary.Currency,
		}
	}
	if it.Address != nil {
		v.RawAddress = it.Address.Raw
	}

	return v
}

// workFormatHint looks for the format in working time modes first, then in
// the dedicated work_format field, and finally in a schedule that mentions
// remote work.
func workFormatHint(it item) string {
	if h := it.WorkingTimeModes.first(); h != "" {
		return h
	}
	if h := it.WorkFormat.first(); h != "" {
		return h
	}
	if sched := it.Schedule.name(); strings.Contains(strings.ToLower(sched), "удал") {
		return sched
	}
	return ""
}
