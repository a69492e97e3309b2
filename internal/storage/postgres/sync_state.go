package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"vacancy_insight/internal/domain"
)

// PollStateStore keeps one bookkeeping row per source in poll_state.
type PollStateStore struct {
	db *sqlx.DB
}

func NewPollStateStore(db *sqlx.DB) *PollStateStore {
	return &PollStateStore{db: db}
}

func (s *PollStateStore) Get(ctx context.Context, sourceID string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT id, source_id, last_polled_at, total_created
		FROM poll_state
		WHERE source_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// Sources that never ran start from zero
		return &domain.SyncState{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &state, nil
}

// Record upserts the row, adding created to the stored total in the same
// statement so concurrent batches never lose an increment.
func (s *PollStateStore) Record(ctx context.Context, sourceID string, polledAt time.Time, created int) error {
	query := `
		INSERT INTO poll_state (source_id, last_polled_at, total_created)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET
			last_polled_at = EXCLUDED.last_polled_at,
			total_created = poll_state.total_created + EXCLUDED.total_created`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, sourceID, polledAt, created)
	return classify(err)
}
