package domain

import "time"

// IngestStats holds counters of one ingest batch.
type IngestStats struct {
	SourceID  string
	Created   int
	Skipped   int
	Published int
	Duration  time.Duration
}

// IngestResult is what a one-shot fetch+ingest reports back.
type IngestResult struct {
	Parsed  int `json:"parsed"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type SyncState struct {
	ID           int64     `db:"id"`
	SourceID     string    `db:"source_id"`
	LastPolledAt time.Time `db:"last_polled_at"`
	TotalCreated int64     `db:"total_created"`
}
