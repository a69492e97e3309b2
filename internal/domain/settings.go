package domain

const (
	DefaultPollLimit = 20
	DefaultPollArea  = 1
	MaxPollLimit     = 200
)

// PollingSettings is the persisted, mutable configuration of the polling loop.
type PollingSettings struct {
	Enabled        bool     `json:"enabled"`
	Title          *string  `json:"title"`
	Location       *string  `json:"location"`
	MinSalary      *float64 `json:"min_salary"`
	MaxSalary      *float64 `json:"max_salary"`
	Limit          int      `json:"limit"`
	Area           int      `json:"area"`
	OnlyWithSalary bool     `json:"only_with_salary"`
}

func DefaultPollingSettings() PollingSettings {
	return PollingSettings{
		Enabled: true,
		Limit:   DefaultPollLimit,
		Area:    DefaultPollArea,
	}
}

// Query returns the search text, empty when none is configured.
func (p PollingSettings) Query() string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

func (p PollingSettings) Validate() error {
	if p.Limit < 1 || p.Limit > MaxPollLimit {
		return &ValidationError{Field: "limit", Reason: "must be between 1 and 200"}
	}
	return nil
}
