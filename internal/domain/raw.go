package domain

// RawVacancy is a posting as delivered by a source, before normalization.
// Description may carry markup; hint fields hold the source's own wording.
type RawVacancy struct {
	ExternalID   string
	Title        string
	Description  string
	Company      RawCompany
	Salary       *RawSalary
	Experience   string
	WorkFormat   string
	WorkSchedule string
	Location     string
	RawAddress   string
	KeySkills    []string
	SourceURL    string
	PublishedAt  string
}

type RawCompany struct {
	Name    string
	Website string
}

type RawSalary struct {
	From     *float64
	To       *float64
	Currency string
}

// SearchQuery parameterizes one fetch from a source.
type SearchQuery struct {
	Text           string
	Limit          int
	Area           *int
	OnlyWithSalary bool
	Light          bool
}
