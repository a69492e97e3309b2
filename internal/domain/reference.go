package domain

type RefKind string

const (
	RefCompany      RefKind = "company"
	RefExperience   RefKind = "experience"
	RefWorkFormat   RefKind = "work_format"
	RefWorkSchedule RefKind = "work_schedule"
	RefSkill        RefKind = "skill"
)

// Reference is a row of one of the lookup tables a vacancy points to.
// Rank is only meaningful for experiences, Category only for skills.
type Reference struct {
	ID       int64   `db:"id"`
	Kind     RefKind `db:"-"`
	Name     string  `db:"name"`
	Rank     int     `db:"rank"`
	Category *string `db:"category"`
}

type Company struct {
	ID          int64   `db:"company_id"`
	Name        string  `db:"name"`
	Website     *string `db:"website"`
	Description string  `db:"description"`
}
