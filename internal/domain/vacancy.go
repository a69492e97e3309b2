package domain

import "time"

type Vacancy struct {
	ID             int64          `db:"vacancy_id" json:"vacancy_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	SalaryFrom     *float64       `db:"salary_from" json:"salary_from"`
	SalaryTo       *float64       `db:"salary_to" json:"salary_to"`
	Currency       *string        `db:"currency" json:"currency"`
	Location       string         `db:"location" json:"location"`
	RawAddress     *string        `db:"raw_address" json:"raw_address"`
	ParsedAddress  *string        `db:"parsed_address" json:"parsed_address"`
	SourceURL      string         `db:"source_url" json:"source_url"`
	PublishedDate  *time.Time     `db:"published_date" json:"published_date"`
	IsActive       bool           `db:"is_active" json:"is_active"`
	CompanyID      int64          `db:"company_id" json:"company_id"`
	ExperienceID   int64          `db:"experience_id" json:"experience_id"`
	WorkFormatID   int64          `db:"work_format_id" json:"work_format_id"`
	WorkScheduleID int64          `db:"work_schedule_id" json:"work_schedule_id"`
	Skills         []VacancySkill `db:"-" json:"skills"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

type VacancySkill struct {
	SkillID     int64  `db:"skill_id" json:"skill_id"`
	Name        string `db:"name" json:"name"`
	IsMandatory bool   `db:"is_mandatory" json:"is_mandatory"`
}

// VacancySpec is the input of the explicit creation path. All foreign keys
// are supplied by the caller and validated before insert.
type VacancySpec struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	SalaryFrom     *float64    `json:"salary_from"`
	SalaryTo       *float64    `json:"salary_to"`
	Currency       *string     `json:"currency"`
	Location       *string     `json:"location"`
	RawAddress     *string     `json:"raw_address"`
	ParsedAddress  *string     `json:"parsed_address"`
	SourceURL      string      `json:"source_url"`
	PublishedDate  *time.Time  `json:"published_date"`
	IsActive       *bool       `json:"is_active"`
	CompanyID      int64       `json:"company_id"`
	ExperienceID   int64       `json:"experience_id"`
	WorkFormatID   int64       `json:"work_format_id"`
	WorkScheduleID int64       `json:"work_schedule_id"`
	Skills         []SkillLink `json:"skills"`
}

type SkillLink struct {
	SkillID     int64 `json:"skill_id"`
	IsMandatory bool  `json:"is_mandatory"`
}

// Salary is the normalized salary triple. From may exceed To.
type Salary struct {
	From     *float64
	To       *float64
	Currency *string
}
