// Package normalize maps the loose vocabulary of job sources onto the fixed
// taxonomy stored alongside vacancies. Every function here is total: it
// never fails and always returns a usable value.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"vacancy_insight/internal/domain"
)

type WorkFormat string

const (
	Office    WorkFormat = "Office"
	Remote    WorkFormat = "Remote"
	Hybrid    WorkFormat = "Hybrid"
	AnyFormat WorkFormat = "Any"
)

type WorkSchedule string

const (
	FullDay    WorkSchedule = "Full day"
	Shift      WorkSchedule = "Shift"
	Flexible   WorkSchedule = "Flexible"
	Rotational WorkSchedule = "Rotational"
	PartTime   WorkSchedule = "Part-time"
)

const (
	NoExperience = "No experience"
	OneToThree   = "1–3 years"
	ThreeToSix   = "3–6 years"
	SixPlus      = "6+ years"
)

const DefaultCurrency = "RUB"

type rule[T any] struct {
	value    T
	keywords []string
}

var workFormatRules = []rule[WorkFormat]{
	{Remote, []string{"удал", "дистанц", "remote"}},
	{Hybrid, []string{"гибрид", "hybrid"}},
	{Office, []string{"офис", "на месте работодателя", "office", "on-site", "onsite"}},
}

var workScheduleRules = []rule[WorkSchedule]{
	{Shift, []string{"смен", "shift"}},
	{Flexible, []string{"гибк", "flexible"}},
	{Rotational, []string{"вахт", "rotational", "rotation", "fly-in"}},
	{PartTime, []string{"частичн", "неполн", "part-time", "part time"}},
}

var experienceRanks = map[string]int{
	NoExperience: 1,
	OneToThree:   2,
	ThreeToSix:   3,
	SixPlus:      4,
}

// fold lowercases s with Unicode case folding. A Caser keeps state, so each
// call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func match[T any](raw string, rules []rule[T], fallback T) T {
	folded := fold(raw)
	if folded == "" {
		return fallback
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(folded, kw) {
				return r.value
			}
		}
	}
	return fallback
}

// WorkFormatOf classifies a free-text work format hint. Unknown or empty
// input yields AnyFormat.
func WorkFormatOf(raw string) WorkFormat {
	return match(raw, workFormatRules, AnyFormat)
}

// WorkScheduleOf classifies a free-text schedule hint. Unknown or empty
// input yields FullDay.
func WorkScheduleOf(raw string) WorkSchedule {
	return match(raw, workScheduleRules, FullDay)
}

// Experience maps an experience phrase onto one of the four known buckets.
// Phrases that match no bucket are returned unchanged.
func Experience(raw string) string {
	folded := fold(raw)
	switch {
	case strings.Contains(folded, "нет опыта"),
		strings.Contains(folded, "без опыта"),
		strings.Contains(folded, "no experience"):
		return NoExperience
	case strings.Contains(folded, "1") && strings.Contains(folded, "3"):
		return OneToThree
	case strings.Contains(folded, "3") && strings.Contains(folded, "6"):
		return ThreeToSix
	case strings.Contains(folded, "6"),
		strings.Contains(folded, "более"),
		strings.Contains(folded, "more"):
		return SixPlus
	}
	return raw
}

// ExperienceRank is the display order of a bucket, 0 for names outside the
// known buckets.
func ExperienceRank(name string) int {
	return experienceRanks[name]
}

// Salary passes the bounds through untouched and upper-cases the currency,
// defaulting it when the source omits it.
func Salary(raw *domain.RawSalary) domain.Salary {
	if raw == nil {
		return domain.Salary{}
	}

	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	return domain.Salary{
		From:     raw.From,
		To:       raw.To,
		Currency: &currency,
	}
}

var colonlessOffset = regexp.MustCompile(`^(.*[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?)([+-]\d{2})(\d{2})$`)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp parses the ISO-8601 variants job sources emit ("Z" suffix,
// "+0300" offsets, space separator). It returns nil for anything else.
func Timestamp(raw string) *time.Time {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}

	if strings.HasSuffix(v, "Z") || strings.HasSuffix(v, "z") {
		v = v[:len(v)-1] + "+00:00"
	}
	if m := colonlessOffset.FindStringSubmatch(v); m != nil {
		v = m[1] + m[2] + ":" + m[3]
	}
	v = strings.Replace(v, " ", "T", 1)

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
