// Package extract turns markup-bearing posting text into plain text and
// picks known skill names out of it.
package extract

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

var (
	blockRegex   = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
)

// Vocabulary is the fixed list of skills recognized in free text.
var Vocabulary = []string{
	"Python", "JavaScript", "TypeScript", "Java", "Golang", "SQL", "PostgreSQL",
	"Docker", "Kubernetes", "React", "Vue", "AWS", "Git", "Linux", "Kafka", "Redis",
}

// StripMarkup removes tags, decodes entities and collapses whitespace so
// that visible text tokens are separated by exactly one space.
func StripMarkup(content string) string {
	if content == "" {
		return ""
	}
	plain := blockRegex.ReplaceAllString(content, " ")
	plain = htmlTagRegex.ReplaceAllString(plain, " ")
	plain = html.UnescapeString(plain)
	return strings.Join(strings.Fields(plain), " ")
}

// Skills returns the vocabulary entries found in text, case-insensitively,
// ordered by where they first appear.
func Skills(text string) []string {
	folded := cases.Fold().String(text)
	if folded == "" {
		return nil
	}

	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, name := range Vocabulary {
		if pos := strings.Index(folded, cases.Fold().String(name)); pos >= 0 {
			hits = append(hits, hit{name: name, pos: pos})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].pos < hits[j].pos
	})

	skills := make([]string, len(hits))
	for i, h := range hits {
		skills[i] = h.name
	}
	return skills
}

// MergeSkills appends extracted skills to the source-tagged ones, dropping
// blanks and case-insensitive duplicates. Tagged skills keep their order and
// spelling.
func MergeSkills(tagged, extracted []string) []string {
	seen := make(map[string]struct{}, len(tagged)+len(extracted))
	merged := make([]string, 0, len(tagged)+len(extracted))

	for _, list := range [][]string{tagged, extracted} {
		for _, s := range list {
			name := strings.TrimSpace(s)
			if name == "" {
				continue
			}
			key := cases.Fold().String(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, name)
		}
	}

	return merged
}
