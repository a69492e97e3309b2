package hh

import (
	"bytes"
	"encoding/json"
)

// searchResponse is the body of GET /vacancies.
type searchResponse struct {
	Items   []item `json:"items"`
	Found   int    `json:"found"`
	Pages   int    `json:"pages"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

// item is a search summary. Detail responses share its fields and add
// description and key skills.
type item struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Area             *named    `json:"area"`
	Salary           *salary   `json:"salary"`
	Address          *address  `json:"address"`
	Employer         *employer `json:"employer"`
	PublishedAt      string    `json:"published_at"`
	AlternateURL     string    `json:"alternate_url"`
	Snippet          *snippet  `json:"snippet"`
	Schedule         *named    `json:"schedule"`
	Experience       *named    `json:"experience"`
	WorkFormat       nameList  `json:"work_format"`
	WorkingTimeModes nameList  `json:"working_time_modes"`
}

type detail struct {
	item
	Description string  `json:"description"`
	KeySkills   []named `json:"key_skills"`
}

type named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type salary struct {
	From     *float64 `json:"from"`
	To       *float64 `json:"to"`
	Currency string   `json:"currency"`
}

type address struct {
	Raw string `json:"raw"`
}

type employer struct {
	Name         string `json:"name"`
	SiteURL      string `json:"site_url"`
	AlternateURL string `json:"alternate_url"`
}

type snippet struct {
	Requirement    string `json:"requirement"`
	Responsibility string `json:"responsibility"`
}

// nameList accepts either a single {"name": ...} object or a list of them.
type nameList []named

func (n *nameList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = nil
		return nil
	}

	if data[0] == '{' {
		var one named
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*n = nameList{one}
		return nil
	}

	var many []named
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*n = many
	return nil
}

func (n nameList) first() string {
	for _, v := range n {
		if v.Name != "" {
			return v.Name
		}
	}
	return ""
}

func (n *named) name() string {
	if n == nil {
		return ""
	}
	return n.Name
}
