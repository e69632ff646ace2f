package listing

import (
	"encoding/json"
	"time"
)

// Snapshot is the remote listing record as the provider reports it.
type Snapshot struct {
	LocationRef     string         `json:"location_ref"`
	Name            string         `json:"name"`
	PrimaryCategory string         `json:"primary_category"`
	PrimaryPhone    string         `json:"primary_phone"`
	WebsiteURL      string         `json:"website_url"`
	Address         Address        `json:"address"`
	RegularHours    Hours          `json:"regular_hours"`
	Profile         Profile        `json:"profile"`
	Labels          []string       `json:"labels,omitempty"`
	Photos          []Photo        `json:"photos,omitempty"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	UpdateTime      time.Time      `json:"update_time"`
}

type Profile struct {
	Description string `json:"description"`
}

type Address struct {
	Lines      []string `json:"lines,omitempty"`
	Locality   string   `json:"locality"`
	Region     string   `json:"region"`
	PostalCode string   `json:"postal_code"`
	Country    string   `json:"country"`
}

// Hours is the weekly schedule keyed by lowercase day name.
type Hours struct {
	Periods map[string]DayPeriod `json:"periods"`
}

type DayPeriod struct {
	Open   string `json:"open,omitempty"`  // "09:00"
	Close  string `json:"close,omitempty"` // "17:30"
	Closed bool   `json:"closed,omitempty"`
}

type Photo struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Category   string    `json:"category,omitempty"`
	CreateTime time.Time `json:"create_time"`
}

type Review struct {
	ID         string    `json:"id"`
	Reviewer   string    `json:"reviewer"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

type ReviewPage struct {
	Reviews []Review `json:"reviews"`
	Total   int      `json:"total"`
}

type Post struct {
	ID         string    `json:"id"`
	Summary    string    `json:"summary"`
	State      string    `json:"state,omitempty"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

type PostPage struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Insights struct {
	Metrics map[string]int64 `json:"metrics"`
	Range   DateRange        `json:"range"`
}

// Document flattens the snapshot into a JSON-like map so the conflict
// resolver can address fields by dotted path.
func (s *Snapshot) Document() (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
