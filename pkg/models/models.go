package models

import (
	"encoding/json"
	"time"
)

// PageData is the raw result of one acquisition attempt
type PageData struct {
	URL          string            `json:"url"`
	FinalURL     string            `json:"final_url,omitempty"`
	StatusCode   int               `json:"status_code"`
	Title        string            `json:"title,omitempty"`
	HTML         string            `json:"html,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	FetchedBy    string            `json:"fetched_by"`
	FetchedAt    time.Time         `json:"fetched_at"`
	ResponseTime int64             `json:"response_time_ms"`
}

// RequestOptions contains options for a single acquisition attempt
type RequestOptions struct {
	URL       string
	Headers   map[string]string
	Timeout   time.Duration
	UserAgent string
	Proxy     string
	// WarmUpURL is visited before URL by strategies that support it
	WarmUpURL string
}

// ProductRecord is one canonical product extracted from a document.
//
// Fields is sparse: a missing key means the field was not found.
type ProductRecord struct {
	Fields    map[string]any
	ScrapedAt time.Time
	Source    string
	URL       string
	// LowConfidence lists fields derived by heuristics rather than located
	LowConfidence []string
}

// NewProductRecord creates an empty record stamped with the given time and source
func NewProductRecord(source string, at time.Time) *ProductRecord {
	return &ProductRecord{
		Fields:    make(map[string]any),
		ScrapedAt: at,
		Source:    source,
	}
}

// Get returns a field value and whether it is present
func (r *ProductRecord) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.Fields[name]
	return v, ok
}

// Float returns a numeric field
func (r *ProductRecord) Float(name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// String returns a string field
func (r *ProductRecord) String(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MarshalJSON flattens Fields next to the record metadata
func (r *ProductRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["scrapedAt"] = r.ScrapedAt
	out["source"] = r.Source
	if r.URL != "" {
		out["url"] = r.URL
	}
	if len(r.LowConfidence) > 0 {
		out["lowConfidence"] = r.LowConfidence
	}
	return json.Marshal(out)
}

// PageOutcome is the result of one listing page inside a batch.
// Error is empty on success; Records is empty (never nil) on failure.
type PageOutcome struct {
	Page    int              `json:"page"`
	Records []*ProductRecord `json:"records"`
	Error   string           `json:"error"`
}

// Failed reports whether the page produced an error
func (o PageOutcome) Failed() bool {
	return o.Error != ""
}

// BatchResult aggregates the outcomes of a pagination run
type BatchResult struct {
	RunID          string           `json:"run_id,omitempty"`
	URL            string           `json:"url"`
	RequestedPages []int            `json:"requested_pages"`
	UniquePages    []int            `json:"unique_pages"`
	Outcomes       []PageOutcome    `json:"outcomes"`
	SuccessCount   int              `json:"success_count"`
	FailureCount   int              `json:"failure_count"`
	AllRecords     []*ProductRecord `json:"all_records"`
}

// Tally recomputes the counters and AllRecords from Outcomes
func (b *BatchResult) Tally() {
	b.SuccessCount, b.FailureCount = 0, 0
	b.AllRecords = make([]*ProductRecord, 0)
	for _, o := range b.Outcomes {
		if o.Failed() {
			b.FailureCount++
			continue
		}
		b.SuccessCount++
		b.AllRecords = append(b.AllRecords, o.Records...)
	}
}
