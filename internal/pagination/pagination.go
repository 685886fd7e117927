// Package pagination runs an explicit set of listing pages one after another
// and collects a per-page outcome for each.
package pagination

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/law-makers/pricecrawl/internal/diag"
	"github.com/law-makers/pricecrawl/pkg/models"
)

// DefaultParam is the query parameter used when a site does not name one
const DefaultParam = "page"

// PageFunc acquires and extracts one listing page
type PageFunc func(ctx context.Context, pageURL string, page int) ([]*models.ProductRecord, error)

// Orchestrator drives a PageFunc across pages sequentially
type Orchestrator struct {
	Fetch PageFunc
	// Param is the page query parameter, DefaultParam when empty
	Param string
	// Delay is the pause between consecutive pages
	Delay time.Duration
	// OnPage is called after every page with the number of pages done so far
	OnPage func(outcome models.PageOutcome, done, total int)
	Sink   diag.Sink
}

// UniquePages returns pages sorted ascending with duplicates removed
func UniquePages(pages []int) []int {
	out := slices.Clone(pages)
	slices.Sort(out)
	return slices.Compact(out)
}

// PageURL sets or replaces the page parameter of rawURL
func PageURL(rawURL, param string, page int) (string, error) {
	if param == "" {
		param = DefaultParam
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid listing URL: %w", err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RunPages visits every unique page in ascending order. A failing page is
// recorded in its outcome and the run continues. When ctx ends, the pages
// not yet attempted are recorded as failed.
func (o *Orchestrator) RunPages(ctx context.Context, rawURL string, pages []int) *models.BatchResult {
	unique := UniquePages(pages)
	result := &models.BatchResult{
		RunID:          uuid.NewString(),
		URL:            rawURL,
		RequestedPages: slices.Clone(pages),
		UniquePages:    unique,
		Outcomes:       make([]models.PageOutcome, 0, len(unique)),
	}

	for i, page := range unique {
		if i > 0 {
			if err := o.wait(ctx); err != nil {
				o.abandon(result, unique[i:], err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			o.abandon(result, unique[i:], err)
			break
		}

		outcome := o.runPage(ctx, rawURL, page)
		o.record(result, outcome)
	}

	result.Tally()

	diag.Emit(o.Sink, diag.Info, "pagination.finished", diag.F{
		"run_id":  result.RunID,
		"url":     rawURL,
		"pages":   len(unique),
		"success": result.SuccessCount,
		"failure": result.FailureCount,
		"records": len(result.AllRecords),
	})
	return result
}

func (o *Orchestrator) runPage(ctx context.Context, rawURL string, page int) (outcome models.PageOutcome) {
	outcome = models.PageOutcome{Page: page, Records: []*models.ProductRecord{}}

	defer func() {
		if r := recover(); r != nil {
			outcome.Records = []*models.ProductRecord{}
			outcome.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	pageURL, err := PageURL(rawURL, o.Param, page)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	records, err := o.Fetch(ctx, pageURL, page)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if records != nil {
		outcome.Records = records
	}
	return outcome
}

func (o *Orchestrator) record(result *models.BatchResult, outcome models.PageOutcome) {
	result.Outcomes = append(result.Outcomes, outcome)

	level, fields := diag.Info, diag.F{"page": outcome.Page, "records": len(outcome.Records)}
	if outcome.Failed() {
		level, fields = diag.Warn, diag.F{"page": outcome.Page, "error": outcome.Error}
	}
	diag.Emit(o.Sink, level, "pagination.page", fields)

	if o.OnPage != nil {
		o.OnPage(outcome, len(result.Outcomes), len(result.UniquePages))
	}
}

// abandon marks pages as failed without attempting them
func (o *Orchestrator) abandon(result *models.BatchResult, pages []int, cause error) {
	for _, page := range pages {
		o.record(result, models.PageOutcome{
			Page:    page,
			Records: []*models.ProductRecord{},
			Error:   fmt.Sprintf("not attempted: %v", cause),
		})
	}
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(o.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
