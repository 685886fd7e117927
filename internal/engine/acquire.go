package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/law-makers/pricecrawl/internal/diag"
	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/pkg/models"
)

// DefaultStepTimeout applies to steps that do not set their own
const DefaultStepTimeout = 30 * time.Second

// AcquirerOptions configures an Acquirer
type AcquirerOptions struct {
	Islands   []document.Island
	Headers   map[string]string
	UserAgent string
	// WarmUpURL is passed to strategies that navigate to a home page first
	WarmUpURL string
	Sink      diag.Sink
}

// Acquirer walks a Plan until one strategy returns a valid document.
// It keeps no state between calls.
type Acquirer struct {
	plan Plan
	opts AcquirerOptions
}

// NewAcquirer creates an Acquirer for plan
func NewAcquirer(plan Plan, opts AcquirerOptions) (*Acquirer, error) {
	if len(plan) == 0 {
		return nil, ErrEmptyPlan
	}
	for i, step := range plan {
		if step.Strategy == nil {
			return nil, fmt.Errorf("step %d has no strategy", i)
		}
	}
	if opts.Sink == nil {
		opts.Sink = diag.Nop
	}
	return &Acquirer{plan: append(Plan(nil), plan...), opts: opts}, nil
}

// Plan returns the acquirer's strategy ladder
func (a *Acquirer) Plan() Plan {
	return append(Plan(nil), a.plan...)
}

// Acquire returns the first document that passes its step's validation.
// When every step fails the error is an *AcquisitionError.
func (a *Acquirer) Acquire(ctx context.Context, url string) (*document.Document, error) {
	doc, _, err := a.AcquirePage(ctx, url)
	return doc, err
}

// AcquirePage is Acquire that also returns the raw page the document was built from
func (a *Acquirer) AcquirePage(ctx context.Context, url string) (*document.Document, *models.PageData, error) {
	acqErr := &AcquisitionError{}

	for i, step := range a.plan {
		name := step.Strategy.Name()
		acqErr.Tried = append(acqErr.Tried, name)

		start := time.Now()
		doc, page, err := a.attempt(ctx, step, url)
		if err == nil {
			diag.Emit(a.opts.Sink, diag.Info, "acquire.succeeded", diag.F{
				"url":      url,
				"strategy": name,
				"step":     i,
				"status":   doc.StatusCode,
				"elapsed":  time.Since(start).String(),
			})
			return doc, page, nil
		}

		acqErr.Last = err
		acqErr.Attempts = append(acqErr.Attempts, Attempt{Strategy: name, Err: err})
		diag.Emit(a.opts.Sink, diag.Warn, "acquire.strategy_failed", diag.F{
			"url":      url,
			"strategy": name,
			"step":     i,
			"error":    err.Error(),
			"elapsed":  time.Since(start).String(),
		})

		if ctxErr := ctx.Err(); ctxErr != nil {
			acqErr.Last = ctxErr
			acqErr.Cancelled = true
			break
		}
	}

	diag.Emit(a.opts.Sink, diag.Error, "acquire.exhausted", diag.F{
		"url":   url,
		"tried": acqErr.Tried,
	})
	return nil, nil, acqErr
}

func (a *Acquirer) attempt(ctx context.Context, step Step, url string) (*document.Document, *models.PageData, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := step.Strategy.Fetch(stepCtx, models.RequestOptions{
		URL:       url,
		Headers:   a.opts.Headers,
		Timeout:   timeout,
		UserAgent: a.opts.UserAgent,
		WarmUpURL: a.opts.WarmUpURL,
	})
	if err != nil {
		return nil, nil, err
	}
	if page == nil {
		return nil, nil, errors.New("strategy returned no page")
	}
	if page.FetchedBy == "" {
		page.FetchedBy = step.Strategy.Name()
	}

	doc, err := a.Parse(page)
	if err != nil {
		return nil, nil, err
	}

	validate := step.Validate
	if validate == nil {
		validate = NewBlockValidator(0)
	}
	if err := validate.Validate(doc); err != nil {
		return nil, nil, err
	}
	return doc, page, nil
}

// Parse builds a document from a page using the acquirer's islands
func (a *Acquirer) Parse(page *models.PageData) (*document.Document, error) {
	target := page.FinalURL
	if target == "" {
		target = page.URL
	}
	doc, err := document.Parse(target, page.HTML, a.opts.Islands)
	if err != nil {
		return nil, err
	}
	doc.FetchedBy = page.FetchedBy
	doc.StatusCode = page.StatusCode
	return doc, nil
}
