package engine

import (
	"context"
	"time"

	"github.com/law-makers/pricecrawl/pkg/models"
)

// Strategy is one way of obtaining a page. Strategies are ordered from cheap
// to expensive inside a Plan.
type Strategy interface {
	// Fetch retrieves the page described by opts, honouring ctx cancellation
	Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error)

	// Name returns the name of the strategy implementation
	Name() string
}

// Step is a strategy with its own time budget and success predicate
type Step struct {
	Strategy Strategy
	Timeout  time.Duration
	Validate Validator
}

// Plan is the ordered escalation ladder tried for every URL
type Plan []Step

// Names returns the strategy names in plan order
func (p Plan) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Strategy.Name()
	}
	return names
}
