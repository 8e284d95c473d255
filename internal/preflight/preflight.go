// Package preflight implements the optional Alignment Preflight
// (spec.md §4.12): given the extracted expectations and the target URL,
// probes the page once to confirm at least one extracted literal
// actually appears on the page. On mismatch the Orchestrator must
// surface a USAGE_ERROR ("src/url mismatch"); this phase never mutates
// the site and is opt-in.
package preflight

import (
	"context"
	"strings"

	"github.com/odavlstudio/verax/internal/model"
)

// PageFetcher is the minimal external collaborator preflight needs: a
// single read-only fetch of the target page's body. The real
// implementation is part of the same external browser/HTTP collaborator
// boundary as internal/observe; preflight only needs raw markup, not a
// full browser session.
type PageFetcher interface {
	FetchBody(ctx context.Context, targetURL string) (string, error)
}

// Result reports whether at least one literal was found, and which one.
type Result struct {
	Aligned       bool
	MatchedLiteral string
}

// Check probes targetURL once via fetcher and reports whether any
// literal among expectations' promise values appears verbatim in the
// page body (spec.md §4.12: "at least one extracted literal ... appears
// on the page").
func Check(ctx context.Context, fetcher PageFetcher, targetURL string, expectations []model.Expectation) (Result, error) {
	body, err := fetcher.FetchBody(ctx, targetURL)
	if err != nil {
		return Result{}, err
	}
	for _, exp := range expectations {
		val := exp.Promise.Value
		if val == "" {
			continue
		}
		if strings.Contains(body, val) {
			return Result{Aligned: true, MatchedLiteral: val}, nil
		}
	}
	return Result{Aligned: false}, nil
}
