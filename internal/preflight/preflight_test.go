package preflight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odavlstudio/verax/internal/model"
)

type fakeFetcher struct {
	body string
	err  error
}

func (f fakeFetcher) FetchBody(ctx context.Context, url string) (string, error) {
	return f.body, f.err
}

func TestCheckReportsAlignedWhenLiteralFound(t *testing.T) {
	exps := []model.Expectation{{Promise: model.Promise{Value: "/dashboard"}}}
	res, err := Check(context.Background(), fakeFetcher{body: `<a href="/dashboard">go</a>`}, "https://example.com", exps)
	require.NoError(t, err)
	require.True(t, res.Aligned)
	require.Equal(t, "/dashboard", res.MatchedLiteral)
}

func TestCheckReportsMismatchWhenNoLiteralFound(t *testing.T) {
	exps := []model.Expectation{{Promise: model.Promise{Value: "/dashboard"}}}
	res, err := Check(context.Background(), fakeFetcher{body: `<p>nothing here</p>`}, "https://example.com", exps)
	require.NoError(t, err)
	require.False(t, res.Aligned)
}

func TestCheckSkipsEmptyLiterals(t *testing.T) {
	exps := []model.Expectation{{Promise: model.Promise{Value: ""}}}
	res, err := Check(context.Background(), fakeFetcher{body: "anything"}, "https://example.com", exps)
	require.NoError(t, err)
	require.False(t, res.Aligned)
}
