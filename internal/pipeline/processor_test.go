package pipeline_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_spider/internal/config"
	"listing_spider/internal/logger"
	"listing_spider/internal/pipeline"
	"listing_spider/internal/reveal"
)

const detailHTML = `<html><body><h1>123 Main St</h1>
<div data-testid="on-market-price-details">$450,000</div>
</body></html>`

type fakeFetcher struct {
	html  string
	err   error
	calls []string
}

func (f *fakeFetcher) FetchHTML(_ context.Context, target string) (string, error) {
	f.calls = append(f.calls, target)
	return f.html, f.err
}

type fakeRevealer struct {
	res *reveal.Result
	err error
	got string
}

func (f *fakeRevealer) Reveal(_ context.Context, html string) (*reveal.Result, error) {
	f.got = html
	return f.res, f.err
}

func entries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	es, err := os.ReadDir(dir)
	require.NoError(t, err)
	return es
}

func TestProcessRunsEveryStage(t *testing.T) {
	scratch := t.TempDir()
	store := &memStore{}
	rv := &fakeRevealer{res: &reveal.Result{
		HTML:   detailHTML,
		Images: []string{"https://photos.example/pictures/1.jpg"},
	}}
	p := pipeline.NewProcessor(config.PipelineConfig{}, scratch, &fakeFetcher{html: detailHTML}, rv, pipeline.NewResolver(store, logger.NewNop()), logger.NewNop())

	l, err := p.Process(context.Background(), "https://x.example/home/1")
	require.NoError(t, err)

	assert.Equal(t, detailHTML, rv.got)
	assert.Equal(t, []string{"https://photos.example/pictures/1.jpg"}, l.Images)
	assert.Equal(t, "123 Main St", l.Title)
	assert.Len(t, store.listings, 1)
	assert.Empty(t, entries(t, scratch), "workspace removed after success")
}

func TestProcessDegradesWhenRevealFails(t *testing.T) {
	store := &memStore{}
	rv := &fakeRevealer{err: errors.New("browser crashed")}
	p := pipeline.NewProcessor(config.PipelineConfig{}, t.TempDir(), &fakeFetcher{html: detailHTML}, rv, pipeline.NewResolver(store, logger.NewNop()), logger.NewNop())

	l, err := p.Process(context.Background(), "https://x.example/home/1")
	require.NoError(t, err)
	assert.Equal(t, "123 Main St", l.Title)
	assert.Equal(t, []string{}, l.Images)
}

func TestProcessWithoutRevealer(t *testing.T) {
	store := &memStore{}
	p := pipeline.NewProcessor(config.PipelineConfig{}, t.TempDir(), &fakeFetcher{html: detailHTML}, nil, pipeline.NewResolver(store, logger.NewNop()), logger.NewNop())

	l, err := p.Process(context.Background(), "https://x.example/home/1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, l.Images)
}

func TestProcessFetchFailureSkipsPersist(t *testing.T) {
	store := &memStore{}
	p := pipeline.NewProcessor(config.PipelineConfig{}, t.TempDir(), &fakeFetcher{err: errors.New("render-service-unavailable")}, nil, pipeline.NewResolver(store, logger.NewNop()), logger.NewNop())

	_, err := p.Process(context.Background(), "https://x.example/home/1")
	require.Error(t, err)
	assert.Empty(t, store.listings)
}

func TestProcessKeepsSnapshotOnFailure(t *testing.T) {
	scratch := t.TempDir()
	store := &memStore{failInsert: true}
	cfg := config.PipelineConfig{KeepFailedSnapshots: true}
	p := pipeline.NewProcessor(cfg, scratch, &fakeFetcher{html: detailHTML}, nil, pipeline.NewResolver(store, logger.NewNop()), logger.NewNop())

	_, err := p.Process(context.Background(), "https://x.example/home/1")
	var perr *pipeline.PersistenceError
	require.ErrorAs(t, err, &perr)

	kept := entries(t, scratch)
	require.Len(t, kept, 1)
	raw, err := os.ReadFile(scratch + "/" + kept[0].Name() + "/raw.html")
	require.NoError(t, err)
	assert.Equal(t, detailHTML, string(raw))
}
