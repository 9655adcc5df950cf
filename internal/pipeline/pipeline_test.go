package pipeline

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/crawl"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/progress"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/publish"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/reconcile"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/resolve"
)

// fakeRemote implements every interface the pipeline consumes, backed by
// in-memory state.
type fakeRemote struct {
	mu sync.Mutex

	schema     cms.ContentType
	schemaErr  error
	site       cms.Site
	siteErr    error
	pages      []cms.Page
	pageData   map[int]cms.PageDetail
	crawlCalls int

	existing []cms.ContentItem
	items    map[string]cms.ContentItem

	staged    cms.StagedRun
	created   []string
	updated   []string
	channeled []string

	publishedChannel string
	publishedItems   []string
	jobFails         bool
}

func (f *fakeRemote) TypeSchema(_ context.Context, name string) (cms.ContentType, error) {
	if f.schemaErr != nil {
		return cms.ContentType{}, f.schemaErr
	}
	if name == f.schema.Name {
		return f.schema, nil
	}
	return cms.ContentType{Name: name}, nil
}

func (f *fakeRemote) SiteInfo(context.Context, string) (cms.Site, error) {
	f.mu.Lock()
	f.crawlCalls++
	f.mu.Unlock()
	return f.site, f.siteErr
}

func (f *fakeRemote) Structure(context.Context, string) ([]cms.Page, error) {
	f.mu.Lock()
	f.crawlCalls++
	f.mu.Unlock()
	return f.pages, nil
}

func (f *fakeRemote) PageData(_ context.Context, _ string, ids []int) (map[int]cms.PageDetail, error) {
	f.mu.Lock()
	f.crawlCalls++
	f.mu.Unlock()
	out := make(map[int]cms.PageDetail, len(ids))
	for _, id := range ids {
		out[id] = f.pageData[id]
	}
	return out, nil
}

func (f *fakeRemote) ItemsByIDs(_ context.Context, _ string, ids []string) ([]cms.ContentItem, error) {
	out := make([]cms.ContentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeRemote) ItemByID(_ context.Context, _ string, id string) (cms.ContentItem, error) {
	return f.items[id], nil
}

func (f *fakeRemote) ItemsByQuery(context.Context, string, cms.ListQuery) ([]cms.ContentItem, error) {
	return nil, nil
}

func (f *fakeRemote) ItemsByType(context.Context, string) ([]cms.ContentItem, error) {
	return f.existing, nil
}

func (f *fakeRemote) Stage(run cms.StagedRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = run
}

func (f *fakeRemote) CreateItem(_ context.Context, staged int) (cms.IndexItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.staged.Creates[staged]
	id := "created-" + rec.PageID
	f.created = append(f.created, id)
	return cms.IndexItem{ID: id, Record: rec}, nil
}

func (f *fakeRemote) UpdateItem(_ context.Context, staged int) (cms.IndexItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := f.staged.Updates[staged]
	f.updated = append(f.updated, item.ID)
	return item, nil
}

func (f *fakeRemote) AddToChannel(_ context.Context, _, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channeled = append(f.channeled, itemID)
	return nil
}

func (f *fakeRemote) SubmitPublish(_ context.Context, channelID string, itemIDs []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishedChannel = channelID
	f.publishedItems = itemIDs
	return "job-1", nil
}

func (f *fakeRemote) JobStatus(context.Context, string) (cms.PublishJob, error) {
	if f.jobFails {
		return cms.PublishJob{ID: "job-1", Status: cms.JobStatusFailed, Message: "publish rejected"}, nil
	}
	return cms.PublishJob{ID: "job-1", Status: cms.JobStatusSuccess, Percent: 100}, nil
}

func indexSchema() cms.ContentType {
	return cms.ContentType{
		Name: "PageIndex",
		Fields: []cms.TypeField{
			{Name: "site", Datatype: "text"},
			{Name: "pageid", Datatype: "text"},
			{Name: "pagename", Datatype: "text"},
			{Name: "pageurl", Datatype: "text"},
			{Name: "pagetitle", Datatype: "text"},
			{Name: "pagedescription", Datatype: "text"},
			{Name: "keywords", Datatype: "largetext", ValueCount: "list"},
		},
	}
}

func newTestRemote() *fakeRemote {
	return &fakeRemote{
		schema: indexSchema(),
		site: cms.Site{
			ID: "S1", Name: "Blog", RepositoryID: "R1", ChannelID: "CH1",
			DefaultLanguage: "en-US",
			ChannelTokens:   []cms.ChannelToken{{Name: "default", Value: "tok"}},
		},
		pages: []cms.Page{
			{ID: 100, Name: "Home", PageURL: "index.html"},
			{ID: 200, Name: "About", PageURL: "about.html"},
		},
		pageData: map[int]cms.PageDetail{
			100: {Components: []cms.ComponentInstance{
				{Kind: cms.KindParagraph, Data: cms.ComponentData{UserText: "welcome home"}},
			}},
			200: {},
		},
		items: map[string]cms.ContentItem{},
	}
}

func newTestRunner(f *fakeRemote, out *bytes.Buffer) *Runner {
	crawler := crawl.New(f, 50, nil)
	resolver := resolve.New(f, 30, resolve.PolicyStrict, nil)
	reconciler := reconcile.New(f, f, f, nil)
	monitor := publish.New(f, time.Millisecond, nil)
	reporter := progress.NewReporter("run-test", progress.NewConsoleSink(out))
	return New(crawler, resolver, f, reconciler, monitor, reporter, nil)
}

func TestRun_FreshSiteCreatesEverything(t *testing.T) {
	t.Parallel()

	f := newTestRemote()
	var out bytes.Buffer
	runner := newTestRunner(f, &out)

	err := runner.Run(context.Background(), Options{Site: "Blog", ContentType: "PageIndex", Publish: true})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"created-100", "created-200"}, f.created)
	require.ElementsMatch(t, []string{"created-100", "created-200"}, f.channeled)
	require.Empty(t, f.updated)
	require.Equal(t, "CH1", f.publishedChannel)
	require.ElementsMatch(t, []string{"created-100", "created-200"}, f.publishedItems)

	text := out.String()
	require.Contains(t, text, "- validate page index fields\n")
	require.Contains(t, text, "- will create 2 items\n")
	require.Contains(t, text, "- will update 0 items\n")
	require.Contains(t, text, "- publish 2 items\n")
}

func TestRun_ExistingItemsBecomeUpdates(t *testing.T) {
	t.Parallel()

	f := newTestRemote()
	f.existing = []cms.ContentItem{
		{ID: "old-100", Fields: map[string]any{"site": "Blog", "pageid": "100"}},
	}
	var out bytes.Buffer
	runner := newTestRunner(f, &out)

	err := runner.Run(context.Background(), Options{Site: "Blog", ContentType: "PageIndex"})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"created-200"}, f.created)
	require.ElementsMatch(t, []string{"old-100"}, f.updated)
	// Only fresh creates need channel association.
	require.ElementsMatch(t, []string{"created-200"}, f.channeled)
	// Publish was not requested.
	require.Empty(t, f.publishedItems)
	require.Contains(t, out.String(), "- will update 1 items\n")
}

func TestRun_SchemaFailureHaltsBeforeCrawl(t *testing.T) {
	t.Parallel()

	f := newTestRemote()
	f.schema.Fields = f.schema.Fields[1:] // drop "site"
	var out bytes.Buffer
	runner := newTestRunner(f, &out)

	err := runner.Run(context.Background(), Options{Site: "Blog", ContentType: "PageIndex"})
	var schemaErr *cms.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "site", schemaErr.Field)
	require.Zero(t, f.crawlCalls)
}

func TestRun_SiteNotFoundSurfaces(t *testing.T) {
	t.Parallel()

	f := newTestRemote()
	f.siteErr = cms.ErrSiteNotFound
	runner := newTestRunner(f, &bytes.Buffer{})

	err := runner.Run(context.Background(), Options{Site: "ghost", ContentType: "PageIndex"})
	require.ErrorIs(t, err, cms.ErrSiteNotFound)
}

func TestRun_EmptySiteSurfacesNoPages(t *testing.T) {
	t.Parallel()

	f := newTestRemote()
	f.pages = nil
	runner := newTestRunner(f, &bytes.Buffer{})

	err := runner.Run(context.Background(), Options{Site: "Blog", ContentType: "PageIndex"})
	require.ErrorIs(t, err, cms.ErrNoPages)
}

func TestRun_PublishFailureSurfacesJobError(t *testing.T) {
	t.Parallel()

	f := newTestRemote()
	f.jobFails = true
	runner := newTestRunner(f, &bytes.Buffer{})

	err := runner.Run(context.Background(), Options{Site: "Blog", ContentType: "PageIndex", Publish: true})
	var jobErr *cms.JobError
	require.ErrorAs(t, err, &jobErr)
	require.Contains(t, jobErr.Message, "publish rejected")
}

func TestRun_ResolvedContentFeedsKeywords(t *testing.T) {
	t.Parallel()

	f := newTestRemote()
	f.items["a1"] = cms.ContentItem{
		ID: "a1", Type: "Article", Name: "Deep Dive",
		Fields: map[string]any{"body": "long form text"},
	}
	f.pageData[100] = cms.PageDetail{Components: []cms.ComponentInstance{
		{Kind: cms.KindContentItem, Data: cms.ComponentData{ContentIDs: []string{"a1"}}},
	}}
	runner := newTestRunner(f, &bytes.Buffer{})

	err := runner.Run(context.Background(), Options{Site: "Blog", ContentType: "PageIndex"})
	require.NoError(t, err)

	var homeKeywords []string
	for _, rec := range f.staged.Creates {
		if rec.PageID == "100" {
			homeKeywords = rec.Keywords
		}
	}
	require.NotEmpty(t, homeKeywords)
	require.Contains(t, homeKeywords[0], "Deep Dive")
}
