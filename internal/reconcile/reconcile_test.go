package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
)

type fakeReader struct {
	existing []cms.ContentItem
	err      error
}

func (f *fakeReader) ItemsByIDs(context.Context, string, []string) ([]cms.ContentItem, error) {
	return nil, nil
}

func (f *fakeReader) ItemByID(context.Context, string, string) (cms.ContentItem, error) {
	return cms.ContentItem{}, nil
}

func (f *fakeReader) ItemsByQuery(context.Context, string, cms.ListQuery) ([]cms.ContentItem, error) {
	return nil, nil
}

func (f *fakeReader) ItemsByType(context.Context, string) ([]cms.ContentItem, error) {
	return f.existing, f.err
}

func (f *fakeReader) TypeSchema(context.Context, string) (cms.ContentType, error) {
	return cms.ContentType{}, nil
}

// opWriter records the order of write operations. Concurrent updates are
// recorded under a shared lock.
type opWriter struct {
	mu        sync.Mutex
	ops       []string
	staged    cms.StagedRun
	createErr error
	updateErr error
}

func (w *opWriter) Stage(run cms.StagedRun) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.staged = run
	w.ops = append(w.ops, "stage")
}

func (w *opWriter) CreateItem(_ context.Context, staged int) (cms.IndexItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.createErr != nil {
		return cms.IndexItem{}, w.createErr
	}
	w.ops = append(w.ops, "create")
	return cms.IndexItem{ID: "new-" + cms.PageIDString(staged)}, nil
}

func (w *opWriter) UpdateItem(_ context.Context, staged int) (cms.IndexItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.updateErr != nil {
		return cms.IndexItem{}, w.updateErr
	}
	w.ops = append(w.ops, "update")
	return cms.IndexItem{ID: w.staged.Updates[staged].ID}, nil
}

func (w *opWriter) AddToChannel(_ context.Context, _, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ops = append(w.ops, "channel")
	return nil
}

func existingItem(id, site, pageID string) cms.ContentItem {
	return cms.ContentItem{ID: id, Fields: map[string]any{"site": site, "pageid": pageID}}
}

func rec(site, pageID string) cms.PageIndexRecord {
	return cms.PageIndexRecord{Site: site, PageID: pageID}
}

func TestBuildPlan_PartitionIsExclusive(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{existing: []cms.ContentItem{
		existingItem("x1", "Blog", "100"),
		existingItem("x2", "Blog", "200"),
	}}
	r := New(reader, nil, nil, nil)

	plan, err := r.BuildPlan(context.Background(), "PageIndex", []cms.PageIndexRecord{
		rec("Blog", "100"),
		rec("Blog", "300"),
	})
	require.NoError(t, err)
	require.Len(t, plan.ToCreate, 1)
	require.Equal(t, "300", plan.ToCreate[0].PageID)
	require.Len(t, plan.ToUpdate, 1)
	require.Equal(t, "x1", plan.ToUpdate[0].ID)
	require.Equal(t, "100", plan.ToUpdate[0].Record.PageID)
}

func TestBuildPlan_SiteScopesTheMatch(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{existing: []cms.ContentItem{
		existingItem("other", "OtherSite", "100"),
	}}
	r := New(reader, nil, nil, nil)

	plan, err := r.BuildPlan(context.Background(), "PageIndex",
		[]cms.PageIndexRecord{rec("Blog", "100")})
	require.NoError(t, err)
	require.Len(t, plan.ToCreate, 1)
	require.Empty(t, plan.ToUpdate)
}

func TestBuildPlan_MalformedExistingItemIgnored(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{existing: []cms.ContentItem{
		{ID: "broken", Fields: map[string]any{"site": "Blog"}},
	}}
	r := New(reader, nil, nil, nil)

	plan, err := r.BuildPlan(context.Background(), "PageIndex",
		[]cms.PageIndexRecord{rec("Blog", "100")})
	require.NoError(t, err)
	require.Len(t, plan.ToCreate, 1)
}

func TestBuildPlan_FetchFailureAborts(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{err: errors.New("remote down")}
	r := New(reader, nil, nil, nil)
	_, err := r.BuildPlan(context.Background(), "PageIndex", nil)
	require.Error(t, err)
}

func TestApply_CreatesThenChannelThenUpdates(t *testing.T) {
	t.Parallel()

	writer := &opWriter{}
	r := New(&fakeReader{}, writer, writer, nil)
	site := cms.Site{Name: "Blog", RepositoryID: "repo", ChannelID: "ch", DefaultLanguage: "en-US"}

	plan := Plan{
		ToCreate: []cms.PageIndexRecord{rec("Blog", "1"), rec("Blog", "2")},
		ToUpdate: []cms.IndexItem{
			{ID: "u1", Record: rec("Blog", "3")},
			{ID: "u2", Record: rec("Blog", "4")},
		},
	}
	ids, err := r.Apply(context.Background(), site, "PageIndex", plan)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"new-0", "new-1", "u1", "u2"}, ids)

	// Staging happens first; each create is followed by its channel
	// association; no update starts before the last association.
	require.Equal(t, "stage", writer.ops[0])
	require.Equal(t, []string{"create", "channel", "create", "channel"}, writer.ops[1:5])
	for _, op := range writer.ops[5:] {
		require.Equal(t, "update", op)
	}
	require.Len(t, writer.ops, 7)
}

func TestApply_StagedRunCarriesSiteIdentity(t *testing.T) {
	t.Parallel()

	writer := &opWriter{}
	r := New(&fakeReader{}, writer, writer, nil)
	site := cms.Site{Name: "Blog", RepositoryID: "repo-9", ChannelID: "ch", DefaultLanguage: "fr-FR"}

	_, err := r.Apply(context.Background(), site, "PageIndex", Plan{
		ToCreate: []cms.PageIndexRecord{rec("Blog", "1")},
	})
	require.NoError(t, err)
	require.Equal(t, "repo-9", writer.staged.Repository)
	require.Equal(t, "PageIndex", writer.staged.ContentType)
	require.Equal(t, "fr-FR", writer.staged.Language)
	require.Len(t, writer.staged.Creates, 1)
}

func TestApply_CreateFailureStopsBeforeUpdates(t *testing.T) {
	t.Parallel()

	writer := &opWriter{createErr: errors.New("create rejected")}
	r := New(&fakeReader{}, writer, writer, nil)

	_, err := r.Apply(context.Background(), cms.Site{}, "PageIndex", Plan{
		ToCreate: []cms.PageIndexRecord{rec("Blog", "1")},
		ToUpdate: []cms.IndexItem{{ID: "u1"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "create index item")
	joined := strings.Join(writer.ops, ",")
	require.NotContains(t, joined, "update")
}

func TestApply_UpdateFailureSurfaces(t *testing.T) {
	t.Parallel()

	writer := &opWriter{updateErr: errors.New("conflict")}
	r := New(&fakeReader{}, writer, writer, nil)

	_, err := r.Apply(context.Background(), cms.Site{}, "PageIndex", Plan{
		ToUpdate: []cms.IndexItem{{ID: "u1"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "update index item")
}
