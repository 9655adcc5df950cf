// Package resolve fetches the content referenced by crawled pages in bounded
// batches and re-associates results with their originating pages.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
)

// DefaultItemBatch caps how many ids a single OR-predicate query may carry.
const DefaultItemBatch = 30

// Policy decides what a failed batch does to the run.
type Policy string

// Batch failure policies. Strict aborts the run on the first failed batch;
// Skip drops the affected association and continues, never silently.
const (
	PolicyStrict Policy = "strict"
	PolicySkip   Policy = "skip"
)

// Valid reports whether p is a recognized policy value.
func (p Policy) Valid() bool {
	return p == PolicyStrict || p == PolicySkip
}

// Resolver fetches referenced content through the channel.
type Resolver struct {
	reader    cms.ContentReader
	batchSize int
	policy    Policy
	logger    *zap.Logger
}

// New constructs a Resolver. batchSize <= 0 selects DefaultItemBatch; an
// unrecognized policy falls back to strict.
func New(reader cms.ContentReader, batchSize int, policy Policy, logger *zap.Logger) *Resolver {
	if batchSize <= 0 {
		batchSize = DefaultItemBatch
	}
	if !policy.Valid() {
		policy = PolicyStrict
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{reader: reader, batchSize: batchSize, policy: policy, logger: logger}
}

// Items resolves the given content ids. Ids are packed into batches whose
// boundary falls exactly at the batch cap; batches run concurrently. A batch
// holding a single id uses the direct get-by-id path instead of an
// OR-predicate query; both paths produce the same shape.
func (r *Resolver) Items(ctx context.Context, channelToken string, ids []string) ([]cms.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var batches [][]string
	current := make([]string, 0, r.batchSize)
	for _, id := range ids {
		current = append(current, id)
		if len(current) == r.batchSize {
			batches = append(batches, current)
			current = make([]string, 0, r.batchSize)
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		all      []cms.ContentItem
		firstErr error
	)
	for i, batch := range batches {
		wg.Add(1)
		go func(n int, batch []string) {
			defer wg.Done()
			metrics.ObserveBatch("content_items")
			items, err := r.fetchBatch(ctx, channelToken, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				err = batchError(err, fmt.Sprintf("content batch %d/%d", n+1, len(batches)))
				if r.policy == PolicySkip {
					r.logger.Warn("skipping failed content batch", zap.Error(err))
					return
				}
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			all = append(all, items...)
		}(i, batch)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

func (r *Resolver) fetchBatch(ctx context.Context, channelToken string, ids []string) ([]cms.ContentItem, error) {
	if len(ids) == 1 {
		item, err := r.reader.ItemByID(ctx, channelToken, ids[0])
		if err != nil {
			return nil, err
		}
		return []cms.ContentItem{item}, nil
	}
	return r.reader.ItemsByIDs(ctx, channelToken, ids)
}

// Lists resolves content list queries, one outbound call per query. Results
// attach to the originating page and are never merged across pages.
func (r *Resolver) Lists(ctx context.Context, channelToken string, queries []cms.PageListQuery) (map[int][]cms.ContentItem, error) {
	out := make(map[int][]cms.ContentItem, len(queries))
	if len(queries) == 0 {
		return out, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, pq := range queries {
		wg.Add(1)
		go func(n int, pq cms.PageListQuery) {
			defer wg.Done()
			metrics.ObserveBatch("content_lists")
			items, err := r.reader.ItemsByQuery(ctx, channelToken, pq.Query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				err = batchError(err, fmt.Sprintf("list query %d/%d (page %d, type %s)",
					n+1, len(queries), pq.PageID, pq.Query.Type))
				if r.policy == PolicySkip {
					r.logger.Warn("skipping failed list query", zap.Error(err))
					return
				}
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			out[pq.PageID] = append(out[pq.PageID], items...)
		}(i, pq)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Associate resolves everything the crawl discovered and attaches results to
// their originating pages: direct references are resolved as one deduplicated
// id set and fanned back out, list results stay with the page that declared
// the query. Resolution covers every reference; under the skip policy a
// failure drops only that content's association, never the whole page.
func (r *Resolver) Associate(
	ctx context.Context,
	channelToken string,
	refs map[int][]string,
	queries []cms.PageListQuery,
) (map[int][]cms.ContentItem, error) {
	var (
		distinct []string
		seen     = map[string]bool{}
	)
	for _, ids := range refs {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				distinct = append(distinct, id)
			}
		}
	}
	sort.Strings(distinct)

	items, err := r.Items(ctx, channelToken, distinct)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]cms.ContentItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	out := map[int][]cms.ContentItem{}
	for pageID, ids := range refs {
		for _, id := range ids {
			item, ok := byID[id]
			if !ok {
				r.logger.Warn("referenced content id did not resolve",
					zap.Int("page_id", pageID), zap.String("content_id", id))
				continue
			}
			out[pageID] = append(out[pageID], item)
		}
	}

	lists, err := r.Lists(ctx, channelToken, queries)
	if err != nil {
		return nil, err
	}
	for pageID, items := range lists {
		out[pageID] = append(out[pageID], items...)
	}
	return out, nil
}

func batchError(err error, batch string) error {
	if re, ok := err.(*cms.RemoteError); ok {
		return re.WithBatch(batch)
	}
	return fmt.Errorf("%s: %w", batch, err)
}
