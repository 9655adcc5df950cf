// Package crawl fetches a site's identity, structure, and per-page component
// data in bounded batches.
package crawl

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
)

// DefaultPageBatch is the transport-imposed cap on page ids per request.
const DefaultPageBatch = 50

// Crawler drives the structure and page-data fetches for one site.
type Crawler struct {
	reader    cms.SiteReader
	batchSize int
	logger    *zap.Logger
}

// New constructs a Crawler. batchSize <= 0 selects DefaultPageBatch.
func New(reader cms.SiteReader, batchSize int, logger *zap.Logger) *Crawler {
	if batchSize <= 0 {
		batchSize = DefaultPageBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{reader: reader, batchSize: batchSize, logger: logger}
}

// Site fetches the site's identity. The remote "does not exist" sentinel
// surfaces as cms.ErrSiteNotFound.
func (c *Crawler) Site(ctx context.Context, name string) (cms.Site, error) {
	site, err := c.reader.SiteInfo(ctx, name)
	if err != nil {
		return cms.Site{}, err
	}
	return site, nil
}

// Pages fetches the site's page tree; an empty structure is an error.
func (c *Crawler) Pages(ctx context.Context, name string) ([]cms.Page, error) {
	pages, err := c.reader.Structure(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, cms.ErrNoPages
	}
	return pages, nil
}

// PageData fetches the data blobs for all given page ids, at most batchSize
// ids per outbound request. Batches are issued concurrently and merged; the
// merge is commutative, so completion order does not matter.
func (c *Crawler) PageData(ctx context.Context, site string, ids []int) (map[int]cms.PageDetail, error) {
	if len(ids) == 0 {
		return map[int]cms.PageDetail{}, nil
	}
	batches := splitIDs(ids, c.batchSize)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		merged   = make(map[int]cms.PageDetail, len(ids))
		firstErr error
	)
	for i, batch := range batches {
		wg.Add(1)
		go func(n int, batch []int) {
			defer wg.Done()
			metrics.ObserveBatch("page_data")
			data, err := c.reader.PageData(ctx, site, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					if re, ok := err.(*cms.RemoteError); ok {
						firstErr = re.WithBatch(fmt.Sprintf("page data batch %d/%d", n+1, len(batches)))
					} else {
						firstErr = fmt.Errorf("page data batch %d/%d: %w", n+1, len(batches), err)
					}
				}
				return
			}
			for id, detail := range data {
				merged[id] = detail
			}
		}(i, batch)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	c.logger.Debug("page data fetched",
		zap.Int("pages", len(merged)), zap.Int("batches", len(batches)))
	return merged, nil
}

func splitIDs(ids []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// ContentTypes returns the distinct content types referenced by list
// components across all pages, in sorted order.
func ContentTypes(pageData map[int]cms.PageDetail) []string {
	seen := map[string]bool{}
	for _, detail := range pageData {
		for _, inst := range detail.Components {
			if inst.Kind == cms.KindContentList && inst.Data.ContentType != "" {
				seen[inst.Data.ContentType] = true
			}
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ContentIDs returns, per page, the content ids referenced directly by item
// components. Pages without references are absent from the map.
func ContentIDs(pageData map[int]cms.PageDetail) map[int][]string {
	out := map[int][]string{}
	for id, detail := range pageData {
		seen := map[string]bool{}
		for _, inst := range detail.Components {
			if inst.Kind != cms.KindContentItem {
				continue
			}
			for _, cid := range inst.Data.ContentIDs {
				if cid == "" || seen[cid] {
					continue
				}
				seen[cid] = true
				out[id] = append(out[id], cid)
			}
		}
	}
	return out
}

// ListQueries returns, per page, the content list query descriptors, skipping
// any list whose type equals the page-index content type itself to avoid
// self-reference.
func ListQueries(pageData map[int]cms.PageDetail, indexType string) []cms.PageListQuery {
	var out []cms.PageListQuery
	pageIDs := make([]int, 0, len(pageData))
	for id := range pageData {
		pageIDs = append(pageIDs, id)
	}
	sort.Ints(pageIDs)
	for _, id := range pageIDs {
		for _, inst := range pageData[id].Components {
			if inst.Kind != cms.KindContentList {
				continue
			}
			q := inst.Data.ListQuery()
			if q.Type == "" || q.Type == indexType {
				continue
			}
			out = append(out, cms.PageListQuery{PageID: id, Query: q})
		}
	}
	return out
}
