// Package pipeline orchestrates the site indexing run: validate, crawl,
// resolve, generate, reconcile, publish, in that order, strictly.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/crawl"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/index"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/progress"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/publish"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/reconcile"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/resolve"
)

// Options selects what one run does.
type Options struct {
	Site        string
	ContentType string
	Publish     bool
}

// Runner wires the stages of one indexing run. Stages never overlap: each
// consumes the complete output of the previous one.
type Runner struct {
	crawler    *crawl.Crawler
	resolver   *resolve.Resolver
	reader     cms.ContentReader
	reconciler *reconcile.Reconciler
	monitor    *publish.Monitor
	reporter   *progress.Reporter
	logger     *zap.Logger
}

// New constructs a Runner. reporter receives the per-stage progress events;
// nil discards them.
func New(
	crawler *crawl.Crawler,
	resolver *resolve.Resolver,
	reader cms.ContentReader,
	reconciler *reconcile.Reconciler,
	monitor *publish.Monitor,
	reporter *progress.Reporter,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		crawler:    crawler,
		resolver:   resolver,
		reader:     reader,
		reconciler: reconciler,
		monitor:    monitor,
		reporter:   reporter,
		logger:     logger,
	}
}

// Run executes the full pipeline for one site.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	// Schema first: a malformed index type halts the run before any crawl
	// call is made.
	r.reporter.Start(progress.StageValidate)
	r.reporter.Note(progress.StageValidate, "validate page index fields")
	start := time.Now()
	indexSchema, err := r.reader.TypeSchema(ctx, opts.ContentType)
	if err != nil {
		return err
	}
	if err := cms.ValidateIndexType(indexSchema); err != nil {
		return err
	}
	r.reporter.Done(progress.StageValidate, time.Since(start))

	r.reporter.Start(progress.StageCrawl)
	r.reporter.Note(progress.StageCrawl, "query site structure")
	start = time.Now()
	site, err := r.crawler.Site(ctx, opts.Site)
	if err != nil {
		return err
	}
	pages, err := r.crawler.Pages(ctx, opts.Site)
	if err != nil {
		return err
	}
	ids := make([]int, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}

	r.reporter.CountNote(progress.StageCrawl, len(pages), "query page data for %d pages", len(pages))
	pageData, err := r.crawler.PageData(ctx, opts.Site, ids)
	if err != nil {
		return err
	}
	r.reporter.Done(progress.StageCrawl, time.Since(start))

	r.reporter.Start(progress.StageResolve)
	r.reporter.Note(progress.StageResolve, "query referenced content")
	start = time.Now()
	itemsByPage, err := r.resolver.Associate(ctx, site.ChannelToken(),
		crawl.ContentIDs(pageData), crawl.ListQueries(pageData, opts.ContentType))
	if err != nil {
		return err
	}

	// Resolved items carry their types, covering direct references and list
	// results alike.
	typeTextFields, err := r.textFieldMap(ctx, resolvedTypes(itemsByPage))
	if err != nil {
		return err
	}
	r.reporter.Done(progress.StageResolve, time.Since(start))

	r.reporter.Start(progress.StageGenerate)
	start = time.Now()
	records := index.Generate(index.Input{
		Site:           site,
		Pages:          pages,
		PageData:       pageData,
		ItemsByPage:    itemsByPage,
		TypeTextFields: typeTextFields,
	}, r.logger)
	r.reporter.Done(progress.StageGenerate, time.Since(start))

	r.reporter.Start(progress.StageReconcile)
	start = time.Now()
	plan, err := r.reconciler.BuildPlan(ctx, opts.ContentType, records)
	if err != nil {
		return err
	}
	r.reporter.CountNote(progress.StageReconcile, len(plan.ToCreate), "will create %d items", len(plan.ToCreate))
	r.reporter.CountNote(progress.StageReconcile, len(plan.ToUpdate), "will update %d items", len(plan.ToUpdate))
	itemIDs, err := r.reconciler.Apply(ctx, site, opts.ContentType, plan)
	if err != nil {
		return err
	}
	r.reporter.Done(progress.StageReconcile, time.Since(start))

	if !opts.Publish {
		r.logger.Info("publish skipped", zap.String("site", site.Name))
		return nil
	}
	r.reporter.Start(progress.StagePublish)
	r.reporter.CountNote(progress.StagePublish, len(itemIDs), "publish %d items", len(itemIDs))
	start = time.Now()
	if err := r.monitor.Publish(ctx, site.ChannelID, itemIDs); err != nil {
		return err
	}
	r.reporter.Done(progress.StagePublish, time.Since(start))
	return nil
}

// resolvedTypes returns the distinct content types of all resolved items, in
// sorted order.
func resolvedTypes(itemsByPage map[int][]cms.ContentItem) []string {
	seen := map[string]bool{}
	for _, items := range itemsByPage {
		for _, item := range items {
			if item.Type != "" {
				seen[item.Type] = true
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

// textFieldMap fetches the schema for each referenced content type and keeps
// its text-bearing field names.
func (r *Runner) textFieldMap(ctx context.Context, types []string) (map[string][]string, error) {
	out := make(map[string][]string, len(types))
	for _, name := range types {
		schema, err := r.reader.TypeSchema(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetch schema for content type %s: %w", name, err)
		}
		out[name] = cms.TextFields(schema)
	}
	return out, nil
}
