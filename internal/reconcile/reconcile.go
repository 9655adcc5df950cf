// Package reconcile diffs generated index records against the existing remote
// set and applies the writes in the order publish visibility requires.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
)

// Plan partitions the generated records: every record is classified create
// XOR update against the existing remote set.
type Plan struct {
	ToCreate []cms.PageIndexRecord
	ToUpdate []cms.IndexItem
}

// Reconciler classifies and writes index records through the session broker.
type Reconciler struct {
	reader cms.ContentReader
	writer cms.ItemWriter
	stager cms.Stager
	logger *zap.Logger
}

// New constructs a Reconciler.
func New(reader cms.ContentReader, writer cms.ItemWriter, stager cms.Stager, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{reader: reader, writer: writer, stager: stager, logger: logger}
}

// BuildPlan fetches the existing remote index items and classifies each
// generated record by its (site, pageId) identity. A matched record becomes an
// update carrying the freshly generated payload; an unmatched one a create.
func (r *Reconciler) BuildPlan(ctx context.Context, indexType string, generated []cms.PageIndexRecord) (Plan, error) {
	existing, err := r.reader.ItemsByType(ctx, indexType)
	if err != nil {
		return Plan{}, fmt.Errorf("fetch existing index items: %w", err)
	}
	byKey := make(map[string]string, len(existing))
	for _, item := range existing {
		key := existingKey(item)
		if key == "" {
			r.logger.Warn("existing index item lacks site/pageid fields", zap.String("item_id", item.ID))
			continue
		}
		byKey[key] = item.ID
	}

	var plan Plan
	for _, rec := range generated {
		if id, ok := byKey[rec.Key()]; ok {
			plan.ToUpdate = append(plan.ToUpdate, cms.IndexItem{ID: id, Record: rec})
		} else {
			plan.ToCreate = append(plan.ToCreate, rec)
		}
	}
	return plan, nil
}

func existingKey(item cms.ContentItem) string {
	site, _ := item.Fields["site"].(string)
	pageID, _ := item.Fields["pageid"].(string)
	if site == "" || pageID == "" {
		return ""
	}
	return site + "/" + pageID
}

// Apply stages the plan on the broker, submits every create and its channel
// association, then runs all updates, and returns every affected item id.
// Updates must not start before all new items are channel-visible: publish
// operates over the channel, and an item the channel cannot see cannot be
// published.
func (r *Reconciler) Apply(ctx context.Context, site cms.Site, indexType string, plan Plan) ([]string, error) {
	r.stager.Stage(cms.StagedRun{
		Repository:  site.RepositoryID,
		ContentType: indexType,
		Language:    site.DefaultLanguage,
		Creates:     plan.ToCreate,
		Updates:     plan.ToUpdate,
	})

	created, err := r.applyCreates(ctx, site.ChannelID, plan)
	if err != nil {
		return nil, err
	}
	updated, err := r.applyUpdates(ctx, plan)
	if err != nil {
		return nil, err
	}
	return append(created, updated...), nil
}

func (r *Reconciler) applyCreates(ctx context.Context, channelID string, plan Plan) ([]string, error) {
	ids := make([]string, 0, len(plan.ToCreate))
	for i, rec := range plan.ToCreate {
		item, err := r.writer.CreateItem(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("create index item for page %s: %w", rec.PageID, err)
		}
		if err := r.writer.AddToChannel(ctx, channelID, item.ID); err != nil {
			return nil, fmt.Errorf("add item %s to channel: %w", item.ID, err)
		}
		metrics.ObserveReconcileOp("create")
		r.logger.Debug("index item created",
			zap.String("item_id", item.ID), zap.String("page_id", rec.PageID))
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (r *Reconciler) applyUpdates(ctx context.Context, plan Plan) ([]string, error) {
	ids := make([]string, 0, len(plan.ToUpdate))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, item := range plan.ToUpdate {
		wg.Add(1)
		go func(staged int, item cms.IndexItem) {
			defer wg.Done()
			updated, err := r.writer.UpdateItem(ctx, staged)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("update index item %s: %w", item.ID, err)
				}
				return
			}
			metrics.ObserveReconcileOp("update")
			ids = append(ids, updated.ID)
		}(i, item)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return ids, nil
}
