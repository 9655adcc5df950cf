package cms

import (
	"context"
	"time"
)

// SiteReader fetches site identity and structure. Each method maps to exactly
// one outbound request; batching across requests is the caller's concern.
type SiteReader interface {
	SiteInfo(ctx context.Context, name string) (Site, error)
	Structure(ctx context.Context, site string) ([]Page, error)
	PageData(ctx context.Context, site string, ids []int) (map[int]PageDetail, error)
}

// ContentReader fetches content items and type schemas through the channel.
type ContentReader interface {
	// ItemsByIDs issues a single OR-predicate query over the given ids.
	ItemsByIDs(ctx context.Context, channelToken string, ids []string) ([]ContentItem, error)
	// ItemByID fetches one item directly, bypassing the query surface.
	ItemByID(ctx context.Context, channelToken, id string) (ContentItem, error)
	// ItemsByQuery runs one content list query with its own limit/offset/order.
	ItemsByQuery(ctx context.Context, channelToken string, q ListQuery) ([]ContentItem, error)
	// ItemsByType lists all items of a content type, regardless of channel.
	ItemsByType(ctx context.Context, typeName string) ([]ContentItem, error)
	// TypeSchema fetches a content type's field schema.
	TypeSchema(ctx context.Context, name string) (ContentType, error)
}

// ItemWriter performs mutating item operations through the session broker's
// pseudo-RPC surface. Create/Update address payloads staged on the broker by
// index rather than carrying them inline.
type ItemWriter interface {
	CreateItem(ctx context.Context, staged int) (IndexItem, error)
	UpdateItem(ctx context.Context, staged int) (IndexItem, error)
	AddToChannel(ctx context.Context, channelID, itemID string) error
}

// JobRunner submits a publish job and reports its progress.
type JobRunner interface {
	SubmitPublish(ctx context.Context, channelID string, itemIDs []string) (string, error)
	JobStatus(ctx context.Context, jobID string) (PublishJob, error)
}

// StagedRun is the per-run staging payload handed to the session broker. The
// broker's pseudo-RPC handlers look up create/update payloads here by index.
type StagedRun struct {
	Repository  string
	ContentType string
	Language    string
	Creates     []PageIndexRecord
	Updates     []IndexItem
}

// Stager receives the staged run before any item writes are issued. Staging is
// written once per run by the reconciler and read-only afterward.
type Stager interface {
	Stage(run StagedRun)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
