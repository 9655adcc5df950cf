// Package cms defines core types shared across the indexing pipeline.
package cms

import (
	"strconv"
	"time"
)

// ChannelToken is a named access token granting read access to a publish channel.
type ChannelToken struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Site is the immutable per-run snapshot of a site's identity.
type Site struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	DefaultLanguage string         `json:"defaultLanguage"`
	Languages       []string       `json:"languages"`
	RepositoryID    string         `json:"repositoryId"`
	ChannelID       string         `json:"channelId"`
	ChannelTokens   []ChannelToken `json:"channelAccessTokens"`
}

// ChannelToken returns the token named "default" when present, else the first
// token in API-returned order. The first-token fallback is a documented choice,
// not an accidental ordering dependency.
func (s Site) ChannelToken() string {
	for _, t := range s.ChannelTokens {
		if t.Name == "default" {
			return t.Value
		}
	}
	if len(s.ChannelTokens) > 0 {
		return s.ChannelTokens[0].Value
	}
	return ""
}

// Page is one node of a site's structure tree. The root is the page whose
// ParentID is nil.
type Page struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	PageURL      string `json:"pageUrl"`
	ParentID     *int   `json:"parentId"`
	IsDetailPage bool   `json:"isDetailPage"`
	Children     []int  `json:"children"`
}

// PageProperties holds the page-level settings harvested into the index.
type PageProperties struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ComponentKind tags a component instance with its closed variant set.
type ComponentKind string

// Known component kinds. Anything else decodes to KindUnknown and contributes
// no keywords.
const (
	KindParagraph   ComponentKind = "scs-paragraph"
	KindTitle       ComponentKind = "scs-title"
	KindButton      ComponentKind = "scs-button"
	KindInlineText  ComponentKind = "scs-inline-text"
	KindImage       ComponentKind = "scs-image"
	KindGallery     ComponentKind = "scs-gallery"
	KindContentItem ComponentKind = "scs-contentitem"
	KindContentList ComponentKind = "scs-contentlist"
	KindUnknown     ComponentKind = ""
)

// ParseComponentKind maps a wire type tag onto the closed variant set.
func ParseComponentKind(s string) ComponentKind {
	switch ComponentKind(s) {
	case KindParagraph, KindTitle, KindButton, KindInlineText,
		KindImage, KindGallery, KindContentItem, KindContentList:
		return ComponentKind(s)
	default:
		return KindUnknown
	}
}

// GalleryImage is one entry of a gallery component's image list.
type GalleryImage struct {
	AltText     string `json:"altText"`
	Description string `json:"description"`
	Title       string `json:"title"`
}

// ListQuery is a content list component's declarative filter.
type ListQuery struct {
	Type    string `json:"contentType"`
	Limit   int    `json:"maxResults"`
	Offset  int    `json:"firstItem"`
	OrderBy string `json:"sortOrder"`
}

// ComponentData is the union of per-variant payload fields. Only the fields
// relevant to the instance's Kind carry meaning.
type ComponentData struct {
	UserText    string         `json:"userText"`
	Text        string         `json:"text"`
	InnerHTML   string         `json:"innerHTML"`
	AltText     string         `json:"altText"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Images      []GalleryImage `json:"images"`
	ContentIDs  []string       `json:"contentIds"`
	ContentType string         `json:"contentType"`
	MaxResults  int            `json:"maxResults"`
	FirstItem   int            `json:"firstItem"`
	SortOrder   string         `json:"sortOrder"`
}

// ListQuery projects a content list component's data onto its query descriptor.
func (d ComponentData) ListQuery() ListQuery {
	return ListQuery{
		Type:    d.ContentType,
		Limit:   d.MaxResults,
		Offset:  d.FirstItem,
		OrderBy: d.SortOrder,
	}
}

// ComponentInstance is one keyed entry of a page's data blob.
type ComponentInstance struct {
	Kind ComponentKind
	Data ComponentData
}

// PageDetail is the fetched data blob for a single page.
type PageDetail struct {
	Properties PageProperties
	Components []ComponentInstance
}

// PageListQuery associates a list query with the page that declared it.
type PageListQuery struct {
	PageID int
	Query  ListQuery
}

// ContentItem is a resolved content record.
type ContentItem struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Fields      map[string]any `json:"fields"`
	UpdatedDate time.Time      `json:"updatedDate"`
}

// TypeField describes one field of a content type's schema.
type TypeField struct {
	Name       string `json:"name"`
	Datatype   string `json:"datatype"`
	ValueCount string `json:"valuecount"`
}

// ContentType is a content type's schema as reported by the remote service.
type ContentType struct {
	Name   string      `json:"name"`
	Fields []TypeField `json:"fields"`
}

// Field returns the schema field with the given name, if declared.
func (t ContentType) Field(name string) (TypeField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return TypeField{}, false
}

// PageIndexRecord is the unit the pipeline produces and reconciles: one
// searchable record per non-detail page per run.
type PageIndexRecord struct {
	Site            string   `json:"site"`
	PageID          string   `json:"pageid"`
	PageName        string   `json:"pagename"`
	PageURL         string   `json:"pageurl"`
	PageTitle       string   `json:"pagetitle"`
	PageDescription string   `json:"pagedescription"`
	Keywords        []string `json:"keywords"`
}

// Key returns the (site, pageId) identity used for reconciliation matching.
func (r PageIndexRecord) Key() string {
	return r.Site + "/" + r.PageID
}

// IndexItem is the remote counterpart of a PageIndexRecord.
type IndexItem struct {
	ID     string
	Record PageIndexRecord
}

// JobStatus is the lifecycle state of a remote publish job.
type JobStatus string

// Publish job states reported by the remote service.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "inprogress"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// PublishJob is the polled view of a remote publish task.
type PublishJob struct {
	ID      string
	Status  JobStatus
	Percent int
	Message string
}

// PageIDString renders a page id the way index records store it.
func PageIDString(id int) string {
	return strconv.Itoa(id)
}
