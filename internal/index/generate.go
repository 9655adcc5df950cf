// Package index derives one normalized, searchable index record per site page
// from page metadata, component text, and resolved content text.
package index

import (
	"strings"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
)

// blankField is what the remote schema expects for an absent text value; an
// empty string is rejected by the legacy validation.
const blankField = " "

// componentText projects a component instance onto its searchable text. The
// variant set is closed; unknown variants contribute nothing, explicitly.
func componentText(inst cms.ComponentInstance) string {
	switch inst.Kind {
	case cms.KindParagraph, cms.KindTitle:
		return inst.Data.UserText
	case cms.KindButton:
		return inst.Data.Text
	case cms.KindInlineText:
		return inst.Data.InnerHTML
	case cms.KindImage:
		return joinNonEmpty(inst.Data.AltText, inst.Data.Description, inst.Data.Title)
	case cms.KindGallery:
		parts := make([]string, 0, len(inst.Data.Images)*3)
		for _, img := range inst.Data.Images {
			parts = append(parts, img.AltText, img.Description, img.Title)
		}
		return joinNonEmpty(parts...)
	case cms.KindContentItem, cms.KindContentList:
		// Referenced content text is harvested from resolved items, not here.
		return ""
	case cms.KindUnknown:
		return ""
	default:
		return ""
	}
}

// itemText projects a resolved content item onto its searchable text: name,
// description, and every field declared text-bearing for the item's type.
func itemText(item cms.ContentItem, typeTextFields map[string][]string) string {
	parts := []string{item.Name, item.Description}
	for _, field := range typeTextFields[item.Type] {
		parts = append(parts, fieldText(item.Fields[field])...)
	}
	return joinNonEmpty(parts...)
}

func fieldText(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, entry := range val {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// Input carries everything Generate needs; Generate itself performs no I/O.
type Input struct {
	Site     cms.Site
	Pages    []cms.Page
	PageData map[int]cms.PageDetail
	// ItemsByPage holds resolved content already associated back to the pages
	// that referenced it (direct ids and list queries alike).
	ItemsByPage map[int][]cms.ContentItem
	// TypeTextFields declares, per content type, which fields are text-bearing.
	TypeTextFields map[string][]string
}

// Generate computes one PageIndexRecord per non-detail page. Each record's
// (site, pageId) pair is unique within the run.
func Generate(in Input, logger *zap.Logger) []cms.PageIndexRecord {
	if logger == nil {
		logger = zap.NewNop()
	}
	records := make([]cms.PageIndexRecord, 0, len(in.Pages))
	seen := make(map[string]bool, len(in.Pages))
	for _, page := range in.Pages {
		if page.IsDetailPage {
			continue
		}
		rec := generateOne(in, page)
		if seen[rec.Key()] {
			logger.Warn("duplicate page in structure, keeping first record",
				zap.String("page_id", rec.PageID))
			continue
		}
		seen[rec.Key()] = true
		records = append(records, rec)
	}
	return records
}

func generateOne(in Input, page cms.Page) cms.PageIndexRecord {
	detail := in.PageData[page.ID]

	rec := cms.PageIndexRecord{
		Site:            in.Site.Name,
		PageID:          cms.PageIDString(page.ID),
		PageName:        page.Name,
		PageURL:         page.PageURL,
		PageTitle:       detail.Properties.Title,
		PageDescription: detail.Properties.Description,
	}
	if rec.PageTitle == "" {
		rec.PageTitle = blankField
	}
	if rec.PageDescription == "" {
		rec.PageDescription = blankField
	}

	var parts []string
	for _, inst := range detail.Components {
		if text := componentText(inst); text != "" {
			parts = append(parts, text)
		}
	}
	for _, item := range in.ItemsByPage[page.ID] {
		if text := itemText(item, in.TypeTextFields); text != "" {
			parts = append(parts, text)
		}
	}
	rec.Keywords = Chunk(strings.Join(parts, " "))
	return rec
}
