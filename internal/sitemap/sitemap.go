// Package sitemap generates a site-map XML document from a site's structure
// and the content reachable through its detail pages.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
)

const xmlnsSitemap = "http://www.sitemaps.org/schemas/sitemap/0.9"
const xmlnsXHTML = "http://www.w3.org/1999/xhtml"

// URLSet is the root element of a sitemap document.
type URLSet struct {
	XMLName    xml.Name `xml:"urlset"`
	Xmlns      string   `xml:"xmlns,attr"`
	XmlnsXHTML string   `xml:"xmlns:xhtml,attr,omitempty"`
	URLs       []URL    `xml:"url"`
}

// URL is one sitemap entry.
type URL struct {
	Loc        string      `xml:"loc"`
	LastMod    string      `xml:"lastmod,omitempty"`
	ChangeFreq string      `xml:"changefreq,omitempty"`
	Alternates []Alternate `xml:"xhtml:link,omitempty"`
}

// Alternate declares a language variant of an entry.
type Alternate struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// Input carries everything Generate needs; Generate itself performs no I/O.
type Input struct {
	Site  cms.Site
	Pages []cms.Page
	// ItemsByPage holds resolved content associated with detail pages; each
	// item yields one detail URL routed through its page.
	ItemsByPage map[int][]cms.ContentItem
	// Prefix is the deployed site's URL prefix, e.g. https://example.com/site.
	Prefix     string
	ChangeFreq string
}

// Generate builds the URL set: one entry per non-detail page, and one entry
// per resolved content item routed through each detail page. When the site
// declares more than one language, entries carry alternate-language links.
func Generate(in Input, clock cms.Clock) URLSet {
	prefix := strings.TrimRight(in.Prefix, "/")
	multiLang := len(in.Site.Languages) > 1
	now := time.Now().UTC()
	if clock != nil {
		now = clock.Now()
	}
	defaultLastMod := now.Format("2006-01-02")

	set := URLSet{Xmlns: xmlnsSitemap}
	if multiLang {
		set.XmlnsXHTML = xmlnsXHTML
	}

	for _, page := range in.Pages {
		if page.IsDetailPage {
			for _, item := range in.ItemsByPage[page.ID] {
				loc := joinURL(prefix, page.PageURL, itemSlug(item))
				set.URLs = append(set.URLs, URL{
					Loc:        loc,
					LastMod:    itemLastMod(item, defaultLastMod),
					ChangeFreq: in.ChangeFreq,
					Alternates: alternates(in.Site, prefix, joinPath(page.PageURL, itemSlug(item)), multiLang),
				})
			}
			continue
		}
		set.URLs = append(set.URLs, URL{
			Loc:        joinURL(prefix, page.PageURL),
			LastMod:    defaultLastMod,
			ChangeFreq: in.ChangeFreq,
			Alternates: alternates(in.Site, prefix, page.PageURL, multiLang),
		})
	}
	return set
}

// Marshal renders the URL set as an XML document with header.
func Marshal(set URLSet) ([]byte, error) {
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

func alternates(site cms.Site, prefix, path string, multiLang bool) []Alternate {
	if !multiLang {
		return nil
	}
	alts := make([]Alternate, 0, len(site.Languages))
	for _, lang := range site.Languages {
		href := joinURL(prefix, path)
		if lang != site.DefaultLanguage {
			href = joinURL(prefix, lang, path)
		}
		alts = append(alts, Alternate{Rel: "alternate", Hreflang: lang, Href: href})
	}
	return alts
}

func itemSlug(item cms.ContentItem) string {
	if slug, ok := item.Fields["slug"].(string); ok && slug != "" {
		return slug
	}
	return item.ID
}

func itemLastMod(item cms.ContentItem, fallback string) string {
	if item.UpdatedDate.IsZero() {
		return fallback
	}
	return item.UpdatedDate.UTC().Format("2006-01-02")
}

func joinURL(prefix string, parts ...string) string {
	return prefix + "/" + joinPath(parts...)
}

func joinPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
