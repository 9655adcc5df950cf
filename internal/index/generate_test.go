package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
)

func testSite() cms.Site {
	return cms.Site{ID: "S1", Name: "Marketing"}
}

func TestGenerate_OneRecordPerPage(t *testing.T) {
	t.Parallel()

	records := Generate(Input{
		Site: testSite(),
		Pages: []cms.Page{
			{ID: 100, Name: "Home", PageURL: "index.html"},
			{ID: 200, Name: "About", PageURL: "about.html"},
		},
		PageData: map[int]cms.PageDetail{
			100: {Properties: cms.PageProperties{Title: "Home Title", Description: "Home Desc"}},
			200: {Properties: cms.PageProperties{Title: "About Title", Description: "About Desc"}},
		},
	}, nil)

	require.Len(t, records, 2)
	require.Equal(t, "Marketing", records[0].Site)
	require.Equal(t, "100", records[0].PageID)
	require.Equal(t, "Home", records[0].PageName)
	require.Equal(t, "index.html", records[0].PageURL)
	require.Equal(t, "Home Title", records[0].PageTitle)
	require.Equal(t, "Home Desc", records[0].PageDescription)
}

func TestGenerate_DetailPagesSkipped(t *testing.T) {
	t.Parallel()

	records := Generate(Input{
		Site: testSite(),
		Pages: []cms.Page{
			{ID: 1, Name: "Home"},
			{ID: 2, Name: "Article Detail", IsDetailPage: true},
		},
		PageData: map[int]cms.PageDetail{},
	}, nil)

	require.Len(t, records, 1)
	require.Equal(t, "1", records[0].PageID)
}

func TestGenerate_BlankTitleAndDescriptionDefaultToSpace(t *testing.T) {
	t.Parallel()

	records := Generate(Input{
		Site:     testSite(),
		Pages:    []cms.Page{{ID: 7, Name: "Bare"}},
		PageData: map[int]cms.PageDetail{},
	}, nil)

	require.Len(t, records, 1)
	require.Equal(t, " ", records[0].PageTitle)
	require.Equal(t, " ", records[0].PageDescription)
}

func TestGenerate_DuplicatePageKeepsFirst(t *testing.T) {
	t.Parallel()

	records := Generate(Input{
		Site: testSite(),
		Pages: []cms.Page{
			{ID: 5, Name: "First"},
			{ID: 5, Name: "Second"},
		},
		PageData: map[int]cms.PageDetail{},
	}, nil)

	require.Len(t, records, 1)
	require.Equal(t, "First", records[0].PageName)
}

func TestGenerate_ComponentTextHarvest(t *testing.T) {
	t.Parallel()

	records := Generate(Input{
		Site:  testSite(),
		Pages: []cms.Page{{ID: 1, Name: "Home"}},
		PageData: map[int]cms.PageDetail{
			1: {Components: []cms.ComponentInstance{
				{Kind: cms.KindParagraph, Data: cms.ComponentData{UserText: "<p>paragraph text</p>"}},
				{Kind: cms.KindTitle, Data: cms.ComponentData{UserText: "title text"}},
				{Kind: cms.KindButton, Data: cms.ComponentData{Text: "button label"}},
				{Kind: cms.KindInlineText, Data: cms.ComponentData{InnerHTML: "<span>inline</span>"}},
				{Kind: cms.KindImage, Data: cms.ComponentData{AltText: "alt", Title: "imgtitle"}},
				{Kind: cms.KindGallery, Data: cms.ComponentData{Images: []cms.GalleryImage{
					{AltText: "g-alt", Description: "g-desc"},
				}}},
				{Kind: cms.KindUnknown, Data: cms.ComponentData{UserText: "never harvested"}},
			}},
		},
	}, nil)

	require.Len(t, records, 1)
	keywords := ""
	for _, k := range records[0].Keywords {
		keywords += k + " "
	}
	require.Contains(t, keywords, "paragraph text")
	require.Contains(t, keywords, "title text")
	require.Contains(t, keywords, "button label")
	require.Contains(t, keywords, "inline")
	require.Contains(t, keywords, "alt")
	require.Contains(t, keywords, "imgtitle")
	require.Contains(t, keywords, "g-alt")
	require.Contains(t, keywords, "g-desc")
	require.NotContains(t, keywords, "never harvested")
}

func TestGenerate_ResolvedItemTextHarvest(t *testing.T) {
	t.Parallel()

	records := Generate(Input{
		Site:     testSite(),
		Pages:    []cms.Page{{ID: 1, Name: "Home"}},
		PageData: map[int]cms.PageDetail{},
		ItemsByPage: map[int][]cms.ContentItem{
			1: {{
				ID:          "c1",
				Type:        "Article",
				Name:        "Launch Post",
				Description: "First announcement",
				Fields: map[string]any{
					"body":   "<p>body copy</p>",
					"tags":   []any{"alpha", "beta"},
					"rating": 5,
				},
			}},
		},
		TypeTextFields: map[string][]string{
			"Article": {"body", "tags"},
		},
	}, nil)

	require.Len(t, records, 1)
	joined := ""
	for _, k := range records[0].Keywords {
		joined += k + " "
	}
	require.Contains(t, joined, "Launch Post")
	require.Contains(t, joined, "First announcement")
	require.Contains(t, joined, "body copy")
	require.Contains(t, joined, "alpha")
	require.Contains(t, joined, "beta")
	require.NotContains(t, joined, "5")
}
