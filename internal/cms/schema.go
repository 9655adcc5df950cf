package cms

// Text-bearing datatypes the index schema accepts.
const (
	datatypeText      = "text"
	datatypeLargeText = "largetext"
)

// indexTextFields are the single-value text fields the page-index content
// type must expose.
var indexTextFields = []string{
	"site", "pageid", "pagename", "pageurl", "pagetitle", "pagedescription",
}

// ValidateIndexType checks the page-index content type's shape before any
// crawl call is issued: the six single-value text fields plus a multi-value
// "keywords" text list. The first missing or mistyped field fails fast.
func ValidateIndexType(ct ContentType) error {
	for _, name := range indexTextFields {
		field, ok := ct.Field(name)
		if !ok {
			return &SchemaError{ContentType: ct.Name, Field: name, Reason: "is missing"}
		}
		if !isText(field) {
			return &SchemaError{ContentType: ct.Name, Field: name, Reason: "must be a text field"}
		}
		if field.ValueCount == "list" {
			return &SchemaError{ContentType: ct.Name, Field: name, Reason: "must be single-valued"}
		}
	}
	field, ok := ct.Field("keywords")
	if !ok {
		return &SchemaError{ContentType: ct.Name, Field: "keywords", Reason: "is missing"}
	}
	if !isText(field) {
		return &SchemaError{ContentType: ct.Name, Field: "keywords", Reason: "must be a text field"}
	}
	if field.ValueCount != "list" {
		return &SchemaError{ContentType: ct.Name, Field: "keywords", Reason: "must be a multi-value list"}
	}
	return nil
}

func isText(f TypeField) bool {
	return f.Datatype == datatypeText || f.Datatype == datatypeLargeText
}

// TextFields returns the names of a type's text-bearing fields, used to
// harvest keywords from resolved content.
func TextFields(ct ContentType) []string {
	var out []string
	for _, f := range ct.Fields {
		if isText(f) {
			out = append(out, f.Name)
		}
	}
	return out
}
