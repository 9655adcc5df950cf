package index

import (
	"strings"

	"golang.org/x/net/html"
)

// keywordByteBudget is the hard per-chunk byte cap: the remote field limit of
// 2000 bytes minus a safety margin.
const keywordByteBudget = 2000 - 10

// entityReplacer normalizes the fixed set of HTML entities that survive tag
// stripping (double-escaped source text arrives as literal entity spellings).
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// StripHTML removes markup from a fragment, keeping only text content. Tags
// are replaced by a space so adjacent text runs do not fuse into one word.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return entityReplacer.Replace(b.String())
		case html.TextToken:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.Write(z.Text())
		}
	}
}

// Chunk packs the harvested text into keyword lines of at most
// keywordByteBudget bytes: strip markup, normalize entities, split on
// whitespace, then greedily append words, flushing the moment the next word
// would exceed the budget. A single word larger than the budget is hard-split
// at the byte boundary.
func Chunk(text string) []string {
	words := strings.Fields(StripHTML(text))
	if len(words) == 0 {
		return nil
	}
	var (
		chunks []string
		line   strings.Builder
	)
	flush := func() {
		if line.Len() > 0 {
			chunks = append(chunks, line.String())
			line.Reset()
		}
	}
	for _, word := range words {
		for len(word) > keywordByteBudget {
			flush()
			chunks = append(chunks, word[:keywordByteBudget])
			word = word[keywordByteBudget:]
		}
		if word == "" {
			continue
		}
		need := len(word)
		if line.Len() > 0 {
			need++
		}
		if line.Len()+need > keywordByteBudget {
			flush()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	flush()
	return chunks
}
