// Package parser splits a raw phrase into a leading keyword and the remainder.
package parser

import "strings"

type Keyword string

const (
	Search Keyword = "search"
	Open   Keyword = "open"
	Add    Keyword = "add"
	Edit   Keyword = "edit"
	Delete Keyword = "delete"
	Run    Keyword = "run"
	None   Keyword = "none"
)

var keywords = map[string]Keyword{
	"search": Search,
	"open":   Open,
	"add":    Add,
	"edit":   Edit,
	"delete": Delete,
	"remove": Delete,
	"run":    Run,
}

// Parse returns the phrase keyword and the trimmed text after it.
// Phrases without a known leading keyword yield None and the whole text.
func Parse(text string) (Keyword, string) {
	text = strings.TrimSpace(text)
	head, rest, _ := strings.Cut(text, " ")
	if kw, ok := keywords[strings.ToLower(head)]; ok {
		return kw, strings.TrimSpace(rest)
	}
	return None, text
}
