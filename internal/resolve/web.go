package resolve

import (
	"log/slog"
	"strings"

	"github.com/rbright/wydy/internal/command"
	"github.com/rbright/wydy/internal/parser"
	"github.com/rbright/wydy/internal/urlcheck"
	"github.com/rbright/wydy/internal/vars"
)

const (
	EngineDuckDuckGo = "duckduckgo"
	EngineGoogle     = "google"
)

func webCandidates(list []command.Candidate, keyword parser.Keyword, remainder string, settings vars.Settings, logger *slog.Logger) []command.Candidate {
	encoded := strings.ReplaceAll(remainder, " ", "%20")

	switch keyword {
	case parser.Search, parser.None:
		if urlcheck.IsURL(encoded) {
			list = append(list, openURL(settings.Browser, encoded, remainder))
		}
		link := SearchLink(settings.SearchEngine, encoded, logger)
		list = append(list, command.New(
			settings.Browser+" "+link,
			"search for "+remainder,
			command.Both,
		))
	case parser.Open:
		if urlcheck.IsURL(encoded) {
			list = append(list, openURL(settings.Browser, encoded, remainder))
		}
	}
	return list
}

func openURL(browser, encoded, remainder string) command.Candidate {
	return command.New(browser+" "+encoded, "opening url "+remainder, command.Both)
}

// SearchLink builds the query URL for engine. Unknown engines fall back to
// duckduckgo with a warning.
func SearchLink(engine, query string, logger *slog.Logger) string {
	switch engine {
	case EngineDuckDuckGo, "":
		return "https://duckduckgo.com/?q=" + query
	case EngineGoogle:
		return "https://www.google.com/search?q=" + query
	default:
		if logger != nil {
			logger.Warn("unknown search engine, using duckduckgo; run \"edit vars\" and fix search_engine",
				"search_engine", engine)
		}
		return "https://duckduckgo.com/?q=" + query
	}
}
