// Package resolve turns a raw phrase into an ordered list of candidate actions.
//
// Three resolvers run in a fixed order against the same parsed input and each
// appends to one shared list: scripts, executables found in the search path,
// then URL/web search. The list order is the order the candidates are offered
// in, and the first candidate is the default.
package resolve

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rbright/wydy/internal/command"
	"github.com/rbright/wydy/internal/parser"
	"github.com/rbright/wydy/internal/script"
	"github.com/rbright/wydy/internal/vars"
)

// Pipeline holds the collaborators the resolvers read from.
type Pipeline struct {
	Vars    vars.Store
	Scripts script.Dir
	// VarsPath is offered by "edit vars" when the variables live in a file.
	VarsPath string
	// SearchPath overrides $PATH when non-nil.
	SearchPath []string
	// ExeSuffix is appended to executable names before lookup; defaults to the
	// platform suffix.
	ExeSuffix *string
	Logger    *slog.Logger
}

// Resolve returns every candidate for text. Finding nothing is not an error.
func (p *Pipeline) Resolve(ctx context.Context, text string) []command.Candidate {
	logger := p.logger()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	keyword, remainder := parser.Parse(text)
	settings := p.settings(ctx)
	logger.Debug("phrase parsed", "keyword", keyword, "remainder", remainder)

	var list []command.Candidate
	list = p.scriptCandidates(list, keyword, remainder, settings)
	list = p.pathCandidates(list, keyword, remainder)
	list = webCandidates(list, keyword, remainder, settings, logger)

	logger.Debug("phrase resolved", "candidates", len(list))
	return list
}

// settings snapshots the variable store once for the whole resolution.
func (p *Pipeline) settings(ctx context.Context) vars.Settings {
	snapshot := vars.Snapshot{}
	if p.Vars != nil {
		snap, err := p.Vars.Snapshot(ctx)
		if err != nil {
			p.logger().Warn("vars unavailable, using defaults", "error", err.Error())
		} else {
			snapshot = snap
		}
	}

	settings, err := vars.Decode(snapshot)
	if err != nil {
		p.logger().Warn("vars decode failed, using defaults", "error", err.Error())
		settings = vars.Settings{Browser: vars.DefaultBrowser}
	}
	return settings.WithEditorFallback()
}

func (p *Pipeline) searchPath() []string {
	if p.SearchPath != nil {
		return p.SearchPath
	}
	return filepath.SplitList(os.Getenv("PATH"))
}

func (p *Pipeline) exeSuffix() string {
	if p.ExeSuffix != nil {
		return *p.ExeSuffix
	}
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}
