// Package vars provides the key/value variables that tune phrase resolution
// (preferred browser, search engine, editor).
package vars

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	KeyBrowser      = "browser"
	KeySearchEngine = "search_engine"
	KeyEditor       = "editor"

	DefaultBrowser = "firefox"
	DefaultEditor  = "vi"
)

// Store is a source of variables. Resolution takes one snapshot per phrase and
// treats it as immutable for the rest of that call.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a point-in-time copy of the variable set.
type Snapshot map[string]string

// Get returns the value stored under key.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Settings is the typed view of the variables the resolvers consume.
type Settings struct {
	Browser      string `mapstructure:"browser"`
	SearchEngine string `mapstructure:"search_engine"`
	Editor       string `mapstructure:"editor"`
}

// Decode maps a snapshot onto Settings and applies the browser default.
func Decode(s Snapshot) (Settings, error) {
	var settings Settings
	if err := mapstructure.Decode(map[string]string(s), &settings); err != nil {
		return Settings{}, fmt.Errorf("decode vars: %w", err)
	}
	if settings.Browser == "" {
		settings.Browser = DefaultBrowser
	}
	return settings, nil
}

// WithEditorFallback fills an unset editor from $EDITOR, then DefaultEditor.
func (s Settings) WithEditorFallback() Settings {
	if s.Editor == "" {
		s.Editor = strings.TrimSpace(os.Getenv("EDITOR"))
	}
	if s.Editor == "" {
		s.Editor = DefaultEditor
	}
	return s
}

// Static is a fixed in-memory store.
type Static Snapshot

func (s Static) Snapshot(context.Context) (Snapshot, error) {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
