// Package doctor runs readiness diagnostics for config, scripts, variables, and tools.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/wydy/internal/config"
	"github.com/rbright/wydy/internal/ipc"
	"github.com/rbright/wydy/internal/vars"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, store vars.Store) Report {
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found, using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkAddress(ctx, cfg.Config.Address))
	checks = append(checks, checkDir("scripts.dir", cfg.Config.Scripts.Dir))

	varsCheck, settings := checkVars(ctx, cfg.Config.Vars.Backend, store)
	checks = append(checks, varsCheck)

	checks = append(checks, checkCommand(settings.Browser, "browser"))
	checks = append(checks, checkCommand(settings.Editor, "editor"))

	return Report{Checks: checks}
}

// checkAddress validates the address and reports whether a responder owns it.
func checkAddress(ctx context.Context, raw string) Check {
	addr, err := ipc.ParseAddress(raw)
	if err != nil {
		return Check{Name: "address", Pass: false, Message: err.Error()}
	}
	alive, err := ipc.Probe(ctx, addr, 300*time.Millisecond)
	switch {
	case errors.Is(err, ipc.ErrBusy):
		return Check{Name: "address", Pass: true, Message: fmt.Sprintf("wydyd already answering on %s (busy with another requester)", addr)}
	case err != nil:
		return Check{Name: "address", Pass: false, Message: fmt.Sprintf("%s is in use by something else: %v", addr, err)}
	case alive:
		return Check{Name: "address", Pass: true, Message: fmt.Sprintf("wydyd already answering on %s", addr)}
	default:
		return Check{Name: "address", Pass: true, Message: fmt.Sprintf("%s is free", addr)}
	}
}

// checkDir validates that path exists and is a directory.
func checkDir(name, path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is not a directory", path)}
	}
	return Check{Name: name, Pass: true, Message: path}
}

// checkVars snapshots the store and returns the decoded settings for later checks.
func checkVars(ctx context.Context, backend string, store vars.Store) (Check, vars.Settings) {
	name := "vars." + backend
	fallback := vars.Settings{Browser: vars.DefaultBrowser}.WithEditorFallback()
	if store == nil {
		return Check{Name: name, Pass: false, Message: "store not configured"}, fallback
	}

	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}, fallback
	}
	settings, err := vars.Decode(snapshot)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}, fallback
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%d variables", len(snapshot))}, settings.WithEditorFallback()
}

// checkCommand validates that a command line starts with a runnable binary.
func checkCommand(line string, name string) Check {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(fields[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
