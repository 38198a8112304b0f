// Package script locates saved scripts and turns script actions into candidates.
package script

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/wydy/internal/command"
)

// Marker is the literal that introduces a script name in add/delete phrases.
const Marker = "script"

// Dir is a flat directory of saved scripts.
type Dir struct {
	path string
}

func NewDir(path string) Dir {
	return Dir{path: path}
}

func (d Dir) Path() string {
	return d.path
}

// HasMarker reports whether remainder starts with the script marker.
func HasMarker(remainder string) bool {
	head, _, _ := strings.Cut(strings.TrimSpace(remainder), " ")
	return strings.EqualFold(head, Marker)
}

// Split returns the script name and trailing arguments of remainder, dropping
// a leading marker.
func Split(remainder string) (string, []string) {
	fields := strings.Fields(remainder)
	if len(fields) > 0 && strings.EqualFold(fields[0], Marker) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// Scriptify maps remainder to existing script files whose name, with or
// without extension, matches case-insensitively. Results follow directory
// listing order.
func (d Dir) Scriptify(remainder string) []string {
	name, _ := Split(remainder)
	if !validName(name) || d.path == "" {
		return nil
	}

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := entry.Name()
		stem := strings.TrimSuffix(file, filepath.Ext(file))
		if strings.EqualFold(file, name) || strings.EqualFold(stem, name) {
			paths = append(paths, filepath.Join(d.path, file))
		}
	}
	return paths
}

// NewPath is where a script named by remainder would be created.
func (d Dir) NewPath(remainder string) (string, bool) {
	name, _ := Split(remainder)
	if !validName(name) || d.path == "" {
		return "", false
	}
	return filepath.Join(d.path, name), true
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func scriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Add appends a create-and-edit candidate. Editing is interactive, so it is
// bound to the requester.
func Add(list []command.Candidate, path, editor string) []command.Candidate {
	return append(list, command.New(
		editor+" "+path,
		"create script "+scriptName(path),
		command.Client,
	))
}

// Edit appends an open-for-edit candidate.
func Edit(list []command.Candidate, path, editor string) []command.Candidate {
	return append(list, command.New(
		editor+" "+path,
		"edit script "+scriptName(path),
		command.Client,
	))
}

// Delete appends a remove candidate.
func Delete(list []command.Candidate, path string) []command.Candidate {
	return append(list, command.New(
		"rm "+path,
		"delete script "+scriptName(path),
		command.Both,
	))
}

// Run appends an invoke candidate carrying args.
func Run(list []command.Candidate, path string, args []string) []command.Candidate {
	cmd := path
	if len(args) > 0 {
		cmd += " " + strings.Join(args, " ")
	}
	return append(list, command.New(
		cmd,
		"run script "+scriptName(path),
		command.Both,
	))
}
