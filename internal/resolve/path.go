package resolve

import (
	"fmt"
	"os"
	"strings"

	"github.com/rbright/wydy/internal/command"
	"github.com/rbright/wydy/internal/parser"
)

func (p *Pipeline) pathCandidates(list []command.Candidate, keyword parser.Keyword, remainder string) []command.Candidate {
	if keyword != parser.Run && keyword != parser.None {
		return list
	}
	candidate, ok := LookupExecutable(p.searchPath(), remainder, p.exeSuffix())
	if !ok {
		return list
	}
	p.logger().Debug("executable found", "command", candidate.Command)
	return append(list, candidate)
}

// LookupExecutable scans searchPath for the first token of remainder.
//
// Matching is case-insensitive. Directories are scanned in searchPath order and
// entries in listing order; the first directory with a match wins, and within
// it the first matching entry wins. The returned command keeps the matched
// entry's casing followed by the remaining tokens as typed.
func LookupExecutable(searchPath []string, remainder, suffix string) (command.Candidate, bool) {
	fields := strings.Fields(remainder)
	if len(fields) > 0 && strings.EqualFold(fields[0], "run") {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return command.Candidate{}, false
	}

	want := strings.ToLower(fields[0])
	if suffix != "" && !strings.HasSuffix(want, strings.ToLower(suffix)) {
		want += strings.ToLower(suffix)
	}

	for _, dir := range searchPath {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.ToLower(entry.Name()) != want {
				continue
			}
			line := strings.Join(append([]string{entry.Name()}, fields[1:]...), " ")
			return command.New(line, fmt.Sprintf("execute `%s`", line), command.Both), true
		}
	}
	return command.Candidate{}, false
}
