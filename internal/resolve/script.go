package resolve

import (
	"strings"

	"github.com/rbright/wydy/internal/command"
	"github.com/rbright/wydy/internal/parser"
	"github.com/rbright/wydy/internal/script"
	"github.com/rbright/wydy/internal/vars"
)

func (p *Pipeline) scriptCandidates(list []command.Candidate, keyword parser.Keyword, remainder string, settings vars.Settings) []command.Candidate {
	marked := script.HasMarker(remainder)
	name, args := script.Split(remainder)

	switch keyword {
	case parser.Add:
		if !marked {
			return list
		}
		paths := p.Scripts.Scriptify(remainder)
		if len(paths) > 0 {
			// already there: offer to edit instead of clobbering
			for _, path := range paths {
				list = script.Edit(list, path, settings.Editor)
			}
			return list
		}
		if path, ok := p.Scripts.NewPath(remainder); ok {
			list = script.Add(list, path, settings.Editor)
		}
	case parser.Edit:
		if !marked && strings.EqualFold(name, "vars") && p.VarsPath != "" {
			list = append(list, command.New(settings.Editor+" "+p.VarsPath, "edit vars", command.Client))
		}
		for _, path := range p.Scripts.Scriptify(remainder) {
			list = script.Edit(list, path, settings.Editor)
		}
	case parser.Delete:
		if !marked {
			return list
		}
		for _, path := range p.Scripts.Scriptify(remainder) {
			list = script.Delete(list, path)
		}
	case parser.Run:
		for _, path := range p.Scripts.Scriptify(remainder) {
			list = script.Run(list, path, args)
		}
	}
	return list
}
