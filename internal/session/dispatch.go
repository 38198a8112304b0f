package session

import (
	"github.com/rbright/wydy/internal/command"
	"github.com/rbright/wydy/internal/protocol"
)

// Filter keeps the candidates that some acceptable side can run: the
// responder always, the requester only when it asked to run locally.
func Filter(candidates []command.Candidate, local bool) []command.Candidate {
	var kept []command.Candidate
	for _, c := range candidates {
		if c.RunnableOn(command.Server) || (local && c.RunnableOn(command.Client)) {
			kept = append(kept, c)
		}
	}
	return kept
}

// RunLocationFor picks the executing side for a surviving candidate.
func RunLocationFor(c command.Candidate, local bool) protocol.RunLocation {
	if local && c.RunnableOn(command.Client) {
		return protocol.RunRequester
	}
	return protocol.RunResponder
}
