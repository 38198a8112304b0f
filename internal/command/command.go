// Package command defines resolved actions and where they may run.
package command

import "fmt"

// Location tags which side of the connection may execute a candidate.
type Location int

const (
	Client Location = iota + 1
	Server
	Both
)

func (l Location) String() string {
	switch l {
	case Client:
		return "client"
	case Server:
		return "server"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("location(%d)", int(l))
	}
}

// Compatible reports whether a and b can share an executing side.
// Both matches anything; distinct concrete locations never match.
func Compatible(a, b Location) bool {
	if a == Both || b == Both {
		return true
	}
	return a == b
}

// Candidate is one executable interpretation of a user phrase.
type Candidate struct {
	Command     string
	Description string
	Location    Location
}

// New builds a candidate value.
func New(cmd, desc string, loc Location) Candidate {
	return Candidate{Command: cmd, Description: desc, Location: loc}
}

// RunnableOn reports whether the candidate may execute on side.
func (c Candidate) RunnableOn(side Location) bool {
	return Compatible(c.Location, side)
}
