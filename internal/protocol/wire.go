// Package protocol implements the byte-level exchange between the short-lived
// requester and the long-running responder.
//
// One stream carries one request at a time. Every exchange starts with a
// presence probe, sends the phrase as a line plus a location flag byte, and
// dispatches on a one-byte response code. Text fields are UTF-8 lines ending in
// '\n'.
package protocol

import "fmt"

// Magic is written by the requester after connecting and echoed verbatim.
var Magic = [4]byte{'W', 'Y', 'D', 'Y'}

const (
	// PresenceByte is echoed verbatim before each exchange step.
	PresenceByte byte = 1
	// CancelSelection is sent instead of a menu index to abandon the choice.
	CancelSelection byte = 255
	// MaxCandidates is the largest menu the count byte can announce without
	// colliding with CancelSelection.
	MaxCandidates = 254
)

// LocationFlag tells the responder whether the requester is willing to run the
// action itself.
type LocationFlag byte

const (
	FlagRemote LocationFlag = 1
	FlagLocal  LocationFlag = 2
)

// FlagFor encodes the requester preference.
func FlagFor(local bool) LocationFlag {
	if local {
		return FlagLocal
	}
	return FlagRemote
}

// DecodeLocationFlag returns whether the requester prefers to run locally.
func DecodeLocationFlag(b byte) (bool, error) {
	switch LocationFlag(b) {
	case FlagLocal:
		return true, nil
	case FlagRemote:
		return false, nil
	default:
		return false, fmt.Errorf("%w: location flag %d", ErrMalformed, b)
	}
}

// ResponseCode is the responder's verdict on a phrase.
type ResponseCode byte

const (
	ResponseSingle     ResponseCode = 1
	ResponseMultiple   ResponseCode = 2
	ResponseOutputOnly ResponseCode = 3
)

func (c ResponseCode) String() string {
	switch c {
	case ResponseSingle:
		return "single"
	case ResponseMultiple:
		return "multiple"
	case ResponseOutputOnly:
		return "output"
	default:
		return fmt.Sprintf("response(%d)", byte(c))
	}
}

// DecodeResponseCode rejects anything outside the closed set.
func DecodeResponseCode(b byte) (ResponseCode, error) {
	switch code := ResponseCode(b); code {
	case ResponseSingle, ResponseMultiple, ResponseOutputOnly:
		return code, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidResponseCode, b)
	}
}

// RunLocation says which side executes the chosen action.
type RunLocation byte

const (
	RunRequester RunLocation = 1
	RunResponder RunLocation = 2
)

func (l RunLocation) String() string {
	switch l {
	case RunRequester:
		return "requester"
	case RunResponder:
		return "responder"
	default:
		return fmt.Sprintf("run_location(%d)", byte(l))
	}
}

// DecodeRunLocation rejects anything outside the closed set.
func DecodeRunLocation(b byte) (RunLocation, error) {
	switch loc := RunLocation(b); loc {
	case RunRequester, RunResponder:
		return loc, nil
	default:
		return 0, fmt.Errorf("%w: run location %d", ErrInvalidResponseCode, b)
	}
}
