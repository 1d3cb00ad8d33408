package media

import "strings"

// FailureClass buckets a provider failure for fallback policy.
type FailureClass int

const (
	// FailureSoft is a transient error (rate limiting, overload). The
	// orchestrator moves to the next candidate without penalizing the
	// provider long-term.
	FailureSoft FailureClass = iota
	// FailureHard indicates the provider cannot currently serve this
	// capability at all and should be removed from rotation.
	FailureHard
)

func (c FailureClass) String() string {
	if c == FailureHard {
		return "hard"
	}
	return "soft"
}

// Failure signatures are ordered substring matches, checked case-insensitively.
// Hard signatures win over soft ones; adding a new phrase is a data change,
// not a control-flow change.
var hardFailureSignatures = []string{
	"access denied",
	"accessdenied",
	"quota exceeded",
	"insufficient quota",
	"model not found",
	"billing",
	"subscription required",
	"payment required",
	"unauthorized",
	"forbidden",
	"invalid api key",
	"api key not valid",
	"waitlist",
	"account suspended",
}

var softFailureSignatures = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"429",
	"overloaded",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"try again",
	"connection reset",
	"service unavailable",
}

// ClassifyFailure maps an error message onto the hard/soft taxonomy.
// Unrecognized messages classify as soft: transient by default, because a
// quarantine on an unknown error removes a provider from rotation for the
// whole cooldown.
func ClassifyFailure(message string) FailureClass {
	msg := strings.ToLower(message)
	for _, sig := range hardFailureSignatures {
		if strings.Contains(msg, sig) {
			return FailureHard
		}
	}
	for _, sig := range softFailureSignatures {
		if strings.Contains(msg, sig) {
			return FailureSoft
		}
	}
	return FailureSoft
}

// IsHardFailure reports whether the message matches a terminal-failure
// signature warranting quarantine.
func IsHardFailure(message string) bool {
	return ClassifyFailure(message) == FailureHard
}
