// Package chain builds one continuous video out of many chained,
// fallible generation calls: a base generation followed by extensions,
// each step retried with exponential backoff, halting on exhaustion while
// preserving partial progress.
package chain

const (
	// BaseSceneSeconds is the duration of the first generated clip.
	BaseSceneSeconds = 8
	// ExtensionSceneSeconds is the duration each extension hop adds.
	ExtensionSceneSeconds = 7
)

// EstimateDurationForSceneCount returns the total output duration, in
// seconds, for a chain of n scenes: one base clip plus n-1 extensions.
func EstimateDurationForSceneCount(n int) int {
	if n <= 0 {
		return 0
	}
	return BaseSceneSeconds + (n-1)*ExtensionSceneSeconds
}

// ScenesNeededForDuration returns the minimum number of scenes whose chained
// output covers the requested duration. Rounds up: a partial extension still
// consumes a full hop.
func ScenesNeededForDuration(seconds int) int {
	if seconds <= BaseSceneSeconds {
		return 1
	}
	remaining := seconds - BaseSceneSeconds
	hops := remaining / ExtensionSceneSeconds
	if remaining%ExtensionSceneSeconds != 0 {
		hops++
	}
	return 1 + hops
}
