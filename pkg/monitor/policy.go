package monitor

import (
	"fmt"
	"strings"
)

// Policy decides what a failed pool query means for a rig.
type Policy string

const (
	// PolicyOffline counts a failed query as an offline observation.
	PolicyOffline Policy = "offline"

	// PolicySkip logs the failure and waits for the next check.
	PolicySkip Policy = "skip"

	// PolicyHalt stops the monitor with a KindQuery error.
	PolicyHalt Policy = "halt"
)

// ParsePolicy parses a QUERY_FAILURE_POLICY value. Empty means PolicyOffline.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyOffline, nil
	case PolicyOffline, PolicySkip, PolicyHalt:
		return p, nil
	default:
		return "", fmt.Errorf("unknown query failure policy %q (want offline, skip or halt)", s)
	}
}
