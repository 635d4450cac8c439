package modelclient

import (
	"strconv"
	"strings"
)

// ParseWaitSeconds extracts a suggested retry wait from a provider's
// rate-limit message fragment such as "40s" or "1m30s" or "2m". Minutes
// are converted to seconds. It returns ok=false if no numeric duration
// could be found; the resulting rate-limit error then carries no wait,
// and Client.Call sleeps RetryMargin alone before retrying.
func ParseWaitSeconds(fragment string) (seconds float64, ok bool) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return 0, false
	}

	var minutes, secs string
	if idx := strings.IndexByte(fragment, 'm'); idx >= 0 {
		minutes = fragment[:idx]
		fragment = fragment[idx+1:]
	}
	if idx := strings.IndexByte(fragment, 's'); idx >= 0 {
		secs = fragment[:idx]
	} else if minutes == "" {
		secs = fragment
	}

	var total float64
	found := false
	if minutes != "" {
		if m, err := strconv.ParseFloat(strings.TrimSpace(minutes), 64); err == nil {
			total += m * 60
			found = true
		}
	}
	if secs != "" {
		if s, err := strconv.ParseFloat(strings.TrimSpace(secs), 64); err == nil {
			total += s
			found = true
		}
	}

	if !found {
		return 0, false
	}
	return total, true
}
