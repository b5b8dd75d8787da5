package utmctl

import (
	"regexp"
	"strings"
)

// ipv4Pattern extracts the first IPv4 address from free-form output.
// ip-address replies can interleave IPv6 addresses and agent chatter.
var ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// parseStatus converts raw status output to a Status. Matching is by
// token presence rather than exact equality because the control plane
// pads replies and occasionally prefixes warnings. Anything
// unrecognizable is StatusUnknown.
func parseStatus(out string) Status {
	s := strings.ToLower(out)
	switch {
	case strings.Contains(s, "suspended"):
		return StatusSuspended
	case strings.Contains(s, "paused"):
		return StatusPaused
	case strings.Contains(s, "stopped"):
		return StatusStopped
	case strings.Contains(s, "started"):
		return StatusStarted
	default:
		return StatusUnknown
	}
}

// parseIPAddress returns the first IPv4 address found in out, or "".
func parseIPAddress(out string) string {
	return ipv4Pattern.FindString(out)
}

// parseList converts `utmctl list` output into instances. The format is
// a header line followed by rows of "UUID Status Name", where the name
// may itself contain spaces. Unparseable rows are skipped.
func parseList(out string) []Instance {
	var instances []Instance
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		// Skip the header row.
		if strings.EqualFold(fields[0], "uuid") {
			continue
		}
		status := parseStatus(fields[1])
		name := strings.Join(fields[2:], " ")
		instances = append(instances, Instance{
			UUID:   fields[0],
			Status: status,
			Name:   name,
		})
	}
	return instances
}
