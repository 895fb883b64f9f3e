package twitchapi

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseVideoID extracts the numeric video id from a raw id or a recognized
// video URL such as https://www.twitch.tv/videos/12345 or the legacy
// twitch.tv/{channel}/v/12345 form.
func ParseVideoID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("empty video id")
	}
	if allDigits(arg) {
		return arg, nil
	}
	s := arg
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("unrecognized video id %q", arg)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "twitch.tv" {
		return "", fmt.Errorf("unrecognized video id %q", arg)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if (p == "videos" || p == "v") && i+1 < len(parts) && allDigits(parts[i+1]) {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("unrecognized video id %q", arg)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
