// Package device turns a raw User-Agent header into the short display name
// recorded next to audited writes.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Unknown is returned for an empty User-Agent.
const Unknown = "Unknown Device"

// ParseUserAgent returns "<browser> on <os>", for example "Chrome on Intel Mac
// OS X 10_15_7". Mobile clients are named by platform, so an iPhone reads
// "Safari on iPhone".
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unknown
	}
	ua := useragent.New(raw)

	browser, _ := ua.Browser()
	if ua.Bot() {
		browser = "Bot"
	}
	browser = strings.TrimSpace(browser)
	if browser == "" {
		browser = "Unknown Browser"
	}

	system := strings.TrimSpace(ua.OS())
	if platform := strings.TrimSpace(ua.Platform()); ua.Mobile() && platform != "" {
		system = platform
	}
	if system == "" {
		system = "Unknown OS"
	}
	return browser + " on " + system
}
