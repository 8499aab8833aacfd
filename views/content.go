package views

import (
	"strings"
	"time"
)

// EndBannerTag closes the banner injected by UpdateContent.
const EndBannerTag = "</h2>\n"

// UpdateContent strips a previously injected banner, everything up to
// and including the first EndBannerTag, from contents. Unless clear is
// set it then prepends a fresh banner announcing text at now.
func UpdateContent(text, contents string, clear bool, now time.Time) string {
	if pos := strings.Index(contents, EndBannerTag); pos >= 0 {
		contents = contents[pos+len(EndBannerTag):]
	}

	if clear {
		return contents
	}

	return "<h2 style='color:green'>" + text + " at " + now.UTC().Format("3:04:05 PM") + EndBannerTag + contents
}
