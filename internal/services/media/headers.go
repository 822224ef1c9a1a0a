package media

import (
	"strings"

	"hongeet.dev/backend/internal/models"
)

// canonicalHeaders is the allow-list of caller headers forwarded to the backend,
// keyed by lower-cased name.
var canonicalHeaders = map[string]string{
	"cookie":                        "Cookie",
	"user-agent":                    "User-Agent",
	"accept":                        "Accept",
	"accept-language":               "Accept-Language",
	"x-goog-visitor-id":             "X-Goog-Visitor-Id",
	"x-goog-authuser":               "X-Goog-AuthUser",
	"x-youtube-client-name":         "X-Youtube-Client-Name",
	"x-youtube-client-version":      "X-Youtube-Client-Version",
	"x-youtube-bootstrap-logged-in": "X-Youtube-Bootstrap-Logged-In",
	"x-origin":                      "X-Origin",
	"referer":                       "Referer",
	"origin":                        "Origin",
}

// NormalizeHeaders maps a loosely keyed header bag onto the allow-list with
// canonical names and trimmed values. Unknown and blank entries are dropped.
func NormalizeHeaders(raw map[string]string) models.HeaderBag {
	out := make(models.HeaderBag, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		value := strings.TrimSpace(v)
		if key == "" || value == "" {
			continue
		}
		if canonical, ok := canonicalHeaders[key]; ok {
			out[canonical] = value
		}
	}
	return out
}
