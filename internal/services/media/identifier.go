package media

import (
	"strings"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
)

// NormalizeIdentifier accepts a bare video id, a source-tagged Track id
// ("yt:<id>") or a YouTube URL and returns the bare id. The result is blank
// only when the input is.
func NormalizeIdentifier(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(id, models.SourceYouTube+":"); ok {
		return strings.TrimSpace(rest)
	}
	if strings.Contains(id, "/") {
		if extracted := utils.ExtractYouTubeID(id); extracted != "" {
			return extracted
		}
	}
	return id
}
