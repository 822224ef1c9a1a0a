package media

import (
	"hongeet.dev/backend/internal/models"
)

const (
	formatM4AFirst  = "bestaudio[ext=m4a]/bestaudio[ext=webm]/bestaudio/best"
	formatWebMFirst = "bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best"
	formatAnyAudio  = "bestaudio/best"
)

// extractionAttempts is ordered cheapest and least personalized first.
var extractionAttempts = [...]models.ExtractionAttempt{
	{
		FormatSelector: formatM4AFirst,
		ExtractorArgs:  "youtube:player_client=android;player_skip=webpage,configs",
		UseAuthHeaders: false,
	},
	{
		FormatSelector: formatM4AFirst,
		ExtractorArgs:  "youtube:player_client=android,web",
		UseAuthHeaders: true,
	},
	{
		FormatSelector: formatWebMFirst,
		ExtractorArgs:  "youtube:player_client=web",
		UseAuthHeaders: true,
	},
	{
		FormatSelector: formatAnyAudio,
		UseAuthHeaders: true,
	},
}

// PlanAttempts returns the extraction fallback chain for a content identifier.
// The identifier does not influence the chain today.
func PlanAttempts(string) []models.ExtractionAttempt {
	out := make([]models.ExtractionAttempt, len(extractionAttempts))
	copy(out, extractionAttempts[:])
	return out
}
