// Package utils provides utility functions used throughout the application.
package utils

import (
	"regexp"
	"strings"
)

var youtubeRegex = regexp.MustCompile(`(?:youtube\.com/(?:shorts/|live/|embed/|v/|\S*?[?&]v=)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// ExtractYouTubeID extracts the video ID from a YouTube, YouTube Music or youtu.be URL.
// It returns an empty string when s is not such a URL.
func ExtractYouTubeID(s string) string {
	if m := youtubeRegex.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return ""
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeFilename replaces path separators and characters reserved on common filesystems.
func SanitizeFilename(name string) string {
	return strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(name, "_"))
}
