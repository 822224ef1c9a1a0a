// Package models contains the data structures used throughout the application.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SourceYouTube is the source tag prefixed to every Track id produced from the YouTube backend.
const SourceYouTube = "yt"

// HeaderBag maps header names to values. Reads are case-insensitive; writes keep
// the key as given. Blank keys and blank values are never retained.
type HeaderBag map[string]string

// Get returns the value stored under key, matching case-insensitively.
func (h HeaderBag) Get(key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Has reports whether key is present, matching case-insensitively.
func (h HeaderBag) Has(key string) bool {
	return h.Get(key) != ""
}

// Set stores value under key after trimming both. Blank input is ignored and an
// existing entry with a differently cased key is replaced.
func (h HeaderBag) Set(key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	for k := range h {
		if k != key && strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
	h[key] = value
}

// SetDefault stores value under key only when no value is present yet.
func (h HeaderBag) SetDefault(key, value string) {
	if !h.Has(key) {
		h.Set(key, value)
	}
}

// Keys returns the header names in sorted order.
func (h HeaderBag) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of the bag.
func (h HeaderBag) Clone() HeaderBag {
	out := make(HeaderBag, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// ExtractionAttempt is one entry of the fixed fallback chain.
type ExtractionAttempt struct {
	// FormatSelector is the backend format selector expression.
	FormatSelector string `json:"formatSelector"`

	// ExtractorArgs are optional extractor hints, empty when none.
	ExtractorArgs string `json:"extractorArgs,omitempty"`

	// UseAuthHeaders attaches the caller's normalized headers to the backend request.
	UseAuthHeaders bool `json:"useAuthHeaders"`
}

// ResolvedAudio is a playable https URL plus the headers needed to stream it.
type ResolvedAudio struct {
	URL     string    `json:"url"`
	Headers HeaderBag `json:"headers"`
}

// RawCandidate is a backend-reported search or related entry.
type RawCandidate struct {
	ID       string
	Title    string
	Uploader string

	// Duration is in seconds, -1 when the backend did not report it.
	Duration int
}

// Track is the externally visible result unit.
type Track struct {
	// ID is the backend id prefixed with a source tag, e.g. "yt:dQw4w9WgXcQ".
	ID string `json:"id"`

	// Name is the trimmed title.
	Name string `json:"name"`

	// Duration in seconds, nil when unknown.
	Duration *int `json:"duration"`

	// Author is the uploader or channel name.
	Author string `json:"author"`

	// Thumbnail is derived from the backend id.
	Thumbnail string `json:"thumbnail"`
}

// RelevanceTier orders search output.
type RelevanceTier int

const (
	// TierStrict holds candidates that passed strict admission or matched the artist channel.
	TierStrict RelevanceTier = iota
	// TierRelaxed holds candidates that only passed relaxed admission.
	TierRelaxed
)

// String returns the tier name.
func (t RelevanceTier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierRelaxed:
		return "relaxed"
	default:
		return "unknown"
	}
}

// QueryClassification is the outcome of classifying a free-text query.
type QueryClassification struct {
	IsArtistQuery  bool   `json:"isArtistQuery"`
	RewrittenQuery string `json:"rewrittenQuery"`
}

// ExtractRequest is the payload of resolve-to-descriptor and resolve-to-url.
type ExtractRequest struct {
	VideoID     string         `json:"videoId"`
	AuthHeaders LooseStringMap `json:"authHeaders,omitempty"`
}

// LooseStringMap decodes a JSON object whose values may be any scalar; values
// are stringified and trimmed, nulls and blank entries are dropped.
type LooseStringMap map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (m *LooseStringMap) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(LooseStringMap, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		key := strings.TrimSpace(k)
		value := strings.TrimSpace(fmt.Sprint(v))
		if key != "" && value != "" {
			out[key] = value
		}
	}
	*m = out
	return nil
}

// ExtractURLResponse is the payload of resolve-to-url.
type ExtractURLResponse struct {
	URL string `json:"url"`
}

// SearchRequest is the payload of search.
type SearchRequest struct {
	Query string `json:"query"`
	Take  *int   `json:"take,omitempty"`
}

// RelatedRequest is the payload of related.
type RelatedRequest struct {
	VideoID string `json:"videoId"`
	Take    *int   `json:"take,omitempty"`
}

// SaavnSearchRequest is the payload of the Saavn search.
type SaavnSearchRequest struct {
	Query string `json:"query" validate:"max=300"`
}
