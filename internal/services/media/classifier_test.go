package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query     string
		artist    bool
		rewritten string
	}{
		{"Taylor Swift", true, "Taylor Swift topic"},
		{"  Imagine Dragons  ", true, "Imagine Dragons topic"},
		{"Guns N' Roses", true, "Guns N' Roses topic"},
		{"Simon & Garfunkel", true, "Simon & Garfunkel topic"},
		{"lofi chill mix", false, "lofi chill mix song"},
		{"believer lyrics", false, "believer lyrics"},
		{"interstellar soundtrack", false, "interstellar soundtrack"},
		{"relaxing piano instrumental 1 hour", false, "relaxing piano instrumental 1 hour"},
		{"Adele", false, "Adele song"},
		{"blinding lights the weeknd live", false, "blinding lights the weeknd live song"},
		{"Maroon 5", false, "Maroon 5 song"},
		{"", false, ""},
		{"   ", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.artist, got.IsArtistQuery)
			assert.Equal(t, tt.rewritten, got.RewrittenQuery)
		})
	}
}

func TestIsLikelyArtistQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"Taylor Swift", true},
		{"the rolling stones", true},
		{"Earth Wind & Fire", true},
		{"Jay-Z Kanye West", true},
		{"one", false},
		{"a b c d e", false},
		{"blink 182", false},
		{"Taylor Swift songs", false},
		{"Beyoncé Knowles", false},
		{"Ｔａｙｌｏｒ Ｓｗｉｆｔ", false},
		{"ＴＡＹＬＯＲ SWIFT SONGS", false},
		{"AC/DC Highway", false},
		{"Ghost Band", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLikelyArtistQuery(tt.query))
		})
	}
}

func TestIsArtistChannelMatch(t *testing.T) {
	tests := []struct {
		name     string
		uploader string
		query    string
		want     bool
	}{
		{"two tokens", "ImagineDragonsVEVO", "imagine dragons", true},
		{"topic channel one token", "Swift - Topic", "Taylor Swift", true},
		{"vevo one token", "TaylorVEVO", "Taylor Swift", true},
		{"official one token", "Adele Official", "Adele Adkins", true},
		{"one token no marker", "Swift Fan Club", "Taylor Swift", false},
		{"short tokens ignored", "AB CD", "ab cd", false},
		{"no overlap", "Random Uploads", "Imagine Dragons", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsArtistChannelMatch(tt.uploader, tt.query))
		})
	}
}
