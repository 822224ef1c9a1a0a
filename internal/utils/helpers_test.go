package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch with params", "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ"},
		{"music", "https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=RDAMVM", "dQw4w9WgXcQ"},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"not youtube", "https://example.com/watch?v=dQw4w9WgXcQ", ""},
		{"bare id", "dQw4w9WgXcQ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractYouTubeID(tt.in))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "AC_DC - Back In Black", SanitizeFilename("AC/DC - Back In Black"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i", SanitizeFilename(`a\b:c*d?e"f<g>h|i`))
	assert.Equal(t, "", SanitizeFilename("   "))
}
