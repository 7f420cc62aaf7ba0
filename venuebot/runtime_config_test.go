package venuebot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmbedColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected int
		valid    bool
	}{
		{"#FF0000", 0xFF0000, true},
		{"ff0000", 0xFF0000, true},
		{"3498DB", 0x3498DB, true},
		{" #3498DB ", 0x3498DB, true},
		{"000000", 0, true},
		{"#FFF", 0, false},
		{"nothex", 0, false},
		{"#FF00000", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		parsed, err := ParseEmbedColor(tc.input)
		if tc.valid {
			require.NoErrorf(t, err, "input: %q", tc.input)
			assert.Equal(t, tc.expected, parsed, "input: %q", tc.input)
		} else {
			assert.Errorf(t, err, "input: %q", tc.input)
		}
	}
}

func TestParseSeconds(t *testing.T) {
	t.Parallel()

	parsed, err := ParseSeconds("30")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, parsed)

	parsed, err = ParseSeconds(" 5 ")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, parsed)

	for _, input := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err = ParseSeconds(input)
		assert.Errorf(t, err, "input: %q", input)
	}
}

func TestNewRuntimeConfigSeedsFromEmbedDefaults(t *testing.T) {
	t.Parallel()

	embed := &EmbedConfig{
		Title:           "title",
		Body:            "body",
		Color:           0x123456,
		ThumbnailURL:    "https://example.com/thumb.png",
		Footer:          "footer",
		RefreshInterval: 15 * time.Minute,
	}
	cfg := newRuntimeConfig(embed)
	assert.Equal(t, "title", cfg.EmbedTitle)
	assert.Equal(t, "body", cfg.EmbedBody)
	assert.Equal(t, 0x123456, cfg.EmbedColor)
	assert.Equal(t, "https://example.com/thumb.png", cfg.EmbedThumbnailURL)
	assert.Equal(t, "footer", cfg.EmbedFooter)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, DefaultQueueDelay, cfg.QueueDelay)
}
