package venuebot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RuntimeConfig holds the settings operators can change at runtime through
// the maintenance panel. These are deliberately NOT persisted: a restart
// resets them to the compiled defaults (seeded from EmbedConfig).
//
// A single copy is owned by VenueBot, guarded by its config mutex. Anything
// that renders the control message reads a copy via VenueBot.RuntimeConfig;
// mutations go through VenueBot.UpdateRuntimeConfig.
type RuntimeConfig struct {
	// EmbedTitle is the title of the host control message embed.
	EmbedTitle string

	// EmbedBody is the body text of the host control message embed.
	EmbedBody string

	// EmbedColor is the embed accent color as a 24-bit RGB integer.
	EmbedColor int

	// EmbedThumbnailURL is an optional thumbnail shown on the embed.
	EmbedThumbnailURL string

	// EmbedFooter is the footer text used on embeds.
	EmbedFooter string

	// RefreshInterval is how often the control message is reposted.
	RefreshInterval time.Duration `binding:"min=1s"`

	// QueueDelay is the cooldown the queue worker sleeps after each
	// processed request, successful or not.
	QueueDelay time.Duration `binding:"min=0"`
}

// newRuntimeConfig seeds the runtime configuration from the compiled
// embed defaults.
func newRuntimeConfig(embed *EmbedConfig) RuntimeConfig {
	return RuntimeConfig{
		EmbedTitle:        embed.Title,
		EmbedBody:         embed.Body,
		EmbedColor:        embed.Color,
		EmbedThumbnailURL: embed.ThumbnailURL,
		EmbedFooter:       embed.Footer,
		RefreshInterval:   embed.RefreshInterval,
		QueueDelay:        DefaultQueueDelay,
	}
}

// ParseEmbedColor parses a hex color string like "#FF0000" (leading '#'
// optional) into a 24-bit RGB integer.
func ParseEmbedColor(value string) (int, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(value) != 6 {
		return 0, fmt.Errorf("invalid color value %q", value)
	}
	parsed, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color value %q", value)
	}
	return int(parsed), nil
}

// ParseSeconds parses a positive integer seconds value, as submitted
// through the refresh-rate and queue-delay modals.
func ParseSeconds(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return time.Duration(seconds) * time.Second, nil
}
