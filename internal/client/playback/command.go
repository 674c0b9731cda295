package playback

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"watchsync/internal/core/domain"
)

var (
	commandRegex      = regexp.MustCompile(`(?i)^(play|pause|seek|speed|volume|quality|fullscreen)\b`)
	leadingIntRegex   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloatRegex = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

const (
	minSpeed  = 0.25
	maxSpeed  = 2.0
	minVolume = 0
	maxVolume = 100
)

// Command is chat text recognised as a playback command.
type Command struct {
	Name domain.Action
	Args []string
}

// ParseCommand classifies text as a command when it starts with a command
// word. The name is lower-cased; arguments are the remaining
// whitespace-separated fields.
func ParseCommand(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	if !commandRegex.MatchString(trimmed) {
		return Command{}, false
	}
	parts := strings.Fields(trimmed)
	return Command{
		Name: domain.Action(strings.ToLower(parts[0])),
		Args: parts[1:],
	}, true
}

// StateChange validates the arguments and returns the change to apply and
// broadcast, along with the system line describing it. fullscreenOn is the
// local flag before the toggle.
func (c Command) StateChange(fullscreenOn bool) (*domain.VideoStateChange, string, error) {
	switch c.Name {
	case domain.ActionPlay:
		return domain.NewStateChange(domain.ActionPlay), "Video playing", nil
	case domain.ActionPause:
		return domain.NewStateChange(domain.ActionPause), "Video paused", nil
	case domain.ActionSeek:
		seconds, ok := c.intArg()
		if !ok {
			return nil, "", fmt.Errorf("%w: seek needs whole seconds", domain.ErrInvalidCommand)
		}
		return domain.NewNumberChange(domain.ActionSeek, float64(seconds)),
			fmt.Sprintf("Video jumped to %d seconds", seconds), nil
	case domain.ActionSpeed:
		speed, ok := c.floatArg()
		if !ok || speed < minSpeed || speed > maxSpeed {
			return nil, "", fmt.Errorf("%w: speed must be between 0.25 and 2", domain.ErrInvalidCommand)
		}
		return domain.NewNumberChange(domain.ActionSpeed, speed),
			fmt.Sprintf("Playback speed set to %sx", formatNumber(speed)), nil
	case domain.ActionVolume:
		volume, ok := c.intArg()
		if !ok || volume < minVolume || volume > maxVolume {
			return nil, "", fmt.Errorf("%w: volume must be between 0 and 100", domain.ErrInvalidCommand)
		}
		return domain.NewNumberChange(domain.ActionVolume, float64(volume)),
			fmt.Sprintf("Volume set to %d%%", volume), nil
	case domain.ActionQuality:
		if len(c.Args) == 0 {
			return nil, "", fmt.Errorf("%w: quality needs a level", domain.ErrInvalidCommand)
		}
		return domain.NewStringChange(domain.ActionQuality, c.Args[0]),
			"Video quality changed to " + c.Args[0], nil
	case domain.ActionFullscreen:
		line := "Fullscreen entered"
		if fullscreenOn {
			line = "Fullscreen exited"
		}
		return domain.NewStateChange(domain.ActionFullscreen), line, nil
	}
	return nil, "", fmt.Errorf("%w: %s", domain.ErrInvalidCommand, c.Name)
}

func (c Command) intArg() (int, bool) {
	if len(c.Args) == 0 {
		return 0, false
	}
	return parseLeadingInt(c.Args[0])
}

func (c Command) floatArg() (float64, bool) {
	if len(c.Args) == 0 {
		return 0, false
	}
	return parseLeadingFloat(c.Args[0])
}

// parseLeadingInt reads the integer prefix of s, ignoring trailing text
// ("42abc" is 42).
func parseLeadingInt(s string) (int, bool) {
	m := leadingIntRegex.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseLeadingFloat reads the decimal prefix of s ("1.5x" is 1.5).
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloatRegex.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
