package playback

import (
	"regexp"
	"strings"
)

// videoLinkPattern matches a YouTube link up to and including its 11
// character id: watch?v=, youtu.be/, /embed/, /v/, /e/, /shorts/ and
// /<segment>/<segment>/ shapes on youtube.com, www. and m. hosts.
const videoLinkPattern = `(?:https?://)?(?:(?:www|m)\.)?` +
	`(?:youtube\.com/(?:(?:v|e|embed|shorts)/|watch\?(?:[^\s#]*&)?v=|[^/\s?#]+/[^/\s?#]+/)|youtu\.be/)` +
	`([A-Za-z0-9_-]{11})`

var (
	videoIDRegex = regexp.MustCompile(`^` + videoLinkPattern + `(?:[?&#/]\S*)?$`)

	// embeddedURLRegex finds a video link inside free chat text.
	embeddedURLRegex = regexp.MustCompile(`(?:^|[^\w./-])(` + videoLinkPattern + `)(?:[^\w-]|$)`)
)

// ExtractVideoID returns the video id carried by url. Anything that is not a
// YouTube link with an 11 character id yields ok=false.
func ExtractVideoID(url string) (id string, ok bool) {
	m := videoIDRegex.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FindVideoURL looks for an embedded video link in chat text and returns the
// matched link and its id. The returned link is always accepted by
// ExtractVideoID.
func FindVideoURL(text string) (url, id string, ok bool) {
	m := embeddedURLRegex.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Player-internal quality tokens.
const (
	QualitySmall   = "small"
	QualityMedium  = "medium"
	QualityLarge   = "large"
	QualityHD720   = "hd720"
	QualityHD1080  = "hd1080"
	QualityHighres = "highres"
	QualityDefault = "default"
)

var qualityLabels = map[string]string{
	QualitySmall:   "240p",
	QualityMedium:  "360p",
	QualityLarge:   "480p",
	QualityHD720:   "720p",
	QualityHD1080:  "1080p",
	QualityHighres: "1440p+",
	QualityDefault: "Auto",
}

var qualityTokens = map[string]string{
	"144p":  QualitySmall,
	"240p":  QualitySmall,
	"360p":  QualityMedium,
	"480p":  QualityLarge,
	"720p":  QualityHD720,
	"1080p": QualityHD1080,
	"1440p": QualityHighres,
	"2160p": QualityHighres,
	"Auto":  QualityDefault,
}

// QualityLabel maps a player token to its human label. Unknown tokens pass
// through unchanged.
func QualityLabel(token string) string {
	if label, ok := qualityLabels[token]; ok {
		return label
	}
	return token
}

// QualityToken maps a human label to the player token. Unknown labels pass
// through unchanged.
func QualityToken(label string) string {
	if token, ok := qualityTokens[label]; ok {
		return token
	}
	return label
}
