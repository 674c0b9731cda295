package domain

// VideoState is a client's local projection of the shared playback state.
// No component holds a canonical copy.
type VideoState struct {
	VideoID      string  `json:"videoId,omitempty"`
	VideoURL     string  `json:"videoUrl,omitempty"`
	Title        string  `json:"title,omitempty"`
	ChannelName  string  `json:"channelName,omitempty"`
	IsPlaying    bool    `json:"isPlaying"`
	CurrentTime  float64 `json:"currentTime"`
	Quality      string  `json:"quality"`
	Volume       float64 `json:"volume"`
	PlaybackRate float64 `json:"playbackRate"`
}

func InitialVideoState() VideoState {
	return VideoState{
		Quality:      "default",
		Volume:       100,
		PlaybackRate: 1,
	}
}
