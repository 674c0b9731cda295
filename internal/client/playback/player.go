package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNoVideo            = errors.New("no video loaded")
	ErrUnsupportedQuality = errors.New("unsupported quality")
)

// PlayerState mirrors the embedded player's numeric states.
type PlayerState int

const (
	StateUnstarted PlayerState = -1
	StateEnded     PlayerState = 0
	StatePlaying   PlayerState = 1
	StatePaused    PlayerState = 2
	StateBuffering PlayerState = 3
	StateCued      PlayerState = 5
)

// Snapshot is what the player reports when polled.
type Snapshot struct {
	VideoID      string
	Title        string
	Author       string
	State        PlayerState
	CurrentTime  float64
	Volume       float64
	PlaybackRate float64
	Quality      string
}

// Player is the capability handle the surrounding UI exposes. The engine never
// talks to the video provider directly.
type Player interface {
	LoadVideoByID(id string) error
	Play() error
	Pause() error
	SeekTo(seconds float64, allowSeekAhead bool) error
	SetPlaybackRate(rate float64) error
	SetVolume(volume float64) error
	SetPlaybackQuality(token string) error
	State() Snapshot
}

// VideoInfoFunc resolves display metadata for a video id.
type VideoInfoFunc func(id string) (title, author string)

// MemoryPlayer is a headless Player. Position advances with the clock while
// playing.
type MemoryPlayer struct {
	mu      sync.Mutex
	now     func() time.Time
	info    VideoInfoFunc
	snap    Snapshot
	started time.Time
}

type MemoryPlayerOption func(*MemoryPlayer)

func WithPlayerClock(now func() time.Time) MemoryPlayerOption {
	return func(p *MemoryPlayer) { p.now = now }
}

func WithVideoInfo(info VideoInfoFunc) MemoryPlayerOption {
	return func(p *MemoryPlayer) { p.info = info }
}

func NewMemoryPlayer(opts ...MemoryPlayerOption) *MemoryPlayer {
	p := &MemoryPlayer{
		now: time.Now,
		snap: Snapshot{
			State:        StateUnstarted,
			Volume:       100,
			PlaybackRate: 1,
			Quality:      QualityDefault,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MemoryPlayer) LoadVideoByID(id string) error {
	if id == "" {
		return fmt.Errorf("load video: %w", ErrNoVideo)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snap.VideoID = id
	p.snap.Title, p.snap.Author = "", ""
	if p.info != nil {
		p.snap.Title, p.snap.Author = p.info(id)
	}
	p.snap.CurrentTime = 0
	p.snap.State = StatePlaying
	p.started = p.now()
	return nil
}

func (p *MemoryPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snap.VideoID == "" {
		return fmt.Errorf("play: %w", ErrNoVideo)
	}
	if p.snap.State != StatePlaying {
		p.snap.State = StatePlaying
		p.started = p.now()
	}
	return nil
}

func (p *MemoryPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snap.VideoID == "" {
		return fmt.Errorf("pause: %w", ErrNoVideo)
	}
	p.advance()
	p.snap.State = StatePaused
	return nil
}

func (p *MemoryPlayer) SeekTo(seconds float64, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snap.VideoID == "" {
		return fmt.Errorf("seek: %w", ErrNoVideo)
	}
	p.snap.CurrentTime = seconds
	p.started = p.now()
	return nil
}

func (p *MemoryPlayer) SetPlaybackRate(rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.advance()
	p.snap.PlaybackRate = rate
	return nil
}

func (p *MemoryPlayer) SetVolume(volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snap.Volume = volume
	return nil
}

func (p *MemoryPlayer) SetPlaybackQuality(token string) error {
	if _, ok := qualityLabels[token]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedQuality, token)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.snap.Quality = token
	return nil
}

func (p *MemoryPlayer) State() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.advance()
	return p.snap
}

// advance folds elapsed playing time into the position. Callers hold mu.
func (p *MemoryPlayer) advance() {
	if p.snap.State != StatePlaying {
		return
	}
	now := p.now()
	p.snap.CurrentTime += now.Sub(p.started).Seconds() * p.snap.PlaybackRate
	p.started = now
}
