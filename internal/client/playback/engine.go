package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"watchsync/internal/core/domain"
)

// maxPending bounds the unconfirmed action set when echoes are lost.
const maxPending = 256

// Publisher sends an envelope to the room. Implemented by session.Controller.
type Publisher interface {
	Publish(env *domain.Envelope) error
}

type LineKind string

const (
	LineChat    LineKind = "chat"
	LineCommand LineKind = "command"
	LineSystem  LineKind = "system"
)

// Line is one entry of the room's chat log.
type Line struct {
	Kind        LineKind
	DisplayName string
	Text        string
	Timestamp   int64
}

// Hooks receive UI updates. They are called with the engine locked and must
// not call back into the Engine. Nil hooks are skipped.
type Hooks struct {
	OnLine       func(Line)
	OnMembers    func([]string)
	OnNotice     func(string)
	OnVideoState func(domain.VideoState)
	OnFullscreen func(bool)
}

// Engine turns remote envelopes into player calls and local intent into
// envelopes. Local actions are applied immediately and tagged with the
// engine's origin and a sequence number; their echo is a confirmation and is
// never applied twice.
type Engine struct {
	mu        sync.Mutex
	player    Player
	publisher Publisher
	hooks     Hooks
	logger    *zap.SugaredLogger

	origin  string
	seq     uint64
	pending map[uint64]struct{}

	room       domain.RoomCode
	name       string
	members    MemberSet
	state      domain.VideoState
	fullscreen bool
}

func NewEngine(player Player, publisher Publisher, hooks Hooks, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		player:    player,
		publisher: publisher,
		hooks:     hooks,
		logger:    logger,
		origin:    uuid.NewString(),
		pending:   make(map[uint64]struct{}),
		state:     domain.InitialVideoState(),
	}
}

// SetIdentity starts a room visit: the member list is reset and a welcome line
// is shown.
func (e *Engine) SetIdentity(room domain.RoomCode, displayName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.room = room.Normalize()
	e.name = displayName
	e.members.Reset()
	e.emitMembers()
	e.emitLine(Line{Kind: LineSystem, Text: fmt.Sprintf("Welcome to room %s", e.room), Timestamp: time.Now().UnixMilli()})
}

func (e *Engine) Origin() string { return e.origin }

func (e *Engine) State() domain.VideoState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Members() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.members.List()
}

func (e *Engine) Fullscreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreen
}

// Pending returns the number of local actions whose echo has not arrived.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// HandleEnvelope applies one inbound envelope.
func (e *Engine) HandleEnvelope(env *domain.Envelope) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.room != "" && env.RoomID.Normalize() != e.room {
		e.logger.Debugw("Ignoring envelope for another room", "room", env.RoomID, "type", env.Kind)
		return
	}

	switch env.Kind {
	case domain.KindChat:
		e.emitLine(Line{Kind: LineChat, DisplayName: env.DisplayName, Text: env.Text, Timestamp: env.Timestamp})
	case domain.KindCommand:
		e.emitLine(Line{Kind: LineCommand, DisplayName: env.DisplayName, Text: env.Text, Timestamp: env.Timestamp})
	case domain.KindSystem:
		e.emitLine(Line{Kind: LineSystem, Text: env.Text, Timestamp: env.Timestamp})
	case domain.KindUserJoined:
		e.members.Add(env.DisplayName)
		e.emitMembers()
		e.emitLine(Line{Kind: LineSystem, Text: env.DisplayName + " joined the room", Timestamp: env.Timestamp})
	case domain.KindUserLeft:
		e.members.Remove(env.DisplayName)
		e.emitMembers()
		e.emitLine(Line{Kind: LineSystem, Text: env.DisplayName + " left the room", Timestamp: env.Timestamp})
	case domain.KindVideoChanged:
		if e.confirm(env) {
			return
		}
		id, ok := ExtractVideoID(env.VideoURL)
		if !ok {
			e.logger.Debugw("No video id in video_changed", "url", env.VideoURL)
			return
		}
		e.load(id, env.VideoURL)
		name := env.DisplayName
		if name == "" {
			name = "Someone"
		}
		e.emitLine(Line{Kind: LineSystem, Text: name + " added a new video", Timestamp: env.Timestamp})
	case domain.KindVideoStateChanged:
		if env.VideoState == nil || e.confirm(env) {
			return
		}
		if err := e.apply(env.VideoState); err != nil {
			if errors.Is(err, domain.ErrMalformedEnvelope) || errors.Is(err, domain.ErrInvalidCommand) {
				e.logger.Debugw("Dropping video_state_changed", "action", env.VideoState.Action, "error", err)
				return
			}
			e.notice(err.Error())
		}
	default:
		e.logger.Debugw("Ignoring envelope", "type", env.Kind)
	}
}

// SendText classifies chat input as a command, a video link or plain chat.
func (e *Engine) SendText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cmd, ok := ParseCommand(text); ok {
		e.runCommand(cmd, text)
		return
	}

	if url, id, ok := FindVideoURL(text); ok {
		e.load(id, url)
		e.publishTagged(&domain.Envelope{Kind: domain.KindVideoChanged, VideoURL: url})
		e.publish(&domain.Envelope{Kind: domain.KindSystem, Text: e.name + " added a new video"})
		return
	}

	e.publish(&domain.Envelope{Kind: domain.KindChat, Text: text})
}

func (e *Engine) runCommand(cmd Command, text string) {
	change, line, err := cmd.StateChange(e.fullscreen)
	if err != nil {
		e.notice(err.Error())
		e.publish(&domain.Envelope{Kind: domain.KindCommand, Text: text})
		return
	}

	if err := e.apply(change); err != nil {
		e.notice(err.Error())
	}
	e.publishTagged(&domain.Envelope{Kind: domain.KindVideoStateChanged, VideoState: change})
	e.publish(&domain.Envelope{Kind: domain.KindCommand, Text: text})
	e.publish(&domain.Envelope{Kind: domain.KindSystem, Text: line})
}

// LoadVideo loads url locally and announces it to the room.
func (e *Engine) LoadVideo(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := ExtractVideoID(url)
	if !ok {
		e.notice("Invalid URL")
		return
	}
	e.load(id, url)
	e.publishTagged(&domain.Envelope{Kind: domain.KindVideoChanged, VideoURL: url})
}

func (e *Engine) Play() { e.local(domain.NewStateChange(domain.ActionPlay)) }

func (e *Engine) Pause() { e.local(domain.NewStateChange(domain.ActionPause)) }

func (e *Engine) Seek(seconds float64) {
	e.local(domain.NewNumberChange(domain.ActionSeek, seconds))
}

func (e *Engine) SetSpeed(rate float64) {
	if rate < minSpeed || rate > maxSpeed {
		e.lockedNotice("Playback speed must be between 0.25 and 2")
		return
	}
	e.local(domain.NewNumberChange(domain.ActionSpeed, rate))
}

func (e *Engine) SetVolume(volume float64) {
	if volume < minVolume || volume > maxVolume {
		e.lockedNotice("Volume must be between 0 and 100")
		return
	}
	e.local(domain.NewNumberChange(domain.ActionVolume, volume))
}

// SetQuality takes a player quality token and announces its readable label.
func (e *Engine) SetQuality(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	change := domain.NewStringChange(domain.ActionQuality, token)
	if err := e.apply(change); err != nil {
		e.notice(err.Error())
	}
	e.publishTagged(&domain.Envelope{Kind: domain.KindVideoStateChanged, VideoState: change})
	e.publish(&domain.Envelope{Kind: domain.KindSystem, Text: "Video quality changed to " + QualityLabel(token)})
}

func (e *Engine) ToggleFullscreen() { e.local(domain.NewStateChange(domain.ActionFullscreen)) }

func (e *Engine) local(change *domain.VideoStateChange) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.apply(change); err != nil {
		e.notice(err.Error())
	}
	e.publishTagged(&domain.Envelope{Kind: domain.KindVideoStateChanged, VideoState: change})
}

// Poll refreshes the derived video state from the player. Results are never
// published.
func (e *Engine) Poll() {
	snap := e.player.State()

	e.mu.Lock()
	defer e.mu.Unlock()

	if snap.VideoID == "" {
		return
	}
	next := e.state
	next.VideoID = snap.VideoID
	next.Title = snap.Title
	next.ChannelName = snap.Author
	next.IsPlaying = snap.State == StatePlaying
	next.CurrentTime = snap.CurrentTime
	next.Volume = snap.Volume
	next.PlaybackRate = snap.PlaybackRate
	next.Quality = snap.Quality

	if next == e.state {
		return
	}
	if next.Title != e.state.Title && next.Title != "" {
		e.logger.Debugw("Now playing", "title", next.Title, "channel", next.ChannelName)
	}
	e.state = next
	e.emitState()
}

// RunPoller polls the player every interval until ctx is done.
func (e *Engine) RunPoller(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Poll()
		}
	}
}

// apply performs one state change against the player and the derived state.
// Callers hold mu.
func (e *Engine) apply(change *domain.VideoStateChange) error {
	switch change.Action {
	case domain.ActionPlay:
		if err := e.player.Play(); err != nil {
			return err
		}
		e.state.IsPlaying = true
	case domain.ActionPause:
		if err := e.player.Pause(); err != nil {
			return err
		}
		e.state.IsPlaying = false
	case domain.ActionSeek:
		seconds, ok := change.Number()
		if !ok {
			return fmt.Errorf("seek: %w", domain.ErrMalformedEnvelope)
		}
		if err := e.player.SeekTo(seconds, true); err != nil {
			return err
		}
		e.state.CurrentTime = seconds
	case domain.ActionSpeed:
		rate, ok := change.Number()
		if !ok {
			return fmt.Errorf("speed: %w", domain.ErrMalformedEnvelope)
		}
		if err := e.player.SetPlaybackRate(rate); err != nil {
			return err
		}
		e.state.PlaybackRate = rate
	case domain.ActionVolume:
		volume, ok := change.Number()
		if !ok {
			return fmt.Errorf("volume: %w", domain.ErrMalformedEnvelope)
		}
		if err := e.player.SetVolume(volume); err != nil {
			return err
		}
		e.state.Volume = volume
	case domain.ActionQuality:
		label, ok := change.Label()
		if !ok {
			return fmt.Errorf("quality: %w", domain.ErrMalformedEnvelope)
		}
		token := QualityToken(label)
		if err := e.player.SetPlaybackQuality(token); err != nil {
			return err
		}
		e.state.Quality = token
	case domain.ActionFullscreen:
		e.fullscreen = !e.fullscreen
		if e.hooks.OnFullscreen != nil {
			e.hooks.OnFullscreen(e.fullscreen)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidCommand, change.Action)
	}
	e.emitState()
	return nil
}

func (e *Engine) load(id, url string) {
	if err := e.player.LoadVideoByID(id); err != nil {
		e.notice(err.Error())
		return
	}
	e.state.VideoID = id
	e.state.VideoURL = url
	e.state.Title = ""
	e.state.ChannelName = ""
	e.state.CurrentTime = 0
	e.state.IsPlaying = true
	e.emitState()
}

// confirm reports whether env is the echo of one of our own actions.
func (e *Engine) confirm(env *domain.Envelope) bool {
	if env.Origin == "" || env.Origin != e.origin {
		return false
	}
	if _, ok := e.pending[env.Seq]; ok {
		delete(e.pending, env.Seq)
	} else {
		e.logger.Debugw("Duplicate echo", "seq", env.Seq, "type", env.Kind)
	}
	return true
}

// publishTagged publishes an optimistic action with our origin and the next
// sequence number.
func (e *Engine) publishTagged(env *domain.Envelope) {
	e.seq++
	env.Origin = e.origin
	env.Seq = e.seq
	e.pending[env.Seq] = struct{}{}
	if len(e.pending) > maxPending {
		for seq := range e.pending {
			if seq+maxPending <= e.seq {
				delete(e.pending, seq)
			}
		}
	}
	if !e.publish(env) {
		delete(e.pending, env.Seq)
	}
}

func (e *Engine) publish(env *domain.Envelope) bool {
	env.RoomID = e.room
	if env.DisplayName == "" && env.Kind != domain.KindSystem {
		env.DisplayName = e.name
	}
	if err := e.publisher.Publish(env); err != nil {
		e.logger.Debugw("Publish failed", "type", env.Kind, "error", err)
		e.notice(fmt.Sprintf("Could not send %s: %v", env.Kind, err))
		return false
	}
	return true
}

func (e *Engine) lockedNotice(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notice(text)
}

func (e *Engine) notice(text string) {
	if e.hooks.OnNotice != nil {
		e.hooks.OnNotice(text)
	}
}

func (e *Engine) emitLine(line Line) {
	if e.hooks.OnLine != nil {
		e.hooks.OnLine(line)
	}
}

func (e *Engine) emitMembers() {
	if e.hooks.OnMembers != nil {
		e.hooks.OnMembers(e.members.List())
	}
}

func (e *Engine) emitState() {
	if e.hooks.OnVideoState != nil {
		e.hooks.OnVideoState(e.state)
	}
}
