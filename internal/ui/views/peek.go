package views

import (
	"context"
	"sync"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/audio"
	"github.com/jscyril/feedaudio/internal/engine"
	"github.com/jscyril/feedaudio/internal/feed"
)

// PeekPlayer previews one post in place through its own TrackHook,
// leaving the global session alone. Moving to another post tears the hook
// down before the next one is mounted.
type PeekPlayer struct {
	binding engine.Binding
	opts    audio.HookOptions

	opMu sync.Mutex // serialises Toggle

	mu     sync.Mutex
	hook   *audio.TrackHook
	postID string
}

func NewPeekPlayer(binding engine.Binding, opts audio.HookOptions) *PeekPlayer {
	return &PeekPlayer{binding: binding, opts: opts}
}

// peekSource prefers the short preview clip.
func peekSource(p *feed.Post) string {
	if !p.HasAudio() {
		return ""
	}
	if p.Media.PreviewURL != "" {
		return p.Media.PreviewURL
	}
	return p.Media.AudioURL
}

// Toggle plays or pauses the preview of p. A failed preview is retried.
func (pp *PeekPlayer) Toggle(ctx context.Context, p *feed.Post) {
	url := peekSource(p)
	if url == "" {
		return
	}

	pp.opMu.Lock()
	defer pp.opMu.Unlock()

	pp.mu.Lock()
	hook, current := pp.hook, pp.postID
	pp.mu.Unlock()

	if hook != nil && current == p.ID {
		st := hook.State()
		switch {
		case st.ErrorMessage != "" && !st.HasHandle():
			hook.Retry(ctx)
			hook.Play(ctx)
		case st.IsPlaying():
			hook.Pause(ctx)
		default:
			hook.Play(ctx)
		}
		return
	}

	pp.Release(ctx)
	hook = audio.NewTrackHook(pp.binding, pp.opts)
	hook.Mount(ctx, "")
	pp.mu.Lock()
	pp.hook, pp.postID = hook, p.ID
	pp.mu.Unlock()

	hook.SetURL(ctx, url)
	hook.Play(ctx)
}

// Release unmounts the preview, if any. It does not wait for an in-flight
// Toggle; a load still running is abandoned and its handle unloaded.
func (pp *PeekPlayer) Release(ctx context.Context) {
	pp.mu.Lock()
	hook := pp.hook
	pp.hook, pp.postID = nil, ""
	pp.mu.Unlock()

	if hook != nil {
		hook.Unmount(ctx)
	}
}

// PostID returns the previewed post, or "".
func (pp *PeekPlayer) PostID() string {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.postID
}

// State returns the preview's session state. ok is false when nothing is
// mounted.
func (pp *PeekPlayer) State() (state api.SessionState, ok bool) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.hook == nil {
		return api.SessionState{}, false
	}
	return pp.hook.State(), true
}
