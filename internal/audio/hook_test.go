package audio

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/jscyril/feedaudio/api"
	"github.com/jscyril/feedaudio/internal/engine/enginetest"
)

func newTestHook(t *testing.T) (*TrackHook, *enginetest.Binding) {
	t.Helper()
	fake := enginetest.New()
	return NewTrackHook(fake, HookOptions{Logger: zaptest.NewLogger(t)}), fake
}

func TestHookMountLoads(t *testing.T) {
	h, fake := newTestHook(t)
	h.Mount(context.Background(), "https://x/a.mp3")

	st := h.State()
	if st.CurrentID() != "https://x/a.mp3" {
		t.Errorf("current = %q", st.CurrentID())
	}
	if h.EngineRef() == "" {
		t.Error("EngineRef should identify the live handle")
	}
	if fake.Count("create") != 1 {
		t.Errorf("create calls = %d, want 1", fake.Count("create"))
	}
}

func TestHookMountWithoutURL(t *testing.T) {
	h, fake := newTestHook(t)
	h.Mount(context.Background(), "")

	if fake.Count("create") != 0 {
		t.Error("empty url must not create a handle")
	}
	h.Play(context.Background())
	if len(fake.Calls()) != 0 {
		t.Error("play without a handle must not reach the engine")
	}
}

func TestHookURLChangeTearsDownFirst(t *testing.T) {
	h, fake := newTestHook(t)
	ctx := context.Background()
	h.Mount(ctx, "https://x/a.mp3")
	h.SetURL(ctx, "https://x/a.mp3")
	if fake.Count("create") != 1 {
		t.Fatalf("unchanged url recreated the handle")
	}

	h.SetURL(ctx, "https://x/b.mp3")

	calls := fake.Calls()
	if len(calls) != 3 || calls[1].Op != "unload" || calls[2].Op != "create" {
		t.Fatalf("calls = %v, want create, unload, create", calls)
	}
	if fake.MaxLive() != 1 {
		t.Errorf("MaxLive = %d, want 1", fake.MaxLive())
	}
	if h.URL() != "https://x/b.mp3" {
		t.Errorf("URL = %q", h.URL())
	}
}

func TestHookUnmountUnloadsOnce(t *testing.T) {
	h, fake := newTestHook(t)
	ctx := context.Background()
	h.Mount(ctx, "https://x/a.mp3")
	id := h.EngineRef()

	h.Unmount(ctx)
	h.Unmount(ctx)

	if n := fake.CountFor("unload", id); n != 1 {
		t.Errorf("unload calls for %s = %d, want 1", id, n)
	}
	if fake.Live() != 0 {
		t.Errorf("Live = %d, want 0", fake.Live())
	}
}

func TestHookRemountAfterUnmount(t *testing.T) {
	h, fake := newTestHook(t)
	ctx := context.Background()
	h.Mount(ctx, "https://x/a.mp3")
	h.Unmount(ctx)

	h.Mount(ctx, "https://x/b.mp3")
	if h.EngineRef() == "" || h.State().CurrentID() != "https://x/b.mp3" {
		t.Fatalf("remount did not load: %+v", h.State())
	}
	h.Play(ctx)
	if n := fake.Count("play"); n != 1 {
		t.Errorf("play calls = %d, want 1", n)
	}
	if fake.Live() != 1 || fake.MaxLive() != 1 {
		t.Errorf("live = %d max = %d, want 1", fake.Live(), fake.MaxLive())
	}

	ch := h.Subscribe()
	h.Unmount(ctx)
	for range ch {
	}
	if fake.Live() != 0 {
		t.Errorf("Live = %d, want 0", fake.Live())
	}
}

func TestHookUnmountDuringLoad(t *testing.T) {
	h, fake := newTestHook(t)
	fake.Gate = make(chan struct{})
	fake.Created = make(chan string, 1)
	ctx := context.Background()

	mounted := make(chan struct{})
	go func() {
		defer close(mounted)
		h.Mount(ctx, "https://x/a.mp3")
	}()
	<-fake.Created

	h.Unmount(ctx)
	<-mounted

	handles := fake.Handles()
	if len(handles) != 1 {
		t.Fatalf("handles = %d, want 1", len(handles))
	}
	if n := fake.CountFor("unload", handles[0].ID()); n != 1 {
		t.Errorf("unload calls = %d, want exactly 1", n)
	}
	if fake.Live() != 0 {
		t.Errorf("Live = %d, want 0", fake.Live())
	}
}

func TestHookSwallowsErrors(t *testing.T) {
	h, fake := newTestHook(t)
	fake.CreateErr = errors.New("unreachable host")
	ctx := context.Background()

	h.Mount(ctx, "https://x/a.mp3")
	if h.State().ErrorMessage != "unreachable host" {
		t.Errorf("ErrorMessage = %q", h.State().ErrorMessage)
	}

	fake.CreateErr = nil
	h.Retry(ctx)
	if h.EngineRef() == "" {
		t.Error("retry should create a handle")
	}
}

func TestHookSubscribe(t *testing.T) {
	h, fake := newTestHook(t)
	ctx := context.Background()
	ch := h.Subscribe()

	h.Mount(ctx, "https://x/a.mp3")
	fake.Last().Emit(api.PlaybackStatus{IsLoaded: true, IsPlaying: true})

	var sawPosition bool
	for len(ch) > 0 {
		ev := <-ch
		if ev.Type == api.EventPositionUpdate {
			sawPosition = ev.Payload.(api.SessionState).IsPlaying()
		}
	}
	if !sawPosition {
		t.Error("expected a position update with the playing flag")
	}

	h.Unmount(ctx)
	// drains the teardown event, then ends because the channel is closed
	for range ch {
	}
}
