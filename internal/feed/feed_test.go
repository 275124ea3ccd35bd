package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	playerrors "github.com/jscyril/feedaudio/pkg/errors"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func samplePosts() []*Post {
	return []*Post{
		{ID: "p1", Author: "ana", Caption: "morning set", CreatedAt: base,
			Media: &Media{TrackID: "t1", AudioURL: "https://cdn/a.mp3", Title: "Sunrise", DurationMillis: 180000}},
		{ID: "p2", Author: "ben", Caption: "no audio here", CreatedAt: base.Add(time.Hour)},
		{ID: "p3", Author: "cy", Caption: "repost of sunrise", CreatedAt: base.Add(2 * time.Hour),
			Media: &Media{TrackID: "t1", AudioURL: "https://cdn/a.mp3", Title: "Sunrise"}},
		{ID: "p4", Author: "dee", Caption: "voice note", CreatedAt: base.Add(3 * time.Hour),
			Media: &Media{AudioURL: "https://cdn/d.mp3", PreviewURL: "https://cdn/d-30s.mp3"}},
	}
}

func newSampleFeed() *Feed {
	f := NewFeed()
	for _, p := range samplePosts() {
		f.AddPost(p)
	}
	return f
}

func TestTrackFromPost(t *testing.T) {
	posts := samplePosts()

	tests := []struct {
		name       string
		post       *Post
		wantID     string
		wantTitle  string
		wantAuthor string
		wantErr    error
	}{
		{"attachment id", posts[0], "t1", "Sunrise", "ana", nil},
		{"derived id and caption title", posts[3], "post-p4", "voice note", "dee", nil},
		{"no media", posts[1], "", "", "", playerrors.ErrNoAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, err := TrackFromPost(tt.post)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if track.ID != tt.wantID || track.Title != tt.wantTitle || track.Author != tt.wantAuthor {
				t.Errorf("track = %+v", track)
			}
			if track.OriginPostID != tt.post.ID {
				t.Errorf("OriginPostID = %q", track.OriginPostID)
			}
		})
	}
}

func TestTrackFromPostCopiesWaveform(t *testing.T) {
	p := &Post{ID: "p", Media: &Media{AudioURL: "a.mp3", Waveform: []float64{0.1, 0.2}}}
	track, err := TrackFromPost(p)
	if err != nil {
		t.Fatal(err)
	}
	track.Waveform[0] = 1
	if p.Media.Waveform[0] != 0.1 {
		t.Error("track must not share the post's waveform slice")
	}
}

func TestFeedOrderingAndLookup(t *testing.T) {
	f := newSampleFeed()

	all := f.All()
	if len(all) != 4 || all[0].ID != "p4" || all[3].ID != "p1" {
		t.Errorf("order = %v", ids(all))
	}
	if got := ids(f.AudioPosts()); len(got) != 3 {
		t.Errorf("audio posts = %v", got)
	}

	tracks := f.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("tracks = %d, want 2 distinct", len(tracks))
	}
	if _, err := f.TrackByID("t1"); err != nil {
		t.Error(err)
	}
	if _, err := f.TrackByID("nope"); !errors.Is(err, playerrors.ErrTrackNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := f.GetPost("nope"); !errors.Is(err, playerrors.ErrPostNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestAddPostReplaces(t *testing.T) {
	f := newSampleFeed()
	f.AddPost(&Post{ID: "p1", Author: "ana", Caption: "edited", CreatedAt: base})

	if f.Len() != 4 {
		t.Errorf("Len = %d, want 4", f.Len())
	}
	p, _ := f.GetPost("p1")
	if p.Caption != "edited" {
		t.Errorf("caption = %q", p.Caption)
	}
}

func TestSearch(t *testing.T) {
	f := newSampleFeed()

	got := ids(f.Search("sunrise"))
	if len(got) != 2 {
		t.Fatalf("results = %v", got)
	}
	got = ids(f.Search("BEN"))
	if len(got) != 1 || got[0] != "p2" {
		t.Errorf("results = %v", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed", "feed.json")
	if err := newSampleFeed().Save(path); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFeed(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(f.All()); len(got) != 4 || got[0] != "p4" {
		t.Errorf("loaded = %v", got)
	}
	p, err := f.GetPost("p4")
	if err != nil || p.Media.PreviewURL != "https://cdn/d-30s.mp3" {
		t.Errorf("p4 = %+v, %v", p, err)
	}
}

func TestLoadFeedMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	f, err := LoadFeed(filepath.Join(dir, "missing.json"))
	if err != nil || f.Len() != 0 {
		t.Errorf("missing feed = %v, %v", f, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFeed(bad); err == nil {
		t.Error("expected an error")
	}
}

func TestScannerImport(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.mp3", "two.flac", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("not really audio"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	f := NewFeed()
	added, errs := NewScanner(2).Import(context.Background(), f, []string{dir})
	if added != 2 || len(errs) != 0 {
		t.Fatalf("added = %d, errs = %v", added, errs)
	}

	titles := map[string]bool{}
	for _, p := range f.AudioPosts() {
		titles[p.Media.Title] = true
		if p.Author != "Unknown Artist" {
			t.Errorf("author = %q", p.Author)
		}
	}
	if !titles["one"] || !titles["two"] {
		t.Errorf("titles = %v", titles)
	}
}

func TestScannerMissingPath(t *testing.T) {
	added, errs := NewScanner(1).Import(context.Background(), NewFeed(), []string{filepath.Join(t.TempDir(), "gone")})
	if added != 0 || len(errs) != 1 {
		t.Errorf("added = %d, errs = %v", added, errs)
	}
	var se *playerrors.ScanError
	if len(errs) == 1 && !errors.As(errs[0], &se) {
		t.Errorf("err = %T, want *ScanError", errs[0])
	}
}

func TestEnrich(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "field-recording.wav")
	if err := os.WriteFile(local, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFeed()
	f.AddPost(&Post{ID: "a", CreatedAt: base, Media: &Media{AudioURL: local}})
	f.AddPost(&Post{ID: "b", CreatedAt: base, Media: &Media{AudioURL: "file://" + local, Title: "kept"}})
	f.AddPost(&Post{ID: "c", CreatedAt: base, Media: &Media{AudioURL: "https://cdn/remote.mp3"}})
	f.AddPost(&Post{ID: "d", CreatedAt: base, Media: &Media{AudioURL: filepath.Join(dir, "missing.mp3")}})

	updated, err := NewMetadataReader().Enrich(context.Background(), f, 2)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	a, _ := f.GetPost("a")
	b, _ := f.GetPost("b")
	c, _ := f.GetPost("c")
	if a.Media.Title != "field-recording" {
		t.Errorf("a title = %q", a.Media.Title)
	}
	if b.Media.Title != "kept" {
		t.Errorf("b title = %q", b.Media.Title)
	}
	if c.Media.Title != "" {
		t.Error("remote sources are never read")
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/music/a.mp3", "/music/a.mp3"},
		{"file:///music/a.mp3", "/music/a.mp3"},
		{"https://cdn/a.mp3", ""},
		{"relative/a.mp3", "relative/a.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := LocalPath(tt.in); got != tt.want {
				t.Errorf("LocalPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func ids(posts []*Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestSearchFuzzyRanksLast(t *testing.T) {
	f := newSampleFeed()

	got := ids(f.Search("vcnote"))
	if len(got) != 1 || got[0] != "p4" {
		t.Fatalf("fuzzy results = %v", got)
	}

	f = NewFeed()
	f.AddPost(&Post{ID: "live", Caption: "live set", CreatedAt: base})
	f.AddPost(&Post{ID: "soft", Caption: "soft electronic tunes", CreatedAt: base.Add(time.Hour)})
	got = ids(f.Search("set"))
	if len(got) != 2 || got[0] != "live" || got[1] != "soft" {
		t.Errorf("results = %v, want substring hit first", got)
	}
}
