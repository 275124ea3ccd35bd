// Package feed holds the posts the client can play audio from.
package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/jscyril/feedaudio/api"
	playerrors "github.com/jscyril/feedaudio/pkg/errors"
)

// Media is the audio attachment of a post.
type Media struct {
	TrackID        string    `json:"track_id,omitempty"`
	AudioURL       string    `json:"audio_url"`
	PreviewURL     string    `json:"preview_url,omitempty"`
	Title          string    `json:"title,omitempty"`
	Artist         string    `json:"artist,omitempty"`
	CoverURL       string    `json:"cover_url,omitempty"`
	Waveform       []float64 `json:"waveform,omitempty"`
	WaveformURL    string    `json:"waveform_url,omitempty"`
	DurationMillis int64     `json:"duration_ms,omitempty"`
}

// Post is a feed entry. Only posts with Media can be played.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Media     *Media    `json:"media,omitempty"`
}

// HasAudio reports whether the post carries a playable attachment.
func (p *Post) HasAudio() bool {
	return p.Media != nil && p.Media.AudioURL != ""
}

// TrackFromPost builds the track for a post's audio attachment. The track id
// is the attachment's id when it has one, so reposts of the same audio share
// playback; otherwise it is derived from the post.
func TrackFromPost(p *Post) (api.Track, error) {
	if !p.HasAudio() {
		return api.Track{}, fmt.Errorf("%w: %s", playerrors.ErrNoAudio, p.ID)
	}
	m := p.Media
	id := m.TrackID
	if id == "" {
		id = "post-" + p.ID
	}
	title := m.Title
	if title == "" {
		title = p.Caption
	}
	artist := m.Artist
	if artist == "" {
		artist = p.Author
	}
	return api.Track{
		ID:                 id,
		SourceURL:          m.AudioURL,
		PreviewURL:         m.PreviewURL,
		Title:              title,
		Author:             artist,
		CoverURL:           m.CoverURL,
		Waveform:           append([]float64(nil), m.Waveform...),
		WaveformURL:        m.WaveformURL,
		DurationHintMillis: m.DurationMillis,
		OriginPostID:       p.ID,
	}, nil
}

// Feed is an ordered, indexed collection of posts.
type Feed struct {
	Posts []*Post `json:"posts"`

	byID map[string]*Post
	mu   sync.RWMutex
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{byID: make(map[string]*Post)}
}

// AddPost adds or replaces a post and keeps the feed newest first.
func (f *Feed) AddPost(p *Post) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byID[p.ID]; exists {
		f.Posts = lo.Reject(f.Posts, func(q *Post, _ int) bool { return q.ID == p.ID })
	}
	f.byID[p.ID] = p
	f.Posts = append(f.Posts, p)
	f.sortLocked()
}

func (f *Feed) sortLocked() {
	sort.SliceStable(f.Posts, func(i, j int) bool {
		return f.Posts[i].CreatedAt.After(f.Posts[j].CreatedAt)
	})
}

// GetPost returns a post by ID
func (f *Feed) GetPost(id string) (*Post, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.byID[id]
	if !ok {
		return nil, playerrors.ErrPostNotFound
	}
	return p, nil
}

// All returns every post, newest first.
func (f *Feed) All() []*Post {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*Post(nil), f.Posts...)
}

// AudioPosts returns the posts that can be played, newest first.
func (f *Feed) AudioPosts() []*Post {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return lo.Filter(f.Posts, func(p *Post, _ int) bool { return p.HasAudio() })
}

// Tracks returns the distinct tracks of the feed in feed order.
func (f *Feed) Tracks() []api.Track {
	tracks := make([]api.Track, 0)
	for _, p := range f.AudioPosts() {
		t, err := TrackFromPost(p)
		if err != nil {
			continue
		}
		tracks = append(tracks, t)
	}
	return lo.UniqBy(tracks, func(t api.Track) string { return t.ID })
}

// TrackByID finds the track with id in the feed.
func (f *Feed) TrackByID(id string) (api.Track, error) {
	t, ok := lo.Find(f.Tracks(), func(t api.Track) bool { return t.ID == id })
	if !ok {
		return api.Track{}, playerrors.ErrTrackNotFound
	}
	return t, nil
}

// Search matches posts by caption, author, title or artist, falling back to
// fuzzy matching. Title matches sort first.
func (f *Feed) Search(query string) []*Post {
	f.mu.RLock()
	defer f.mu.RUnlock()

	query = strings.ToLower(query)
	fields := func(p *Post) []string {
		if p.Media == nil {
			return []string{"", p.Caption, p.Author}
		}
		return []string{p.Media.Title, p.Caption, p.Author, p.Media.Artist}
	}

	// Substring hits rank above fuzzy ones, title hits above the rest.
	rank := make(map[string]int)
	results := lo.Filter(f.Posts, func(p *Post, _ int) bool {
		for i, s := range fields(p) {
			if strings.Contains(strings.ToLower(s), query) {
				rank[p.ID] = min(i, 1)
				return true
			}
		}
		for _, s := range fields(p) {
			if fuzzy.MatchFold(query, s) {
				rank[p.ID] = 2
				return true
			}
		}
		return false
	})
	sort.SliceStable(results, func(i, j int) bool {
		return rank[results[i].ID] < rank[results[j].ID]
	})
	return results
}

// Len returns the number of posts.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.Posts)
}

// Save persists the feed to a JSON file
func (f *Feed) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write feed file: %w", err)
	}

	return nil
}

// LoadFeed loads a feed from a JSON file (or returns empty if not exists)
func LoadFeed(path string) (*Feed, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewFeed(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}

	var loaded struct {
		Posts []*Post `json:"posts"`
	}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("unmarshal feed: %w", err)
	}

	f := NewFeed()
	for _, p := range loaded.Posts {
		if p == nil || p.ID == "" {
			continue
		}
		f.byID[p.ID] = p
	}
	f.Posts = lo.Values(f.byID)
	sort.Slice(f.Posts, func(i, j int) bool { return f.Posts[i].ID < f.Posts[j].ID })
	f.sortLocked()
	return f, nil
}
