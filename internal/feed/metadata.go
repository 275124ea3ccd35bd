package feed

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"
)

// DefaultWorkers is the tag reading concurrency when none is configured.
const DefaultWorkers = 4

// MetadataReader extracts tags from local audio files.
type MetadataReader struct{}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader() *MetadataReader {
	return &MetadataReader{}
}

// Tags is the subset of file tags a post uses.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Year   int
}

// ReadTags reads the tags of the audio file at filePath. A file without
// tags yields the base name as title.
func (r *MetadataReader) ReadTags(filePath string) (Tags, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Tags{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return Tags{Title: base}, nil
	}
	return Tags{
		Title:  getOrDefault(metadata.Title(), base),
		Artist: metadata.Artist(),
		Album:  metadata.Album(),
		Year:   metadata.Year(),
	}, nil
}

// Read builds a post for a local audio file.
func (r *MetadataReader) Read(filePath string) (*Post, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	tags, err := r.ReadTags(filePath)
	if err != nil {
		return nil, err
	}

	id := generateID(filePath)
	return &Post{
		ID:        id,
		Author:    getOrDefault(tags.Artist, "Unknown Artist"),
		Caption:   tags.Album,
		CreatedAt: info.ModTime(),
		Media: &Media{
			TrackID:  "track-" + id,
			AudioURL: filePath,
			Title:    tags.Title,
			Artist:   tags.Artist,
		},
	}, nil
}

// Enrich fills missing titles and artists of local audio attachments from
// file tags, reading up to workers files at a time. It returns the number
// of posts updated. Unreadable files are skipped.
func (r *MetadataReader) Enrich(ctx context.Context, f *Feed, workers int) (int, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	type workItem struct {
		post *Post
		path string
	}
	type result struct {
		post *Post
		tags Tags
	}

	var items []workItem
	for _, p := range f.AudioPosts() {
		if p.Media.Title != "" && p.Media.Artist != "" {
			continue
		}
		if path := LocalPath(p.Media.AudioURL); path != "" {
			items = append(items, workItem{post: p, path: path})
		}
	}
	if len(items) == 0 {
		return 0, nil
	}

	workCh := make(chan workItem, len(items))
	for _, it := range items {
		workCh <- it
	}
	close(workCh)

	results := make(chan result, len(items))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				if ctx.Err() != nil {
					return
				}
				tags, err := r.ReadTags(work.path)
				if err != nil {
					continue
				}
				results <- result{post: work.post, tags: tags}
			}
		}()
	}
	wg.Wait()
	close(results)

	f.mu.Lock()
	defer f.mu.Unlock()
	updated := 0
	for res := range results {
		m := res.post.Media
		changed := false
		if m.Title == "" && res.tags.Title != "" {
			m.Title = res.tags.Title
			changed = true
		}
		if m.Artist == "" && res.tags.Artist != "" {
			m.Artist = res.tags.Artist
			changed = true
		}
		if changed {
			updated++
		}
	}
	return updated, ctx.Err()
}

// LocalPath returns the file system path of a plain path or file:// URL,
// and "" for remote sources.
func LocalPath(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// no scheme, or a windows drive letter
		return source
	}
	if u.Scheme == "file" {
		return u.Path
	}
	return ""
}

// generateID creates a stable ID for a local file based on its path
func generateID(filePath string) string {
	hash := md5.Sum([]byte(filePath))
	return fmt.Sprintf("%x", hash[:8])
}

func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
