package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the posts table the Store reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY,
	author       TEXT NOT NULL DEFAULT '',
	caption      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	track_id     TEXT,
	audio_url    TEXT,
	preview_url  TEXT,
	title        TEXT,
	artist       TEXT,
	cover_url    TEXT,
	waveform     DOUBLE PRECISION[],
	waveform_url TEXT,
	duration_ms  BIGINT
);
CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC);
`

const selectPosts = `
	SELECT id, author, caption, created_at, track_id, audio_url, preview_url,
		title, artist, cover_url, waveform, waveform_url, duration_ms
	FROM posts
	ORDER BY created_at DESC, id
`

const upsertPost = `
	INSERT INTO posts (id, author, caption, created_at, track_id, audio_url, preview_url,
		title, artist, cover_url, waveform, waveform_url, duration_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE SET
		author = EXCLUDED.author,
		caption = EXCLUDED.caption,
		created_at = EXCLUDED.created_at,
		track_id = EXCLUDED.track_id,
		audio_url = EXCLUDED.audio_url,
		preview_url = EXCLUDED.preview_url,
		title = EXCLUDED.title,
		artist = EXCLUDED.artist,
		cover_url = EXCLUDED.cover_url,
		waveform = EXCLUDED.waveform,
		waveform_url = EXCLUDED.waveform_url,
		duration_ms = EXCLUDED.duration_ms
`

// Store keeps the feed in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// OpenStore connects to databaseURL and verifies the connection.
func OpenStore(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the posts table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}
	return nil
}

// Load reads every post, newest first.
func (s *Store) Load(ctx context.Context) (*Feed, error) {
	rows, err := s.pool.Query(ctx, selectPosts)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Post, error) {
		var r postRow
		err := row.Scan(&r.ID, &r.Author, &r.Caption, &r.CreatedAt,
			&r.TrackID, &r.AudioURL, &r.PreviewURL, &r.Title, &r.Artist,
			&r.CoverURL, &r.Waveform, &r.WaveformURL, &r.DurationMillis)
		if err != nil {
			return nil, err
		}
		return r.post(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning posts: %w", err)
	}

	f := NewFeed()
	for _, p := range posts {
		f.AddPost(p)
	}
	return f, nil
}

// Save upserts every post of f in one transaction.
func (s *Store) Save(ctx context.Context, f *Feed) error {
	posts := f.All()
	if len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(upsertPost, rowArgs(p)...)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting posts: %w", err)
		}
		return nil
	})
}

// postRow mirrors a posts row; media columns are NULL for text posts.
type postRow struct {
	ID             string
	Author         string
	Caption        string
	CreatedAt      time.Time
	TrackID        *string
	AudioURL       *string
	PreviewURL     *string
	Title          *string
	Artist         *string
	CoverURL       *string
	Waveform       []float64
	WaveformURL    *string
	DurationMillis *int64
}

func (r postRow) post() *Post {
	p := &Post{ID: r.ID, Author: r.Author, Caption: r.Caption, CreatedAt: r.CreatedAt}
	if r.AudioURL == nil || *r.AudioURL == "" {
		return p
	}
	p.Media = &Media{
		TrackID:     deref(r.TrackID),
		AudioURL:    *r.AudioURL,
		PreviewURL:  deref(r.PreviewURL),
		Title:       deref(r.Title),
		Artist:      deref(r.Artist),
		CoverURL:    deref(r.CoverURL),
		Waveform:    r.Waveform,
		WaveformURL: deref(r.WaveformURL),
	}
	if r.DurationMillis != nil {
		p.Media.DurationMillis = *r.DurationMillis
	}
	return p
}

// rowArgs returns the upsert arguments for p in column order.
func rowArgs(p *Post) []any {
	args := []any{p.ID, p.Author, p.Caption, p.CreatedAt}
	m := p.Media
	if !p.HasAudio() {
		return append(args, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	}
	var duration *int64
	if m.DurationMillis > 0 {
		duration = &m.DurationMillis
	}
	return append(args,
		nullable(m.TrackID), m.AudioURL, nullable(m.PreviewURL),
		nullable(m.Title), nullable(m.Artist), nullable(m.CoverURL),
		m.Waveform, nullable(m.WaveformURL), duration)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
