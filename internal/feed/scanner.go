package feed

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/jscyril/feedaudio/internal/engine"
	playerrors "github.com/jscyril/feedaudio/pkg/errors"
)

// Scanner turns local audio files into posts using a worker pool.
type Scanner struct {
	workers    int
	metaReader *MetadataReader
}

// NewScanner creates a new file scanner
func NewScanner(workers int) *Scanner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scanner{
		workers:    workers,
		metaReader: NewMetadataReader(),
	}
}

// Scan walks paths concurrently and returns channels for posts and errors.
// Both channels are closed when the scan ends.
func (s *Scanner) Scan(ctx context.Context, paths []string) (<-chan *Post, <-chan error) {
	posts := make(chan *Post, 100)
	errs := make(chan error, 10)
	files := make(chan string, 100)

	report := func(path string, err error) {
		select {
		case errs <- &playerrors.ScanError{Path: path, Err: err}:
		default:
		}
	}

	var discovery sync.WaitGroup
	discovery.Add(1)
	go func() {
		defer discovery.Done()
		defer close(files)
		for _, path := range paths {
			err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					report(p, err)
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if !d.IsDir() && engine.IsSupported(p) {
					select {
					case files <- p:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			})
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					report(path, err)
				}
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range files {
				if ctx.Err() != nil {
					continue
				}
				post, err := s.metaReader.Read(filePath)
				if err != nil {
					report(filePath, err)
					continue
				}
				select {
				case posts <- post:
				case <-ctx.Done():
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		discovery.Wait()
		close(posts)
		close(errs)
	}()

	return posts, errs
}

// Import scans paths and adds every readable file to f. It returns the
// number of posts added and the per-file errors.
func (s *Scanner) Import(ctx context.Context, f *Feed, paths []string) (int, []error) {
	posts, errCh := s.Scan(ctx, paths)

	var scanErrors []error
	added := 0
	for posts != nil || errCh != nil {
		select {
		case p, ok := <-posts:
			if !ok {
				posts = nil
				continue
			}
			f.AddPost(p)
			added++
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			scanErrors = append(scanErrors, err)
		}
	}
	return added, scanErrors
}
