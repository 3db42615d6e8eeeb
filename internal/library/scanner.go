// Package library scans directories for playable audio files and reads
// their metadata and cover art.
package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/metrics"
	"github.com/galaxyplayer/galaxyd/internal/types"
)

// numWorkers bounds concurrent tag/duration extraction
const numWorkers = 4

// ScanSummary describes the most recent directory scan
type ScanSummary struct {
	Directory  string    `json:"directory"`
	TotalFiles int       `json:"totalFiles"`
	Skipped    int       `json:"skipped"`
	ScanTimeMs int64     `json:"scanTimeMs"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Scanner reads directories into FileInfo lists
type Scanner struct {
	tags      TagReader
	durations DurationReader
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu   sync.Mutex
	last *ScanSummary
}

// Option configures a Scanner
type Option func(*Scanner)

// WithTagReader replaces the tag reader
func WithTagReader(r TagReader) Option {
	return func(s *Scanner) { s.tags = r }
}

// WithDurationReader replaces the duration reader
func WithDurationReader(r DurationReader) Option {
	return func(s *Scanner) { s.durations = r }
}

// WithMetrics records scan outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// NewScanner creates a new scanner
func NewScanner(log zerolog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		tags:      NewReader(),
		durations: NewFormatDuration(),
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastScan returns the summary of the most recent scan, or nil
func (s *Scanner) LastScan() *ScanSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	summary := *s.last
	return &summary
}

// ReadDirectory lists the audio files directly inside dir. Entries that
// cannot be read or whose tags cannot be parsed are left out. A directory
// that cannot be opened yields an empty list together with the error.
func (s *Scanner) ReadDirectory(ctx context.Context, dir string) ([]types.FileInfo, error) {
	start := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn().Err(err).Str("dir", dir).Msg("cannot read directory")
		return []types.FileInfo{}, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	type indexedFile struct {
		index int
		file  types.FileInfo
		ok    bool
	}

	jobs := make(chan int, len(paths))
	results := make(chan indexedFile, len(paths))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				fi, ok := s.inspect(paths[i])
				results <- indexedFile{index: i, file: fi, ok: ok}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Keep directory order
	slots := make([]*types.FileInfo, len(paths))
	for r := range results {
		if r.ok {
			file := r.file
			slots[r.index] = &file
		}
	}

	files := make([]types.FileInfo, 0, len(paths))
	for _, f := range slots {
		if f != nil {
			files = append(files, *f)
		}
	}

	if err := ctx.Err(); err != nil {
		return files, err
	}

	summary := &ScanSummary{
		Directory:  dir,
		TotalFiles: len(files),
		Skipped:    len(entries) - len(files),
		ScanTimeMs: time.Since(start).Milliseconds(),
		FinishedAt: time.Now(),
	}
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	s.log.Info().
		Str("dir", dir).
		Int("files", summary.TotalFiles).
		Int("skipped", summary.Skipped).
		Int64("ms", summary.ScanTimeMs).
		Msg("directory scanned")

	return files, nil
}

// inspect builds the FileInfo for one path. ok is false when the file has
// no parseable tags.
func (s *Scanner) inspect(path string) (types.FileInfo, bool) {
	tags, err := s.tags.Read(path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("skipping file")
		s.metrics.FileScanned("skipped")
		return types.FileInfo{}, false
	}

	var seconds float64
	if d, err := s.durations.Duration(path); err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("duration unavailable")
	} else if d > 0 {
		seconds = d.Seconds()
	}

	artist := strings.TrimSpace(tags.Artist)
	if artist == "" {
		artist = types.UnknownArtist
	}

	s.metrics.FileScanned("listed")
	return types.FileInfo{
		Duration: seconds,
		Path:     path,
		Name:     displayName(path),
		Artist:   artist,
	}, true
}

// displayName is the file name without its extension, or the whole file
// name when stripping would leave nothing (".mp3").
func displayName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}
