package library

import (
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/events"
	"github.com/galaxyplayer/galaxyd/internal/metrics"
)

const (
	coverCacheTTL     = 10 * time.Minute
	coverCacheCleanup = 20 * time.Minute
)

// Covers looks up embedded cover art, caching by path and modification time
type Covers struct {
	tags    TagReader
	cache   *cache.Cache
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewCovers creates a cover art lookup backed by tags
func NewCovers(tags TagReader, log zerolog.Logger, m *metrics.Metrics) *Covers {
	if tags == nil {
		tags = NewReader()
	}
	return &Covers{
		tags:    tags,
		cache:   cache.New(coverCacheTTL, coverCacheCleanup),
		log:     log,
		metrics: m,
	}
}

func coverKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
}

// Get returns the embedded artwork of the file at path. ok is false when
// the file has no artwork or cannot be read.
func (c *Covers) Get(path string) (data []byte, ok bool) {
	info, err := os.Stat(path)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("cover lookup on missing file")
		return nil, false
	}

	key := coverKey(path, info)
	if cached, found := c.cache.Get(key); found {
		c.metrics.CoverLookup(true)
		data, _ := cached.([]byte)
		return data, len(data) > 0
	}
	c.metrics.CoverLookup(false)

	tags, err := c.tags.Read(path)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("cover lookup failed")
		return nil, false
	}

	// absence is cached too so repeated lookups stay cheap
	c.cache.Set(key, tags.Cover, cache.DefaultExpiration)
	return tags.Cover, len(tags.Cover) > 0
}

// Emit publishes exactly one cover event carrying the artwork bytes, or
// nothing when the file has no artwork. It reports whether an event was sent.
func (c *Covers) Emit(path string, emitter events.Emitter) bool {
	data, ok := c.Get(path)
	if !ok {
		return false
	}
	emitter.Emit(events.CoverArt, data)
	return true
}

// Flush drops every cached entry
func (c *Covers) Flush() {
	c.cache.Flush()
}
