package recognizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/prompt"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Cache is a [Recognizer] that remembers recognized results for repeated
// utterances. Only results with Recognized set are stored, so failures are
// always retried. Lookups are keyed by the case-folded utterance and the
// effective vocabulary.
type Cache struct {
	next    Recognizer
	entries *expirable.LRU[string, command.Result]
	metrics *observe.Metrics

	// templates, when set, purges the cache whenever the template set is
	// replaced by a reload.
	templates *prompt.Store
	seen      atomic.Pointer[prompt.Set]
}

var _ Recognizer = (*Cache)(nil)

// CacheOption configures a [Cache].
type CacheOption func(*Cache)

// WithCacheMetrics records hits and misses into m instead of
// [observe.DefaultMetrics].
func WithCacheMetrics(m *observe.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithTemplateStore purges the cache when s reloads its templates.
func WithTemplateStore(s *prompt.Store) CacheOption {
	return func(c *Cache) { c.templates = s }
}

// Cached wraps next with a cache of size entries that expire after ttl. A
// size below 1 returns next unchanged.
func Cached(next Recognizer, size int, ttl time.Duration, opts ...CacheOption) Recognizer {
	if size < 1 {
		return next
	}
	c := &Cache{
		next:    next,
		entries: expirable.NewLRU[string, command.Result](size, nil, ttl),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.templates != nil {
		c.seen.Store(c.templates.Current())
	}
	return c
}

// Recognize implements [Recognizer].
func (c *Cache) Recognize(ctx context.Context, text string, vocab command.Vocabulary) command.Result {
	if strings.TrimSpace(text) == "" {
		return c.next.Recognize(ctx, text, vocab)
	}
	c.purgeOnReload()

	key := cacheKey(text, vocab)
	if res, ok := c.entries.Get(key); ok {
		c.metrics.RecordCacheLookup(ctx, true)
		return res
	}
	c.metrics.RecordCacheLookup(ctx, false)

	res := c.next.Recognize(ctx, text, vocab)
	if res.Recognized {
		c.entries.Add(key, res)
	}
	return res
}

// Len returns the number of cached results.
func (c *Cache) Len() int { return c.entries.Len() }

func (c *Cache) purgeOnReload() {
	if c.templates == nil {
		return
	}
	cur := c.templates.Current()
	if old := c.seen.Swap(cur); old != cur {
		c.entries.Purge()
	}
}

func cacheKey(text string, vocab command.Vocabulary) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))
	h.Write([]byte{0})
	b, _ := json.Marshal(vocab.WithDefaults())
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
