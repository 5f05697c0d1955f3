// Package artwork fetches remote track thumbnails and serves downsized JPEG
// copies from memory, backed by an optional persistent store.
package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	_ "image/png" // PNG decoder
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
)

const (
	// DefaultSize is the longest edge of served thumbnails.
	DefaultSize = 300

	// DefaultMaxEntries bounds the in-memory cache.
	DefaultMaxEntries = 64

	maxSourceBytes = 10 << 20
)

// ErrNotFound is returned when the source image does not exist.
var ErrNotFound = errors.New("artwork not found")

// Store persists generated thumbnails across restarts.
type Store interface {
	LoadThumbnail(ctx context.Context, key, sourceURL string) ([]byte, bool, error)
	SaveThumbnail(ctx context.Context, key, sourceURL string, data []byte) error
}

// Proxy downloads, resizes and caches thumbnails keyed by video id.
type Proxy struct {
	httpClient *http.Client
	userAgent  string
	size       int
	maxEntries int
	store      Store

	mu    sync.Mutex
	cache map[string][]byte
	order []string
}

// Option is a functional option for configuring the proxy.
type Option func(*Proxy)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Proxy) {
		p.httpClient = client
	}
}

// WithSize sets the longest edge of generated thumbnails.
func WithSize(size int) Option {
	return func(p *Proxy) {
		p.size = size
	}
}

// WithMaxEntries sets how many thumbnails are kept in memory.
func WithMaxEntries(n int) Option {
	return func(p *Proxy) {
		p.maxEntries = n
	}
}

// WithStore persists thumbnails in s.
func WithStore(s Store) Option {
	return func(p *Proxy) {
		p.store = s
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Proxy) {
		p.userAgent = ua
	}
}

// NewProxy creates a thumbnail proxy.
func NewProxy(opts ...Option) *Proxy {
	p := &Proxy{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		size:       DefaultSize,
		maxEntries: DefaultMaxEntries,
		cache:      make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Thumbnail returns a JPEG of sourceURL no larger than the configured size.
// Results are cached under key.
func (p *Proxy) Thumbnail(ctx context.Context, key, sourceURL string) ([]byte, error) {
	if data, ok := p.cached(key); ok {
		return data, nil
	}
	if data, ok := p.loadStored(ctx, key, sourceURL); ok {
		p.remember(key, data)
		return data, nil
	}

	img, format, err := p.fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("key", key).
		Str("format", format).
		Int("size", p.size).
		Msg("Generating thumbnail")

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resize(img, p.size), &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	data := buf.Bytes()
	p.remember(key, data)
	if p.store != nil {
		if err := p.store.SaveThumbnail(ctx, key, sourceURL, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to persist thumbnail")
		}
	}
	return data, nil
}

func (p *Proxy) loadStored(ctx context.Context, key, sourceURL string) ([]byte, bool) {
	if p.store == nil {
		return nil, false
	}
	data, ok, err := p.store.LoadThumbnail(ctx, key, sourceURL)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read stored thumbnail")
		return nil, false
	}
	return data, ok
}

func (p *Proxy) fetch(ctx context.Context, sourceURL string) (image.Image, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

func (p *Proxy) cached(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.cache[key]
	return data, ok
}

// remember adds data, evicting the oldest entry when full.
func (p *Proxy) remember(key string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.cache[key]; ok {
		return
	}
	for len(p.order) >= p.maxEntries && len(p.order) > 0 {
		delete(p.cache, p.order[0])
		p.order = p.order[1:]
	}
	p.cache[key] = data
	p.order = append(p.order, key)
}

// Len returns the number of cached thumbnails.
func (p *Proxy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// resize scales src to fit within maxSize keeping its aspect ratio. Smaller
// images are returned unchanged.
func resize(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	if srcW <= maxSize && srcH <= maxSize {
		return src
	}

	var newW, newH int
	if srcW > srcH {
		newW = maxSize
		newH = int(float64(srcH) * float64(maxSize) / float64(srcW))
	} else {
		newH = maxSize
		newW = int(float64(srcW) * float64(maxSize) / float64(srcH))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
