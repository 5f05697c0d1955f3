// Package poller fetches the shared queue state on a fixed interval and
// hands every good result to its consumers.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
)

const (
	// Interval between scheduled fetches.
	Interval = 5 * time.Second

	fetchTimeout = 10 * time.Second
)

// Source provides the current shared state.
type Source interface {
	State(ctx context.Context) (queue.PlaybackState, error)
}

// Consumer receives each successfully fetched state.
type Consumer func(queue.PlaybackState)

// Poller fetches state every Interval and on demand.
type Poller struct {
	source   Source
	interval time.Duration
	refresh  chan struct{}

	mu        sync.RWMutex
	consumers []Consumer
	last      *queue.PlaybackState
}

// New creates a poller reading from source.
func New(source Source) *Poller {
	return &Poller{
		source:   source,
		interval: Interval,
		refresh:  make(chan struct{}, 1),
	}
}

// Subscribe adds a consumer. Consumers run in subscription order on the
// poller goroutine.
func (p *Poller) Subscribe(c Consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumers = append(p.consumers, c)
}

// Refresh requests an immediate fetch. Requests made while one is pending
// are merged.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Last returns the last successfully fetched state.
func (p *Poller) Last() (queue.PlaybackState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return queue.PlaybackState{}, false
	}
	return *p.last, true
}

// Run polls until ctx is cancelled. The first fetch happens immediately.
func (p *Poller) Run(ctx context.Context) {
	log.Info().Dur("interval", p.interval).Msg("State poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetch(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("State poller stopped")
			return
		case <-ticker.C:
			p.fetch(ctx)
		case <-p.refresh:
			p.fetch(ctx)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	state, err := p.source.State(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("Error fetching state")
		}
		return
	}

	p.mu.Lock()
	p.last = &state
	consumers := append([]Consumer(nil), p.consumers...)
	p.mu.Unlock()

	for _, c := range consumers {
		c(state)
	}
}
