package projection

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/pkg/cache"
	"github.com/mselser95/betledger/pkg/types"
	"go.uber.org/zap"
)

// MarketLoader reads a market from the ledger.
type MarketLoader interface {
	GetMarket(ctx context.Context, marketID int64) (types.Market, error)
}

// Snapshot is a cached copy of a market as a front end last displayed it.
type Snapshot struct {
	Market   types.Market `json:"market"`
	LoadedAt time.Time    `json:"loaded_at"`
}

// Projection maps presentation message IDs (a chat message, a card) to the
// market they show, with a read-through snapshot cache. It is a view only:
// the engines never read from it and callers revalidate before mutating.
type Projection struct {
	mu       sync.RWMutex
	messages map[string]int64

	// generations counts invalidations per market; a reload only caches its
	// snapshot if no invalidation happened while it was reading.
	generations map[int64]uint64

	cache  cache.Cache
	loader MarketLoader
	ttl    time.Duration
	logger *zap.Logger
}

// Config holds projection configuration.
type Config struct {
	Cache  cache.Cache
	Loader MarketLoader
	TTL    time.Duration
	Logger *zap.Logger
}

// New creates a new projection.
func New(cfg *Config) *Projection {
	return &Projection{
		messages:    make(map[string]int64),
		generations: make(map[int64]uint64),
		cache:       cfg.Cache,
		loader:      cfg.Loader,
		ttl:         cfg.TTL,
		logger:      cfg.Logger,
	}
}

// Bind associates a presentation message with a market.
func (p *Projection) Bind(messageID string, marketID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.messages[messageID]; !exists {
		Bindings.Inc()
	}
	p.messages[messageID] = marketID
}

// Unbind forgets a presentation message.
func (p *Projection) Unbind(messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.messages[messageID]; exists {
		delete(p.messages, messageID)
		Bindings.Dec()
	}
}

// MarketFor returns the market bound to messageID.
func (p *Projection) MarketFor(messageID string) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.messages[messageID]
	return id, ok
}

// Lookup returns the market shown by messageID, from cache when possible.
// A cached snapshot is dropped when an event for its market is applied, but
// events can be dropped for slow subscribers, so a snapshot may still be stale
// for up to the TTL. Use Revalidate before acting on it.
func (p *Projection) Lookup(ctx context.Context, messageID string) (Snapshot, error) {
	marketID, ok := p.MarketFor(messageID)
	if !ok {
		return Snapshot{}, types.NotFoundf("lookup-message", "message %q shows no market", messageID)
	}

	if cached, found := p.cache.Get(cacheKey(marketID)); found {
		if snap, isSnap := cached.(*Snapshot); isSnap {
			return *snap, nil
		}
	}

	return p.reload(ctx, messageID, marketID)
}

// Revalidate reloads the market behind messageID from the ledger and
// refreshes the cached snapshot. A market that no longer exists is unbound.
func (p *Projection) Revalidate(ctx context.Context, messageID string) (Snapshot, error) {
	marketID, ok := p.MarketFor(messageID)
	if !ok {
		return Snapshot{}, types.NotFoundf("revalidate-message", "message %q shows no market", messageID)
	}

	return p.reload(ctx, messageID, marketID)
}

// Invalidate drops the cached snapshot of a market. A reload already in
// flight for that market will not cache what it read.
func (p *Projection) Invalidate(marketID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generations[marketID]++
	p.cache.Delete(cacheKey(marketID))
}

// Watch invalidates snapshots as ledger events arrive until ctx is cancelled
// or the subscription closes.
func (p *Projection) Watch(ctx context.Context, feed <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-feed:
			if !ok {
				return nil
			}
			p.apply(ev)
		}
	}
}

func (p *Projection) apply(ev events.Event) {
	if ev.MarketID != 0 {
		p.Invalidate(ev.MarketID)
	}

	if ev.Type != events.MarketsRemoved {
		return
	}

	ids, ok := ev.Payload.([]int64)
	if !ok {
		return
	}

	removed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
		p.Invalidate(id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for messageID, marketID := range p.messages {
		if removed[marketID] {
			delete(p.messages, messageID)
			Bindings.Dec()
		}
	}
}

func (p *Projection) reload(ctx context.Context, messageID string, marketID int64) (Snapshot, error) {
	p.mu.RLock()
	generation := p.generations[marketID]
	p.mu.RUnlock()

	market, err := p.loader.GetMarket(ctx, marketID)
	if errors.Is(err, types.ErrNotFound) {
		p.Unbind(messageID)
		p.Invalidate(marketID)
		return Snapshot{}, err
	}
	if err != nil {
		return Snapshot{}, err
	}

	ReloadsTotal.Inc()
	snap := &Snapshot{Market: market, LoadedAt: time.Now()}
	p.storeIfCurrent(marketID, generation, snap)

	p.logger.Debug("projection-reloaded",
		zap.String("message-id", messageID),
		zap.Int64("market-id", marketID))

	return *snap, nil
}

// storeIfCurrent caches snap unless the market was invalidated after the
// snapshot's read started.
func (p *Projection) storeIfCurrent(marketID int64, generation uint64, snap *Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generations[marketID] != generation {
		StaleReloadsSkippedTotal.Inc()
		return
	}
	p.cache.Set(cacheKey(marketID), snap, p.ttl)
}

func cacheKey(marketID int64) string {
	return "market:" + strconv.FormatInt(marketID, 10)
}
