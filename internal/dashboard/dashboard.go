// Package dashboard owns the live dashboard state: the polled location list,
// the active selection, and the suggestions shown for it.
//
// A single poller refreshes the list on a fixed interval. Every status fetch
// and every suggestion request is tagged when issued, and responses that are
// older than the state they would overwrite are dropped.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Zachdehooge/flood-dashboard/internal/advisor"
	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
	"github.com/Zachdehooge/flood-dashboard/internal/geoindex"
	"github.com/Zachdehooge/flood-dashboard/internal/reroute"
	"github.com/Zachdehooge/flood-dashboard/internal/selection"
)

// Banner shown while the prediction service cannot be reached.
const UnreachableBanner = "Prediction server unreachable"

// Publish topics.
const (
	TopicStatus      = "flood.status"
	TopicSuggestions = "flood.suggestions"
)

var (
	ErrUnknownLocation = errors.New("unknown location")
	ErrNotReroutable   = errors.New("suggestion has no reroute plan")
)

// StatusSource fetches the current location list.
type StatusSource interface {
	FetchStatus(ctx context.Context) ([]fetcher.Location, error)
}

// Resolver produces the suggestions for a location.
type Resolver interface {
	Resolve(ctx context.Context, loc fetcher.Location) advisor.Result
}

// Publisher receives a snapshot after every applied change.
type Publisher interface {
	Publish(ctx context.Context, topic string, snap Snapshot) error
}

// Options configures a Dashboard.
type Options struct {
	Interval     time.Duration
	DemoFallback bool
	Publisher    Publisher
}

// Dashboard is safe for concurrent use.
type Dashboard struct {
	status   StatusSource
	resolver Resolver
	opts     Options
	index    *geoindex.Index

	// lifetime context for work started outside Run's goroutine (user selections)
	baseMu  sync.RWMutex
	baseCtx context.Context
	wg      sync.WaitGroup
	fetchID atomic.Uint64

	mu            sync.RWMutex
	locations     []fetcher.Location
	activeID      string
	suggestions   []fetcher.Suggestion
	suggestFor    string
	suggestRisk   float64
	suggestID     uint64
	cancelSuggest context.CancelFunc
	loading       bool
	fallback      bool
	banner        string
	demo          bool
	reroute       *reroute.Request
	appliedSeq    uint64
	updatedAt     time.Time
	stopped       bool

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// New creates a Dashboard. It does nothing until Run or Refresh is called.
func New(status StatusSource, resolver Resolver, opts Options) *Dashboard {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	return &Dashboard{
		status:   status,
		resolver: resolver,
		opts:     opts,
		index:    geoindex.New(),
		baseCtx:  context.Background(),
		subs:     make(map[chan struct{}]struct{}),
	}
}

// Run refreshes immediately and then on every interval tick until ctx is cancelled.
// Each tick's fetch runs on its own goroutine; Run waits for them before returning.
func (d *Dashboard) Run(ctx context.Context) {
	d.baseMu.Lock()
	d.baseCtx = ctx
	d.baseMu.Unlock()

	log.Printf("[poller] started, refreshing every %s", d.opts.Interval)
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	d.goRefresh(ctx)
	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.stopped = true
			if d.cancelSuggest != nil {
				d.cancelSuggest()
				d.cancelSuggest = nil
			}
			d.loading = false
			d.mu.Unlock()
			d.wg.Wait()
			log.Printf("[poller] stopped")
			return
		case <-ticker.C:
			d.goRefresh(ctx)
		}
	}
}

func (d *Dashboard) goRefresh(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Refresh(ctx)
	}()
}

func (d *Dashboard) lifetime() context.Context {
	d.baseMu.RLock()
	defer d.baseMu.RUnlock()
	return d.baseCtx
}

// Refresh performs one fetch cycle. It is safe to call concurrently;
// a response that resolves after a newer one has been applied is dropped.
func (d *Dashboard) Refresh(ctx context.Context) {
	seq := d.fetchID.Add(1)

	locations, err := d.status.FetchStatus(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[poller] fetch #%d failed: %v", seq, err)
		if d.opts.DemoFallback {
			d.apply(ctx, seq, fetcher.DemoLocations(), UnreachableBanner, true)
		} else {
			d.markUnreachable(seq)
		}
		return
	}
	d.apply(ctx, seq, locations, "", false)
}

func (d *Dashboard) markUnreachable(seq uint64) {
	d.mu.Lock()
	if seq <= d.appliedSeq {
		d.mu.Unlock()
		return
	}
	d.appliedSeq = seq
	d.banner = UnreachableBanner
	d.updatedAt = time.Now()
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) apply(ctx context.Context, seq uint64, locations []fetcher.Location, banner string, demo bool) {
	d.mu.Lock()
	if seq <= d.appliedSeq {
		d.mu.Unlock()
		log.Printf("[poller] dropping stale fetch #%d (applied #%d)", seq, d.appliedSeq)
		return
	}
	d.appliedSeq = seq
	d.locations = locations
	d.banner = banner
	d.demo = demo
	d.updatedAt = time.Now()
	d.activeID = selection.Pick(locations, d.activeID)

	active, ok := selection.Find(locations, d.activeID)
	stale := ok && (d.suggestFor != active.ID || d.suggestRisk != active.RiskScore)
	if !ok {
		d.clearSuggestionsLocked()
	} else if stale {
		d.startSuggestLocked(active)
	}
	// the index follows appliedSeq, so it is swapped under the same lock
	d.index.Reset(locations)
	snap := d.snapshotLocked()
	d.mu.Unlock()

	log.Printf("[poller] applied fetch #%d: %d locations, active %q", seq, len(locations), snap.ActiveID)
	d.notify()
	d.publish(ctx, TopicStatus, snap)
}

// Select makes id the active location, overriding the selection policy until
// the next refresh re-evaluates it.
func (d *Dashboard) Select(id string) error {
	d.mu.Lock()
	loc, ok := selection.Find(d.locations, id)
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	changed := d.activeID != id
	d.activeID = id
	if changed || d.suggestFor != id {
		d.startSuggestLocked(loc)
	}
	d.mu.Unlock()

	if changed {
		d.notify()
	}
	return nil
}

func (d *Dashboard) clearSuggestionsLocked() {
	if d.cancelSuggest != nil {
		d.cancelSuggest()
		d.cancelSuggest = nil
	}
	d.suggestID++
	d.suggestions = nil
	d.suggestFor = ""
	d.suggestRisk = 0
	d.loading = false
	d.fallback = false
	d.reroute = nil
}

// startSuggestLocked cancels any in-flight request and starts a new one for loc.
// Once Run has stopped no request is started. Callers hold d.mu.
func (d *Dashboard) startSuggestLocked(loc fetcher.Location) {
	if d.cancelSuggest != nil {
		d.cancelSuggest()
		d.cancelSuggest = nil
	}
	if d.stopped {
		d.suggestID++
		d.suggestFor = ""
		d.suggestions = nil
		d.loading = false
		return
	}
	if d.suggestFor != loc.ID {
		d.reroute = nil
	}
	d.suggestID++
	id := d.suggestID
	d.suggestFor = loc.ID
	d.suggestRisk = loc.RiskScore
	d.suggestions = nil
	d.loading = true
	d.fallback = false

	ctx, cancel := context.WithCancel(d.lifetime())
	d.cancelSuggest = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		res := d.resolver.Resolve(ctx, loc)
		d.finishSuggest(ctx, id, res)
	}()
}

func (d *Dashboard) finishSuggest(ctx context.Context, id uint64, res advisor.Result) {
	d.mu.Lock()
	if id != d.suggestID || res.LocationID != d.activeID {
		d.mu.Unlock()
		log.Printf("[suggest] dropping stale suggestions for %s", res.LocationID)
		return
	}
	d.suggestions = res.Suggestions
	d.fallback = res.Fallback
	d.loading = false
	d.cancelSuggest = nil
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.notify()
	d.publish(ctx, TopicSuggestions, snap)
}

// ShowReroute forwards the reroute plan of suggestion i to the map overlay.
func (d *Dashboard) ShowReroute(i int) (*reroute.Request, error) {
	d.mu.Lock()
	if i < 0 || i >= len(d.suggestions) {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: no suggestion at index %d", ErrNotReroutable, i)
	}
	s := d.suggestions[i]
	if !s.Rerouteable() {
		d.mu.Unlock()
		return nil, ErrNotReroutable
	}
	req, err := reroute.Parse(s.Payload)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrNotReroutable, err)
	}
	d.reroute = req
	d.mu.Unlock()

	d.notify()
	return req, nil
}

// ClearReroute removes the reroute overlay.
func (d *Dashboard) ClearReroute() {
	d.mu.Lock()
	had := d.reroute != nil
	d.reroute = nil
	d.mu.Unlock()
	if had {
		d.notify()
	}
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

// Nearest returns up to k locations closest to (lat, lon).
func (d *Dashboard) Nearest(lat, lon float64, k int) []fetcher.Location {
	return d.index.Nearest(lat, lon, k)
}

// Subscribe returns a channel that receives a signal after every state change.
// Signals are coalesced; call cancel to unsubscribe.
func (d *Dashboard) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	d.subMu.Lock()
	d.subs[ch] = struct{}{}
	d.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subMu.Lock()
			delete(d.subs, ch)
			d.subMu.Unlock()
		})
	}
}

func (d *Dashboard) notify() {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for ch := range d.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (d *Dashboard) publish(ctx context.Context, topic string, snap Snapshot) {
	if d.opts.Publisher == nil {
		return
	}
	if err := d.opts.Publisher.Publish(ctx, topic, snap); err != nil {
		log.Printf("[poller] publish %s failed: %v", topic, err)
	}
}
