package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachdehooge/flood-dashboard/internal/advisor"
	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
)

type statusFunc func(ctx context.Context) ([]fetcher.Location, error)

func (f statusFunc) FetchStatus(ctx context.Context) ([]fetcher.Location, error) { return f(ctx) }

type resolveFunc func(ctx context.Context, loc fetcher.Location) advisor.Result

func (f resolveFunc) Resolve(ctx context.Context, loc fetcher.Location) advisor.Result {
	return f(ctx, loc)
}

func fixedStatus(locations ...fetcher.Location) StatusSource {
	return statusFunc(func(context.Context) ([]fetcher.Location, error) { return locations, nil })
}

func echoResolver() Resolver {
	return resolveFunc(func(_ context.Context, loc fetcher.Location) advisor.Result {
		return advisor.Result{
			LocationID:  loc.ID,
			RiskScore:   loc.RiskScore,
			Suggestions: []fetcher.Suggestion{{Priority: "high", Action: "act on " + loc.ID}},
		}
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) seen(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

var (
	locA = fetcher.Location{ID: "a", Name: "A", Lat: 13.0, Lon: 80.2, RiskScore: 0.3, History: []float64{}}
	locB = fetcher.Location{ID: "b", Name: "B", Lat: 13.1, Lon: 80.3, RiskScore: 0.9, History: []float64{}}
)

func waitLoaded(t *testing.T, d *Dashboard) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = d.Snapshot()
		return !snap.Loading && len(snap.Suggestions) > 0
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestRefreshSelectsHighestRisk(t *testing.T) {
	pub := &recordingPublisher{}
	d := New(fixedStatus(locA, locB), echoResolver(), Options{Publisher: pub})

	d.Refresh(context.Background())
	snap := waitLoaded(t, d)

	assert.Equal(t, "b", snap.ActiveID)
	require.NotNil(t, snap.Active)
	assert.Equal(t, "b", snap.Active.ID)
	require.NotNil(t, snap.Forecast)
	assert.Len(t, snap.Locations, 2)
	assert.Equal(t, "act on b", snap.Suggestions[0].Action)
	assert.Equal(t, "priority-high", snap.Suggestions[0].Class)
	assert.Empty(t, snap.Banner)
	assert.Equal(t, uint64(1), snap.Sequence)

	assert.True(t, pub.seen(TopicStatus))
	assert.Eventually(t, func() bool { return pub.seen(TopicSuggestions) }, time.Second, 5*time.Millisecond)
}

func TestStaleStatusDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	status := statusFunc(func(context.Context) ([]fetcher.Location, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
			return []fetcher.Location{locA}, nil
		}
		return []fetcher.Location{locB}, nil
	})
	d := New(status, echoResolver(), Options{})

	done := make(chan struct{})
	go func() {
		d.Refresh(context.Background())
		close(done)
	}()
	<-entered

	d.Refresh(context.Background())
	close(release)
	<-done

	snap := d.Snapshot()
	require.Len(t, snap.Locations, 1)
	assert.Equal(t, "b", snap.Locations[0].ID)
	assert.Equal(t, uint64(2), snap.Sequence)
}

func TestIndexMatchesAppliedFetch(t *testing.T) {
	var calls atomic.Int64
	status := statusFunc(func(context.Context) ([]fetcher.Location, error) {
		n := int(calls.Add(1))
		locations := make([]fetcher.Location, n)
		for i := range locations {
			locations[i] = fetcher.Location{ID: fmt.Sprintf("n%d-%d", n, i), Lat: 13 + float64(i)/100, Lon: 80.2}
		}
		return locations, nil
	})
	d := New(status, echoResolver(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Refresh(context.Background())
		}()
	}
	wg.Wait()

	snap := d.Snapshot()
	var want, got []string
	for _, loc := range snap.Locations {
		want = append(want, loc.ID)
	}
	for _, loc := range d.Nearest(13, 80.2, 100) {
		got = append(got, loc.ID)
	}
	assert.ElementsMatch(t, want, got)
}

func TestFailureFallsBackToDemo(t *testing.T) {
	fail := statusFunc(func(context.Context) ([]fetcher.Location, error) {
		return nil, errors.New("connection refused")
	})
	d := New(fail, echoResolver(), Options{DemoFallback: true})

	d.Refresh(context.Background())
	snap := d.Snapshot()

	assert.Equal(t, UnreachableBanner, snap.Banner)
	assert.True(t, snap.Demo)
	assert.Len(t, snap.Locations, len(fetcher.DemoLocations()))
	assert.Equal(t, "chennai_adyar", snap.ActiveID)
}

func TestBannerClearedAfterRecovery(t *testing.T) {
	var mu sync.Mutex
	healthy := false
	status := statusFunc(func(context.Context) ([]fetcher.Location, error) {
		mu.Lock()
		defer mu.Unlock()
		if !healthy {
			return nil, errors.New("down")
		}
		return []fetcher.Location{locA}, nil
	})
	d := New(status, echoResolver(), Options{DemoFallback: true})

	d.Refresh(context.Background())
	assert.NotEmpty(t, d.Snapshot().Banner)

	mu.Lock()
	healthy = true
	mu.Unlock()
	d.Refresh(context.Background())

	snap := d.Snapshot()
	assert.Empty(t, snap.Banner)
	assert.False(t, snap.Demo)
	assert.Equal(t, "a", snap.ActiveID)
}

func TestFailureKeepsPreviousListWithoutDemo(t *testing.T) {
	var mu sync.Mutex
	down := false
	status := statusFunc(func(context.Context) ([]fetcher.Location, error) {
		mu.Lock()
		defer mu.Unlock()
		if down {
			return nil, errors.New("down")
		}
		return []fetcher.Location{locA, locB}, nil
	})
	d := New(status, echoResolver(), Options{DemoFallback: false})

	d.Refresh(context.Background())
	mu.Lock()
	down = true
	mu.Unlock()
	d.Refresh(context.Background())

	snap := d.Snapshot()
	assert.Equal(t, UnreachableBanner, snap.Banner)
	assert.False(t, snap.Demo)
	assert.Len(t, snap.Locations, 2)
}

func TestSelect(t *testing.T) {
	d := New(fixedStatus(locA, locB), echoResolver(), Options{})
	d.Refresh(context.Background())
	waitLoaded(t, d)

	require.NoError(t, d.Select("a"))
	snap := waitLoaded(t, d)
	assert.Equal(t, "a", snap.ActiveID)
	assert.Equal(t, "act on a", snap.Suggestions[0].Action)

	// the user's choice survives a refresh while it is still present
	d.Refresh(context.Background())
	assert.Equal(t, "a", d.Snapshot().ActiveID)

	err := d.Select("missing")
	assert.ErrorIs(t, err, ErrUnknownLocation)
	assert.Equal(t, "a", d.Snapshot().ActiveID)
}

func TestStaleSuggestionsDiscarded(t *testing.T) {
	releaseB := make(chan struct{})
	resolver := resolveFunc(func(ctx context.Context, loc fetcher.Location) advisor.Result {
		if loc.ID == "b" {
			// ignore cancellation to simulate a response that arrives late anyway
			<-releaseB
		}
		return advisor.Result{
			LocationID:  loc.ID,
			Suggestions: []fetcher.Suggestion{{Priority: "low", Action: "act on " + loc.ID}},
		}
	})
	d := New(fixedStatus(locA, locB), resolver, Options{})

	d.Refresh(context.Background())
	assert.True(t, d.Snapshot().Loading)

	require.NoError(t, d.Select("a"))
	snap := waitLoaded(t, d)
	assert.Equal(t, "act on a", snap.Suggestions[0].Action)

	close(releaseB)
	time.Sleep(20 * time.Millisecond)

	snap = d.Snapshot()
	assert.Equal(t, "a", snap.ActiveID)
	require.Len(t, snap.Suggestions, 1)
	assert.Equal(t, "act on a", snap.Suggestions[0].Action)
}

func TestReroute(t *testing.T) {
	payload := json.RawMessage(`{"start":[13.0,80.2],"end":[13.1,80.3],"avoid":[{"name":"Anna Salai","coordinates":[[13.02,80.22],[13.03,80.23]]}]}`)
	resolver := resolveFunc(func(_ context.Context, loc fetcher.Location) advisor.Result {
		return advisor.Result{
			LocationID: loc.ID,
			Suggestions: []fetcher.Suggestion{
				{Priority: "high", Action: "Close Anna Salai", Type: fetcher.TypeTrafficReroute, Payload: payload},
				{Priority: "low", Action: "Monitor"},
			},
		}
	})
	d := New(fixedStatus(locB), resolver, Options{})
	d.Refresh(context.Background())
	snap := waitLoaded(t, d)
	assert.True(t, snap.Suggestions[0].Rerouteable)
	assert.False(t, snap.Suggestions[1].Rerouteable)

	req, err := d.ShowReroute(0)
	require.NoError(t, err)
	assert.Len(t, req.Avoid, 1)
	require.NotNil(t, d.Snapshot().Reroute)

	_, err = d.ShowReroute(1)
	assert.ErrorIs(t, err, ErrNotReroutable)
	_, err = d.ShowReroute(7)
	assert.ErrorIs(t, err, ErrNotReroutable)

	d.ClearReroute()
	assert.Nil(t, d.Snapshot().Reroute)
}

func TestSubscribeNotifies(t *testing.T) {
	d := New(fixedStatus(locA), echoResolver(), Options{})
	ch, cancel := d.Subscribe()
	defer cancel()

	d.Refresh(context.Background())
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after refresh")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := New(fixedStatus(locA, locB), echoResolver(), Options{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return d.Snapshot().Sequence >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Len(t, d.Nearest(13.1, 80.3, 1), 1)
}

func TestSelectAfterRunStopped(t *testing.T) {
	var resolves atomic.Int64
	resolver := resolveFunc(func(ctx context.Context, loc fetcher.Location) advisor.Result {
		resolves.Add(1)
		return advisor.Result{LocationID: loc.ID, Suggestions: []fetcher.Suggestion{{Priority: "low", Action: "act"}}}
	})
	d := New(fixedStatus(locA, locB), resolver, Options{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return d.Snapshot().Sequence == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	before := resolves.Load()
	require.NoError(t, d.Select("a"))
	snap := d.Snapshot()
	assert.Equal(t, "a", snap.ActiveID)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Suggestions)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, resolves.Load())
}
