package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surfwatch/surfwatch-go/internal/catalog"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/errors"
	"github.com/surfwatch/surfwatch-go/internal/forecast"
	"github.com/surfwatch/surfwatch-go/internal/rewind"
)

// stubForecastProvider fails for the spot ids in failFor.
type stubForecastProvider struct {
	failFor map[string]bool
	fetched []string
	mu      sync.Mutex
}

func (s *stubForecastProvider) FetchForecast(_ context.Context, spot *catalog.Spot, _ forecast.Window) ([]datastore.ForecastRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, spot.ID)
	if s.failFor[spot.ID] {
		return nil, forecast.ErrUpstreamUnavailable
	}
	return []datastore.ForecastRecord{
		{Timestamp: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC), SurfMin: 1, SurfMax: 1.5},
	}, nil
}

// stubResolver hands out a fixed link set per cam id.
type stubResolver struct {
	links  map[string][]rewind.ClipLink
	err    error
	closed bool
}

func (s *stubResolver) ResolveClipLinks(_ context.Context, cam *catalog.Cam, _ rewind.Window) ([]rewind.ClipLink, error) {
	if s.err != nil {
		return nil, s.err
	}
	links, ok := s.links[cam.ID]
	if !ok || len(links) == 0 {
		return nil, rewind.ErrNoLinksFound
	}
	return links, nil
}

func (s *stubResolver) Close() error {
	s.closed = true
	return nil
}

// stubAcquirer writes a marker file for every download.
type stubAcquirer struct {
	mu   sync.Mutex
	urls []string
}

func (s *stubAcquirer) Download(_ context.Context, url, destPath string) (int64, error) {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(destPath, []byte("raw"), 0o644); err != nil {
		return 0, err
	}
	return 3, nil
}

// stubTransformer fails for capture times in failAt.
type stubTransformer struct {
	failAt map[time.Time]bool
	mu     sync.Mutex
	calls  int
}

func (s *stubTransformer) Process(_ context.Context, camID, rawPath string, recordedAt time.Time) (datastore.VideoClip, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failAt[recordedAt] {
		return datastore.VideoClip{}, errors.Newf("transcode exploded").Component("clip").Category(errors.CategoryTranscode).Build()
	}
	return datastore.VideoClip{
		CamID:     camID,
		Timestamp: recordedAt.UTC(),
		Path:      filepath.Join("clips", camID, recordedAt.UTC().Format("20060102T150405")+".mp4"),
		Duration:  60,
		Status:    datastore.ClipStatusReady,
	}, nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{
		Forecast: conf.ForecastSettings{Provider: "surfline", Days: 5, IntervalHours: 1, MaxRetries: 1},
		Rewind:   conf.RewindSettings{Provider: "surfline", Days: 2},
		Spots: []conf.SpotConfig{
			{
				ID: "supertubos", Name: "Supertubos", ProviderSpotID: "p1",
				Latitude: 39.3464, Longitude: -9.3618,
				Cams: []conf.CamConfig{
					{ID: "supertubos-main", ProviderCamID: "wc-supertubos", Label: "Main", PageSlug: "supertubos/p1"},
				},
			},
		},
	}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	settings.Video.ScratchPath = t.TempDir()
	settings.Video.Workers = 2
	return settings
}

func newTestPipeline(t *testing.T, settings *conf.Settings, provider forecast.Provider,
	resolver rewind.LinkResolver, transformer Transformer) (*Pipeline, datastore.Interface, *stubAcquirer) {
	t.Helper()

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	cat, err := catalog.New(settings.Spots)
	require.NoError(t, err)

	svc := forecast.NewServiceWithProvider(settings, store, provider)
	acquirer := &stubAcquirer{}

	p := NewWithComponents(settings, cat, svc, resolver, acquirer, transformer, store)
	require.NoError(t, p.SeedCatalog())
	return p, store, acquirer
}

// clipAt builds a CDN style link for a capture time.
func clipAt(ts time.Time) rewind.ClipLink {
	return rewind.ClipLink{
		URL:       "https://cdn.example.com/wc-supertubos.stream." + ts.Format("20060102T150405") + "000.mp4",
		Timestamp: ts,
	}
}

func TestPipeline_RunFull_ArchivesQualifyingClips(t *testing.T) {
	settings := testSettings(t)

	midday := time.Date(2026, 8, 27, 12, 5, 0, 0, time.UTC)    // daylight, minute 5
	halfPast := time.Date(2026, 8, 27, 12, 30, 0, 0, time.UTC) // daylight, minute 30
	nighttime := time.Date(2026, 8, 27, 2, 5, 0, 0, time.UTC)  // dark, minute 5

	resolver := &stubResolver{links: map[string][]rewind.ClipLink{
		"supertubos-main": {clipAt(midday), clipAt(halfPast), clipAt(nighttime)},
	}}
	transformer := &stubTransformer{}
	p, store, acquirer := newTestPipeline(t, settings, &stubForecastProvider{}, resolver, transformer)

	require.NoError(t, p.RunFull(context.Background()))

	clips, err := store.GetVideoClipsForCam("supertubos-main")
	require.NoError(t, err)
	require.Len(t, clips, 1, "only the daylight top-of-hour clip qualifies")
	assert.True(t, clips[0].Timestamp.Equal(midday))
	assert.Contains(t, clips[0].SourceURL, "20260827T120500")
	assert.Len(t, acquirer.urls, 1)
	assert.True(t, resolver.closed, "resolver session is released when the run ends")
}

func TestPipeline_RunFull_SkipsStoredClips(t *testing.T) {
	settings := testSettings(t)
	midday := time.Date(2026, 8, 27, 12, 5, 0, 0, time.UTC)

	resolver := &stubResolver{links: map[string][]rewind.ClipLink{
		"supertubos-main": {clipAt(midday)},
	}}
	transformer := &stubTransformer{}
	p, store, acquirer := newTestPipeline(t, settings, &stubForecastProvider{}, resolver, transformer)

	require.NoError(t, store.UpsertVideoClip(&datastore.VideoClip{
		CamID: "supertubos-main", Timestamp: midday, Status: datastore.ClipStatusReady,
	}))

	require.NoError(t, p.RunFull(context.Background()))
	assert.Empty(t, acquirer.urls, "an already stored clip is never downloaded again")
	assert.Zero(t, transformer.calls)
}

func TestPipeline_RunFull_UnitFailureIsIsolated(t *testing.T) {
	settings := testSettings(t)
	first := time.Date(2026, 8, 27, 11, 5, 0, 0, time.UTC)
	second := time.Date(2026, 8, 27, 12, 5, 0, 0, time.UTC)

	resolver := &stubResolver{links: map[string][]rewind.ClipLink{
		"supertubos-main": {clipAt(first), clipAt(second)},
	}}
	transformer := &stubTransformer{failAt: map[time.Time]bool{first: true}}
	p, store, _ := newTestPipeline(t, settings, &stubForecastProvider{}, resolver, transformer)

	require.NoError(t, p.RunFull(context.Background()))

	clips, err := store.GetVideoClipsForCam("supertubos-main")
	require.NoError(t, err)
	require.Len(t, clips, 1, "failing clip must not block its siblings")
	assert.True(t, clips[0].Timestamp.Equal(second))
}

func TestPipeline_RunFull_AuthFailureAbortsVideoStage(t *testing.T) {
	settings := testSettings(t)
	resolver := &stubResolver{err: rewind.ErrAuthenticationFailed}
	p, store, _ := newTestPipeline(t, settings, &stubForecastProvider{}, resolver, &stubTransformer{})

	err := p.RunFull(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, rewind.ErrAuthenticationFailed))

	// The forecast half of the run still landed.
	records, getErr := store.GetForecasts("supertubos",
		time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, getErr)
	assert.NotEmpty(t, records)
}

func TestPipeline_RunForecasts_SpotFailureIsIsolated(t *testing.T) {
	settings := testSettings(t)
	settings.Spots = append(settings.Spots, conf.SpotConfig{
		ID: "ericeira", Name: "Ribeira d'Ilhas", ProviderSpotID: "p2", Latitude: 38.99, Longitude: -9.42,
	})

	provider := &stubForecastProvider{failFor: map[string]bool{"supertubos": true}}
	p, store, _ := newTestPipeline(t, settings, provider, &stubResolver{}, &stubTransformer{})

	require.NoError(t, p.RunForecasts(context.Background()), "one failing spot does not fail the run")
	assert.ElementsMatch(t, []string{"supertubos", "ericeira"}, provider.fetched)

	records, err := store.GetForecasts("ericeira",
		time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, records, "healthy spot still refreshed")
}

func TestPipeline_RunForecasts_AllSpotsFailing(t *testing.T) {
	settings := testSettings(t)
	provider := &stubForecastProvider{failFor: map[string]bool{"supertubos": true}}
	p, _, _ := newTestPipeline(t, settings, provider, &stubResolver{}, &stubTransformer{})

	require.Error(t, p.RunForecasts(context.Background()))
}

func TestPipeline_RetireSpot(t *testing.T) {
	settings := testSettings(t)
	p, store, _ := newTestPipeline(t, settings, &stubForecastProvider{}, &stubResolver{}, &stubTransformer{})

	require.NoError(t, p.RetireSpot(context.Background(), "supertubos"))

	exists, err := store.SpotExists("supertubos")
	require.NoError(t, err)
	assert.False(t, exists)

	// Retiring again is a no-op.
	require.NoError(t, p.RetireSpot(context.Background(), "supertubos"))
}
