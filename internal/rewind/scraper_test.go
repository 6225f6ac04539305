package rewind

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surfwatch/surfwatch-go/internal/catalog"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/errors"
)

func TestParseClipTimestamp(t *testing.T) {
	ts, err := ParseClipTimestamp("https://cdn.example.com/wc-supertubos.stream.20230827T151248661.mp4")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 8, 27, 15, 12, 48, 661_000_000, time.UTC), ts)
}

func TestParseClipTimestamp_Invalid(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no_segments", "plainstring"},
		{"short_segment", "https://cdn.example.com/cam.2023.mp4"},
		{"non_numeric", "https://cdn.example.com/cam.2023082XT15124866A.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClipTimestamp(tt.url)
			assert.Error(t, err)
		})
	}
}

func rewindPageHTML(urls ...string) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div id="sl-rewind-player"></div><div class="camRewindDownloadBar">`)
	for _, u := range urls {
		fmt.Fprintf(&sb, `<a href="%s">Download</a>`, u)
	}
	sb.WriteString(`</div><a href="/surf-cams/other">not a clip</a></body></html>`)
	return sb.String()
}

func TestExtractClipLinks(t *testing.T) {
	html := rewindPageHTML(
		"https://cdn.example.com/wc-supertubos.stream.20230827T151248661.mp4",
		"https://cdn.example.com/wc-supertubos.stream.20230827T161301112.mp4",
		"https://cdn.example.com/not-a-timestamp.mp4",
	)

	links, err := extractClipLinks(strings.NewReader(html))
	require.NoError(t, err)
	require.Len(t, links, 2, "anchors without a capture time are skipped")
	assert.Equal(t, time.Date(2023, 8, 27, 15, 12, 48, 661_000_000, time.UTC), links[0].Timestamp)
}

// newScraperServer serves a sign-in endpoint and one rewind page.
func newScraperServer(t *testing.T, loginStatus int, pageHTML string) (*httptest.Server, *int) {
	t.Helper()
	loginCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/sign-in", func(w http.ResponseWriter, r *http.Request) {
		loginCalls++
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		w.WriteHeader(loginStatus)
	})
	mux.HandleFunc("/surf-cams/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pageHTML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &loginCalls
}

func scraperSettings(baseURL string) *conf.Settings {
	return &conf.Settings{
		Rewind: conf.RewindSettings{
			Provider: "surfline",
			BaseURL:  baseURL,
			Days:     2,
			Email:    "user@example.com",
			Password: "hunter2",
		},
	}
}

func testCam() *catalog.Cam {
	return &catalog.Cam{
		ID:       "supertubos-main",
		SpotID:   "supertubos",
		PageSlug: "supertubos/584204204e65fad6a77090d5",
	}
}

func TestSurflineScraper_ResolveClipLinks(t *testing.T) {
	page := rewindPageHTML(
		"https://cdn.example.com/wc-supertubos.stream.20230827T151248661.mp4",
		"https://cdn.example.com/wc-supertubos.stream.20230828T090001000.mp4",
	)
	server, loginCalls := newScraperServer(t, http.StatusOK, page)

	scraper, err := NewSurflineScraper(scraperSettings(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = scraper.Close() })

	window := Window{
		Start: time.Date(2023, 8, 27, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 8, 29, 0, 0, 0, 0, time.UTC),
	}
	links, err := scraper.ResolveClipLinks(context.Background(), testCam(), window)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.True(t, links[0].Timestamp.Before(links[1].Timestamp), "links come back oldest first")
	assert.Equal(t, 1, *loginCalls, "login happens once per session")
}

func TestSurflineScraper_WindowFiltersLinks(t *testing.T) {
	page := rewindPageHTML(
		"https://cdn.example.com/wc-supertubos.stream.20230827T151248661.mp4",
		"https://cdn.example.com/wc-supertubos.stream.20230901T090001000.mp4",
	)
	server, _ := newScraperServer(t, http.StatusOK, page)

	scraper, err := NewSurflineScraper(scraperSettings(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = scraper.Close() })

	window := Window{
		Start: time.Date(2023, 8, 27, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 8, 28, 0, 0, 0, 0, time.UTC),
	}
	links, err := scraper.ResolveClipLinks(context.Background(), testCam(), window)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Contains(t, links[0].URL, "20230827T151248661")
}

func TestSurflineScraper_NoLinksFound(t *testing.T) {
	server, _ := newScraperServer(t, http.StatusOK, `<html><body>no clips today</body></html>`)

	scraper, err := NewSurflineScraper(scraperSettings(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = scraper.Close() })

	window := Window{Start: time.Unix(0, 0), End: time.Now()}
	links, err := scraper.ResolveClipLinks(context.Background(), testCam(), window)
	require.Error(t, err)
	assert.Nil(t, links)
	assert.True(t, errors.Is(err, ErrNoLinksFound))
}

func TestSurflineScraper_AuthenticationFailure(t *testing.T) {
	server, _ := newScraperServer(t, http.StatusUnauthorized, "")

	scraper, err := NewSurflineScraper(scraperSettings(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = scraper.Close() })

	window := Window{Start: time.Unix(0, 0), End: time.Now()}
	_, err = scraper.ResolveClipLinks(context.Background(), testCam(), window)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthenticationFailed))
}

func TestSurflineScraper_MissingCredentials(t *testing.T) {
	settings := scraperSettings("http://localhost:0")
	settings.Rewind.Email = ""

	scraper, err := NewSurflineScraper(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scraper.Close() })

	window := Window{Start: time.Unix(0, 0), End: time.Now()}
	_, err = scraper.ResolveClipLinks(context.Background(), testCam(), window)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthenticationFailed))
}
