package rewind

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/surfwatch/surfwatch-go/internal/catalog"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/errors"
)

const (
	camPagePrefix = "/surf-cams/"

	// clipTimestampLayout matches the capture time segment inside a CDN clip
	// URL, e.g. wc-supertubos.stream.20230827T151248661.mp4. Milliseconds
	// follow the seconds without a separator.
	clipTimestampLayout = "20060102T150405"
)

// SurflineScraper resolves clip links by parsing the provider's cam rewind
// pages. One scraper shares one Session across all cams of a run.
type SurflineScraper struct {
	session *Session
	days    int
}

// NewSurflineScraper creates a scraper backed by a lazy provider session.
func NewSurflineScraper(settings *conf.Settings) (*SurflineScraper, error) {
	session, err := NewSession(settings.Rewind.BaseURL, settings.Rewind.Email, settings.Rewind.Password)
	if err != nil {
		return nil, err
	}
	days := settings.Rewind.Days
	if days < 1 {
		days = 1
	}
	return &SurflineScraper{session: session, days: days}, nil
}

// ResolveClipLinks implements LinkResolver. It walks the cam's rewind pages
// day by day, extracts the CDN download links and returns the ones whose
// capture time falls inside the window, oldest first.
func (s *SurflineScraper) ResolveClipLinks(ctx context.Context, cam *catalog.Cam, window Window) ([]ClipLink, error) {
	logger := rewindLogger.With("cam_id", cam.ID)

	seen := make(map[string]struct{})
	var links []ClipLink

	for day := 0; day < s.days; day++ {
		path := camPagePrefix + cam.PageSlug
		if day > 0 {
			path = fmt.Sprintf("%s?day=%d", path, day)
		}

		body, err := s.session.GetPage(ctx, path)
		if err != nil {
			if errors.Is(err, ErrAuthenticationFailed) {
				return nil, err
			}
			// One unloadable day page does not void the cam's other days.
			logger.Warn("Failed to load rewind page", "day_offset", day, "error", err)
			continue
		}

		dayLinks, err := extractClipLinks(body)
		if closeErr := body.Close(); closeErr != nil {
			logger.Debug("Failed to close page body", "error", closeErr)
		}
		if err != nil {
			logger.Warn("Failed to parse rewind page", "day_offset", day, "error", err)
			continue
		}

		for _, link := range dayLinks {
			if _, dup := seen[link.URL]; dup {
				continue
			}
			seen[link.URL] = struct{}{}
			if window.Contains(link.Timestamp) {
				links = append(links, link)
			}
		}
	}

	if len(links) == 0 {
		return nil, errors.New(fmt.Errorf("%w: cam %s", ErrNoLinksFound, cam.ID)).
			Component("rewind").
			Category(errors.CategoryScraping).
			Context("cam_id", cam.ID).
			Context("page_slug", cam.PageSlug).
			Build()
	}

	sort.Slice(links, func(i, j int) bool { return links[i].Timestamp.Before(links[j].Timestamp) })
	logger.Debug("Resolved clip links", "count", len(links))
	return links, nil
}

// Close releases the underlying session.
func (s *SurflineScraper) Close() error {
	return s.session.Close()
}

// extractClipLinks pulls every clip download anchor out of a rewind page.
// Anchors whose URL carries no parseable capture time are skipped.
func extractClipLinks(r io.Reader) ([]ClipLink, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.New(err).
			Component("rewind").
			Category(errors.CategoryScraping).
			Context("operation", "parse_rewind_page").
			Build()
	}

	var links []ClipLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasSuffix(href, ".mp4") {
			return
		}
		ts, err := ParseClipTimestamp(href)
		if err != nil {
			rewindLogger.Debug("Skipping link without capture time", "url", href, "error", err)
			return
		}
		links = append(links, ClipLink{URL: href, Timestamp: ts})
	})
	return links, nil
}

// ParseClipTimestamp extracts the UTC capture time from a CDN clip URL. The
// second-to-last dot segment holds it: 20230827T151248661 is 2023-08-27
// 15:12:48.661.
func ParseClipTimestamp(clipURL string) (time.Time, error) {
	parts := strings.Split(clipURL, ".")
	if len(parts) < 3 {
		return time.Time{}, errors.Newf("clip URL has no timestamp segment: %s", clipURL).
			Component("rewind").
			Category(errors.CategoryValidation).
			Build()
	}
	segment := parts[len(parts)-2]

	if len(segment) != len(clipTimestampLayout)+3 {
		return time.Time{}, errors.Newf("unexpected timestamp segment %q in %s", segment, clipURL).
			Component("rewind").
			Category(errors.CategoryValidation).
			Build()
	}

	base, err := time.Parse(clipTimestampLayout, segment[:len(clipTimestampLayout)])
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("rewind").
			Category(errors.CategoryValidation).
			Context("operation", "parse_clip_timestamp").
			Context("segment", segment).
			Build()
	}

	millis, err := strconv.Atoi(segment[len(clipTimestampLayout):])
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("rewind").
			Category(errors.CategoryValidation).
			Context("operation", "parse_clip_millis").
			Context("segment", segment).
			Build()
	}

	return base.Add(time.Duration(millis) * time.Millisecond), nil
}
