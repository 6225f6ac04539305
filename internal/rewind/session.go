package rewind

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/surfwatch/surfwatch-go/internal/errors"
)

const (
	// SurflineWebBaseURL is the provider's web root. The sign-in form and the
	// per-cam rewind pages hang off this URL.
	SurflineWebBaseURL = "https://www.surfline.com"

	signInPath = "/sign-in"

	sessionTimeout = 45 * time.Second

	sessionUserAgent = "surfwatch-go (surf cam archiver)"
)

// Session is an authenticated provider web session. Login happens lazily on
// the first page request and the resulting cookies are reused for every page
// fetched during a run. Cookie state is not safe for concurrent requests, so
// all issuance goes through the mutex.
type Session struct {
	mu       sync.Mutex
	client   *http.Client
	baseURL  string
	email    string
	password string
	loggedIn bool
}

// NewSession creates an unauthenticated session. Credentials are held only in
// memory and are never written to configuration or the datastore.
func NewSession(baseURL, email, password string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.New(err).
			Component("rewind").
			Category(errors.CategoryGeneric).
			Context("operation", "create_cookie_jar").
			Build()
	}

	if baseURL == "" {
		baseURL = SurflineWebBaseURL
	}

	return &Session{
		client: &http.Client{
			Jar:     jar,
			Timeout: sessionTimeout,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
	}, nil
}

// GetPage fetches one page through the session, logging in first if this is
// the session's first request.
func (s *Session) GetPage(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loggedIn {
		if err := s.login(ctx); err != nil {
			return nil, err
		}
		s.loggedIn = true
	}

	pageURL := s.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("rewind").
			Category(errors.CategoryNetwork).
			Context("operation", "create_page_request").
			Context("url", pageURL).
			Build()
	}
	req.Header.Set("User-Agent", sessionUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("rewind").
			Category(errors.CategoryNetwork).
			Context("operation", "fetch_page").
			Context("url", pageURL).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		if closeErr := resp.Body.Close(); closeErr != nil {
			rewindLogger.Debug("Failed to close response body", "error", closeErr)
		}
		return nil, errors.Newf("page fetch returned status %d", resp.StatusCode).
			Component("rewind").
			Category(errors.CategoryNetwork).
			Context("operation", "fetch_page").
			Context("url", pageURL).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return resp.Body, nil
}

// login posts the sign-in form. A rejected login surfaces as
// ErrAuthenticationFailed so callers can abort the whole scraping stage
// instead of retrying per cam.
func (s *Session) login(ctx context.Context) error {
	if s.email == "" || s.password == "" {
		return errors.New(fmt.Errorf("%w: credentials not provided", ErrAuthenticationFailed)).
			Component("rewind").
			Category(errors.CategoryAuth).
			Build()
	}

	form := url.Values{}
	form.Set("email", s.email)
	form.Set("password", s.password)

	loginURL := s.baseURL + signInPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.New(err).
			Component("rewind").
			Category(errors.CategoryNetwork).
			Context("operation", "create_login_request").
			Build()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", sessionUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.New(fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)).
			Component("rewind").
			Category(errors.CategoryAuth).
			Context("operation", "login").
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			rewindLogger.Debug("Failed to close login response body", "error", closeErr)
		}
	}()

	// The form endpoint answers 200 or a redirect on success and 401/403 on
	// bad credentials.
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New(fmt.Errorf("%w: status %d", ErrAuthenticationFailed, resp.StatusCode)).
			Component("rewind").
			Category(errors.CategoryAuth).
			Context("operation", "login").
			Context("status_code", resp.StatusCode).
			Build()
	}

	rewindLogger.Info("Provider session established")
	return nil
}

// Close discards the session's authentication state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = false
	s.client.CloseIdleConnections()
	return nil
}
