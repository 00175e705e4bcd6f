package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/banner-cli/internal/clock"
	"github.com/xkilldash9x/banner-cli/internal/network"
	"github.com/xkilldash9x/banner-cli/internal/observability"
)

// Credentials identify the student logging in.
type Credentials struct {
	Username string
	Password string
}

// Options configure a new Session.
type Options struct {
	BaseURL string
	// MiddlePaths are probed in order; DefaultMiddlePaths when empty.
	MiddlePaths []string
	Credentials Credentials
	// SessionCookie is the cookie whose presence marks a successful login.
	SessionCookie string
	// Client must keep cookies between requests. A throttled client with an
	// in-memory jar is built when nil.
	Client Doer
	Clock  clock.Clock
	Logger *zap.Logger
}

// State is a step of the session lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateEndpointResolved
	StateAuthenticated
	StateFormCached
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateEndpointResolved:
		return "endpoint_resolved"
	case StateAuthenticated:
		return "authenticated"
	case StateFormCached:
		return "form_cached"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is an authenticated conversation with one portal. It is meant for a
// single sequential registration flow; the mutex only makes misuse safe.
type Session struct {
	client     Doer
	baseURL    string
	middle     string
	candidates []string
	cookieName string
	offset     time.Duration
	clock      clock.Clock
	logger     *zap.Logger

	mu       sync.Mutex
	state    State
	terms    []Term
	form     *Form
	formTerm string
}

// New resolves the middle path, logs in and validates the session. Any failure
// is returned before a form is ever requested.
func New(ctx context.Context, opts Options) (*Session, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, err
	}

	middle, err := ResolveMiddlePath(ctx, s.client, s.baseURL, s.candidates)
	if err != nil {
		return nil, err
	}
	s.middle = middle
	s.setState(StateEndpointResolved)
	s.logger.Info("Resolved middle path.", zap.String("middle_path", middle))

	if err := s.login(ctx, opts.Credentials); err != nil {
		return nil, err
	}
	if err := s.validate(ctx); err != nil {
		return nil, err
	}
	s.setState(StateAuthenticated)
	return s, nil
}

func newSession(opts Options) (*Session, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: base URL %q must be an absolute http(s) URL", ErrConfiguration, opts.BaseURL)
	}
	if opts.Credentials.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrConfiguration)
	}
	candidates := opts.MiddlePaths
	if len(candidates) == 0 {
		candidates = DefaultMiddlePaths
	}

	s := &Session{
		client:     opts.Client,
		baseURL:    baseURL,
		candidates: candidates,
		cookieName: opts.SessionCookie,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = observability.GetLogger()
	}
	s.logger = s.logger.Named("portal")
	if s.cookieName == "" {
		s.cookieName = DefaultSessionCookie
	}
	if s.clock == nil {
		s.clock = clock.SystemClock{}
	}
	if s.client == nil {
		cc := network.NewDefaultClientConfig()
		cc.Throttle = network.NewMinIntervalThrottle(500*time.Millisecond, 1)
		cc.Logger = s.logger.Named("http")
		s.client = network.NewClient(cc)
	}
	return s, nil
}

// login posts the credentials and requires the session cookie to be set by the
// response or any response in its redirect chain.
func (s *Session) login(ctx context.Context, creds Credentials) error {
	form := url.Values{"sid": {creds.Username}, "PIN": {creds.Password}}
	resp, err := s.post(ctx, PageLogin, form.Encode())
	if err != nil {
		return fmt.Errorf("%w: login request failed: %w", ErrAuthentication, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !hasSessionCookie(resp, s.cookieName) {
		s.logger.Error("Login did not set a session cookie.",
			zap.String("user", creds.Username),
			zap.String("cookie", s.cookieName),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: no %s cookie in login response", ErrAuthentication, s.cookieName)
	}

	offset, err := ServerOffset(resp, s.clock.Now())
	if err != nil {
		s.logger.Warn("Could not read server time, assuming clocks agree.", zap.Error(err))
		offset = 0
	}
	s.offset = offset
	s.logger.Info("Logged in.", zap.String("user", creds.Username), zap.Duration("server_offset", offset))
	return nil
}

// hasSessionCookie walks resp and the responses that redirected to it.
func hasSessionCookie(resp *http.Response, name string) bool {
	for r := resp; r != nil; {
		for _, c := range r.Cookies() {
			if c.Name == name && c.Value != "" {
				return true
			}
		}
		if r.Request == nil {
			break
		}
		r = r.Request.Response
	}
	return false
}

// ServerOffset returns how far the server clock, read from the Date header,
// runs ahead of now.
func ServerOffset(resp *http.Response, now time.Time) (time.Duration, error) {
	date := resp.Header.Get("Date")
	if date == "" {
		return 0, fmt.Errorf("response has no Date header")
	}
	serverTime, err := http.ParseTime(date)
	if err != nil {
		return 0, fmt.Errorf("unparsable Date header %q: %w", date, err)
	}
	return serverTime.Sub(now.UTC()), nil
}

// validate loads the term selection page, proving the session is live, and keeps its term list.
func (s *Session) validate(ctx context.Context) error {
	resp, err := s.get(ctx, PageListTerms)
	if err != nil {
		return fmt.Errorf("%w: loading term list: %w", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: term list returned status %d", ErrAuthentication, resp.StatusCode)
	}

	terms, err := ParseTerms(resp.Body)
	if err != nil {
		s.logger.Warn("Could not parse term list.", zap.Error(err))
	}
	s.mu.Lock()
	s.terms = terms
	s.mu.Unlock()
	s.logger.Debug("Session validated.", zap.Int("terms", len(terms)))
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// MiddlePath returns the resolved middle path.
func (s *Session) MiddlePath() string { return s.middle }

// Offset returns how far the server clock runs ahead of the local clock.
func (s *Session) Offset() time.Duration { return s.offset }

func (s *Session) pageURL(p Page) string { return s.baseURL + s.middle + p.Path() }

func (s *Session) get(ctx context.Context, p Page) (*http.Response, error) {
	return s.do(ctx, http.MethodGet, p, "")
}

func (s *Session) post(ctx context.Context, p Page, body string) (*http.Response, error) {
	return s.do(ctx, http.MethodPost, p, body)
}

func (s *Session) do(ctx context.Context, method string, p Page, body string) (*http.Response, error) {
	var reader io.Reader
	if method == http.MethodPost {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.pageURL(p), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", s.baseURL)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	s.logger.Debug("Sending request.", zap.String("method", method), zap.Stringer("page", p))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, p, err)
	}
	return resp, nil
}
