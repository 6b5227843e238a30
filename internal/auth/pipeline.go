// Package auth implements the authenticated request pipeline: bearer token
// attachment, transparent recovery from access-token expiry, and the
// single-flight refresh coordinator shared by all in-flight requests.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/store"
)

// ErrAuthExpired is the terminal authentication failure: the request got a
// 401 even after a successful refresh-and-retry. The caller must re-login.
var ErrAuthExpired = errors.New("auth: session expired, login required")

// ErrNoRefreshToken is returned when a refresh is needed but no refresh
// token is stored.
var ErrNoRefreshToken = errors.New("auth: no refresh token available")

// Request is the transport-level request the pipeline sends. Body bytes
// (rather than a reader) make the single replay after refresh safe.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
	// NoAuth skips both token attachment and the refresh flow. Used for
	// login and the refresh call itself.
	NoAuth bool
}

type refreshOutcome struct {
	access string
	err    error
}

// Pipeline wraps an HTTP client with credential attachment and coordinated
// token refresh. One instance per process; Reset only on full logout.
type Pipeline struct {
	http       *http.Client
	state      *store.State
	refreshURL string
	// leeway triggers a proactive refresh when the access token expires
	// within this window. Zero disables the check.
	leeway   time.Duration
	onLogout func()
	log      zerolog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome
}

// Options configures a Pipeline.
type Options struct {
	HTTPClient *http.Client
	RefreshURL string
	Leeway     time.Duration
	// OnLogout is invoked (once per failed refresh cycle) after stored
	// tokens have been cleared, so the UI can redirect to login.
	OnLogout func()
}

// NewPipeline creates the request pipeline over the given state store.
func NewPipeline(state *store.State, opts Options, log zerolog.Logger) *Pipeline {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Pipeline{
		http:       httpClient,
		state:      state,
		refreshURL: opts.RefreshURL,
		leeway:     opts.Leeway,
		onLogout:   opts.OnLogout,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Do sends the request with the current access token attached. On a 401 it
// coordinates a single token refresh with every other in-flight request and
// replays the original request exactly once with the fresh token. A 401
// after the replay is surfaced as ErrAuthExpired and never re-enters the
// refresh flow.
func (p *Pipeline) Do(ctx context.Context, req *Request) (*http.Response, error) {
	if req.NoAuth {
		return p.send(ctx, req, "")
	}

	access := p.currentAccess()

	// Proactive refresh: if the token is parseable and about to expire,
	// refresh before spending a round trip on a guaranteed 401.
	if access != "" && p.leeway > 0 {
		if exp, err := TokenExpiry(access); err == nil && time.Until(exp) < p.leeway {
			fresh, err := p.refreshOrJoin(ctx)
			if err != nil {
				// The failed cycle already cleared stored tokens and fired
				// the logout hook. Sending the stale token anyway would 401,
				// re-enter the refresh flow and fire the hook a second time.
				return nil, err
			}
			access = fresh
		}
	}

	resp, err := p.send(ctx, req, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	fresh, err := p.refreshOrJoin(ctx)
	if err != nil {
		return nil, err
	}

	// Single replay with the refreshed token.
	resp, err = p.send(ctx, req, fresh)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrAuthExpired
	}
	return resp, nil
}

// Reset drops any coordinator state. Only meaningful after a full logout.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	// A refresh cycle in flight will still settle its own waiters.
	p.waiters = nil
	p.refreshing = false
}

func (p *Pipeline) currentAccess() string {
	pair, ok, err := p.state.TokenPair()
	if err != nil {
		p.log.Warn().Err(err).Msg("read token pair failed")
		return ""
	}
	if !ok {
		return ""
	}
	return pair.AccessToken
}

func (p *Pipeline) send(ctx context.Context, req *Request, access string) (*http.Response, error) {
	var body *bytes.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, api.NetworkError(err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	// An explicit Authorization override always wins over the stored token.
	if access != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, api.NetworkError(err)
	}
	return resp, nil
}

// refreshOrJoin is the coordinator entry point. If a refresh cycle is in
// flight the caller's continuation joins the FIFO waiter queue and suspends
// until that cycle settles; otherwise the caller becomes the refresher.
// Exactly one refresh HTTP call is in flight at any time.
func (p *Pipeline) refreshOrJoin(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.refreshing {
		ch := make(chan refreshOutcome, 1)
		p.waiters = append(p.waiters, ch)
		p.mu.Unlock()

		select {
		case out := <-ch:
			return out.access, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.refreshing = true
	p.mu.Unlock()

	out := p.refresh(ctx)

	p.mu.Lock()
	waiters := p.waiters
	p.waiters = nil
	p.refreshing = false
	p.mu.Unlock()

	// Waiter channels are buffered: settling never blocks, and every
	// queued continuation observes this cycle's single outcome in enqueue
	// order.
	for _, ch := range waiters {
		ch <- out
	}

	return out.access, out.err
}

// refresh performs the one refresh call of a cycle. On success the new pair
// replaces the stored one atomically; on failure all stored tokens are
// cleared and the logout hook fires.
func (p *Pipeline) refresh(ctx context.Context) refreshOutcome {
	pair, ok, err := p.state.TokenPair()
	if err != nil || !ok || pair.RefreshToken == "" {
		p.log.Warn().Msg("refresh requested without a refresh token")
		p.forceLogout()
		return refreshOutcome{err: ErrNoRefreshToken}
	}

	body, err := json.Marshal(model.RefreshRequest{RefreshToken: pair.RefreshToken})
	if err != nil {
		return refreshOutcome{err: err}
	}

	resp, err := p.send(ctx, &Request{
		Method: http.MethodPost,
		URL:    p.refreshURL,
		Body:   body,
		NoAuth: true,
	}, "")
	if err != nil {
		p.log.Error().Err(err).Msg("refresh call failed")
		p.forceLogout()
		return refreshOutcome{err: err}
	}

	var out model.RefreshResponse
	if err := api.Decode(resp, &out); err != nil {
		p.log.Warn().Err(err).Msg("refresh rejected")
		p.forceLogout()
		return refreshOutcome{err: err}
	}

	if err := p.state.SetTokenPair(model.TokenPair{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}); err != nil {
		return refreshOutcome{err: err}
	}

	p.log.Debug().Msg("token pair refreshed")
	return refreshOutcome{access: out.AccessToken}
}

func (p *Pipeline) forceLogout() {
	if err := p.state.ClearAll(); err != nil {
		p.log.Error().Err(err).Msg("clear auth state failed")
	}
	if p.onLogout != nil {
		p.onLogout()
	}
}
