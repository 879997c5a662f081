// Package session resolves the signed-in identity of a browser session against the
// portal auth endpoints, and decides what a guarded page does with it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"golang.org/x/sync/singleflight"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
)

// Cookie names shared with the auth endpoints.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	userPath    = "/api/user"
	refreshPath = "/api/refresh"
	logoutPath  = "/api/logout"
)

var ErrUnauthorized = errors.New("session: unauthorized")

// Identity is the signed-in user as reported by the user endpoint.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Result of one identity resolution. SetCookies holds cookies issued by a refresh,
// which the caller must forward to the browser. Redirect is set when the refresh
// failed and the user must sign in again.
type Result struct {
	Identity   *Identity
	SetCookies []*http.Cookie
	Redirect   bool
}

type Options struct {
	BaseURL string
	Client  *rest.Client
	Logger  core.Logger
}

type Resolver struct {
	baseURL string
	client  *rest.Client
	logger  core.Logger

	refreshes singleflight.Group
}

func NewResolver(opts Options) *Resolver {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Client, "Client"),
		vala.IsNotNil(opts.Logger, "Logger"),
	).CheckAndPanic()

	return &Resolver{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  opts.Client,
		logger:  opts.Logger,
	}
}

// Resolve asks for the current identity. On 401 it refreshes the session once and
// retries once; any other failure is logged and resolves to no identity.
func (r *Resolver) Resolve(ctx context.Context, cookies []*http.Cookie) Result {
	var res Result
	jar := cookies
	state, act := stateFetching, actionFetch
	for act != actionNone {
		var out fetchOutcome
		switch act {
		case actionFetch:
			res.Identity, out = r.fetchIdentity(ctx, jar)
		case actionRefresh:
			set, err := r.Refresh(ctx, jar)
			if err != nil {
				r.logger.Info("session refresh failed", err)
				out = outcomeFailed
				break
			}
			res.SetCookies = append(res.SetCookies, set...)
			jar = mergeCookies(jar, set)
		}
		state, act = resolveStep(state, out)
	}
	res.Redirect = state == stateRedirect
	if state != stateIdentified {
		res.Identity = nil
	}
	return res
}

func (r *Resolver) fetchIdentity(ctx context.Context, cookies []*http.Cookie) (*Identity, fetchOutcome) {
	res, err := r.send(ctx, rest.Get, userPath, cookies)
	if err != nil {
		r.logger.Error("fetching session identity", err)
		return nil, outcomeFailed
	}
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, outcomeUnauthorized
	default:
		r.logger.Error(fmt.Sprintf("user endpoint responded with status %d", res.StatusCode))
		return nil, outcomeFailed
	}

	var id Identity
	if err := json.Unmarshal([]byte(res.Body), &id); err != nil {
		r.logger.Error("decoding session identity", err)
		return nil, outcomeFailed
	}
	return &id, outcomeOK
}

// Refresh rotates the session tokens and returns the cookies the auth endpoint set.
// Concurrent refreshes of the same refresh token share a single request.
func (r *Resolver) Refresh(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error) {
	token := cookieValue(cookies, RefreshCookie)
	if token == "" {
		return nil, ErrUnauthorized
	}
	v, err, _ := r.refreshes.Do(token, func() (interface{}, error) {
		res, err := r.send(ctx, rest.Post, refreshPath, cookies)
		if err != nil {
			return nil, errors.Wrap(err, "refreshing session")
		}
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return nil, ErrUnauthorized
		}
		if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("refresh endpoint responded with status %d", res.StatusCode)
		}
		return responseCookies(res), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*http.Cookie), nil
}

// Logout invalidates the session on the auth endpoint.
func (r *Resolver) Logout(ctx context.Context, cookies []*http.Cookie) error {
	res, err := r.send(ctx, rest.Get, logoutPath, cookies)
	if err != nil {
		return errors.Wrap(err, "logging out")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("logout endpoint responded with status %d", res.StatusCode)
	}
	return nil
}

func (r *Resolver) send(ctx context.Context, method rest.Method, path string, cookies []*http.Cookie) (*rest.Response, error) {
	headers := map[string]string{"Accept": "application/json"}
	if h := cookieHeader(cookies); h != "" {
		headers["Cookie"] = h
	}
	return core.SendRequest(ctx, r.client, rest.Request{
		Method:  method,
		BaseURL: r.baseURL + path,
		Headers: headers,
	})
}

func cookieHeader(cookies []*http.Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Value == "" {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func responseCookies(res *rest.Response) []*http.Cookie {
	return (&http.Response{Header: http.Header(res.Headers)}).Cookies()
}

// mergeCookies overlays set onto jar by name. Expired cookies are dropped.
func mergeCookies(jar, set []*http.Cookie) []*http.Cookie {
	byName := make(map[string]int, len(jar))
	merged := make([]*http.Cookie, 0, len(jar)+len(set))
	for _, c := range jar {
		byName[c.Name] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range set {
		if i, ok := byName[c.Name]; ok {
			merged[i] = c
			continue
		}
		byName[c.Name] = len(merged)
		merged = append(merged, c)
	}

	now := time.Now()
	out := merged[:0]
	for _, c := range merged {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			continue
		}
		out = append(out, c)
	}
	return out
}
