package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/tests"
)

type fakeAuth struct {
	userCalls, refreshCalls, logoutCalls int32

	userStatus    []int // status per /api/user call, 200 once exhausted
	refreshStatus int
	refreshDelay  time.Duration
}

func (f *fakeAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case userPath:
		n := int(atomic.AddInt32(&f.userCalls, 1))
		status := http.StatusOK
		if n <= len(f.userStatus) {
			status = f.userStatus[n-1]
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		c, err := r.Cookie(AccessCookie)
		if err != nil || c.Value != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(Identity{ID: "u1", Name: "Ana", Username: "ana", Role: "alumni"})
	case refreshPath:
		atomic.AddInt32(&f.refreshCalls, 1)
		time.Sleep(f.refreshDelay)
		if f.refreshStatus != http.StatusOK {
			w.WriteHeader(f.refreshStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: "fresh", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: "rotated", Path: "/"})
		w.WriteHeader(http.StatusOK)
	case logoutPath:
		atomic.AddInt32(&f.logoutCalls, 1)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestResolver(h http.Handler) *Resolver {
	return NewResolver(Options{
		BaseURL: "http://portal.internal",
		Client:  &rest.Client{HTTPClient: &http.Client{Transport: &HandlerTransport{Handler: h}}},
		Logger:  testutil.NewLogger(),
	})
}

func browserCookies(access string) []*http.Cookie {
	return []*http.Cookie{
		{Name: AccessCookie, Value: access},
		{Name: RefreshCookie, Value: "refresh-1"},
	}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name             string
		auth             *fakeAuth
		cookies          []*http.Cookie
		wantIdentity     bool
		wantRedirect     bool
		wantUserCalls    int32
		wantRefreshCalls int32
		wantSetCookies   int
	}{
		{
			name:          "valid session",
			auth:          &fakeAuth{},
			cookies:       browserCookies("fresh"),
			wantIdentity:  true,
			wantUserCalls: 1,
		},
		{
			name:             "401 then refresh retries exactly once",
			auth:             &fakeAuth{userStatus: []int{http.StatusUnauthorized}, refreshStatus: http.StatusOK},
			cookies:          browserCookies("stale"),
			wantIdentity:     true,
			wantUserCalls:    2,
			wantRefreshCalls: 1,
			wantSetCookies:   2,
		},
		{
			name:             "refresh rejected",
			auth:             &fakeAuth{userStatus: []int{http.StatusUnauthorized}, refreshStatus: http.StatusUnauthorized},
			cookies:          browserCookies("stale"),
			wantRedirect:     true,
			wantUserCalls:    1,
			wantRefreshCalls: 1,
		},
		{
			name:             "second 401 is signed out",
			auth:             &fakeAuth{userStatus: []int{http.StatusUnauthorized, http.StatusUnauthorized}, refreshStatus: http.StatusOK},
			cookies:          browserCookies("stale"),
			wantUserCalls:    2,
			wantRefreshCalls: 1,
			wantSetCookies:   2,
		},
		{
			name:          "server error is signed out",
			auth:          &fakeAuth{userStatus: []int{http.StatusInternalServerError}},
			cookies:       browserCookies("fresh"),
			wantUserCalls: 1,
		},
		{
			name:          "no refresh cookie",
			auth:          &fakeAuth{userStatus: []int{http.StatusUnauthorized}},
			cookies:       nil,
			wantRedirect:  true,
			wantUserCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestResolver(tt.auth).Resolve(context.Background(), tt.cookies)

			assert.Equal(t, tt.wantIdentity, res.Identity != nil, "identity")
			if tt.wantIdentity {
				assert.Equal(t, "ana", res.Identity.Username)
			}
			assert.Equal(t, tt.wantRedirect, res.Redirect, "redirect")
			assert.Equal(t, tt.wantUserCalls, atomic.LoadInt32(&tt.auth.userCalls), "user calls")
			assert.Equal(t, tt.wantRefreshCalls, atomic.LoadInt32(&tt.auth.refreshCalls), "refresh calls")
			assert.Len(t, res.SetCookies, tt.wantSetCookies)
		})
	}
}

func TestResolver_Refresh_collapsesConcurrentCalls(t *testing.T) {
	auth := &fakeAuth{refreshStatus: http.StatusOK, refreshDelay: 50 * time.Millisecond}
	r := newTestResolver(auth)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := r.Refresh(context.Background(), browserCookies("stale"))
			assert.NoError(t, err)
			assert.Len(t, set, 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.refreshCalls))
}

func TestResolver_Logout(t *testing.T) {
	auth := &fakeAuth{}
	srv := httptest.NewServer(auth)
	defer srv.Close()

	r := NewResolver(Options{
		BaseURL: srv.URL,
		Client:  &rest.Client{HTTPClient: srv.Client()},
		Logger:  testutil.NewLogger(),
	})
	require.NoError(t, r.Logout(context.Background(), browserCookies("fresh")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.logoutCalls))
}

func TestHandlerTransport_noHandler(t *testing.T) {
	client := &http.Client{Transport: &HandlerTransport{}}
	_, err := client.Get("http://portal.internal/api/user")
	assert.Error(t, err)
}

func Test_mergeCookies(t *testing.T) {
	jar := []*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}
	set := []*http.Cookie{{Name: "a", Value: "3"}, {Name: "b", MaxAge: -1}, {Name: "c", Value: "4"}}

	got := mergeCookies(jar, set)
	require.Len(t, got, 2)
	assert.Equal(t, "a=3; c=4", cookieHeader(got))
}
