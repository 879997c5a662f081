package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sendgrid/rest"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/session"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/timeoracle"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
	emailsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/email"
	metricsvc "github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/services/metrics"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/storage/database/dummy"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	cookies  []*http.Cookie
	wantCode int
	wantData []byte
	extra    interface{}
}

// testEnv is a full server over an in-memory store. Session and reminder calls the
// server makes to its own API are served in-process.
type testEnv struct {
	conf    *core.Config
	repo    user.Repository
	mailSvc *emailsvc.ConsoleServiceMock
	metrics *metricsvc.Metrics
	app     *server

	mu      sync.Mutex
	now     string // served by the time API
	calls   map[string]*int32
	failing map[string]bool // self paths answering 500
	timeSrv *httptest.Server
}

func newTestEnv(t *testing.T, configure ...func(conf *core.Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		conf:    testutil.NewConfig(t),
		repo:    dummydb.NewUserRepository(dummydb.Open()),
		now:     "2024-06-15 08:00:00",
		calls:   make(map[string]*int32),
		failing: make(map[string]bool),
	}
	for _, fn := range configure {
		fn(env.conf)
	}
	logger := testutil.NewLogger()
	env.mailSvc = emailsvc.NewConsoleServiceMock(env.conf, logger)
	env.metrics = metricsvc.New()

	env.timeSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		now := env.now
		env.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"timezone": "Asia/Manila", "datetime": %q}`, now)
	}))
	t.Cleanup(env.timeSrv.Close)

	// forwards to env.app once it is built
	self := &rest.Client{HTTPClient: &http.Client{
		Transport: &session.HandlerTransport{Handler: http.HandlerFunc(env.serveSelf)},
	}}

	usrSvc := user.NewService(env.repo, env.mailSvc, testutil.NewCodec(t, env.conf), env.conf)
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	oracle := timeoracle.New(timeoracle.Options{
		BaseURL:    env.timeSrv.URL,
		APIKey:     env.conf.TimeAPI.Key,
		Logger:     logger,
		OnFallback: env.metrics.TimeFallback,
	})
	job := reminder.NewJob(reminder.Options{
		Store:      usrSvc,
		Clock:      oracle,
		Dispatcher: &reminder.HTTPDispatcher{BaseURL: "http://portal.test", Token: env.conf.Reminder.CronSecret, Client: self},
		Logger:     logger,
		Location:   env.conf.Reminder.Location,
		Subject:    env.conf.Reminder.Subject,
		Cooldown:   env.conf.Reminder.Cooldown,
		Observer:   env.metrics,
	})

	env.app = NewServer(ServerDeps{
		Conf:           env.conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		MailSvc:        env.mailSvc,
		Resolver:       session.NewResolver(session.Options{BaseURL: "http://portal.test", Client: self, Logger: logger}),
		Reminder:       job,
		Metrics:        env.metrics,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	}).(*server)
	t.Cleanup(func() { _ = env.app.Close() })
	return env
}

func (env *testEnv) serveSelf(w http.ResponseWriter, r *http.Request) {
	env.mu.Lock()
	cnt, ok := env.calls[r.URL.Path]
	if !ok {
		cnt = new(int32)
		env.calls[r.URL.Path] = cnt
	}
	fail := env.failing[r.URL.Path]
	env.mu.Unlock()
	atomic.AddInt32(cnt, 1)
	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	env.app.ServeHTTP(w, r)
}

// selfCalls returns how many in-process calls path received.
func (env *testEnv) selfCalls(path string) int {
	env.mu.Lock()
	defer env.mu.Unlock()
	if cnt, ok := env.calls[path]; ok {
		return int(atomic.LoadInt32(cnt))
	}
	return 0
}

func (env *testEnv) setFailing(path string) {
	env.mu.Lock()
	env.failing[path] = true
	env.mu.Unlock()
}

func (env *testEnv) setNow(now string) {
	env.mu.Lock()
	env.now = now
	env.mu.Unlock()
}

func (env *testEnv) createUser(t *testing.T, uname, role string, isActive ...bool) user.User {
	active := true
	if len(isActive) > 0 {
		active = isActive[0]
	}
	return testutil.CreateUser(t, env.repo, "User "+uname, uname, uname+"@test.ph", "pwd@"+uname+"2024", role, active)
}

// sessionCookies returns a signed access and refresh cookie pair for usr.
func (env *testEnv) sessionCookies(t *testing.T, usr user.User, adjust ...func(access, refresh *Claims)) []*http.Cookie {
	t.Helper()
	access := env.app.tokens.claims(usr, tokenTypeAccess)
	refresh := env.app.tokens.claims(usr, tokenTypeRefresh)
	for _, fn := range adjust {
		fn(access, refresh)
	}
	accessToken, err := env.app.tokens.sign(access)
	if err != nil {
		t.Fatalf("sessionCookies(): %v", err)
	}
	refreshToken, err := env.app.tokens.sign(refresh)
	if err != nil {
		t.Fatalf("sessionCookies(): %v", err)
	}
	return []*http.Cookie{
		{Name: session.AccessCookie, Value: accessToken},
		{Name: session.RefreshCookie, Value: refreshToken},
	}
}

func expiredAccess(access, _ *Claims) {
	access.ExpiresAt = time.Now().Add(-time.Minute).Unix()
}

func newRequest(method, path string, cookies []*http.Cookie, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	if method == "" {
		method = http.MethodGet
	}
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req, httptest.NewRecorder()
}

func (env *testEnv) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newRequest(tt.method, tt.path, tt.cookies, tt.body)
	env.app.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
