package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/api/middleware"
	"github.com/sewerwatch/portal/internal/core/service"
	"github.com/sewerwatch/portal/internal/infrastructure/queue"
	"github.com/sewerwatch/portal/internal/infrastructure/session"
	"github.com/sewerwatch/portal/internal/infrastructure/upstream"
)

// fakeBackend issues "t1" at login, accepts only "t2" and refreshes t1 to t2.
func fakeBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_, _ = io.WriteString(w, `{"token":"t1","user":{"id":11,"name":"Wendy","email":"wendy@example.com","role":"worker"}}`)
		case "/auth/refresh":
			refreshes.Add(1)
			_, _ = io.WriteString(w, `{"token":"t2"}`)
		case "/worker/jobs":
			if token != "t2" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"expired"}`)
				return
			}
			_, _ = io.WriteString(w, `[{"id":1,"title":"Clear blocked drain"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &refreshes
}

func newTestPortal(t *testing.T, backendURL string) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()
	stores := session.NewStores(session.NewMemoryScope(0), session.NewMemoryScope(0), log)
	up, err := upstream.New(backendURL, 2*time.Second, log)
	if err != nil {
		t.Fatalf("upstream: %v", err)
	}
	audit := queue.Discard{}
	shells, err := service.NewRegistry(64, stores, up, service.NewVerifier(time.Second, true, log), audit, log)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	e := NewRouter(Deps{
		Auth:       service.NewAuthService(shells, up, audit, log),
		Shells:     shells,
		Poller:     service.NewPoller(time.Second, log),
		Audit:      audit,
		Cookies:    middleware.ClientCookies{MaxAge: time.Hour},
		Log:        log,
		Registerer: prometheus.NewRegistry(),
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func expectRedirect(t *testing.T, client *http.Client, url, to string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != to {
		t.Fatalf("GET %s: expected 302 to %s, got %d %q", url, to, resp.StatusCode, resp.Header.Get("Location"))
	}
}

func getJSON(t *testing.T, client *http.Client, url string, out any) int {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: invalid json: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestPortal_SessionLifecycle(t *testing.T) {
	backend, refreshes := fakeBackend(t)
	portal := newTestPortal(t, backend.URL)
	client := browser(t)

	// anonymous visitors are bounced from protected views
	expectRedirect(t, client, portal.URL+"/worker", "/")

	resp, err := client.Post(portal.URL+"/session/login", "application/json",
		strings.NewReader(`{"email":"wendy@example.com","password":"pw","remember_me":true}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var login struct {
		Phase      string             `json:"phase"`
		Landing    string             `json:"landing"`
		Navigation []service.NavEntry `json:"navigation"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || login.Phase != "verified" || login.Landing != "/worker" {
		t.Fatalf("unexpected login answer: %d %+v", resp.StatusCode, login)
	}
	if len(login.Navigation) != 4 {
		t.Fatalf("expected 4 worker menu entries, got %+v", login.Navigation)
	}

	var view struct {
		Path string `json:"path"`
	}
	if code := getJSON(t, client, portal.URL+"/worker/jobs", &view); code != http.StatusOK || view.Path != "/worker/jobs" {
		t.Fatalf("worker view: %d %+v", code, view)
	}
	expectRedirect(t, client, portal.URL+"/admin", "/worker")
	expectRedirect(t, client, portal.URL+"/", "/worker")
	expectRedirect(t, client, portal.URL+"/no/such/page", "/worker")

	// the login token is stale at the backend: one refresh, one retry
	var jobs []map[string]any
	if code := getJSON(t, client, portal.URL+"/api/worker/jobs", &jobs); code != http.StatusOK || len(jobs) != 1 {
		t.Fatalf("proxied jobs: %d %+v", code, jobs)
	}
	if refreshes.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", refreshes.Load())
	}

	if code := getJSON(t, client, portal.URL+"/api/auth/profile", nil); code != http.StatusNotFound {
		t.Fatalf("auth area must not be proxied, got %d", code)
	}

	resp, err = client.Post(portal.URL+"/session/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}
	expectRedirect(t, client, portal.URL+"/worker", "/")

	var boot struct {
		Phase   string `json:"phase"`
		Loading bool   `json:"loading"`
	}
	if code := getJSON(t, client, portal.URL+"/session", &boot); code != http.StatusOK || boot.Phase != "logged_out" || boot.Loading {
		t.Fatalf("bootstrap after logout: %d %+v", code, boot)
	}
	var errBody errorResponse
	if code := getJSON(t, client, portal.URL+"/api/worker/jobs", &errBody); code != http.StatusUnauthorized || errBody.Error != "session expired" {
		t.Fatalf("proxy after logout: %d %+v", code, errBody)
	}
}

func TestPortal_LoginValidation(t *testing.T) {
	backend, _ := fakeBackend(t)
	portal := newTestPortal(t, backend.URL)

	resp, err := browser(t).Post(portal.URL+"/session/login", "application/json", strings.NewReader(`{"email":"not-an-email"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body.Error, "email must be a valid email") {
		t.Fatalf("expected a validation error, got %d %+v", resp.StatusCode, body)
	}
}

func TestPortal_HealthNeedsNoCookie(t *testing.T) {
	backend, _ := fakeBackend(t)
	portal := newTestPortal(t, backend.URL)

	resp, err := http.Get(portal.URL + "/health/ready")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(resp.Cookies()) != 0 {
		t.Fatalf("expected 200 without cookies, got %d %v", resp.StatusCode, resp.Cookies())
	}
}
