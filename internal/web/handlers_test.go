package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-penguin/notify-console/internal/credstore"
	"github.com/project-penguin/notify-console/internal/dispatch"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sessionPolicy() CredentialPolicy {
	return CredentialPolicy{
		SessionScope: true,
		APIKey:       "key-1",
		Cookie:       credstore.CookieOptions{Name: "notify_token", MaxAge: time.Hour},
	}
}

func newTestServer(t *testing.T, backend http.HandlerFunc, policy CredentialPolicy) *Server {
	t.Helper()

	upstream := httptest.NewServer(backend)
	t.Cleanup(upstream.Close)

	d, err := dispatch.New(upstream.URL, dispatch.WithLogger(discardLogger()))
	require.NoError(t, err)

	s, err := New(d, policy, discardLogger())
	require.NoError(t, err)
	return s
}

func validForm() url.Values {
	return url.Values{
		"Application": []string{"calendar"},
		"Recipient":   []string{"user-7"},
		"Message":     []string{"meeting at noon"},
		"OutputType":  []string{"email"},
		"Once":        []string{"on"},
	}
}

func postForm(s *Server, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestRootRedirectsToForm(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {}, CredentialPolicy{APIKey: "key-1"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/request/new", rec.Header().Get("Location"))
}

func TestNewRequestRendersForm(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {}, CredentialPolicy{APIKey: "key-1"})

	req := httptest.NewRequest(http.MethodGet, "/request/new", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="Recipient"`)
	assert.Contains(t, rec.Body.String(), `name="Message"`)
}

func TestSubmitRendersBackendPayload(t *testing.T) {
	var gotAuth, gotKey string
	backend := func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"scheduled","id":42}`))
	}
	s := newTestServer(t, backend, CredentialPolicy{APIKey: "key-1"})

	rec := postForm(s, "/request", validForm())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scheduled")
	assert.Equal(t, "key-1", gotKey)
	assert.Empty(t, gotAuth, "no token held yet")
}

func TestSubmitFormAPIKeyOverride(t *testing.T) {
	var gotKey string
	backend := func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_, _ = w.Write([]byte(`{"status":"scheduled"}`))
	}
	s := newTestServer(t, backend, CredentialPolicy{APIKey: "key-1"})

	form := validForm()
	form.Set("ApiKey", "override-key")
	postForm(s, "/request", form)

	assert.Equal(t, "override-key", gotKey)
}

func TestSubmitValidationErrorSkipsBackend(t *testing.T) {
	called := false
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, CredentialPolicy{APIKey: "key-1"})

	form := validForm()
	form.Del("Recipient")
	rec := postForm(s, "/request", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Recipient")
	assert.False(t, called, "invalid submissions must not reach the backend")
}

func TestSubmitSessionExpiredRedirectsToLogin(t *testing.T) {
	backend := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"expired"}`))
	}
	s := newTestServer(t, backend, sessionPolicy())

	rec := postForm(s, "/request", validForm(), &http.Cookie{Name: "notify_token", Value: "T0"})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestSubmitUpstreamErrorRendersDetail(t *testing.T) {
	backend := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"worker queue unreachable"}`))
	}
	s := newTestServer(t, backend, CredentialPolicy{APIKey: "key-1"})

	rec := postForm(s, "/request", validForm())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "worker queue unreachable")
}

func TestSubmitSessionScopeSetsRotatedCookie(t *testing.T) {
	backend := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"scheduled","access_token":"T1"}`))
	}
	s := newTestServer(t, backend, sessionPolicy())

	rec := postForm(s, "/request", validForm(), &http.Cookie{Name: "notify_token", Value: "T0"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "notify_token", cookies[0].Name)
	assert.Equal(t, "T1", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestHealth(t *testing.T) {
	backend := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	s := newTestServer(t, backend, CredentialPolicy{APIKey: "key-1"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestLoginStoresTokenInCookie(t *testing.T) {
	backend := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth", r.URL.Path)
		_, _ = w.Write([]byte(`{"access_token":"T1"}`))
	}
	s := newTestServer(t, backend, sessionPolicy())

	rec := postForm(s, "/login", url.Values{
		"Username": []string{"alice"},
		"Password": []string{"secret"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/request/new", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "T1", cookies[0].Value)
}

func TestLoginFailureRendersError(t *testing.T) {
	backend := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	}
	s := newTestServer(t, backend, sessionPolicy())

	rec := postForm(s, "/login", url.Values{
		"Username": []string{"alice"},
		"Password": []string{"wrong"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginRoutesAbsentInProcessScope(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {}, CredentialPolicy{APIKey: "key-1"})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutExpiresSessionCookie(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {}, sessionPolicy())

	rec := postForm(s, "/logout", url.Values{}, &http.Cookie{Name: "notify_token", Value: "T0"})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestLogoutClearsSharedToken(t *testing.T) {
	// In process scope the logout drops the token for everyone.
	backend := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"scheduled","access_token":"T1"}`))
	}
	s := newTestServer(t, backend, CredentialPolicy{APIKey: "key-1"})

	postForm(s, "/request", validForm())
	require.Equal(t, "T1", s.shared.Token())

	postForm(s, "/logout", url.Values{})
	assert.Empty(t, s.shared.Token())
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", prettyJSON([]byte(`{"a":1}`)))
	assert.Equal(t, "not json", prettyJSON([]byte("not json")))
}
