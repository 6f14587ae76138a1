package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/project-penguin/notify-console/internal/credstore"
	"github.com/project-penguin/notify-console/internal/dispatch"
)

// handleNewRequest renders the empty scheduling form.
func (s *Server) handleNewRequest(w http.ResponseWriter, r *http.Request) {
	s.views.render(w, r, "new_request.html", formPage{
		Form:         url.Values{},
		SessionScope: s.policy.SessionScope,
	})
}

// handleSubmit relays a form submission to the backend and renders
// exactly one of: the success payload, the failure detail, or a redirect
// to re-authenticate.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	page := formPage{Form: r.PostForm, SessionScope: s.policy.SessionScope}

	env, err := dispatch.ParseForm(r.PostForm)
	if err != nil {
		page.Errors = err.Error()
		s.views.render(w, r, "new_request.html", page)
		return
	}
	if err := env.Validate(); err != nil {
		page.Errors = validationDetail(err)
		s.views.render(w, r, "new_request.html", page)
		return
	}

	creds := credstore.OverrideAPIKey(
		s.credentials(w, r),
		strings.TrimSpace(r.PostForm.Get("ApiKey")),
	)

	outcome, err := s.dispatcher.Submit(r.Context(), env, creds)
	if err != nil {
		var fail *dispatch.Failure
		if errors.As(err, &fail) && fail.SessionExpired && s.policy.SessionScope {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		page.Errors = err.Error()
		s.views.render(w, r, "new_request.html", page)
		return
	}

	page.Result = prettyJSON(outcome.Raw)
	s.views.render(w, r, "new_request.html", page)
}

// handleHealth passes the backend health state through to the view.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.dispatcher.Health(r.Context())
	if err != nil {
		health = map[string]any{"status": "error", "detail": err.Error()}
	}
	s.views.render(w, r, "health.html", healthPage{Health: health})
}

// handleLoginForm renders the login page (session scope only).
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.views.render(w, r, "login.html", loginPage{})
}

// handleLogin exchanges credentials for a bearer token and stores it in
// the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	apiKey := strings.TrimSpace(r.PostForm.Get("ApiKey"))
	if apiKey == "" {
		apiKey = s.policy.APIKey
	}

	token, err := s.dispatcher.Authenticate(r.Context(),
		r.PostForm.Get("Username"),
		r.PostForm.Get("Password"),
		apiKey,
	)
	if err != nil {
		s.views.render(w, r, "login.html", loginPage{Error: err.Error()})
		return
	}

	s.credentials(w, r).SetToken(token)
	http.Redirect(w, r, "/request/new", http.StatusSeeOther)
}

// handleLogout clears the stored token for the caller's scope.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.credentials(w, r).SetToken("")
	http.Redirect(w, r, "/request/new", http.StatusSeeOther)
}
