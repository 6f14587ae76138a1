package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticRoot embed.FS

// staticFS serves the embedded assets without the "static/" prefix.
var staticFS = func() fs.FS {
	sub, err := fs.Sub(staticRoot, "static")
	if err != nil {
		panic("static assets: " + err.Error())
	}
	return sub
}()

// views holds the parsed page templates.
type views struct {
	t *template.Template
}

func newViews() (*views, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &views{t: t}, nil
}

// render writes a page, falling back to a plain 500 if template
// execution fails mid-write.
func (v *views) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := v.t.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "template execution failed", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// formPage is the data for the new-request view.
type formPage struct {
	Errors       string
	Result       string
	Form         url.Values
	SessionScope bool
}

// healthPage is the data for the health view.
type healthPage struct {
	Health map[string]any
}

// loginPage is the data for the login view.
type loginPage struct {
	Error string
}

// prettyJSON formats a raw payload for display, passing non-JSON input
// through unchanged.
func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// validationDetail flattens validator errors into one readable line per
// field for the form error box.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+": "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
