package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/project-penguin/notify-console/internal/credstore"
)

// maxResponseBodyRead bounds how much of a backend response we buffer.
// Payloads are small JSON documents; anything larger is truncated.
const maxResponseBodyRead = 1 << 20

// Policy controls which failures are recoverable and where replacement
// tokens are looked for. The retry count is fixed at one.
type Policy struct {
	// RecoverableStatuses are treated as auth failures eligible for
	// token recovery. 401 always; 403 only where the backend is known
	// to use it for stale tokens.
	RecoverableStatuses []int

	// Extractors are applied to a failure response in order; the first
	// non-empty match wins.
	Extractors []Extractor
}

// DefaultPolicy recovers on 401 only and probes, in order, the
// X-Refresh-Token header and the access_token and token body fields.
func DefaultPolicy() Policy {
	return Policy{
		RecoverableStatuses: []int{http.StatusUnauthorized},
		Extractors: []Extractor{
			HeaderExtractor("X-Refresh-Token"),
			BodyExtractor("access_token"),
			BodyExtractor("token"),
		},
	}
}

// recoverable reports whether status counts as an auth failure.
func (p Policy) recoverable(status int) bool {
	for _, s := range p.RecoverableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Outcome is the successful result of a submission.
type Outcome struct {
	// Payload is the decoded backend response body.
	Payload map[string]any
	// Raw is the undecoded body, for rendering.
	Raw json.RawMessage
	// Retried reports whether the outcome came from the recovery retry.
	Retried bool
	// RequestID correlates both attempts in logs and backend traces.
	RequestID string
}

// Dispatcher performs the backend calls for one deployment.
type Dispatcher struct {
	baseURL *url.URL
	client  *http.Client
	policy  Policy
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets a custom HTTP client (timeouts, test transports).
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

// WithPolicy replaces the default recovery policy.
func WithPolicy(policy Policy) Option {
	return func(d *Dispatcher) { d.policy = policy }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a Dispatcher for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Dispatcher, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	d := &Dispatcher{
		baseURL: parsed,
		client:  &http.Client{Timeout: 30 * time.Second},
		policy:  DefaultPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Submit relays the envelope to POST /request, attaching the store's
// credentials, upgrading the stored token from successful responses and
// running the one-shot recovery retry on auth failures.
//
// The returned error is always a *Failure.
func (d *Dispatcher) Submit(ctx context.Context, env *Envelope, creds credstore.Store) (*Outcome, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, &Failure{Class: ClassValidation, Detail: err.Error()}
	}

	requestID := uuid.NewString()
	apiKey := creds.APIKey()
	token := creds.Token()

	resp, body, err := d.send(ctx, payload, apiKey, token, requestID)
	if err != nil {
		return nil, &Failure{Class: ClassTransport, Detail: err.Error()}
	}

	if success(resp.StatusCode) {
		return d.accept(ctx, body, creds, false, requestID), nil
	}

	fail := d.classify(resp.StatusCode, body)
	decoded := decodeBody(body)

	if fail.Class == ClassAuth && token != "" {
		recovered, source := probeResponse(d.policy.Extractors, resp.Header, decoded)
		if recovered == "" {
			// No replacement anywhere in the failure response. The scope
			// decides whether the stale token is dropped.
			creds.Invalidate()
			fail.SessionExpired = true
			d.logger.WarnContext(ctx, "token recovery failed",
				"request_id", requestID,
				"status", resp.StatusCode,
			)
			return nil, fail
		}

		// The recovered token is kept regardless of how the retry ends.
		creds.SetToken(recovered)
		d.logger.InfoContext(ctx, "recovered replacement token, retrying once",
			"request_id", requestID,
			"source", source,
		)

		resp2, body2, err2 := d.send(ctx, payload, apiKey, recovered, requestID)
		if err2 != nil {
			return nil, &Failure{Class: ClassTransport, Detail: err2.Error()}
		}
		if success(resp2.StatusCode) {
			return d.accept(ctx, body2, creds, true, requestID), nil
		}
		return nil, d.classify(resp2.StatusCode, body2)
	}

	// The backend occasionally hands out a token even on failures that
	// are not retried. Salvage it for the next submission.
	if salvaged := probeBody(d.policy.Extractors, decoded); salvaged != "" {
		d.logger.InfoContext(ctx, "token found in failure response", "request_id", requestID)
		creds.SetToken(salvaged)
	}

	return nil, fail
}

// Authenticate exchanges username/password for a bearer token via
// POST /auth. Used by the session-scope login flow; no recovery retry.
func (d *Dispatcher) Authenticate(ctx context.Context, username, password, apiKey string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
		"apiKey":   apiKey,
	})
	if err != nil {
		return "", &Failure{Class: ClassValidation, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL.JoinPath("auth").String(), bytes.NewReader(payload))
	if err != nil {
		return "", &Failure{Class: ClassTransport, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, body, err := d.do(req)
	if err != nil {
		return "", &Failure{Class: ClassTransport, Detail: err.Error()}
	}
	if !success(resp.StatusCode) {
		return "", d.classify(resp.StatusCode, body)
	}

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &auth); err != nil || auth.AccessToken == "" {
		return "", &Failure{Class: ClassUpstream, Status: resp.StatusCode, Detail: "auth response carried no access_token"}
	}
	return auth.AccessToken, nil
}

// Health fetches GET /health without any auth logic.
func (d *Dispatcher) Health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL.JoinPath("health").String(), nil)
	if err != nil {
		return nil, &Failure{Class: ClassTransport, Detail: err.Error()}
	}

	resp, body, err := d.do(req)
	if err != nil {
		return nil, &Failure{Class: ClassTransport, Detail: err.Error()}
	}
	if !success(resp.StatusCode) {
		return nil, d.classify(resp.StatusCode, body)
	}
	return decodeBody(body), nil
}

// send performs one POST /request attempt with the given credentials.
func (d *Dispatcher) send(ctx context.Context, payload []byte, apiKey, token, requestID string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL.JoinPath("request").String(), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return d.do(req)
}

// do executes the request and buffers the response body.
func (d *Dispatcher) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp, body, nil
}

// accept handles a 2xx response: decode the payload and pick up an
// opportunistic token rotation, which applies even when the previous
// token was still valid.
func (d *Dispatcher) accept(ctx context.Context, body []byte, creds credstore.Store, retried bool, requestID string) *Outcome {
	outcome := &Outcome{
		Payload:   decodeBody(body),
		Raw:       body,
		Retried:   retried,
		RequestID: requestID,
	}
	if token := probeBody(d.policy.Extractors, outcome.Payload); token != "" {
		d.logger.InfoContext(ctx, "token rotated by backend", "request_id", requestID)
		creds.SetToken(token)
	}
	return outcome
}

// classify maps a failed response to a typed Failure.
func (d *Dispatcher) classify(status int, body []byte) *Failure {
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = http.StatusText(status)
	}

	class := ClassUpstream
	switch {
	case d.policy.recoverable(status):
		class = ClassAuth
	case status >= 400 && status < 500:
		class = ClassValidation
	}

	return &Failure{Class: class, Status: status, Detail: detail}
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// decodeBody best-effort decodes a JSON object body. Non-object bodies
// yield an empty map; the raw bytes are kept elsewhere for rendering.
func decodeBody(body []byte) map[string]any {
	decoded := map[string]any{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &decoded)
	}
	return decoded
}
