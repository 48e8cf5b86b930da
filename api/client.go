package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/gogpu/ggmeme"
)

// DefaultTimeout bounds a single request when the client has no timeout.
const DefaultTimeout = 15 * time.Second

// maxBody bounds a decoded response body.
const maxBody = 8 << 20

// TokenSource supplies the bearer token for protected calls. An empty token
// means the user is logged out. storage.AuthToken implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token returns t.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets the source of bearer tokens.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithClock sets the clock used to check token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is a typed client for the meme backend REST API. Every response
// uses the envelope {ok, error?, ...data}. Requests are never retried.
type Client struct {
	base     *url.URL
	http     *http.Client
	tokens   TokenSource
	now      func() time.Time
	sanitize *bluemonday.Policy
}

// New returns a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:     u,
		http:     &http.Client{Timeout: DefaultTimeout},
		tokens:   StaticToken(""),
		now:      time.Now,
		sanitize: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// clean strips markup from user-entered free text. The policy escapes the
// text it keeps, so the result is unescaped again to stay literal.
func (c *Client) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.sanitize.Sanitize(s)))
}

// bearer returns the token for a protected call, or an auth Error when it
// is missing or its exp claim has passed. The signature is not verified;
// that is the backend's job.
func (c *Client) bearer(ctx context.Context, op string) (string, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return "", &Error{Op: op, Auth: true, Err: err}
	}
	if tok == "" {
		return "", authError(op, "Please log in to continue.")
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		// Opaque tokens are passed through; the backend decides.
		return tok, nil
	}
	if claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		return "", authError(op, "Your session has expired. Please log in again.")
	}
	return tok, nil
}

type envelope struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

// do sends one request and decodes the envelope into out. A nil body sends
// no payload; a nil out discards the data fields.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, auth bool, body, out any) error {
	op := method + " " + path
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: %s: encode body: %w", op, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		tok, err := c.bearer(ctx, op)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: err}
	}
	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || (decodeErr == nil && env.OK != nil && !*env.OK) {
		msg := env.Error
		if msg == "" {
			msg = statusMessage(resp.StatusCode)
		}
		return &Error{
			Op:      op,
			Status:  resp.StatusCode,
			Message: msg,
			Auth:    resp.StatusCode == http.StatusUnauthorized,
		}
	}
	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "Unexpected response from server.", Err: decodeErr}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "Unexpected response from server.", Err: err}
	}
	return nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"username": c.clean(username), "email": strings.TrimSpace(email), "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/register", nil, false, body, &s)
	return s, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, false, body, &s)
	return s, err
}

// Me returns the caller's account and meme counts.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/me", nil, true, nil, &p)
	return p, err
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

type itemResponse[T any] struct {
	Item T `json:"item"`
}

// Memes lists the caller's own memes.
func (c *Client) Memes(ctx context.Context) ([]Meme, error) {
	var r itemsResponse[Meme]
	err := c.do(ctx, http.MethodGet, "/memes", nil, true, nil, &r)
	return r.Items, err
}

// CreateMeme saves a meme and returns its id.
func (c *Client) CreateMeme(ctx context.Context, in MemeInput) (string, error) {
	in.Title = c.clean(in.Title)
	in.Description = c.clean(in.Description)
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = c.clean(t); t != "" {
			tags = append(tags, t)
		}
	}
	in.Tags = tags
	if in.Title == "" {
		return "", invalidError("POST /memes", "A title is required.")
	}
	var r struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/memes", nil, true, in, &r)
	return r.ID, err
}

// UpdateMeme changes the non-nil fields of meme id.
func (c *Client) UpdateMeme(ctx context.Context, id string, up MemeUpdate) (bool, error) {
	if up.Title != nil {
		t := c.clean(*up.Title)
		up.Title = &t
	}
	if up.Description != nil {
		d := c.clean(*up.Description)
		up.Description = &d
	}
	var r struct {
		Updated bool `json:"updated"`
	}
	err := c.do(ctx, http.MethodPut, "/memes/"+url.PathEscape(id), nil, true, up, &r)
	return r.Updated, err
}

// DeleteMeme deletes meme id.
func (c *Client) DeleteMeme(ctx context.Context, id string) (bool, error) {
	var r struct {
		Deleted bool `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/memes/"+url.PathEscape(id), nil, true, nil, &r)
	return r.Deleted, err
}

// PublicMeme fetches one published meme.
func (c *Client) PublicMeme(ctx context.Context, id string) (Meme, error) {
	var r itemResponse[Meme]
	err := c.do(ctx, http.MethodGet, "/memes/public/"+url.PathEscape(id), nil, false, nil, &r)
	return r.Item, err
}

// PublicMemes lists published memes. A limit of zero uses the backend default.
func (c *Client) PublicMemes(ctx context.Context, limit int) ([]Meme, error) {
	var r itemsResponse[Meme]
	err := c.do(ctx, http.MethodGet, "/memes/public", limitQuery(nil, limit), false, nil, &r)
	return r.Items, err
}

// ReportMeme files a complaint about meme id.
func (c *Client) ReportMeme(ctx context.Context, id, reason, details string) error {
	body := map[string]string{"reason": c.clean(reason), "details": c.clean(details)}
	return c.do(ctx, http.MethodPost, "/memes/"+url.PathEscape(id)+"/report", nil, true, body, nil)
}

// ModerationMemes lists memes awaiting or past review. Empty status and zero
// limit are omitted from the query.
func (c *Client) ModerationMemes(ctx context.Context, status string, limit int) ([]Meme, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var r itemsResponse[Meme]
	err := c.do(ctx, http.MethodGet, "/moderation/memes", limitQuery(q, limit), true, nil, &r)
	return r.Items, err
}

// ModerateMeme sets the review status of meme id.
func (c *Client) ModerateMeme(ctx context.Context, id, status, reason string) error {
	body := map[string]string{"status": status}
	if reason = c.clean(reason); reason != "" {
		body["reason"] = reason
	}
	return c.do(ctx, http.MethodPost, "/moderation/memes/"+url.PathEscape(id), nil, true, body, nil)
}

// Reports lists filed reports.
func (c *Client) Reports(ctx context.Context, status string) ([]Report, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var r itemsResponse[Report]
	err := c.do(ctx, http.MethodGet, "/moderation/reports", q, true, nil, &r)
	return r.Items, err
}

// CreateReport files a report from the moderation console.
func (c *Client) CreateReport(ctx context.Context, memeID, reason, details string) (string, error) {
	body := map[string]string{"meme_id": memeID, "reason": c.clean(reason), "details": c.clean(details)}
	var r struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/moderation/reports", nil, true, body, &r)
	return r.ID, err
}

// ReviewReport records the outcome of report id.
func (c *Client) ReviewReport(ctx context.Context, id, status, note string) error {
	body := map[string]string{"status": status}
	if note = c.clean(note); note != "" {
		body["note"] = note
	}
	return c.do(ctx, http.MethodPost, "/moderation/reports/"+url.PathEscape(id), nil, true, body, nil)
}

// Blacklist lists blocked terms.
func (c *Client) Blacklist(ctx context.Context) ([]BlacklistEntry, error) {
	var r itemsResponse[BlacklistEntry]
	err := c.do(ctx, http.MethodGet, "/moderation/blacklist", nil, true, nil, &r)
	return r.Items, err
}

// AddBlacklist blocks term.
func (c *Client) AddBlacklist(ctx context.Context, term, reason string) (string, error) {
	term = c.clean(term)
	if term == "" {
		return "", invalidError("POST /moderation/blacklist", "A term is required.")
	}
	var r struct {
		ID string `json:"id"`
	}
	body := map[string]string{"term": term, "reason": c.clean(reason)}
	err := c.do(ctx, http.MethodPost, "/moderation/blacklist", nil, true, body, &r)
	return r.ID, err
}

// RemoveBlacklist unblocks entry id.
func (c *Client) RemoveBlacklist(ctx context.Context, id string) error {
	q := url.Values{"id": {id}}
	return c.do(ctx, http.MethodDelete, "/moderation/blacklist", q, true, nil, nil)
}

// Telemetry posts a visit beacon. Failures are logged and dropped; it
// never returns an error.
func (c *Client) Telemetry(ctx context.Context, v Visit) {
	err := c.do(ctx, http.MethodPost, "/telemetry/visit", nil, false, v, nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		ggmeme.Logger().Warn("api: telemetry dropped", "err", err)
	}
}

func limitQuery(q url.Values, limit int) url.Values {
	if limit <= 0 {
		return q
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("limit", strconv.Itoa(limit))
	return q
}
