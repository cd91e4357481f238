package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vocalis-app/vocalis/internal/log"
)

// Recording is the client-side view of one stored asset.
type Recording struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Filename       string    `json:"filename"`
	FileURL        string    `json:"file_url"`
	SizeBytes      int64     `json:"size_bytes"`
	DurationMillis int64     `json:"duration_ms,omitempty"`
	Degraded       bool      `json:"degraded"`
	CreatedAt      time.Time `json:"created_at"`
}

// Client talks to a discovered server. A request that fails at the
// transport level triggers one discovery refresh and one replay; HTTP
// error statuses are never retried, the server already saw those.
type Client struct {
	disc  *Discovery
	http  *http.Client
	token string
}

// New creates a Client authenticating with the given bearer token.
// httpClient may be nil.
func New(disc *Discovery, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{disc: disc, http: httpClient, token: token}
}

// Health fetches the server's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, http.MethodGet, "/health", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Recordings lists the caller's recordings, newest first.
func (c *Client) Recordings(ctx context.Context) ([]Recording, error) {
	var out struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/audio", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Recordings, nil
}

// Recording fetches one recording by id.
func (c *Client) Recording(ctx context.Context, id string) (Recording, error) {
	var out Recording
	if err := c.call(ctx, http.MethodGet, "/api/audio/"+url.PathEscape(id), nil, "", &out); err != nil {
		return Recording{}, err
	}
	return out, nil
}

// UploadParams describes one upload.
type UploadParams struct {
	Title          string
	Description    string
	Filename       string
	ContentType    string
	DurationMillis int64
	Data           io.Reader
}

// Upload sends one audio file and returns the stored recording. The
// multipart body is buffered in memory so a transport-level retry can
// replay it; recordings are phone-sized, not movie-sized.
func (c *Client) Upload(ctx context.Context, p UploadParams) (Recording, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if p.Title != "" {
		_ = w.WriteField("title", p.Title)
	}
	if p.Description != "" {
		_ = w.WriteField("description", p.Description)
	}
	if p.DurationMillis > 0 {
		_ = w.WriteField("duration_ms", strconv.FormatInt(p.DurationMillis, 10))
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, p.Filename))
	if p.ContentType != "" {
		hdr.Set("Content-Type", p.ContentType)
	}
	part, err := w.CreatePart(hdr)
	if err != nil {
		return Recording{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, p.Data); err != nil {
		return Recording{}, fmt.Errorf("read upload data: %w", err)
	}
	if err := w.Close(); err != nil {
		return Recording{}, fmt.Errorf("finish multipart body: %w", err)
	}

	var out Recording
	if err := c.call(ctx, http.MethodPost, "/api/audio/upload", buf.Bytes(), w.FormDataContentType(), &out); err != nil {
		return Recording{}, err
	}
	return out, nil
}

// Delete removes one recording by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/audio/"+url.PathEscape(id), nil, "", nil)
}

// call performs one operation against the discovered server. On a
// transport failure it refreshes discovery and replays exactly once.
func (c *Client) call(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	logger := log.WithComponent("client")

	base, err := c.disc.BaseURL(ctx)
	if err != nil {
		return &APIError{Sentinel: ErrUnavailable, Operation: method + " " + path, Err: err}
	}

	err = c.doOnce(ctx, base, method, path, body, contentType, out)
	if err == nil || !isTransport(err) || ctx.Err() != nil {
		return err
	}

	logger.Warn().
		Err(err).
		Str(log.FieldEvent, "client.retry").
		Str(log.FieldBaseURL, base).
		Msg("transport failure, rediscovering and replaying once")

	base, derr := c.disc.Refresh(ctx)
	if derr != nil {
		return &APIError{Sentinel: ErrUnavailable, Operation: method + " " + path, Err: derr}
	}
	return c.doOnce(ctx, base, method, path, body, contentType, out)
}

func (c *Client) doOnce(ctx context.Context, base, method, path string, body []byte, contentType string, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, reader)
	if err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		sentinel := ErrRejected
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			sentinel = ErrUnauthorized
		case resp.StatusCode == http.StatusNotFound:
			sentinel = ErrNotFound
		case resp.StatusCode >= 500:
			sentinel = ErrRemote
		}
		return &APIError{Sentinel: sentinel, Operation: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// transportError marks a failure below HTTP: dial, TLS, reset, timeout.
// Only these are worth a rediscovery and replay.
type transportError struct{ err error }

func (e *transportError) Error() string { return "transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}
