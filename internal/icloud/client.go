package icloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const userAgent = "icdrive/0.1"

// Session supplies the authenticated state attached to every request: the
// cookie header value and the per-session query parameters (dsid, clientBuildNumber
// and friends). The sign-in flow that produces it is outside this package.
type Session interface {
	// Attach adds authentication to an outgoing request.
	Attach(req *http.Request)
	// DriveURL returns the base URL of the drive service endpoint.
	DriveURL() string
	// DocsURL returns the base URL of the document-storage endpoint (uploads,
	// download tokens).
	DocsURL() string
}

// Reauthorizer refreshes an expired session. Implementations typically
// revalidate the trust token and rewrite the session file. A nil Reauthorizer
// turns session expiry into a terminal error.
type Reauthorizer interface {
	Reauthorize(ctx context.Context) error
}

// Client is an HTTP client for the iCloud Drive API. It handles request
// construction, session attachment, and error classification. On session
// expiry the failed call is retried exactly once after reauthorization;
// there is no other retry policy.
type Client struct {
	httpClient *http.Client
	session    Session
	reauth     Reauthorizer
	clientID   string
	logger     *slog.Logger
}

// NewClient creates an iCloud Drive API client. reauth may be nil, in which
// case an expired session surfaces as ErrSessionExpired.
func NewClient(httpClient *http.Client, session Session, reauth Reauthorizer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		session:    session,
		reauth:     reauth,
		clientID:   uuid.NewString(),
		logger:     logger,
	}
}

// ClientID returns the per-process client identifier sent with every request.
func (c *Client) ClientID() string {
	return c.clientID
}

// do executes one API request. On ErrSessionExpired it reauthorizes and
// retries the single originating call once. The caller owns the response body.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	resp, err := c.doOnce(ctx, method, rawURL, body)
	if err == nil || c.reauth == nil {
		return resp, err
	}

	if !errors.Is(err, ErrSessionExpired) {
		return nil, err
	}

	c.logger.Info("session expired, reauthorizing",
		slog.String("method", method),
	)

	if reauthErr := c.reauth.Reauthorize(ctx); reauthErr != nil {
		return nil, fmt.Errorf("icloud: reauthorizing: %w", reauthErr)
	}

	return c.doOnce(ctx, method, rawURL, body)
}

// doOnce executes a single HTTP request (no retry) and classifies the status.
func (c *Client) doOnce(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("icloud: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.session.Attach(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("icloud: %s %s: %w", method, req.URL.Path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// postJSON marshals in, POSTs it, and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, rawURL string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("icloud: encoding request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("icloud: decoding response: %w", err)
	}

	return nil
}

// decodeJSON decodes a JSON body into out.
func decodeJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

// driveURL builds a drive-service URL with the client id attached.
func (c *Client) driveURL(path string) string {
	return c.session.DriveURL() + path + "?clientId=" + url.QueryEscape(c.clientID)
}

// docsURL builds a docs-service URL with the client id attached.
func (c *Client) docsURL(path string) string {
	return c.session.DocsURL() + path + "?clientId=" + url.QueryEscape(c.clientID)
}
