package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"keeper-bot/internal/domain"
	"keeper-bot/internal/integrations/paramstore"
)

// ErrNotConfigured reports that no bot token is available in the parameter
// store, so no Telegram call can be attempted.
var ErrNotConfigured = errors.New("telegram: bot token not configured")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("telegram: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// sendMessageRequest is the request shape for the sendMessage endpoint.
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// answerCallbackRequest is the request shape for answerCallbackQuery.
type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
}

// updatesResponse is the getUpdates envelope.
type updatesResponse struct {
	OK     bool            `json:"ok"`
	Result []domain.Update `json:"result"`
}

// Client is a focused Telegram Bot API client covering the three endpoints
// the bot uses. One request per call, no retries.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given paramstore.Getter for
// bot-token retrieval. The token is fetched from SSM on the first call and
// reused for the lifetime of the process.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("telegram: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegram: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     "https://api.telegram.org",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ready resolves the bot token, returning ErrNotConfigured when the
// credential is absent. Cheap after the first call.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.resolveToken(ctx)
	return err
}

// resolveToken fetches the bot token from SSM on the first call and returns
// the cached result on every subsequent call within the same process lifetime.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		raw, err := c.getter.GetParameter(ctx, c.paramPrefix+"/telegram-bot-token")
		if err != nil {
			if errors.Is(err, paramstore.ErrParameterNotFound) {
				c.tokenErr = ErrNotConfigured
				return
			}
			c.tokenErr = fmt.Errorf("telegram: fetch bot token: %w", err)
			return
		}
		token := strings.TrimSpace(raw)
		if token == "" {
			c.tokenErr = ErrNotConfigured
			return
		}
		c.token = token
	})
	return c.token, c.tokenErr
}

func (c *Client) methodURL(token, method string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	return base + "/bot" + token + "/" + method
}

// SendMessage posts one text reply to a chat. A single request, not retried.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("telegram: marshal sendMessage request: %w", err)
	}

	if _, err := c.postJSON(ctx, c.methodURL(token, "sendMessage"), body); err != nil {
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a callback query with no further action.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(answerCallbackRequest{CallbackQueryID: callbackQueryID})
	if err != nil {
		return fmt.Errorf("telegram: marshal answerCallbackQuery request: %w", err)
	}

	if _, err := c.postJSON(ctx, c.methodURL(token, "answerCallbackQuery"), body); err != nil {
		return fmt.Errorf("telegram: answerCallbackQuery: %w", err)
	}
	return nil
}

// GetUpdates fetches queued updates starting at offset. timeoutSec enables
// Telegram's server-side long poll.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]domain.Update, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("timeout", strconv.Itoa(timeoutSec))
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}
	reqURL := c.methodURL(token, "getUpdates") + "?" + q.Encode()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if reqErr != nil {
		return nil, fmt.Errorf("telegram: create getUpdates request: %w", reqErr)
	}

	raw, err := c.doJSONRequest(req, reqURL)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates: %w", err)
	}

	var payload updatesResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return nil, fmt.Errorf("telegram: decode getUpdates response: %w", decErr)
	}
	if !payload.OK {
		return nil, errors.New("telegram: getUpdates returned ok=false")
	}
	return payload.Result, nil
}

func (c *Client) postJSON(ctx context.Context, reqURL string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSONRequest(req, reqURL)
}

func (c *Client) doJSONRequest(req *http.Request, reqURL string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        reqURL,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

// resolvedHTTPClient returns the configured HTTP client, or a default with a
// 10s timeout if none was set.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
