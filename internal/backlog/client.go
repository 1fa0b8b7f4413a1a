package backlog

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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultDomain is the service domain appended to the space name.
	DefaultDomain = "backlog.com"
	// DefaultTimeout bounds a single network exchange.
	DefaultTimeout = 30 * time.Second
	// PageSize is the page length requested by the list helpers.
	PageSize = 100
	// MaxRetries is the number of re-attempts after a 429 response.
	MaxRetries = 3

	formContentType = "application/x-www-form-urlencoded"
)

// Logger receives throttling and retry notices. *zap.Logger and the gofulmen
// logger both satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Config describes how to reach a Backlog space.
type Config struct {
	Space   string
	APIKey  string
	Domain  string
	BaseURL string

	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     Logger
	Clock      func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
}

// Client talks to the Backlog REST API v2.
type Client struct {
	baseURL    *url.URL
	webURL     *url.URL
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     Logger
	limits     *rateLimiter
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}

	base, err := resolveBaseURL(cfg)
	if err != nil {
		return nil, err
	}
	web := *base
	web.Path = strings.TrimSuffix(strings.TrimSuffix(web.Path, "/"), "/api/v2")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var logger Logger = zap.NewNop()
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	return &Client{
		baseURL:    base,
		webURL:     &web,
		apiKey:     apiKey,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
		limits:     newRateLimiter(cfg.Clock, cfg.Sleep, logger),
	}, nil
}

func resolveBaseURL(cfg Config) (*url.URL, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		space := strings.TrimSpace(cfg.Space)
		if space == "" {
			return nil, errors.New("space is required")
		}
		domain := strings.TrimSpace(cfg.Domain)
		if domain == "" {
			domain = DefaultDomain
		}
		raw = fmt.Sprintf("https://%s.%s/api/v2", space, domain)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", raw)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed, nil
}

// BaseURL returns the API root, e.g. https://acme.backlog.com/api/v2.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// IssueURL returns the browser URL of an issue.
func (c *Client) IssueURL(issueKey string) string {
	return c.webURL.String() + "/view/" + url.PathEscape(issueKey)
}

type request struct {
	method   string
	path     string
	category RateCategory
	query    Params
	form     Params
}

type response struct {
	status     int
	statusText string
	header     http.Header
	body       []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// getJSON performs a read-category GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, path string, params Params, out any) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, category: CategoryRead, query: params})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return classify(resp.status, resp.statusText, parseErrorEntries(resp.body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// submitForm performs an update-category request with a form body. An empty
// 2xx body leaves out untouched.
func (c *Client) submitForm(ctx context.Context, method, path string, body Params, out any) error {
	resp, err := c.do(ctx, request{method: method, path: path, category: CategoryUpdate, form: body})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return classify(resp.status, resp.statusText, parseErrorEntries(resp.body))
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do runs one logical call: throttle, send, and retry on 429 up to MaxRetries.
// Responses other than 429 are returned as-is for the caller to classify.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := uuid.NewString()

	for attempt := 0; ; attempt++ {
		if err := c.limits.wait(ctx, req.category); err != nil {
			return nil, transportError(req, err)
		}

		c.logger.Debug("backlog request",
			zap.String("request_id", requestID),
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.String("category", req.category.String()),
			zap.Int("attempt", attempt+1),
		)

		resp, err := c.send(ctx, req)
		if err != nil {
			return nil, transportError(req, err)
		}

		if resp.status != http.StatusTooManyRequests {
			c.limits.observe(req.category, resp.header)
			return resp, nil
		}

		if attempt >= MaxRetries {
			return nil, &Error{
				Message:    "Rate limit exceeded. Max retries reached.",
				StatusCode: http.StatusTooManyRequests,
				Errors:     parseErrorEntries(resp.body),
			}
		}

		wait := retryWait(resp.header.Get(headerRateLimitReset), c.limits.now())
		c.logger.Warn(fmt.Sprintf("Rate limited. Waiting %ds...", int(wait.Round(time.Second)/time.Second)),
			zap.String("request_id", requestID),
			zap.String("category", req.category.String()),
			zap.Duration("wait", wait),
			zap.Int("retry", attempt+1),
		)
		if err := c.limits.sleep(ctx, wait); err != nil {
			return nil, transportError(req, err)
		}
	}
}

// send performs a single network exchange bounded by the client timeout.
func (c *Client) send(ctx context.Context, req request) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := req.query.query()
	query.Set("apiKey", c.apiKey)

	target := *c.baseURL
	target.Path = c.baseURL.Path + req.path
	target.RawQuery = query.Encode()

	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.form().Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if req.method != http.MethodGet {
		httpReq.Header.Set("Content-Type", formContentType)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &response{
		status:     httpResp.StatusCode,
		statusText: statusText(httpResp),
		header:     httpResp.Header,
		body:       payload,
	}, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func transportError(req request, err error) *Error {
	message := fmt.Sprintf("Request failed: %s %s: %v", req.method, req.path, err)
	if errors.Is(err, context.DeadlineExceeded) {
		message = fmt.Sprintf("Request timed out: %s %s", req.method, req.path)
	}
	return &Error{Message: message, StatusCode: 0, Err: err}
}
