package acrcloud

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"acrscan/internal/services"
)

const (
	identifyPath     = "/v1/identify"
	dataType         = "audio"
	signatureVersion = "1"

	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// Config captures the credentials and endpoint of an ACRCloud project.
type Config struct {
	Host         string
	AccessKey    string
	AccessSecret string
	Timeout      time.Duration
}

// Client wraps the identify endpoint.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL points the client at a full base URL instead of https://<host>.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithClock overrides the timestamp source used for signing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a client for the configured project.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		cfg: Config{
			Host:         strings.TrimSpace(cfg.Host),
			AccessKey:    strings.TrimSpace(cfg.AccessKey),
			AccessSecret: strings.TrimSpace(cfg.AccessSecret),
			Timeout:      timeout,
		},
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	client.baseURL = "https://" + client.cfg.Host
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError reports a non-2xx HTTP reply.
type StatusError struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("acrcloud identify: http %d: %s", e.StatusCode, e.Body)
}

// RetryAfter returns the server supplied Retry-After delay, if any.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Delay
}

// Identify uploads one audio sample and returns the decoded reply together
// with the raw body. Only transport and HTTP failures are errors here;
// callers inspect Response.Status with CodeError.
func (c *Client) Identify(ctx context.Context, sample []byte) (Response, []byte, error) {
	if len(sample) == 0 {
		return Response{}, nil, services.Wrap(services.ErrValidation, "acrcloud", "identify", "empty sample", nil)
	}
	if c.cfg.AccessKey == "" || c.cfg.AccessSecret == "" {
		return Response{}, nil, services.Wrap(services.ErrConfiguration, "acrcloud", "identify", "access key and secret are required", nil)
	}

	body, contentType, err := c.encodeRequest(sample)
	if err != nil {
		return Response{}, nil, services.Wrap(services.ErrValidation, "acrcloud", "identify", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+identifyPath, body)
	if err != nil {
		return Response{}, nil, services.Wrap(services.ErrConfiguration, "acrcloud", "identify", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, nil, ctxErr
		}
		return Response{}, nil, services.Wrap(services.ErrTransient, "acrcloud", "identify", fmt.Sprintf("http error (timeout=%s)", c.cfg.Timeout), err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, nil, services.Wrap(services.ErrTransient, "acrcloud", "identify", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, payload, classifyStatus(resp, payload)
	}

	decoded, err := Decode(payload)
	if err != nil {
		return Response{}, payload, services.Wrap(services.ErrMalformed, "acrcloud", "identify", "decode response", err)
	}
	return decoded, payload, nil
}

func classifyStatus(resp *http.Response, payload []byte) error {
	body := strings.TrimSpace(string(payload))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: body}
	statusErr.Delay, _ = parseRetryAfter(resp.Header.Get("Retry-After"))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "acrcloud", "identify", "", statusErr)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "acrcloud", "identify", "credentials rejected", statusErr)
	default:
		return services.Wrap(services.ErrValidation, "acrcloud", "identify", "", statusErr)
	}
}

func (c *Client) encodeRequest(sample []byte) (io.Reader, string, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	fields := [][2]string{
		{"access_key", c.cfg.AccessKey},
		{"sample_bytes", strconv.Itoa(len(sample))},
		{"data_type", dataType},
		{"signature_version", signatureVersion},
		{"signature", Sign(c.cfg.AccessKey, c.cfg.AccessSecret, timestamp)},
		{"timestamp", timestamp},
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := writer.CreateFormFile("sample", "sample.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sample); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// Sign returns the base64 HMAC-SHA1 request signature for timestamp.
func Sign(accessKey, accessSecret, timestamp string) string {
	toSign := strings.Join([]string{http.MethodPost, identifyPath, accessKey, dataType, signatureVersion, timestamp}, "\n")
	mac := hmac.New(sha1.New, []byte(accessSecret))
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// IsStatus reports whether err carries an HTTP reply with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
