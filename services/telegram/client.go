package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/services/metrics"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	DefaultTimeout = 10 * time.Second

	breakerName = "telegram-api"
)

// errTransient marks failures counted by the circuit breaker.
var errTransient = errors.New("transient provider failure")

// callError is returned when no API response was obtained; reason is one of the core.Reason* codes.
type callError struct {
	reason string
	err    error
}

func (e *callError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *callError) Cause() error  { return e.err }

type (
	// TokenSource provides the token of the active credential.
	TokenSource interface {
		CurrentToken(ctx context.Context) (string, error)
	}

	Client struct {
		http    *rest.Client
		baseURL string
		timeout time.Duration
		tokens  TokenSource
		limiter *rate.Limiter
		cb      *gobreaker.CircuitBreaker[*apiResponse]
		logger  core.Logger
	}
)

var _ core.BotGateway = (*Client)(nil)

func NewClient(conf core.BotConfig, tokens TokenSource, logger core.Logger) *Client {
	timeout := conf.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL := strings.TrimRight(conf.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if conf.RateLimit > 0 {
		limit = rate.Limit(conf.RateLimit)
	}
	burst := conf.RateBurst
	if burst <= 0 {
		burst = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Cause(err) != errTransient
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		http:    &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		baseURL: baseURL,
		timeout: timeout,
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
		logger:  logger,
	}
}

// call posts payload to a Bot API method. An error is returned only when no API response was obtained.
func (c *Client) call(ctx context.Context, token, method string, payload interface{}) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.ProviderRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds()) }()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ProviderRequests.WithLabelValues(method, core.ReasonTimeout).Inc()
		return nil, &callError{reason: core.ReasonTimeout, err: errors.Wrap(err, "waiting for rate limiter")}
	}

	req := rest.Request{
		Method:  rest.Get,
		BaseURL: c.baseURL + "/bot" + token + "/" + method,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encoding payload")
		}
		req.Method = rest.Post
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	resp, err := c.cb.Execute(func() (*apiResponse, error) {
		res, err := c.http.SendWithContext(ctx, req)
		if err != nil {
			return nil, errors.Wrap(errTransient, scrubToken(err.Error(), token))
		}
		if res.StatusCode >= http.StatusInternalServerError {
			return nil, errors.Wrapf(errTransient, "status %d", res.StatusCode)
		}
		var apiResp apiResponse
		if err := json.Unmarshal([]byte(res.Body), &apiResp); err != nil {
			return nil, errors.Wrapf(err, "decoding %s response (status %d)", method, res.StatusCode)
		}
		if !apiResp.OK && apiResp.ErrorCode == 0 {
			apiResp.ErrorCode = res.StatusCode
		}
		return &apiResp, nil
	})
	if err != nil {
		reason := failureReason(ctx, err)
		metrics.ProviderRequests.WithLabelValues(method, reason).Inc()
		return nil, &callError{reason: reason, err: err}
	}
	result := "ok"
	if !resp.OK {
		result = "rejected"
	}
	metrics.ProviderRequests.WithLabelValues(method, result).Inc()
	return resp, nil
}

// VerifyCredential checks the token with getMe.
func (c *Client) VerifyCredential(ctx context.Context, token string) (core.BotIdentity, error) {
	resp, err := c.call(ctx, token, methodGetMe, nil)
	if err != nil {
		return core.BotIdentity{}, errors.Wrap(core.ErrProviderUnreachable, err.Error())
	}
	if !resp.OK {
		return core.BotIdentity{}, core.ErrInvalidCredential
	}
	var me apiUser
	if err = json.Unmarshal(resp.Result, &me); err != nil || me.Username == "" {
		return core.BotIdentity{}, core.ErrInvalidCredential
	}
	return core.BotIdentity{ID: me.ID, Username: me.Username}, nil
}

// Send sends an HTML text message with the active credential. Failures are reported in the Delivery.
func (c *Client) Send(ctx context.Context, chatID, text string) core.Delivery {
	token, err := c.tokens.CurrentToken(ctx)
	if err != nil {
		if errors.Cause(err) != credential.ErrNoActiveCredential {
			c.logger.Error("reading active credential", err)
		}
		metrics.ProviderRequests.WithLabelValues(methodSendMessage, core.ReasonNoCredential).Inc()
		return core.Undeliverable(core.ReasonNoCredential)
	}

	resp, err := c.call(ctx, token, methodSendMessage, sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		c.logger.Warn(fmt.Sprintf("sending message to chat %s", chatID), err)
		reason := core.ReasonUnreachable
		var ce *callError
		if errors.As(err, &ce) {
			reason = ce.reason
		}
		return core.Undeliverable(reason)
	}
	if !resp.OK {
		reason := classifyAPIError(resp.ErrorCode, resp.Description)
		c.logger.Warn(fmt.Sprintf("message to chat %s rejected: %d %s", chatID, resp.ErrorCode, resp.Description))
		return core.Undeliverable(reason)
	}
	return core.Delivered()
}

// RegisterWebhook points the provider to url; the provider treats re-registering the same url as a no-op.
func (c *Client) RegisterWebhook(ctx context.Context, url, secret string) error {
	if !strings.HasPrefix(url, "https://") {
		return errors.Errorf("webhook url must use https: %s", url)
	}
	token, err := c.tokens.CurrentToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.call(ctx, token, methodSetWebhook, setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return errors.Wrap(core.ErrProviderUnreachable, err.Error())
	}
	if !resp.OK {
		return errors.Errorf("setWebhook rejected: %d %s", resp.ErrorCode, resp.Description)
	}
	return nil
}

func failureReason(ctx context.Context, err error) string {
	cause := errors.Cause(err)
	switch {
	case cause == gobreaker.ErrOpenState, cause == gobreaker.ErrTooManyRequests:
		return core.ReasonCircuitOpen
	case ctx.Err() != nil, cause == context.DeadlineExceeded, isTimeout(err):
		return core.ReasonTimeout
	default:
		return core.ReasonUnreachable
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "deadline exceeded")
}

func classifyAPIError(code int, description string) string {
	desc := strings.ToLower(description)
	switch code {
	case http.StatusBadRequest:
		if strings.Contains(desc, "chat not found") {
			return core.ReasonChatNotFound
		}
		if strings.Contains(desc, "blocked") || strings.Contains(desc, "deactivated") {
			return core.ReasonBlocked
		}
		return core.ReasonRejected
	case http.StatusForbidden:
		return core.ReasonBlocked
	case http.StatusTooManyRequests:
		return core.ReasonRateLimited
	default:
		return core.ReasonRejected
	}
}

// scrubToken keeps the bot token out of logs; transport errors embed the request url.
func scrubToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}
