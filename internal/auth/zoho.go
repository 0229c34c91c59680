package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/dlib/dtime"

	"github.com/waabox/zohoauth/internal/domain"
)

const (
	deviceCodePath  = "/oauth/v3/device/code"
	deviceTokenPath = "/oauth/v3/device/token"

	defaultTimeout  = 15 * time.Second
	defaultInterval = 10 * time.Second

	maxBodyBytes   = 64 << 10
	maxBodySnippet = 100
)

// ZohoDeviceFlow implements the Zoho accounts variant of the OAuth 2.0 device
// authorization grant. Zoho uses its own grant types (device_request,
// device_token), sends parameters in the query string, and reports a pending
// authorization with HTTP 400.
// See https://www.zoho.com/accounts/protocol/oauth/devices.html
type ZohoDeviceFlow struct {
	creds            domain.Credentials
	baseURL          string
	client           *http.Client
	now              func() time.Time
	sleep            func(ctx context.Context, d time.Duration)
	fallbackInterval time.Duration
	onAttempt        func(PollAttempt)
}

// Option configures a ZohoDeviceFlow.
type Option func(*ZohoDeviceFlow)

// WithHTTPClient replaces the HTTP client. Tests pass httptest clients here.
func WithHTTPClient(c *http.Client) Option {
	return func(f *ZohoDeviceFlow) { f.client = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(f *ZohoDeviceFlow) { f.client = &http.Client{Timeout: d} }
}

// WithClock replaces the wall clock used for IssuedAt and the expiry deadline.
func WithClock(now func() time.Time) Option {
	return func(f *ZohoDeviceFlow) { f.now = now }
}

// WithSleeper replaces the context-aware sleep between polls.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(f *ZohoDeviceFlow) { f.sleep = sleep }
}

// WithFallbackInterval sets the polling interval used when the server does not send one.
func WithFallbackInterval(d time.Duration) Option {
	return func(f *ZohoDeviceFlow) {
		if d > 0 {
			f.fallbackInterval = d
		}
	}
}

// WithAttemptObserver registers fn to be called after every poll that got a response.
func WithAttemptObserver(fn func(PollAttempt)) Option {
	return func(f *ZohoDeviceFlow) { f.onAttempt = fn }
}

// NewZohoDeviceFlow creates a ZohoDeviceFlow against the given accounts server,
// e.g. https://accounts.zoho.eu. Pass a test server URL in tests.
func NewZohoDeviceFlow(creds domain.Credentials, baseURL string, opts ...Option) *ZohoDeviceFlow {
	f := &ZohoDeviceFlow{
		creds:            creds,
		baseURL:          baseURL,
		client:           &http.Client{Timeout: defaultTimeout},
		now:              dtime.Now,
		sleep:            dtime.SleepWithContext,
		fallbackInterval: defaultInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BaseURL returns the accounts server this flow talks to.
func (f *ZohoDeviceFlow) BaseURL() string {
	return f.baseURL
}

// RequestCode requests a device code and user code from the accounts server.
// The returned DeviceAuthorization.UserCode must be shown to the operator along
// with VerificationURL. Presenting them is the caller's job.
func (f *ZohoDeviceFlow) RequestCode(ctx context.Context) (DeviceAuthorization, error) {
	params := url.Values{}
	params.Set("grant_type", "device_request")
	params.Set("client_id", f.creds.ClientID)
	params.Set("scope", f.creds.Scope)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")

	endpoint, err := url.JoinPath(f.baseURL, deviceCodePath)
	if err != nil {
		return DeviceAuthorization{}, fmt.Errorf("building URL: %w", err)
	}

	dlog.Debugf(ctx, "requesting device code from %s (scope %q)", endpoint, f.creds.Scope)
	status, body, err := f.post(ctx, endpoint, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return DeviceAuthorization{}, ctxErr
		}
		return DeviceAuthorization{}, &domain.RequestError{Endpoint: endpoint, Err: err}
	}
	if status < 200 || status > 299 {
		return DeviceAuthorization{}, &domain.RequestError{Endpoint: endpoint, StatusCode: status, Body: snippet(body)}
	}

	var raw struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURL string `json:"verification_url"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
		Error           string `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return DeviceAuthorization{}, &domain.ProtocolError{Reason: fmt.Sprintf("decoding device code response: %v", err)}
	}
	if raw.Error != "" {
		return DeviceAuthorization{}, &domain.RequestError{Endpoint: endpoint, StatusCode: status, Code: raw.Error}
	}

	switch {
	case raw.UserCode == "":
		return DeviceAuthorization{}, &domain.ProtocolError{Field: "user_code", Reason: "is missing"}
	case raw.DeviceCode == "":
		return DeviceAuthorization{}, &domain.ProtocolError{Field: "device_code", Reason: "is missing"}
	case raw.VerificationURL == "":
		return DeviceAuthorization{}, &domain.ProtocolError{Field: "verification_url", Reason: "is missing"}
	case raw.ExpiresIn <= 0:
		return DeviceAuthorization{}, &domain.ProtocolError{Field: "expires_in", Reason: "is missing or not positive"}
	}

	interval := time.Duration(raw.Interval) * time.Second
	if interval <= 0 {
		interval = f.fallbackInterval
	}

	return DeviceAuthorization{
		DeviceCode:      raw.DeviceCode,
		UserCode:        raw.UserCode,
		VerificationURL: raw.VerificationURL,
		Interval:        interval,
		ExpiresIn:       time.Duration(raw.ExpiresIn) * time.Second,
		IssuedAt:        f.now(),
	}, nil
}

// PollToken polls the token endpoint until the operator approves the request,
// the device code expires, or the server reports a fatal condition.
// It waits da.Interval before every attempt, including the first.
// ctx cancels the wait and any in-flight request.
func (f *ZohoDeviceFlow) PollToken(ctx context.Context, da DeviceAuthorization) (TokenResult, error) {
	interval := da.Interval
	if interval <= 0 {
		interval = f.fallbackInterval
	}
	deadline := da.Deadline()

	endpoint, err := url.JoinPath(f.baseURL, deviceTokenPath)
	if err != nil {
		return TokenResult{}, fmt.Errorf("building URL: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", f.creds.ClientID)
	params.Set("client_secret", f.creds.ClientSecret)
	params.Set("grant_type", "device_token")
	params.Set("code", da.DeviceCode)

	for attempt := 1; ; attempt++ {
		f.sleep(ctx, interval)
		if err := ctx.Err(); err != nil {
			return TokenResult{}, err
		}
		if !f.now().Before(deadline) {
			dlog.Debugf(ctx, "device code expired after %d attempts", attempt-1)
			return TokenResult{}, &domain.TimeoutError{ExpiresIn: da.ExpiresIn}
		}

		status, body, err := f.post(ctx, endpoint, params)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return TokenResult{}, ctxErr
			}
			return TokenResult{}, &domain.TransportError{Endpoint: endpoint, Err: err}
		}

		result, pending, err := f.handlePollResponse(ctx, status, body)
		f.notify(PollAttempt{N: attempt, StatusCode: status, Pending: pending, At: f.now()})
		if err != nil {
			return TokenResult{}, err
		}
		if !pending {
			return result, nil
		}
	}
}

// handlePollResponse maps one token endpoint response onto the polling state
// machine. pending=true means keep polling.
func (f *ZohoDeviceFlow) handlePollResponse(ctx context.Context, status int, body []byte) (TokenResult, bool, error) {
	switch status {
	case http.StatusOK:
	case http.StatusBadRequest:
		dlog.Debugf(ctx, "authorization pending (HTTP 400)")
		return TokenResult{}, true, nil
	default:
		return TokenResult{}, false, &domain.PollError{StatusCode: status, Body: snippet(body)}
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		APIDomain    string `json:"api_domain"`
		Error        string `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		dlog.Warnf(ctx, "undecodable token response, continuing to poll: %v", err)
		return TokenResult{}, true, nil
	}

	switch raw.Error {
	case "":
		if raw.AccessToken != "" && raw.RefreshToken != "" {
			return TokenResult{
				AccessToken:  raw.AccessToken,
				RefreshToken: raw.RefreshToken,
				TokenType:    raw.TokenType,
				ExpiresIn:    raw.ExpiresIn,
				APIDomain:    raw.APIDomain,
				IssuedAt:     f.now(),
			}, false, nil
		}
		dlog.Warnf(ctx, "response does not contain required tokens, continuing to poll")
	case "authorization_pending", "slow_down":
		dlog.Debugf(ctx, "authorization pending (%s)", raw.Error)
	case "access_denied":
		return TokenResult{}, false, &domain.DeniedError{Reason: raw.Error}
	case "expired", "expired_token":
		return TokenResult{}, false, &domain.TimeoutError{}
	default:
		dlog.Warnf(ctx, "unexpected error from token endpoint, continuing to poll: %s", snippet([]byte(raw.Error)))
	}
	return TokenResult{}, true, nil
}

func (f *ZohoDeviceFlow) notify(a PollAttempt) {
	if f.onAttempt != nil {
		f.onAttempt(a)
	}
}

// post sends a body-less POST with params in the query string and returns the
// status and (bounded) body. Transport errors never carry the query string, so
// the client secret cannot leak into logs or error messages.
func (f *ZohoDeviceFlow) post(ctx context.Context, endpoint string, params url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, redactURL(err, endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", redactURL(err, endpoint))
	}
	return resp.StatusCode, body, nil
}

func redactURL(err error, endpoint string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = endpoint
	}
	return err
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > maxBodySnippet {
		s = s[:maxBodySnippet]
	}
	return s
}
