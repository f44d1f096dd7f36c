package infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// SecretRemoteToken is the secret-store key holding the remote bearer token.
const SecretRemoteToken = "remote_token"

// Mutation paths on the remote deployment.
const (
	mutationSyncSession    = "stats:syncSession"
	mutationSyncDailyStats = "stats:syncDailyStats"
	mutationSyncIntentions = "stats:syncIntentions"
)

// ErrNoEndpoint is returned when no deployment URL is configured.
var ErrNoEndpoint = errors.New("remote endpoint not configured")

// ConvexConfig holds remote client configuration.
type ConvexConfig struct {
	BaseURL    string        // Deployment URL, e.g. https://happy-otter-123.convex.cloud
	Timeout    time.Duration // Per-request timeout
	RetryCount int           // Transport-level retries for 5xx/429
	RetryWait  time.Duration
	RateLimit  float64 // Requests per second, 0 for unlimited
}

// DefaultConvexConfig returns default remote client configuration.
func DefaultConvexConfig() ConvexConfig {
	return ConvexConfig{
		Timeout:    15 * time.Second,
		RetryCount: 2,
		RetryWait:  500 * time.Millisecond,
		RateLimit:  5,
	}
}

type mutationRequest struct {
	Path   string         `json:"path"`
	Args   map[string]any `json:"args"`
	Format string         `json:"format"`
}

type mutationResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ConvexClient implements domain.RemoteSyncer against the Convex HTTP API.
type ConvexClient struct {
	config  ConvexConfig
	http    *resty.Client
	limiter *rate.Limiter
	secrets domain.SecretStore
	logger  *zap.Logger
}

// NewConvexClient creates a remote client. The bearer token is read from
// secrets on every call so login and logout apply without a restart.
func NewConvexClient(config ConvexConfig, secrets domain.SecretStore, logger *zap.Logger) *ConvexClient {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(4*config.RetryWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "presentd").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &ConvexClient{
		config:  config,
		http:    restyClient,
		limiter: limiter,
		secrets: secrets,
		logger:  logger,
	}
}

func (c *ConvexClient) token() string {
	tok, err := c.secrets.GetSecret(SecretRemoteToken)
	if err != nil {
		return ""
	}
	return tok
}

// Authenticated reports whether a token and an endpoint are configured.
func (c *ConvexClient) Authenticated() bool {
	return c.config.BaseURL != "" && c.token() != ""
}

// Deliver runs the mutation matching kind with payload as its arguments.
func (c *ConvexClient) Deliver(ctx context.Context, kind domain.SyncType, payload []byte) error {
	if c.config.BaseURL == "" {
		return ErrNoEndpoint
	}
	path, err := mutationPath(kind)
	if err != nil {
		return err
	}

	var args map[string]any
	if err := sonic.Unmarshal(payload, &args); err != nil {
		return fmt.Errorf("invalid %s payload: %w", kind, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token()).
		SetBody(mutationRequest{Path: path, Args: args, Format: "json"}).
		Post("/api/mutation")
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s returned http %d: %s", path, resp.StatusCode(), truncate(resp.String(), 200))
	}

	var out mutationResponse
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil {
		return fmt.Errorf("%s returned unreadable body: %w", path, err)
	}
	if out.Status != "success" {
		return fmt.Errorf("%s failed: %s", path, out.ErrorMessage)
	}

	c.logger.Debug("mutation delivered", zap.String("path", path))
	return nil
}

func mutationPath(kind domain.SyncType) (string, error) {
	switch kind {
	case domain.SyncSession:
		return mutationSyncSession, nil
	case domain.SyncDailyStats:
		return mutationSyncDailyStats, nil
	case domain.SyncIntentions:
		return mutationSyncIntentions, nil
	default:
		return "", fmt.Errorf("unknown sync type %q", kind)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DialProbe implements domain.NetworkProbe by opening a TCP connection
// to the remote deployment.
type DialProbe struct {
	address string
	timeout time.Duration
}

// NewDialProbe creates a probe for baseURL. An empty or invalid URL is
// always offline.
func NewDialProbe(baseURL string, timeout time.Duration) *DialProbe {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return &DialProbe{timeout: timeout}
	}
	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return &DialProbe{address: host, timeout: timeout}
}

// Online reports whether the deployment accepts connections.
func (p *DialProbe) Online(ctx context.Context) bool {
	if p.address == "" {
		return false
	}
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

var (
	_ domain.RemoteSyncer = (*ConvexClient)(nil)
	_ domain.NetworkProbe = (*DialProbe)(nil)
)
