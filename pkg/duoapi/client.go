package duoapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultUserPageSize is the largest page GET /admin/v1/users accepts.
	DefaultUserPageSize = 300
	// DefaultGroupPageSize is the largest page GET /admin/v1/groups accepts.
	DefaultGroupPageSize = 100
)

// Credentials identify an Admin API application.
type Credentials struct {
	IntegrationKey string // "DI..."
	SecretKey      string
	Host           string // "api-xxxxxxxx.duosecurity.com"
}

// Client talks to the Duo Admin API.
type Client struct {
	Credentials Credentials

	// BaseURL defaults to https://<Host>. Tests point it at an httptest server.
	BaseURL    string
	HTTPClient *http.Client

	// Limiter throttles every request, including each page. Nil disables it.
	Limiter *rate.Limiter

	UserAgent     string
	UserPageSize  int
	GroupPageSize int

	now func() time.Time
}

// NewClient creates a client with a 30s request timeout and no throttling.
func NewClient(creds Credentials) *Client {
	return &Client{
		Credentials: creds,
		BaseURL:     "https://" + strings.TrimSuffix(creds.Host, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent:     "duosync",
		UserPageSize:  DefaultUserPageSize,
		GroupPageSize: DefaultGroupPageSize,
		now:           time.Now,
	}
}

// WithRateLimit installs a token bucket allowing rps requests per second.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.Limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// GetUsers returns every user with nested groups, phones and tokens.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	return fetchAll[User](ctx, c, "/admin/v1/users", c.UserPageSize)
}

// GetGroups returns every group.
func (c *Client) GetGroups(ctx context.Context) ([]Group, error) {
	return fetchAll[Group](ctx, c, "/admin/v1/groups", c.GroupPageSize)
}
