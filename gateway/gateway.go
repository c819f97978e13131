package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// devToken is used when no token file is present, for local
	// development against a backend that accepts it
	devToken = "dev-placeholder-token"

	defaultMaxRetries = 2
	backoffUnit       = time.Second
)

// Config represents a gateway configuration
type Config struct {
	// BaseURL is the CA-DMS backend base URL
	BaseURL string
	// TokenFile is the path holding the bearer token
	TokenFile string
	// DevMode short-circuits all fetches to fixed mock payloads
	DevMode bool
	// HTTPClient overrides the default http client
	HTTPClient *http.Client
	// MaxRetries caps retries of transient failures
	MaxRetries int
	// Sleep overrides the backoff sleep, for tests
	Sleep func(time.Duration)
}

// New returns a new gateway Client instance
func New(c Config) (*Client, error) {
	if c.BaseURL == "" && !c.DevMode {
		return nil, errors.New("backend base URL not provided")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid backend base URL")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	return &Client{
		baseURL:    c.BaseURL,
		token:      readToken(c.TokenFile),
		devMode:    c.DevMode,
		http:       httpClient,
		maxRetries: maxRetries,
		sleep:      sleep,
	}, nil
}

// Client fetches dashboard data slices from the CA-DMS backend and
// transforms them into the client-canonical shapes.
type Client struct {
	baseURL    string
	token      string
	devMode    bool
	http       *http.Client
	maxRetries int
	sleep      func(time.Duration)
}

func readToken(tokenFile string) string {
	if tokenFile == "" {
		return devToken
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		log.Debugf("token file not readable, using development token: %s", err)
		return devToken
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return devToken
	}
	return token
}

// Dashboard fetches the aggregate per-user dashboard payload. When the
// backend reports itself unavailable the degraded fallback payload is
// returned instead of an error so consumers can render defaults.
func (c *Client) Dashboard(ctx context.Context, userID string) (*DashboardData, error) {
	if userID == "" {
		return nil, &ParameterError{Name: "userID"}
	}
	if c.devMode {
		return mockDashboard(userID), nil
	}

	var dto dashboardDTO
	err := c.get(ctx, path.Join("/api/v1/dashboard", userID), &dto)
	if errors.Cause(err) == ErrServiceUnavailable {
		log.Infof("backend unavailable, serving fallback dashboard for %s", userID)
		return fallbackDashboard(userID), nil
	}
	if err != nil {
		return nil, err
	}

	return dto.transform()
}

// SystemOverview fetches the system-wide overview slice.
func (c *Client) SystemOverview(ctx context.Context) (*SystemOverview, error) {
	if c.devMode {
		return mockSystemOverview(), nil
	}

	var dto systemOverviewDTO
	if err := c.get(ctx, "/api/v1/overview", &dto); err != nil {
		return nil, err
	}
	overview := dto.transform()

	return &overview, nil
}

// UserStatistics fetches one user's statistics slice.
func (c *Client) UserStatistics(ctx context.Context, userID string) (*UserStatistics, error) {
	if userID == "" {
		return nil, &ParameterError{Name: "userID"}
	}
	if c.devMode {
		return mockUserStatistics(), nil
	}

	var dto userStatisticsDTO
	if err := c.get(ctx, path.Join("/api/v1/stats", userID), &dto); err != nil {
		return nil, err
	}

	return dto.transform()
}

// ActionableItems fetches the items awaiting action from the user.
func (c *Client) ActionableItems(ctx context.Context, userID string) ([]ActionableItem, error) {
	if userID == "" {
		return nil, &ParameterError{Name: "userID"}
	}
	if c.devMode {
		return mockActionableItems(userID), nil
	}

	var dtos []actionableItemDTO
	if err := c.get(ctx, path.Join("/api/v1/actionable", userID), &dtos); err != nil {
		return nil, err
	}

	items := make([]ActionableItem, 0, len(dtos))
	for _, dto := range dtos {
		item, err := dto.transform()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ActivityFeed fetches the recent activity slice.
func (c *Client) ActivityFeed(ctx context.Context, userID string) ([]ActivityEntry, error) {
	if userID == "" {
		return nil, &ParameterError{Name: "userID"}
	}
	if c.devMode {
		return mockActivityFeed(userID), nil
	}

	var dtos []activityEntryDTO
	if err := c.get(ctx, path.Join("/api/v1/activity", userID), &dtos); err != nil {
		return nil, err
	}

	feed := make([]ActivityEntry, 0, len(dtos))
	for _, dto := range dtos {
		entry, err := dto.transform()
		if err != nil {
			return nil, err
		}
		feed = append(feed, entry)
	}
	return feed, nil
}

// Personalization fetches a user's dashboard settings.
func (c *Client) Personalization(ctx context.Context, userID string) (*Personalization, error) {
	if userID == "" {
		return nil, &ParameterError{Name: "userID"}
	}
	if c.devMode {
		return mockPersonalization(userID), nil
	}

	var dto personalizationDTO
	if err := c.get(ctx, path.Join("/api/v1/personalization", userID), &dto); err != nil {
		return nil, err
	}

	return dto.transform()
}

// UpdatePersonalization pushes updated dashboard settings for a user.
func (c *Client) UpdatePersonalization(ctx context.Context, userID string, p *Personalization) error {
	if userID == "" {
		return &ParameterError{Name: "userID"}
	}
	if p == nil {
		return &ParameterError{Name: "personalization"}
	}
	if c.devMode {
		return nil
	}

	return c.do(ctx, http.MethodPut, path.Join("/api/v1/personalization", userID), p.toDTO(), nil)
}

// get performs a GET request with retry on transient failures.
func (c *Client) get(ctx context.Context, reqPath string, out any) error {
	return c.do(ctx, http.MethodGet, reqPath, nil, out)
}

// do performs a request, retrying transient failures with linear
// backoff (delay = attempt * 1s). Validation, parameter, unreachable
// and service-unavailable errors fail on the first attempt.
func (c *Client) do(ctx context.Context, method, reqPath string, body, out any) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.doOnce(ctx, method, reqPath, body, out)
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt >= c.maxRetries {
			return err
		}
		delay := time.Duration(attempt+1) * backoffUnit
		log.Debugf("retrying %s %s in %s: %s", method, reqPath, delay, err)
		c.sleep(delay)
	}
}

func (c *Client) doOnce(ctx context.Context, method, reqPath string, body, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "failed to parse backend base URL")
	}
	u.Path = path.Join(u.Path, reqPath)

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create backend request")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyNetError(method, reqPath, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	case resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusGatewayTimeout ||
		resp.StatusCode == http.StatusInternalServerError:
		return &TransientError{Op: reqPath, Err: errors.Errorf("backend returned status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return errors.Errorf("backend request %s failed with status %d", reqPath, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode backend response")
	}
	return nil
}

// classifyNetError distinguishes timeouts (retryable) from an
// unreachable backend (fail fast).
func classifyNetError(method, reqPath string, err error) error {
	cause := errors.Cause(err)
	if ne, ok := cause.(net.Error); ok && ne.Timeout() {
		return &TransientError{Op: fmt.Sprintf("%s %s", method, reqPath), Err: err}
	}
	if ue, ok := cause.(*url.Error); ok {
		if ne, ok := ue.Err.(net.Error); ok && ne.Timeout() {
			return &TransientError{Op: fmt.Sprintf("%s %s", method, reqPath), Err: err}
		}
	}
	return errors.Wrapf(ErrUnreachable, "%s %s: %s", method, reqPath, err)
}

// fallbackDashboard returns the degraded default payload served while
// the backend is unavailable. All counters are zero-valued, never
// absent.
func fallbackDashboard(userID string) *DashboardData {
	return &DashboardData{
		UserID:         userID,
		LastUpdated:    time.Now(),
		UserStatistics: UserStatistics{},
		SystemOverview: SystemOverview{},
		RecentActivity: []ActivityEntry{},
		FallbackMode:   true,
	}
}
