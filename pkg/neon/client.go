package neon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
)

// DefaultBaseURL is the Neon public API.
const DefaultBaseURL = "https://console.neon.tech/api/v2"

// maxResponseBody bounds successful response reads.
const maxResponseBody = 10 << 20

// Source selects the endpoint usage is read from.
type Source string

const (
	SourceProject     Source = "project"     // GET /projects/{id}
	SourceConsumption Source = "consumption" // GET /consumption_history/projects
)

// ParseSource validates a configured source. Empty input yields SourceProject.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceProject:
		return SourceProject, nil
	case SourceConsumption:
		return SourceConsumption, nil
	default:
		return "", fmt.Errorf("source must be %q or %q, got %q", SourceProject, SourceConsumption, s)
	}
}

// Client reads current billing-period usage from the Neon API.
// It makes exactly one request per FetchUsage call and never retries.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	source    Source
	client    *http.Client
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithSource selects the usage endpoint.
func WithSource(s Source) Option {
	return func(c *Client) { c.source = s }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Neon API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		userAgent: "neon-billing-alerts/dev",
		source:    SourceProject,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the configured endpoint.
func (c *Client) Source() Source { return c.source }

// FetchUsage returns the normalized usage snapshot for a project.
func (c *Client) FetchUsage(ctx context.Context, projectID string) (*model.UsageSnapshot, error) {
	switch c.source {
	case SourceConsumption:
		return c.fetchConsumption(ctx, projectID)
	default:
		return c.fetchProject(ctx, projectID)
	}
}

func (c *Client) fetchProject(ctx context.Context, projectID string) (*model.UsageSnapshot, error) {
	endpoint := c.baseURL + "/projects/" + url.PathEscape(projectID)

	var resp projectResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Project == nil {
		return nil, &FetchError{Err: fmt.Errorf("decode project response: missing project object")}
	}

	snap := normalize(projectID, []periodRecord{resp.Project.record()})
	return &snap, nil
}

func (c *Client) fetchConsumption(ctx context.Context, projectID string) (*model.UsageSnapshot, error) {
	now := c.now().UTC()
	from, _ := model.PeriodBounds(now)

	q := url.Values{}
	q.Set("project_ids", projectID)
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", now.Truncate(time.Hour).Add(time.Hour).Format(time.RFC3339))
	q.Set("granularity", "monthly")
	endpoint := c.baseURL + "/consumption_history/projects?" + q.Encode()

	var resp consumptionResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	snap := normalize(projectID, resp.currentRecords(projectID, now))
	return &snap, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Err: fmt.Errorf("create neon request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &FetchError{Err: fmt.Errorf("send neon request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("read neon response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Status: resp.StatusCode, Body: truncate(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Err: fmt.Errorf("decode neon response: %w", err), Body: truncate(body)}
	}
	return nil
}
