package neon_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/neon"
)

const testKey = "napi_secret_key"

func newServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchUsage_Project(t *testing.T) {
	body := `{
		"project": {
			"id": "proj-123",
			"compute_time_seconds": 180000,
			"data_storage_bytes_hour": 783831531520,
			"data_transfer_bytes": 1073741824,
			"consumption_period_start": "2026-10-01T00:00:00Z",
			"consumption_period_end": "2026-11-01T00:00:00Z",
			"owner": {"subscription_type": "Scale"}
		}
	}`
	server := newServer(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/projects/proj-123", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "neon-billing-alerts/test", r.Header.Get("User-Agent"))
	})

	c := neon.NewClient(testKey, neon.WithBaseURL(server.URL+"/"), neon.WithUserAgent("neon-billing-alerts/test"))
	snap, err := c.FetchUsage(context.Background(), "proj-123")
	require.NoError(t, err)

	assert.Equal(t, "proj-123", snap.ProjectID)
	assert.Equal(t, "scale", snap.Plan)
	assert.Equal(t, 180000.0, snap.ComputeTimeSeconds)
	assert.Equal(t, 783831531520.0, snap.StorageBytesHour)
	assert.Equal(t, 1073741824.0, snap.EgressBytes)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), snap.PeriodStart)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), snap.PeriodEnd)
	assert.Equal(t, 1, snap.Records)
}

func TestFetchUsage_Project_Tolerant(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		compute float64
		egress  float64
		plan    string
	}{
		{
			name: "missing fields",
			body: `{"project": {"id": "p"}}`,
		},
		{
			name: "null fields",
			body: `{"project": {"compute_time_seconds": null, "data_storage_bytes_hour": null,
				"data_transfer_bytes": null, "consumption_period_start": null, "owner": null}}`,
		},
		{
			name: "zero fields",
			body: `{"project": {"compute_time_seconds": 0, "data_transfer_bytes": 0}}`,
		},
		{
			name:    "numeric strings",
			body:    `{"project": {"compute_time_seconds": "3600", "data_transfer_bytes": "2048"}}`,
			compute: 3600, egress: 2048,
		},
		{
			name:    "negative values clamp to zero",
			body:    `{"project": {"compute_time_seconds": -10, "data_transfer_bytes": 5}}`,
			compute: 0, egress: 5,
		},
		{
			name: "unparseable timestamps are ignored",
			body: `{"project": {"consumption_period_start": "last tuesday", "owner": {"subscription_type": "launch"}}}`,
			plan: "launch",
		},
		{
			name: "unknown fields",
			body: `{"project": {"compute_time_seconds": 1, "branch_logical_size_limit": 3072}, "extra": true}`,
			compute: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newServer(t, http.StatusOK, tt.body, nil)
			c := neon.NewClient(testKey, neon.WithBaseURL(server.URL))

			snap, err := c.FetchUsage(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, tt.compute, snap.ComputeTimeSeconds)
			assert.Equal(t, tt.egress, snap.EgressBytes)
			assert.Zero(t, snap.StorageBytesHour)
			assert.Equal(t, tt.plan, snap.Plan)
			assert.True(t, snap.PeriodStart.IsZero())
		})
	}
}

func TestFetchUsage_Consumption_SumsCurrentPeriods(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	body := `{
		"projects": [{
			"project_id": "proj-123",
			"periods": [
				{
					"period_id": "b", "period_plan": "scale",
					"period_start": "2026-10-15T00:00:00Z", "period_end": null,
					"consumption": [{"compute_time_seconds": 200, "data_transfer_bytes": 10}]
				},
				{
					"period_id": "a", "period_plan": "launch",
					"period_start": "2026-10-01T00:00:00Z", "period_end": "2026-11-01T00:00:00Z",
					"consumption": [{"compute_time_seconds": 100, "data_storage_bytes_hour": "7"}]
				},
				{
					"period_id": "old", "period_plan": "launch",
					"period_start": "2026-09-01T00:00:00Z", "period_end": "2026-10-01T00:00:00Z",
					"consumption": [{"compute_time_seconds": 99999}]
				}
			]
		}]
	}`
	server := newServer(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "/consumption_history/projects", r.URL.Path)
		assert.Equal(t, "proj-123", r.URL.Query().Get("project_ids"))
		assert.Equal(t, "monthly", r.URL.Query().Get("granularity"))
		assert.Equal(t, "2026-10-01T00:00:00Z", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-10-19T13:00:00Z", r.URL.Query().Get("to"))
	})

	c := neon.NewClient(testKey,
		neon.WithBaseURL(server.URL),
		neon.WithSource(neon.SourceConsumption),
		neon.WithClock(func() time.Time { return now }),
	)
	snap, err := c.FetchUsage(context.Background(), "proj-123")
	require.NoError(t, err)

	assert.Equal(t, 300.0, snap.ComputeTimeSeconds)
	assert.Equal(t, 7.0, snap.StorageBytesHour)
	assert.Equal(t, 10.0, snap.EgressBytes)
	assert.Equal(t, 2, snap.Records)
	assert.Equal(t, "scale", snap.Plan, "plan of the latest period wins")
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), snap.PeriodStart)
	assert.True(t, snap.PeriodEnd.IsZero(), "an open period keeps the window open")
}

func TestFetchUsage_Consumption_Empty(t *testing.T) {
	server := newServer(t, http.StatusOK, `{"projects": []}`, nil)
	c := neon.NewClient(testKey, neon.WithBaseURL(server.URL), neon.WithSource(neon.SourceConsumption))

	snap, err := c.FetchUsage(context.Background(), "proj-123")
	require.NoError(t, err)
	assert.Zero(t, snap.ComputeTimeSeconds)
	assert.Zero(t, snap.Records)
}

func TestFetchUsage_Consumption_IgnoresOtherProjects(t *testing.T) {
	body := `{"projects": [
		{"project_id": "other", "periods": [{"period_id": "x", "consumption": [{"compute_time_seconds": 50}]}]},
		{"project_id": "mine", "periods": [{"period_id": "y", "consumption": [{"compute_time_seconds": 5}]}]}
	]}`
	server := newServer(t, http.StatusOK, body, nil)
	c := neon.NewClient(testKey, neon.WithBaseURL(server.URL), neon.WithSource(neon.SourceConsumption))

	snap, err := c.FetchUsage(context.Background(), "mine")
	require.NoError(t, err)
	assert.Equal(t, 5.0, snap.ComputeTimeSeconds)
}

func TestFetchUsage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		auth   bool
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"invalid api key"}`, true, "authentication failed (status 401)"},
		{"forbidden", http.StatusForbidden, `{"message":"not allowed"}`, true, "authentication failed (status 403)"},
		{"not found", http.StatusNotFound, `{"message":"project not found"}`, false, "status 404"},
		{"server error", http.StatusInternalServerError, `oops`, false, "status 500: oops"},
		{"malformed body", http.StatusOK, `{"project": [`, false, "decode neon response"},
		{"bad number", http.StatusOK, `{"project": {"compute_time_seconds": "lots"}}`, false, "decode neon response"},
		{"missing project", http.StatusOK, `{}`, false, "missing project object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newServer(t, tt.status, tt.body, nil)
			c := neon.NewClient(testKey, neon.WithBaseURL(server.URL))

			_, err := c.FetchUsage(context.Background(), "p")
			require.Error(t, err)

			var fetchErr *neon.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, tt.auth, fetchErr.IsAuth())
			assert.Contains(t, err.Error(), tt.msg)
			assert.NotContains(t, err.Error(), testKey)
		})
	}
}

func TestFetchUsage_ErrorBodyTruncated(t *testing.T) {
	long := make([]byte, 4096)
	for i := range long {
		long[i] = 'x'
	}
	server := newServer(t, http.StatusBadGateway, string(long), nil)
	c := neon.NewClient(testKey, neon.WithBaseURL(server.URL))

	_, err := c.FetchUsage(context.Background(), "p")
	var fetchErr *neon.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusBadGateway, fetchErr.Status)
	assert.Less(t, len(fetchErr.Body), 600)
}

func TestFetchUsage_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := neon.NewClient(testKey, neon.WithBaseURL(url), neon.WithTimeout(time.Second))
	_, err := c.FetchUsage(context.Background(), "p")

	var fetchErr *neon.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.Status)
	assert.Contains(t, err.Error(), "send neon request")
}

func TestFetchUsage_SingleAttempt(t *testing.T) {
	calls := 0
	server := newServer(t, http.StatusServiceUnavailable, "", func(*http.Request) { calls++ })
	c := neon.NewClient(testKey, neon.WithBaseURL(server.URL))

	_, err := c.FetchUsage(context.Background(), "p")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestParseSource(t *testing.T) {
	s, err := neon.ParseSource("")
	require.NoError(t, err)
	assert.Equal(t, neon.SourceProject, s)

	s, err = neon.ParseSource(" Consumption ")
	require.NoError(t, err)
	assert.Equal(t, neon.SourceConsumption, s)

	_, err = neon.ParseSource("billing")
	assert.Error(t, err)
}
