package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/buemura/scanhub/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newAPIClient(t *testing.T, base string) *apiClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: base, http: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) submit(targetURL, scanType string) int64 {
	c.t.Helper()
	var created struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	status := c.do(http.MethodPost, "/api/scan", map[string]string{"targetUrl": targetURL, "scanType": scanType}, &created)
	require.Equal(c.t, http.StatusCreated, status)
	require.Equal(c.t, "pending", created.Status)
	return created.ID
}

func (c *apiClient) waitForStatus(id int64, want string) map[string]interface{} {
	c.t.Helper()
	var job map[string]interface{}
	require.Eventually(c.t, func() bool {
		job = nil
		if c.do(http.MethodGet, fmt.Sprintf("/api/scan/%d", id), nil, &job) != http.StatusOK {
			return false
		}
		return job["status"] == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func forEachStore(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemory()) })
	t.Run("sqlite", func(t *testing.T) {
		st, err := store.NewSQLite(filepath.Join(t.TempDir(), "scanhub.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		fn(t, st)
	})
}

func TestIntegration_AnonymousScanCompletes(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		srv, _ := newTestServer(t, st)
		ts := httptest.NewServer(srv.Router())
		defer ts.Close()

		c := newAPIClient(t, ts.URL)
		id := c.submit("https://example.com", "quick")

		job := c.waitForStatus(id, "completed")
		assert.Nil(t, job["ownerId"])
		assert.NotNil(t, job["endTime"])
		assert.NotContains(t, job, "vulnerabilities")

		results := job["results"].(map[string]interface{})
		summary := results["summary"].(map[string]interface{})
		total := int(summary["totalVulnerabilities"].(float64))
		assert.GreaterOrEqual(t, total, 1)
		assert.LessOrEqual(t, total, 3)
		assert.Len(t, results["vulnerabilities"], total)

		// Anonymous callers cannot list scans.
		assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/scans", nil, nil))
	})
}

func TestIntegration_OwnerFlow(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		srv, _ := newTestServer(t, st)
		ts := httptest.NewServer(srv.Router())
		defer ts.Close()

		alice := newAPIClient(t, ts.URL)
		status := alice.do(http.MethodPost, "/api/register", map[string]string{
			"username": "alice", "password": "s3cret!", "email": "alice@example.com",
		}, nil)
		require.Equal(t, http.StatusCreated, status)

		id := alice.submit("https://example.com/", "deep")
		job := alice.waitForStatus(id, "completed")

		vulns, ok := job["vulnerabilities"].([]interface{})
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(vulns), 3)
		assert.LessOrEqual(t, len(vulns), 8)
		for _, v := range vulns {
			loc := v.(map[string]interface{})["location"].(string)
			assert.Regexp(t, `^https://example\.com/[a-z]+$`, loc)
		}

		var list []map[string]interface{}
		require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/api/scans", nil, &list))
		require.Len(t, list, 1)
		assert.EqualValues(t, id, list[0]["id"])

		// Another user polls the same job without seeing its records.
		bob := newAPIClient(t, ts.URL)
		require.Equal(t, http.StatusCreated, bob.do(http.MethodPost, "/api/register", map[string]string{
			"username": "bobby", "password": "s3cret!", "email": "bob@example.com",
		}, nil))
		var foreign map[string]interface{}
		require.Equal(t, http.StatusOK, bob.do(http.MethodGet, fmt.Sprintf("/api/scan/%d", id), nil, &foreign))
		assert.NotContains(t, foreign, "vulnerabilities")
		assert.Equal(t, "completed", foreign["status"])

		var bobList []interface{}
		require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/api/scans", nil, &bobList))
		assert.Empty(t, bobList)
	})
}

func TestIntegration_ValidationCreatesNoJob(t *testing.T) {
	srv, _ := newTestServer(t, store.NewMemory())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	c := newAPIClient(t, ts.URL)
	var body map[string]interface{}
	status := c.do(http.MethodPost, "/api/scan", map[string]string{"targetUrl": "not-a-url", "scanType": "quick"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["errors"])

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/scan/1", nil, nil))
}
