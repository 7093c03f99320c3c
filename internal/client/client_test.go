package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buemura/scanhub/internal/auth"
	"github.com/buemura/scanhub/internal/jobs"
	"github.com/buemura/scanhub/internal/scanner"
	"github.com/buemura/scanhub/internal/store"
	"github.com/buemura/scanhub/internal/web"
	"github.com/buemura/scanhub/pkg/types"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*httptest.Server, *auth.Manager) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	st := store.NewMemory()
	reg := scanner.NewRegistry(scanner.DefaultProfiles(20*time.Millisecond, 40*time.Millisecond)...)
	mgr := jobs.NewManager(st, reg, scanner.NewSimulated(3, nil), jobs.WithLogger(logger), jobs.WithDispatchDelay(5*time.Millisecond))
	t.Cleanup(mgr.Close)
	am := auth.NewManager(st, []byte("0123456789abcdef0123456789abcdef"), auth.WithLogger(logger), auth.WithBcryptCost(bcrypt.MinCost))

	ts := httptest.NewServer(web.NewServer(":0", mgr, st, am, logger).Router())
	t.Cleanup(ts.Close)
	return ts, am
}

func TestSubmitAndWait(t *testing.T) {
	ts, _ := newTestServer(t)
	c, err := New(ts.URL + "/")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := c.Submit(ctx, "https://example.com", "quick")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, sub.Status)

	view, err := c.Wait(ctx, sub.ID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, view.Status)
	require.NotNil(t, view.Results)
	assert.Empty(t, view.Vulnerabilities)
}

func TestSubmit_ValidationError(t *testing.T) {
	ts, _ := newTestServer(t)
	c, err := New(ts.URL)
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), "not-a-url", "quick")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "targetUrl", apiErr.Fields[0].Field)
	assert.Contains(t, err.Error(), "targetUrl")
}

func TestStatus_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	c, err := New(ts.URL)
	require.NoError(t, err)

	_, err = c.Status(context.Background(), 77)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestLoginAndList(t *testing.T) {
	ts, am := newTestServer(t)
	ctx := context.Background()
	_, err := am.Register(ctx, auth.Registration{Username: "alice", Password: "s3cret!", Email: "alice@example.com"})
	require.NoError(t, err)

	c, err := New(ts.URL)
	require.NoError(t, err)

	_, err = c.List(ctx)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	_, err = c.Login(ctx, "alice", "bad-password")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	user, err := c.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	sub, err := c.Submit(ctx, "https://example.com", "deep")
	require.NoError(t, err)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sub.ID, list[0].ID)

	view, err := c.Wait(ctx, sub.ID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, view.Vulnerabilities, view.Results.Summary.TotalVulnerabilities)
}
