package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buemura/scanhub/internal/client"
	"github.com/buemura/scanhub/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFetch(statuses ...types.JobStatus) StatusFunc {
	i := 0
	return func(_ context.Context, id int64) (*client.ScanView, error) {
		st := statuses[i]
		if i < len(statuses)-1 {
			i++
		}
		return &client.ScanView{ScanJob: types.ScanJob{ID: id, Status: st}}, nil
	}
}

func TestWatchModelPollsUntilTerminal(t *testing.T) {
	m := NewWatchModel(stubFetch(types.StatusInProgress, types.StatusCompleted), 9, "https://example.com", time.Millisecond)
	assert.Equal(t, types.StatusPending, m.Status())

	// The first poll runs immediately.
	msg := m.poll(0)()
	updated, cmd := m.Update(msg)
	m = updated.(WatchModel)
	assert.Equal(t, types.StatusInProgress, m.Status())
	require.NotNil(t, cmd)

	msg = m.poll(0)()
	updated, cmd = m.Update(msg)
	m = updated.(WatchModel)
	assert.Equal(t, types.StatusCompleted, m.Status())
	require.NotNil(t, cmd)

	finished, ok := cmd().(ScanFinishedMsg)
	require.True(t, ok)
	assert.EqualValues(t, 9, finished.View.ID)
}

func TestWatchModelShowsPollErrors(t *testing.T) {
	fetch := func(context.Context, int64) (*client.ScanView, error) {
		return nil, errors.New("connection refused")
	}
	m := NewWatchModel(fetch, 1, "https://example.com", time.Millisecond)

	updated, cmd := m.Update(m.poll(0)())
	m = updated.(WatchModel)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "connection refused")
	assert.Equal(t, types.StatusPending, m.Status())
}

func TestWatchModelView(t *testing.T) {
	view := NewWatchModel(stubFetch(types.StatusPending), 4, "https://example.com", time.Second).View()
	assert.Contains(t, view, "scan #4")
	assert.Contains(t, view, "pending")
	assert.Contains(t, view, "https://example.com")
}
