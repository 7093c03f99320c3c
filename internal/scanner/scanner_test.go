package scanner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/buemura/scanhub/pkg/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTarget(t *testing.T) types.Target {
	t.Helper()
	target, err := types.ParseTarget("https://example.com/")
	require.NoError(t, err)
	return target
}

func TestRegistry_GetAndAll(t *testing.T) {
	reg := NewRegistry(DefaultProfiles(3*time.Second, 8*time.Second)...)

	quick, err := reg.Get(types.ScanTypeQuick)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, quick.Duration)
	assert.Equal(t, 1, quick.MinFindings)
	assert.Equal(t, 3, quick.MaxFindings)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, types.ScanTypeQuick, all[0].Type)
	assert.Equal(t, types.ScanTypeDeep, all[1].Type)
}

func TestRegistry_Unknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get(types.ScanTypeDeep)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestSimulated_FindingCountsWithinProfile(t *testing.T) {
	s := NewSimulated(1, clockwork.NewFakeClock())
	target := testTarget(t)

	for _, p := range DefaultProfiles(time.Second, time.Second) {
		for i := 0; i < 200; i++ {
			findings, err := s.Scan(context.Background(), target, p)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, len(findings), p.MinFindings)
			assert.LessOrEqual(t, len(findings), p.MaxFindings)
		}
	}
}

func TestSimulated_DistinctTypesAndLocations(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSimulated(42, clock)
	profile := Profile{Type: types.ScanTypeDeep, MinFindings: 8, MaxFindings: 8}

	findings, err := s.Scan(context.Background(), testTarget(t), profile)
	require.NoError(t, err)
	require.Len(t, findings, 8)

	seen := map[string]bool{}
	for _, f := range findings {
		assert.False(t, seen[f.Type], "duplicate finding type %s", f.Type)
		seen[f.Type] = true
		assert.True(t, f.Severity.Valid())
		assert.True(t, strings.HasPrefix(f.Location, "https://example.com/"))
		assert.NotContains(t, f.Location, "example.com//")
		assert.Equal(t, clock.Now().UTC(), f.Details.DiscoveredAt)
		assert.Contains(t, f.Details.Recommendation, f.Type)
	}
}

func TestSimulated_InvalidProfile(t *testing.T) {
	s := NewSimulated(1, nil)
	_, err := s.Scan(context.Background(), testTarget(t), Profile{Type: "huge", MinFindings: 2, MaxFindings: 20})
	assert.Error(t, err)
}

func TestSimulated_CancelledContext(t *testing.T) {
	s := NewSimulated(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scan(ctx, testTarget(t), Profile{Type: types.ScanTypeQuick, MinFindings: 1, MaxFindings: 3})
	assert.ErrorIs(t, err, context.Canceled)
}
