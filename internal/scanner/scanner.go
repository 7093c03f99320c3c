package scanner

import (
	"context"
	"time"

	"github.com/buemura/scanhub/pkg/types"
)

// Scanner is the interface the lifecycle manager calls to produce findings.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, target types.Target, profile Profile) ([]types.Finding, error)
}

// Profile describes how a scan type behaves: how long it runs and how many
// findings it may report.
type Profile struct {
	Type        types.ScanType
	Duration    time.Duration
	MinFindings int
	MaxFindings int
}

// DefaultProfiles returns the quick and deep profiles with the given durations.
func DefaultProfiles(quick, deep time.Duration) []Profile {
	return []Profile{
		{Type: types.ScanTypeQuick, Duration: quick, MinFindings: 1, MaxFindings: 3},
		{Type: types.ScanTypeDeep, Duration: deep, MinFindings: 3, MaxFindings: 8},
	}
}
