package scanner

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/buemura/scanhub/pkg/types"
	"github.com/jonboulle/clockwork"
)

type catalogEntry struct {
	Type        string
	Severity    types.Severity
	Description string
}

var catalog = []catalogEntry{
	{Type: "XSS", Severity: types.SeverityHigh, Description: "Cross-site scripting vulnerability"},
	{Type: "SQLi", Severity: types.SeverityCritical, Description: "SQL injection vulnerability"},
	{Type: "CSRF", Severity: types.SeverityMedium, Description: "Cross-site request forgery"},
	{Type: "Information Disclosure", Severity: types.SeverityLow, Description: "Information leakage"},
	{Type: "Outdated Software", Severity: types.SeverityMedium, Description: "Outdated software version"},
	{Type: "Insecure Cookies", Severity: types.SeverityLow, Description: "Cookies without secure flag"},
	{Type: "Insecure Headers", Severity: types.SeverityLow, Description: "Missing security headers"},
	{Type: "Open Ports", Severity: types.SeverityMedium, Description: "Unnecessary open ports"},
}

var locations = []string{"admin", "api", "user", "search", "login"}

// Simulated fabricates plausible findings without touching the network.
// Each call picks a random number of distinct catalog entries within the
// profile's bounds.
type Simulated struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock clockwork.Clock
}

// NewSimulated returns a Simulated scanner seeded with seed.
func NewSimulated(seed int64, clock clockwork.Clock) *Simulated {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Simulated{rng: rand.New(rand.NewSource(seed)), clock: clock}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Scan(ctx context.Context, target types.Target, profile Profile) ([]types.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if profile.MinFindings < 0 || profile.MaxFindings < profile.MinFindings || profile.MaxFindings > len(catalog) {
		return nil, fmt.Errorf("profile %q: finding range [%d, %d] outside catalog of %d",
			profile.Type, profile.MinFindings, profile.MaxFindings, len(catalog))
	}

	s.mu.Lock()
	count := profile.MinFindings + s.rng.Intn(profile.MaxFindings-profile.MinFindings+1)
	picks := s.rng.Perm(len(catalog))[:count]
	paths := make([]string, count)
	for i := range paths {
		paths[i] = locations[s.rng.Intn(len(locations))]
	}
	s.mu.Unlock()

	base := strings.TrimRight(target.URL, "/")
	now := s.clock.Now().UTC()
	findings := make([]types.Finding, 0, count)
	for i, idx := range picks {
		entry := catalog[idx]
		findings = append(findings, types.Finding{
			Type:        entry.Type,
			Severity:    entry.Severity,
			Description: entry.Description,
			Location:    base + "/" + paths[i],
			Details: types.VulnerabilityDetails{
				DiscoveredAt:   now,
				Explanation:    fmt.Sprintf("This is a detailed explanation of the %s vulnerability found.", entry.Type),
				Recommendation: fmt.Sprintf("We recommend fixing this %s vulnerability by following security best practices.", entry.Type),
			},
		})
	}
	return findings, nil
}
