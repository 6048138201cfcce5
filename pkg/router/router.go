// Package router maps (complexity, tier) to an ordered provider
// preference chain, skipping providers whose circuit is open. It performs
// no I/O; failure and success are reported by the orchestrator.
package router

import (
	"fmt"
	"sort"

	"github.com/elan-ai/elan/pkg/breaker"
	"github.com/elan-ai/elan/pkg/config"
	"github.com/elan-ai/elan/pkg/models"
)

// Router resolves requests to providers.
type Router struct {
	profiles map[string]models.ProviderProfile
	// byCost lists provider IDs from cheapest to most expensive.
	byCost   []string
	routes   map[string][]string
	breakers *breaker.Registry
}

// New creates a Router over the given profiles. Explicit routes override
// the default cost-derived policy for their (complexity, tier) pair.
func New(profiles []models.ProviderProfile, routes []config.RouteConfig, breakers *breaker.Registry) (*Router, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("router: no providers configured")
	}

	pm := make(map[string]models.ProviderProfile, len(profiles))
	byCost := make([]string, 0, len(profiles))
	for _, p := range profiles {
		pm[p.ID] = p
		byCost = append(byCost, p.ID)
	}
	sort.SliceStable(byCost, func(i, j int) bool {
		return pm[byCost[i]].CostPer1K() < pm[byCost[j]].CostPer1K()
	})

	rm := make(map[string][]string, len(routes))
	for _, r := range routes {
		rm[routeKey(models.Complexity(r.Complexity), models.Tier(r.Tier))] = r.Targets
	}

	return &Router{profiles: pm, byCost: byCost, routes: rm, breakers: breakers}, nil
}

// Select returns the provider that should serve a request. It walks the
// preference chain for (complexity, tier) skipping open circuits, and
// returns the cheapest provider as an unconditional last resort so that
// circuit breaking can never leave the system unable to answer.
func (r *Router) Select(complexity models.Complexity, tier models.Tier) models.ProviderProfile {
	for _, id := range r.chainFor(complexity, tier) {
		if r.breakers == nil || r.breakers.Allow(id) {
			return r.profiles[id]
		}
	}
	return r.LastResort()
}

// LastResort returns the cheapest configured provider.
func (r *Router) LastResort() models.ProviderProfile {
	return r.profiles[r.byCost[0]]
}

// chainFor returns the ordered provider preference for a request class.
// An explicit route wins; otherwise the preferred provider from the
// default policy is tried first, followed by the canonical fallback
// order quality -> balanced -> cheapest.
func (r *Router) chainFor(complexity models.Complexity, tier models.Tier) []string {
	if chain, ok := r.routes[routeKey(complexity, tier)]; ok && len(chain) > 0 {
		return chain
	}

	quality := r.byCost[len(r.byCost)-1]
	cheap := r.byCost[0]
	balanced := r.byCost[len(r.byCost)/2]

	var preferred string
	switch complexity {
	case models.ComplexityComplex:
		preferred = quality
	case models.ComplexityMedium:
		if tier == models.TierPremium {
			preferred = quality
		} else {
			preferred = balanced
		}
	default:
		if tier == models.TierPremium {
			preferred = balanced
		} else {
			preferred = cheap
		}
	}

	chain := []string{preferred}
	for _, id := range []string{quality, balanced, cheap} {
		if id != preferred {
			chain = append(chain, id)
		}
	}
	return chain
}

func routeKey(complexity models.Complexity, tier models.Tier) string {
	return string(complexity) + "/" + string(tier)
}
