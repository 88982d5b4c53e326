package main

import (
	"bastion/internal/kyc"
	"bastion/internal/platform/config"
	rlmodels "bastion/internal/ratelimit/models"
)

// routeLimits converts the policy file's rate limit table. Unknown route
// names are ignored.
func routeLimits(p config.Policy) map[rlmodels.Route]rlmodels.Limit {
	out := make(map[rlmodels.Route]rlmodels.Limit, len(p.RateLimits))
	for name, rl := range p.RateLimits {
		route := rlmodels.Route(name)
		if !route.IsValid() {
			continue
		}
		out[route] = rlmodels.Limit{Max: rl.Max, Window: rl.Window, SkipSuccessful: rl.SkipSuccessful}
	}
	return out
}

// kycPolicy overlays non-zero policy values on the default thresholds.
func kycPolicy(p config.Policy) []kyc.Option {
	th := kyc.DefaultThresholds()
	if v := p.KYC.EnhancedThreshold; v > 0 {
		th.EnhancedValue = v
	}
	if v := p.KYC.StandardThreshold; v > 0 {
		th.StandardValue = v
	}
	if v := p.KYC.LowMinScore; v > 0 {
		th.LowMinScore = v
	}
	if v := p.KYC.MediumMinScore; v > 0 {
		th.MediumMinScore = v
	}
	if v := p.KYC.HighMinScore; v > 0 {
		th.HighMinScore = v
	}
	opts := []kyc.Option{kyc.WithThresholds(th)}
	if len(p.Documents) > 0 {
		docs := make(map[kyc.Tier][]string, len(p.Documents))
		for tier, list := range p.Documents {
			docs[kyc.Tier(tier)] = list
		}
		opts = append(opts, kyc.WithDocuments(docs))
	}
	return opts
}
