// Package attribution derives a marketing source label for a submission.
// Configured rules are consulted first in (priority, id) order; when none
// match, a fixed default table classifies the common ad platforms, organic
// search, direct, and referral traffic.
package attribution

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-leads/core"
)

const (
	SourceGoogleAds = "google_ads"
	SourceMetaAds   = "meta_ads"
	SourceBingAds   = "bing_ads"
	SourceOffline   = "offline"
	SourceSEO       = "seo"
	SourceDirect    = "direct"
	SourceReferral  = "referral"
	SourceUnknown   = "unknown"
)

type Input struct {
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	ReferrerURL string
}

type Result struct {
	Source string
	Detail string
}

type Resolver struct {
	Rules core.RuleSource
}

func NewResolver(rules core.RuleSource) *Resolver {
	return &Resolver{Rules: rules}
}

// Derive resolves the lead source for one submission. Comparison happens on
// lower-cased, trimmed values; raw values are preserved in detail text.
func (r *Resolver) Derive(ctx context.Context, in Input) (Result, error) {
	if r == nil {
		return Result{}, fmt.Errorf("attribution: resolver is not configured")
	}

	source := normalize(in.UTMSource)
	medium := normalize(in.UTMMedium)
	referrer := normalize(in.ReferrerURL)

	if r.Rules != nil {
		rules, err := r.Rules.ActiveRules(ctx)
		if err != nil {
			return Result{}, err
		}
		sortRules(rules)
		for _, rule := range rules {
			if !rule.IsActive {
				continue
			}
			if rule.Matches(source, medium, referrer) {
				detail := strings.TrimSpace(rule.DerivedSourceDetail)
				if campaign := strings.TrimSpace(in.UTMCampaign); campaign != "" {
					if detail != "" {
						detail += "; "
					}
					detail += "campaign=" + campaign
				}
				return Result{Source: rule.DerivedSource, Detail: detail}, nil
			}
		}
	}

	return defaultTable(in, source, medium, referrer), nil
}

// sortRules orders by (priority asc, id asc) so rule evaluation is
// deterministic regardless of store ordering.
func sortRules(rules []core.AttributionRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}

func defaultTable(in Input, source, medium, referrer string) Result {
	campaign := strings.TrimSpace(in.UTMCampaign)

	switch {
	case source == "google" && medium == "cpc":
		return Result{Source: SourceGoogleAds, Detail: campaignDetail(campaign)}
	case isMetaSource(source) && medium == "cpc":
		return Result{Source: SourceMetaAds, Detail: campaignDetail(campaign)}
	case source == "bing" && medium == "cpc":
		return Result{Source: SourceBingAds, Detail: campaignDetail(campaign)}
	case strings.HasPrefix(source, "offline"):
		return Result{Source: SourceOffline, Detail: campaignDetail(campaign)}
	}

	hasUTM := source != "" || medium != "" || campaign != ""
	if !hasUTM {
		if strings.Contains(referrer, "google.com") {
			return Result{Source: SourceSEO, Detail: "referrer=" + strings.TrimSpace(in.ReferrerURL)}
		}
		if referrer == "" {
			return Result{Source: SourceDirect}
		}
		return Result{Source: SourceReferral, Detail: "referrer=" + strings.TrimSpace(in.ReferrerURL)}
	}

	return Result{Source: SourceUnknown, Detail: unknownDetail(in)}
}

func campaignDetail(campaign string) string {
	if campaign == "" {
		return ""
	}
	return "campaign=" + campaign
}

func isMetaSource(source string) bool {
	switch source {
	case "facebook", "instagram", "fb", "ig":
		return true
	}
	return false
}

func unknownDetail(in Input) string {
	parts := make([]string, 0, 3)
	if value := strings.TrimSpace(in.UTMSource); value != "" {
		parts = append(parts, "utm_source="+value)
	}
	if value := strings.TrimSpace(in.UTMMedium); value != "" {
		parts = append(parts, "utm_medium="+value)
	}
	if value := strings.TrimSpace(in.UTMCampaign); value != "" {
		parts = append(parts, "utm_campaign="+value)
	}
	return strings.Join(parts, "; ")
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
