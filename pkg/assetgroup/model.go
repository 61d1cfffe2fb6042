package assetgroup

import (
	"fmt"
	"strings"
)

// Impact is the business impact level Qualys attaches to an asset group.
type Impact string

const (
	ImpactCritical Impact = "Critical"
	ImpactHigh     Impact = "High"
	ImpactMedium   Impact = "Medium"
	ImpactLow      Impact = "Low"
	ImpactMinor    Impact = "Minor"
)

// DefaultTarget is the level every group is reset to unless configured otherwise.
const DefaultTarget = ImpactMinor

var knownImpacts = []Impact{ImpactCritical, ImpactHigh, ImpactMedium, ImpactLow, ImpactMinor}

// ParseImpact converts user input to a canonical Impact.
func ParseImpact(v string) (Impact, error) {
	trimmed := strings.TrimSpace(v)
	for _, known := range knownImpacts {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown business impact %q (want one of %s)", v, impactList())
}

func impactList() string {
	names := make([]string, 0, len(knownImpacts))
	for _, i := range knownImpacts {
		names = append(names, string(i))
	}
	return strings.Join(names, ", ")
}

// AssetGroup describes a named collection of assets in the subscription.
type AssetGroup struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	BusinessImpact string `json:"business_impact"`
}
