package models

import "fmt"

// EnrichmentPolicy selects how metrics flow through the pipeline. It is a
// deploy-time choice and must be the same for enrich, writer and latest.
type EnrichmentPolicy string

const (
	// PolicyDerived computes powerFactor and utilization and carries them end to end.
	PolicyDerived EnrichmentPolicy = "derived"
	// PolicyPassThrough forwards only the device-sent kw/kvar/kva.
	PolicyPassThrough EnrichmentPolicy = "passthrough"
)

// ParsePolicy validates a configured policy name. Empty selects PolicyDerived.
func ParsePolicy(s string) (EnrichmentPolicy, error) {
	switch EnrichmentPolicy(s) {
	case "", PolicyDerived:
		return PolicyDerived, nil
	case PolicyPassThrough:
		return PolicyPassThrough, nil
	default:
		return "", fmt.Errorf("unknown enrichment policy %q (supported: %s, %s)", s, PolicyDerived, PolicyPassThrough)
	}
}

// DerivesMetrics reports whether powerFactor and utilization are part of the record.
func (p EnrichmentPolicy) DerivesMetrics() bool {
	return p == PolicyDerived
}

// RequiresKW is the default writer validation: pass-through deployments only
// store records that carry a numeric kw.
func (p EnrichmentPolicy) RequiresKW() bool {
	return p == PolicyPassThrough
}
