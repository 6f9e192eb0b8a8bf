package enums

import "fmt"

// RankingMetric selects the aggregate used to order ranked articles.
type RankingMetric string

const (
	RankingMetricUnits   RankingMetric = "units"
	RankingMetricRevenue RankingMetric = "revenue"
)

var validRankingMetrics = []RankingMetric{
	RankingMetricUnits,
	RankingMetricRevenue,
}

// String implements fmt.Stringer.
func (m RankingMetric) String() string {
	return string(m)
}

// IsValid reports whether the metric is known.
func (m RankingMetric) IsValid() bool {
	for _, candidate := range validRankingMetrics {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseRankingMetric converts raw input into a RankingMetric.
func ParseRankingMetric(value string) (RankingMetric, error) {
	for _, candidate := range validRankingMetrics {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ranking metric %q", value)
}
