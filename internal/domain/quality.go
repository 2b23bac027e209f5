package domain

import "math"

type Tier string

const (
	TierGood     Tier = "Good"
	TierModerate Tier = "Moderate"
	TierPoor     Tier = "Poor"
)

func (t Tier) Valid() bool {
	switch t {
	case TierGood, TierModerate, TierPoor:
		return true
	}
	return false
}

// Classify maps a (ping, download, upload) triple to a tier. Good uses strict
// bounds, Moderate inclusive ones; the first matching tier wins.
func Classify(pingMs, downloadMbps, uploadMbps float64) Tier {
	if pingMs < 50 && downloadMbps > 20 && uploadMbps > 10 {
		return TierGood
	}
	if pingMs <= 100 && downloadMbps >= 5 && uploadMbps >= 2 {
		return TierModerate
	}
	return TierPoor
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BitsToMbps converts bits/second to megabits/second, rounded with Round2.
func BitsToMbps(bps float64) float64 {
	return Round2(bps / 1_000_000)
}
