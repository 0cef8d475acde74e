package model

import "math"

// Severity weights used for the overall score.
var severityPenalty = map[Severity]float64{
	SeverityCritical: 10,
	SeverityHigh:     5,
	SeverityMedium:   2,
	SeverityLow:      0.5,
}

// OverallScore returns a 0-100 accessibility score for a scan.
// The weighted issue penalty is averaged over the scanned pages and
// subtracted from 100. The result is rounded to one decimal place.
func OverallScore(counts SeverityCounts, pages int) float64 {
	if pages <= 0 {
		return 100
	}

	penalty := 0.0
	for sev, weight := range severityPenalty {
		penalty += float64(counts.Get(sev)) * weight
	}

	score := 100 - penalty/float64(pages)
	if score < 0 {
		score = 0
	}
	return math.Round(score*10) / 10
}
