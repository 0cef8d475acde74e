package model

import "testing"

func TestOverallScore(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		counts   map[Severity]int
		pages    int
		expected float64
	}{
		{name: "no issues is a perfect score", counts: nil, pages: 3, expected: 100},
		{name: "no pages is a perfect score", counts: map[Severity]int{SeverityCritical: 5}, pages: 0, expected: 100},
		{name: "penalty is averaged per page", counts: map[Severity]int{SeverityCritical: 1, SeverityHigh: 2}, pages: 2, expected: 90},
		{name: "low issues round to one decimal", counts: map[Severity]int{SeverityLow: 1}, pages: 3, expected: 99.8},
		{name: "score never drops below zero", counts: map[Severity]int{SeverityCritical: 50}, pages: 1, expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			counts := NewSeverityCounts()
			for sev, n := range tc.counts {
				for range n {
					counts.Add(sev)
				}
			}
			if got := OverallScore(counts, tc.pages); got != tc.expected {
				t.Errorf("OverallScore() = %v, want %v", got, tc.expected)
			}
		})
	}
}
