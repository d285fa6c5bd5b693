package services

import (
	"math"

	"peer-review-api/models"
)

// criterionWeights sum to 1.0.
var criterionWeights = map[string]float64{
	"originality":      0.15,
	"methodology":      0.15,
	"significance":     0.10,
	"clarity":          0.10,
	"literatureReview": 0.10,
	"technicalQuality": 0.10,
	"results":          0.10,
	"conclusions":      0.05,
	"references":       0.05,
	"presentation":     0.05,
	"relevance":        0.05,
}

// ComputeScores returns the mean and the weighted score of the criteria that
// were scored. Unscored (zero) criteria drop out of both.
func ComputeScores(s models.ReviewScores) (average, weighted float64) {
	var sum, weightedSum, weightTotal float64
	n := 0
	for name, score := range s.Criteria() {
		if score == 0 {
			continue
		}
		n++
		sum += float64(score)
		weightedSum += float64(score) * criterionWeights[name]
		weightTotal += criterionWeights[name]
	}
	if n == 0 {
		return 0, 0
	}
	average = round2(sum / float64(n))
	if weightTotal > 0 {
		weighted = round2(weightedSum / weightTotal)
	}
	return average, weighted
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
