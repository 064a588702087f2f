package model

import "math"

// OverallSentiment is a statistical summary of per-sentence classifications.
// Average is nil when no sentences were scored; StdDev is 0.0 below two
// samples.
type OverallSentiment struct {
	Label   SentimentLabel
	Average *float64
	StdDev  float64
}

// Overall reduces a sentence sentiment mapping to a single polarity.
// Each sentence contributes a positivity value in [0,1]: the confidence
// score for POSITIVE labels, 1-score for NEGATIVE ones. The aggregate is
// POSITIVE when the mean positivity is at least 0.5.
func Overall(sentiment map[string]SentenceSentiment) OverallSentiment {
	if len(sentiment) == 0 {
		return OverallSentiment{Label: SentimentUnknown}
	}

	positivity := make([]float64, 0, len(sentiment))
	for _, s := range sentiment {
		v := s.Score
		if s.Label == SentimentNegative {
			v = 1 - s.Score
		}
		positivity = append(positivity, v)
	}

	var sum float64
	for _, v := range positivity {
		sum += v
	}
	mean := sum / float64(len(positivity))

	label := SentimentNegative
	if mean >= 0.5 {
		label = SentimentPositive
	}

	// Sample standard deviation needs at least two values.
	stdev := 0.0
	if len(positivity) >= 2 {
		var sq float64
		for _, v := range positivity {
			sq += (v - mean) * (v - mean)
		}
		stdev = math.Sqrt(sq / float64(len(positivity)-1))
	}

	return OverallSentiment{Label: label, Average: &mean, StdDev: stdev}
}
