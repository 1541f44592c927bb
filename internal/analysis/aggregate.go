// Package analysis computes conversation-level summaries from per-message
// classifier results. Everything here is pure: same inputs, bit-identical
// outputs, which is what makes cached results and regression tests sound.
package analysis

import (
	"math"

	"github.com/seriesso/semantic-analysis/internal/domain"
)

// QualityWeights are the tunable coefficients of the composite quality
// score. Callers must supply weights summing to 1 (config normalizes them);
// the combination is monotonic in each component and clamped to [0,1].
type QualityWeights struct {
	Positive   float64
	Valence    float64
	Engagement float64

	// SaturationMessages controls how quickly the message-count engagement
	// signal saturates: n/(n+SaturationMessages) reaches 0.5 at this count.
	SaturationMessages float64
}

// DefaultWeights mirror the configuration defaults.
func DefaultWeights() QualityWeights {
	return QualityWeights{Positive: 0.4, Valence: 0.3, Engagement: 0.3, SaturationMessages: 8}
}

// Aggregate folds ordered per-message results into a ConversationAnalysis.
// The message slice must be non-empty and in conversation order; validation
// upstream guarantees this, the error is a backstop.
func Aggregate(messages []domain.MessageAnalysis, w QualityWeights) (*domain.ConversationAnalysis, error) {
	n := len(messages)
	if n == 0 {
		return nil, domain.ErrInternal(domain.StageAggregation, "no messages to aggregate")
	}

	labels := domain.EmotionLabels()

	// Mean emotion distribution, iterated in fixed label order so float
	// accumulation is reproducible.
	meanDist := make(map[domain.EmotionLabel]float64, len(labels))
	for _, label := range labels {
		var sum float64
		for _, m := range messages {
			sum += m.Emotion.Scores[label]
		}
		meanDist[label] = sum / float64(n)
	}

	// Dominant emotion: arg-max of the mean distribution; the lexicographic
	// label order makes ties deterministic.
	var dominant domain.EmotionLabel
	best := -1.0
	for _, label := range labels {
		if meanDist[label] > best {
			best = meanDist[label]
			dominant = label
		}
	}

	var valenceSum, arousalSum, scoreSum float64
	var positives, negatives int
	votes := map[domain.SentimentLabel]int{}
	for _, m := range messages {
		valenceSum += m.Emotion.Valence
		arousalSum += m.Emotion.Arousal
		scoreSum += m.Sentiment.Score
		votes[m.Sentiment.Label]++
		if m.Sentiment.Score > 0.2 {
			positives++
		}
		if m.Sentiment.Score < -0.2 {
			negatives++
		}
	}
	avgValence := valenceSum / float64(n)
	avgArousal := arousalSum / float64(n)
	avgScore := scoreSum / float64(n)

	volatility := valenceStdDev(messages, avgValence)

	quality := qualityScore(w, float64(votes[domain.SentimentPositive])/float64(n), avgValence, n)

	details := make([]domain.MessageDetail, n)
	for i, m := range messages {
		details[i] = domain.MessageDetail{
			MessageIndex:      m.Index,
			Emotion:           m.Emotion.Dominant,
			EmotionConfidence: m.Emotion.Confidence,
			EmotionScores:     m.Emotion.Scores,
			Sentiment:         m.Sentiment.Label,
			SentimentScore:    m.Sentiment.Score,
			Valence:           m.Emotion.Valence,
			Arousal:           m.Emotion.Arousal,
		}
	}

	return &domain.ConversationAnalysis{
		Emotion: domain.EmotionSummary{
			DominantEmotion:     dominant,
			EmotionConfidence:   meanDist[dominant],
			EmotionDistribution: meanDist,
			AverageValence:      avgValence,
			AverageArousal:      avgArousal,
			EmotionalVolatility: volatility,
		},
		Sentiment: domain.SentimentSummary{
			SentimentPolarity: majorityPolarity(votes),
			SentimentScore:    avgScore,
			PositiveRatio:     float64(positives) / float64(n),
			NegativeRatio:     float64(negatives) / float64(n),
		},
		Quality: domain.QualitySummary{
			ConversationQualityScore: quality,
			EngagementLevel:          engagementLevel(quality),
			MessageCount:             n,
			EmotionalConsistency:     1 - math.Min(volatility/2, 1),
		},
		Messages: details,
	}, nil
}

// majorityPolarity returns the label with the strict majority of votes; any
// tie, including the one-positive-one-negative two-message case, resolves to
// neutral.
func majorityPolarity(votes map[domain.SentimentLabel]int) domain.SentimentLabel {
	pos, neu, neg := votes[domain.SentimentPositive], votes[domain.SentimentNeutral], votes[domain.SentimentNegative]
	switch {
	case pos > neu && pos > neg:
		return domain.SentimentPositive
	case neg > neu && neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// qualityScore combines positive share, valence mapped onto [0,1], and a
// saturating message-count signal. Each component is monotonic and lies in
// [0,1]; with normalized weights the weighted sum does too, the clamp only
// guards float rounding.
func qualityScore(w QualityWeights, positiveShare, avgValence float64, messageCount int) float64 {
	sat := w.SaturationMessages
	if sat <= 0 {
		sat = 8
	}
	valence01 := (avgValence + 1) / 2
	engagement := float64(messageCount) / (float64(messageCount) + sat)

	q := w.Positive*positiveShare + w.Valence*valence01 + w.Engagement*engagement
	return math.Max(0, math.Min(1, q))
}

// engagementLevel buckets the quality score with fixed thresholds.
func engagementLevel(quality float64) domain.EngagementLevel {
	switch {
	case quality > 0.66:
		return domain.EngagementHigh
	case quality > 0.33:
		return domain.EngagementMedium
	default:
		return domain.EngagementLow
	}
}

// valenceStdDev is the population standard deviation of per-message valence;
// a single message has zero volatility.
func valenceStdDev(messages []domain.MessageAnalysis, mean float64) float64 {
	if len(messages) < 2 {
		return 0
	}
	var ss float64
	for _, m := range messages {
		d := m.Emotion.Valence - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(messages)))
}
