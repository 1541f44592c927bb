package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seriesso/semantic-analysis/internal/domain"
)

func emotionOf(label domain.EmotionLabel, p float64) domain.EmotionResult {
	scores := map[domain.EmotionLabel]float64{label: p}
	rest := (1 - p) / 6
	for _, l := range domain.EmotionLabels() {
		if l != label {
			scores[l] = rest
		}
	}
	return domain.FinalizeEmotion(scores)
}

func msg(idx int, emo domain.EmotionLabel, emoP float64, sent domain.SentimentLabel, conf float64) domain.MessageAnalysis {
	return domain.MessageAnalysis{
		Index:     idx,
		Emotion:   emotionOf(emo, emoP),
		Sentiment: domain.FinalizeSentiment(sent, conf),
	}
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil, DefaultWeights())
	require.Error(t, err)
}

func TestAggregateSingleMessage(t *testing.T) {
	res, err := Aggregate([]domain.MessageAnalysis{
		msg(0, domain.EmotionJoy, 0.9, domain.SentimentPositive, 0.8),
	}, DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, domain.EmotionJoy, res.Emotion.DominantEmotion)
	assert.Equal(t, domain.SentimentPositive, res.Sentiment.SentimentPolarity)
	assert.Zero(t, res.Emotion.EmotionalVolatility, "single message has no volatility")
	assert.Equal(t, 1.0, res.Quality.EmotionalConsistency)
	assert.Equal(t, 1, res.Quality.MessageCount)
}

func TestAggregateMeanDistributionSumsToOne(t *testing.T) {
	res, err := Aggregate([]domain.MessageAnalysis{
		msg(0, domain.EmotionJoy, 0.9, domain.SentimentPositive, 0.8),
		msg(1, domain.EmotionSadness, 0.7, domain.SentimentNegative, 0.6),
		msg(2, domain.EmotionNeutral, 0.5, domain.SentimentNeutral, 0.9),
	}, DefaultWeights())
	require.NoError(t, err)

	var sum float64
	for _, l := range domain.EmotionLabels() {
		p := res.Emotion.EmotionDistribution[l]
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDominantEmotionLexicographicTieBreak(t *testing.T) {
	// joy and sadness tie exactly in the mean distribution; "joy" < "sadness".
	a := domain.FinalizeEmotion(map[domain.EmotionLabel]float64{
		domain.EmotionJoy: 0.5, domain.EmotionSadness: 0.5,
	})
	b := domain.FinalizeEmotion(map[domain.EmotionLabel]float64{
		domain.EmotionJoy: 0.5, domain.EmotionSadness: 0.5,
	})
	res, err := Aggregate([]domain.MessageAnalysis{
		{Index: 0, Emotion: a, Sentiment: domain.FinalizeSentiment(domain.SentimentNeutral, 1)},
		{Index: 1, Emotion: b, Sentiment: domain.FinalizeSentiment(domain.SentimentNeutral, 1)},
	}, DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, domain.EmotionJoy, res.Emotion.DominantEmotion)
}

func TestPolarityMajorityVote(t *testing.T) {
	tests := []struct {
		name   string
		labels []domain.SentimentLabel
		want   domain.SentimentLabel
	}{
		{"positive majority", []domain.SentimentLabel{domain.SentimentPositive, domain.SentimentPositive, domain.SentimentNegative}, domain.SentimentPositive},
		{"negative majority", []domain.SentimentLabel{domain.SentimentNegative, domain.SentimentNegative, domain.SentimentNeutral}, domain.SentimentNegative},
		{"two-way tie resolves neutral", []domain.SentimentLabel{domain.SentimentPositive, domain.SentimentNegative}, domain.SentimentNeutral},
		{"three-way tie resolves neutral", []domain.SentimentLabel{domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral}, domain.SentimentNeutral},
		{"all neutral", []domain.SentimentLabel{domain.SentimentNeutral, domain.SentimentNeutral}, domain.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msgs []domain.MessageAnalysis
			for i, l := range tt.labels {
				msgs = append(msgs, msg(i, domain.EmotionNeutral, 0.9, l, 0.9))
			}
			res, err := Aggregate(msgs, DefaultWeights())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Sentiment.SentimentPolarity)
		})
	}
}

func TestQualityScoreBounds(t *testing.T) {
	w := DefaultWeights()

	// All-negative, minimal conversation.
	low, err := Aggregate([]domain.MessageAnalysis{
		msg(0, domain.EmotionAnger, 0.95, domain.SentimentNegative, 0.95),
	}, w)
	require.NoError(t, err)

	// Long, positive conversation.
	var msgs []domain.MessageAnalysis
	for i := 0; i < 30; i++ {
		msgs = append(msgs, msg(i, domain.EmotionJoy, 0.95, domain.SentimentPositive, 0.95))
	}
	high, err := Aggregate(msgs, w)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, low.Quality.ConversationQualityScore, 0.0)
	assert.LessOrEqual(t, high.Quality.ConversationQualityScore, 1.0)
	assert.Greater(t, high.Quality.ConversationQualityScore, low.Quality.ConversationQualityScore)
	assert.Equal(t, domain.EngagementHigh, high.Quality.EngagementLevel)
	assert.Equal(t, domain.EngagementLow, low.Quality.EngagementLevel)
}

func TestQualityScoreMonotonicInPositiveShare(t *testing.T) {
	w := DefaultWeights()
	prev := -1.0
	for share := 0.0; share <= 1.0; share += 0.25 {
		q := qualityScore(w, share, 0, 5)
		assert.Greater(t, q, prev, "quality must grow with positive share")
		prev = q
	}
}

func TestQualityScoreMonotonicInValence(t *testing.T) {
	w := DefaultWeights()
	prev := -1.0
	for v := -1.0; v <= 1.0; v += 0.5 {
		q := qualityScore(w, 0.5, v, 5)
		assert.Greater(t, q, prev, "quality must grow with valence")
		prev = q
	}
}

func TestQualityEngagementSaturates(t *testing.T) {
	w := DefaultWeights()
	q100 := qualityScore(w, 0.5, 0, 100)
	q1000 := qualityScore(w, 0.5, 0, 1000)
	assert.Greater(t, q1000, q100)
	assert.Less(t, q1000-q100, 0.05, "engagement component must saturate")
}

func TestAggregateDeterministic(t *testing.T) {
	msgs := []domain.MessageAnalysis{
		msg(0, domain.EmotionJoy, 0.7, domain.SentimentPositive, 0.8),
		msg(1, domain.EmotionFear, 0.6, domain.SentimentNegative, 0.7),
		msg(2, domain.EmotionSurprise, 0.55, domain.SentimentNeutral, 0.9),
	}

	first, err := Aggregate(msgs, DefaultWeights())
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Aggregate(msgs, DefaultWeights())
		require.NoError(t, err)
		assert.Equal(t, first, again, "aggregation must be bit-identical across runs")
	}
}

func TestVolatilityAndConsistency(t *testing.T) {
	// Two messages at opposite valence extremes.
	calm := domain.FinalizeEmotion(map[domain.EmotionLabel]float64{domain.EmotionJoy: 1})
	upset := domain.FinalizeEmotion(map[domain.EmotionLabel]float64{domain.EmotionAnger: 1})
	res, err := Aggregate([]domain.MessageAnalysis{
		{Index: 0, Emotion: calm, Sentiment: domain.FinalizeSentiment(domain.SentimentPositive, 1)},
		{Index: 1, Emotion: upset, Sentiment: domain.FinalizeSentiment(domain.SentimentNegative, 1)},
	}, DefaultWeights())
	require.NoError(t, err)

	// valences are +0.8 and -0.8: mean 0, population stddev 0.8.
	assert.InDelta(t, 0.8, res.Emotion.EmotionalVolatility, 1e-9)
	assert.InDelta(t, 1-0.8/2, res.Quality.EmotionalConsistency, 1e-9)
	assert.InDelta(t, 0, res.Emotion.AverageValence, 1e-9)
	assert.InDelta(t, math.Abs(res.Sentiment.SentimentScore), 0, 1e-9)
}
