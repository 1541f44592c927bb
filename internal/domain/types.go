// Package domain provides the canonical types shared by the analysis pipeline.
package domain

import "sort"

// EmotionLabel is one of the seven categories produced by the emotion classifier.
type EmotionLabel string

const (
	EmotionAnger    EmotionLabel = "anger"
	EmotionDisgust  EmotionLabel = "disgust"
	EmotionFear     EmotionLabel = "fear"
	EmotionJoy      EmotionLabel = "joy"
	EmotionNeutral  EmotionLabel = "neutral"
	EmotionSadness  EmotionLabel = "sadness"
	EmotionSurprise EmotionLabel = "surprise"
)

// EmotionLabels returns the fixed label set in lexicographic order.
// Ordering matters for deterministic tie-breaking during aggregation.
func EmotionLabels() []EmotionLabel {
	labels := []EmotionLabel{
		EmotionAnger, EmotionDisgust, EmotionFear, EmotionJoy,
		EmotionNeutral, EmotionSadness, EmotionSurprise,
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// ValidEmotionLabel reports whether l is in the fixed seven-label set.
func ValidEmotionLabel(l EmotionLabel) bool {
	switch l {
	case EmotionAnger, EmotionDisgust, EmotionFear, EmotionJoy,
		EmotionNeutral, EmotionSadness, EmotionSurprise:
		return true
	}
	return false
}

// SentimentLabel is the polarity produced by the sentiment classifier.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// ValidSentimentLabel reports whether l is a known polarity.
func ValidSentimentLabel(l SentimentLabel) bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Message is one ordered unit of conversation text. Index is the message's
// position within the conversation and is stable for the life of the request.
type Message struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// ConversationRequest is a conversation submitted for analysis. Message order
// is significant for aggregation but not for per-message scoring.
type ConversationRequest struct {
	ConversationID int64     `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// EmotionResult is the per-message output of the emotion classifier.
// Scores is a probability distribution over the seven labels; Valence and
// Arousal are derived deterministically from it via the circumplex maps.
type EmotionResult struct {
	Scores     map[EmotionLabel]float64 `json:"scores"`
	Dominant   EmotionLabel             `json:"dominant"`
	Confidence float64                  `json:"confidence"`
	Valence    float64                  `json:"valence"`
	Arousal    float64                  `json:"arousal"`
}

// SentimentResult is the per-message output of the sentiment classifier.
// Score is the signed normalization of Confidence: positive maps to
// +Confidence, negative to -Confidence, neutral to 0.
type SentimentResult struct {
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"`
	Score      float64        `json:"score"`
}

// MessageAnalysis pairs the two per-message results with their source message.
type MessageAnalysis struct {
	Index     int
	Emotion   EmotionResult
	Sentiment SentimentResult
}

// EngagementLevel is the categorical bucket derived from the quality score.
type EngagementLevel string

const (
	EngagementHigh   EngagementLevel = "high"
	EngagementMedium EngagementLevel = "medium"
	EngagementLow    EngagementLevel = "low"
)

// EmotionSummary is the conversation-level emotion aggregate.
type EmotionSummary struct {
	DominantEmotion     EmotionLabel             `json:"dominant_emotion"`
	EmotionConfidence   float64                  `json:"emotion_confidence"`
	EmotionDistribution map[EmotionLabel]float64 `json:"emotion_distribution"`
	AverageValence      float64                  `json:"average_valence"`
	AverageArousal      float64                  `json:"average_arousal"`
	EmotionalVolatility float64                  `json:"emotional_volatility"`
}

// SentimentSummary is the conversation-level sentiment aggregate.
type SentimentSummary struct {
	SentimentPolarity SentimentLabel `json:"sentiment_polarity"`
	SentimentScore    float64        `json:"sentiment_score"`
	PositiveRatio     float64        `json:"positive_ratio"`
	NegativeRatio     float64        `json:"negative_ratio"`
}

// QualitySummary carries the composite quality signals.
type QualitySummary struct {
	ConversationQualityScore float64         `json:"conversation_quality_score"`
	EngagementLevel          EngagementLevel `json:"engagement_level"`
	MessageCount             int             `json:"message_count"`
	EmotionalConsistency     float64         `json:"emotional_consistency"`
}

// MessageDetail is the per-message entry included in the response body.
type MessageDetail struct {
	MessageIndex      int                      `json:"message_index"`
	Emotion           EmotionLabel             `json:"emotion"`
	EmotionConfidence float64                  `json:"emotion_confidence"`
	EmotionScores     map[EmotionLabel]float64 `json:"emotion_scores"`
	Sentiment         SentimentLabel           `json:"sentiment"`
	SentimentScore    float64                  `json:"sentiment_score"`
	Valence           float64                  `json:"valence"`
	Arousal           float64                  `json:"arousal"`
}

// ConversationAnalysis is the aggregate over all messages of one conversation.
type ConversationAnalysis struct {
	Emotion   EmotionSummary   `json:"emotion"`
	Sentiment SentimentSummary `json:"sentiment"`
	Quality   QualitySummary   `json:"quality"`
	Messages  []MessageDetail  `json:"message_level_analysis"`
}

// AcceleratorHealth describes the inference backend's compute placement.
// CPU-only fallback is a degraded mode, not a failure.
type AcceleratorHealth struct {
	Available        bool   `json:"gpu_available"`
	Device           string `json:"device"`
	Name             string `json:"gpu_name,omitempty"`
	MemoryTotalMB    int64  `json:"gpu_memory_total_mb,omitempty"`
	MemoryUsedMB     int64  `json:"gpu_memory_used_mb,omitempty"`
	ModelsLoaded     bool   `json:"models_loaded"`
	BackendReachable bool   `json:"backend_reachable"`
}
