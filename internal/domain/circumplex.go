package domain

// Circumplex maps (Russell's model of affect): each emotion label projects
// onto a valence (pleasantness, [-1,1]) and arousal (activation, [0,1])
// coordinate. A message's valence/arousal is the probability-weighted sum
// over its emotion distribution, which keeps the derivation a pure function
// of the distribution.
var valenceMap = map[EmotionLabel]float64{
	EmotionJoy:      0.8,
	EmotionSurprise: 0.3,
	EmotionNeutral:  0.0,
	EmotionFear:     -0.5,
	EmotionSadness:  -0.7,
	EmotionAnger:    -0.8,
	EmotionDisgust:  -0.6,
}

var arousalMap = map[EmotionLabel]float64{
	EmotionJoy:      0.7,
	EmotionSurprise: 0.9,
	EmotionNeutral:  0.1,
	EmotionFear:     0.8,
	EmotionSadness:  0.3,
	EmotionAnger:    0.9,
	EmotionDisgust:  0.6,
}

// ValenceOf returns the expected valence of an emotion distribution.
func ValenceOf(scores map[EmotionLabel]float64) float64 {
	var v float64
	for label, p := range scores {
		v += p * valenceMap[label]
	}
	return v
}

// ArousalOf returns the expected arousal of an emotion distribution.
func ArousalOf(scores map[EmotionLabel]float64) float64 {
	var a float64
	for label, p := range scores {
		a += p * arousalMap[label]
	}
	return a
}

// FinalizeEmotion derives the dominant label, confidence, valence and
// arousal from a (already validated) distribution. Ties on the dominant
// label break toward the lexicographically smallest name so repeated runs
// are bit-identical.
func FinalizeEmotion(scores map[EmotionLabel]float64) EmotionResult {
	var dominant EmotionLabel
	best := -1.0
	for _, label := range EmotionLabels() {
		if p := scores[label]; p > best {
			best = p
			dominant = label
		}
	}
	return EmotionResult{
		Scores:     scores,
		Dominant:   dominant,
		Confidence: best,
		Valence:    ValenceOf(scores),
		Arousal:    ArousalOf(scores),
	}
}

// FinalizeSentiment normalizes a classifier label/confidence pair into a
// SentimentResult with the signed score.
func FinalizeSentiment(label SentimentLabel, confidence float64) SentimentResult {
	var score float64
	switch label {
	case SentimentPositive:
		score = confidence
	case SentimentNegative:
		score = -confidence
	}
	return SentimentResult{Label: label, Confidence: confidence, Score: score}
}
