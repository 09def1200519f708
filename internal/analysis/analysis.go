// Package analysis defines the remote analysis result contract and the
// fallback defaults substituted when the analysis endpoint fails.
package analysis

import "strings"

// Result is the structured output of the conversation analysis endpoint.
type Result struct {
	Health        string
	Emotion       string
	DailyFunction string
	Summary       string
	KeyPhrases    []string
	CareTodo      []string
	Plan          CarePlan
}

// CarePlan holds the per-horizon care recommendations.
type CarePlan struct {
	Today     string
	ThisWeek  string
	ThisMonth string
	ThisYear  string
}

// DefaultSummary is the placeholder recorded when analysis did not complete.
const DefaultSummary = "분석이 완료되지 않아 요약을 생성하지 못했습니다."

// Default returns the well-formed substitute result used when the analysis
// endpoint fails. Downstream log persistence always has a shape to consume.
func Default() Result {
	return Result{
		Summary:    DefaultSummary,
		KeyPhrases: []string{},
		CareTodo:   []string{},
	}
}

// EmotionType is the closed emotion category enumeration accepted by the
// log-creation endpoint.
type EmotionType string

const (
	EmotionHappy   EmotionType = "HAPPY"
	EmotionCalm    EmotionType = "CALM"
	EmotionSad     EmotionType = "SAD"
	EmotionAngry   EmotionType = "ANGRY"
	EmotionAnxious EmotionType = "ANXIOUS"
	EmotionNeutral EmotionType = "NEUTRAL"
)

// emotionLabels maps free-form analysis emotion labels onto the enumeration.
var emotionLabels = map[string]EmotionType{
	"happy":   EmotionHappy,
	"행복":      EmotionHappy,
	"기쁨":      EmotionHappy,
	"즐거움":     EmotionHappy,
	"calm":    EmotionCalm,
	"평온":      EmotionCalm,
	"안정":      EmotionCalm,
	"sad":     EmotionSad,
	"슬픔":      EmotionSad,
	"우울":      EmotionSad,
	"angry":   EmotionAngry,
	"분노":      EmotionAngry,
	"화남":      EmotionAngry,
	"anxious": EmotionAnxious,
	"불안":      EmotionAnxious,
	"걱정":      EmotionAnxious,
	"neutral": EmotionNeutral,
	"보통":      EmotionNeutral,
	"중립":      EmotionNeutral,
}

// MapEmotion maps a free-form emotion label to the closed enumeration.
// Unrecognized or missing labels map to the neutral default.
func MapEmotion(label string) EmotionType {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if mapped, ok := emotionLabels[normalized]; ok {
		return mapped
	}
	return EmotionNeutral
}
