package risk

import (
	"fmt"
	"strings"
)

type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// ParseLevel maps a config string to a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelLow:
		return LevelLow, nil
	case LevelModerate:
		return LevelModerate, nil
	case LevelHigh:
		return LevelHigh, nil
	case LevelCritical:
		return LevelCritical, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// Category groups trigger phrases and URL patterns under a shared weight.
// Weight must be in [0,1]; higher means riskier.
type Category struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Weight      float64  `yaml:"weight" json:"weight"`
	Phrases     []string `yaml:"phrases" json:"phrases"`
	URLPatterns []string `yaml:"url_patterns" json:"url_patterns,omitempty"`
}

// Assessment is the result of classifying a task description.
// Confidence is the inverse of Weight: the system's self-reported comfort
// executing the task without review.
type Assessment struct {
	Weight           float64  `json:"risk_weight"`
	Level            Level    `json:"risk_level"`
	Confidence       float64  `json:"confidence"`
	Factors          []string `json:"factors,omitempty"`
	Recommendation   string   `json:"recommendation"`
	RequiresApproval bool     `json:"requires_approval"`
}

// Classifier maps a task description to a risk assessment. Implementations
// must be pure and deterministic so the same task always gates the same way.
type Classifier interface {
	Classify(text string) Assessment
}
