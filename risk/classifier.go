package risk

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Thresholds struct {
	Critical float64
	High     float64
	Moderate float64
}

type Config struct {
	Categories []Category

	// EscalationStep is added to the maximum hit weight once per additional
	// distinct hit category. Tunable policy value, not a law.
	EscalationStep float64

	Thresholds    Thresholds
	ApproveLevels []Level
}

func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 0.6, High: 0.4, Moderate: 0.2}
}

const DefaultEscalationStep = 0.05

// KeywordClassifier scans task text for per-category trigger phrases
// (case-insensitive, on word boundaries) and URL patterns, and combines the
// hit weights into a single risk weight.
type KeywordClassifier struct {
	categories []compiledCategory
	step       float64
	thresholds Thresholds
	approve    map[Level]bool
}

type compiledCategory struct {
	cat     Category
	phrases []compiledPhrase
	urls    []compiledPhrase
}

type compiledPhrase struct {
	raw string
	re  *regexp.Regexp
}

func NewClassifier(cfg Config) (*KeywordClassifier, error) {
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = DefaultCategories()
	}

	c := &KeywordClassifier{
		step:       cfg.EscalationStep,
		thresholds: cfg.Thresholds,
		approve:    make(map[Level]bool),
	}
	if c.step <= 0 {
		c.step = DefaultEscalationStep
	}
	if c.thresholds == (Thresholds{}) {
		c.thresholds = DefaultThresholds()
	}
	if c.thresholds.Critical < c.thresholds.High || c.thresholds.High < c.thresholds.Moderate {
		return nil, fmt.Errorf("thresholds must be ordered critical >= high >= moderate")
	}

	levels := cfg.ApproveLevels
	if len(levels) == 0 {
		levels = []Level{LevelHigh, LevelCritical}
	}
	for _, lv := range levels {
		c.approve[lv] = true
	}

	for _, cat := range cats {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("category with empty name")
		}
		if cat.Weight < 0 || cat.Weight > 1 {
			return nil, fmt.Errorf("category %q: weight %v out of [0,1]", cat.Name, cat.Weight)
		}
		cc := compiledCategory{cat: cat}
		for _, p := range cat.Phrases {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			// Word boundaries keep "buy" from firing on "buyout".
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("category %q: phrase %q: %w", cat.Name, p, err)
			}
			cc.phrases = append(cc.phrases, compiledPhrase{raw: p, re: re})
		}
		for _, p := range cat.URLPatterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("category %q: url pattern %q: %w", cat.Name, p, err)
			}
			cc.urls = append(cc.urls, compiledPhrase{raw: p, re: re})
		}
		if len(cc.phrases) == 0 && len(cc.urls) == 0 {
			return nil, fmt.Errorf("category %q has no triggers", cat.Name)
		}
		c.categories = append(c.categories, cc)
	}
	if len(c.categories) == 0 {
		return nil, fmt.Errorf("no risk categories configured")
	}
	return c, nil
}

func (c *KeywordClassifier) Classify(text string) Assessment {
	text = strings.TrimSpace(text)

	var (
		factors    []string
		hitWeights []float64
	)
	if text != "" {
		for _, cc := range c.categories {
			hit := false
			for _, p := range cc.phrases {
				if p.re.MatchString(text) {
					factors = append(factors, fmt.Sprintf("detected %q (%s)", p.raw, describe(cc.cat)))
					hit = true
					break // count each category once
				}
			}
			if !hit {
				for _, p := range cc.urls {
					if p.re.MatchString(text) {
						factors = append(factors, fmt.Sprintf("url pattern %q (%s)", p.raw, describe(cc.cat)))
						hit = true
						break
					}
				}
			}
			if hit {
				hitWeights = append(hitWeights, cc.cat.Weight)
			}
		}
	}

	weight := 0.0
	if len(hitWeights) > 0 {
		sort.Float64s(hitWeights)
		weight = hitWeights[len(hitWeights)-1] + c.step*float64(len(hitWeights)-1)
		if weight > 1 {
			weight = 1
		}
	}

	level := c.levelFor(weight)
	return Assessment{
		Weight:           weight,
		Level:            level,
		Confidence:       1 - weight,
		Factors:          factors,
		Recommendation:   recommendationFor(level),
		RequiresApproval: c.approve[level],
	}
}

func (c *KeywordClassifier) levelFor(weight float64) Level {
	switch {
	case weight >= c.thresholds.Critical:
		return LevelCritical
	case weight >= c.thresholds.High:
		return LevelHigh
	case weight >= c.thresholds.Moderate:
		return LevelModerate
	default:
		return LevelLow
	}
}

func describe(cat Category) string {
	if strings.TrimSpace(cat.Description) != "" {
		return cat.Description
	}
	return cat.Name
}

func recommendationFor(level Level) string {
	switch level {
	case LevelCritical:
		return "Critical: this task involves high-risk operations. Approval required before execution."
	case LevelHigh:
		return "High risk: this task may perform irreversible operations. Approval required."
	case LevelModerate:
		return "Moderate risk: task touches sensitive operations. Proceed with caution."
	default:
		return "Low risk: no critical operations detected. Safe to execute."
	}
}
