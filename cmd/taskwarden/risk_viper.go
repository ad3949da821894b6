package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quailyquaily/taskwarden/internal/pathutil"
	"github.com/quailyquaily/taskwarden/risk"
)

// classifierFromViper builds the keyword classifier from the risk.* config
// subtree. Every knob is optional; an empty config yields the default policy.
func classifierFromViper() (*risk.KeywordClassifier, error) {
	cfg := risk.DefaultConfig()

	if path := strings.TrimSpace(viper.GetString("risk.categories_file")); path != "" {
		cats, err := risk.LoadCategoriesFile(pathutil.ExpandHomePath(path))
		if err != nil {
			return nil, fmt.Errorf("load risk categories: %w", err)
		}
		cfg.Categories = cats
	}

	if step := viper.GetFloat64("risk.escalation_step"); step > 0 {
		cfg.EscalationStep = step
	}
	if v := viper.GetFloat64("risk.thresholds.critical"); v > 0 {
		cfg.Thresholds.Critical = v
	}
	if v := viper.GetFloat64("risk.thresholds.high"); v > 0 {
		cfg.Thresholds.High = v
	}
	if v := viper.GetFloat64("risk.thresholds.moderate"); v > 0 {
		cfg.Thresholds.Moderate = v
	}

	if raw := viper.GetStringSlice("risk.approve_levels"); len(raw) > 0 {
		var levels []risk.Level
		for _, s := range raw {
			lv, err := risk.ParseLevel(s)
			if err != nil {
				return nil, err
			}
			levels = append(levels, lv)
		}
		cfg.ApproveLevels = levels
	}

	return risk.NewClassifier(cfg)
}
