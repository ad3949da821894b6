package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type categoriesFile struct {
	Categories []Category `yaml:"categories"`
}

// LoadCategoriesFile reads a category set from a YAML file of the form:
//
//	categories:
//	  - name: purchase
//	    description: purchase/payment operation
//	    weight: 1.0
//	    phrases: ["buy", "complete order"]
//	    url_patterns: ["order/confirm"]
func LoadCategoriesFile(path string) ([]Category, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f categoriesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("%s: no categories defined", path)
	}
	return f.Categories, nil
}
