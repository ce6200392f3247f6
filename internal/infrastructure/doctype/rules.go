package doctype

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

//go:embed default_rules.yaml
var defaultRules []byte

type Rule struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Classifier tags uploads with a document type from their file name.
type Classifier struct {
	rules []Rule
}

// Load reads rules from path, or the built-in rules when path is empty.
func Load(path string) (*Classifier, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultRules)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document type rules: %w", err)
	}
	return Parse(raw)
}

func Default() *Classifier {
	c, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("built-in document type rules: %v", err))
	}
	return c
}

func Parse(raw []byte) (*Classifier, error) {
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse document type rules: %w", err)
	}
	rules := make([]Rule, 0, len(file.Rules))
	for i, rule := range file.Rules {
		rule.Type = strings.TrimSpace(rule.Type)
		if rule.Type == "" {
			return nil, fmt.Errorf("document type rule %d: type is required", i)
		}
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("document type rule %q: at least one keyword is required", rule.Type)
		}
		rule.Keywords = keywords
		rules = append(rules, rule)
	}
	return &Classifier{rules: rules}, nil
}

func (c *Classifier) Classify(filename string) string {
	name := strings.ToLower(filename)
	name = strings.NewReplacer(" ", "_", ".", "_").Replace(name)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(name, kw) {
				return rule.Type
			}
		}
	}
	return domain.DocumentTypeOther
}
