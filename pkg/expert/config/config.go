package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/expert/pkg/expert/inference"
	"github.com/cognicore/expert/pkg/expert/internalerr"
)

// Session is the YAML session file.
//
//	rules: rules.txt
//	max_iterations: 10
//	max_depth: 50
//	db: expert.db
//	facts:
//	  время_суток: вечер
//	categories:
//	  Освещение: [включить_основное_освещение]
type Session struct {
	RulesPath     string     `yaml:"rules"`
	MaxIterations int        `yaml:"max_iterations"`
	MaxDepth      int        `yaml:"max_depth"`
	DBPath        string     `yaml:"db"`
	RuleSet       string     `yaml:"rule_set"`
	Facts         Pairs      `yaml:"facts"`
	Categories    Categories `yaml:"categories"`
}

// Default returns a session with the standard limits and no facts.
func Default() *Session {
	return &Session{
		MaxIterations: inference.DefaultMaxIterations,
		MaxDepth:      inference.DefaultMaxDepth,
	}
}

// LoadSession loads a session from a YAML file. Relative rule and database
// paths are resolved against the file's directory.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, internalerr.ErrInvalidConfig, err)
	}

	dir := filepath.Dir(path)
	s.RulesPath = resolve(dir, s.RulesPath)
	s.DBPath = resolve(dir, s.DBPath)
	return s, nil
}

// overrides are the settings that may come from the environment.
type overrides struct {
	RulesPath     string `env:"EXPERT_RULES"`
	MaxIterations int    `env:"EXPERT_MAX_ITERATIONS"`
	MaxDepth      int    `env:"EXPERT_MAX_DEPTH"`
	DBPath        string `env:"EXPERT_DB"`
	RuleSet       string `env:"EXPERT_RULE_SET"`
}

// ApplyEnv overrides fields from EXPERT_* environment variables.
// Unset variables leave the current value in place.
func (s *Session) ApplyEnv() error {
	o := overrides{
		RulesPath:     s.RulesPath,
		MaxIterations: s.MaxIterations,
		MaxDepth:      s.MaxDepth,
		DBPath:        s.DBPath,
		RuleSet:       s.RuleSet,
	}
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	s.RulesPath = o.RulesPath
	s.MaxIterations = o.MaxIterations
	s.MaxDepth = o.MaxDepth
	s.DBPath = o.DBPath
	s.RuleSet = o.RuleSet
	return nil
}

// Validate checks the limits.
func (s *Session) Validate() error {
	if s.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d: %w", s.MaxIterations, internalerr.ErrInvalidConfig)
	}
	if s.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d: %w", s.MaxDepth, internalerr.ErrInvalidConfig)
	}
	return nil
}

// Options converts the limits to engine options.
func (s *Session) Options() inference.Options {
	return inference.Options{
		MaxIterations: s.MaxIterations,
		MaxDepth:      s.MaxDepth,
	}
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Pair is one attribute=value entry.
type Pair struct {
	Attribute string
	Value     string
}

// Pairs is an ordered attribute→value mapping.
type Pairs []Pair

// UnmarshalYAML keeps the document order of a mapping node.
func (p *Pairs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: facts must be a mapping", node.Line)
	}
	out := make(Pairs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: fact %q must have a scalar value", v.Line, k.Value)
		}
		out = append(out, Pair{Attribute: k.Value, Value: v.Value})
	}
	*p = out
	return nil
}

// Category groups attributes under a display heading.
type Category struct {
	Name       string
	Attributes []string
}

// Categories keeps the document order of the category mapping.
type Categories []Category

// UnmarshalYAML keeps the document order of a mapping node.
func (c *Categories) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: categories must be a mapping", node.Line)
	}
	out := make(Categories, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var attrs []string
		if err := node.Content[i+1].Decode(&attrs); err != nil {
			return fmt.Errorf("category %q: %w", node.Content[i].Value, err)
		}
		out = append(out, Category{Name: node.Content[i].Value, Attributes: attrs})
	}
	*c = out
	return nil
}
