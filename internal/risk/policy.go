package risk

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

type BlockRule struct {
	Pattern string `yaml:"pattern"`
	Reason  string `yaml:"reason"`
}

// Policy is the on-disk form of a risk policy.
type Policy struct {
	Blocked  []BlockRule `yaml:"blocked"`
	Critical []string    `yaml:"critical"`
	High     []string    `yaml:"high"`
	Medium   []string    `yaml:"medium"`
}

type compiledBlockRule struct {
	re     *regexp.Regexp
	reason string
}

type prefixRule struct {
	words []string
	level Level
}

func (r prefixRule) matches(words []string) bool {
	if len(words) < len(r.words) {
		return false
	}

	for i, w := range r.words {
		if words[i] != w {
			return false
		}
	}

	return true
}

func (r prefixRule) String() string {
	return strings.Join(r.words, " ")
}

func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy

	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	return &p, nil
}

func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)

	if err != nil {
		panic(err)
	}

	return p
}

// LoadPolicy reads a policy file. An empty path yields the built-in policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadPolicy, err)
	}

	return ParsePolicy(data)
}

func (p *Policy) compile() ([]compiledBlockRule, []prefixRule, error) {
	blocked := make([]compiledBlockRule, 0, len(p.Blocked))

	for _, rule := range p.Blocked {
		re, err := regexp.Compile(rule.Pattern)

		if err != nil {
			return nil, nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidPolicy, rule.Pattern, err)
		}

		reason := rule.Reason
		if reason == "" {
			reason = "matches blocked pattern " + rule.Pattern
		}

		blocked = append(blocked, compiledBlockRule{re: re, reason: reason})
	}

	var prefixes []prefixRule

	// most severe first so the first match is the highest level
	for _, group := range []struct {
		level Level
		items []string
	}{
		{LevelCritical, p.Critical},
		{LevelHigh, p.High},
		{LevelMedium, p.Medium},
	} {
		for _, item := range group.items {
			words := strings.Fields(item)

			if len(words) == 0 {
				return nil, nil, fmt.Errorf("%w: empty %s prefix", ErrInvalidPolicy, group.level)
			}

			prefixes = append(prefixes, prefixRule{words: words, level: group.level})
		}
	}

	return blocked, prefixes, nil
}
