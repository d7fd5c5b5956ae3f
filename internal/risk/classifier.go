package risk

import (
	"context"
	"fmt"
	"strings"
)

// PolicyClassifier scores commands with a static policy. It is the built-in
// stand-in for an external classification service.
type PolicyClassifier struct {
	blocked  []compiledBlockRule
	prefixes []prefixRule
}

func NewPolicyClassifier(p *Policy) (*PolicyClassifier, error) {
	blocked, prefixes, err := p.compile()

	if err != nil {
		return nil, err
	}

	return &PolicyClassifier{blocked: blocked, prefixes: prefixes}, nil
}

func (c *PolicyClassifier) Classify(ctx context.Context, commands []string) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assessment := &Assessment{Level: LevelLow, BlockedCommands: []string{}}
	var blockReasons []string
	var top string

	for _, command := range commands {
		if reason, ok := c.blockedReason(command); ok {
			assessment.BlockedCommands = append(assessment.BlockedCommands, command)
			blockReasons = append(blockReasons, fmt.Sprintf("%s: %s", command, reason))
			continue
		}

		level, note := c.score(command)

		if level > LevelLow {
			assessment.Warnings = append(assessment.Warnings, fmt.Sprintf("%s risk: %s", level, note))
		}

		if level > assessment.Level {
			assessment.Level = level
			top = note
		}
	}

	switch {
	case assessment.Blocked():
		assessment.Level = LevelCritical
		assessment.Reason = "Blocked dangerous commands: " + strings.Join(blockReasons, "; ")
	case top != "":
		assessment.Reason = top
	default:
		assessment.Reason = "No risky commands detected"
	}

	return assessment, nil
}

func (c *PolicyClassifier) blockedReason(command string) (string, bool) {
	candidates := []string{strings.TrimSpace(command)}

	for _, seg := range splitSegments(command) {
		candidates = append(candidates, strings.Join(commandWords(seg), " "))
	}

	for _, rule := range c.blocked {
		for _, candidate := range candidates {
			if candidate != "" && rule.re.MatchString(candidate) {
				return rule.reason, true
			}
		}
	}

	return "", false
}

// score returns the highest level over every segment of command together with
// a note naming the rule that produced it.
func (c *PolicyClassifier) score(command string) (Level, string) {
	level := LevelLow
	note := ""

	for _, seg := range splitSegments(command) {
		words := commandWords(seg)

		if len(words) == 0 {
			continue
		}

		for _, rule := range c.prefixes {
			if rule.level <= level {
				break
			}

			if rule.matches(words) {
				level = rule.level
				note = fmt.Sprintf("%q matches %q", command, rule.String())
				break
			}
		}

		if level < LevelMedium && redirectsToFile(seg) {
			level = LevelMedium
			note = fmt.Sprintf("%q writes to a file", command)
		}
	}

	return level, note
}
