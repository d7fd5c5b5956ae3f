package risk

import (
	"fmt"
	"strings"
)

// Level is an ordered risk score: LOW < MEDIUM < HIGH < CRITICAL.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = map[Level]string{
	LevelLow:      "LOW",
	LevelMedium:   "MEDIUM",
	LevelHigh:     "HIGH",
	LevelCritical: "CRITICAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("Level(%d)", int(l))
}

// Above reports whether l is strictly riskier than threshold.
func (l Level) Above(threshold Level) bool {
	return l > threshold
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))

	if err != nil {
		return err
	}

	*l = parsed

	return nil
}

func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))

	for level, levelName := range levelNames {
		if levelName == name {
			return level, nil
		}
	}

	return LevelLow, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Assessment is the classifier verdict for one command batch. A non-empty
// BlockedCommands vetoes the whole batch.
type Assessment struct {
	Level           Level    `json:"riskLevel"`
	BlockedCommands []string `json:"blockedCommands"`
	Reason          string   `json:"reason"`
	// Per-command notes for anything scored above LOW
	Warnings []string `json:"warnings,omitempty"`
}

func (a *Assessment) Blocked() bool {
	return len(a.BlockedCommands) > 0
}
