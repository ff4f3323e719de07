package sanitizer

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Pattern is one entry in the suspicious-pattern table: a stable ID paired
// with a regular expression. IDs are never exposed to untrusted callers —
// only logged via the observability collaborator.
type Pattern struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
}

// patternFile is the on-disk YAML shape the table is loaded from.
type patternFile struct {
	Version  string    `yaml:"version"`
	Patterns []Pattern `yaml:"patterns"`
}

// PatternTable is a versioned, compiled set of suspicious patterns.
// Adding patterns is backward-compatible: existing IDs are never reused
// for a different pattern.
type PatternTable struct {
	Version  string
	patterns []compiledPattern
}

type compiledPattern struct {
	id string
	re *regexp.Regexp
}

// FirstMatch returns the ID of the first pattern matching s, if any.
func (t *PatternTable) FirstMatch(s string) (string, bool) {
	for _, p := range t.patterns {
		if p.re.MatchString(s) {
			return p.id, true
		}
	}
	return "", false
}

// LoadPatternTable parses a YAML pattern table and compiles every regex.
// A malformed regex fails the whole load — there is no partial table,
// since a partially-loaded table would silently weaken the firewall.
func LoadPatternTable(data []byte) (*PatternTable, error) {
	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("sanitizer: parse pattern table: %w", err)
	}
	if pf.Version == "" || len(pf.Patterns) == 0 {
		return nil, ErrPolicyUnavailable
	}

	table := &PatternTable{Version: pf.Version, patterns: make([]compiledPattern, 0, len(pf.Patterns))}
	seen := make(map[string]bool, len(pf.Patterns))
	for _, p := range pf.Patterns {
		if p.ID == "" {
			return nil, fmt.Errorf("sanitizer: pattern table %s: empty pattern id", pf.Version)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("sanitizer: pattern table %s: duplicate pattern id %q", pf.Version, p.ID)
		}
		seen[p.ID] = true

		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitizer: pattern table %s: compile %q: %w", pf.Version, p.ID, err)
		}
		table.patterns = append(table.patterns, compiledPattern{id: p.ID, re: re})
	}
	return table, nil
}

// DefaultPatternTableYAML is the built-in v1 suspicious-pattern table,
// covering the prompt-override, role-reassignment, and system-prompt
// impersonation phrasing classes named in the firewall's contract.
const DefaultPatternTableYAML = `
version: "v1"
patterns:
  - id: "PI-001"
    pattern: "(?i)ignore\\s+(all\\s+)?(previous|prior|above)\\s+instructions"
  - id: "PI-002"
    pattern: "(?i)disregard\\s+(all\\s+)?(previous|prior|above)\\s+(instructions|rules|prompts)"
  - id: "PI-003"
    pattern: "(?i)reveal\\s+(the\\s+)?system\\s+prompt"
  - id: "PI-004"
    pattern: "(?i)you\\s+are\\s+now\\s+(a|an|in)\\s"
  - id: "PI-005"
    pattern: "(?i)act\\s+as\\s+(if\\s+you\\s+are\\s+)?(a|an)\\s"
  - id: "PI-006"
    pattern: "(?i)\\bsystem\\s*:\\s*"
  - id: "PI-007"
    pattern: "(?i)new\\s+instructions?\\s*:"
  - id: "PI-008"
    pattern: "(?i)pretend\\s+(you('re| are)|to\\s+be)\\s"
  - id: "PI-009"
    pattern: "(?i)do\\s+anything\\s+now"
  - id: "PI-010"
    pattern: "(?i)override\\s+(your|the)\\s+(instructions|guidelines|rules)"
`

// DefaultPatternTable loads the built-in v1 pattern table. Returns an error
// only if the embedded YAML itself is malformed, which would indicate a
// defect rather than a runtime condition.
func DefaultPatternTable() (*PatternTable, error) {
	return LoadPatternTable([]byte(DefaultPatternTableYAML))
}
