package security

import (
	"regexp"
)

// RiskTier grades how dangerous a signature match is on its own
type RiskTier int

const (
	TierMedium RiskTier = iota + 1
	TierHigh
)

func (t RiskTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "unknown"
	}
}

// Signature is one named attack pattern
type Signature struct {
	ID       string
	Category string // sqli, xss, traversal, command
	Tier     RiskTier
	Pattern  *regexp.Regexp
}

// Evaluation order matters only for which id is reported first
var signatures = []Signature{
	{
		ID:       "sql_keywords",
		Category: "sqli",
		Tier:     TierHigh,
		Pattern: regexp.MustCompile(`(?i)\b(?:union\s+(?:all\s+)?select\b|select\s+[\w\s,*.()'"]+?\s+from\s+\w|insert\s+into\s+\w|update\s+\w+\s+set\s+\w|delete\s+from\s+\w|drop\s+(?:table|database|schema|view)\b|alter\s+table\s+\w|create\s+(?:table|database)\s+\w|truncate\s+table\s+\w|exec(?:ute)?\s*\()`),
	},
	{
		ID:       "sql_comment",
		Category: "sqli",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`--(?:\s|$)|/\*|\*/`),
	},
	{
		ID:       "sql_boolean",
		Category: "sqli",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`(?i)\b(?:or|and)\b\s+['"]?\w+['"]?\s*=\s*['"]?\w+`),
	},
	{
		ID:       "script_tag",
		Category: "xss",
		Tier:     TierHigh,
		Pattern:  regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
	},
	{
		ID:       "javascript_uri",
		Category: "xss",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`(?i)\b(?:java|vb)script\s*:`),
	},
	{
		ID:       "event_handler",
		Category: "xss",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`(?i)\bon(?:load|unload|error|abort|click|dblclick|contextmenu|mouse\w*|pointer\w*|touch\w*|key\w*|focus\w*|blur|change|input|submit|reset|select|drag\w*|drop|scroll|resize|wheel|copy|cut|paste|toggle|animation\w*|transition\w*|begin|end|message|beforeunload|hashchange|pageshow)\s*=`),
	},
	{
		ID:       "embedded_object",
		Category: "xss",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`(?i)<\s*(?:iframe|object|embed)\b`),
	},
	{
		ID:       "path_traversal",
		Category: "traversal",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`(?i)\.\.[/\\]|%2e%2e(?:%2f|%5c|/|\\)|\.\.%2f|\.\.%5c|%252e%252e`),
	},
	{
		ID:       "shell_metachar",
		Category: "command",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`(?i)[;&|]\s*(?:rm|cat|ls|curl|wget|nc|ncat|bash|sh|zsh|chmod|chown|kill|whoami|id|uname|ping|python\d?|perl|php)\b`),
	},
	{
		ID:       "command_substitution",
		Category: "command",
		Tier:     TierMedium,
		Pattern:  regexp.MustCompile(`\$\([^)]*\)|` + "`[^`]*`"),
	},
}

var signatureTiers = func() map[string]RiskTier {
	tiers := make(map[string]RiskTier, len(signatures))
	for _, sig := range signatures {
		tiers[sig.ID] = sig.Tier
	}
	return tiers
}()

// Signatures returns a copy of the signature table in evaluation order
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	copy(out, signatures)
	return out
}

// DetectPatterns returns the ids of every signature matching input, in table order.
// Input is only ever matched, never compiled, so any string is safe.
func DetectPatterns(input string) []string {
	matched := make([]string, 0, 2)
	if input == "" {
		return matched
	}

	for _, sig := range signatures {
		if sig.Pattern.MatchString(input) {
			matched = append(matched, sig.ID)
		}
	}

	return matched
}

// TierOf reports the tier of a signature id, 0 when unknown
func TierOf(id string) RiskTier {
	return signatureTiers[id]
}
