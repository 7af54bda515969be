package security

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const DefaultMaxInputLength = 10000

const maliciousInputError = "Input contains potentially malicious content"

type ValidateOptions struct {
	MaxLength int // characters, DefaultMaxInputLength when zero
	AllowHTML bool
}

type ValidationResult struct {
	IsValid   bool      `json:"isValid"`
	Sanitized string    `json:"sanitized"`
	Error     string    `json:"error,omitempty"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Patterns  []string  `json:"patterns,omitempty"`
}

var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// ValidateInput classifies user supplied text and sanitizes it when it may proceed.
// An over-length input is rejected as low risk: length alone is not an attack signal.
func ValidateInput(input string, opts ValidateOptions) ValidationResult {
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}

	if utf8.RuneCountInString(input) > maxLength {
		return ValidationResult{
			IsValid:   false,
			Error:     fmt.Sprintf("Input exceeds maximum length of %d characters", maxLength),
			RiskLevel: RiskLow,
		}
	}

	patterns := DetectPatterns(input)

	level := RiskLow
	for _, id := range patterns {
		if TierOf(id) == TierHigh {
			level = RiskHigh
			break
		}
		level = RiskMedium
	}

	if level == RiskHigh {
		return ValidationResult{
			IsValid:   false,
			Error:     maliciousInputError,
			RiskLevel: RiskHigh,
			Patterns:  patterns,
		}
	}

	sanitized := input
	if !opts.AllowHTML {
		sanitized = SanitizeInput(input)
	}

	return ValidationResult{
		IsValid:   true,
		Sanitized: sanitized,
		RiskLevel: level,
		Patterns:  patterns,
	}
}

// SanitizeInput HTML-escapes < > " ' and /. Existing entities are not decoded first.
func SanitizeInput(input string) string {
	return htmlEscaper.Replace(input)
}
