package conversation

import (
	"strings"
	"unicode/utf8"
)

const maxStatementRunes = 600

var bracketReplacer = strings.NewReplacer("[", "(", "]", ")", "{{", "(", "}}", ")")

// sanitizeStatement flattens a free-text statement to a single line so that it
// cannot break out of the prompt template.
func sanitizeStatement(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = bracketReplacer.Replace(s)
	if utf8.RuneCountInString(s) > maxStatementRunes {
		s = string([]rune(s)[:maxStatementRunes])
	}
	return s
}

// sanitizeReply trims whitespace and wrapping quotes some models add.
func sanitizeReply(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
