package extraction

import (
	"regexp"
	"strings"
)

// rule is one step of a field cascade. find reports the raw value it located,
// or false when the step does not apply to the text.
type rule struct {
	name string
	find func(text string) (string, bool)
}

// cascade is an ordered list of rules, most specific first. The first rule
// that yields a non-blank value wins.
type cascade []rule

func (c cascade) run(text string) (value, ruleName string) {
	for _, r := range c {
		v, ok := r.find(text)
		if !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, r.name
		}
	}
	return "", ""
}

// names returns the rule names in evaluation order.
func (c cascade) names() []string {
	out := make([]string, len(c))
	for i, r := range c {
		out[i] = r.name
	}
	return out
}

// firstMatch returns the first capture group of re in s, or the whole match
// when re has no groups.
func firstMatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if len(m) == 1 {
		return m[0], true
	}
	if m[1] == "" {
		return "", false
	}
	return m[1], true
}

// pattern matches expr anywhere in the text.
func pattern(name, expr string) rule {
	re := regexp.MustCompile(expr)
	return rule{
		name: name,
		find: func(text string) (string, bool) {
			return firstMatch(re, text)
		},
	}
}

// onLines matches expr one line at a time, top to bottom, ignoring lines for
// which skip reports true.
func onLines(name, expr string, skip func(line string) bool) rule {
	re := regexp.MustCompile(expr)
	return rule{
		name: name,
		find: func(text string) (string, bool) {
			for _, line := range strings.Split(text, "\n") {
				if skip != nil && skip(line) {
					continue
				}
				if v, ok := firstMatch(re, line); ok {
					return v, true
				}
			}
			return "", false
		},
	}
}

// keywordScan configures the line heuristic used when no pattern matched.
type keywordScan struct {
	// keywords selects candidate lines (case-insensitive, any of).
	keywords []string
	// exclude drops candidate lines containing any of these (case-insensitive).
	exclude []string
	// tokens are tried in order against the candidate line.
	tokens []*regexp.Regexp
	// label, when set, must match the candidate line before the following
	// line is searched. Nil means the following line is always searched.
	label *regexp.Regexp
	// reverse scans from the bottom of the text upward.
	reverse bool
}

// nearKeyword finds the first token on a keyword line or on the line after it.
func nearKeyword(name string, ks keywordScan) rule {
	return rule{
		name: name,
		find: func(text string) (string, bool) {
			lines := strings.Split(text, "\n")
			for n := range lines {
				i := n
				if ks.reverse {
					i = len(lines) - 1 - n
				}
				line := lines[i]
				if !containsAnyFold(line, ks.keywords) || containsAnyFold(line, ks.exclude) {
					continue
				}
				for _, tok := range ks.tokens {
					if v, ok := firstMatch(tok, line); ok {
						return v, true
					}
				}
				if i+1 >= len(lines) || (ks.label != nil && !ks.label.MatchString(line)) {
					continue
				}
				for _, tok := range ks.tokens {
					if v, ok := firstMatch(tok, lines[i+1]); ok {
						return v, true
					}
				}
			}
			return "", false
		},
	}
}

// leadingLine returns the first of the top limit lines that contains one of
// tokens (case-sensitive). The whole trimmed line is the value.
func leadingLine(name string, limit int, tokens ...string) rule {
	return rule{
		name: name,
		find: func(text string) (string, bool) {
			lines := strings.Split(text, "\n")
			if len(lines) > limit {
				lines = lines[:limit]
			}
			for _, line := range lines {
				for _, tok := range tokens {
					if strings.Contains(line, tok) {
						return strings.TrimSpace(line), true
					}
				}
			}
			return "", false
		},
	}
}

func containsAnyFold(s string, subs []string) bool {
	if len(subs) == 0 {
		return false
	}
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
