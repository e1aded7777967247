package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// flagOptions maps upper-cased flag names to engine options. UNICODE maps to
// no option because character classes are Unicode-aware by default.
var flagOptions = map[string]regexp2.RegexOptions{
	"IGNORECASE": regexp2.IgnoreCase,
	"I":          regexp2.IgnoreCase,
	"MULTILINE":  regexp2.Multiline,
	"M":          regexp2.Multiline,
	"DOTALL":     regexp2.Singleline,
	"S":          regexp2.Singleline,
	"VERBOSE":    regexp2.IgnorePatternWhitespace,
	"X":          regexp2.IgnorePatternWhitespace,
	"UNICODE":    regexp2.None,
	"U":          regexp2.None,
}

// ParseFlags combines flag names case-insensitively. Unknown names are
// ignored.
func ParseFlags(flags []string) regexp2.RegexOptions {
	opts := regexp2.None
	for _, f := range flags {
		if o, ok := flagOptions[strings.ToUpper(strings.TrimSpace(f))]; ok {
			opts |= o
		}
	}
	return opts
}

// Matcher is a compiled pattern with a per-call time budget.
type Matcher struct {
	re      *regexp2.Regexp
	pattern string
	budget  time.Duration
	now     func() time.Time
}

// Compile parses pattern with the given flags. Python-style named groups,
// (?P<name>...) and (?P=name), are accepted.
func Compile(pattern string, flags []string, opts ...Option) (*Matcher, error) {
	o := buildOptions(opts)

	re, err := regexp2.Compile(translateGroups(pattern), ParseFlags(flags))
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	re.MatchTimeout = o.matchTimeout

	return &Matcher{re: re, pattern: pattern, budget: o.matchTimeout, now: time.Now}, nil
}

// Pattern returns the pattern as given to Compile.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Timeout returns the budget for one Replace call.
func (m *Matcher) Timeout() time.Duration {
	return m.budget
}

// Replace substitutes every match in input with tmpl, which must already be in
// native syntax (see TranslateTemplate). The budget covers the whole call:
// each match search is bounded by it, and the call gives up once the matches
// found so far have used it up. On any engine failure the input is returned
// unchanged with an error; a budget overrun wraps ErrSubstitutionTimeout.
func (m *Matcher) Replace(input, tmpl string) (string, error) {
	start := m.now()

	match, err := m.re.FindStringMatch(input)
	if err != nil {
		return input, substituteError(err)
	}
	if match == nil {
		return input, nil
	}

	runes := []rune(input)
	var b strings.Builder
	b.Grow(len(input))
	last, count := 0, 0
	for match != nil {
		count++
		if elapsed := m.now().Sub(start); elapsed > m.budget {
			return input, fmt.Errorf("%w: %d matches took %v, budget %v",
				ErrSubstitutionTimeout, count, elapsed, m.budget)
		}
		b.WriteString(string(runes[last:match.Index]))
		expandTemplate(&b, match, tmpl)
		last = match.Index + match.Length

		match, err = m.re.FindNextMatch(match)
		if err != nil {
			return input, substituteError(err)
		}
	}
	b.WriteString(string(runes[last:]))
	return b.String(), nil
}

func substituteError(err error) error {
	if strings.Contains(err.Error(), "match timeout") {
		return fmt.Errorf("%w: %v", ErrSubstitutionTimeout, err)
	}
	return fmt.Errorf("substitute: %w", err)
}

// expandTemplate writes tmpl for one match. It understands $$, $N, ${N} and
// ${name}. References to groups the pattern does not define are written
// literally.
func expandTemplate(b *strings.Builder, match *regexp2.Match, tmpl string) {
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' || i+1 == len(tmpl) {
			b.WriteByte(c)
			continue
		}

		next := tmpl[i+1]
		var ref string
		var end int
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
			continue
		case next == '{':
			rb := strings.IndexByte(tmpl[i+2:], '}')
			if rb < 0 {
				b.WriteByte(c)
				continue
			}
			ref, end = tmpl[i+2:i+2+rb], i+2+rb
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(tmpl) && tmpl[j] >= '0' && tmpl[j] <= '9' {
				j++
			}
			ref, end = tmpl[i+1:j], j-1
		default:
			b.WriteByte(c)
			continue
		}

		if g := lookupGroup(match, ref); g != nil {
			b.WriteString(g.String())
		} else {
			b.WriteString(tmpl[i : end+1])
		}
		i = end
	}
}

func lookupGroup(match *regexp2.Match, ref string) *regexp2.Group {
	if n, err := strconv.Atoi(ref); err == nil {
		return match.GroupByNumber(n)
	}
	return match.GroupByName(ref)
}

// TranslateTemplate converts $1, $2, ... placeholders into the engine's
// ${1}, ${2} group references. Any other $ is escaped so it stays literal.
func TranslateTemplate(tmpl string) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl) + 8)
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(tmpl) && tmpl[j] >= '0' && tmpl[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteString("$$")
			continue
		}
		b.WriteString("${")
		b.WriteString(tmpl[i+1 : j])
		b.WriteByte('}')
		i = j - 1
	}
	return b.String()
}

// translateGroups rewrites (?P<name> to (?<name> and (?P=name) to \k<name>.
// Escaped characters and character classes are copied through untouched.
func translateGroups(pattern string) string {
	if !strings.Contains(pattern, "(?P") {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
			continue
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case strings.HasPrefix(pattern[i:], "(?P<"):
			b.WriteString("(?<")
			i += len("(?P<") - 1
			continue
		case strings.HasPrefix(pattern[i:], "(?P="):
			if end := strings.IndexByte(pattern[i:], ')'); end > 0 {
				b.WriteString(`\k<`)
				b.WriteString(pattern[i+len("(?P=") : i+end])
				b.WriteByte('>')
				i += end
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
