// Package matcher decides whether two variant names describe the same
// race category. Matching is a total, side-effect free function so each
// rule can be tested on its own and in combination.
package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/agentstation/racesync/pkg/normalize"
)

// Rule identifies which rule established an equivalence. Lower non-zero
// values are stronger.
type Rule int

const (
	// NoMatch means the names are not equivalent.
	NoMatch Rule = iota
	// Exact matches after trimming and case folding.
	Exact
	// Containment matches when one decorated-free name contains the other.
	Containment
	// NumericTokens matches when both names carry the same set of numbers.
	NumericTokens
	// Keyword matches when both names map to the same canonical category.
	Keyword
)

var ruleNames = [...]string{"none", "exact", "containment", "numeric", "keyword"}

func (r Rule) String() string {
	if int(r) < len(ruleNames) {
		return ruleNames[r]
	}
	return "unknown"
}

// Category is a canonical race category recognized by keyword.
type Category struct {
	Name     string
	Keywords []string
}

// Canonical categories. Order matters: full is checked last since
// "半程马拉松" and "迷你马拉松" also contain "马拉松".
var DefaultCategories = []Category{
	{Name: "half", Keywords: []string{"半程", "半马", "half"}},
	{Name: "mini", Keywords: []string{"迷你", "mini"}},
	{Name: "fun", Keywords: []string{"健康跑", "欢乐跑", "亲子跑", "fun run", "family run"}},
	{Name: "full", Keywords: []string{"全程", "全马", "full", "马拉松", "marathon"}},
}

// Matcher is the interface for variant name matching.
type Matcher interface {
	// Match returns the strongest rule under which a and b are equivalent.
	Match(a, b string) Rule
	// Equivalent reports whether any rule matches.
	Equivalent(a, b string) bool
	// Best picks the candidate that matches name most strongly.
	Best(name string, candidates []string) Result
	// Category returns the canonical category for a name, if any.
	Category(name string) (string, bool)
}

// Result is the outcome of Best.
type Result struct {
	// Index into candidates, or -1 when nothing matched.
	Index int
	Rule  Rule
	// Ties lists every candidate index that matched at the winning rule.
	Ties []int
}

// Ambiguous reports whether more than one candidate tied.
func (r Result) Ambiguous() bool { return len(r.Ties) > 1 }

// Options configures the matcher behavior.
type Options struct {
	// DecorativeTokens are removed before the containment rule.
	DecorativeTokens []string
	// Categories drive the keyword rule.
	Categories []Category
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		DecorativeTokens: []string{"组别", "组", "group", "category", "项目", "(", ")", "（", "）", " "},
		Categories:       DefaultCategories,
	}
}

type matcher struct {
	decorative []string
	categories []Category
}

var (
	numberToken = regexp.MustCompile(`\d+(?:\.\d+)?`)
	unitSuffix  = regexp.MustCompile(`(\d)\s*(?:公里|千米|kilometers?|kilometres?|km|k)`)
)

// New creates a Matcher.
func New(opts ...*Options) Matcher {
	options := DefaultOptions()
	if len(opts) > 0 && opts[0] != nil {
		options = opts[0]
	}
	m := &matcher{categories: options.Categories}
	for _, tok := range options.DecorativeTokens {
		m.decorative = append(m.decorative, normalize.Fold(tok))
	}
	return m
}

// Default is a Matcher with default options.
var Default = New()

func (m *matcher) Match(a, b string) Rule {
	fa, fb := normalize.Fold(a), normalize.Fold(b)
	if fa == "" || fb == "" {
		return NoMatch
	}
	if fa == fb {
		return Exact
	}
	if m.contains(fa, fb) {
		return Containment
	}
	na, nb := Numbers(fa), Numbers(fb)
	if sameNumbers(na, nb) {
		return NumericTokens
	}
	// Conflicting numbers veto the keyword rule: 5公里迷你跑 is not 15公里迷你跑.
	if len(na) > 0 && len(nb) > 0 {
		return NoMatch
	}
	ca, okA := m.category(fa)
	cb, okB := m.category(fb)
	if okA && okB && ca == cb {
		return Keyword
	}
	return NoMatch
}

func (m *matcher) Equivalent(a, b string) bool {
	return m.Match(a, b) != NoMatch
}

func (m *matcher) Best(name string, candidates []string) Result {
	res := Result{Index: -1}
	for i, c := range candidates {
		rule := m.Match(name, c)
		switch {
		case rule == NoMatch:
			continue
		case res.Rule == NoMatch || rule < res.Rule:
			res = Result{Index: i, Rule: rule, Ties: []int{i}}
		case rule == res.Rule:
			res.Ties = append(res.Ties, i)
		}
	}
	return res
}

func (m *matcher) Category(name string) (string, bool) {
	return m.category(normalize.Fold(name))
}

func (m *matcher) category(folded string) (string, bool) {
	for _, c := range m.categories {
		for _, kw := range c.Keywords {
			if strings.Contains(folded, kw) {
				return c.Name, true
			}
		}
	}
	return "", false
}

func (m *matcher) strip(folded string) string {
	s := unitSuffix.ReplaceAllString(folded, "$1")
	for _, tok := range m.decorative {
		s = strings.ReplaceAll(s, tok, "")
	}
	return s
}

// contains applies the containment rule. Purely numeric names are left to
// the numeric rule, and a match may not split a number, so "5公里" never
// contains "15公里".
func (m *matcher) contains(fa, fb string) bool {
	sa, sb := m.strip(fa), m.strip(fb)
	if sa == "" || sb == "" || isNumeric(sa) || isNumeric(sb) {
		return false
	}
	if len(sa) < len(sb) {
		sa, sb = sb, sa
	}
	return containsWhole(sa, sb)
}

func containsWhole(long, short string) bool {
	for offset := 0; offset <= len(long)-len(short); {
		i := strings.Index(long[offset:], short)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(short)
		if !splitsNumber(long, short, start, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func splitsNumber(long, short string, start, end int) bool {
	if start > 0 && isDigitByte(long[start-1]) && isDigitByte(short[0]) {
		return true
	}
	if end < len(long) && isDigitByte(long[end]) && isDigitByte(short[len(short)-1]) {
		return true
	}
	return false
}

func isDigitByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.'
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}

// Numbers returns the distinct numeric tokens in a name in canonical form.
func Numbers(name string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range numberToken.FindAllString(normalize.Fold(name), -1) {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		key := strconv.FormatFloat(f, 'f', -1, 64)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func sameNumbers(na, nb []string) bool {
	if len(na) == 0 || len(na) != len(nb) {
		return false
	}
	set := make(map[string]bool, len(na))
	for _, n := range na {
		set[n] = true
	}
	for _, n := range nb {
		if !set[n] {
			return false
		}
	}
	return true
}
