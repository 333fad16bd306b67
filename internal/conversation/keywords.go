package conversation

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// KeywordLists is the raw keyword data. Unset sections in an override file
// keep their default values.
type KeywordLists struct {
	Greeting     []string      `yaml:"greeting"`
	Business     []string      `yaml:"business"`
	Pricing      []string      `yaml:"pricing"`
	Urgency      []string      `yaml:"urgency"`
	Escalation   []string      `yaml:"escalation"`
	Immediacy    []string      `yaml:"immediacy"`
	Deferral     []string      `yaml:"deferral"`
	NameStoplist []string      `yaml:"name_stoplist"`
	Sales        SalesKeywords `yaml:"sales"`
	Competitors  []string      `yaml:"competitors"`
}

type SalesKeywords struct {
	Budget       []string `yaml:"budget"`
	Urgency      []string `yaml:"urgency"`
	Authority    []string `yaml:"authority"`
	Requirements []string `yaml:"requirements"`
	Ecommerce    []string `yaml:"ecommerce"`
	Simple       []string `yaml:"simple"`
}

// Matcher tests text against a compiled keyword list.
type Matcher struct {
	words []string
	each  []*regexp.Regexp
	re    *regexp.Regexp
}

// newMatcher compiles words into one case-insensitive alternation. Whole-word
// matchers require a word boundary on both sides; the others only at the start.
func newMatcher(words []string, wholeWord bool) *Matcher {
	m := &Matcher{}
	suffix := ""
	if wholeWord {
		suffix = `\b`
	}
	seen := make(map[string]struct{}, len(words))
	parts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		m.words = append(m.words, w)
		m.each = append(m.each, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+suffix))
		parts = append(parts, regexp.QuoteMeta(w))
	}
	if len(parts) == 0 {
		return m
	}
	m.re = regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)` + suffix)
	return m
}

// Match reports whether any keyword occurs in text.
func (m *Matcher) Match(text string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(text)
}

// Found lists the keywords that occur in text, in list order.
func (m *Matcher) Found(text string) []string {
	if m == nil || m.re == nil {
		return nil
	}
	var out []string
	for i, re := range m.each {
		if re.MatchString(text) {
			out = append(out, m.words[i])
		}
	}
	return out
}

// Contains reports whether word is exactly one of the keywords.
func (m *Matcher) Contains(word string) bool {
	if m == nil {
		return false
	}
	word = strings.ToLower(strings.TrimSpace(word))
	for _, w := range m.words {
		if w == word {
			return true
		}
	}
	return false
}

// Keywords holds every compiled matcher used by the classifier, extractor and
// sales analyzer.
type Keywords struct {
	Greeting     *Matcher
	Business     *Matcher
	Pricing      *Matcher
	Urgency      *Matcher
	Escalation   *Matcher
	Immediacy    *Matcher
	Deferral     *Matcher
	NameStoplist *Matcher

	SalesBudget       *Matcher
	SalesUrgency      *Matcher
	SalesAuthority    *Matcher
	SalesRequirements *Matcher
	SalesEcommerce    *Matcher
	SalesSimple       *Matcher
	Competitors       *Matcher
}

// Compile builds matchers from the lists. Pricing and urgency terms are
// folded into the business list so they always count as business inquiries.
func (l KeywordLists) Compile() *Keywords {
	business := make([]string, 0, len(l.Business)+len(l.Pricing)+len(l.Urgency))
	business = append(business, l.Business...)
	business = append(business, l.Pricing...)
	business = append(business, l.Urgency...)

	return &Keywords{
		Greeting:     newMatcher(l.Greeting, true),
		Business:     newMatcher(business, false),
		Pricing:      newMatcher(l.Pricing, false),
		Urgency:      newMatcher(l.Urgency, false),
		Escalation:   newMatcher(l.Escalation, false),
		Immediacy:    newMatcher(l.Immediacy, true),
		Deferral:     newMatcher(l.Deferral, true),
		NameStoplist: newMatcher(l.NameStoplist, true),

		SalesBudget:       newMatcher(l.Sales.Budget, false),
		SalesUrgency:      newMatcher(l.Sales.Urgency, false),
		SalesAuthority:    newMatcher(l.Sales.Authority, false),
		SalesRequirements: newMatcher(l.Sales.Requirements, false),
		SalesEcommerce:    newMatcher(l.Sales.Ecommerce, false),
		SalesSimple:       newMatcher(l.Sales.Simple, true),
		Competitors:       newMatcher(l.Competitors, true),
	}
}

// DefaultKeywordLists returns the embedded keyword data.
func DefaultKeywordLists() KeywordLists {
	var lists KeywordLists
	if err := yaml.Unmarshal(defaultKeywordsYAML, &lists); err != nil {
		panic(fmt.Sprintf("conversation: embedded keywords.yaml is invalid: %v", err))
	}
	return lists
}

// DefaultKeywords returns the compiled embedded keyword data.
func DefaultKeywords() *Keywords {
	return DefaultKeywordLists().Compile()
}

// LoadKeywords reads a YAML override file on top of the embedded defaults. An
// empty path returns the defaults.
func LoadKeywords(path string) (*Keywords, error) {
	lists := DefaultKeywordLists()
	if strings.TrimSpace(path) == "" {
		return lists.Compile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conversation: read keywords: %w", err)
	}
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("conversation: parse keywords: %w", err)
	}
	return lists.Compile(), nil
}
