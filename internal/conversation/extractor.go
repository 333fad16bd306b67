package conversation

import (
	"regexp"
	"strings"
	"unicode"
)

// Confidence assigned per extraction source.
const (
	confidenceExact    = 1.0
	confidencePhrase   = 0.9
	confidenceShortcut = 0.75
	confidenceLoose    = 0.6
	confidenceBareName = 0.5

	minNameLen = 2
	maxNameLen = 30
)

var (
	emailPattern      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	validEmailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phonePattern      = regexp.MustCompile(`(?:^|[^\d])((?:\+?1[\s.\-]?)?(?:\(\d{3}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4})(?:[^\d]|$)`)
	lettersAndSpaces  = regexp.MustCompile(`^[A-Za-z][A-Za-z ]*$`)
)

type namePattern struct {
	re *regexp.Regexp
	// loose patterns ("i'm ...", "it's ...") often precede non-names, so a
	// stoplisted first word rejects the match.
	loose bool
}

var namePatterns = []namePattern{
	{re: regexp.MustCompile(`(?i)\bmy\s*name\s*is\s+([a-z][a-z ]*)`)},
	{re: regexp.MustCompile(`(?i)\bmy\s+(?:nmae|naem|mane|nam|anme)\s+is\s+([a-z][a-z ]*)`)},
	{re: regexp.MustCompile(`(?i)\bmy\s+name'?s\s+([a-z][a-z ]*)`)},
	{re: regexp.MustCompile(`(?i)\bname\s*(?:is\b|:)\s*([a-z][a-z ]*)`)},
	{re: regexp.MustCompile(`(?i)\bcall\s+me\s+([a-z][a-z ]*)`), loose: true},
	{re: regexp.MustCompile(`(?i)\b(?:i'm|im|i am)\s+([a-z][a-z ]*)`), loose: true},
	{re: regexp.MustCompile(`(?i)\b(?:it's|its|it is|this is)\s+([a-z][a-z ]*)`), loose: true},
}

// ExtractResult is the structured contact data found in one message.
type ExtractResult struct {
	HasContact bool    `json:"has_contact"`
	Name       string  `json:"name,omitempty"`
	Email      string  `json:"email,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Confidence float64 `json:"confidence"`
	// NameConfidence is the confidence of Name alone. A later name with a
	// higher value may replace an earlier guess.
	NameConfidence float64 `json:"name_confidence,omitempty"`
}

// LeadInfo converts the result into mergeable lead fields.
func (r ExtractResult) LeadInfo() LeadInfo {
	return LeadInfo{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

// Extractor pulls contact details out of free text. It is pure and safe for
// concurrent use.
type Extractor struct {
	keywords *Keywords
}

func NewExtractor(keywords *Keywords) *Extractor {
	if keywords == nil {
		keywords = DefaultKeywords()
	}
	return &Extractor{keywords: keywords}
}

// Extract never fails; text without contact details yields an empty result.
func (e *Extractor) Extract(text string) ExtractResult {
	var res ExtractResult
	confidence := 0.0
	note := func(c float64) {
		if confidence == 0 || c < confidence {
			confidence = c
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return res
	}

	if email := emailPattern.FindString(text); email != "" {
		res.Email = email
		note(confidenceExact)
	}

	phoneSearch := text
	if res.Email != "" {
		phoneSearch = strings.Replace(text, res.Email, " ", 1)
	}
	if m := phonePattern.FindStringSubmatch(phoneSearch); m != nil {
		res.Phone = strings.TrimSpace(m[1])
		note(confidenceExact)
	}

	if name, loose := e.phraseName(text); name != "" {
		res.Name = name
		res.NameConfidence = confidencePhrase
		if loose {
			res.NameConfidence = confidenceLoose
		}
		note(res.NameConfidence)
	}

	// "Dana, dana@example.com"
	if res.Name == "" && res.Email != "" {
		if idx := strings.Index(text, ","); idx > 0 {
			if name := e.plausibleName(text[:idx], true); name != "" && name == collapseSpaces(text[:idx]) {
				res.Name = name
				res.NameConfidence = confidenceShortcut
				note(confidenceShortcut)
			}
		}
	}

	// A bare "Dana Smith" reply.
	if res.Name == "" && res.Email == "" && res.Phone == "" {
		if name := e.bareName(text); name != "" {
			res.Name = name
			res.NameConfidence = confidenceBareName
			note(confidenceBareName)
		}
	}

	res.HasContact = res.Name != "" || res.Email != "" || res.Phone != ""
	if res.HasContact {
		res.Confidence = confidence
	}
	return res
}

// phraseName returns the first plausible name introduced by a phrase and
// whether the phrase was a loose one.
func (e *Extractor) phraseName(text string) (string, bool) {
	for _, p := range namePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name := e.plausibleName(m[1], p.loose); name != "" {
			return name, p.loose
		}
	}
	return "", false
}

// plausibleName trims a captured phrase at "and" or the first stoplisted or
// business word, then enforces the length bounds. rejectLeading drops the
// whole phrase when its first word is stoplisted.
func (e *Extractor) plausibleName(phrase string, rejectLeading bool) string {
	words := strings.Fields(phrase)
	kept := make([]string, 0, len(words))
	for i, w := range words {
		if !lettersAndSpaces.MatchString(w) {
			break
		}
		stop := strings.EqualFold(w, "and") || e.keywords.NameStoplist.Contains(w) || e.keywords.Business.Match(w) || e.keywords.Greeting.Match(w)
		if stop {
			if i == 0 && rejectLeading {
				return ""
			}
			break
		}
		kept = append(kept, w)
	}
	name := strings.Join(kept, " ")
	if len(name) < minNameLen || len(name) > maxNameLen {
		return ""
	}
	return name
}

func (e *Extractor) bareName(text string) string {
	text = collapseSpaces(text)
	if len(text) < minNameLen || len(text) > maxNameLen || !lettersAndSpaces.MatchString(text) {
		return ""
	}
	words := strings.Fields(text)
	if len(words) == 0 || len(words) > 3 {
		return ""
	}
	for _, w := range words {
		if e.keywords.NameStoplist.Contains(w) {
			return ""
		}
	}
	k := e.keywords
	if k.Business.Match(text) || k.Greeting.Match(text) || k.Escalation.Match(text) || k.Deferral.Match(text) || k.Immediacy.Match(text) {
		return ""
	}
	return text
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidName accepts any non-blank value that is not purely numeric.
func ValidName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// ValidEmail accepts a simple local@domain.tld address.
func ValidEmail(email string) bool {
	return validEmailPattern.MatchString(strings.TrimSpace(email))
}

// ValidPhone requires a loose phone pattern with at least ten digits.
func ValidPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 10 && phonePattern.MatchString(phone)
}

// Validated drops fields that fail validation.
func (r ExtractResult) Validated() LeadInfo {
	info := r.LeadInfo()
	if !ValidName(info.Name) {
		info.Name = ""
	}
	if !ValidEmail(info.Email) {
		info.Email = ""
	}
	if !ValidPhone(info.Phone) {
		info.Phone = ""
	}
	return info
}
