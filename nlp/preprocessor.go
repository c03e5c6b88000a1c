package nlp

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Preprocessor cleans diary text and redacts personally identifiable
// information before anything downstream sees it. It is stateless aside
// from the compiled patterns and safe for concurrent use.
type Preprocessor struct {
	redactPII bool

	whitespaceRe *regexp.Regexp
	punctRunRe   *regexp.Regexp
	emailRe      *regexp.Regexp
	phoneRe      *regexp.Regexp
	passportRe   *regexp.Regexp
	cardRe       *regexp.Regexp
	innRe        *regexp.Regexp
	normalizeRe  *regexp.Regexp
	sentenceRe   *regexp.Regexp
}

// NewPreprocessor builds a preprocessor. When redactPII is false only the
// cleaning passes run.
func NewPreprocessor(redactPII bool) *Preprocessor {
	return &Preprocessor{
		redactPII:    redactPII,
		whitespaceRe: regexp.MustCompile(`\s+`),
		punctRunRe:   regexp.MustCompile(`([!?.,]){4,}`),
		emailRe:      regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		phoneRe:      regexp.MustCompile(`\+?\d[\d().\-\s]{5,}\d`),
		passportRe:   regexp.MustCompile(`\b\d{4}\s?\d{6}\b`),
		cardRe:       regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
		// Go regexp word boundaries are ASCII-only, so the leading boundary
		// around the Cyrillic token has to be matched explicitly.
		innRe:       regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])ИНН:?\s*\d{10,12}\b`),
		normalizeRe: regexp.MustCompile(`[^\p{L}\p{N}_\s]`),
		sentenceRe:  regexp.MustCompile(`[.!?]+\s+([А-ЯЁA-Z])`),
	}
}

// Preprocess cleans text and, if enabled, redacts PII.
// Empty input yields empty output.
func (p *Preprocessor) Preprocess(text string) string {
	if text == "" {
		return ""
	}

	text = p.cleanText(text)

	if p.redactPII {
		text = p.redact(text)
	}

	return text
}

func (p *Preprocessor) cleanText(text string) string {
	text = p.whitespaceRe.ReplaceAllString(text, " ")
	// Runs of four or more of !?., collapse to three of the last one.
	text = p.punctRunRe.ReplaceAllString(text, "$1$1$1")
	return strings.TrimSpace(text)
}

func (p *Preprocessor) redact(text string) string {
	text = p.emailRe.ReplaceAllString(text, "<EMAIL>")
	text = p.redactPhoneNumbers(text)
	text = p.passportRe.ReplaceAllString(text, "<PASSPORT>")
	text = p.cardRe.ReplaceAllString(text, "<CARD>")
	text = p.innRe.ReplaceAllString(text, "${1}<INN>")
	return text
}

// redactPhoneNumbers validates candidate substrings with the libphonenumber
// port biased to RU. Candidates that fail validation but still look like
// dialable international numbers are redacted by the permissive fallback,
// accepting some false positives over leaked numbers.
func (p *Preprocessor) redactPhoneNumbers(text string) string {
	return p.phoneRe.ReplaceAllStringFunc(text, func(candidate string) string {
		digits := countDigits(candidate)
		if digits < 7 {
			return candidate
		}
		num, err := phonenumbers.Parse(candidate, "RU")
		if err == nil && phonenumbers.IsValidNumber(num) {
			return "<PHONE>"
		}
		// Permissive fallback for strings the parser rejects.
		if strings.Contains(candidate, "+") && digits >= 10 {
			return "<PHONE>"
		}
		return candidate
	})
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// NormalizeText lowercases, strips punctuation, and collapses whitespace.
// The result keys the history store and the result cache.
func (p *Preprocessor) NormalizeText(text string) string {
	text = strings.ToLower(text)
	text = p.normalizeRe.ReplaceAllString(text, "")
	text = p.whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitSentences splits text on sentence-final punctuation followed by a
// capital letter. Not on the hot path; kept for callers that want
// sentence-level processing.
func (p *Preprocessor) SplitSentences(text string) []string {
	var sentences []string
	rest := text
	for {
		loc := p.sentenceRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		// loc[0]:loc[1] covers punctuation+space+capital; loc[2] is where
		// the capital (the next sentence) starts.
		if s := strings.TrimSpace(rest[:loc[0]]); s != "" {
			sentences = append(sentences, s)
		}
		rest = rest[loc[2]:]
	}
	if s := strings.TrimSpace(strings.TrimRight(rest, ".!? ")); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
