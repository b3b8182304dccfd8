// Package text normalizes input text before it is handed to the synthesis
// engine, so that numbers, abbreviations and typographic punctuation are
// spoken rather than spelled out or skipped.
package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Number word boundaries.
const (
	baseTen      = 10
	baseTwenty   = 20
	baseHundred  = 100
	baseThousand = 1000
	// MaxSpokenNumber is the largest integer expanded into words.
	MaxSpokenNumber = 999999
)

var (
	ones = []string{
		"zero", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine",
	}
	teens = []string{
		"ten", "eleven", "twelve", "thirteen", "fourteen",
		"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}
	tens = []string{
		"", "", "twenty", "thirty", "forty", "fifty",
		"sixty", "seventy", "eighty", "ninety",
	}
)

// Patterns recognized by the normalizer.
const (
	// URLs drop trailing sentence punctuation so "see https://x.io/a." keeps its period.
	urlPattern          = `https?://\S*[^\s.,;:!?)\]'"]`
	emailPattern        = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	numberPattern       = `\d{1,3}(?:,\d{3})+(?:\.\d+)?\b|\d+(?:\.\d+)?`
	abbreviationPattern = `\b(?:Mrs|Mr|Ms|Dr|St|Jr|vs|etc)\.`
	whitespacePattern   = `\s+`
)

// tokenMark stands in for a preserved URL or email while the rest of the
// text is rewritten. It is a private-use rune, so no other step matches it.
const tokenMark = '\uE000'

// Normalizer rewrites text into a form the engine pronounces predictably.
type Normalizer struct {
	tokenPattern        *regexp.Regexp
	numberPattern       *regexp.Regexp
	abbreviationPattern *regexp.Regexp
	whitespacePattern   *regexp.Regexp
	abbreviations       map[string]string
	punctuation         *strings.Replacer
}

// NewNormalizer builds a Normalizer with precompiled patterns.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		tokenPattern:        regexp.MustCompile(urlPattern + "|" + emailPattern),
		numberPattern:       regexp.MustCompile(numberPattern),
		abbreviationPattern: regexp.MustCompile(abbreviationPattern),
		whitespacePattern:   regexp.MustCompile(whitespacePattern),
		abbreviations: map[string]string{
			"Mr.":  "Mister",
			"Mrs.": "Misses",
			"Ms.":  "Miss",
			"Dr.":  "Doctor",
			"St.":  "Saint",
			"Jr.":  "Junior",
			"vs.":  "versus",
			"etc.": "et cetera",
		},
		punctuation: strings.NewReplacer(
			"—", ", ",
			"–", "-",
			"…", "...",
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize expands abbreviations and numbers, folds typographic
// punctuation, collapses whitespace and terminates the final sentence.
// URLs and email addresses pass through untouched.
// Empty or whitespace-only input yields an empty string.
func (n *Normalizer) Normalize(input string) string {
	out, tokens := n.preserveTokens(input)
	out = n.expandAbbreviations(out)
	out = n.punctuation.Replace(out)
	out = n.numberPattern.ReplaceAllStringFunc(out, spellNumber)
	out = strings.TrimSpace(n.whitespacePattern.ReplaceAllString(out, " "))

	return terminateSentence(restoreTokens(out, tokens))
}

// preserveTokens swaps every URL and email address for tokenMark and
// returns the originals in order of appearance.
func (n *Normalizer) preserveTokens(input string) (string, []string) {
	var tokens []string

	out := strings.ReplaceAll(input, string(tokenMark), "")
	out = n.tokenPattern.ReplaceAllStringFunc(out, func(match string) string {
		tokens = append(tokens, match)

		return string(tokenMark)
	})

	return out, tokens
}

func restoreTokens(text string, tokens []string) string {
	if len(tokens) == 0 {
		return text
	}

	var builder strings.Builder

	next := 0

	for _, char := range text {
		if char == tokenMark && next < len(tokens) {
			builder.WriteString(tokens[next])
			next++

			continue
		}

		builder.WriteRune(char)
	}

	return builder.String()
}

// expandAbbreviations replaces whole-word abbreviations only, so "PhDr."
// or "Andr." are left alone.
func (n *Normalizer) expandAbbreviations(text string) string {
	return n.abbreviationPattern.ReplaceAllStringFunc(text, func(match string) string {
		return n.abbreviations[match]
	})
}

// spellNumber reads "1,250" as "one thousand two hundred fifty" and "3.14"
// as "three point one four". Integers above MaxSpokenNumber are left as written.
func spellNumber(match string) string {
	whole, fraction, hasFraction := strings.Cut(match, ".")

	value, err := strconv.Atoi(strings.ReplaceAll(whole, ",", ""))
	if err != nil || value > MaxSpokenNumber {
		return match
	}

	words := NumberToWords(value)
	if !hasFraction {
		return words
	}

	digits := make([]string, 0, len(fraction))
	for _, digit := range fraction {
		digits = append(digits, ones[digit-'0'])
	}

	return words + " point " + strings.Join(digits, " ")
}

// NumberToWords spells out an integer in English. Values outside
// [0, MaxSpokenNumber] are returned as digits.
func NumberToWords(number int) string {
	if number < 0 || number > MaxSpokenNumber {
		return strconv.Itoa(number)
	}

	if number < baseThousand {
		return underThousand(number)
	}

	words := underThousand(number/baseThousand) + " thousand"
	if rest := number % baseThousand; rest > 0 {
		words += " " + underThousand(rest)
	}

	return words
}

func underThousand(number int) string {
	if number < baseHundred {
		return underHundred(number)
	}

	words := ones[number/baseHundred] + " hundred"
	if rest := number % baseHundred; rest > 0 {
		words += " " + underHundred(rest)
	}

	return words
}

func underHundred(number int) string {
	switch {
	case number < baseTen:
		return ones[number]
	case number < baseTwenty:
		return teens[number-baseTen]
	case number%baseTen == 0:
		return tens[number/baseTen]
	default:
		return tens[number/baseTen] + " " + ones[number%baseTen]
	}
}

func terminateSentence(text string) string {
	if text == "" {
		return ""
	}

	// Closing brackets and quotes stay; the sentence mark goes after them
	// unless the wrapped text already ends one.
	body := strings.TrimRightFunc(text, isClosingMark)
	closed := len(body) < len(text)

	last, _ := utf8.DecodeLastRuneInString(body)

	switch {
	case last == '.' || last == '!' || last == '?':
		return text
	case !closed && unicode.IsPunct(last):
		return strings.TrimSpace(strings.TrimRightFunc(text, unicode.IsPunct)) + "."
	default:
		return text + "."
	}
}

func isClosingMark(char rune) bool {
	switch char {
	case ')', ']', '}', '"', '\'':
		return true
	default:
		return false
	}
}
