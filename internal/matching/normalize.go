package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var wordTokenizerRe = regexp.MustCompile(`[A-Za-z0-9]+`)
var nonAlphanumRe = regexp.MustCompile(`[^A-Za-z0-9]+`)
var nonCodeCharRe = regexp.MustCompile(`[^A-Z0-9]`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeToken NFKD-decomposes s, keeps only alphanumerics, lowercases
// them. Mirrors normalization.py's normalize_token. Returns "" for a blank
// input (the Python original returns None; callers treat "" as absent).
func NormalizeToken(s string) string {
	if s == "" {
		return ""
	}
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NormalizeCodeToken uppercases code and strips everything outside [A-Z0-9].
// Mirrors normalization.py's normalize_code_token.
func NormalizeCodeToken(code string) string {
	if code == "" {
		return ""
	}
	upper := strings.ToUpper(code)
	return nonCodeCharRe.ReplaceAllString(upper, "")
}

// NormalizeDescriptionToken NFKD-decomposes text, strips combining marks,
// lowercases, and collapses whitespace. Mirrors
// normalization.py's normalize_description_token.
func NormalizeDescriptionToken(text string) string {
	if text == "" {
		return ""
	}
	decomposed := norm.NFKD.String(text)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) { // combining mark
			continue
		}
		b.WriteRune(r)
	}
	lowered := strings.ToLower(b.String())
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(lowered, " "))
}

// TokenizeWords strips combining marks, lowercases, and splits text into
// alphanumeric words. Mirrors normalization.py's tokenize_words.
func TokenizeWords(text string) []string {
	decomposed := norm.NFKD.String(text)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return wordTokenizerRe.FindAllString(strings.ToLower(b.String()), -1)
}

func splitLines(text string) []string {
	normalized := strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	var lines []string
	for _, part := range strings.Split(normalized, "\n") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// ExtractDescriptionTokens builds the Jaccard token set for a description:
// the whole normalized text (if long enough), each normalized line, and
// individual words (excluding stopwords). Mirrors
// normalization.py's extract_description_tokens.
func ExtractDescriptionTokens(text string, cfg Thresholds) map[string]struct{} {
	tokens := make(map[string]struct{})
	if text == "" {
		return tokens
	}
	normalizedText := strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	segments := append([]string{normalizedText}, splitLines(normalizedText)...)
	for _, segment := range segments {
		token := NormalizeToken(segment)
		if token != "" && len(token) >= cfg.MinTokenLengthDescription {
			tokens[token] = struct{}{}
		}
	}
	for _, word := range nonAlphanumRe.Split(text, -1) {
		if len(word) >= cfg.MinWordTokenLength {
			lower := strings.ToLower(word)
			if !isStopword(lower) {
				tokens[lower] = struct{}{}
			}
		}
	}
	return tokens
}

// DescrTokens is the Jaccard-comparison token set (same rules as
// ExtractDescriptionTokens, words >= MinWordTokenLength), used by the
// alignment engine's candidate scoring (§4.4.1 step 2, §4.4.2 step 2).
func DescrTokens(text string, cfg Thresholds) map[string]struct{} {
	return ExtractDescriptionTokens(text, cfg)
}

// CollectCodeTokens extracts the normalized code plus its progressive
// prefixes (e.g. "A.B.C" -> {"abc", "a", "ab"}). Mirrors
// normalization.py's collect_code_tokens.
func CollectCodeTokens(code string) map[string]struct{} {
	tokens := make(map[string]struct{})
	if code == "" {
		return tokens
	}
	normalized := NormalizeToken(code)
	if normalized == "" {
		return tokens
	}
	tokens[normalized] = struct{}{}

	var builder strings.Builder
	for _, segment := range nonAlphanumRe.Split(code, -1) {
		if segment == "" {
			continue
		}
		cleaned := NormalizeToken(segment)
		if cleaned == "" {
			continue
		}
		builder.WriteString(cleaned)
		tokens[builder.String()] = struct{}{}
	}
	return tokens
}

// CollectDescriptionTokens extracts indexing tokens from a description: the
// whole text/lines (if long enough) plus individual segments >= 4 chars.
// Mirrors normalization.py's collect_description_tokens.
func CollectDescriptionTokens(text string, cfg Thresholds) map[string]struct{} {
	tokens := make(map[string]struct{})
	if text == "" {
		return tokens
	}
	normalizedText := strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	segments := append([]string{normalizedText}, splitLines(normalizedText)...)
	for _, segment := range segments {
		token := NormalizeToken(segment)
		if token != "" && len(token) >= cfg.MinTokenLengthDescription {
			tokens[token] = struct{}{}
		}
	}
	for _, segment := range nonAlphanumRe.Split(text, -1) {
		token := NormalizeToken(segment)
		if token != "" && len(token) >= 4 {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}

// BuildHeadTailSignatures tokenizes description and joins the first/last
// `limit` words into head/tail signatures, used as secondary keys when the
// full signature fails to match (§4.1).
func BuildHeadTailSignatures(description string, limit int) (head, tail string) {
	if description == "" {
		return "", ""
	}
	tokens := TokenizeWords(description)
	if len(tokens) == 0 {
		return "", ""
	}
	headTokens := tokens
	if len(tokens) > limit {
		headTokens = tokens[:limit]
	}
	tailTokens := tokens
	if len(tokens) > limit {
		tailTokens = tokens[len(tokens)-limit:]
	}
	return strings.Join(headTokens, " "), strings.Join(tailTokens, " ")
}

// DescriptionSignature builds the unique signature for a description. Per
// SPEC_FULL.md §13.1, unit and wbs6Code are accepted (for call-site
// symmetry) but, exactly as in the original, do not affect the result.
func DescriptionSignature(description, unit, wbs6Code string) string {
	return NormalizeDescriptionToken(description)
}

// JaccardSimilarity returns |a∩b| / |a∪b|, or 0 for two empty sets.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
