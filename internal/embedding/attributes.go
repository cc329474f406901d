// Package embedding implements C3: the semantic embedding service (a
// SentenceTransformer-equivalent client), the construction-specific
// attribute extractor, and a per-commessa FAISS-equivalent vector index
// backed by Qdrant. Grounded on
// original_source/backend/app/services/catalog/embeddings.py and
// platform/ai/embeddings + platform/qdrant.
package embedding

import (
	"regexp"
	"strconv"
	"strings"
)

// Attributes is the regex+keyword miner output for one catalog/query text
// (§4.3 "Attribute extraction").
type Attributes struct {
	NumLastre        *int
	SpessoreMM       *int
	TipoRivestimento string
	TipoLastra       string
	MontanteMM       *int
	Isolamento       string
}

var (
	reNumLastreParens  = regexp.MustCompile(`\((\d+)\)\s*lastr[ae]`)
	reNumLastreX       = regexp.MustCompile(`lastr(?:a|e)\s*[xX]\s*(\d+)`)
	reDoppiaLastra     = regexp.MustCompile(`doppia\s+lastra`)
	reSingolaLastra    = regexp.MustCompile(`singola\s+lastra`)
	reTriplaLastra     = regexp.MustCompile(`tripla\s+lastra`)
	reSpessoreDi       = regexp.MustCompile(`spessore\s*(?:di)?\s*(\d+)\s*(mm|cm)`)
	reMmSpessore       = regexp.MustCompile(`(\d+)\s*mm\s*spessore`)
	reSpAbbrev         = regexp.MustCompile(`sp\.\s*(\d+)`)
	reStratigrafia     = regexp.MustCompile(`(\d+)\s*/\s*(\d+)\s*/\s*(\d+)`)
	reMontante         = regexp.MustCompile(`c\s*\(?\s*(\d+)\s*\)?`)
	reNonAlnumLowerExt = regexp.MustCompile(`[^a-z0-9\s]`)
)

var rivestimentoKeywords = []string{"ceramica", "legno", "pietra", "resina", "pvc", "moquette", "intonaco", "pittura", "carta_parati"}
var lastraKeywords = []string{"standard", "idrofuga", "ignifuga", "acustica", "alta_densita"}
var isolamentoKeywords = map[string][]string{
	"lana_roccia": {"lana di roccia", "lana roccia"},
	"lana_vetro":  {"lana di vetro", "lana vetro"},
	"polistirene": {"polistirene", "eps", "xps"},
	"fibra_legno": {"fibra di legno", "fibra legno"},
	"sughero":     {"sughero"},
}

// ExtractAttributes mines the construction-domain attribute set from a
// catalog item's (or search query's) composed text (§4.3).
func ExtractAttributes(text string) Attributes {
	lower := strings.ToLower(text)
	var attrs Attributes

	switch {
	case reNumLastreParens.MatchString(lower):
		attrs.NumLastre = atoiPtr(reNumLastreParens.FindStringSubmatch(lower)[1])
	case reNumLastreX.MatchString(lower):
		attrs.NumLastre = atoiPtr(reNumLastreX.FindStringSubmatch(lower)[1])
	case reDoppiaLastra.MatchString(lower):
		attrs.NumLastre = intPtr(2)
	case reTriplaLastra.MatchString(lower):
		attrs.NumLastre = intPtr(3)
	case reSingolaLastra.MatchString(lower):
		attrs.NumLastre = intPtr(1)
	}

	switch {
	case reSpessoreDi.MatchString(lower):
		m := reSpessoreDi.FindStringSubmatch(lower)
		attrs.SpessoreMM = normalizeToMM(m[1], m[2])
	case reMmSpessore.MatchString(lower):
		attrs.SpessoreMM = atoiPtr(reMmSpessore.FindStringSubmatch(lower)[1])
	case reSpAbbrev.MatchString(lower):
		attrs.SpessoreMM = atoiPtr(reSpAbbrev.FindStringSubmatch(lower)[1])
	case reStratigrafia.MatchString(lower):
		m := reStratigrafia.FindStringSubmatch(lower)
		sum := 0
		for _, part := range m[1:] {
			if v, err := strconv.Atoi(part); err == nil {
				sum += v
			}
		}
		attrs.SpessoreMM = &sum
	}

	for _, kw := range rivestimentoKeywords {
		if strings.Contains(lower, strings.ReplaceAll(kw, "_", " ")) || strings.Contains(lower, kw) {
			attrs.TipoRivestimento = kw
			break
		}
	}

	for _, kw := range lastraKeywords {
		if strings.Contains(lower, strings.ReplaceAll(kw, "_", " ")) {
			attrs.TipoLastra = kw
			break
		}
	}

	if reMontante.MatchString(lower) {
		m := reMontante.FindStringSubmatch(lower)
		attrs.MontanteMM = atoiPtr(m[1])
	}

	for key, keywords := range isolamentoKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				attrs.Isolamento = key
				break
			}
		}
		if attrs.Isolamento != "" {
			break
		}
	}

	return attrs
}

func normalizeToMM(value, unit string) *int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	if unit == "cm" {
		n *= 10
	}
	return &n
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func intPtr(v int) *int { return &v }

// ComposeItemText concatenates, in order, the non-empty fields the
// catalog-item embedding text is built from, joined by " • ". Prices are
// deliberately excluded (§4.3 "Text composition for a catalog item").
func ComposeItemText(itemCode, itemDescription, wbs6Description, wbs7Description string, priceListLabels []string) string {
	parts := make([]string, 0, 4+len(priceListLabels))
	for _, p := range []string{itemCode, itemDescription, wbs6Description, wbs7Description} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	sortedLabels := uniqueSorted(priceListLabels)
	parts = append(parts, sortedLabels...)
	return strings.Join(parts, " • ")
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	for i := 1; i < len(unique); i++ {
		for j := i; j > 0 && unique[j-1] > unique[j]; j-- {
			unique[j-1], unique[j] = unique[j], unique[j-1]
		}
	}
	return unique
}
