package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

// ProjectLine is one row of the live project computo, the left-hand side of
// an alignment (§4.4).
type ProjectLine struct {
	OrderIndex  int
	Progressivo *int
	Code        string
	Description string
	UOM         string
	Quantity    *float64
	UnitPrice   *float64
	WbsLevels   []domain.WbsLevel
}

// AlignedLine is one output row: a project-shaped line carrying the
// resolved (or missing) return values (§4.4).
type AlignedLine struct {
	ProjectLine
	Quantity          *float64
	UnitPrice         *float64
	Amount            *float64
	MissingFromReturn bool
}

// LegacyPair links an aligned project line to the return entry it matched,
// for callers that need to propagate provenance (e.g. offer sync, §4.5).
type LegacyPair struct {
	ProjectOrderIndex int
	Return            *ParsedVoce
}

// ReturnAlignmentResult is the output of AlignReturnRows (§4.4).
type ReturnAlignmentResult struct {
	AlignedLines               []AlignedLine
	LegacyPairs                []LegacyPair
	MatchedCount                int
	PriceAdjustments            []string
	ZeroGuardViolations          []string
	ReturnOnlyLabels             []string
	ProgressQuantityMismatches   []string
	ProgressPriceConflicts       []string
	ExcelOnlyGroups              []string
}

type returnWrapper struct {
	entry    *ParsedVoce
	tokens   map[string]struct{}
	baseKey  string
	used     bool
	matched  bool
}

// isForcedZero reports whether a line is subject to the zero-guard
// invariant: its code starts with one of ForcedZeroCodePrefixes, or its
// description (normalized) contains one of ForcedZeroDescriptionKeywords
// (§4.4.1 step 5, P3).
func isForcedZero(code, description string) bool {
	for _, prefix := range ForcedZeroCodePrefixes {
		if strings.HasPrefix(strings.ToUpper(code), prefix) {
			return true
		}
	}
	normalized := strings.ToLower(description)
	for _, kw := range ForcedZeroDescriptionKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// AlignReturnRows is the C4 entry point (§4.4). It picks progressive mode
// when preferProgressives is true and at least one return line carries a
// Progressivo, else description-only mode.
func AlignReturnRows(
	projectLines []ProjectLine,
	returnLines []ParsedVoce,
	preferProgressives bool,
	cfg Thresholds,
) ReturnAlignmentResult {
	anyProgressivo := false
	for i := range returnLines {
		if returnLines[i].Progressivo != nil {
			anyProgressivo = true
			break
		}
	}
	if preferProgressives && anyProgressivo {
		return alignProgressive(projectLines, returnLines, cfg)
	}
	return alignDescriptionOnly(projectLines, returnLines, cfg)
}

// alignProgressive implements §4.4.1.
func alignProgressive(projectLines []ProjectLine, returnLines []ParsedVoce, cfg Thresholds) ReturnAlignmentResult {
	wrappers := make([]*returnWrapper, len(returnLines))
	codeIndex := make(map[string][]*returnWrapper)
	wbsIndex := make(map[string][]*returnWrapper)
	tokenIndex := make(map[string][]*returnWrapper)

	for i := range returnLines {
		w := &returnWrapper{
			entry:  &returnLines[i],
			tokens: DescrTokens(returnLines[i].Description, cfg),
		}
		w.baseKey = BuildWbsBaseKeyFromParsed(w.entry)
		wrappers[i] = w

		if code := NormalizeCodeToken(w.entry.Code); code != "" {
			codeIndex[code] = append(codeIndex[code], w)
		}
		if w.baseKey != "" {
			wbsIndex[w.baseKey] = append(wbsIndex[w.baseKey], w)
		}
		for key := range buildSearchKeys(w.entry, cfg) {
			if len(key) >= 4 {
				tokenIndex[key] = append(tokenIndex[key], w)
			}
		}
	}

	result := ReturnAlignmentResult{}
	progressivePriceRegistry := make(map[string]float64) // key: progressivo|normalized_code
	var zeroGuardInputs []struct {
		code, desc string
		qty, price, amount float64
	}

	for _, pl := range projectLines {
		pl := pl
		match := pickMatch(pl, wbsIndex, codeIndex, tokenIndex, cfg)

		aligned := AlignedLine{ProjectLine: pl}

		if match == nil {
			aligned.MissingFromReturn = true
			zero := 0.0
			aligned.Quantity = &zero
			aligned.Amount = &zero
			aligned.UnitPrice = pl.UnitPrice
			result.AlignedLines = append(result.AlignedLines, aligned)
			continue
		}

		result.MatchedCount++
		result.LegacyPairs = append(result.LegacyPairs, LegacyPair{ProjectOrderIndex: pl.OrderIndex, Return: match})

		price := pl.UnitPrice
		if match.UnitPrice != nil {
			stabilized, adjusted := StabilizeReturnPrice(*match.UnitPrice, pl.UnitPrice)
			price = &stabilized
			if adjusted {
				result.PriceAdjustments = append(result.PriceAdjustments,
					fmt.Sprintf("%s: %.2f -> %.2f", lineLabel(pl.Code, pl.Description), *match.UnitPrice, stabilized))
			}
		}

		quantity := pl.Quantity
		if match.Quantity != nil {
			quantity = match.Quantity
		}

		if pl.Progressivo != nil && match.UnitPrice != nil {
			key := fmt.Sprintf("%d|%s", *pl.Progressivo, NormalizeCodeToken(pl.Code))
			if registered, ok := progressivePriceRegistry[key]; ok {
				if math.Abs(registered-*match.UnitPrice) > 0.01 {
					result.ProgressPriceConflicts = append(result.ProgressPriceConflicts,
						fmt.Sprintf("%s: registered %.2f, saw %.2f", lineLabel(pl.Code, pl.Description), registered, *match.UnitPrice))
				}
			} else {
				progressivePriceRegistry[key] = *match.UnitPrice
			}
		}

		if pl.Quantity != nil && match.Quantity != nil && math.Abs(*match.Quantity-*pl.Quantity) > 1e-4 {
			result.ProgressQuantityMismatches = append(result.ProgressQuantityMismatches,
				fmt.Sprintf("%s: progetto=%.4f ritorno=%.4f", lineLabel(pl.Code, pl.Description), *pl.Quantity, *match.Quantity))
		}

		var amount *float64
		if price != nil && quantity != nil {
			a := roundTo(*price**quantity, 2)
			amount = &a
		}

		aligned.Quantity = quantity
		aligned.UnitPrice = price
		aligned.Amount = amount
		result.AlignedLines = append(result.AlignedLines, aligned)

		if isForcedZero(pl.Code, pl.Description) {
			q, p, a := 0.0, 0.0, 0.0
			if quantity != nil {
				q = *quantity
			}
			if price != nil {
				p = *price
			}
			if amount != nil {
				a = *amount
			}
			zeroGuardInputs = append(zeroGuardInputs, struct {
				code, desc string
				qty, price, amount float64
			}{pl.Code, pl.Description, q, p, a})
		}
	}

	for _, zg := range zeroGuardInputs {
		if zg.qty != 0 || zg.price != 0 || zg.amount != 0 {
			result.ZeroGuardViolations = append(result.ZeroGuardViolations,
				fmt.Sprintf("%s: Q=%.4f P=%.2f I=%.2f", lineLabel(zg.code, zg.desc), zg.qty, zg.price, zg.amount))
		}
	}

	for _, w := range wrappers {
		if !w.matched {
			result.ReturnOnlyLabels = append(result.ReturnOnlyLabels, lineLabel(w.entry.Code, w.entry.Description))
		}
	}

	return result
}

// pickMatch implements the cascade described in §4.4.1 step 1-2, grounded
// on matching/legacy.py's _pick_match: a WBS-bucket claim, then exact code
// token lookup, then a token-indexed candidate pool scored by Jaccard
// (>= JaccardMinThreshold), falling back to a looser overlap-ratio test
// (>= DescriptionMinRatio) when no candidate clears the Jaccard bar.
func pickMatch(
	pl ProjectLine,
	wbsIndex map[string][]*returnWrapper,
	codeIndex map[string][]*returnWrapper,
	tokenIndex map[string][]*returnWrapper,
	cfg Thresholds,
) *ParsedVoce {
	projectBaseKey := BuildWbsBaseKeyFromParsed(&ParsedVoce{Code: pl.Code, Description: pl.Description, WbsLevels: pl.WbsLevels})
	projectTokens := DescrTokens(pl.Description, cfg)

	if projectBaseKey != "" {
		if bucket := wbsIndex[projectBaseKey]; len(bucket) > 0 {
			if w := claimFromBucket(bucket, projectTokens, cfg); w != nil {
				w.matched, w.used = true, true
				return w.entry
			}
		}
	}

	if code := NormalizeCodeToken(pl.Code); code != "" {
		for _, w := range codeIndex[code] {
			if w.used {
				continue
			}
			if w.baseKey != "" && projectBaseKey != "" && w.baseKey != projectBaseKey {
				continue
			}
			w.matched, w.used = true, true
			return w.entry
		}
	}

	if len(projectTokens) == 0 {
		return nil
	}

	seen := make(map[*returnWrapper]struct{})
	var candidates []*returnWrapper
	for key := range buildProjectSearchKeys(pl, cfg) {
		if len(key) < 4 {
			continue
		}
		for _, w := range tokenIndex[key] {
			if w.used {
				continue
			}
			if w.baseKey != "" && projectBaseKey != "" && w.baseKey != projectBaseKey {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			candidates = append(candidates, w)
		}
		if len(candidates) >= cfg.MaxCandidatesFilter {
			break
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var filtered []*returnWrapper
	for _, w := range candidates {
		if jaccardIntersectionSize(projectTokens, w.tokens) >= 1 {
			filtered = append(filtered, w)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) > cfg.MaxCandidatesFinal {
		filtered = filtered[:cfg.MaxCandidatesFinal]
	}

	best, bestScore := bestByJaccard(projectTokens, filtered)
	if best == nil || bestScore < cfg.JaccardMinThreshold {
		best = bestByOverlapRatio(projectTokens, candidates, cfg)
		if best == nil {
			return nil
		}
	}
	best.matched, best.used = true, true
	return best.entry
}

func claimFromBucket(bucket []*returnWrapper, projectTokens map[string]struct{}, cfg Thresholds) *returnWrapper {
	var available []*returnWrapper
	for _, w := range bucket {
		if !w.used {
			available = append(available, w)
		}
	}
	if len(available) == 0 {
		return nil
	}
	best, bestScore := bestByJaccard(projectTokens, available)
	if best != nil && bestScore >= cfg.JaccardPreferenceThreshold {
		return best
	}
	if len(available) == 1 {
		return available[0]
	}
	return nil
}

func bestByJaccard(tokens map[string]struct{}, wrappers []*returnWrapper) (*returnWrapper, float64) {
	var best *returnWrapper
	bestScore := 0.0
	for _, w := range wrappers {
		score := JaccardSimilarity(tokens, w.tokens)
		if score > bestScore {
			bestScore = score
			best = w
		}
	}
	return best, bestScore
}

// bestByOverlapRatio is the looser fallback: |a∩b| / max(|a|,|b|) >= ratio (§4.4.1 step 2).
func bestByOverlapRatio(tokens map[string]struct{}, wrappers []*returnWrapper, cfg Thresholds) *returnWrapper {
	var best *returnWrapper
	bestScore := 0.0
	for _, w := range wrappers {
		if w.used {
			continue
		}
		inter := jaccardIntersectionSize(tokens, w.tokens)
		if inter == 0 {
			continue
		}
		denom := len(tokens)
		if len(w.tokens) > denom {
			denom = len(w.tokens)
		}
		ratio := float64(inter) / float64(denom)
		if ratio > bestScore {
			bestScore = ratio
			best = w
		}
	}
	if bestScore >= cfg.DescriptionMinRatio {
		return best
	}
	return nil
}

func jaccardIntersectionSize(a, b map[string]struct{}) int {
	count := 0
	for k := range a {
		if _, ok := b[k]; ok {
			count++
		}
	}
	return count
}

func buildSearchKeys(p *ParsedVoce, cfg Thresholds) map[string]struct{} {
	keys := make(map[string]struct{})
	for token := range CollectDescriptionTokens(p.Description, cfg) {
		keys[token] = struct{}{}
	}
	if code := NormalizeToken(p.Code); code != "" {
		keys[code] = struct{}{}
	}
	for _, lvl := range p.WbsLevels {
		if t := NormalizeToken(lvl.Description); t != "" {
			keys[t] = struct{}{}
		}
		if t := NormalizeToken(lvl.Code); t != "" {
			keys[t] = struct{}{}
		}
	}
	return keys
}

func buildProjectSearchKeys(pl ProjectLine, cfg Thresholds) map[string]struct{} {
	return buildSearchKeys(&ParsedVoce{Code: pl.Code, Description: pl.Description, WbsLevels: pl.WbsLevels}, cfg)
}

func lineLabel(code, description string) string {
	label := strings.TrimSpace(code)
	if label == "" {
		label = strings.TrimSpace(description)
	}
	if label == "" {
		label = "(senza codice)"
	}
	if len(label) > 80 {
		label = label[:80] + "…"
	}
	return label
}

func roundTo(v float64, dp int) float64 {
	factor := math.Pow(10, float64(dp))
	return math.Round(v*factor) / factor
}

// alignDescriptionOnly implements §4.4.2.
func alignDescriptionOnly(projectLines []ProjectLine, returnLines []ParsedVoce, cfg Thresholds) ReturnAlignmentResult {
	result := ReturnAlignmentResult{}

	queues := make(map[string][]*ParsedVoce)
	for i := range returnLines {
		sig := DescriptionSignature(returnLines[i].Description, "", "")
		queues[sig] = append(queues[sig], &returnLines[i])
	}
	used := make(map[*ParsedVoce]bool)

	sorted := make([]ProjectLine, len(projectLines))
	copy(sorted, projectLines)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Code != sorted[j].Code {
			return sorted[i].Code < sorted[j].Code
		}
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	matchOf := make(map[int]*ParsedVoce) // OrderIndex -> matched return line

	for _, pl := range sorted {
		sig := DescriptionSignature(pl.Description, "", "")
		queue := queues[sig]
		for len(queue) > 0 {
			candidate := queue[0]
			queue = queue[1:]
			queues[sig] = queue
			if used[candidate] {
				continue
			}
			matchOf[pl.OrderIndex] = candidate
			used[candidate] = true
			break
		}
	}

	projectTokensCache := make(map[int]map[string]struct{}, len(projectLines))
	for _, pl := range projectLines {
		projectTokensCache[pl.OrderIndex] = DescrTokens(pl.Description, cfg)
	}

	for _, pl := range projectLines {
		if matchOf[pl.OrderIndex] != nil {
			continue
		}
		projectTokens := projectTokensCache[pl.OrderIndex]
		var best *ParsedVoce
		bestScore := 0.0
		for i := range returnLines {
			candidate := &returnLines[i]
			if used[candidate] {
				continue
			}
			score := JaccardSimilarity(projectTokens, DescrTokens(candidate.Description, cfg))
			if score > bestScore {
				bestScore = score
				best = candidate
			}
		}
		if best != nil && bestScore >= cfg.DescriptionMinRatio {
			matchOf[pl.OrderIndex] = best
			used[best] = true
		}
	}

	for _, pl := range projectLines {
		aligned := AlignedLine{ProjectLine: pl}
		match := matchOf[pl.OrderIndex]
		if match == nil {
			aligned.MissingFromReturn = true
			zero := 0.0
			aligned.Quantity = &zero
			aligned.Amount = &zero
			aligned.UnitPrice = pl.UnitPrice
			result.AlignedLines = append(result.AlignedLines, aligned)
			continue
		}
		result.MatchedCount++
		result.LegacyPairs = append(result.LegacyPairs, LegacyPair{ProjectOrderIndex: pl.OrderIndex, Return: match})

		price := pl.UnitPrice
		if match.UnitPrice != nil {
			price = match.UnitPrice
		}
		quantity := pl.Quantity
		if match.Quantity != nil {
			quantity = match.Quantity
		} else if match.Amount != nil && price != nil && *price != 0 {
			q := *match.Amount / *price
			quantity = &q
		}
		var amount *float64
		if price != nil && quantity != nil {
			a := roundTo(*price**quantity, 2)
			amount = &a
		} else if match.Amount != nil {
			amount = match.Amount
		}
		aligned.UnitPrice = price
		aligned.Quantity = quantity
		aligned.Amount = amount
		result.AlignedLines = append(result.AlignedLines, aligned)
	}

	for i := range returnLines {
		if !used[&returnLines[i]] {
			result.ReturnOnlyLabels = append(result.ReturnOnlyLabels, lineLabel(returnLines[i].Code, returnLines[i].Description))
		}
	}

	return result
}
