// Package matching implements C1 (normalization kit) and C4 (alignment
// engine) of the specification. Grounded on
// original_source/backend/app/services/importers/matching/{config,normalization,legacy,report}.py.
package matching

// Thresholds holds the matcher constants named in spec.md §9's Open
// Questions ("expose them in config; do not change defaults silently").
// Defaults below are the exact values from matching/config.py.
type Thresholds struct {
	// SemanticMinScore is the minimum semantic similarity to accept a
	// catalog match (§4.3).
	SemanticMinScore float64
	// SemanticDefaultBucket is the embedding-map bucket used when a WBS6
	// code is unavailable (§4.2).
	SemanticDefaultBucket string
	// HeadTailWordLimit is N in the head/tail n-gram signatures (§4.1).
	HeadTailWordLimit int
	// JaccardMinThreshold is the minimum Jaccard score to accept a
	// progressive-mode description match (§4.4.1 step 2).
	JaccardMinThreshold float64
	// JaccardPreferenceThreshold is the Jaccard score above which a
	// return-wrapper is "preferred" for a given base_key bucket (§4.4.1 step 1).
	JaccardPreferenceThreshold float64
	// JaccardPreferenceDelta is the recorded minimum margin over the
	// runner-up for a preference (§4.4.1 step 1). The aligner does not read
	// it: claimFromBucket takes the best-scoring wrapper that clears
	// JaccardPreferenceThreshold, without comparing it to the runner-up.
	JaccardPreferenceDelta float64
	// DescriptionMinRatio is the loosened token-overlap ratio used when
	// Jaccard alone doesn't clear JaccardMinThreshold (§4.4.1 step 2) and
	// in description-only mode (§4.4.2 step 2).
	DescriptionMinRatio float64
	// MinTokenLength is the minimum length of a progressive/code token to
	// be indexed (excludes short progressives).
	MinTokenLength int
	// MinTokenLengthDescription is the minimum length for a whole-description token.
	MinTokenLengthDescription int
	// MinWordTokenLength is the minimum length for a single description word.
	MinWordTokenLength int
	// MaxCandidatesFilter caps the candidate set collected from the index before scoring.
	MaxCandidatesFilter int
	// MaxCandidatesFinal caps the candidate set considered for the final Jaccard pass.
	MaxCandidatesFinal int
}

// DefaultThresholds returns the empirical defaults recorded in
// matching/config.py. Per spec.md §9, these must never change silently.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SemanticMinScore:           0.58,
		SemanticDefaultBucket:      "__all__",
		HeadTailWordLimit:          30,
		JaccardMinThreshold:        0.05,
		JaccardPreferenceThreshold: 0.15,
		JaccardPreferenceDelta:     0.01,
		DescriptionMinRatio:        0.30,
		MinTokenLength:             4,
		MinTokenLengthDescription:  6,
		MinWordTokenLength:         3,
		MaxCandidatesFilter:        100,
		MaxCandidatesFinal:         30,
	}
}

// ForcedZeroCodePrefixes are VoceComputo.Code prefixes subject to the zero
// guard invariant (§4.4.1 step 5 / P3).
var ForcedZeroCodePrefixes = []string{"A004010"}

// ForcedZeroDescriptionKeywords are description substrings (case-insensitive,
// matched after normalization) subject to the zero guard invariant.
var ForcedZeroDescriptionKeywords = []string{
	"mark up fee",
	"mark-up fee",
	"markup fee",
}

// stopwordsIT are the Italian articles/prepositions/conjunctions excluded
// from single-word description tokens.
var stopwordsIT = map[string]struct{}{
	"per": {}, "con": {}, "dei": {}, "del": {}, "dalla": {}, "dallo": {}, "dalle": {}, "dagli": {},
	"alla": {}, "allo": {}, "alle": {}, "agli": {}, "nella": {}, "nello": {}, "nelle": {}, "negli": {},
	"sulla": {}, "sullo": {}, "sulle": {}, "sugli": {}, "della": {}, "dello": {}, "delle": {}, "degli": {},
	"una": {}, "uno": {}, "gli": {}, "le": {}, "il": {}, "lo": {}, "la": {}, "di": {}, "da": {}, "in": {}, "su": {},
	"a": {}, "e": {}, "o": {}, "ma": {}, "se": {}, "che": {},
}

// stopwordsEN are the English stopwords excluded from single-word description tokens.
var stopwordsEN = map[string]struct{}{
	"the": {}, "of": {}, "and": {}, "or": {}, "for": {}, "with": {}, "from": {},
	"to": {}, "in": {}, "on": {}, "at": {}, "by": {},
}

func isStopword(word string) bool {
	if _, ok := stopwordsIT[word]; ok {
		return true
	}
	_, ok := stopwordsEN[word]
	return ok
}
