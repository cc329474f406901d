package matching

import (
	"regexp"
	"strings"

	"github.com/frank1beans/tender-reconciler/internal/domain"
)

// wbs6Re matches a bare WBS6 code: one letter followed by exactly 3 digits.
var wbs6Re = regexp.MustCompile(`^[A-Za-z]\d{3}$`)

// wbs7Re matches a WBS7 code: a WBS6 prefix optionally followed by a
// separator ([.\s_-]) and 3 more digits.
var wbs7Re = regexp.MustCompile(`^([A-Za-z]\d{3})[.\s_-]?(\d{3})$`)

// NormalizeWbs6Code uppercases and strips whitespace, returning "" if the
// result doesn't match ^[A-Za-z]\d{3}$ (§4.1).
func NormalizeWbs6Code(value string) string {
	stripped := strings.ToUpper(strings.Join(strings.Fields(value), ""))
	if wbs6Re.MatchString(stripped) {
		return stripped
	}
	return ""
}

// NormalizeWbs7Code uppercases and strips whitespace, returning the
// canonical "L###.###" form if the result matches
// ^[A-Za-z]\d{3}[.\s_-]?\d{3}$, else "" (§4.1).
func NormalizeWbs7Code(value string) string {
	stripped := strings.ToUpper(strings.Join(strings.Fields(value), ""))
	m := wbs7Re.FindStringSubmatch(stripped)
	if m == nil {
		return ""
	}
	return m[1] + "." + m[2]
}

func firstNormalized(values ...string) string {
	for _, v := range values {
		if token := NormalizeToken(v); token != "" {
			return token
		}
	}
	return ""
}

// BuildWbsKeyFromModel mirrors normalization.py's build_wbs_key_from_model:
// "{primary}|{secondary}" where primary is the first non-empty of
// (wbs6_code, wbs6_desc, wbs5_code, wbs5_desc) and secondary the first
// non-empty of (wbs7_code, wbs7_desc, description).
func BuildWbsKeyFromModel(v *domain.VoceComputo) string {
	primary := firstNormalized(v.WbsLevels[5].Code, v.WbsLevels[5].Description, v.WbsLevels[4].Code, v.WbsLevels[4].Description)
	secondary := firstNormalized(v.WbsLevels[6].Code, v.WbsLevels[6].Description, v.Description)
	return joinWbsKey(primary, secondary)
}

func joinWbsKey(primary, secondary string) string {
	switch {
	case primary != "" && secondary != "":
		return primary + "|" + secondary
	case secondary != "":
		return secondary
	default:
		return primary
	}
}

// ParsedVoce is the external input contract for one project/return line
// (§6 External Interfaces). Raw Excel/SIX parsing lives outside the core.
type ParsedVoce struct {
	OrderIndex  int
	Progressivo *int
	Code        string
	Description string
	WbsLevels   []domain.WbsLevel
	UOM         string
	Quantity    *float64
	UnitPrice   *float64
	Amount      *float64
	Note        string
	Metadata    map[string]string
}

func wbsLevelCode(p *ParsedVoce, level int) string {
	for _, l := range p.WbsLevels {
		if l.Level == level {
			return l.Code
		}
	}
	return ""
}

func wbsLevelDesc(p *ParsedVoce, level int) string {
	for _, l := range p.WbsLevels {
		if l.Level == level {
			return l.Description
		}
	}
	return ""
}

// BuildWbsKeyFromParsed mirrors normalization.py's build_wbs_key_from_parsed:
// "primary|secondary|description" (description appended only when it adds
// specificity over the secondary segment alone).
func BuildWbsKeyFromParsed(p *ParsedVoce) string {
	var primary, secondary string
	for _, lvl := range p.WbsLevels {
		if lvl.Level == 6 && primary == "" {
			primary = firstNormalized(lvl.Code, lvl.Description)
		}
		if lvl.Level == 7 && secondary == "" {
			secondary = firstNormalized(lvl.Code, lvl.Description)
		}
	}
	if secondary == "" {
		secondary = firstNormalized(p.Code, p.Description)
	}
	descriptionToken := NormalizeToken(p.Description)

	if primary != "" && secondary != "" {
		if descriptionToken != "" {
			return primary + "|" + secondary + "|" + descriptionToken
		}
		return primary + "|" + secondary
	}
	if secondary != "" && descriptionToken != "" && secondary != descriptionToken {
		return secondary + "|" + descriptionToken
	}
	if descriptionToken != "" {
		return descriptionToken
	}
	return joinWbsKey(primary, secondary)
}

// BuildWbsBaseKeyFromParsed mirrors build_wbs_base_key_from_parsed: the
// same primary/secondary resolution as BuildWbsKeyFromParsed, without ever
// appending the description segment.
func BuildWbsBaseKeyFromParsed(p *ParsedVoce) string {
	var primary, secondary string
	for _, lvl := range p.WbsLevels {
		if lvl.Level == 6 && primary == "" {
			primary = firstNormalized(lvl.Code, lvl.Description)
		}
		if lvl.Level == 7 && secondary == "" {
			secondary = firstNormalized(lvl.Code, lvl.Description)
		}
	}
	if secondary == "" {
		secondary = firstNormalized(p.Code, p.Description)
	}
	return joinWbsKey(primary, secondary)
}

// SplitWbsKey splits a composed WBS key into (primary, secondary).
func SplitWbsKey(key string) (primary, secondary string) {
	if key == "" {
		return "", ""
	}
	if idx := strings.Index(key, "|"); idx >= 0 {
		return key[:idx], key[idx+1:]
	}
	return "", key
}

// BaseWbsKeyFromKey strips the description segment (if any) from a
// "primary|secondary|description" key, returning "primary|secondary".
func BaseWbsKeyFromKey(key string) string {
	primary, secondary := SplitWbsKey(key)
	if primary != "" && secondary != "" {
		if idx := strings.Index(secondary, "|"); idx >= 0 {
			secondary = secondary[:idx]
		}
		return primary + "|" + secondary
	}
	if primary != "" {
		return primary
	}
	return secondary
}
