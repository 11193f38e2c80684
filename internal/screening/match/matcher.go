// Package match scores free-text names and wallet addresses against
// reference records using normalization, name-order variants and tiered
// exact/substring/edit-distance similarity.
package match

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/sentinelrisk/screening/internal/screening"
)

// Config holds the matching thresholds. The numeric constants are tuned per
// screening profile; relative ordering of the tiers is what matters.
type Config struct {
	// ConfidenceFloor discards candidates scoring below it.
	ConfidenceFloor float64
	// AliasExactConfidence is the score for exact equality with an alias.
	AliasExactConfidence float64
	// NameSubstringConfidence scores substring containment against the
	// primary name or its variants.
	NameSubstringConfidence float64
	// AliasSubstringConfidence scores substring containment against aliases.
	AliasSubstringConfidence float64
	// SurnameDiscount discounts surname-only edit-distance similarity,
	// since surname collisions are weaker evidence.
	SurnameDiscount float64
	// RemarksMentionConfidence scores a wallet address found verbatim in a
	// record's free-text remarks.
	RemarksMentionConfidence float64
}

// DefaultConfig returns the standard sanctions-screening thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor:          0.75,
		AliasExactConfidence:     0.95,
		NameSubstringConfidence:  0.90,
		AliasSubstringConfidence: 0.85,
		SurnameDiscount:          0.85,
		RemarksMentionConfidence: 0.95,
	}
}

// Matcher matches screening subjects against reference records.
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher with the given thresholds.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9,\s]`)
var multiSpace = regexp.MustCompile(`\s+`)

// Normalize lowercases a name, strips punctuation apart from commas (which
// carry "Last, First" ordering information) and collapses whitespace.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = nonAlnum.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Variants generates name-order variants of a normalized name: the name
// itself, the "last, first" comma swap, and the two-token swap. The original
// is always the first element.
func Variants(name string) []string {
	variants := []string{name}

	if i := strings.Index(name, ","); i >= 0 {
		last := strings.TrimSpace(name[:i])
		first := strings.TrimSpace(name[i+1:])
		if first != "" && last != "" {
			variants = append(variants, first+" "+last)
		}
	} else if tokens := strings.Fields(name); len(tokens) == 2 {
		variants = append(variants, tokens[1]+" "+tokens[0])
	}

	return variants
}

// surname extracts the surname component of a comma-formatted name, or the
// empty string when the name carries no comma.
func surname(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	return ""
}

// similarity is normalized edit-distance similarity in [0,1].
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// Match scores subject against a record's primary name and aliases. Every
// tier is evaluated and the maximum confidence wins; an exact hit is never
// beaten by a lower tier. Returns false when the best score is below the
// confidence floor or the subject is empty.
func (m *Matcher) Match(subject string, rec screening.ReferenceRecord) (screening.MatchCandidate, bool) {
	norm := Normalize(subject)
	if norm == "" {
		return screening.MatchCandidate{}, false
	}
	subjectVariants := Variants(norm)

	primary := Normalize(rec.PrimaryName)
	primaryVariants := Variants(primary)

	best := screening.MatchCandidate{RecordID: rec.ID}

	// Tier 1+2: exact equality against the primary name or its variants.
	for _, s := range subjectVariants {
		for _, v := range primaryVariants {
			if s == v {
				return screening.MatchCandidate{RecordID: rec.ID, Type: screening.MatchExact, Confidence: 1.0}, true
			}
		}
	}

	// Tier 3: exact equality against an alias or alias variant.
	var aliasVariants []string
	for _, alias := range rec.Aliases {
		aliasVariants = append(aliasVariants, Variants(Normalize(alias))...)
	}
	for _, s := range subjectVariants {
		for _, v := range aliasVariants {
			if s == v && m.cfg.AliasExactConfidence > best.Confidence {
				best = screening.MatchCandidate{RecordID: rec.ID, Type: screening.MatchAlias, Confidence: m.cfg.AliasExactConfidence}
			}
		}
	}

	// Tier 4: substring containment in either direction.
	for _, s := range subjectVariants {
		for _, v := range primaryVariants {
			if containsEither(s, v) && m.cfg.NameSubstringConfidence > best.Confidence {
				best = screening.MatchCandidate{RecordID: rec.ID, Type: screening.MatchSubstring, Confidence: m.cfg.NameSubstringConfidence}
			}
		}
		for _, v := range aliasVariants {
			if containsEither(s, v) && m.cfg.AliasSubstringConfidence > best.Confidence {
				best = screening.MatchCandidate{RecordID: rec.ID, Type: screening.MatchSubstring, Confidence: m.cfg.AliasSubstringConfidence}
			}
		}
	}

	// Tier 5: edit-distance similarity over all variant pairs, plus a
	// discounted surname-only comparison for comma-formatted records.
	fuzzy := 0.0
	for _, s := range subjectVariants {
		for _, v := range append(primaryVariants, aliasVariants...) {
			if sim := similarity(s, v); sim > fuzzy {
				fuzzy = sim
			}
		}
		if last := surname(primary); last != "" {
			if sim := similarity(s, last) * m.cfg.SurnameDiscount; sim > fuzzy {
				fuzzy = sim
			}
		}
	}
	if fuzzy > best.Confidence {
		best = screening.MatchCandidate{RecordID: rec.ID, Type: screening.MatchFuzzy, Confidence: fuzzy}
	}

	if best.Confidence < m.cfg.ConfidenceFloor {
		return screening.MatchCandidate{}, false
	}
	return best, true
}

// MatchWallet matches a wallet address against a record. Address matching is
// exact-only: either case-insensitive equality with the record's address
// fields, or the address appearing verbatim in the record's free-text
// remarks. Partial address similarity is not meaningful evidence, so no
// fuzzy tier applies.
func (m *Matcher) MatchWallet(address string, rec screening.ReferenceRecord) (screening.MatchCandidate, bool) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return screening.MatchCandidate{}, false
	}

	candidates := append([]string{rec.PrimaryName}, rec.Addresses...)
	for _, c := range candidates {
		if address == strings.ToLower(strings.TrimSpace(c)) {
			return screening.MatchCandidate{RecordID: rec.ID, Type: screening.MatchAddressExact, Confidence: 1.0}, true
		}
	}

	if rec.Remarks != "" && strings.Contains(strings.ToLower(rec.Remarks), address) {
		return screening.MatchCandidate{RecordID: rec.ID, Type: screening.MatchSubstring, Confidence: m.cfg.RemarksMentionConfidence}, true
	}

	return screening.MatchCandidate{}, false
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
