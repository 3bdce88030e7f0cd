// Package standards models NGSS performance expectation codes: the categories
// assets are filed under, the grade bands content is generated for, and the
// extraction of standard codes from generated lesson text.
package standards

import (
	"regexp"
	"strings"
)

// Asset categories and the NGSS domain prefix each maps to.
const (
	CategoryLifeScience     = "life-science"
	CategoryEarthSpace      = "earth-space"
	CategoryPhysicalScience = "physical-science"
	CategoryEngineering     = "engineering"
)

// Grade bands content is generated for, in pipeline order.
const (
	GradeBandK2 = "K-2"
	GradeBand35 = "3-5"
	GradeBand68 = "6-8"
)

var categoryDomains = map[string]string{
	CategoryLifeScience:     "LS",
	CategoryEarthSpace:      "ESS",
	CategoryPhysicalScience: "PS",
	CategoryEngineering:     "ETS",
}

var orderedCategories = []string{
	CategoryLifeScience,
	CategoryEarthSpace,
	CategoryPhysicalScience,
	CategoryEngineering,
}

var orderedGradeBands = []string{GradeBandK2, GradeBand35, GradeBand68}

// codePattern matches NGSS performance expectation codes such as 2-LS4-1,
// K-2-ETS1-1, and MS-ESS3-2. Longer grade alternatives come first so that
// 3-5-ETS1-2 matches whole rather than as 5-ETS1-2.
var codePattern = regexp.MustCompile(`\b(?:K-2|3-5|MS|K|[1-5])-(?:LS|ESS|PS|ETS)[1-9]-\d{1,2}\b`)

// Categories returns the known asset categories in display order.
func Categories() []string {
	cp := make([]string, len(orderedCategories))
	copy(cp, orderedCategories)
	return cp
}

// IsCategory reports whether value names a known asset category.
func IsCategory(value string) bool {
	_, ok := categoryDomains[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// DomainPrefix returns the NGSS domain prefix for a category.
func DomainPrefix(category string) (string, bool) {
	prefix, ok := categoryDomains[strings.ToLower(strings.TrimSpace(category))]
	return prefix, ok
}

// GradeBands returns the grade bands in pipeline order.
func GradeBands() []string {
	cp := make([]string, len(orderedGradeBands))
	copy(cp, orderedGradeBands)
	return cp
}

// IsGradeBand reports whether value names a known grade band.
func IsGradeBand(value string) bool {
	for _, band := range orderedGradeBands {
		if band == value {
			return true
		}
	}
	return false
}

// ExtractCodes pulls NGSS codes from generated text, deduplicated in order of
// first appearance.
func ExtractCodes(text string) []string {
	matches := codePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	codes := make([]string, 0, len(matches))
	for _, code := range matches {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// FilterByDomain keeps only codes whose domain matches the category's NGSS
// prefix. Unknown categories yield no codes.
func FilterByDomain(codes []string, category string) []string {
	prefix, ok := DomainPrefix(category)
	if !ok {
		return nil
	}
	var filtered []string
	for _, code := range codes {
		if domainOf(code) == prefix {
			filtered = append(filtered, code)
		}
	}
	return filtered
}

// BandForCode maps a code's grade component onto the band it belongs to.
// Engineering codes carry the band itself (K-2-ETS1-1), so the leading grade
// token alone decides.
func BandForCode(code string) (string, bool) {
	grade, _, ok := strings.Cut(code, "-")
	if !ok {
		return "", false
	}
	switch grade {
	case "K", "1", "2":
		return GradeBandK2, true
	case "3", "4", "5":
		return GradeBand35, true
	case "MS":
		return GradeBand68, true
	}
	return "", false
}

func cutBandPrefix(code string) (string, string, bool) {
	switch {
	case strings.HasPrefix(code, "K-2-"):
		return GradeBandK2, strings.TrimPrefix(code, "K-2-"), true
	case strings.HasPrefix(code, "3-5-"):
		return GradeBand35, strings.TrimPrefix(code, "3-5-"), true
	}
	return "", "", false
}

func domainOf(code string) string {
	rest := code
	if _, trimmed, ok := cutBandPrefix(code); ok {
		rest = trimmed
	} else if _, after, ok := strings.Cut(code, "-"); ok {
		rest = after
	}
	for _, prefix := range []string{"ESS", "ETS", "LS", "PS"} {
		if strings.HasPrefix(rest, prefix) {
			return prefix
		}
	}
	return ""
}
