// Package processors implements the keyword-driven instrument classifier.
package processors

import (
	"regexp"
	"strings"

	"github.com/username/isincheck/backend/src/models"
)

// Categorize derives the taxonomy assignment for an instrument from its
// provider profile, the user-supplied name and (optionally) the original
// input row. The heuristic works on lowercased text only; no network calls.
func Categorize(profile models.FinnhubProfile, providedName string, originalRow map[string]string) models.Categorization {
	typ := strings.ToLower(profile.Type)
	description := strings.ToLower(profile.Description)
	assetClass := strings.ToLower(profile.AssetClass)
	profileName := strings.ToLower(profile.Name)
	provided := strings.ToLower(providedName)

	combined := typ + " " + description + " " + assetClass + " " + profileName + " " + provided

	// Leverage is extracted from the instrument name only. Descriptions
	// routinely mention multiples of other products in the same family.
	nameToCheck := profileName
	if nameToCheck == "" {
		nameToCheck = provided
	}
	leverage := extractLeverage(nameToCheck)
	hasLeverage := leverage != ""

	isFood := containsAny(combined, foodCommodityKeywords)

	// Wrapper products must not land in the equity bucket, even when the
	// provider types them as shares. The basket column of the input row
	// counts as a wrapper signal too.
	basketValue := strings.ToLower(strings.TrimSpace(originalRow["basket"]))
	isETFOrBasket := containsAny(combined, basketKeywords) ||
		strings.Contains(typ, "etf") ||
		strings.Contains(typ, "basket") ||
		strings.Contains(basketValue, "etf")

	var category models.Category
	switch {
	case containsAny(typ, fundTypeKeywords),
		strings.Contains(typ, "fund") && !strings.Contains(typ, "etf"):
		category = models.CategoryFund
	case !isETFOrBasket && (containsAny(typ, equityTypeKeywords) || assetClass == "equity"):
		category = models.CategoryEquity
	case containsAny(typ, etpTypeKeywords),
		strings.Contains(combined, " exchange traded product "),
		strings.Contains(combined, "exchange traded fund"):
		category = models.CategoryETP
	}

	isCommodityType := containsAny(typ, commodityTypeKeywords)
	hasCommodityKeywords := containsAny(combined, commodityKeywords) ||
		matchesAny(combined, commodityWordPatterns)
	isLead := leadPattern.MatchString(combined)

	// A bare ETP type is not enough to call something a commodity; ETPs
	// wrap anything. They need explicit commodity keywords.
	isETP := strings.Contains(typ, "etp") || strings.Contains(combined, " exchange traded product ")
	isCommodity := (isCommodityType || hasCommodityKeywords || isLead) &&
		!isFood &&
		(!isETP || hasCommodityKeywords || isLead)

	if isCommodity {
		if category == "" {
			category = models.CategoryETP
		}
		return models.Categorization{
			Category:    category,
			SubCategory: models.CommoditySubCategory(detectCommodityKind(combined)),
			Direction:   detectDirection(combined),
			Leverage:    leverage,
		}
	}

	if category != "" {
		sub := models.SubCategoryPlain
		if hasLeverage {
			sub = models.SubCategoryLeveraged
		}
		return models.Categorization{
			Category:    category,
			SubCategory: sub,
			Direction:   detectDirection(combined),
			Leverage:    leverage,
		}
	}

	cat := models.Categorization{Category: models.CategoryUnknown}
	if hasLeverage {
		cat.SubCategory = models.SubCategoryLeveraged
	}
	return cat
}

// extractLeverage pulls a leverage multiple out of an instrument name.
// Returns "" when the name carries none.
func extractLeverage(name string) models.Leverage {
	if name == "" {
		return ""
	}
	normalized := strings.ToLower(name)
	for _, lp := range leveragePatterns {
		if lp.pattern.MatchString(normalized) {
			return lp.value
		}
	}
	for _, p := range otherLeveragePatterns {
		if p.MatchString(normalized) {
			return models.LeverageOther
		}
	}
	return ""
}

// detectCommodityKind picks the underlying commodity from the combined text.
// The rule order in commodityKindRules decides ties.
func detectCommodityKind(text string) models.CommodityKind {
	normalized := strings.ToLower(text)
	for _, rule := range commodityKindRules {
		if containsAny(normalized, rule.substrings) || matchesAny(normalized, rule.patterns) {
			return rule.kind
		}
	}
	return models.CommodityOther
}

// detectDirection reports short when any short/inverse keyword appears,
// long otherwise.
func detectDirection(text string) models.Direction {
	normalized := strings.ToLower(text)
	if containsAny(normalized, shortDirectionKeywords) {
		return models.DirectionShort
	}
	return models.DirectionLong
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
