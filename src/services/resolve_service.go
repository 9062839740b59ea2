// backend/src/services/resolve_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/models"
	"github.com/username/isincheck/backend/src/processors"
)

// ResolveService resolves ISINs against the Finnhub API, consulting the
// in-process cache first. Resolution strategy:
//  1. company profile lookup by ISIN
//  2. symbol search by ISIN, best match by instrument type
//  3. company profile lookup by the matched symbol, falling back to the
//     bare search data when the profile is empty or errors
type ResolveService struct {
	finnhub *FinnhubService
	cache   *ISINCache
}

func NewResolveService(finnhub *FinnhubService, cache *ISINCache) *ResolveService {
	return &ResolveService{finnhub: finnhub, cache: cache}
}

func (s *ResolveService) Resolve(ctx context.Context, isin, name string, originalRow map[string]string) models.ResolveResult {
	if cached, found := s.cache.Get(isin); found {
		logger.L.Debug("ISIN cache hit", "isin", isin)
		if cached.Notes != "" {
			cached.Notes += " (from cache)"
		}
		return cached
	}

	var lastErr error

	// Step 1: company profile by ISIN.
	profile, err := s.finnhub.ProfileByISIN(ctx, isin)
	if err != nil {
		lastErr = err
		logger.L.Warn("Profile lookup by ISIN failed", "isin", isin, "error", err)
	} else if !profile.IsEmpty() {
		categorization := processors.Categorize(profile, name, originalRow)
		result := models.ResolveResult{
			Categorization: categorization,
			Status:         models.StatusSuccess,
			Notes: fmt.Sprintf("Found via profile (ISIN): %s | Type: %s | Category: %s",
				firstNonEmpty(profile.Name, profile.Ticker, isin), valueOrNA(profile.Type), describeCategory(categorization)),
		}
		s.cache.Set(isin, result)
		return result
	}

	// Step 2: symbol search by ISIN.
	searchResults, err := s.finnhub.Search(ctx, isin)
	if err != nil {
		lastErr = err
		logger.L.Warn("Symbol search failed", "isin", isin, "error", err)
	} else if best := findBestMatch(searchResults); best != nil && best.Symbol != "" {
		searchName := firstNonEmpty(best.Description, best.DisplaySymbol, name)

		// Step 3: enrich via profile for the matched symbol.
		enriched, err := s.finnhub.ProfileBySymbol(ctx, best.Symbol)
		switch {
		case err == nil && !enriched.IsEmpty():
			combined := enriched
			if combined.Type == "" {
				combined.Type = best.Type
			}
			if combined.Description == "" {
				combined.Description = firstNonEmpty(best.Description, searchName)
			}
			if combined.Name == "" {
				combined.Name = firstNonEmpty(searchName, best.Symbol)
			}
			categorization := processors.Categorize(combined, firstNonEmpty(searchName, name, enriched.Name), originalRow)
			result := models.ResolveResult{
				Categorization: categorization,
				Status:         models.StatusSuccess,
				Notes: fmt.Sprintf("Found via search + profile | Symbol: %s | Name: %q | Type: %s | Category: %s",
					best.Symbol, searchName, valueOrNA(best.Type), describeCategory(categorization)),
			}
			s.cache.Set(isin, result)
			return result

		case best.Type != "" || best.Description != "" || best.DisplaySymbol != "":
			// Profile empty or failed; the search hit itself carries enough
			// data to categorize.
			if err != nil {
				lastErr = err
			}
			searchProfile := models.FinnhubProfile{
				Ticker:      best.Symbol,
				Type:        best.Type,
				Description: best.Description,
				Name:        firstNonEmpty(searchName, best.Symbol),
			}
			categorization := processors.Categorize(searchProfile, firstNonEmpty(searchName, name), originalRow)
			result := models.ResolveResult{
				Categorization: categorization,
				Status:         models.StatusSuccess,
				Notes: fmt.Sprintf("Found via search | Symbol: %s | Name: %q | Type: %s | Category: %s",
					best.Symbol, searchName, valueOrNA(best.Type), describeCategory(categorization)),
			}
			s.cache.Set(isin, result)
			return result

		case err != nil:
			lastErr = err
		}
	}

	isRateLimit := isRateLimitFailure(lastErr)

	notes := fmt.Sprintf("ISIN %s could not be resolved", isin)
	if name != "" {
		notes += fmt.Sprintf(" | Name: %q", name)
	}
	if lastErr != nil {
		notes += " | Error: " + lastErr.Error()
	}
	if isRateLimit {
		notes += " | Rate limit (429), will be retried"
	}
	logger.L.Info("ISIN resolution failed", "isin", isin, "rateLimit", isRateLimit, "error", lastErr)

	result := models.ResolveResult{
		Categorization: models.Categorization{Category: models.CategoryUnknown},
		Status:         models.StatusError,
		Notes:          notes,
		IsRateLimit:    isRateLimit,
	}
	// Error results are cached so known-bad ISINs are not re-fetched, but
	// rate-limited ones must stay retryable.
	s.cache.Set(isin, result)
	return result
}

// findBestMatch picks the most useful search hit. Equities win over ETFs,
// ETFs over ETC/ETN, anything over nothing.
func findBestMatch(results []models.FinnhubSearchResult) *models.FinnhubSearchResult {
	if len(results) == 0 {
		return nil
	}
	matchers := [][]string{
		{"common stock", "equity", "stock"},
		{"etf"},
		{"etc", "etn"},
	}
	for _, keywords := range matchers {
		for i := range results {
			typ := strings.ToLower(results[i].Type)
			for _, kw := range keywords {
				if strings.Contains(typ, kw) {
					return &results[i]
				}
			}
		}
	}
	return &results[0]
}

func isRateLimitFailure(err error) bool {
	if err == nil {
		return false
	}
	return IsRateLimitError(err) ||
		strings.Contains(err.Error(), "429") ||
		strings.Contains(strings.ToLower(err.Error()), "too many requests")
}

func describeCategory(c models.Categorization) string {
	if c.SubCategory != "" {
		return fmt.Sprintf("%s (%s)", c.Category, c.SubCategory)
	}
	return string(c.Category)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func valueOrNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
