package models

import "strings"

// Category is the top-level classification of an instrument.
type Category string

const (
	CategoryEquity     Category = "Equity"
	CategoryETP        Category = "ETP"
	CategoryFund       Category = "Fund"
	CategoryUnknown    Category = "Unknown/Error"
	CategoryNotChecked Category = "Not checked"
)

// SubCategory refines a Category. For non-commodity instruments it is
// "Leveraged" or "Plain"; for commodity exposures it is "Commodity:<Kind>".
type SubCategory string

const (
	SubCategoryLeveraged SubCategory = "Leveraged"
	SubCategoryPlain     SubCategory = "Plain"

	commodityPrefix = "Commodity:"
)

// CommoditySubCategory builds the sub-category value for a commodity kind.
func CommoditySubCategory(kind CommodityKind) SubCategory {
	return SubCategory(commodityPrefix + string(kind))
}

// IsCommodity reports whether the sub-category encodes a commodity exposure.
func (s SubCategory) IsCommodity() bool {
	return strings.HasPrefix(string(s), commodityPrefix)
}

// CommodityKind extracts the commodity kind from a commodity sub-category.
// Returns "" for non-commodity sub-categories.
func (s SubCategory) CommodityKind() CommodityKind {
	if !s.IsCommodity() {
		return ""
	}
	return CommodityKind(strings.TrimPrefix(string(s), commodityPrefix))
}

// CommodityKind names the underlying of a commodity instrument.
type CommodityKind string

const (
	CommodityGold     CommodityKind = "Gold"
	CommoditySilver   CommodityKind = "Silver"
	CommodityPlatinum CommodityKind = "Platinum"
	CommodityCopper   CommodityKind = "Copper"
	CommodityOil      CommodityKind = "Oil"
	CommodityGas      CommodityKind = "Gas"
	CommodityLead     CommodityKind = "Lead"
	CommodityTin      CommodityKind = "Tin"
	CommodityOther    CommodityKind = "Other"
)

// Direction is the exposure direction of an instrument.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Leverage is the leverage multiple extracted from an instrument name.
type Leverage string

const (
	Leverage2x    Leverage = "2x"
	Leverage3x    Leverage = "3x"
	Leverage5x    Leverage = "5x"
	Leverage10x   Leverage = "10x"
	Leverage20x   Leverage = "20x"
	LeverageOther Leverage = "Other"
)

// Status tracks the resolution state of a row.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// ParsedRow is one input record from an uploaded file. Immutable once parsed.
type ParsedRow struct {
	RowIndex        int               `json:"rowIndex"`
	ISIN            string            `json:"isin"`
	Name            string            `json:"name"`
	WKN             string            `json:"wkn"`
	ValidISIN       bool              `json:"validIsin"`
	OriginalRowData map[string]string `json:"originalRowData"`
}

// CheckedRow is a ParsedRow joined with its classification result.
type CheckedRow struct {
	ParsedRow
	Category    Category    `json:"category"`
	SubCategory SubCategory `json:"subCategory,omitempty"`
	Direction   Direction   `json:"direction,omitempty"`
	Leverage    Leverage    `json:"leverage,omitempty"`
	Status      Status      `json:"status"`
	Notes       string      `json:"notes,omitempty"`
}

// SummaryKey builds the aggregate bucket key for a checked row.
// Format: Category_Leveraged/Plain_Commodity_<Kind>/NonCommodity[_direction][_leverage].
func (r CheckedRow) SummaryKey() string {
	var b strings.Builder
	b.WriteString(string(r.Category))
	if r.Leverage != "" {
		b.WriteString("_Leveraged")
	} else {
		b.WriteString("_Plain")
	}
	if r.SubCategory.IsCommodity() {
		b.WriteString("_Commodity_")
		b.WriteString(string(r.SubCategory.CommodityKind()))
	} else {
		b.WriteString("_NonCommodity")
	}
	if r.Direction != "" {
		b.WriteString("_")
		b.WriteString(string(r.Direction))
	}
	if r.Leverage != "" {
		b.WriteString("_")
		b.WriteString(string(r.Leverage))
	}
	return b.String()
}

// Categorization is the taxonomy assignment produced by the classification heuristic.
type Categorization struct {
	Category    Category    `json:"category"`
	SubCategory SubCategory `json:"subCategory,omitempty"`
	Direction   Direction   `json:"direction,omitempty"`
	Leverage    Leverage    `json:"leverage,omitempty"`
}

// ResolveResult is the outcome of resolving one ISIN.
type ResolveResult struct {
	Categorization
	Status Status `json:"status"`
	Notes  string `json:"notes,omitempty"`
	// IsRateLimit marks upstream 429 failures so the orchestrator can defer
	// the ISIN instead of finalizing it as an error.
	IsRateLimit bool `json:"-"`
	// FromDatabase marks results adapted from the persistent store.
	FromDatabase bool `json:"-"`
}

// FinnhubProfile is the subset of the Finnhub company profile we consume.
type FinnhubProfile struct {
	Ticker      string `json:"ticker,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
	AssetClass  string `json:"assetClass,omitempty"`
}

// IsEmpty reports whether the profile carries no useful data.
func (p FinnhubProfile) IsEmpty() bool {
	return p.Name == "" && p.Ticker == "" && p.Type == "" && p.Description == ""
}

// FinnhubSearchResult is one candidate from the Finnhub symbol lookup.
type FinnhubSearchResult struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"displaySymbol"`
	Description   string `json:"description"`
	Type          string `json:"type"`
}

// CheckSummary maps summary keys to row counts.
type CheckSummary map[string]int

// BatchTiming reports measured and estimated durations for a batch call.
type BatchTiming struct {
	AverageTimePerRequestMs float64 `json:"averageTimePerRequest"`
	TotalISINs              int     `json:"totalIsins"`
	EstimatedTotalTimeMs    float64 `json:"estimatedTotalTime"`
}

// CheckInfo describes the batch-0 partitioning for the caller.
type CheckInfo struct {
	TotalChecked       int `json:"totalChecked"`
	FoundInDatabase    int `json:"foundInDatabase"`
	NotFoundInDatabase int `json:"notFoundInDatabase"`
	CheckedViaAPI      int `json:"checkedViaApi"`
}

// UploadResponse is returned by the upload endpoint.
type UploadResponse struct {
	JobID   string      `json:"jobId"`
	Rows    []ParsedRow `json:"rows"`
	Headers []string    `json:"headers"`
	Errors  []string    `json:"errors"`
}

// CheckRequest is the body of a batch check call.
type CheckRequest struct {
	JobID      string      `json:"jobId"`
	Rows       []ParsedRow `json:"rows"`
	BatchIndex int         `json:"batchIndex"`
	Offset     *int        `json:"offset,omitempty"`
}

// CheckResponse is returned by one batch check call.
type CheckResponse struct {
	Summary    CheckSummary `json:"summary"`
	Rows       []CheckedRow `json:"rows"`
	Errors     []string     `json:"errors"`
	Timing     *BatchTiming `json:"timing,omitempty"`
	HasMore    bool         `json:"hasMore"`
	NextOffset int          `json:"nextOffset"`
	CheckInfo  *CheckInfo   `json:"checkInfo,omitempty"`
}
