package processors

import (
	"regexp"

	"github.com/username/isincheck/backend/src/models"
)

// Keyword tables for the classification heuristic. The lists are bilingual
// (English/German) because upstream profile and search texts mix both. Keep
// additions in these tables rather than inline in categorize.go, and keep the
// matching order of commodityKindRules intact: it encodes which underlying
// wins when a name mentions several.

// Food commodities are explicitly excluded from commodity classification.
var foodCommodityKeywords = []string{
	"wheat", "weizen",
	"corn", "mais",
	"soybean", "soja",
	"coffee", "kaffee",
	"cocoa", "kakao",
	"sugar", "zucker",
	"cotton", "baumwolle",
	"orange", "orange juice",
	"livestock", "vieh",
	"cattle", "rind",
	"pork", "schwein",
}

// Wrapper products must never be classified as plain equity.
var basketKeywords = []string{"basket", "etf", "exchange traded fund"}

// Type strings that identify funds. Checked before equity because "fund"
// shows up inside other type strings too.
var fundTypeKeywords = []string{"mutual fund", "investment fund"}

// Type strings that identify equities.
var equityTypeKeywords = []string{"equity", "stock", "common share", "share"}

// Type strings that identify exchange-traded products.
var etpTypeKeywords = []string{"etp", "etf"}

// Type strings under which an instrument may be a commodity wrapper.
var commodityTypeKeywords = []string{"commodity", "etc", "etn", "etf"}

// Corpus substrings that signal a commodity underlying (metals and energy
// only; food is handled by the deny list above). Ticker mnemonics like XAU,
// GLD, SLV and WTI are included because upstream search names carry them.
var commodityKeywords = []string{
	"rohstoff", "commodity",
	// precious metals
	"gold", "xau", "gld",
	"silver", "silber", "xag", "slv",
	"platinum", "platin", "xpt",
	"palladium", "pallad", "xpd",
	"rhodium",
	// base metals
	"copper", "kupfer",
	"nickel",
	"zinc", "zink",
	"aluminum", "aluminium",
	"zinn",
	"blei",
	"iron", "eisen",
	"steel", "stahl",
	"tungsten", "wolfram",
	"molybdenum", "molybdän",
	"titanium", "titan",
	"chrome", "chrom",
	"manganese", "mangan",
	// energy and mining
	"oil", "öl", "crude", "wti", "brent", "petroleum",
	"coal", "kohle",
	"uranium", "uran",
	"lithium",
	"cobalt", "kobalt",
}

// Short tokens need word boundaries so "plead" or "routine" never match.
var commodityWordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\blead\b`),
	regexp.MustCompile(`\btin\b`),
	regexp.MustCompile(`\bcu\b`),
	regexp.MustCompile(`\bcl\b`),
}

var leadPattern = regexp.MustCompile(`\blead\b`)

// Keywords marking short/inverse exposure. Everything else defaults to long.
var shortDirectionKeywords = []string{
	"short",
	"inverse",
	"bear",
	"-1x",
	"-2x",
	"-3x",
	"short selling",
	"leerverkauf",
}

// Leverage ladder. Exact multiples are recognized individually; any other
// Nx token collapses to "Other".
var leveragePatterns = []struct {
	pattern *regexp.Regexp
	value   models.Leverage
}{
	{regexp.MustCompile(`\b20x\b`), models.Leverage20x},
	{regexp.MustCompile(`\b10x\b`), models.Leverage10x},
	{regexp.MustCompile(`\b5x\b`), models.Leverage5x},
	{regexp.MustCompile(`\b3x\b`), models.Leverage3x},
	{regexp.MustCompile(`\b2x\b`), models.Leverage2x},
}

var otherLeveragePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[4-9]\d*x\b`),
	regexp.MustCompile(`\b[1-9]\d{2,}x\b`),
}

// commodityKindRules resolves the commodity sub-category. First match wins;
// chemical symbols and futures mnemonics are word-boundary-matched.
var commodityKindRules = []struct {
	kind       models.CommodityKind
	substrings []string
	patterns   []*regexp.Regexp
}{
	{
		kind:       models.CommodityGold,
		substrings: []string{"gold", "xau", "gld"},
	},
	{
		kind:       models.CommoditySilver,
		substrings: []string{"silver", "silber", "xag", "slv"},
	},
	{
		kind:       models.CommodityPlatinum,
		substrings: []string{"platinum", "platin", "xpt"},
	},
	{
		kind:       models.CommodityCopper,
		substrings: []string{"copper", "kupfer"},
		patterns:   []*regexp.Regexp{regexp.MustCompile(`\bcu\b`)},
	},
	{
		kind:       models.CommodityOil,
		substrings: []string{"oil", "öl", "crude", "wti", "brent", "petroleum"},
		patterns:   []*regexp.Regexp{regexp.MustCompile(`\bcl\b`)},
	},
	{
		kind:       models.CommodityGas,
		substrings: []string{"gas", "erdgas"},
		patterns:   []*regexp.Regexp{regexp.MustCompile(`\bng\b`)},
	},
	{
		kind:       models.CommodityLead,
		substrings: []string{"blei"},
		patterns:   []*regexp.Regexp{leadPattern, regexp.MustCompile(`\bpb\b`)},
	},
	{
		kind:       models.CommodityTin,
		substrings: []string{"zinn"},
		patterns:   []*regexp.Regexp{regexp.MustCompile(`\btin\b`), regexp.MustCompile(`\bsn\b`)},
	},
}
