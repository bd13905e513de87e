package model

// ActionType tells whether the planner proposes trades.
type ActionType string

const (
	ActionNone        ActionType = "NONE"
	ActionTransaction ActionType = "TRANSACTION"
)

// BlockReason explains why a needed trade was not (fully) executed.
type BlockReason string

const (
	BlockNone                BlockReason = "none"
	BlockMinTrade            BlockReason = "min_trade"
	BlockLiquiditySufficient BlockReason = "liquidity_sufficient"
	BlockGuardrail           BlockReason = "guardrail_block"
	BlockCapActive           BlockReason = "cap_active"
	BlockGoldFloor           BlockReason = "gold_floor"
)

// SaleItem is the sale of (part of) one lot. Index points into the
// Equity or Gold slice of the portfolio the sale was planned on.
type SaleItem struct {
	Kind          TrancheKind
	TrancheID     string
	Index         int
	Gross         float64
	Tax           float64
	Net           float64
	TaxableSigned float64
	AllowanceUsed float64
	TaxFreeQuota  float64
	TaxPerEuro    float64
}

// Uses distributes the net proceeds of an action.
type Uses struct {
	Liquidity   float64
	Gold        float64
	Equity      float64
	MoneyMarket float64
}

// ActionDiagnostics records gates and caps applied while planning.
type ActionDiagnostics struct {
	BlockReason     BlockReason
	BlockedAmount   float64
	MinTradeGate    float64
	MinTradeRelaxed bool
	GuardrailReason string
	Capped          bool
	CapAmount       float64
	TargetLiquidity float64
	Entries         []string
}

// Action is the proposed set of trades for the year.
type Action struct {
	Type          ActionType
	Title         string
	Need          float64
	Sources       []SaleItem
	Uses          Uses
	FromLiquidity float64
	TotalTax      float64
	TotalGross    float64
	TotalNet      float64
	AllowanceUsed float64
	Emergency     bool
	Diagnostics   ActionDiagnostics
}

// NoAction builds an empty action with the given reason.
func NoAction(title string, reason BlockReason) Action {
	return Action{
		Type:        ActionNone,
		Title:       title,
		Diagnostics: ActionDiagnostics{BlockReason: reason},
	}
}
