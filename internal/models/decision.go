package models

// Score is the day trading suitability of one symbol. TotalScore is always
// the sum of the four sub-scores.
type Score struct {
	Symbol          string  `json:"symbol"`
	TotalScore      int     `json:"total_score"`
	LiquidityScore  int     `json:"liquidity_score"`
	SpreadScore     int     `json:"spread_score"`
	VolatilityScore int     `json:"volatility_score"`
	MomentumScore   int     `json:"momentum_score"`
	Metrics         Metrics `json:"metrics"`
	Explanation     string  `json:"scoring_explanation"`
}

const (
	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

// Recommendation is a human-approvable trade proposal.
type Recommendation struct {
	Symbol        string   `json:"symbol"`
	Action        string   `json:"action"`
	Quantity      int      `json:"quantity"`
	OrderType     string   `json:"order_type"`
	LimitPrice    *float64 `json:"limit_price,omitempty"`
	EstimatedCost float64  `json:"estimated_cost"`
	Reasoning     string   `json:"reasoning"`
	RiskFactors   []string `json:"risk_factors"`
	Score         Score    `json:"score"`
}

// Price returns the limit price, or zero when absent.
func (r Recommendation) Price() float64 {
	if r.LimitPrice == nil {
		return 0
	}
	return *r.LimitPrice
}

type ApprovalKind int

const (
	ApprovalSkip ApprovalKind = iota
	ApprovalAccept
	ApprovalModify
)

func (k ApprovalKind) String() string {
	switch k {
	case ApprovalAccept:
		return "accept"
	case ApprovalModify:
		return "modify"
	default:
		return "skip"
	}
}

// Approval is the human decision for one recommendation. Quantity and
// Price are only meaningful for ApprovalModify.
type Approval struct {
	Kind     ApprovalKind
	Quantity int
	Price    *float64
}

func Skip() Approval   { return Approval{Kind: ApprovalSkip} }
func Accept() Approval { return Approval{Kind: ApprovalAccept} }

func Modify(quantity int, price *float64) Approval {
	return Approval{Kind: ApprovalModify, Quantity: quantity, Price: price}
}

// Position is one held position as reported by the brokerage.
type Position struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

// OrderResult is the outcome of one order submission.
type OrderResult struct {
	Symbol   string
	Quantity int
	Price    *float64
	Raw      string
	Err      error
}

func (o OrderResult) Failed() bool {
	return o.Err != nil
}
