package bus

// NewTokenMessage is published on ChannelNewTokens for every accepted
// token creation.
type NewTokenMessage struct {
	Mint                 string  `json:"mint"`
	Name                 string  `json:"name"`
	Symbol               string  `json:"symbol"`
	URI                  string  `json:"uri"`
	Creator              string  `json:"creator"`
	BondingCurve         string  `json:"bonding_curve"`
	Timestamp            int64   `json:"timestamp"`
	VirtualSolReserves   uint64  `json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64  `json:"virtual_token_reserves"`
	PriceSol             float64 `json:"price_sol"`
	MarketCapSol         float64 `json:"market_cap_sol"`
}

// TradeMessage is published on ChannelTrades for every accepted trade.
type TradeMessage struct {
	Signature            string  `json:"signature"`
	Mint                 string  `json:"mint"`
	User                 string  `json:"user"`
	IsBuy                bool    `json:"is_buy"`
	SolAmount            uint64  `json:"sol_amount"`
	TokenAmount          uint64  `json:"token_amount"`
	Timestamp            int64   `json:"timestamp"`
	PriceSol             float64 `json:"price_sol"`
	MarketCapSol         float64 `json:"market_cap_sol"`
	MarketCapUSD         float64 `json:"market_cap_usd"`
	BondingCurveProgress float64 `json:"bonding_curve_progress"`
}

// CompletionMessage is published on ChannelCompletions when a bonding
// curve fills.
type CompletionMessage struct {
	Mint         string `json:"mint"`
	User         string `json:"user"`
	BondingCurve string `json:"bonding_curve"`
	Timestamp    int64  `json:"timestamp"`
}
